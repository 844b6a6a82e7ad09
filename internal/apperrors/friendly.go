package apperrors

import "strings"

type friendlyRule struct {
	needles []string
	message string
}

// Order matters: the first rule whose needle appears in the error wins.
var friendlyRules = []friendlyRule{
	{needles: []string{"required"}, message: "Please fill in all required fields."},
	{needles: []string{"minLength", "at least"}, message: "Some answers are too short."},
	{needles: []string{"too large", "10MB"}, message: "Your file must be under 10MB."},
	{needles: []string{"upload"}, message: "We could not upload your document. Please try again."},
	{needles: []string{"RLS", "permission"}, message: "You do not have permission to perform this action."},
}

// FriendlyMessage turns a submission failure into text suitable for an
// applicant. Unrecognised errors pass through unchanged.
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	raw := err.Error()
	for _, rule := range friendlyRules {
		for _, needle := range rule.needles {
			if strings.Contains(raw, needle) {
				return rule.message
			}
		}
	}
	return raw
}
