package forms

import (
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"unicode/utf8"
)

// FormType names one of the application wizards.
type FormType string

const (
	FormBibleSchool FormType = "bible_school"
	FormCourse      FormType = "course"
	FormMembership  FormType = "membership"
)

var (
	// ErrUnknownFormType indicates the requested wizard does not exist.
	ErrUnknownFormType = errors.New("forms: unknown form type")
	// ErrInvalidStep indicates a step index outside the wizard.
	ErrInvalidStep = errors.New("forms: invalid step")
)

// ParseFormType validates raw input and returns a FormType.
func ParseFormType(raw string) (FormType, error) {
	formType := FormType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := definitions[formType]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormType, raw)
	}
	return formType, nil
}

// Section groups steps for document export.
type Section string

const (
	SectionPersonal     Section = "personal"
	SectionProgram      Section = "program"
	SectionReferences   Section = "references"
	SectionDeclarations Section = "declarations"
)

// Field describes one input and the rules applied to it.
type Field struct {
	Name        string
	Label       string
	Required    bool
	MinLength   int
	ExactDigits int
	Email       bool
	Accepted    bool
	OneOf       []string
}

// Step is one page of the wizard.
type Step struct {
	Title   string
	Section Section
	Fields  []Field
}

// Definition is the ordered list of steps for a form type.
type Definition struct {
	Type  FormType
	Steps []Step
}

// Lookup returns the definition for a form type.
func Lookup(formType FormType) (Definition, error) {
	definition, ok := definitions[formType]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownFormType, formType)
	}
	return definition, nil
}

// StepCount returns the number of steps in the wizard.
func (d Definition) StepCount() int {
	return len(d.Steps)
}

// Fields returns every field in step order.
func (d Definition) Fields() []Field {
	var fields []Field
	for _, step := range d.Steps {
		fields = append(fields, step.Fields...)
	}
	return fields
}

// FieldError is a single failed rule.
type FieldError struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError carries every failed field for one or more steps.
type ValidationError struct {
	Step   int
	Fields map[string]FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		fieldErr := e.Fields[name]
		parts = append(parts, fmt.Sprintf("%s: %s: %s", name, fieldErr.Rule, fieldErr.Message))
	}
	return fmt.Sprintf("forms: step %d validation failed: %s", e.Step, strings.Join(parts, "; "))
}

// ValidateStep checks the rules of a single 1-based step.
func (d Definition) ValidateStep(step int, values Values) error {
	if step < 1 || step > len(d.Steps) {
		return fmt.Errorf("%w: %d", ErrInvalidStep, step)
	}
	failures := map[string]FieldError{}
	for _, field := range d.Steps[step-1].Fields {
		if fieldErr, failed := field.check(values.String(field.Name), values[field.Name]); failed {
			failures[field.Name] = fieldErr
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return &ValidationError{Step: step, Fields: failures}
}

// ValidateAll runs every step rule in order and stops at the first failing step.
func (d Definition) ValidateAll(values Values) error {
	for step := 1; step <= len(d.Steps); step++ {
		if err := d.ValidateStep(step, values); err != nil {
			return err
		}
	}
	return nil
}

func (f Field) check(text string, raw any) (FieldError, bool) {
	if f.Accepted {
		if !isAccepted(raw) {
			return FieldError{Rule: "required", Message: "must be accepted"}, true
		}
		return FieldError{}, false
	}
	if text == "" {
		if f.Required {
			return FieldError{Rule: "required", Message: "is required"}, true
		}
		return FieldError{}, false
	}
	if f.MinLength > 0 && utf8.RuneCountInString(untrimmed(raw, text)) < f.MinLength {
		return FieldError{Rule: "minLength", Message: fmt.Sprintf("must be at least %d characters", f.MinLength)}, true
	}
	if f.ExactDigits > 0 && !isDigits(text, f.ExactDigits) {
		return FieldError{Rule: "digits", Message: fmt.Sprintf("must be exactly %d digits", f.ExactDigits)}, true
	}
	if f.Email {
		if _, err := mail.ParseAddress(text); err != nil {
			return FieldError{Rule: "email", Message: "must be a valid email address"}, true
		}
	}
	if len(f.OneOf) > 0 && !contains(f.OneOf, text) {
		return FieldError{Rule: "oneOf", Message: "must be one of " + strings.Join(f.OneOf, ", ")}, true
	}
	return FieldError{}, false
}

// untrimmed is the value as the applicant typed it; length rules count it.
func untrimmed(raw any, text string) string {
	if typed, ok := raw.(string); ok {
		return typed
	}
	return text
}

func isDigits(value string, length int) bool {
	if len(value) != length {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}

func isAccepted(raw any) bool {
	switch typed := raw.(type) {
	case bool:
		return typed
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true", "yes", "on", "1":
			return true
		}
	}
	return false
}

func contains(options []string, value string) bool {
	for _, option := range options {
		if option == value {
			return true
		}
	}
	return false
}
