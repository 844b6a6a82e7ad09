package forms

// CommonFields are projected onto typed columns for every program.
type CommonFields struct {
	FullName string
	Email    string
	Phone    string
	IDNumber string
}

type Reference struct {
	Name  string
	Phone string
}

type BibleSchoolFields struct {
	HomeChurch         string
	PastorName         string
	YearsSaved         string
	Baptized           string
	WhyJoin            string
	CallingStatement   string
	MinistryExperience string
	References         []Reference
}

type CourseFields struct {
	CourseID  string
	StudyMode string
	Reason    string
}

type MembershipFields struct {
	SalvationTestimony string
	Baptized           string
	PreviousChurch     string
}

// Payload is the tagged union built from a submitted wizard. Exactly one of
// the program-specific pointers is set, matching Program. ExtraFields always
// holds every value that has no typed home.
type Payload struct {
	Program     FormType
	Common      CommonFields
	BibleSchool *BibleSchoolFields
	Course      *CourseFields
	Membership  *MembershipFields
	ExtraFields map[string]any
}

type fieldTaker struct {
	values   Values
	consumed map[string]struct{}
}

func (t *fieldTaker) take(name string) string {
	t.consumed[name] = struct{}{}
	return t.values.String(name)
}

// BuildPayload projects wizard values onto the typed union for the program.
func BuildPayload(formType FormType, values Values) (Payload, error) {
	if _, err := Lookup(formType); err != nil {
		return Payload{}, err
	}
	taker := &fieldTaker{values: values, consumed: map[string]struct{}{}}
	payload := Payload{
		Program: formType,
		Common: CommonFields{
			FullName: taker.take("full_name"),
			Email:    taker.take("email"),
			Phone:    taker.take("phone"),
			IDNumber: taker.take("id_number"),
		},
	}

	switch formType {
	case FormBibleSchool:
		fields := &BibleSchoolFields{
			HomeChurch:         taker.take("home_church"),
			PastorName:         taker.take("pastor_name"),
			YearsSaved:         taker.take("years_saved"),
			Baptized:           taker.take("baptized"),
			WhyJoin:            taker.take("why_join"),
			CallingStatement:   taker.take("calling_statement"),
			MinistryExperience: taker.take("ministry_experience"),
		}
		for _, pair := range [][2]string{{"reference1_name", "reference1_phone"}, {"reference2_name", "reference2_phone"}} {
			reference := Reference{Name: taker.take(pair[0]), Phone: taker.take(pair[1])}
			if reference.Name != "" {
				fields.References = append(fields.References, reference)
			}
		}
		payload.BibleSchool = fields
	case FormCourse:
		payload.Course = &CourseFields{
			CourseID:  taker.take("course_id"),
			StudyMode: taker.take("study_mode"),
			Reason:    taker.take("reason"),
		}
	case FormMembership:
		payload.Membership = &MembershipFields{
			SalvationTestimony: taker.take("salvation_testimony"),
			Baptized:           taker.take("baptized"),
			PreviousChurch:     taker.take("previous_church"),
		}
	}

	payload.ExtraFields = map[string]any{}
	for key, value := range values {
		if _, ok := taker.consumed[key]; ok {
			continue
		}
		payload.ExtraFields[key] = value
	}
	return payload, nil
}
