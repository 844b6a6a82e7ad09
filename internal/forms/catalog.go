package forms

const (
	minWhyJoinLength          = 50
	minCallingStatementLength = 100
	minTestimonyLength        = 50
	nationalIDDigits          = 13
)

var personalFields = []Field{
	{Name: "full_name", Label: "Full name", Required: true},
	{Name: "email", Label: "Email", Required: true, Email: true},
	{Name: "phone", Label: "Phone", Required: true},
}

func withNationalID(fields []Field) []Field {
	out := append([]Field(nil), fields...)
	return append(out,
		Field{Name: "id_number", Label: "ID number", Required: true, ExactDigits: nationalIDDigits},
		Field{Name: "date_of_birth", Label: "Date of birth", Required: true},
		Field{Name: "address", Label: "Physical address", Required: true},
	)
}

var definitions = map[FormType]Definition{
	FormBibleSchool: {
		Type: FormBibleSchool,
		Steps: []Step{
			{Title: "Personal information", Section: SectionPersonal, Fields: withNationalID(personalFields)},
			{Title: "Church background", Section: SectionProgram, Fields: []Field{
				{Name: "home_church", Label: "Home church", Required: true},
				{Name: "pastor_name", Label: "Pastor's name", Required: true},
				{Name: "years_saved", Label: "Years saved", Required: true},
				{Name: "baptized", Label: "Baptised", Required: true, OneOf: []string{"yes", "no"}},
			}},
			{Title: "Motivation", Section: SectionProgram, Fields: []Field{
				{Name: "why_join", Label: "Why do you want to join?", Required: true, MinLength: minWhyJoinLength},
				{Name: "expectations", Label: "Expectations"},
			}},
			{Title: "Calling", Section: SectionProgram, Fields: []Field{
				{Name: "calling_statement", Label: "Calling statement", Required: true, MinLength: minCallingStatementLength},
				{Name: "ministry_experience", Label: "Ministry experience"},
			}},
			{Title: "References", Section: SectionReferences, Fields: []Field{
				{Name: "reference1_name", Label: "First reference", Required: true},
				{Name: "reference1_phone", Label: "First reference phone", Required: true},
				{Name: "reference2_name", Label: "Second reference"},
				{Name: "reference2_phone", Label: "Second reference phone"},
			}},
			{Title: "Declarations", Section: SectionDeclarations, Fields: []Field{
				{Name: "declaration_truth", Label: "The information supplied is true", Accepted: true},
				{Name: "declaration_conduct", Label: "I accept the code of conduct", Accepted: true},
			}},
		},
	},
	FormCourse: {
		Type: FormCourse,
		Steps: []Step{
			{Title: "Personal information", Section: SectionPersonal, Fields: personalFields},
			{Title: "Course selection", Section: SectionProgram, Fields: []Field{
				{Name: "course_id", Label: "Course", Required: true},
				{Name: "study_mode", Label: "Study mode", Required: true, OneOf: []string{"online", "in_person"}},
				{Name: "reason", Label: "Reason for enrolling"},
			}},
			{Title: "Declarations", Section: SectionDeclarations, Fields: []Field{
				{Name: "declaration_truth", Label: "The information supplied is true", Accepted: true},
			}},
		},
	},
	FormMembership: {
		Type: FormMembership,
		Steps: []Step{
			{Title: "Personal information", Section: SectionPersonal, Fields: withNationalID(personalFields)},
			{Title: "Faith journey", Section: SectionProgram, Fields: []Field{
				{Name: "salvation_testimony", Label: "Salvation testimony", Required: true, MinLength: minTestimonyLength},
				{Name: "baptized", Label: "Baptised", Required: true, OneOf: []string{"yes", "no"}},
				{Name: "previous_church", Label: "Previous church"},
			}},
			{Title: "Commitment", Section: SectionDeclarations, Fields: []Field{
				{Name: "declaration_truth", Label: "The information supplied is true", Accepted: true},
				{Name: "declaration_membership", Label: "I commit to the membership covenant", Accepted: true},
			}},
		},
	},
}
