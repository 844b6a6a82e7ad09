package models

// All lists every record migrated at startup.
func All() []any {
	return []any{
		&UserProfile{},
		&Draft{},
		&Application{},
		&Payment{},
		&Donation{},
		&Event{},
		&EventRegistration{},
		&Course{},
		&CourseEnrollment{},
		&Notification{},
		&Certificate{},
	}
}
