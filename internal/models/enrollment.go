package models

import "time"

// Batch is a scheduled course group run by a center.
type Batch struct {
	BatchID    string    `json:"batch_id"`
	Name       string    `json:"batch_name"`
	CourseName string    `json:"course_name"`
	CenterID   string    `json:"center_id"`
	Duration   int       `json:"duration"`
	StartDate  time.Time `json:"start_date"`
	Timing     string    `json:"timing,omitempty"`
}

// Enrollment links a student to a batch.
type Enrollment struct {
	EnrollmentID string    `json:"enrollment_id"`
	StudentID    string    `json:"student_id"`
	Status       string    `json:"status"`
	EnrolledAt   time.Time `json:"enrolled_at"`
	Batch        Batch     `json:"batches"`
}

// EnrollRequest asks the upstream backend to enroll a student in a batch.
type EnrollRequest struct {
	BatchID   string `json:"batch_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
}
