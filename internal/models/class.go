package models

import "time"

// ClassMeet is a scheduled online class session for a batch.
type ClassMeet struct {
	MeetID    string    `json:"meet_id"`
	BatchID   string    `json:"batch_id"`
	Title     string    `json:"title"`
	MeetLink  string    `json:"meet_link"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Note is a study resource shared with a batch.
type Note struct {
	NoteID    string    `json:"note_id"`
	BatchID   string    `json:"batch_id"`
	Title     string    `json:"title"`
	FileURL   string    `json:"file_url"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is a read-only announcement message in a batch feed.
type ChatMessage struct {
	ID        int64     `json:"id"`
	BatchID   string    `json:"batch_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is an unread alert for the student.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
