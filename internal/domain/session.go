package domain

import "time"

// Session is one interview attempt. Immutable once created.
type Session struct {
	ID        ID        `json:"id"`
	UserName  string    `json:"user_name"`
	Position  string    `json:"position"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Question is one prompt of a session, ordered by Order.
type Question struct {
	ID        ID     `json:"id"`
	SessionID ID     `json:"session_id,omitempty"`
	Text      string `json:"question_text"`
	Order     int    `json:"order"`
}

// Fragment is a unit of incremental transcribed text.
type Fragment struct {
	SessionID ID
	Text      string
	Received  time.Time
}
