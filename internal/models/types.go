package models

import "time"

// EvaluationRecord is the storage row for an evaluation. Exactly one of
// GuestEmail and ProfileID is set; AccessCode accompanies GuestEmail.
type EvaluationRecord struct {
	ID         string
	Type       string // INITIAL or ADVANCED
	Title      string
	Answers    string // JSON object of question id -> int
	Score      int
	AccessCode *string
	GuestEmail *string
	ProfileID  *string
	Metadata   string // JSON, empty when absent
	CreatedAt  time.Time
	// CompletedAt is reserved; no write path sets it.
	CompletedAt *time.Time
}

// UserRecord is an authentication identity.
type UserRecord struct {
	ID        string
	Email     string // stored lower-cased
	PassHash  []byte
	CreatedAt time.Time
}

// ProfileRecord is the application user attached to a UserRecord.
type ProfileRecord struct {
	ID          string
	UserID      string
	DisplayName string
	Role        string
	CreatedAt   time.Time
}

// WelcomeClaim marks a recipient as welcomed until ExpiresAt.
type WelcomeClaim struct {
	Recipient string
	ExpiresAt time.Time
}
