package services

import (
	"strings"
	"time"
)

type EvaluationType string

const (
	EvaluationInitial  EvaluationType = "INITIAL"
	EvaluationAdvanced EvaluationType = "ADVANCED"
)

// ParseEvaluationType accepts any letter case; empty input means INITIAL.
func ParseEvaluationType(s string) (EvaluationType, bool) {
	switch EvaluationType(strings.ToUpper(strings.TrimSpace(s))) {
	case "", EvaluationInitial:
		return EvaluationInitial, true
	case EvaluationAdvanced:
		return EvaluationAdvanced, true
	default:
		return "", false
	}
}

// DefaultTitle is used when a submission carries no title.
func (t EvaluationType) DefaultTitle() string {
	if t == EvaluationAdvanced {
		return "Advanced security evaluation"
	}
	return "Initial security evaluation"
}

type Role string

const (
	RoleFree       Role = "FREE"
	RolePremium    Role = "PREMIUM"
	RoleSuperadmin Role = "SUPERADMIN"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleFree, RolePremium, RoleSuperadmin:
		return r, true
	default:
		return "", false
	}
}

// HasHistoryAccess reports whether the role may list and export past evaluations.
func (r Role) HasHistoryAccess() bool {
	return r == RolePremium || r == RoleSuperadmin
}

// Owner is either a GuestOwner or a ProfileOwner, never both.
type Owner interface {
	isOwner()
}

// GuestOwner identifies an evaluation submitted without a session.
// AccessCode is the bearer capability for reading the results back.
type GuestOwner struct {
	Email      string
	AccessCode string
}

// ProfileOwner identifies an evaluation submitted by a signed-in profile.
type ProfileOwner struct {
	ProfileID string
}

func (GuestOwner) isOwner()   {}
func (ProfileOwner) isOwner() {}

// Interest records why a guest took the evaluation.
type Interest struct {
	Reason      string `json:"reason"`
	OtherReason string `json:"otherReason,omitempty"`
}

type Metadata struct {
	Interest *Interest `json:"interest,omitempty"`
}

// Evaluation is immutable once persisted. CompletedAt is reserved and never set.
type Evaluation struct {
	ID          string
	Type        EvaluationType
	Title       string
	Answers     map[string]int
	Score       int
	Owner       Owner
	Metadata    *Metadata
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// AccessCode returns the guest access code, or "" for profile-owned evaluations.
func (e *Evaluation) AccessCode() string {
	if g, ok := e.Owner.(GuestOwner); ok {
		return g.AccessCode
	}
	return ""
}

// OwnedBy reports whether profileID owns the evaluation.
func (e *Evaluation) OwnedBy(profileID string) bool {
	p, ok := e.Owner.(ProfileOwner)
	return ok && profileID != "" && p.ProfileID == profileID
}

type User struct {
	ID        string
	Email     string
	PassHash  []byte
	CreatedAt time.Time
}

type Profile struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
}
