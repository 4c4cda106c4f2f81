package api

import (
	"time"

	"github.com/soaringjerry/Vigil/internal/services"
)

type evaluationView struct {
	ID          string             `json:"id"`
	Type        string             `json:"type"`
	Title       string             `json:"title"`
	Score       int                `json:"score"`
	Answers     map[string]int     `json:"answers"`
	ProfileID   string             `json:"profileId,omitempty"`
	Metadata    *services.Metadata `json:"metadata,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	CompletedAt *time.Time         `json:"completedAt"`
}

func newEvaluationView(ev *services.Evaluation) evaluationView {
	v := evaluationView{
		ID:          ev.ID,
		Type:        string(ev.Type),
		Title:       ev.Title,
		Score:       ev.Score,
		Answers:     ev.Answers,
		Metadata:    ev.Metadata,
		CreatedAt:   ev.CreatedAt,
		CompletedAt: ev.CompletedAt,
	}
	if o, ok := ev.Owner.(services.ProfileOwner); ok {
		v.ProfileID = o.ProfileID
	}
	return v
}

// guestResultView is what an access code unlocks: no email, no metadata.
type guestResultView struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Score     int            `json:"score"`
	Answers   map[string]int `json:"answers"`
	CreatedAt time.Time      `json:"createdAt"`
}

func newGuestResultView(ev *services.Evaluation) guestResultView {
	return guestResultView{
		ID:        ev.ID,
		Type:      string(ev.Type),
		Title:     ev.Title,
		Score:     ev.Score,
		Answers:   ev.Answers,
		CreatedAt: ev.CreatedAt,
	}
}
