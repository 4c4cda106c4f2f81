package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soaringjerry/Vigil/internal/models"
	"github.com/soaringjerry/Vigil/internal/services"
)

type evaluationStoreAdapter struct {
	store Store
}

func newEvaluationStoreAdapter(store Store) services.EvaluationStore {
	return &evaluationStoreAdapter{store: store}
}

func (a *evaluationStoreAdapter) InsertEvaluation(ctx context.Context, ev *services.Evaluation) error {
	rec, err := evaluationToRecord(ev)
	if err != nil {
		return err
	}
	if err := a.store.InsertEvaluation(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateAccessCode) {
			return services.ErrAccessCodeTaken
		}
		return err
	}
	return nil
}

func (a *evaluationStoreAdapter) GetEvaluation(ctx context.Context, id string) (*services.Evaluation, error) {
	rec, err := a.store.GetEvaluation(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return recordToEvaluation(rec)
}

func (a *evaluationStoreAdapter) ListEvaluationsByProfile(ctx context.Context, profileID string) ([]*services.Evaluation, error) {
	recs, err := a.store.ListEvaluationsByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	out := make([]*services.Evaluation, 0, len(recs))
	for _, rec := range recs {
		ev, err := recordToEvaluation(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (a *evaluationStoreAdapter) GetProfileByUserID(ctx context.Context, userID string) (*services.Profile, error) {
	p, err := a.store.GetProfileByUserID(ctx, userID)
	if err != nil || p == nil {
		return nil, err
	}
	return convertProfile(p), nil
}

var _ services.EvaluationStore = (*evaluationStoreAdapter)(nil)

func evaluationToRecord(ev *services.Evaluation) (*models.EvaluationRecord, error) {
	answers, err := json.Marshal(ev.Answers)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}
	rec := &models.EvaluationRecord{
		ID:          ev.ID,
		Type:        string(ev.Type),
		Title:       ev.Title,
		Answers:     string(answers),
		Score:       ev.Score,
		CreatedAt:   ev.CreatedAt,
		CompletedAt: ev.CompletedAt,
	}
	if ev.Metadata != nil {
		meta, err := json.Marshal(ev.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		rec.Metadata = string(meta)
	}
	switch o := ev.Owner.(type) {
	case services.GuestOwner:
		rec.GuestEmail = &o.Email
		rec.AccessCode = &o.AccessCode
	case services.ProfileOwner:
		rec.ProfileID = &o.ProfileID
	default:
		return nil, fmt.Errorf("evaluation %s has no owner", ev.ID)
	}
	return rec, nil
}

func recordToEvaluation(rec *models.EvaluationRecord) (*services.Evaluation, error) {
	ev := &services.Evaluation{
		ID:          rec.ID,
		Type:        services.EvaluationType(rec.Type),
		Title:       rec.Title,
		Answers:     map[string]int{},
		Score:       rec.Score,
		CreatedAt:   rec.CreatedAt,
		CompletedAt: rec.CompletedAt,
	}
	if rec.Answers != "" {
		if err := json.Unmarshal([]byte(rec.Answers), &ev.Answers); err != nil {
			return nil, fmt.Errorf("decode answers of %s: %w", rec.ID, err)
		}
	}
	if rec.Metadata != "" && rec.Metadata != "null" {
		var meta services.Metadata
		if err := json.Unmarshal([]byte(rec.Metadata), &meta); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", rec.ID, err)
		}
		ev.Metadata = &meta
	}
	hasGuest := rec.GuestEmail != nil && *rec.GuestEmail != ""
	hasProfile := rec.ProfileID != nil && *rec.ProfileID != ""
	switch {
	case hasGuest && hasProfile:
		return nil, fmt.Errorf("evaluation %s has both a guest email and a profile", rec.ID)
	case hasGuest:
		if rec.AccessCode == nil || *rec.AccessCode == "" {
			return nil, fmt.Errorf("guest evaluation %s has no access code", rec.ID)
		}
		ev.Owner = services.GuestOwner{Email: *rec.GuestEmail, AccessCode: *rec.AccessCode}
	case hasProfile:
		ev.Owner = services.ProfileOwner{ProfileID: *rec.ProfileID}
	default:
		return nil, fmt.Errorf("evaluation %s has no owner", rec.ID)
	}
	return ev, nil
}

func convertProfile(p *models.ProfileRecord) *services.Profile {
	role, ok := services.ParseRole(p.Role)
	if !ok {
		role = services.RoleFree
	}
	return &services.Profile{ID: p.ID, UserID: p.UserID, DisplayName: p.DisplayName, Role: role, CreatedAt: p.CreatedAt}
}
