package api

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soaringjerry/Vigil/internal/models"
)

// MemoryStore keeps everything in process. It backs DATABASE_TYPE=memory and
// the handler tests.
type MemoryStore struct {
	mu             sync.RWMutex
	evaluations    map[string]*models.EvaluationRecord
	accessCodes    map[string]string // code -> evaluation id
	usersByEmail   map[string]*models.UserRecord
	profiles       map[string]*models.ProfileRecord
	profilesByUser map[string]string
	welcome        map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		evaluations:    map[string]*models.EvaluationRecord{},
		accessCodes:    map[string]string{},
		usersByEmail:   map[string]*models.UserRecord{},
		profiles:       map[string]*models.ProfileRecord{},
		profilesByUser: map[string]string{},
		welcome:        map[string]time.Time{},
	}
}

func (s *MemoryStore) InsertEvaluation(_ context.Context, ev *models.EvaluationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.AccessCode != nil {
		if _, taken := s.accessCodes[*ev.AccessCode]; taken {
			return ErrDuplicateAccessCode
		}
		s.accessCodes[*ev.AccessCode] = ev.ID
	}
	cp := *ev
	s.evaluations[ev.ID] = &cp
	return nil
}

func (s *MemoryStore) GetEvaluation(_ context.Context, id string) (*models.EvaluationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.evaluations[id]
	if !ok {
		return nil, nil
	}
	cp := *ev
	return &cp, nil
}

func (s *MemoryStore) ListEvaluationsByProfile(_ context.Context, profileID string) ([]*models.EvaluationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.EvaluationRecord{}
	for _, ev := range s.evaluations {
		if ev.ProfileID != nil && *ev.ProfileID == profileID {
			cp := *ev
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CreateAccount(_ context.Context, u *models.UserRecord, p *models.ProfileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := s.usersByEmail[key]; ok {
		return ErrDuplicateEmail
	}
	uc, pc := *u, *p
	s.usersByEmail[key] = &uc
	s.profiles[p.ID] = &pc
	s.profilesByUser[u.ID] = p.ID
	return nil
}

func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetProfile(_ context.Context, id string) (*models.ProfileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetProfileByUserID(ctx context.Context, userID string) (*models.ProfileRecord, error) {
	s.mu.RLock()
	id, ok := s.profilesByUser[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.GetProfile(ctx, id)
}

func (s *MemoryStore) UpdateProfileRole(_ context.Context, id, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[id]; ok {
		p.Role = role
	}
	return nil
}

func (s *MemoryStore) ClaimWelcome(_ context.Context, recipient string, now, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.welcome[recipient]; ok && now.Before(exp) {
		return false, nil
	}
	s.welcome[recipient] = expiresAt
	return true, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }
