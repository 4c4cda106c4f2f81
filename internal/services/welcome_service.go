package services

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultWelcomeWindow is how long a recipient is remembered after a welcome email.
const DefaultWelcomeWindow = 24 * time.Hour

// sweepProbability is the chance that a MemoryDedup.Claim also evicts expired entries.
const sweepProbability = 0.1

// WelcomeDedup claims the right to send a welcome email to recipient.
// Claim reports false when the recipient was already claimed within the window.
type WelcomeDedup interface {
	Claim(ctx context.Context, recipient string, now time.Time, window time.Duration) (bool, error)
}

// MemoryDedup is a per-process TTL set. Entries are lost on restart and are not
// shared between instances.
type MemoryDedup struct {
	mu      sync.Mutex
	entries map[string]time.Time // recipient -> expiry
	rand    func() float64
}

func NewMemoryDedup() *MemoryDedup {
	return &MemoryDedup{entries: map[string]time.Time{}, rand: rand.Float64}
}

func (d *MemoryDedup) Claim(_ context.Context, recipient string, now time.Time, window time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rand() < sweepProbability {
		d.sweepLocked(now)
	}
	if exp, ok := d.entries[recipient]; ok && now.Before(exp) {
		return false, nil
	}
	d.entries[recipient] = now.Add(window)
	return true, nil
}

// Len reports the number of tracked recipients, expired or not.
func (d *MemoryDedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func (d *MemoryDedup) sweepLocked(now time.Time) {
	for k, exp := range d.entries {
		if !now.Before(exp) {
			delete(d.entries, k)
		}
	}
}

// WelcomeClaimStore persists claims so that several instances share them.
type WelcomeClaimStore interface {
	// ClaimWelcome inserts or refreshes the claim when none is live at now.
	ClaimWelcome(ctx context.Context, recipient string, now, expiresAt time.Time) (bool, error)
}

// StoreDedup adapts a WelcomeClaimStore to WelcomeDedup.
type StoreDedup struct{ Store WelcomeClaimStore }

func (d StoreDedup) Claim(ctx context.Context, recipient string, now time.Time, window time.Duration) (bool, error) {
	return d.Store.ClaimWelcome(ctx, recipient, now, now.Add(window))
}

type WelcomeService struct {
	dedup    WelcomeDedup
	notifier ResultNotifier
	emails   *EmailPolicy
	siteURL  string
	window   time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewWelcomeService(dedup WelcomeDedup, notifier ResultNotifier, siteURL string, window time.Duration, log *zap.Logger) *WelcomeService {
	if window <= 0 {
		window = DefaultWelcomeWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WelcomeService{
		dedup:    dedup,
		notifier: notifier,
		emails:   NewEmailPolicy(),
		siteURL:  strings.TrimRight(siteURL, "/"),
		window:   window,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Send emails a welcome message at most once per recipient per window. It
// reports whether a message was handed to the notifier successfully; delivery
// failures are logged, not returned.
func (s *WelcomeService) Send(ctx context.Context, email, name, locale string) (bool, error) {
	email, err := s.emails.CheckFormat(email)
	if err != nil {
		return false, err
	}
	key := strings.ToLower(email)
	ok, err := s.dedup.Claim(ctx, key, s.now(), s.window)
	if err != nil {
		s.log.Error("welcome claim failed", zap.Error(err))
		return false, NewDependencyError("failed to record welcome email", err)
	}
	if !ok {
		s.log.Debug("welcome email suppressed", zap.String("recipient", key))
		return false, nil
	}
	if s.notifier == nil {
		return false, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = displayNameFromEmail(email)
	}
	id, err := s.notifier.SendWelcome(context.WithoutCancel(ctx), WelcomeMessage{
		To:          email,
		DisplayName: name,
		SiteURL:     s.siteURL,
		Locale:      locale,
	})
	if err != nil {
		s.log.Warn("welcome email failed", zap.String("recipient", key), zap.Error(err))
		return false, nil
	}
	s.log.Info("welcome email sent", zap.String("delivery_id", id))
	return true, nil
}
