package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrAccessCodeTaken is returned by InsertEvaluation when the access code
// collides with an existing row's unique index.
var ErrAccessCodeTaken = errors.New("access code already in use")

// accessCodeAttempts bounds regeneration after a collision.
const accessCodeAttempts = 3

// EvaluationStore abstracts persistence operations required by EvaluationService.
// Getters return (nil, nil) when the row does not exist.
type EvaluationStore interface {
	InsertEvaluation(ctx context.Context, ev *Evaluation) error
	GetEvaluation(ctx context.Context, id string) (*Evaluation, error)
	ListEvaluationsByProfile(ctx context.Context, profileID string) ([]*Evaluation, error)
	GetProfileByUserID(ctx context.Context, userID string) (*Profile, error)
}

// Session is the caller identity resolved from a bearer token.
type Session struct {
	UserID string
	Email  string
}

// AdvancedPolicy decides whether a role may take the ADVANCED evaluation.
type AdvancedPolicy func(Role) bool

// AllowAllAdvanced is the current product behavior: every signed-in profile qualifies.
func AllowAllAdvanced(Role) bool { return true }

// PremiumOnlyAdvanced restricts ADVANCED to paying and admin profiles.
func PremiumOnlyAdvanced(r Role) bool { return r == RolePremium || r == RoleSuperadmin }

// ParseAdvancedPolicy maps a config value ("all" or "premium") to a policy.
func ParseAdvancedPolicy(name string) (AdvancedPolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "all":
		return AllowAllAdvanced, true
	case "premium":
		return PremiumOnlyAdvanced, true
	default:
		return nil, false
	}
}

// GuestSubmission transports the sanitized handler input into the service layer.
type GuestSubmission struct {
	Email    string
	Type     string
	Title    string
	Answers  map[string]int
	Interest *Interest
	Locale   string
}

// GuestReceipt is the public part of a guest evaluation. Answers and metadata
// are never part of it.
type GuestReceipt struct {
	ID         string         `json:"id"`
	Type       EvaluationType `json:"type"`
	Score      int            `json:"score"`
	AccessCode string         `json:"accessCode"`
}

type Submission struct {
	Type    string
	Title   string
	Answers map[string]int
	// UserID is optional; when present it must match the session.
	UserID string
}

type EvaluationOption func(*EvaluationService)

func WithEvaluationLogger(l *zap.Logger) EvaluationOption {
	return func(s *EvaluationService) { s.log = l }
}

func WithNotifier(n ResultNotifier) EvaluationOption {
	return func(s *EvaluationService) { s.notifier = n }
}

func WithAdvancedPolicy(p AdvancedPolicy) EvaluationOption {
	return func(s *EvaluationService) { s.advanced = p }
}

func WithBaseURL(base string) EvaluationOption {
	return func(s *EvaluationService) { s.baseURL = strings.TrimRight(base, "/") }
}

func WithEmailPolicy(p *EmailPolicy) EvaluationOption {
	return func(s *EvaluationService) { s.emails = p }
}

// EvaluationService hosts the guest and authenticated evaluation workflows.
type EvaluationService struct {
	store    EvaluationStore
	notifier ResultNotifier
	emails   *EmailPolicy
	advanced AdvancedPolicy
	baseURL  string
	log      *zap.Logger
	now      func() time.Time
	idGen    func() string
	codeGen  func() string
}

func NewEvaluationService(store EvaluationStore, opts ...EvaluationOption) *EvaluationService {
	s := &EvaluationService{
		store:    store,
		emails:   NewEmailPolicy(),
		advanced: AllowAllAdvanced,
		log:      zap.NewNop(),
		now:      func() time.Time { return time.Now().UTC() },
		idGen:    uuid.NewString,
		codeGen:  GenerateAccessCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitGuest validates, scores and stores an unauthenticated submission, then
// emails the results link. Email failures are logged and never fail the call.
func (s *EvaluationService) SubmitGuest(ctx context.Context, req GuestSubmission) (*GuestReceipt, error) {
	email, err := s.emails.Check(req.Email)
	if err != nil {
		return nil, err
	}
	typ, ok := ParseEvaluationType(req.Type)
	if !ok {
		return nil, NewInvalidError("type must be INITIAL or ADVANCED")
	}
	if req.Answers == nil {
		return nil, NewInvalidError("answers are required")
	}
	score, err := Score(req.Answers)
	if err != nil {
		return nil, err
	}

	ev := &Evaluation{
		ID:        s.idGen(),
		Type:      typ,
		Title:     titleOrDefault(req.Title, typ),
		Answers:   copyAnswers(req.Answers),
		Score:     score,
		CreatedAt: s.now(),
	}
	if in := normalizeInterest(req.Interest); in != nil {
		ev.Metadata = &Metadata{Interest: in}
	}

	var code string
	for attempt := 1; ; attempt++ {
		code = s.codeGen()
		ev.Owner = GuestOwner{Email: email, AccessCode: code}
		err := s.store.InsertEvaluation(ctx, ev)
		if err == nil {
			break
		}
		if errors.Is(err, ErrAccessCodeTaken) && attempt < accessCodeAttempts {
			s.log.Warn("access code collision, regenerating", zap.String("evaluation_id", ev.ID), zap.Int("attempt", attempt))
			continue
		}
		s.log.Error("guest evaluation insert failed", zap.String("evaluation_id", ev.ID), zap.Error(err))
		return nil, NewDependencyError("failed to save evaluation", err)
	}
	s.log.Info("guest evaluation created",
		zap.String("evaluation_id", ev.ID),
		zap.String("type", string(typ)),
		zap.Int("score", ev.Score),
	)

	s.notifyResults(ctx, ev, email, code, req.Locale)

	return &GuestReceipt{ID: ev.ID, Type: ev.Type, Score: ev.Score, AccessCode: code}, nil
}

func (s *EvaluationService) notifyResults(ctx context.Context, ev *Evaluation, email, code, locale string) {
	if s.notifier == nil {
		return
	}
	// the request may already be finishing; delivery should not be cut short by it
	ctx = context.WithoutCancel(ctx)
	msg := ResultMessage{
		To:           email,
		DisplayName:  displayNameFromEmail(email),
		EvaluationID: ev.ID,
		AccessCode:   code,
		Type:         ev.Type,
		Score:        ev.Score,
		ResultsURL:   s.ResultsURL(ev.ID, code),
		Locale:       locale,
	}
	deliveryID, err := s.notifier.SendResults(ctx, msg)
	if err != nil {
		s.log.Warn("results email failed", zap.String("evaluation_id", ev.ID), zap.Error(err))
		return
	}
	s.log.Info("results email sent", zap.String("evaluation_id", ev.ID), zap.String("delivery_id", deliveryID))
}

// ResultsURL builds the guest results link: {base}/results/{id}?code={code}.
func (s *EvaluationService) ResultsURL(id, code string) string {
	return s.baseURL + "/results/" + url.PathEscape(id) + "?code=" + url.QueryEscape(code)
}

// Submit stores an evaluation owned by the caller's profile.
func (s *EvaluationService) Submit(ctx context.Context, sess *Session, req Submission) (*Evaluation, error) {
	if sess == nil || sess.UserID == "" {
		return nil, NewUnauthorizedError("authentication required")
	}
	if req.UserID != "" && req.UserID != sess.UserID {
		return nil, NewForbiddenError("userId does not match the session")
	}
	typ, ok := ParseEvaluationType(req.Type)
	if !ok {
		return nil, NewInvalidError("type must be INITIAL or ADVANCED")
	}
	if req.Answers == nil {
		return nil, NewInvalidError("answers are required")
	}
	score, err := Score(req.Answers)
	if err != nil {
		return nil, err
	}

	profile, err := s.resolveProfile(ctx, sess)
	if err != nil {
		return nil, err
	}
	if typ == EvaluationAdvanced && !s.advanced(profile.Role) {
		return nil, NewForbiddenError("advanced evaluation requires a premium subscription")
	}

	ev := &Evaluation{
		ID:        s.idGen(),
		Type:      typ,
		Title:     titleOrDefault(req.Title, typ),
		Answers:   copyAnswers(req.Answers),
		Score:     score,
		Owner:     ProfileOwner{ProfileID: profile.ID},
		CreatedAt: s.now(),
	}
	if err := s.store.InsertEvaluation(ctx, ev); err != nil {
		s.log.Error("evaluation insert failed", zap.String("profile_id", profile.ID), zap.Error(err))
		return nil, NewDependencyError("failed to save evaluation", err)
	}
	s.log.Info("evaluation created",
		zap.String("evaluation_id", ev.ID),
		zap.String("profile_id", profile.ID),
		zap.String("type", string(typ)),
		zap.Int("score", ev.Score),
	)
	return ev, nil
}

// ListHistory returns the caller's evaluations, newest first. Only PREMIUM and
// SUPERADMIN profiles may read history.
func (s *EvaluationService) ListHistory(ctx context.Context, sess *Session) ([]*Evaluation, error) {
	if sess == nil || sess.UserID == "" {
		return nil, NewUnauthorizedError("authentication required")
	}
	profile, err := s.resolveProfile(ctx, sess)
	if err != nil {
		return nil, err
	}
	if !profile.Role.HasHistoryAccess() {
		return nil, NewForbiddenError("evaluation history requires a premium subscription")
	}
	list, err := s.store.ListEvaluationsByProfile(ctx, profile.ID)
	if err != nil {
		s.log.Error("evaluation history query failed", zap.String("profile_id", profile.ID), zap.Error(err))
		return nil, NewDependencyError("failed to load evaluations", err)
	}
	out := make([]*Evaluation, 0, len(list))
	for _, ev := range list {
		if ev.OwnedBy(profile.ID) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// GetGuestResult authorizes a results read by access code.
func (s *EvaluationService) GetGuestResult(ctx context.Context, id, code string) (*Evaluation, error) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(code) == "" {
		return nil, NewInvalidError("id/code required")
	}
	if !IsAccessCode(code) {
		return nil, NewForbiddenError("invalid access code")
	}
	ev, err := s.store.GetEvaluation(ctx, id)
	if err != nil {
		return nil, NewDependencyError("failed to load evaluation", err)
	}
	if ev == nil {
		return nil, NewNotFoundError("evaluation not found")
	}
	stored := ev.AccessCode()
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return nil, NewForbiddenError("invalid access code")
	}
	return ev, nil
}

// GetForSession returns an evaluation the caller owns. SUPERADMIN may read any.
func (s *EvaluationService) GetForSession(ctx context.Context, sess *Session, id string) (*Evaluation, error) {
	if sess == nil || sess.UserID == "" {
		return nil, NewUnauthorizedError("authentication required")
	}
	profile, err := s.resolveProfile(ctx, sess)
	if err != nil {
		return nil, err
	}
	ev, err := s.store.GetEvaluation(ctx, id)
	if err != nil {
		return nil, NewDependencyError("failed to load evaluation", err)
	}
	if ev == nil {
		return nil, NewNotFoundError("evaluation not found")
	}
	if !ev.OwnedBy(profile.ID) && profile.Role != RoleSuperadmin {
		return nil, NewForbiddenError("forbidden")
	}
	return ev, nil
}

func (s *EvaluationService) resolveProfile(ctx context.Context, sess *Session) (*Profile, error) {
	profile, err := s.store.GetProfileByUserID(ctx, sess.UserID)
	if err != nil {
		s.log.Error("profile lookup failed", zap.String("user_id", sess.UserID), zap.Error(err))
		return nil, NewDependencyError("failed to load profile", err)
	}
	if profile == nil {
		return nil, NewNotFoundError("profile not found")
	}
	return profile, nil
}

func titleOrDefault(title string, typ EvaluationType) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return typ.DefaultTitle()
}

func normalizeInterest(in *Interest) *Interest {
	if in == nil {
		return nil
	}
	out := &Interest{Reason: strings.TrimSpace(in.Reason), OtherReason: strings.TrimSpace(in.OtherReason)}
	if out.Reason == "" && out.OtherReason == "" {
		return nil
	}
	return out
}

func copyAnswers(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func displayNameFromEmail(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
