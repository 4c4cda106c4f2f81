package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/soaringjerry/Vigil/internal/middleware"
	"github.com/soaringjerry/Vigil/internal/services"
	"github.com/soaringjerry/Vigil/internal/utils"
)

const maxBodyBytes = 1 << 20

type BuildInfo struct {
	Commit    string
	BuildTime string
}

// Deps wires the router. Only Store and Auth are required.
type Deps struct {
	Store          Store
	Auth           *middleware.Authenticator
	Notifier       services.ResultNotifier
	Logger         *zap.Logger
	SiteURL        string
	AdvancedPolicy services.AdvancedPolicy
	TokenTTL       time.Duration
	WelcomeDedup   services.WelcomeDedup
	WelcomeWindow  time.Duration
	CORSOrigins    []string
	// EmailPolicy overrides the default guest email policy when set.
	EmailPolicy *services.EmailPolicy
	Build       BuildInfo
}

type Router struct {
	store       Store
	auth        *middleware.Authenticator
	origins     []string
	log         *zap.Logger
	validate    *validator.Validate
	build       BuildInfo
	evaluations *services.EvaluationService
	accounts    *services.AuthService
	profiles    *services.ProfileService
	welcome     *services.WelcomeService
	exports     *services.ExportService
}

func NewRouter(d Deps) *Router {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if d.Auth == nil {
		d.Auth = middleware.NewAuthenticator("")
	}
	if d.AdvancedPolicy == nil {
		d.AdvancedPolicy = services.AllowAllAdvanced
	}
	if d.WelcomeDedup == nil {
		d.WelcomeDedup = services.NewMemoryDedup()
	}
	opts := []services.EvaluationOption{
		services.WithEvaluationLogger(log.Named("evaluations")),
		services.WithNotifier(d.Notifier),
		services.WithAdvancedPolicy(d.AdvancedPolicy),
		services.WithBaseURL(d.SiteURL),
	}
	if d.EmailPolicy != nil {
		opts = append(opts, services.WithEmailPolicy(d.EmailPolicy))
	}
	evaluations := services.NewEvaluationService(newEvaluationStoreAdapter(d.Store), opts...)
	return &Router{
		store:       d.Store,
		auth:        d.Auth,
		origins:     d.CORSOrigins,
		log:         log,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		build:       d.Build,
		evaluations: evaluations,
		accounts:    services.NewAuthService(newAuthStoreAdapter(d.Store), d.Auth.SignToken, log.Named("auth")).WithTokenTTL(d.TokenTTL),
		profiles:    services.NewProfileService(newProfileStoreAdapter(d.Store), log.Named("profiles")),
		welcome:     services.NewWelcomeService(d.WelcomeDedup, d.Notifier, d.SiteURL, d.WelcomeWindow, log.Named("welcome")),
		exports:     services.NewExportService(evaluations),
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	authed := func(h http.HandlerFunc) http.Handler { return middleware.RequireAuth(h) }

	mux.HandleFunc("POST /api/evaluations/guest", rt.handleGuestEvaluation)
	// The authenticated endpoints answer 401 themselves so the body keeps the {error} shape.
	mux.HandleFunc("POST /api/evaluations", rt.handleCreateEvaluation)
	mux.HandleFunc("GET /api/evaluations", rt.handleListEvaluations)
	mux.Handle("GET /api/evaluations/export", authed(rt.handleExport))
	mux.HandleFunc("GET /api/evaluations/{id}", rt.handleGetEvaluation)

	mux.HandleFunc("POST /api/auth/register", rt.handleRegister)
	mux.HandleFunc("POST /api/auth/login", rt.handleLogin)
	mux.Handle("GET /api/profile", authed(rt.handleProfile))
	mux.Handle("PUT /api/profiles/{id}/role", authed(rt.handleSetRole))

	mux.HandleFunc("POST /api/emails/welcome", rt.handleWelcome)

	mux.HandleFunc("GET /health", rt.handleHealth)
	mux.HandleFunc("GET /version", rt.handleVersion)
}

// Handler returns the fully wrapped API handler.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	rt.Register(mux)
	return middleware.Chain(mux,
		middleware.WithLogging(rt.log.Named("http")),
		middleware.CORS(rt.origins),
		middleware.SecureHeaders,
		middleware.LocaleMiddleware,
		rt.auth.WithAuth,
	)
}

// --- Evaluations ---

type interestDTO struct {
	Reason      string `json:"reason" validate:"max=200"`
	OtherReason string `json:"otherReason" validate:"max=1000"`
}

type guestEvaluationRequest struct {
	Email    string         `json:"email"`
	Type     string         `json:"type" validate:"max=16"`
	Title    string         `json:"title" validate:"max=200"`
	Answers  map[string]int `json:"answers" validate:"required"`
	Interest *interestDTO   `json:"interest"`
}

func (rt *Router) handleGuestEvaluation(w http.ResponseWriter, r *http.Request) {
	var req guestEvaluationRequest
	if err := rt.decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}
	var interest *services.Interest
	if req.Interest != nil {
		interest = &services.Interest{Reason: req.Interest.Reason, OtherReason: req.Interest.OtherReason}
	}
	locale := middleware.LocaleFromContext(r.Context())
	receipt, err := rt.evaluations.SubmitGuest(r.Context(), services.GuestSubmission{
		Email:    req.Email,
		Type:     req.Type,
		Title:    req.Title,
		Answers:  req.Answers,
		Interest: interest,
		Locale:   locale,
	})
	if err != nil {
		status, body := errorBody(err, "message")
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    utils.T(locale, "evaluation.guest.created"),
		"evaluation": receipt,
	})
}

type createEvaluationRequest struct {
	Type    string         `json:"type" validate:"max=16"`
	Title   string         `json:"title" validate:"max=200"`
	Answers map[string]int `json:"answers" validate:"required"`
	UserID  string         `json:"userId"`
}

func (rt *Router) handleCreateEvaluation(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(r)
	if sess == nil {
		writeError(w, services.NewUnauthorizedError("authentication required"))
		return
	}
	var req createEvaluationRequest
	if err := rt.decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	ev, err := rt.evaluations.Submit(r.Context(), sess, services.Submission{
		Type: req.Type, Title: req.Title, Answers: req.Answers, UserID: req.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"evaluation": newEvaluationView(ev)})
}

func (rt *Router) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	list, err := rt.evaluations.ListHistory(r.Context(), sessionFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]evaluationView, 0, len(list))
	for _, ev := range list {
		out = append(out, newEvaluationView(ev))
	}
	writeJSON(w, http.StatusOK, map[string]any{"evaluations": out})
}

// GET /api/evaluations/{id}?code=... for guests, or with a session for owners.
func (rt *Router) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if code := r.URL.Query().Get("code"); code != "" {
		ev, err := rt.evaluations.GetGuestResult(r.Context(), id, code)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"evaluation": newGuestResultView(ev)})
		return
	}
	ev, err := rt.evaluations.GetForSession(r.Context(), sessionFromRequest(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"evaluation": newEvaluationView(ev)})
}

// GET /api/evaluations/export?format=summary|answers
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := rt.exports.ExportCSV(r.Context(), sessionFromRequest(r), services.ExportParams{Format: r.URL.Query().Get("format")})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+res.Filename)
	_, _ = w.Write(res.Data)
}

// --- Accounts ---

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	DisplayName string `json:"displayName" validate:"max=120"`
}

func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := rt.decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	res, err := rt.accounts.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := rt.welcome.Send(r.Context(), req.Email, req.DisplayName, middleware.LocaleFromContext(r.Context())); err != nil {
		rt.log.Warn("welcome after registration failed", zap.String("user_id", res.UserID), zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, res)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := rt.decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	res, err := rt.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (rt *Router) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := rt.profiles.Me(r.Context(), sessionFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": p})
}

type roleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (rt *Router) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := rt.decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	p, err := rt.profiles.SetRole(r.Context(), sessionFromRequest(r), r.PathValue("id"), req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": p})
}

type welcomeRequest struct {
	Email string `json:"email" validate:"required"`
	Name  string `json:"name" validate:"max=120"`
}

func (rt *Router) handleWelcome(w http.ResponseWriter, r *http.Request) {
	var req welcomeRequest
	if err := rt.decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	sent, err := rt.welcome.Send(r.Context(), req.Email, req.Name, middleware.LocaleFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": sent})
}

// --- Ops ---

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	ok := true
	if err := rt.store.Ping(r.Context()); err != nil {
		rt.log.Error("health: store ping failed", zap.Error(err))
		ok = false
	}
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"ok":        ok,
		"name":      "Vigil API",
		"locale":    locale,
		"msg":       utils.T(locale, "health.ok"),
		"commit":    rt.build.Commit,
		"buildTime": rt.build.BuildTime,
	})
}

func (rt *Router) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"commit": rt.build.Commit, "buildTime": rt.build.BuildTime})
}

// --- helpers ---

var errMalformedJSON = errors.New("invalid JSON body")

func (rt *Router) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errMalformedJSON
	}
	if err := rt.validate.Struct(dst); err != nil {
		return validationMessage(err)
	}
	return nil
}

func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return errors.New(field + " is required")
	case "email":
		return errors.New(field + " is not a valid address")
	case "min":
		return errors.New(field + " must be at least " + fe.Param() + " characters")
	case "max":
		return errors.New(field + " must be at most " + fe.Param() + " characters")
	default:
		return errors.New(field + " is invalid")
	}
}

func sessionFromRequest(r *http.Request) *services.Session {
	c, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil
	}
	return &services.Session{UserID: c.UID, Email: c.Email}
}

func statusFor(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid:
		return http.StatusBadRequest
	case services.ErrorUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorForbidden:
		return http.StatusForbidden
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorBody maps err to a status and a client-safe body under key.
func errorBody(err error, key string) (int, map[string]any) {
	se, ok := services.AsServiceError(err)
	if !ok {
		return http.StatusInternalServerError, map[string]any{key: "internal error"}
	}
	body := map[string]any{key: se.Message}
	if se.Reason != "" {
		body["reason"] = se.Reason
	}
	return statusFor(se.Code), body
}

func writeError(w http.ResponseWriter, err error) {
	status, body := errorBody(err, "error")
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
