package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/echoclip/echoclip-api/internal/job"
	"github.com/echoclip/echoclip-api/internal/session"
	"github.com/echoclip/echoclip-api/internal/user"
	"github.com/echoclip/echoclip-api/internal/video"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	users      user.Repository
	sessions   session.Store
	videos     *video.Service
	jobs       *job.Service
	validator  *validator.Validate
	logger     *slog.Logger
	sessionTTL time.Duration
	production bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithProductionCookies switches session cookies to cross-site settings
// (SameSite=None, Secure).
func WithProductionCookies(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.production = enabled
	}
}

// WithSessionTTL overrides the session lifetime used for new logins.
func WithSessionTTL(ttl time.Duration) HandlerOption {
	return func(h *Handlers) {
		h.sessionTTL = ttl
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	users user.Repository,
	sessions session.Store,
	videos *video.Service,
	jobs *job.Service,
	logger *slog.Logger,
	opts ...HandlerOption,
) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		users:      users,
		sessions:   sessions,
		videos:     videos,
		jobs:       jobs,
		validator:  validator.New(),
		logger:     logger,
		sessionTTL: 6 * time.Hour,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Register handles POST /auth/register requests.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeValid[RegisterRequest](h, w, r)
	if !ok {
		return
	}

	u, err := user.New(req.Email, req.Username, req.Password)
	if err != nil {
		h.logger.Error("failed to hash password",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create account", "REGISTRATION_FAILED")
		return
	}

	if err := h.users.Create(r.Context(), u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "email already registered", "EMAIL_TAKEN")
			return
		}
		h.logger.Error("failed to create user",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create account", "REGISTRATION_FAILED")
		return
	}

	h.logger.Info("user registered",
		slog.String("user_id", u.ID),
	)
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "registered"})
}

// Login handles POST /auth/login requests.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeValid[LoginRequest](h, w, r)
	if !ok {
		return
	}

	u, err := h.users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		// Unknown email and wrong password are indistinguishable on purpose.
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid email or password", "BAD_CREDENTIALS")
			return
		}
		h.logger.Error("failed to look up user",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "login failed", "LOGIN_FAILED")
		return
	}

	if err := u.CheckPassword(req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password", "BAD_CREDENTIALS")
		return
	}

	sess, err := h.sessions.Create(r.Context(), u.ID, h.sessionTTL)
	if err != nil {
		h.logger.Error("failed to create session",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "login failed", "LOGIN_FAILED")
		return
	}

	h.setSessionCookie(w, sess.Token, h.sessionTTL)
	h.logger.Info("user logged in",
		slog.String("user_id", u.ID),
	)
	writeJSON(w, http.StatusOK, UserResponse{
		Email:    u.Email,
		Username: u.Username,
		Credit:   u.Credit,
	})
}

// Logout handles POST /auth/logout requests.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Delete(r.Context(), auth.session.Token); err != nil {
		h.logger.Error("failed to delete session",
			slog.String("user_id", auth.user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "logout failed", "LOGOUT_FAILED")
		return
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// Withdraw handles DELETE /auth/withdraw requests. The account and all of
// its sessions are removed.
func (h *Handlers) Withdraw(w http.ResponseWriter, r *http.Request) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	if err := h.sessions.DeleteByUser(r.Context(), auth.user.ID); err != nil {
		h.logger.Error("failed to delete sessions",
			slog.String("user_id", auth.user.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := h.users.Delete(r.Context(), auth.user.ID); err != nil {
		h.logger.Error("failed to delete user",
			slog.String("user_id", auth.user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "withdraw failed", "WITHDRAW_FAILED")
		return
	}

	h.clearSessionCookie(w)
	h.logger.Info("user withdrawn",
		slog.String("user_id", auth.user.ID),
	)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "account deleted"})
}

// Me handles GET /auth/me requests.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{
		Email:    auth.user.Email,
		Username: auth.user.Username,
		Credit:   auth.user.Credit,
	})
}

// CreditAdd handles POST /credit/add requests.
func (h *Handlers) CreditAdd(w http.ResponseWriter, r *http.Request) {
	h.adjustCredit(w, r, 1)
}

// CreditUse handles POST /credit/use requests.
func (h *Handlers) CreditUse(w http.ResponseWriter, r *http.Request) {
	h.adjustCredit(w, r, -1)
}

// adjustCredit applies a signed manual ledger operation.
func (h *Handlers) adjustCredit(w http.ResponseWriter, r *http.Request, sign int) {
	auth, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	req, ok := decodeValid[CreditRequest](h, w, r)
	if !ok {
		return
	}

	balance, err := h.users.AdjustCredit(r.Context(), auth.user.ID, sign*req.Amount)
	if err != nil {
		if errors.Is(err, user.ErrInsufficientCredit) {
			writeError(w, http.StatusPaymentRequired, "insufficient credit", "INSUFFICIENT_CREDIT")
			return
		}
		h.logger.Error("credit adjustment failed",
			slog.String("user_id", auth.user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "credit adjustment failed", "CREDIT_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, CreditResponse{Credit: balance})
}

// decodeValid decodes a JSON body into T and validates it, writing a 400
// on failure.
func decodeValid[T any](h *Handlers, w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return req, false
	}
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return req, false
	}
	return req, true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, detail, code string) {
	writeJSON(w, status, ErrorResponse{
		Detail: detail,
		Code:   code,
	})
}
