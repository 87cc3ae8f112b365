package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/alouzou/sondage/backend/internal/httputil"
	"github.com/alouzou/sondage/backend/internal/models"
	"github.com/alouzou/sondage/backend/internal/store"
	"github.com/alouzou/sondage/backend/internal/validation"
)

// bcrypt ignores input past this many bytes and rejects longer passwords.
const maxPasswordBytes = 72

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	SetUserRoles(ctx context.Context, id int64, roles []string) error
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Sessions is the login session backend; SessionStore implements it on Redis.
type Sessions interface {
	Create(ctx context.Context, p Principal) (string, error)
	Get(ctx context.Context, sessionID string) (*Principal, error)
	Delete(ctx context.Context, sessionID string) error
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	users    UserStore
	sessions Sessions
	tokens   *TokenIssuer
	validate *validation.Validator
	log      *slog.Logger
}

func NewHandler(users UserStore, sessions Sessions, tokens *TokenIssuer, log *slog.Logger) *Handler {
	return &Handler{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		validate: validation.New(),
		log:      log.With("component", "auth"),
	}
}

// Register creates a new CREATOR or PARTICIPANT account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.valid(w, &req) {
		return
	}
	if len(req.Password) > maxPasswordBytes {
		httputil.WriteValidationError(w, validation.Field("password", "max"))
		return
	}
	role := RoleParticipant
	if req.Role != "" {
		role = Role(req.Role)
	}

	user, err := createUser(r.Context(), h.users, req.Username, req.Email, req.Password, role)
	if errors.Is(err, store.ErrDuplicate) {
		httputil.WriteError(w, http.StatusConflict, "username or email already registered")
		return
	}
	if err != nil {
		h.log.Error("register failed", "username", req.Username, "err", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.log.Info("user registered", "username", user.Username, "role", role)
	httputil.WriteJSON(w, http.StatusCreated, user)
}

// valid writes the 400 response and reports false when req is rejected.
func (h *Handler) valid(w http.ResponseWriter, req any) bool {
	err := h.validate.Struct(req)
	if err == nil {
		return true
	}
	var verr *validation.Error
	if errors.As(err, &verr) {
		httputil.WriteValidationError(w, verr)
	} else {
		h.log.Error("validation failed", "err", err)
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
	}
	return false
}

// Login authenticates a user, opens a session and issues a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.valid(w, &req) {
		return
	}

	user, err := h.users.FindUserByUsername(r.Context(), req.Username)
	if err != nil {
		h.log.Error("login lookup failed", "username", req.Username, "err", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	principal := PrincipalFromUser(user)
	sid, err := h.sessions.Create(r.Context(), principal)
	if err != nil {
		h.log.Error("session creation failed", "username", user.Username, "err", err)
		httputil.WriteError(w, http.StatusInternalServerError, "session creation failed")
		return
	}
	token, exp, err := h.tokens.Issue(principal)
	if err != nil {
		h.log.Error("token issue failed", "username", user.Username, "err", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionTTL / time.Second),
	})

	httputil.WriteJSON(w, http.StatusOK, models.LoginResponse{User: user, Token: token, ExpiresAt: exp})
}

// Logout destroys the current session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
			h.log.Warn("session delete failed", "err", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me returns the currently authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := h.users.FindUserByUsername(r.Context(), p.Username)
	if err != nil {
		h.log.Error("me lookup failed", "username", p.Username, "err", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// EnsureAdmin creates the bootstrap administrator, or grants ADMIN to an
// existing account with that username. It reports whether anything changed.
func EnsureAdmin(ctx context.Context, users UserStore, username, email, password string) (bool, error) {
	existing, err := users.FindUserByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	if existing != nil {
		if PrincipalFromUser(existing).HasRole(RoleAdmin) {
			return false, nil
		}
		roles := append(append([]string{}, existing.Roles...), string(RoleAdmin))
		if err := users.SetUserRoles(ctx, existing.ID, roles); err != nil {
			return false, err
		}
		return true, nil
	}

	if email == "" {
		email = username + "@localhost"
	}
	if _, err := createUser(ctx, users, username, email, password, RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}

func createUser(ctx context.Context, users UserStore, username, email, password string, role Role) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return users.CreateUser(ctx, &models.User{
		Username: username,
		Email:    email,
		Password: string(hashed),
		Roles:    []string{string(role)},
	})
}
