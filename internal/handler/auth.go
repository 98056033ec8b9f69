package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/robsonsouzans/listans/internal/auth"
	"github.com/robsonsouzans/listans/internal/model"
	"github.com/robsonsouzans/listans/internal/store"
)

// AuthHandler handles signup, login, logout, and identity requests.
type AuthHandler struct {
	gateway *auth.Gateway
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(gateway *auth.Gateway, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		gateway: gateway,
		logger:  logger,
	}
}

// RegisterRoutes registers the auth routes with the router.
func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/auth/signup", h.Signup).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/auth/login", h.Login).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/auth/logout", h.Logout).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/me", h.Me).Methods(http.MethodGet)
}

// signupRequest is the body of a signup request.
type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest is the body of a login request.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// sessionResponse carries the session token and the user it belongs to.
type sessionResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Signup handles POST /api/v1/auth/signup requests.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var input signupRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	user, session, err := h.gateway.Register(r.Context(), input.Name, input.Email, input.Password)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, model.NewSuccessResponse(sessionResponse{
		Token: session.Token,
		User:  user,
	}))
}

// Login handles POST /api/v1/auth/login requests.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input loginRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	user, session, err := h.gateway.Login(r.Context(), input.Email, input.Password)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, model.NewSuccessResponse(sessionResponse{
		Token: session.Token,
		User:  user,
	}))
}

// Logout handles POST /api/v1/auth/logout requests. Logging out an already
// dead session succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r)
	if token != "" {
		h.gateway.Logout(token)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/me requests.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, model.NewSuccessResponse(user))
}

// handleAuthError maps auth failures to HTTP responses.
func (h *AuthHandler) handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrDuplicateEmail):
		writeError(w, h.logger, http.StatusConflict, "an account with this email already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, h.logger, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, model.ErrEmptyName),
		errors.Is(err, model.ErrEmptyEmail),
		errors.Is(err, model.ErrInvalidEmail),
		errors.Is(err, model.ErrPasswordTooWeak):
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("auth operation failed", zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
	}
}
