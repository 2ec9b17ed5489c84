package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dispatch/internal/auth"
	"dispatch/internal/middleware"
	"dispatch/internal/service"
)

// AuthHandler handles sign-up, sign-in and sign-out.
type AuthHandler struct {
	accounts   *auth.AccountService
	provider   auth.Provider
	sessions   *service.SessionRegistry
	cookieName string
	cookieTTL  time.Duration
	log        *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(
	accounts *auth.AccountService,
	provider auth.Provider,
	sessions *service.SessionRegistry,
	cookieName string,
	cookieTTL time.Duration,
	log *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		accounts:   accounts,
		provider:   provider,
		sessions:   sessions,
		cookieName: cookieName,
		cookieTTL:  cookieTTL,
		log:        log,
	}
}

// SignUpRequest is the HTTP request body for creating an account.
type SignUpRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// LoginRequest is the HTTP request body for signing in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a session token.
type TokenResponse struct {
	Token string `json:"token"`
}

// SignUp handles POST /v1/auth/signup
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.accounts.SignUp(c.Request.Context(), auth.SignUpRequest{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSessionCookie(c, token)
	respondJSON(c, http.StatusCreated, TokenResponse{Token: token})
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.accounts.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSessionCookie(c, token)
	respondJSON(c, http.StatusOK, TokenResponse{Token: token})
}

// Logout handles POST /v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	session := middleware.GetSession(c)

	if err := h.provider.SignOut(c.Request.Context(), middleware.GetToken(c)); err != nil {
		h.log.Error("failed to sign out", zap.String("request_id", middleware.GetRequestID(c)), zap.Error(err))
		respondError(c, err)
		return
	}

	if session != nil {
		h.sessions.Close(session.ID)
	}

	c.SetCookie(h.cookieName, "", -1, "/", "", false, true)
	respondJSON(c, http.StatusOK, MessageResponse{Message: "Signed out"})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, token, int(h.cookieTTL.Seconds()), "/", "", false, true)
}
