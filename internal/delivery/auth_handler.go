package delivery

import (
	"net/http"
	"triage_service/internal/domain"
	"triage_service/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AuthHandler struct {
	auth domain.AuthUseCase
	log  *logrus.Logger
}

func NewAuthHandler(auth domain.AuthUseCase, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: logger}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"omitempty,cn_mobile"`
}

type LoginRequest struct {
	// Identifier is an email address or a mobile number.
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type SessionResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *AuthHandler) RegisterRoutes(router gin.IRouter, requireSession gin.HandlerFunc) {
	auth := router.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/logout", requireSession, h.Logout)
		auth.GET("/session", requireSession, h.Session)
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	handlerLogger := h.log.WithField("handler", "Register")
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, handlerLogger, "Invalid request body", err)
		return
	}
	handlerLogger.Infof("Processing registration for email: %s", req.Email)

	sess, err := h.auth.Register(c.Request.Context(), domain.RegisterCredentials{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		respondError(c, handlerLogger, err)
		return
	}

	handlerLogger.Infof("Registration successful for UserID: %s", sess.UserID())
	c.JSON(http.StatusCreated, SessionResponse{Token: sess.Token, User: sess.User})
}

func (h *AuthHandler) Login(c *gin.Context) {
	handlerLogger := h.log.WithField("handler", "Login")
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, handlerLogger, "Invalid request body", err)
		return
	}
	handlerLogger.Infof("Processing login request for identifier: %s", req.Identifier)

	sess, err := h.auth.Login(c.Request.Context(), domain.LoginCredentials{
		Identifier: req.Identifier,
		Password:   req.Password,
	})
	if err != nil {
		respondError(c, handlerLogger, err)
		return
	}

	handlerLogger.Infof("Authentication successful for UserID: %s", sess.UserID())
	c.JSON(http.StatusOK, SessionResponse{Token: sess.Token, User: sess.User})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	handlerLogger := h.log.WithField("handler", "Logout")
	sess := middleware.SessionFromContext(c)
	if err := h.auth.Logout(c.Request.Context(), sess.Token); err != nil {
		respondError(c, handlerLogger, err)
		return
	}
	handlerLogger.Infof("Logout successful for UserID: %s", sess.UserID())
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Session(c *gin.Context) {
	sess := middleware.SessionFromContext(c)
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": sess.User})
}
