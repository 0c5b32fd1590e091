package api

import (
	"net/http"

	"ashteams-intelligence/backend/internal/models"
	"ashteams-intelligence/backend/internal/service"
	"ashteams-intelligence/backend/pkg/logger"
	"ashteams-intelligence/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles registration, login and account lookup
type AuthHandler struct {
	service *service.UserService
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService *service.UserService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{service: userService, logger: log}
}

// RegisterRoutes registers the auth routes on the given group
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.POST("/logout", h.Logout)
	rg.GET("/user", middleware.RequireAuth(), h.CurrentUser)
}

// Register creates an account and returns it with an access token
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email and password are required"})
		return
	}

	user, token, err := h.service.Register(&req)
	if err != nil {
		switch err {
		case service.ErrUserAlreadyExists:
			c.JSON(http.StatusConflict, gin.H{"message": "A user with this email already exists"})
		default:
			h.logger.Error("Error registering user", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create account"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":  user.ToResponse(),
		"token": token,
	})
}

// Login authenticates a user and returns an access token
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email and password are required"})
		return
	}

	user, token, err := h.service.Login(&req)
	if err != nil {
		switch err {
		case service.ErrInvalidCredentials:
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password"})
		default:
			h.logger.Error("Error logging in", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to log in"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  user.ToResponse(),
		"token": token,
	})
}

// Logout is a no-op server side; tokens expire on their own
func (h *AuthHandler) Logout(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// CurrentUser returns the authenticated user's account
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	userID := middleware.AuthenticatedUserID(c)

	user, err := h.service.GetUserByID(userID)
	if err != nil {
		if err == service.ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		h.logger.Error("Error fetching user", "userId", userID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch user"})
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}
