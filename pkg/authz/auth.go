package authz

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/db"
)

type AuthzApp struct {
	DB *gorm.DB
}

func (a *AuthzApp) RegisterRoutes(r *gin.Engine) {
	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/login", a.HandleLogin)
		authGroup.POST("/logout", a.HandleLogout)
		authGroup.POST("/change-password", a.HandleChangePassword)
		authGroup.GET("/me", a.HandleMe)
	}
}

func (a *AuthzApp) Init() {
	// Create default admin user if no users exist
	var userCount int64
	a.DB.Model(&db.User{}).Count(&userCount)
	if userCount == 0 {
		if err := a.CreateDefaultAdmin(); err != nil {
			log.Fatalf("Failed to create default admin user: %v", err)
		}
		log.Info("Created default admin user: admin / admin")
	}
}

// HashPassword hashes a plaintext password using bcrypt
func (a *AuthzApp) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a plaintext password with a hash
func (a *AuthzApp) CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateSessionToken generates a secure random session token
func (a *AuthzApp) GenerateSessionToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// CreateDefaultAdmin creates a default admin user
func (a *AuthzApp) CreateDefaultAdmin() error {
	hash, err := a.HashPassword("admin")
	if err != nil {
		return err
	}

	user := db.User{
		Username:     "admin",
		Email:        "admin@localhost",
		PasswordHash: hash,
		Role:         "admin",
	}

	return a.DB.Create(&user).Error
}

// AuthenticateUser authenticates a user with username/password
func (a *AuthzApp) AuthenticateUser(username, password string) (*db.User, error) {
	var user db.User
	err := a.DB.Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}

	if !a.CheckPassword(password, user.PasswordHash) {
		return nil, nil
	}

	return &user, nil
}

// CreateSession creates a new session for a user
func (a *AuthzApp) CreateSession(userID uint) (*db.UserSession, error) {
	token, err := a.GenerateSessionToken()
	if err != nil {
		return nil, err
	}

	session := db.UserSession{
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}

	err = a.DB.Create(&session).Error
	if err != nil {
		return nil, err
	}

	return &session, nil
}

// GetSessionByToken retrieves a non-expired session by token
func (a *AuthzApp) GetSessionByToken(token string) (*db.UserSession, error) {
	var session db.UserSession
	err := a.DB.Preload("User").Where("token = ? AND expires_at > ?", token, time.Now()).First(&session).Error
	if err != nil {
		return nil, err
	}

	return &session, nil
}

// DeleteSession deletes a session by token
func (a *AuthzApp) DeleteSession(token string) error {
	return a.DB.Where("token = ?", token).Delete(&db.UserSession{}).Error
}

// ChangePassword changes a user's password
func (a *AuthzApp) ChangePassword(userID uint, newPassword string) error {
	hash, err := a.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return a.DB.Model(&db.User{}).Where("id = ?", userID).Update("password_hash", hash).Error
}

// CleanupExpiredSessions removes expired sessions
func (a *AuthzApp) CleanupExpiredSessions() error {
	return a.DB.Where("expires_at < ?", time.Now()).Delete(&db.UserSession{}).Error
}

// Middleware

// AuthMiddleware attaches the authenticated user to the context when a
// valid session cookie is present; anonymous requests pass through.
func (a *AuthzApp) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionToken, err := c.Cookie("session_token")
		if err != nil {
			c.Next()
			return
		}

		session, err := a.GetSessionByToken(sessionToken)
		if err != nil {
			c.Next()
			return
		}

		c.Set("authenticated_user", &session.User)
		c.Next()
	}
}

// RequireAuth middleware that requires authentication
func (a *AuthzApp) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := c.Get("authenticated_user")
		if !exists || user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin middleware that requires an authenticated admin user
func (a *AuthzApp) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetCurrentUser(c)
		if !ok || user.Role != "admin" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetCurrentUser helper function to get the current authenticated user
func GetCurrentUser(c *gin.Context) (*db.User, bool) {
	user, exists := c.Get("authenticated_user")
	if !exists {
		return nil, false
	}
	if u, ok := user.(*db.User); ok {
		return u, true
	}
	return nil, false
}

// Route handlers

// HandleLogin handles login requests
func (a *AuthzApp) HandleLogin(c *gin.Context) {
	type LoginRequest struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing username or password"})
		return
	}

	user, err := a.AuthenticateUser(req.Username, req.Password)
	if err != nil || user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	session, err := a.CreateSession(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.SetCookie("session_token", session.Token, 24*60*60, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// HandleLogout handles logout requests
func (a *AuthzApp) HandleLogout(c *gin.Context) {
	sessionToken, err := c.Cookie("session_token")
	if err == nil && sessionToken != "" {
		a.DeleteSession(sessionToken)
	}

	c.SetCookie("session_token", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleMe returns the current authenticated user
func (a *AuthzApp) HandleMe(c *gin.Context) {
	user, ok := GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// HandleChangePassword handles password change requests
func (a *AuthzApp) HandleChangePassword(c *gin.Context) {
	type ChangePasswordRequest struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}

	user, ok := GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing current password or new password"})
		return
	}

	if !a.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Current password is incorrect"})
		return
	}

	if len(req.NewPassword) < 4 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "New password must be at least 4 characters"})
		return
	}

	if err := a.ChangePassword(user.ID, req.NewPassword); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password changed successfully"})
}
