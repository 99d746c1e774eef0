package main

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type MeResponse struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name,omitempty"`
	Image *string `json:"image,omitempty"`
	Role  string  `json:"role"`
}

func meFrom(u User) MeResponse {
	return MeResponse{ID: u.ID, Email: u.Email, Name: u.Name, Image: u.Image, Role: u.Role}
}

// POST /api/v1/auth/login
func Login(auth *Auth) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginReq
		if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
			return
		}
		u, err := auth.Authenticate(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				slog.Warn("Login failed",
					slog.String("type", "auth"),
					slog.String("ip", c.ClientIP()))
				c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		token, err := auth.StartSession(c, u)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session create failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": meFrom(u)})
	}
}

// POST /api/v1/auth/logout
func Logout(auth *Auth) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := sessionToken(c); token != "" {
			if err := auth.Revoke(c.Request.Context(), token); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
				return
			}
		}
		auth.clearSessionCookie(c)
		c.JSON(http.StatusOK, gin.H{"status": "logged out"})
	}
}

// GET /api/v1/me
func GetMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := currentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no user"})
			return
		}
		c.JSON(http.StatusOK, meFrom(u))
	}
}
