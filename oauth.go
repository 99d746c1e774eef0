package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

const (
	googleProvider     = "google"
	googleUserInfoURL  = "https://openidconnect.googleapis.com/v1/userinfo"
	oauthStateIdentity = "oauth_state:google"
	oauthStateTTL      = 10 * time.Minute
)

// errUnverifiedEmail rejects sign-ins that would bind a Google identity to a
// user by an email Google has not verified.
var errUnverifiedEmail = errors.New("google account email is not verified")

type googleUser struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleOAuth runs the authorization-code flow. The state parameter is kept
// as a VerificationToken row and consumed on callback.
type GoogleOAuth struct {
	conf          *oauth2.Config
	db            *gorm.DB
	auth          *Auth
	userInfoURL   string
	loginRedirect string
}

// NewGoogleOAuth returns nil when no client id is configured.
func NewGoogleOAuth(cfg AuthConfig, db *gorm.DB, auth *Auth) *GoogleOAuth {
	if cfg.GoogleClientID == "" {
		return nil
	}
	redirect := cfg.LoginRedirect
	if redirect == "" {
		redirect = "/"
	}
	return &GoogleOAuth{
		conf: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		db:            db,
		auth:          auth,
		userInfoURL:   googleUserInfoURL,
		loginRedirect: redirect,
	}
}

// GET /api/v1/auth/google
func (g *GoogleOAuth) Start() gin.HandlerFunc {
	return func(c *gin.Context) {
		state := uuid.NewString()
		vt := VerificationToken{
			Identifier: oauthStateIdentity,
			Token:      state,
			Expires:    time.Now().Add(oauthStateTTL),
		}
		if err := g.db.WithContext(c.Request.Context()).Create(&vt).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.Redirect(http.StatusFound, g.conf.AuthCodeURL(state, oauth2.AccessTypeOnline))
	}
}

// consumeState deletes the matching unexpired state row. A state can be used
// once.
func (g *GoogleOAuth) consumeState(ctx context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}
	res := g.db.WithContext(ctx).
		Where("identifier = ? AND token = ? AND expires > ?", oauthStateIdentity, state, time.Now()).
		Delete(&VerificationToken{})
	return res.RowsAffected == 1, res.Error
}

// GET /api/v1/auth/google/callback
func (g *GoogleOAuth) Callback() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if e := c.Query("error"); e != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "google sign-in failed: " + e})
			return
		}
		ok, err := g.consumeState(ctx, c.Query("state"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired state"})
			return
		}

		tok, err := g.conf.Exchange(ctx, c.Query("code"))
		if err != nil {
			slog.Warn("OAuth code exchange failed",
				slog.String("type", "auth"),
				slog.String("error", err.Error()))
			c.JSON(http.StatusBadGateway, gin.H{"error": "code exchange failed"})
			return
		}
		info, err := g.fetchUser(ctx, tok)
		if err != nil {
			slog.Warn("OAuth userinfo failed",
				slog.String("type", "auth"),
				slog.String("error", err.Error()))
			c.JSON(http.StatusBadGateway, gin.H{"error": "userinfo failed"})
			return
		}
		if info.Sub == "" || info.Email == "" {
			c.JSON(http.StatusBadGateway, gin.H{"error": "google account has no email"})
			return
		}

		u, err := g.upsertUser(ctx, info, tok)
		if errors.Is(err, errUnverifiedEmail) {
			slog.Warn("OAuth sign-in with unverified email",
				slog.String("type", "auth"),
				slog.String("email", normalizeEmail(info.Email)))
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		if _, err := g.auth.StartSession(c, u); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session create failed"})
			return
		}
		c.Redirect(http.StatusFound, g.loginRedirect)
	}
}

func (g *GoogleOAuth) fetchUser(ctx context.Context, tok *oauth2.Token) (googleUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return googleUser{}, err
	}
	resp, err := g.conf.Client(ctx, tok).Do(req)
	if err != nil {
		return googleUser{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return googleUser{}, fmt.Errorf("userinfo status %d: %s", resp.StatusCode, body)
	}
	var info googleUser
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return googleUser{}, fmt.Errorf("decode userinfo: %w", err)
	}
	return info, nil
}

// upsertUser finds the user by linked account, then by email, and creates
// one when neither exists. Matching by email and the admin_emails promotion
// both require Google to have verified the address. The account row keeps
// the latest tokens.
func (g *GoogleOAuth) upsertUser(ctx context.Context, info googleUser, tok *oauth2.Token) (User, error) {
	var u User
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acct Account
		linked := true
		err := tx.First(&acct, "provider = ? AND provider_account_id = ?", googleProvider, info.Sub).Error
		switch {
		case err == nil:
			if err := tx.First(&u, "id = ?", acct.UserID).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if !info.EmailVerified {
				return errUnverifiedEmail
			}
			email := normalizeEmail(info.Email)
			err := tx.First(&u, "email = ?", email).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				u = User{ID: uuid.NewString(), Email: email, Role: RoleUser}
				if err := tx.Create(&u).Error; err != nil {
					return err
				}
			} else if err != nil {
				return err
			}
			acct = Account{ID: uuid.NewString(), UserID: u.ID, Provider: googleProvider, ProviderAccountID: info.Sub}
			linked = false
		default:
			return err
		}

		if info.Name != "" {
			u.Name = &info.Name
		}
		if info.Picture != "" {
			u.Image = &info.Picture
		}
		if info.EmailVerified && u.EmailVerified == nil {
			now := time.Now()
			u.EmailVerified = &now
		}
		if info.EmailVerified {
			u.Role = g.auth.roleFor(u.Email, u.Role)
		}
		if err := tx.Save(&u).Error; err != nil {
			return err
		}

		acct.AccessToken = tok.AccessToken
		acct.RefreshToken = tok.RefreshToken
		if !tok.Expiry.IsZero() {
			exp := tok.Expiry
			acct.ExpiresAt = &exp
		}
		if !linked {
			return tx.Create(&acct).Error
		}
		return tx.Save(&acct).Error
	})
	return u, err
}
