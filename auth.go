package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	sessionCookieName = "qd_session"
	sessionCacheSize  = 1024
	// sessionRecheck bounds how long a cached session is trusted before the
	// Session and User rows are read again.
	sessionRecheck = time.Minute

	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidSession     = errors.New("invalid or expired session")
)

// SessionClaims is the payload of the signed session token. The token id is
// the SessionToken of the backing Session row.
type SessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type cachedSession struct {
	user    User
	expires time.Time
	checked time.Time
}

// Auth issues and verifies sessions. Tokens are HS256 JWTs; every token
// must also match a live Session row so logout revokes it.
type Auth struct {
	db            *gorm.DB
	secret        []byte
	ttl           time.Duration
	secureCookies bool
	adminEmails   map[string]bool
	sessions      *lru.Cache
	now           func() time.Time
}

func NewAuth(db *gorm.DB, cfg AuthConfig, secureCookies bool) (*Auth, error) {
	if len(cfg.Secret) < 16 {
		return nil, fmt.Errorf("auth: secret must be at least 16 characters")
	}
	cache, err := lru.New(sessionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("auth: session cache: %w", err)
	}
	admins := make(map[string]bool, len(cfg.AdminEmails))
	for _, e := range cfg.AdminEmails {
		if e = normalizeEmail(e); e != "" {
			admins[e] = true
		}
	}
	return &Auth{
		db:            db,
		secret:        []byte(cfg.Secret),
		ttl:           cfg.SessionTTL,
		secureCookies: secureCookies,
		adminEmails:   admins,
		sessions:      cache,
		now:           time.Now,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// roleFor keeps an existing admin an admin and promotes configured emails.
func (a *Auth) roleFor(email, current string) string {
	if current == RoleAdmin || a.adminEmails[normalizeEmail(email)] {
		return RoleAdmin
	}
	return RoleUser
}

// CreateUser adds a credentials user, or resets the password and role of an
// existing one with the same email.
func (a *Auth) CreateUser(ctx context.Context, email, password string, admin bool) (User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("a valid email is required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, err
	}
	role := a.roleFor(email, RoleUser)
	if admin {
		role = RoleAdmin
	}

	var u User
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&u, "email = ?", email).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			u = User{ID: uuid.NewString(), Email: email, PasswordHash: hash, Role: role}
			return tx.Create(&u).Error
		case err != nil:
			return err
		}
		u.PasswordHash = hash
		u.Role = role
		return tx.Model(&u).Select("password_hash", "role").Updates(&u).Error
	})
	return u, err
}

// Authenticate checks email and password. Unknown emails and OAuth-only
// users fail the same way as a wrong password.
func (a *Auth) Authenticate(ctx context.Context, email, password string) (User, error) {
	var u User
	if err := a.db.WithContext(ctx).First(&u, "email = ?", normalizeEmail(email)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if u.PasswordHash == "" {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// IssueToken creates the Session row and returns its signed token.
func (a *Auth) IssueToken(ctx context.Context, u User) (string, time.Time, error) {
	now := a.now()
	s := Session{
		ID:           uuid.NewString(),
		SessionToken: uuid.NewString(),
		UserID:       u.ID,
		Expires:      now.Add(a.ttl),
	}
	if err := a.db.WithContext(ctx).Create(&s).Error; err != nil {
		return "", time.Time{}, err
	}
	claims := SessionClaims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.SessionToken,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.Expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	slog.Info("Session created",
		slog.String("type", "auth"),
		slog.String("user_id", u.ID),
		slog.String("role", u.Role))
	return token, s.Expires, nil
}

func (a *Auth) parse(token string) (*SessionClaims, error) {
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, ErrInvalidSession
	}
	return &claims, nil
}

// Resolve returns the user behind a session token. Verified sessions are
// cached by token for sessionRecheck, so a session deleted or a user demoted
// elsewhere takes effect within that window.
func (a *Auth) Resolve(ctx context.Context, token string) (User, error) {
	claims, err := a.parse(token)
	if err != nil {
		return User{}, err
	}
	if v, ok := a.sessions.Get(claims.ID); ok {
		cs := v.(cachedSession)
		now := a.now()
		if !now.Before(cs.expires) {
			a.sessions.Remove(claims.ID)
			return User{}, ErrInvalidSession
		}
		if now.Sub(cs.checked) < sessionRecheck {
			return cs.user, nil
		}
		a.sessions.Remove(claims.ID)
	}

	var s Session
	if err := a.db.WithContext(ctx).First(&s, "session_token = ?", claims.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrInvalidSession
		}
		return User{}, err
	}
	if !a.now().Before(s.Expires) || s.UserID != claims.Subject {
		return User{}, ErrInvalidSession
	}
	var u User
	if err := a.db.WithContext(ctx).First(&u, "id = ?", s.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrInvalidSession
		}
		return User{}, err
	}
	a.sessions.Add(claims.ID, cachedSession{user: u, expires: s.Expires, checked: a.now()})
	return u, nil
}

// Revoke deletes the Session row behind token. Invalid tokens are ignored.
func (a *Auth) Revoke(ctx context.Context, token string) error {
	claims, err := a.parse(token)
	if err != nil {
		return nil
	}
	a.sessions.Remove(claims.ID)
	return a.db.WithContext(ctx).Where("session_token = ?", claims.ID).Delete(&Session{}).Error
}

// PurgeExpired removes stale Session and VerificationToken rows.
func (a *Auth) PurgeExpired(ctx context.Context) (int64, error) {
	now := a.now()
	var total int64
	res := a.db.WithContext(ctx).Where("expires <= ?", now).Delete(&Session{})
	if res.Error != nil {
		return 0, res.Error
	}
	total += res.RowsAffected
	res = a.db.WithContext(ctx).Where("expires <= ?", now).Delete(&VerificationToken{})
	if res.Error != nil {
		return total, res.Error
	}
	return total + res.RowsAffected, nil
}

// --- cookies ---

func (a *Auth) setSessionCookie(c *gin.Context, token string, expires time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(expires.Sub(a.now()) / time.Second),
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *Auth) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// StartSession issues a token for u and sets the session cookie.
func (a *Auth) StartSession(c *gin.Context, u User) (string, error) {
	token, expires, err := a.IssueToken(c.Request.Context(), u)
	if err != nil {
		return "", err
	}
	a.setSessionCookie(c, token, expires)
	return token, nil
}
