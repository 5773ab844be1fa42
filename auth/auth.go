// Package auth issues and verifies signed identity tokens and holds the
// authorization predicates shared by the REST and live-channel surfaces.
package auth

import (
	"errors"
	"strconv"
	"time"

	"polling-system-backend/errs"
	"polling-system-backend/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Identity is the resolved caller: everything the core needs to authorize
// an operation.
type Identity struct {
	UserID   uint
	Username string
	Role     string
}

func (i *Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// Service signs and verifies identity tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
}

func NewService(secret string, ttl time.Duration) *Service {
	return &Service{secret: []byte(secret), ttl: ttl}
}

type claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for the given user.
func (s *Service) IssueToken(user *models.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	return token.SignedString(s.secret)
}

// VerifyToken checks signature and expiry and returns the embedded identity.
// All failures collapse to Unauthorized.
func (s *Service) VerifyToken(raw string) (*Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errs.New(errs.Unauthorized, "invalid or expired token")
	}
	userID, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil {
		return nil, errs.New(errs.Unauthorized, "invalid or expired token")
	}
	return &Identity{UserID: uint(userID), Username: c.Username, Role: c.Role}, nil
}

// Authenticate verifies a raw credential and resolves it against the user
// store. Inactive users fail even with a valid token. This is the single
// entry point for both HTTP requests and live connections.
func (s *Service) Authenticate(db *gorm.DB, raw string) (*Identity, error) {
	ident, err := s.VerifyToken(raw)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := db.First(&user, ident.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.New(errs.Unauthorized, "account no longer exists")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, errs.New(errs.Unauthorized, "account has been deactivated")
	}
	// Role may have changed since the token was issued; the store wins.
	return &Identity{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches the stored hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
