package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

// Claims defines the custom claims of a dashboard session token.
type Claims struct {
	Username   string `json:"username"`
	TenantName string `json:"tenant_name"`
	LogoFile   string `json:"logo_file,omitempty"`
	Admin      bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a new TokenService.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue creates a token for session.
func (s *TokenService) Issue(session domain.Session) (string, error) {
	now := s.now()
	claims := &Claims{
		Username:   session.Username,
		TenantName: session.TenantName,
		LogoFile:   session.LogoFile,
		Admin:      session.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   session.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse validates tokenString and returns the session it carries.
func (s *TokenService) Parse(tokenString string) (*domain.Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.Username == "" {
		return nil, errors.New("token has no username")
	}

	return &domain.Session{
		Username:   claims.Username,
		TenantName: claims.TenantName,
		LogoFile:   claims.LogoFile,
		Admin:      claims.Admin,
	}, nil
}
