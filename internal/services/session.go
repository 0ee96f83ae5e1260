package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/storefront-cart/internal/platform/logger"
)

const sessionIssuer = "storefront-cart"

var ErrInvalidSession = errors.New("invalid visitor session")

type VisitorClaims struct {
	jwt.RegisteredClaims
}

// VisitorSessions mints and verifies the signed token naming an anonymous
// visitor. The visitor id is the token subject.
type VisitorSessions struct {
	log    *logger.Logger
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewVisitorSessions(log *logger.Logger, secret string, ttl time.Duration) (*VisitorSessions, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("missing CART_SESSION_SECRET")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &VisitorSessions{
		log:    log.With("service", "VisitorSessions"),
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (vs *VisitorSessions) TTL() time.Duration { return vs.ttl }

// NewVisitor allocates a visitor id and its token.
func (vs *VisitorSessions) NewVisitor() (visitorID, token string, err error) {
	visitorID = uuid.NewString()
	token, err = vs.Mint(visitorID)
	if err != nil {
		return "", "", err
	}
	vs.log.Debug("minted visitor session", "visitor_id", visitorID)
	return visitorID, token, nil
}

func (vs *VisitorSessions) Mint(visitorID string) (string, error) {
	if strings.TrimSpace(visitorID) == "" {
		return "", fmt.Errorf("visitor id required")
	}
	now := vs.now()
	claims := VisitorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   visitorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(vs.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(vs.secret)
}

// Parse returns the visitor id carried by token.
func (vs *VisitorSessions) Parse(tokenString string) (string, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", ErrInvalidSession
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &VisitorClaims{}, func(token *jwt.Token) (interface{}, error) {
		return vs.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(vs.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	claims, ok := parsed.Claims.(*VisitorClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidSession
	}
	return claims.Subject, nil
}
