package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/lead-dispatch/internal/domain"
)

// TokenIssuer is stamped into every token and required on parse.
const TokenIssuer = "lead-dispatch"

// ErrInvalidToken wraps every parse failure.
var ErrInvalidToken = errors.New("invalid token")

// TokenManager signs and verifies the HS256 bearer tokens used by brokers and
// operators.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a manager; a non-positive TTL defaults to one hour.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute, now: time.Now}
}

// Claims identify a broker or an operator. The subject id travels in the
// registered "sub" claim.
type Claims struct {
	SubjectType domain.SubjectType `json:"subject_type"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for the subject.
func (tm *TokenManager) GenerateToken(subjectID string, subjectType domain.SubjectType) (string, time.Time, error) {
	if subjectID == "" {
		return "", time.Time{}, errors.New("token subject id is required")
	}
	if !knownSubject(subjectType) {
		return "", time.Time{}, fmt.Errorf("unknown subject type %q", subjectType)
	}
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &Claims{
		SubjectType: subjectType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseToken verifies signature, issuer and expiry and returns the claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (interface{}, error) { return tm.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" || !knownSubject(claims.SubjectType) {
		return nil, fmt.Errorf("%w: missing or unknown subject", ErrInvalidToken)
	}
	return claims, nil
}

func knownSubject(t domain.SubjectType) bool {
	return t == domain.SubjectTypeBroker || t == domain.SubjectTypeOperator
}
