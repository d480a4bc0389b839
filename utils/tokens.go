package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func GenerateAccessToken(userID int64, email, role, secret string, accessTTL time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(accessTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(tokenStr string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return token.Claims.(*Claims), nil
}

const vendorAudience = "vendor-response"

// VendorClaims binds a response link to one vendor and one request. The JWT id is
// stored on the notification row and consumed once.
type VendorClaims struct {
	VendorID  int64 `json:"vendor_id"`
	RequestID int64 `json:"request_id"`
	jwt.RegisteredClaims
}

// VendorTokenSigner issues and verifies HMAC-signed vendor response tokens.
type VendorTokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewVendorTokenSigner(secret string, ttl time.Duration) *VendorTokenSigner {
	return &VendorTokenSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the signer that reads time from now.
func (s *VendorTokenSigner) WithClock(now func() time.Time) *VendorTokenSigner {
	c := *s
	c.now = now
	return &c
}

// Sign returns the token and its id.
func (s *VendorTokenSigner) Sign(vendorID, requestID int64) (string, string, error) {
	issued := s.now()
	id := ulid.MustNew(ulid.Timestamp(issued), ulid.DefaultEntropy()).String()
	claims := VendorClaims{
		VendorID:  vendorID,
		RequestID: requestID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Audience:  jwt.ClaimStrings{vendorAudience},
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign vendor token: %w", err)
	}
	return signed, id, nil
}

// Verify checks signature, audience and expiry.
func (s *VendorTokenSigner) Verify(tokenStr string) (*VendorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &VendorClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(vendorAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*VendorClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
