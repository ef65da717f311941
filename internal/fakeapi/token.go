package fakeapi

import (
	"errors"
	"fmt"
	"time"

	goVolunteer "github.com/MrEthical07/goVolunteer"
	"github.com/golang-jwt/jwt/v5"
)

const minSecretBytes = 16

// TokenConfig configures a [Signer].
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	Leeway time.Duration

	// Now overrides the clock for issuing and validating tokens.
	Now func() time.Time
}

// Claims are the access-token claims. Subject carries the user ID.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 access tokens.
type Signer struct {
	config TokenConfig
}

// NewSigner validates cfg and returns a Signer.
func NewSigner(cfg TokenConfig) (*Signer, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, fmt.Errorf("token secret must be at least %d bytes", minSecretBytes)
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Signer{config: cfg}, nil
}

// Issue signs a token for the given account.
func (s *Signer) Issue(id, email string, role goVolunteer.Role) (string, error) {
	now := s.config.Now()
	claims := Claims{
		Email: email,
		Role:  string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
}

// Parse verifies token and returns its claims.
func (s *Signer) Parse(token string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.config.Now),
	}
	if s.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(s.config.Leeway))
	}
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.config.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
