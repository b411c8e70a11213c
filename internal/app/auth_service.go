package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"focusblock/internal/domain"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken indicates that no bearer credential was supplied.
	ErrMissingToken = errors.New("no token, authorization denied")
	// ErrInvalidToken indicates that the credential failed verification.
	ErrInvalidToken = errors.New("token is not valid")
	// ErrTokenExpired indicates that the credential is past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// AuthService verifies caller credentials and turns them into identities.
// Local tokens are HS256 JWTs; when an OIDC verifier is configured, id
// tokens from that provider are accepted as well.
type AuthService struct {
	secret     []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
	oidc       *oidc.IDTokenVerifier
	adminGroup string
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithIssuer sets the issuer written to and required of local tokens.
func WithIssuer(iss string) AuthOption {
	return func(s *AuthService) {
		s.issuer = iss
	}
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithOIDCVerifier accepts id tokens verified by v.
func WithOIDCVerifier(v *oidc.IDTokenVerifier) AuthOption {
	return func(s *AuthService) {
		s.oidc = v
	}
}

// WithAdminGroup grants the admin role to members of group, as reported by
// OIDC group claims or forward-auth headers.
func WithAdminGroup(group string) AuthOption {
	return func(s *AuthService) {
		s.adminGroup = group
	}
}

// WithAuthClock replaces the time source used for issuing and expiry checks.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		s.now = now
	}
}

// NewAuthService creates an AuthService signing local tokens with secret.
func NewAuthService(secret []byte, opts ...AuthOption) *AuthService {
	s := &AuthService{
		secret: secret,
		issuer: "focusblock",
		ttl:    24 * time.Hour,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// IssueToken mints a local bearer token for userID.
func (s *AuthService) IssueToken(userID string, role domain.Role) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id is required")
	}
	now := s.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Role: string(domain.ParseRole(string(role))),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken verifies a bearer credential and returns the caller.
func (s *AuthService) ValidateToken(ctx context.Context, raw string) (domain.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Identity{}, unauthorizedError("No token, authorization denied", ErrMissingToken)
	}

	id, err := s.validateLocal(raw)
	if err == nil {
		return id, nil
	}
	if s.oidc != nil && !errors.Is(err, ErrTokenExpired) {
		if id, oerr := s.validateOIDC(ctx, raw); oerr == nil {
			return id, nil
		}
	}
	if errors.Is(err, ErrTokenExpired) {
		return domain.Identity{}, unauthorizedError("Token expired", err)
	}
	return domain.Identity{}, unauthorizedError("Token is not valid", err)
}

// ValidateForwardAuth builds an identity from headers set by a trusted
// authenticating proxy (Remote-User / Remote-Groups).
func (s *AuthService) ValidateForwardAuth(remoteUser, remoteGroups string) (domain.Identity, error) {
	remoteUser = strings.TrimSpace(remoteUser)
	if remoteUser == "" {
		return domain.Identity{}, unauthorizedError("No token, authorization denied", ErrMissingToken)
	}
	role := domain.RoleUser
	if s.adminGroup != "" {
		for _, g := range strings.Split(remoteGroups, ",") {
			if strings.TrimSpace(g) == s.adminGroup {
				role = domain.RoleAdmin
				break
			}
		}
	}
	return domain.Identity{UserID: remoteUser, Role: role}, nil
}

func (s *AuthService) validateLocal(raw string) (domain.Identity, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, ErrTokenExpired
		}
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return domain.Identity{UserID: claims.Subject, Role: domain.ParseRole(claims.Role)}, nil
}

func (s *AuthService) validateOIDC(ctx context.Context, raw string) (domain.Identity, error) {
	idToken, err := s.oidc.Verify(ctx, raw)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims struct {
		Email  string   `json:"email"`
		Groups []string `json:"groups"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID := idToken.Subject
	if userID == "" {
		userID = claims.Email
	}
	if userID == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	role := domain.RoleUser
	if s.adminGroup != "" && slices.Contains(claims.Groups, s.adminGroup) {
		role = domain.RoleAdmin
	}
	return domain.Identity{UserID: userID, Role: role}, nil
}
