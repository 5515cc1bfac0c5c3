package pass

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

const authScheme = "ApplePass"

// Authenticator checks presented tokens against stored pass identities.
type Authenticator struct {
	repo   Repository
	logger zerolog.Logger
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(repo Repository, logger zerolog.Logger) *Authenticator {
	return &Authenticator{repo: repo, logger: logger}
}

// Authenticate returns the identity for serial when token matches its stored
// authentication token. A missing pass or a failed lookup is reported as
// ErrInvalidToken. ErrPassTypeMismatch is only returned to callers holding
// the correct token.
func (a *Authenticator) Authenticate(ctx context.Context, passType, serial, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	identity, err := a.repo.Get(ctx, serial)
	if err != nil {
		if !errors.Is(err, ErrPassNotFound) {
			a.logger.Error().Err(err).Str("serial_number", serial).Msg("pass lookup failed during authentication")
		}
		return nil, ErrInvalidToken
	}

	if subtle.ConstantTimeCompare([]byte(identity.AuthenticationToken), []byte(token)) != 1 {
		return nil, ErrInvalidToken
	}

	if identity.PassTypeIdentifier != passType {
		return nil, ErrPassTypeMismatch
	}

	return identity, nil
}

// TokenFromHeader extracts the token from an "ApplePass <token>"
// Authorization header value. The scheme is matched case-insensitively.
func TokenFromHeader(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, authScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
