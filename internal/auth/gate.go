// Package auth turns the credential a request carries into an authenticated
// model.Identity.
//
// AUTHENTICATION FLOW:
//  1. The browser signs in with the Firebase client SDK and obtains an ID
//     token (a JWT signed by Google).
//  2. Every API call carries the token in the X-Firebase-Token header.
//     A custom header is used because the hosting proxy in front of the API
//     rewrites the standard Authorization header.
//  3. The Gate reads the header and asks a Verifier to check the token.
//  4. RequireIdentity puts the resulting Identity in the request context.
//
// The Gate is built once at startup. A Gate without a Verifier (no service
// account configured) fails closed: every request with a credential gets a
// "not configured" error rather than being trusted.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sakif/resume-builder/internal/apperror"
	"github.com/sakif/resume-builder/internal/model"
)

// TokenHeader is the request header that carries the ID token.
const TokenHeader = "X-Firebase-Token"

// HintMissingServiceAccount is reported when the Gate has no verifier.
const HintMissingServiceAccount = "Missing FIREBASE_SERVICE_ACCOUNT"

// ErrInsecureNotCompiled is returned when the insecure dev verifier is
// requested from a binary built without the devauth tag.
var ErrInsecureNotCompiled = errors.New("auth: insecure dev verifier is not compiled in; rebuild with -tags devauth")

// HeaderReader is the one capability the Gate needs from a request.
// http.Header satisfies it.
type HeaderReader interface {
	Get(name string) string
}

// Verifier checks a raw ID token and returns the identity it asserts.
type Verifier interface {
	Verify(ctx context.Context, token string) (*model.Identity, error)
}

// Gate extracts and verifies the request credential.
type Gate struct {
	verifier Verifier
	logger   *slog.Logger
}

// NewGate creates a Gate. A nil verifier yields a Gate that rejects every
// credential with apperror.ErrUnavailable.
func NewGate(verifier Verifier, logger *slog.Logger) *Gate {
	return &Gate{verifier: verifier, logger: logger}
}

// Configured reports whether the Gate has a verifier.
func (g *Gate) Configured() bool {
	return g.verifier != nil
}

// Verify returns the caller's identity.
//
// Errors:
//   - apperror.ErrUnauthorized  no credential, or the verifier rejected it
//   - apperror.ErrUnavailable   no verifier configured, or its key source is down
func (g *Gate) Verify(ctx context.Context, headers HeaderReader) (*model.Identity, error) {
	token := strings.TrimSpace(headers.Get(TokenHeader))
	if token == "" {
		g.logger.Debug("no credential header", slog.String("header", TokenHeader))
		return nil, apperror.Unauthorized("no credential", nil)
	}

	if g.verifier == nil {
		return nil, apperror.Unavailable("token verification is not configured", HintMissingServiceAccount, nil)
	}

	identity, err := g.verifier.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, apperror.ErrUnavailable) {
			g.logger.Error("token verifier unavailable", slog.String("error", err.Error()))
			return nil, err
		}
		g.logger.Info("credential rejected", slog.String("error", err.Error()))
		return nil, apperror.Unauthorized("invalid credential", err)
	}

	if identity == nil || identity.UID == "" {
		return nil, apperror.Unauthorized("credential has no subject", nil)
	}
	return identity, nil
}
