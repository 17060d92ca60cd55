//go:build !devauth

package auth

import "log/slog"

// NewInsecureVerifier is only available in binaries built with -tags devauth.
func NewInsecureVerifier(_ *slog.Logger) (Verifier, error) {
	return nil, ErrInsecureNotCompiled
}
