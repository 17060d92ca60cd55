package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/resume-builder/internal/apperror"
	"github.com/sakif/resume-builder/internal/model"
)

const (
	firebaseIssuerPrefix = "https://securetoken.google.com/"
	maxSubjectLength     = 128
	clockLeeway          = time.Minute
)

// errKeySource marks failures to obtain signing keys, which are reported as
// an unavailable backend rather than a bad credential.
var errKeySource = errors.New("signing keys unavailable")

// firebaseClaims is the ID token payload. RegisteredClaims covers iss, aud,
// sub, exp and iat; the rest are Firebase additions.
type firebaseClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Name     string `json:"name"`
	AuthTime int64  `json:"auth_time"`
}

// FirebaseVerifier verifies Firebase ID tokens locally: RS256 signature
// against Google's published certificates plus the issuer, audience and
// time checks Firebase documents.
type FirebaseVerifier struct {
	projectID string
	keys      *keySource
	now       func() time.Time
}

// FirebaseOption customises a FirebaseVerifier.
type FirebaseOption func(*firebaseOptions)

type firebaseOptions struct {
	certsURL string
	client   *http.Client
	now      func() time.Time
}

// WithCertsURL overrides where signing certificates are fetched from.
func WithCertsURL(url string) FirebaseOption {
	return func(o *firebaseOptions) { o.certsURL = url }
}

// WithHTTPClient sets the client used to fetch certificates.
func WithHTTPClient(client *http.Client) FirebaseOption {
	return func(o *firebaseOptions) { o.client = client }
}

// WithClock sets the time source used for expiry checks.
func WithClock(now func() time.Time) FirebaseOption {
	return func(o *firebaseOptions) { o.now = now }
}

// NewFirebaseVerifier creates a verifier for tokens issued to projectID.
func NewFirebaseVerifier(projectID string, opts ...FirebaseOption) (*FirebaseVerifier, error) {
	if projectID == "" {
		return nil, errors.New("auth: firebase project ID is required")
	}

	o := firebaseOptions{
		certsURL: GoogleCertsURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &FirebaseVerifier{
		projectID: projectID,
		keys:      newKeySource(o.certsURL, o.client, o.now),
		now:       o.now,
	}, nil
}

// ProjectID returns the Firebase project tokens must be issued for.
func (v *FirebaseVerifier) ProjectID() string {
	return v.projectID
}

// Verify checks the token and returns the identity it carries.
//
// VALIDATION CHECKS:
//   - alg is RS256 and kid names a current Google signing key
//   - iss is https://securetoken.google.com/<project>, aud is <project>
//   - exp is present and in the future, iat is not in the future
//   - sub is non-empty and at most 128 characters
//   - auth_time is not in the future
//
// A failure to fetch signing keys is reported as apperror.ErrUnavailable;
// everything else is a rejected credential.
func (v *FirebaseVerifier) Verify(ctx context.Context, raw string) (*model.Identity, error) {
	var c firebaseClaims

	_, err := jwt.ParseWithClaims(
		raw,
		&c,
		func(token *jwt.Token) (any, error) {
			kid, _ := token.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("auth: token has no kid header")
			}
			key, err := v.keys.Key(ctx, kid)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", errKeySource, err)
			}
			return key, nil
		},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(firebaseIssuerPrefix+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockLeeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, errKeySource) && !isUnknownKey(err) {
			return nil, apperror.Unavailable("token verifier unavailable",
				"Check outbound access to "+GoogleCertsURL, err)
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	if c.Subject == "" {
		return nil, errors.New("auth: token has no subject")
	}
	if len(c.Subject) > maxSubjectLength {
		return nil, errors.New("auth: token subject too long")
	}
	if c.AuthTime == 0 || time.Unix(c.AuthTime, 0).After(v.now().Add(clockLeeway)) {
		return nil, errors.New("auth: token auth_time is missing or in the future")
	}

	return &model.Identity{
		UID:   c.Subject,
		Email: c.Email,
		Name:  c.Name,
	}, nil
}

// isUnknownKey reports a kid that is absent from a successfully fetched key
// set: that is a forged or stale token, not an outage.
func isUnknownKey(err error) bool {
	var unknown *unknownKeyError
	return errors.As(err, &unknown)
}
