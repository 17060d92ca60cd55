package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// GoogleCertsURL publishes the x509 certificates Firebase signs ID tokens
// with, as a JSON object of key ID → PEM certificate. Google rotates them
// every few hours and advertises the lifetime in Cache-Control.
const GoogleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

// defaultKeyTTL applies when the response carries no max-age.
const defaultKeyTTL = time.Hour

// minRefreshInterval bounds how often an unrecognised kid may trigger a
// refetch while the cached key set is still fresh.
const minRefreshInterval = time.Minute

// refreshTimeout caps a shared refresh, which outlives any single caller.
const refreshTimeout = 10 * time.Second

// keySource caches the signing keys and refetches them once expired or when
// a token names a key ID it has not seen. Concurrent refetches share one
// HTTP call via singleflight.
type keySource struct {
	url    string
	client *http.Client
	now    func() time.Time

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiry    time.Time
	fetchedAt time.Time

	group singleflight.Group
}

func newKeySource(url string, client *http.Client, now func() time.Time) *keySource {
	return &keySource{url: url, client: client, now: now}
}

// Key returns the public key for kid.
//
// While the cache is fresh an unknown kid refetches at most once per
// minRefreshInterval. If a refetch fails, a key from the previous set is
// still served.
func (s *keySource) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	key, known, fresh, throttled := s.lookup(kid)
	if known && fresh {
		return key, nil
	}
	if fresh && throttled {
		return nil, &unknownKeyError{kid: kid}
	}

	// The refresh is shared, so it must not die with the first caller.
	ch := s.group.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return nil, s.refresh(rctx)
	})

	var err error
	select {
	case res := <-ch:
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		if known {
			return key, nil
		}
		return nil, err
	}

	s.mu.RLock()
	key, ok := s.keys[kid]
	s.mu.RUnlock()
	if !ok {
		return nil, &unknownKeyError{kid: kid}
	}
	return key, nil
}

// unknownKeyError is a kid that the current key set does not contain.
type unknownKeyError struct {
	kid string
}

func (e *unknownKeyError) Error() string {
	return fmt.Sprintf("auth: unknown signing key %q", e.kid)
}

// lookup reports the cached key for kid, whether the key set is within its
// max-age, and whether the last fetch is too recent to repeat.
func (s *keySource) lookup(kid string) (key *rsa.PublicKey, known, fresh, throttled bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	key, known = s.keys[kid]
	fresh = now.Before(s.expiry)
	throttled = !s.fetchedAt.IsZero() && now.Sub(s.fetchedAt) < minRefreshInterval
	return key, known, fresh, throttled
}

func (s *keySource) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("auth: building certs request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: fetching signing certs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: fetching signing certs: status %d", resp.StatusCode)
	}

	var pems map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&pems); err != nil {
		return fmt.Errorf("auth: decoding signing certs: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(pems))
	for kid, pem := range pems {
		// ParseRSAPublicKeyFromPEM accepts PKCS1, PKIX and x509 certificates.
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return fmt.Errorf("auth: parsing signing cert %q: %w", kid, err)
		}
		keys[kid] = key
	}

	s.mu.Lock()
	now := s.now()
	s.keys = keys
	s.fetchedAt = now
	s.expiry = now.Add(maxAge(resp.Header.Get("Cache-Control")))
	s.mu.Unlock()
	return nil
}

// maxAge extracts max-age from a Cache-Control header value.
func maxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		value, ok := strings.CutPrefix(directive, "max-age=")
		if !ok {
			continue
		}
		secs, err := strconv.Atoi(value)
		if err != nil || secs <= 0 {
			break
		}
		return time.Duration(secs) * time.Second
	}
	return defaultKeyTTL
}
