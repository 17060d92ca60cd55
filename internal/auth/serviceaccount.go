package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2/google"
)

// firebaseScope is requested when parsing the service account; only the
// project ID is read from the result.
const firebaseScope = "https://www.googleapis.com/auth/firebase"

// ProjectIDFromServiceAccount validates the service account JSON (the
// contents of FIREBASE_SERVICE_ACCOUNT) and returns its project_id.
func ProjectIDFromServiceAccount(ctx context.Context, serviceAccountJSON []byte) (string, error) {
	creds, err := google.CredentialsFromJSON(ctx, serviceAccountJSON, firebaseScope)
	if err != nil {
		return "", fmt.Errorf("auth: parsing service account: %w", err)
	}
	if creds.ProjectID != "" {
		return creds.ProjectID, nil
	}

	return "", errors.New("auth: service account has no project_id")
}
