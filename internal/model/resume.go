// Package model defines the data structures shared across layers.
package model

import (
	"encoding/json"
	"time"
)

// PhotoField is the document key that carries the embedded photo data URL.
const PhotoField = "photo"

// Identity is the authenticated caller, decoded from a verified ID token.
// It lives for one request and is never persisted on its own; Email and
// Name are copied onto the profile record for operators.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// DisplayName returns Name, falling back to Email when the token carried no
// display name.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Email
}

// Document is a resume as the browser sends it: a JSON object whose fields
// (name, contact details, education, skills, experience, languages, color
// scheme, job target, photo...) are opaque to the server.
//
// Values are kept as json.RawMessage so a save/fetch round trip returns the
// exact field values the client sent, without a lossy decode into any.
type Document map[string]json.RawMessage

// SaveResult is returned to the client after a successful save.
type SaveResult struct {
	Message     string    `json:"message"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Revision    string    `json:"revision"`
	HasPhoto    bool      `json:"hasPhoto"`
	PhotoChunks int       `json:"photoChunks"`
}

// GeneratedResume is the response of the generate endpoint: the submitted
// form fields plus a generated summary line.
type GeneratedResume struct {
	Message string   `json:"message"`
	Resume  Document `json:"resume"`
}
