package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/resume-builder/internal/apperror"
	"github.com/sakif/resume-builder/internal/auth"
	"github.com/sakif/resume-builder/internal/model"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
// A resume with an embedded photo is a few hundred KiB.
const DefaultMaxBodyBytes = 5 << 20

// ResumeStore is what the resume handler needs from the service layer.
// *service.ResumeService implements it; tests use a mock.
type ResumeStore interface {
	Save(ctx context.Context, identity *model.Identity, doc model.Document) (*model.SaveResult, error)
	Get(ctx context.Context, identity *model.Identity) (model.Document, error)
}

// Generator produces the generated resume view.
type Generator interface {
	Generate(doc model.Document) (*model.GeneratedResume, error)
}

// ResumeHandler serves the resume endpoints.
type ResumeHandler struct {
	store        ResumeStore
	generator    Generator
	logger       *slog.Logger
	maxBodyBytes int64
}

// NewResumeHandler creates a ResumeHandler. maxBodyBytes <= 0 selects
// DefaultMaxBodyBytes.
func NewResumeHandler(store ResumeStore, generator Generator, logger *slog.Logger, maxBodyBytes int64) *ResumeHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &ResumeHandler{
		store:        store,
		generator:    generator,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// HandleGet returns the caller's resume.
//
// HTTP: GET /api/resume (alias GET /api/GetResume)
//
// A user who has never saved gets 200 with a literal null body, which the
// browser treats as "start from an empty form".
func (h *ResumeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		WriteError(w, apperror.Unauthorized("no identity", nil))
		return
	}

	doc, err := h.store.Get(r.Context(), identity)
	if err != nil {
		WriteError(w, err)
		return
	}

	if doc == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// HandleSave stores the request body as the caller's resume.
//
// HTTP: POST /api/resume (alias POST /api/SaveResume)
// REQUEST BODY: the resume JSON object, optionally with "photo" as a data URL.
func (h *ResumeHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		WriteError(w, apperror.Unauthorized("no identity", nil))
		return
	}

	doc, err := h.decodeDocument(w, r)
	if err != nil {
		WriteError(w, err)
		return
	}

	result, err := h.store.Save(r.Context(), identity, doc)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleGenerate returns the submitted form with a generated summary.
//
// HTTP: POST /api/generate-resume (no authentication)
func (h *ResumeHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	doc, err := h.decodeDocument(w, r)
	if err != nil {
		WriteError(w, err)
		return
	}

	result, err := h.generator.Generate(doc)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// decodeDocument reads one JSON object from the body. An empty body or a
// literal null yields a nil Document, which the services reject with a
// validation error.
//
// http.MaxBytesReader stops reading after maxBodyBytes and makes Decode
// fail, so an oversized upload is never buffered in full.
func (h *ResumeHandler) decodeDocument(w http.ResponseWriter, r *http.Request) (model.Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	dec := json.NewDecoder(r.Body)

	var doc model.Document
	if err := dec.Decode(&doc); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil, nil
		case errors.As(err, &tooLarge):
			return nil, apperror.ValidationFailed("body", "request body is too large")
		default:
			h.logger.Warn("invalid resume JSON", slog.String("error", err.Error()))
			return nil, apperror.ValidationFailed("body", "request body must be a JSON object")
		}
	}

	// Exactly one value: trailing data means a malformed body.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, apperror.ValidationFailed("body", "request body must contain a single JSON object")
	}
	return doc, nil
}
