// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)      → parses requests, writes responses
//	Service (Business layer)  → validates, splits the photo, orchestrates
//	Repository (Data layer)   → reads/writes table entities
//
// ResumeService talks to a repository.Table (interface), never to SQLite or
// Redis directly. main wires the concrete store; tests pass an in-memory fake.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/resume-builder/internal/apperror"
	"github.com/sakif/resume-builder/internal/chunk"
	"github.com/sakif/resume-builder/internal/model"
	"github.com/sakif/resume-builder/internal/repository"
)

// MaxPhotoChunkSize is the width, in bytes, of each stored photo chunk. It
// sits 768 bytes under repository.MaxPropertySize.
const MaxPhotoChunkSize = 32000

// Row keys within a user's partition.
const (
	ProfileRowKey = "current"
	PhotoRowKey   = "photo"
)

// Stored property names.
const (
	propData       = "data"
	propUpdatedAt  = "updatedAt"
	propUserEmail  = "userEmail"
	propUserName   = "userName"
	propHasPhoto   = "hasPhoto"
	propRevision   = "revision"
	propChunkCount = "chunkCount"
	propLegacy     = "photoData"
	chunkPrefix    = "photo_"
)

// Operator hints surfaced in 500 responses.
const (
	HintMissingConnectionString = "Missing RESUME_STORAGE_CONNECTION_STRING"
	HintStorageAccess           = "Check table storage permissions and connectivity"
	HintCorruptRecord           = "Stored resume data is not valid JSON; inspect the profile entity in table storage"
)

// SaveMessage is the confirmation returned by a successful save.
const SaveMessage = "Resume saved successfully"

// timestampLayout is ISO-8601 UTC with millisecond precision, the format the
// browser's Date.toISOString produces.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// ResumeService stores one resume per user.
type ResumeService struct {
	table  repository.Table // nil when no storage is configured
	logger *slog.Logger
	now    func() time.Time
}

// NewResumeService creates a ResumeService. A nil table is allowed: every
// call then fails with apperror.ErrUnavailable and a configuration hint.
func NewResumeService(table repository.Table, logger *slog.Logger) *ResumeService {
	return &ResumeService{
		table:  table,
		logger: logger,
		now:    time.Now,
	}
}

// Save persists doc for the caller, replacing any previous resume.
//
// The photo (if any) is removed from the document and written as a
// separate entity of ordered chunks; the rest of the document is stored as
// one JSON property on the profile entity.
//
// WRITE ORDER:
// The profile entity is written first, the photo entity second. If the
// second write fails the caller gets an error, and the profile already says
// hasPhoto=true; Get tolerates that by returning the resume without a photo.
func (s *ResumeService) Save(ctx context.Context, identity *model.Identity, doc model.Document) (*model.SaveResult, error) {
	if identity == nil || identity.UID == "" {
		return nil, apperror.Unauthorized("no identity", nil)
	}
	if doc == nil {
		return nil, apperror.ValidationFailed("body", "Please pass resume data in the request body")
	}
	if s.table == nil {
		return nil, apperror.Unavailable("resume storage is not configured", HintMissingConnectionString, nil)
	}

	photo, err := photoOf(doc)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(withoutPhoto(doc))
	if err != nil {
		return nil, apperror.ValidationFailed("body", "resume is not valid JSON")
	}
	if len(data) >= repository.MaxPropertySize {
		return nil, apperror.ValidationFailed("body",
			fmt.Sprintf("resume without photo is %d bytes, must be under %d", len(data), repository.MaxPropertySize))
	}

	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}

	updatedAt := s.now().UTC().Truncate(time.Millisecond)
	stamp := updatedAt.Format(timestampLayout)
	revision := xid.New().String()
	hasPhoto := photo != ""

	profile := repository.Entity{
		PartitionKey: identity.UID,
		RowKey:       ProfileRowKey,
		Properties: map[string]string{
			propData:      string(data),
			propUpdatedAt: stamp,
			propUserEmail: identity.Email,
			propUserName:  identity.DisplayName(),
			propHasPhoto:  strconv.FormatBool(hasPhoto),
			propRevision:  revision,
		},
	}
	if err := s.table.UpsertEntity(ctx, profile); err != nil {
		return nil, s.storageError("saving resume", identity.UID, err)
	}

	var chunks []string
	if hasPhoto {
		chunks, err = chunk.Split(photo, MaxPhotoChunkSize)
		if err != nil {
			return nil, fmt.Errorf("splitting photo: %w", err)
		}

		props := make(map[string]string, len(chunks)+2)
		props[propChunkCount] = strconv.Itoa(len(chunks))
		props[propUpdatedAt] = stamp
		for i, c := range chunks {
			props[chunkPrefix+strconv.Itoa(i)] = c
		}

		photoEntity := repository.Entity{
			PartitionKey: identity.UID,
			RowKey:       PhotoRowKey,
			Properties:   props,
		}
		if err := s.table.UpsertEntity(ctx, photoEntity); err != nil {
			return nil, s.storageError("saving photo", identity.UID, err)
		}
	}

	s.logger.Info("resume saved",
		slog.String("uid", identity.UID),
		slog.String("revision", revision),
		slog.Bool("has_photo", hasPhoto),
		slog.Int("photo_chunks", len(chunks)),
	)

	return &model.SaveResult{
		Message:     SaveMessage,
		UpdatedAt:   updatedAt,
		Revision:    revision,
		HasPhoto:    hasPhoto,
		PhotoChunks: len(chunks),
	}, nil
}

// Get returns the caller's resume, or (nil, nil) if they have never saved.
//
// A photo that cannot be read back (missing photo entity, missing chunk,
// unreadable chunk count) is logged and left out; the rest of the resume is
// still returned.
func (s *ResumeService) Get(ctx context.Context, identity *model.Identity) (model.Document, error) {
	if identity == nil || identity.UID == "" {
		return nil, apperror.Unauthorized("no identity", nil)
	}
	if s.table == nil {
		return nil, apperror.Unavailable("resume storage is not configured", HintMissingConnectionString, nil)
	}

	profile, err := s.table.GetEntity(ctx, identity.UID, ProfileRowKey)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, s.storageError("loading resume", identity.UID, err)
	}

	doc := model.Document{}
	if raw := profile.Properties[propData]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			s.logger.Error("stored resume is not valid JSON",
				slog.String("uid", identity.UID),
				slog.String("error", err.Error()),
			)
			return nil, apperror.Unavailable("stored resume is unreadable", HintCorruptRecord, err)
		}
		if doc == nil {
			doc = model.Document{}
		}
	}

	if profile.Properties[propHasPhoto] != "true" {
		return doc, nil
	}

	photo, ok := s.loadPhoto(ctx, identity.UID)
	if !ok {
		return doc, nil
	}

	encoded, err := json.Marshal(photo)
	if err != nil {
		return nil, fmt.Errorf("encoding photo: %w", err)
	}
	doc[model.PhotoField] = encoded
	return doc, nil
}

// loadPhoto reassembles the photo entity. ok is false when the photo is
// absent or inconsistent.
func (s *ResumeService) loadPhoto(ctx context.Context, uid string) (string, bool) {
	entity, err := s.table.GetEntity(ctx, uid, PhotoRowKey)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, apperror.ErrNotFound) {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "photo indicated but not readable",
			slog.String("uid", uid),
			slog.String("error", err.Error()),
		)
		return "", false
	}

	rawCount, ok := entity.Properties[propChunkCount]
	if !ok {
		// Records written before chunking kept the whole photo in one property.
		if legacy, ok := entity.Properties[propLegacy]; ok {
			return legacy, true
		}
		s.logger.Warn("photo entity has neither chunks nor legacy data", slog.String("uid", uid))
		return "", false
	}

	count, err := strconv.Atoi(rawCount)
	if err != nil || count < 0 {
		s.logger.Warn("photo entity has an invalid chunk count",
			slog.String("uid", uid),
			slog.String("chunk_count", rawCount),
		)
		return "", false
	}

	chunks := make([]string, count)
	for i := 0; i < count; i++ {
		c, ok := entity.Properties[chunkPrefix+strconv.Itoa(i)]
		if !ok {
			s.logger.Warn("photo chunk missing",
				slog.String("uid", uid),
				slog.Int("chunk", i),
				slog.Int("chunk_count", count),
			)
			return "", false
		}
		chunks[i] = c
	}
	return chunk.Join(chunks), true
}

// ensureTable creates the table on first use; an existing table is fine.
func (s *ResumeService) ensureTable(ctx context.Context) error {
	err := s.table.CreateTable(ctx)
	if err == nil || errors.Is(err, apperror.ErrConflict) {
		return nil
	}
	if errors.Is(err, apperror.ErrValidation) {
		return apperror.Unavailable("resume table name is invalid", "Check RESUME_TABLE_NAME", err)
	}
	s.logger.Error("failed to create table", slog.String("error", err.Error()))
	return apperror.Unavailable("resume storage is unavailable", HintStorageAccess, err)
}

// storageError logs a store failure and converts it to ErrUnavailable.
func (s *ResumeService) storageError(op, uid string, err error) error {
	s.logger.Error("table store failure",
		slog.String("op", op),
		slog.String("uid", uid),
		slog.String("error", err.Error()),
	)
	return apperror.Unavailable(op+" failed", HintStorageAccess, err)
}

// photoOf returns the document's photo. Absent, null and "" all mean no
// photo; any other non-string value is rejected.
func photoOf(doc model.Document) (string, error) {
	raw, ok := doc[model.PhotoField]
	if !ok || string(raw) == "null" {
		return "", nil
	}
	var photo string
	if err := json.Unmarshal(raw, &photo); err != nil {
		return "", apperror.ValidationFailed(model.PhotoField, "photo must be a string data URL")
	}
	return photo, nil
}

// withoutPhoto returns a shallow copy of doc minus the photo field.
func withoutPhoto(doc model.Document) model.Document {
	rest := make(model.Document, len(doc))
	for k, v := range doc {
		if k != model.PhotoField {
			rest[k] = v
		}
	}
	return rest
}
