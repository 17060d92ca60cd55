package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/resume-builder/internal/apperror"
	"github.com/sakif/resume-builder/internal/model"
	"github.com/sakif/resume-builder/internal/repository"
)

// =========================================================================
// FAKE TABLE
// =========================================================================
//
// fakeTable implements repository.Table in memory. It enforces the same
// property ceiling as the real stores (via repository.ValidateEntity) and
// lets a test fail writes to a given row key.

type fakeTable struct {
	created    bool
	createErr  error
	getErr     error
	failUpsert map[string]error // row key → error
	entities   map[string]repository.Entity
	calls      int
}

func newFakeTable() *fakeTable {
	return &fakeTable{
		failUpsert: map[string]error{},
		entities:   map[string]repository.Entity{},
	}
}

func (f *fakeTable) CreateTable(_ context.Context) error {
	f.calls++
	if f.createErr != nil {
		return f.createErr
	}
	if f.created {
		return apperror.Conflict("table", "Resumes")
	}
	f.created = true
	return nil
}

func (f *fakeTable) UpsertEntity(_ context.Context, e repository.Entity) error {
	f.calls++
	if err := f.failUpsert[e.RowKey]; err != nil {
		return err
	}
	if err := repository.ValidateEntity(e); err != nil {
		return err
	}
	props := make(map[string]string, len(e.Properties))
	for k, v := range e.Properties {
		props[k] = v
	}
	e.Properties = props
	f.entities[repository.EntityID(e.PartitionKey, e.RowKey)] = e
	return nil
}

func (f *fakeTable) GetEntity(_ context.Context, pk, rk string) (*repository.Entity, error) {
	f.calls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	e, ok := f.entities[repository.EntityID(pk, rk)]
	if !ok {
		return nil, apperror.NotFound("entity", repository.EntityID(pk, rk))
	}
	return &e, nil
}

// =========================================================================
// HELPERS
// =========================================================================

var (
	ada   = &model.Identity{UID: "uid-ada", Email: "ada@example.com", Name: "Ada Lovelace"}
	grace = &model.Identity{UID: "uid-grace", Email: "grace@example.com"}
)

func newTestService(t *testing.T) (*ResumeService, *fakeTable) {
	t.Helper()
	table := newFakeTable()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewResumeService(table, logger)
	svc.now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 789_000_000, time.UTC) }
	return svc, table
}

// dataURL returns a photo data URL of exactly n bytes.
func dataURL(n int) string {
	const prefix = "data:image/png;base64,"
	return prefix + strings.Repeat("Q", n-len(prefix))
}

// doc builds a Document from a JSON literal.
func doc(t *testing.T, js string) model.Document {
	t.Helper()
	var d model.Document
	require.NoError(t, json.Unmarshal([]byte(js), &d))
	return d
}

func withPhoto(t *testing.T, d model.Document, photo string) model.Document {
	t.Helper()
	raw, err := json.Marshal(photo)
	require.NoError(t, err)
	d[model.PhotoField] = raw
	return d
}

func photoString(t *testing.T, d model.Document) string {
	t.Helper()
	raw, ok := d[model.PhotoField]
	require.True(t, ok, "document has no photo")
	var s string
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

const sampleResume = `{
	"fullName": "Ada Lovelace",
	"email": "ada@example.com",
	"skills": ["analysis", "mathematics"],
	"experience": [{"role": "Analyst", "years": 3}],
	"colorScheme": "indigo"
}`

// =========================================================================
// SAVE / GET ROUND TRIP
// =========================================================================

func TestSaveGet_RoundTripWithPhoto(t *testing.T) {
	svc, table := newTestService(t)
	ctx := context.Background()
	photo := dataURL(70_000)

	res, err := svc.Save(ctx, ada, withPhoto(t, doc(t, sampleResume), photo))
	require.NoError(t, err)

	assert.Equal(t, SaveMessage, res.Message)
	assert.True(t, res.HasPhoto)
	assert.Equal(t, 3, res.PhotoChunks)
	assert.NotEmpty(t, res.Revision)

	got, err := svc.Get(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, photo, photoString(t, got))

	want := doc(t, sampleResume)
	for k, v := range want {
		assert.JSONEq(t, string(v), string(got[k]), "field %s", k)
	}
	assert.Len(t, got, len(want)+1)

	// Storage layout
	profile := table.entities["uid-ada/current"]
	assert.Equal(t, "true", profile.Properties["hasPhoto"])
	assert.Equal(t, "ada@example.com", profile.Properties["userEmail"])
	assert.Equal(t, "Ada Lovelace", profile.Properties["userName"])
	assert.Equal(t, "2026-02-03T04:05:06.789Z", profile.Properties["updatedAt"])
	assert.NotContains(t, profile.Properties["data"], "data:image")

	photoEntity := table.entities["uid-ada/photo"]
	assert.Equal(t, "3", photoEntity.Properties["chunkCount"])
	for _, name := range []string{"photo_0", "photo_1", "photo_2"} {
		assert.LessOrEqual(t, len(photoEntity.Properties[name]), MaxPhotoChunkSize)
	}
}

func TestSaveGet_NoPhoto(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "absent", input: `{"fullName": "Ada"}`},
		{name: "null", input: `{"fullName": "Ada", "photo": null}`},
		{name: "empty string", input: `{"fullName": "Ada", "photo": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, table := newTestService(t)
			ctx := context.Background()

			res, err := svc.Save(ctx, ada, doc(t, tt.input))
			require.NoError(t, err)
			assert.False(t, res.HasPhoto)
			assert.Zero(t, res.PhotoChunks)

			_, written := table.entities["uid-ada/photo"]
			assert.False(t, written, "no photo entity for a photo-less save")

			got, err := svc.Get(ctx, ada)
			require.NoError(t, err)
			assert.NotContains(t, got, model.PhotoField)
			assert.JSONEq(t, `"Ada"`, string(got["fullName"]))
		})
	}
}

func TestSave_PhotoChunkBoundary(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		wantChunks int
		wantLast   int
	}{
		{name: "exactly one chunk", size: MaxPhotoChunkSize, wantChunks: 1, wantLast: MaxPhotoChunkSize},
		{name: "one byte over", size: MaxPhotoChunkSize + 1, wantChunks: 2, wantLast: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, table := newTestService(t)
			ctx := context.Background()
			photo := dataURL(tt.size)

			res, err := svc.Save(ctx, ada, withPhoto(t, doc(t, `{}`), photo))
			require.NoError(t, err)
			assert.Equal(t, tt.wantChunks, res.PhotoChunks)

			props := table.entities["uid-ada/photo"].Properties
			last := props[fmt.Sprintf("photo_%d", tt.wantChunks-1)]
			assert.Len(t, last, tt.wantLast)
			for name, v := range props {
				assert.Less(t, len(v), repository.MaxPropertySize, "property %s", name)
			}

			got, err := svc.Get(ctx, ada)
			require.NoError(t, err)
			assert.Equal(t, photo, photoString(t, got))
		})
	}
}

func TestSaveGet_TenantIsolation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, ada, withPhoto(t, doc(t, sampleResume), dataURL(100)))
	require.NoError(t, err)

	got, err := svc.Get(ctx, grace)
	require.NoError(t, err)
	assert.Nil(t, got, "another user's resume must not be visible")
}

func TestGet_NeverSaved(t *testing.T) {
	svc, _ := newTestService(t)

	got, err := svc.Get(context.Background(), ada)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSave_ReplacesPreviousResume(t *testing.T) {
	svc, table := newTestService(t)
	ctx := context.Background()

	first, err := svc.Save(ctx, ada, withPhoto(t, doc(t, `{"fullName": "Old"}`), dataURL(50_000)))
	require.NoError(t, err)

	second, err := svc.Save(ctx, ada, doc(t, `{"fullName": "New"}`))
	require.NoError(t, err)
	assert.NotEqual(t, first.Revision, second.Revision)

	// The old photo entity is orphaned but hidden by hasPhoto=false.
	_, orphan := table.entities["uid-ada/photo"]
	assert.True(t, orphan)

	got, err := svc.Get(ctx, ada)
	require.NoError(t, err)
	assert.JSONEq(t, `"New"`, string(got["fullName"]))
	assert.NotContains(t, got, model.PhotoField)
}

func TestSave_ShrinkingPhotoDropsStaleChunks(t *testing.T) {
	svc, table := newTestService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, ada, withPhoto(t, doc(t, `{}`), dataURL(3*MaxPhotoChunkSize)))
	require.NoError(t, err)

	small := dataURL(200)
	_, err = svc.Save(ctx, ada, withPhoto(t, doc(t, `{}`), small))
	require.NoError(t, err)

	props := table.entities["uid-ada/photo"].Properties
	assert.Equal(t, "1", props["chunkCount"])
	assert.NotContains(t, props, "photo_1")

	got, err := svc.Get(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, small, photoString(t, got))
}

func TestSave_UserNameFallsBackToEmail(t *testing.T) {
	svc, table := newTestService(t)

	_, err := svc.Save(context.Background(), grace, doc(t, `{}`))
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", table.entities["uid-grace/current"].Properties["userName"])
}

func TestSave_ExistingTableIsFine(t *testing.T) {
	svc, table := newTestService(t)
	table.created = true

	_, err := svc.Save(context.Background(), ada, doc(t, `{}`))
	assert.NoError(t, err)
}

// =========================================================================
// SAVE FAILURES
// =========================================================================

func TestSave_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input model.Document
	}{
		{name: "nil document", input: nil},
		{name: "numeric photo", input: model.Document{"photo": json.RawMessage(`42`)}},
		{name: "object photo", input: model.Document{"photo": json.RawMessage(`{"src": "x"}`)}},
		{name: "oversized profile", input: model.Document{
			"summary": json.RawMessage(`"` + strings.Repeat("x", repository.MaxPropertySize) + `"`),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, table := newTestService(t)

			_, err := svc.Save(context.Background(), ada, tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
			assert.Zero(t, table.calls, "storage must not be touched")
		})
	}
}

func TestSave_ProfileCeilingBoundary(t *testing.T) {
	// `{"summary":""}` is 14 bytes of framing around the value.
	const framing = len(`{"summary":""}`)

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{name: "one byte under the ceiling", size: repository.MaxPropertySize - 1},
		{name: "exactly at the ceiling", size: repository.MaxPropertySize, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, table := newTestService(t)
			input := model.Document{
				"summary": json.RawMessage(`"` + strings.Repeat("x", tt.size-framing) + `"`),
			}

			_, err := svc.Save(context.Background(), ada, input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
				assert.Zero(t, table.calls, "storage must not be touched")
				return
			}
			require.NoError(t, err)
			stored := table.entities[repository.EntityID(ada.UID, ProfileRowKey)].Properties[propData]
			assert.Len(t, stored, tt.size)
		})
	}
}

func TestSave_Unconfigured(t *testing.T) {
	svc := NewResumeService(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.Save(context.Background(), ada, doc(t, `{}`))
	assertHint(t, err, HintMissingConnectionString)

	_, err = svc.Get(context.Background(), ada)
	assertHint(t, err, HintMissingConnectionString)
}

func TestSave_CreateTableFailure(t *testing.T) {
	svc, table := newTestService(t)
	table.createErr = errors.New("403 AuthorizationPermissionMismatch")

	_, err := svc.Save(context.Background(), ada, doc(t, `{}`))
	assertHint(t, err, HintStorageAccess)
	assert.Empty(t, table.entities)
}

func TestSave_ProfileWriteFailure(t *testing.T) {
	svc, table := newTestService(t)
	table.failUpsert[ProfileRowKey] = errors.New("connection reset")

	res, err := svc.Save(context.Background(), ada, withPhoto(t, doc(t, `{}`), dataURL(100)))
	assert.Nil(t, res)
	assertHint(t, err, HintStorageAccess)
	assert.Empty(t, table.entities, "photo is not written after a failed profile write")
}

func TestSave_PhotoWriteFailureDegradesOnRead(t *testing.T) {
	svc, table := newTestService(t)
	ctx := context.Background()
	table.failUpsert[PhotoRowKey] = errors.New("connection reset")

	res, err := svc.Save(ctx, ada, withPhoto(t, doc(t, sampleResume), dataURL(40_000)))
	assert.Nil(t, res, "a partial save is never reported as success")
	assertHint(t, err, HintStorageAccess)

	// The profile went through and claims a photo that does not exist.
	assert.Equal(t, "true", table.entities["uid-ada/current"].Properties["hasPhoto"])

	got, err := svc.Get(ctx, ada)
	require.NoError(t, err)
	assert.NotContains(t, got, model.PhotoField)
	assert.JSONEq(t, `"Ada Lovelace"`, string(got["fullName"]))
}

func TestSaveGet_RequireIdentity(t *testing.T) {
	svc, table := newTestService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, &model.Identity{}, doc(t, `{}`))
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))

	_, err = svc.Get(ctx, nil)
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
	assert.Zero(t, table.calls)
}

// =========================================================================
// GET DEGRADATION
// =========================================================================

// seed writes a profile claiming a photo plus the given photo entity.
func seed(t *testing.T, table *fakeTable, photoProps map[string]string) {
	t.Helper()
	table.created = true
	require.NoError(t, table.UpsertEntity(context.Background(), repository.Entity{
		PartitionKey: ada.UID,
		RowKey:       ProfileRowKey,
		Properties:   map[string]string{"data": `{"fullName":"Ada"}`, "hasPhoto": "true"},
	}))
	if photoProps != nil {
		require.NoError(t, table.UpsertEntity(context.Background(), repository.Entity{
			PartitionKey: ada.UID,
			RowKey:       PhotoRowKey,
			Properties:   photoProps,
		}))
	}
}

func TestGet_PhotoVariants(t *testing.T) {
	tests := []struct {
		name      string
		photo     map[string]string
		wantPhoto string // "" means no photo expected
	}{
		{
			name:      "chunked",
			photo:     map[string]string{"chunkCount": "2", "photo_0": "data:ima", "photo_1": "ge/png;base64,AA"},
			wantPhoto: "data:image/png;base64,AA",
		},
		{
			name:      "legacy single property",
			photo:     map[string]string{"photoData": "data:image/jpeg;base64,BB"},
			wantPhoto: "data:image/jpeg;base64,BB",
		},
		{
			name:  "photo entity missing",
			photo: nil,
		},
		{
			name:  "chunk missing",
			photo: map[string]string{"chunkCount": "3", "photo_0": "a", "photo_2": "c"},
		},
		{
			name:  "chunk count not a number",
			photo: map[string]string{"chunkCount": "three", "photo_0": "a"},
		},
		{
			name:  "negative chunk count",
			photo: map[string]string{"chunkCount": "-1"},
		},
		{
			name:  "no chunks and no legacy data",
			photo: map[string]string{"updatedAt": "2026-01-01T00:00:00.000Z"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, table := newTestService(t)
			seed(t, table, tt.photo)

			got, err := svc.Get(context.Background(), ada)
			require.NoError(t, err)
			assert.JSONEq(t, `"Ada"`, string(got["fullName"]))

			if tt.wantPhoto == "" {
				assert.NotContains(t, got, model.PhotoField)
				return
			}
			assert.Equal(t, tt.wantPhoto, photoString(t, got))
		})
	}
}

func TestGet_StorageFailure(t *testing.T) {
	svc, table := newTestService(t)
	table.getErr = errors.New("i/o timeout")

	_, err := svc.Get(context.Background(), ada)
	assertHint(t, err, HintStorageAccess)
}

func TestGet_CorruptProfile(t *testing.T) {
	svc, table := newTestService(t)
	table.entities["uid-ada/current"] = repository.Entity{
		PartitionKey: ada.UID,
		RowKey:       ProfileRowKey,
		Properties:   map[string]string{"data": "{not json"},
	}

	_, err := svc.Get(context.Background(), ada)
	assertHint(t, err, HintCorruptRecord)
}

func assertHint(t *testing.T, err error, hint string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrUnavailable), "got %v", err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, hint, appErr.Hint)
}
