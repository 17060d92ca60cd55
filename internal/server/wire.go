package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sakif/resume-builder/internal/auth"
	"github.com/sakif/resume-builder/internal/config"
	"github.com/sakif/resume-builder/internal/repository"
	redisRepo "github.com/sakif/resume-builder/internal/repository/redis"
	sqliteRepo "github.com/sakif/resume-builder/internal/repository/sqlite"
)

// redisKeyPrefix namespaces every key the Redis store writes.
const redisKeyPrefix = "resume:"

// Wire opens the table store and builds the token verifier described by
// cfg. Absent settings leave the matching dependency nil and log a warning;
// malformed settings are errors.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Dependencies, error) {
	var deps Dependencies

	table, closer, backend, err := OpenTable(ctx, cfg.Storage)
	if err != nil {
		return deps, err
	}
	if table == nil {
		logger.Warn("RESUME_STORAGE_CONNECTION_STRING not set; resume routes will return 500")
	} else {
		deps.Table = table
		deps.Storage = backend
		deps.Closers = append(deps.Closers, closer)
	}

	verifier, mode, err := BuildVerifier(ctx, cfg, logger)
	if err != nil {
		deps.Close()
		return Dependencies{}, err
	}
	if verifier == nil {
		logger.Warn("FIREBASE_SERVICE_ACCOUNT not set; authenticated routes will return 500")
	}
	deps.Verifier = verifier
	deps.AuthMode = mode

	return deps, nil
}

// OpenTable opens the store named by the connection string and returns the
// configured table, a closer for the store, and the backend name.
//
// CONNECTION STRINGS:
//
//	""                        → not configured (nil table, no error)
//	redis://host:6379/0       → Redis (rediss:// for TLS)
//	sqlite:data/resumes.db    → SQLite file, directory created if needed
//	file:data/resumes.db?...  → SQLite URI, passed through to the driver
//	:memory:                  → in-memory SQLite
func OpenTable(ctx context.Context, storage config.Storage) (repository.Table, io.Closer, string, error) {
	conn := strings.TrimSpace(storage.ConnectionString)
	if conn == "" {
		return nil, nil, "", nil
	}
	if err := repository.ValidateTableName(storage.TableName); err != nil {
		return nil, nil, "", fmt.Errorf("RESUME_TABLE_NAME: %w", err)
	}

	switch {
	case strings.HasPrefix(conn, "redis://"), strings.HasPrefix(conn, "rediss://"):
		store, err := redisRepo.New(ctx, conn, redisKeyPrefix)
		if err != nil {
			return nil, nil, "", err
		}
		return store.Table(storage.TableName), store, "redis", nil

	case conn == ":memory:", strings.HasPrefix(conn, "file:"):
		db, err := sqliteRepo.New(conn)
		if err != nil {
			return nil, nil, "", err
		}
		return db.Table(storage.TableName), db, "sqlite", nil

	case strings.HasPrefix(conn, "sqlite:"):
		path := strings.TrimPrefix(conn, "sqlite:")
		if path == "" {
			return nil, nil, "", errors.New("RESUME_STORAGE_CONNECTION_STRING: sqlite: needs a path")
		}
		if path != ":memory:" {
			// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, nil, "", fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(path)
		if err != nil {
			return nil, nil, "", err
		}
		return db.Table(storage.TableName), db, "sqlite", nil

	default:
		return nil, nil, "", errors.New("RESUME_STORAGE_CONNECTION_STRING: unsupported scheme (want redis://, rediss://, sqlite:, file: or :memory:)")
	}
}

// BuildVerifier returns the verifier for the configured auth mode and the
// mode's name. In firebase mode with neither a service account nor a
// project ID it returns a nil verifier, which the Gate turns into a 500
// with a hint.
func BuildVerifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.Verifier, string, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeInsecureDev:
		if cfg.IsProduction() {
			return nil, "", errors.New("insecure dev auth is not allowed in production")
		}
		v, err := auth.NewInsecureVerifier(logger)
		if err != nil {
			return nil, "", err
		}
		return v, config.AuthModeInsecureDev, nil

	case config.AuthModeFirebase:
		projectID := cfg.Auth.ProjectID
		if cfg.Auth.ServiceAccount != "" {
			fromAccount, err := auth.ProjectIDFromServiceAccount(ctx, []byte(cfg.Auth.ServiceAccount))
			if err != nil {
				return nil, "", fmt.Errorf("FIREBASE_SERVICE_ACCOUNT: %w", err)
			}
			if projectID == "" {
				projectID = fromAccount
			}
		}
		if projectID == "" {
			return nil, "", nil
		}

		v, err := auth.NewFirebaseVerifier(projectID)
		if err != nil {
			return nil, "", err
		}
		logger.Info("firebase token verification enabled", slog.String("project_id", projectID))
		return v, config.AuthModeFirebase, nil

	default:
		return nil, "", fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
}
