package service

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/resume-builder/internal/apperror"
	"github.com/sakif/resume-builder/internal/model"
)

const (
	// GenerateMessage is the confirmation returned by Generate.
	GenerateMessage = "Resume generated successfully"

	defaultSkills = "various areas"
)

// GenerateService turns submitted form fields into a display-ready resume.
// It is stateless and needs no identity.
type GenerateService struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewGenerateService creates a GenerateService.
func NewGenerateService(logger *slog.Logger) *GenerateService {
	return &GenerateService{logger: logger, now: time.Now}
}

// Generate echoes doc with two extra fields: generatedSummary, a one-line
// summary built from the skills list, and generatedAt.
func (s *GenerateService) Generate(doc model.Document) (*model.GeneratedResume, error) {
	if doc == nil {
		return nil, apperror.ValidationFailed("body", "Please pass resume data in the request body")
	}

	var skills []string
	if raw, ok := doc["skills"]; ok {
		if err := json.Unmarshal(raw, &skills); err != nil {
			return nil, apperror.ValidationFailed("skills", "skills must be a list of strings")
		}
	}

	joined := strings.Join(skills, ", ")
	if joined == "" {
		joined = defaultSkills
	}

	out := make(model.Document, len(doc)+2)
	for k, v := range doc {
		out[k] = v
	}
	out["generatedSummary"] = mustJSON("Driven professional with skills in " + joined + ".")
	out["generatedAt"] = mustJSON(s.now().UTC().Format(timestampLayout))

	s.logger.Debug("resume generated", slog.Int("skills", len(skills)))

	return &model.GeneratedResume{
		Message: GenerateMessage,
		Resume:  out,
	}, nil
}

// mustJSON encodes a string, which cannot fail.
func mustJSON(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
