// Package responder provides the built-in answer and report generators used
// when no external language model backend is configured. They return
// deterministic advisory content so the API remains usable in development
// and self-hosted deployments without model credentials.
package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gorm.io/datatypes"

	"github.com/agrigpt/backend/internal/services"
	apperrors "github.com/agrigpt/backend/pkg/errors"
)

// Static answers chat prompts with a canned advisory message that restates
// the question. It satisfies services.Responder.
type Static struct{}

// NewStatic returns the built-in chat responder.
func NewStatic() *Static {
	return &Static{}
}

// Respond produces a deterministic reply for the prompt.
func (s *Static) Respond(_ context.Context, prompt services.ChatPrompt) (string, error) {
	question := strings.TrimSpace(prompt.Question)
	if question == "" {
		return "", fmt.Errorf("empty question")
	}
	return fmt.Sprintf(
		"Thanks for your question about %q. A language model backend is not configured on this server, so automatic advice is unavailable. Please consult your local agricultural extension office.",
		question,
	), nil
}

// UnconfiguredTranscriber satisfies services.Transcriber when no speech
// backend is available. Unlike the chat and report placeholders it cannot
// invent content from audio, so every call fails with a client-visible
// bad-request error rather than a server fault.
type UnconfiguredTranscriber struct{}

// NewUnconfiguredTranscriber returns the built-in transcriber stand-in.
func NewUnconfiguredTranscriber() *UnconfiguredTranscriber {
	return &UnconfiguredTranscriber{}
}

// Transcribe always reports that no backend is configured.
func (t *UnconfiguredTranscriber) Transcribe(_ context.Context, _ io.Reader, _ string) (*services.Transcript, error) {
	return nil, apperrors.NewBadRequest("Voice input is not enabled on this server")
}

// ReportTemplate builds report payloads from a fixed section template. It
// satisfies services.Generator.
type ReportTemplate struct{}

// NewReportTemplate returns the built-in report generator.
func NewReportTemplate() *ReportTemplate {
	return &ReportTemplate{}
}

type reportPayload struct {
	Crop     string          `json:"crop"`
	Region   string          `json:"region"`
	Language string          `json:"language,omitempty"`
	Sections []reportSection `json:"sections"`
}

type reportSection struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Generate produces a templated report for the crop and region.
func (g *ReportTemplate) Generate(_ context.Context, req services.ReportRequest) (datatypes.JSON, error) {
	payload := reportPayload{
		Crop:     req.CropName,
		Region:   req.Region,
		Language: req.Language,
		Sections: []reportSection{
			{
				Title: "Overview",
				Body:  fmt.Sprintf("Cultivation report for %s in %s.", req.CropName, req.Region),
			},
			{
				Title: "Note",
				Body:  "A report generation backend is not configured on this server. This is a placeholder report.",
			},
		},
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal report payload: %w", err)
	}
	return datatypes.JSON(raw), nil
}
