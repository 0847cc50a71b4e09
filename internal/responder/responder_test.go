package responder

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrigpt/backend/internal/services"
)

func TestStaticRespondMentionsQuestion(t *testing.T) {
	reply, err := NewStatic().Respond(context.Background(), services.ChatPrompt{Question: "When should I sow wheat?"})
	require.NoError(t, err)
	require.Contains(t, reply, "When should I sow wheat?")
}

func TestStaticRespondRejectsEmptyQuestion(t *testing.T) {
	_, err := NewStatic().Respond(context.Background(), services.ChatPrompt{Question: "   "})
	require.Error(t, err)
}

func TestReportTemplateGenerate(t *testing.T) {
	raw, err := NewReportTemplate().Generate(context.Background(), services.ReportRequest{
		CropName: "Rice",
		Region:   "Punjab",
		Language: "en",
	})
	require.NoError(t, err)

	var payload struct {
		Crop     string `json:"crop"`
		Region   string `json:"region"`
		Sections []struct {
			Title string `json:"title"`
			Body  string `json:"body"`
		} `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.Equal(t, "Rice", payload.Crop)
	require.Equal(t, "Punjab", payload.Region)
	require.NotEmpty(t, payload.Sections)
}
