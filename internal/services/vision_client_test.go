package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdantlab/leaflens-backend/internal/config"
)

const assessmentJSON = `{"plant_name":"Tomato","is_healthy":false,"disease_name":"Blight","confidence_score":0.92,"description":"Dark lesions.","possible_causes":["late blight"],"recommended_actions":["remove leaves"]}`

func TestParseAssessment(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "plain JSON", content: assessmentJSON},
		{name: "json code fence", content: "```json\n" + assessmentJSON + "\n```"},
		{name: "bare code fence", content: "```\n" + assessmentJSON + "\n```"},
		{name: "prose wrapped", content: "Here is my assessment:\n" + assessmentJSON + "\nHope that helps!"},
		{name: "not JSON at all", content: "the leaf looks sick to me", wantErr: true},
		{name: "empty", content: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, raw, err := parseAssessment(tt.content)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInference)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Tomato", parsed.PlantName)
			assert.Equal(t, "Blight", parsed.DiseaseName)
			assert.InDelta(t, 0.92, parsed.ConfidenceScore, 1e-9)
			assert.JSONEq(t, assessmentJSON, string(raw))
		})
	}
}

func TestParseAssessment_ClampsConfidence(t *testing.T) {
	parsed, _, err := parseAssessment(`{"plant_name":"Fern","is_healthy":true,"disease_name":"None","confidence_score":1.7,"description":"Healthy."}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, parsed.ConfidenceScore)

	parsed, _, err = parseAssessment(`{"plant_name":"Fern","is_healthy":true,"disease_name":"None","confidence_score":-0.3,"description":"Healthy."}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, parsed.ConfidenceScore)
}

func TestParseAssessment_DefaultsDiseaseNameWhenUnhealthy(t *testing.T) {
	parsed, _, err := parseAssessment(`{"plant_name":"Rose","is_healthy":false,"confidence_score":0.5,"description":"Spots."}`)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", parsed.DiseaseName)
}

func visionTestConfig(url string) *config.Config {
	return &config.Config{
		GLMAPIKey:      "test-key",
		GLMAPIURL:      url,
		GLMVisionModel: "glm-4v-plus",
		AITimeout:      5 * time.Second,
	}
}

func chatReply(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
}

func TestVisionClient_Analyze(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(chatReply("```json\n" + assessmentJSON + "\n```"))
	}))
	defer server.Close()

	client := NewVisionClient(visionTestConfig(server.URL))
	assessment, raw, err := client.Analyze(context.Background(), []byte("leaf-bytes"), "image/png")
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "glm-4v-plus", gotBody.Model)
	assert.Equal(t, "Blight", assessment.DiseaseName)
	assert.False(t, assessment.IsHealthy)
	assert.JSONEq(t, assessmentJSON, string(raw))
}

func TestVisionClient_Analyze_ProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
			},
		},
		{
			name: "unparseable content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(chatReply("sorry, I cannot help with that"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewVisionClient(visionTestConfig(server.URL))
			_, _, err := client.Analyze(context.Background(), []byte("leaf"), "image/png")
			require.ErrorIs(t, err, ErrInference)
		})
	}
}

func TestVisionClient_Analyze_NoProviderConfigured(t *testing.T) {
	client := NewVisionClient(&config.Config{})
	_, _, err := client.Analyze(context.Background(), []byte("leaf"), "image/png")
	require.ErrorIs(t, err, ErrInference)
}
