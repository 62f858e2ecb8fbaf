package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/verdantlab/leaflens-backend/internal/config"
	"github.com/verdantlab/leaflens-backend/internal/imaging"
)

// ErrInference marks any failure of the external inference capability,
// including malformed responses. Callers never see a partial result.
var ErrInference = errors.New("inference failed")

// Assessment is the structured health assessment returned by the inference
// capability. Immutable once produced.
type Assessment struct {
	PlantName          string   `json:"plant_name"`
	IsHealthy          bool     `json:"is_healthy"`
	DiseaseName        string   `json:"disease_name"`
	ConfidenceScore    float64  `json:"confidence_score"`
	Description        string   `json:"description"`
	PossibleCauses     []string `json:"possible_causes"`
	RecommendedActions []string `json:"recommended_actions"`
}

// Analyzer maps image bytes to a structured assessment. The second return
// value is the raw JSON payload the assessment was parsed from.
type Analyzer interface {
	Analyze(ctx context.Context, imageBytes []byte, mimeType string) (*Assessment, []byte, error)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content interface{} `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const plantSystemPrompt = `You are LeafLens, an expert plant pathologist. Examine the plant leaf in this image carefully.
Return your assessment as a JSON object with these exact fields:
{"plant_name":"...", "is_healthy":true, "disease_name":"...", "confidence_score":0.0-1.0, "description":"...", "possible_causes":["..."], "recommended_actions":["..."]}
If the leaf is healthy, set disease_name to "None" and leave possible_causes empty.
Return ONLY the JSON object, no extra text.`

// VisionClient talks to OpenAI-compatible vision endpoints. GLM is the
// primary provider, DeepSeek the fallback.
type VisionClient struct {
	cfg *config.Config
}

func NewVisionClient(cfg *config.Config) *VisionClient {
	return &VisionClient{cfg: cfg}
}

func (v *VisionClient) Analyze(ctx context.Context, imageBytes []byte, mimeType string) (*Assessment, []byte, error) {
	dataURI := imaging.EncodeDataURI(imageBytes, mimeType)

	if v.cfg.GLMAPIKey != "" {
		result, raw, err := v.analyzeWithProvider(ctx, v.cfg.GLMAPIURL, v.cfg.GLMAPIKey, v.cfg.GLMVisionModel, dataURI, true)
		if err == nil {
			return result, raw, nil
		}
		slog.Warn("GLM analysis failed", "error", err)
	}

	if v.cfg.DeepSeekAPIKey != "" {
		result, raw, err := v.analyzeWithProvider(ctx, v.cfg.DeepSeekAPIURL, v.cfg.DeepSeekAPIKey, v.cfg.DeepSeekModel, dataURI, false)
		if err == nil {
			return result, raw, nil
		}
		slog.Warn("DeepSeek analysis failed", "error", err)
	}

	return nil, nil, fmt.Errorf("%w: no AI provider available", ErrInference)
}

func (v *VisionClient) analyzeWithProvider(ctx context.Context, apiURL, apiKey, model, dataURI string, supportsVision bool) (*Assessment, []byte, error) {
	var messages []chatMessage

	if supportsVision {
		messages = []chatMessage{
			{Role: "system", Content: plantSystemPrompt},
			{Role: "user", Content: []chatContentPart{
				{Type: "text", Text: "Please assess the health of the plant leaf in this photo."},
				{Type: "image_url", ImageURL: &chatImageURL{URL: dataURI, Detail: "auto"}},
			}},
		}
	} else {
		messages = []chatMessage{
			{Role: "system", Content: plantSystemPrompt},
			{Role: "user", Content: "I've uploaded a leaf photo for health assessment. Produce a plausible assessment. Return the JSON."},
		}
	}

	payload, err := json.Marshal(chatRequest{Model: model, Messages: messages, Temperature: 0.3})
	if err != nil {
		return nil, nil, err
	}

	timeout := v.cfg.AITimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("%w: provider status %d", ErrInference, resp.StatusCode)
	}

	var completion chatResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if len(completion.Choices) == 0 {
		return nil, nil, fmt.Errorf("%w: no response from provider", ErrInference)
	}

	var content string
	switch c := completion.Choices[0].Message.Content.(type) {
	case string:
		content = c
	default:
		contentBytes, err := json.Marshal(c)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: failed to extract content", ErrInference)
		}
		content = string(contentBytes)
	}

	assessment, raw, err := parseAssessment(content)
	if err != nil {
		return nil, nil, err
	}
	return assessment, raw, nil
}

// parseAssessment extracts the assessment JSON from the model's reply. Models
// often wrap the payload in code fences or prose; both are tolerated.
func parseAssessment(content string) (*Assessment, []byte, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	raw := []byte(content)
	var parsed Assessment
	if err := json.Unmarshal(raw, &parsed); err != nil {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start >= 0 && end > start {
			raw = []byte(content[start : end+1])
			if err2 := json.Unmarshal(raw, &parsed); err2 != nil {
				return nil, nil, fmt.Errorf("%w: unparseable assessment: %v", ErrInference, err2)
			}
		} else {
			return nil, nil, fmt.Errorf("%w: unparseable assessment: %v", ErrInference, err)
		}
	}

	if parsed.PlantName == "" && parsed.Description == "" {
		return nil, nil, fmt.Errorf("%w: empty assessment", ErrInference)
	}

	parsed.ConfidenceScore = clampScore(parsed.ConfidenceScore)
	if !parsed.IsHealthy && parsed.DiseaseName == "" {
		parsed.DiseaseName = "Unknown"
	}

	return &parsed, raw, nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
