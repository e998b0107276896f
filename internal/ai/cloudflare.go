// Package ai calls Cloudflare Workers AI to enrich conversions: image
// classification through resnet-50 and audio transcription through
// whisper. Every failure here is non-fatal to the conversion that asked.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"convflow/api/internal/config"
)

const (
	imageModel = "@cf/microsoft/resnet-50"
	audioModel = "@cf/openai/whisper-large-v3-turbo"
)

type Annotator interface {
	Enabled() bool
	AnnotateImage(ctx context.Context, data []byte) (string, error)
	TranscribeAudio(ctx context.Context, data []byte) (string, error)
}

type Cloudflare struct {
	accountID string
	apiToken  string
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
}

func NewCloudflare(cfg config.AIConfig, log zerolog.Logger) *Cloudflare {
	if cfg.AccountID == "" || cfg.APIToken == "" {
		log.Warn().Msg("cloudflare ai credentials not configured, annotation disabled")
	}
	return &Cloudflare{
		accountID: cfg.AccountID,
		apiToken:  cfg.APIToken,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		client:    &http.Client{Timeout: cfg.Timeout},
		log:       log,
	}
}

func (c *Cloudflare) Enabled() bool {
	return c.accountID != "" && c.apiToken != ""
}

type runResponse struct {
	Result  json.RawMessage `json:"result"`
	Success bool            `json:"success"`
}

func (c *Cloudflare) run(ctx context.Context, model string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/ai/run/%s", c.baseURL, c.accountID, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudflare ai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cloudflare ai status %d", resp.StatusCode)
	}

	var parsed runResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode cloudflare response: %w", err)
	}
	if parsed.Result == nil {
		return nil, fmt.Errorf("cloudflare response missing result")
	}
	return parsed.Result, nil
}

type classification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// AnnotateImage classifies the image and formats the top labels as a
// markdown section.
func (c *Cloudflare) AnnotateImage(ctx context.Context, data []byte) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("cloudflare ai not configured")
	}

	result, err := c.run(ctx, imageModel, map[string]string{
		"image": base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return "", err
	}

	var classifications []classification
	if err := json.Unmarshal(result, &classifications); err != nil {
		return "", fmt.Errorf("decode classifications: %w", err)
	}
	if len(classifications) == 0 {
		return "## Image Analysis\nNo classifications returned", nil
	}

	sort.Slice(classifications, func(i, j int) bool {
		return classifications[i].Score > classifications[j].Score
	})
	if len(classifications) > 5 {
		classifications = classifications[:5]
	}

	var b strings.Builder
	b.WriteString("## Image Analysis")
	for i, cl := range classifications {
		fmt.Fprintf(&b, "\n%d. %s (confidence: %.2f%%)", i+1, cl.Label, cl.Score*100)
	}
	return b.String(), nil
}

// TranscribeAudio runs whisper over the audio bytes and returns the
// transcription as a markdown section.
func (c *Cloudflare) TranscribeAudio(ctx context.Context, data []byte) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("cloudflare ai not configured")
	}

	result, err := c.run(ctx, audioModel, map[string]string{
		"file": base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return "", err
	}

	// The model returns either {"text": "..."} or a bare string.
	var structured struct {
		Text string `json:"text"`
	}
	text := ""
	if err := json.Unmarshal(result, &structured); err == nil && structured.Text != "" {
		text = structured.Text
	} else {
		var plain string
		if err := json.Unmarshal(result, &plain); err == nil {
			text = plain
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "## Audio Transcription\n[No speech detected]", nil
	}
	return "## Audio Transcription\n" + text, nil
}
