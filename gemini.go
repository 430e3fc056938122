package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// question is one record returned by the question provider.
type question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// questionProvider is the external collaborator that turns a topic into an
// ordered list of multiple-choice questions.
type questionProvider interface {
	Generate(ctx context.Context, topic string, count int) ([]question, error)
}

const geminiModel = "gemini-2.0-flash"

// geminiProvider calls the Gemini REST API, rotating through the configured
// API keys when one hits its quota or rate limit.
type geminiProvider struct {
	baseURL string
	keys    []string
	client  *http.Client

	mu       sync.Mutex
	keyIndex int
}

func newGeminiProvider(cfg *Config) *geminiProvider {
	var keys []string
	for _, key := range strings.Split(cfg.geminiKeys, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}

	return &geminiProvider{
		baseURL: strings.TrimSuffix(cfg.geminiBaseURL, "/"),
		keys:    keys,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (g *geminiProvider) nextKey() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.keys) == 0 {
		return ""
	}
	return g.keys[g.keyIndex%len(g.keys)]
}

func (g *geminiProvider) rotateKey() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.keys) != 0 {
		g.keyIndex = (g.keyIndex + 1) % len(g.keys)
	}
}

type generateContentRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func quizPrompt(topic string, count int) string {
	return fmt.Sprintf(`Generate %d multiple-choice quiz questions on the topic %q.

Rules:
- Each question must have exactly 4 options
- Only ONE correct answer
- Difficulty: medium
- Avoid repetition
- Output STRICT JSON ONLY (no markdown, no explanation)

JSON format:
[
  {
    "question": "Question text",
    "options": ["Ai", "Bc", "Ci", "Dl"],
    "correctAnswer": "Ai"
  }
]
`, count, topic)
}

func (g *geminiProvider) Generate(ctx context.Context, topic string, count int) ([]question, error) {
	if len(g.keys) == 0 {
		return nil, errors.New("no Gemini API keys configured")
	}

	var lastErr error
	for attempt := 0; attempt < len(g.keys); attempt++ {
		questions, err := g.generateOnce(ctx, g.nextKey(), topic, count)
		if err == nil {
			return questions, nil
		}
		lastErr = err

		// Quota, rate limit, or key issues: try the next key.
		if isQuotaError(err) {
			g.rotateKey()
			continue
		}

		return nil, err
	}

	return nil, fmt.Errorf("all Gemini API keys exhausted: %w", lastErr)
}

func (g *geminiProvider) generateOnce(ctx context.Context, key, topic string, count int) ([]question, error) {
	body, err := json.Marshal(generateContentRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: quizPrompt(topic, count)}}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, geminiModel)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", key)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apiStatusError{status: resp.StatusCode, body: string(responseBody)}
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("empty response from Gemini")
	}

	return parseQuestions(parsed.Candidates[0].Content.Parts[0].Text)
}

// parseQuestions decodes the model output, stripping markdown fences the
// model sometimes adds despite the prompt.
func parseQuestions(raw string) ([]question, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var questions []question
	if err := json.Unmarshal([]byte(raw), &questions); err != nil {
		return nil, fmt.Errorf("malformed question JSON: %w", err)
	}

	for i, q := range questions {
		if q.Question == "" {
			return nil, fmt.Errorf("question %d has no text", i)
		}
		if len(q.Options) != 4 {
			return nil, fmt.Errorf("question %d has %d options, want 4", i, len(q.Options))
		}
		seen := make(map[string]bool, 4)
		valid := false
		for _, opt := range q.Options {
			if seen[opt] {
				return nil, fmt.Errorf("question %d has duplicate option %q", i, opt)
			}
			seen[opt] = true
			if opt == q.CorrectAnswer {
				valid = true
			}
		}
		if !valid {
			return nil, fmt.Errorf("question %d: correct answer not among options", i)
		}
	}

	return questions, nil
}

type apiStatusError struct {
	status int
	body   string
}

func (e *apiStatusError) Error() string {
	return fmt.Sprintf("API returned status code: %d, response: %s", e.status, e.body)
}

func isQuotaError(err error) bool {
	var statusErr *apiStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.status {
		case http.StatusTooManyRequests, http.StatusForbidden:
			return true
		}
		return strings.Contains(statusErr.body, "RESOURCE_EXHAUSTED")
	}
	return false
}
