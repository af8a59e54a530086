package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// systemPrompt instructs the model to return strict JSON with the five
// keys the pool extracts.
const systemPrompt = `You are a customer support ticket classifier for a bank. ` +
	`Given a ticket description, respond with ONLY a JSON object with keys: ` +
	`request_type, sentiment, language, summary, next_actions. No prose, no markdown fences.`

// HTTPClient calls a chat-completion-compatible model endpoint.
type HTTPClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client

	mu      sync.RWMutex
	modelID string
}

// NewHTTPClient builds an HTTPClient bound to the given model id.
func NewHTTPClient(baseURL, apiKey, modelID string) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 30 * time.Second},
		modelID: modelID,
	}
}

// SetModel swaps the model id used on subsequent requests.
func (h *HTTPClient) SetModel(modelID string) {
	h.mu.Lock()
	h.modelID = modelID
	h.mu.Unlock()
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Options     chatOptions   `json:"options"`
}

type chatOptions struct {
	NumCtx int `json:"num_ctx"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type modelPayload struct {
	RequestType string `json:"request_type"`
	Sentiment   string `json:"sentiment"`
	Language    string `json:"language"`
	Summary     string `json:"summary"`
	NextActions string `json:"next_actions"`
}

func (h *HTTPClient) Analyze(ctx context.Context, description string, index, total int) (RawResult, error) {
	h.mu.RLock()
	model := h.modelID
	h.mu.RUnlock()

	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: description},
		},
		Temperature: 0,
		MaxTokens:   200,
		Options:     chatOptions{NumCtx: 1024},
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return RawResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(h.BaseURL, "/")+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return RawResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.APIKey)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return RawResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return RawResult{}, fmt.Errorf("nlp endpoint returned status %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return RawResult{}, err
	}
	if len(cr.Choices) == 0 {
		return RawResult{}, errors.New("nlp endpoint returned no choices")
	}

	jsonSpan := extractJSON(cr.Choices[0].Message.Content)
	if jsonSpan == "" {
		return RawResult{}, errors.New("nlp response contained no JSON object")
	}

	var payload modelPayload
	if err := json.Unmarshal([]byte(jsonSpan), &payload); err != nil {
		return RawResult{}, err
	}

	return RawResult{
		RequestType: payload.RequestType,
		Sentiment:   payload.Sentiment,
		Language:    payload.Language,
		Summary:     payload.Summary,
		NextActions: payload.NextActions,
	}, nil
}
