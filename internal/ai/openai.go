package ai

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/calebh/marketscout/internal/domain"
)

// OpenAIConfig holds the evaluator client settings.
type OpenAIConfig struct {
	Model   string
	APIKey  string
	BaseURL string
}

// OpenAIEvaluator rates listings through an OpenAI-compatible chat completion
// endpoint.
type OpenAIEvaluator struct {
	client   *resty.Client
	model    string
	endpoint string
}

// NewOpenAIEvaluator creates an evaluator client.
// Parameters:
//   - cfg: evaluator configuration including model and API key.
// Returns:
//   - *OpenAIEvaluator: initialized client wrapper.
func NewOpenAIEvaluator(cfg *OpenAIConfig) *OpenAIEvaluator {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(60 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIEvaluator{
		client:   client,
		model:    cfg.Model,
		endpoint: baseURL + "/chat/completions",
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

const systemPrompt = `You rate secondhand marketplace listings against a buyer's search intent.
Reply with exactly two lines:
Rating: <1-5>
<one-sentence explanation>`

// Evaluate rates one listing.
func (e *OpenAIEvaluator) Evaluate(ctx context.Context, listing *domain.Listing, item *domain.ItemSpec) (*Evaluation, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The buyer searches for %q", item.Name)
	if len(item.SearchPhrases) > 0 {
		fmt.Fprintf(&sb, " (phrases: %s)", strings.Join(item.SearchPhrases, ", "))
	}
	sb.WriteString(".\n\nListing:\n")
	fmt.Fprintf(&sb, "Title: %s\n", listing.Title)
	if listing.HasPrice() {
		fmt.Fprintf(&sb, "Price: %.2f %s\n", *listing.Price, listing.Currency)
	}
	if listing.Location != "" {
		fmt.Fprintf(&sb, "Location: %s\n", listing.Location)
	}
	if listing.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", listing.Description)
	}

	req := chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: sb.String()},
		},
		MaxTokens: 200,
	}

	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&chatResponse{}).
		Post(e.endpoint)
	if err != nil {
		return nil, fmt.Errorf("evaluation request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("evaluation request returned %s", resp.Status())
	}

	result := resp.Result().(*chatResponse)
	if result.Error != nil {
		return nil, fmt.Errorf("evaluation API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("evaluation returned no choices")
	}
	return parseEvaluation(result.Choices[0].Message.Content), nil
}

// parseEvaluation extracts the rating line; malformed replies degrade to an
// unrated evaluation with the raw content as explanation.
func parseEvaluation(content string) *Evaluation {
	eval := &Evaluation{Explanation: strings.TrimSpace(content)}
	lines := strings.SplitN(strings.TrimSpace(content), "\n", 2)
	first := strings.TrimSpace(lines[0])
	if rest, ok := strings.CutPrefix(first, "Rating:"); ok {
		if rating, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil && rating >= 1 && rating <= 5 {
			eval.Rating = rating
			if len(lines) > 1 {
				eval.Explanation = strings.TrimSpace(lines[1])
			}
		}
	}
	return eval
}
