// Package enrich wraps the optional LLM collaborator that rewrites changelog
// entry wording. It is a soft dependency: callers must treat a failed or
// absent response identically to a disabled feature.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Request carries one entry's raw material to the LLM.
type Request struct {
	Description string
	Category    string
	Files       []string
	Temperature float64
}

// Result is the enriched wording plus usage accounting.
type Result struct {
	Text            string
	Impact          string
	TechnicalDetail string
	TokensUsed      int
}

// Enricher rewrites one entry. Implementations must respect ctx deadlines.
type Enricher interface {
	Enrich(ctx context.Context, req Request) (*Result, error)
}

// LLMResponse is the raw response from an LLM provider.
type LLMResponse struct {
	Content    string
	TokensUsed int
}

// LLMClient abstracts LLM API calls for testability.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error)
}

// Client implements Enricher over any LLMClient.
type Client struct {
	llm LLMClient
}

// NewClient creates an Enricher backed by the given LLM client.
func NewClient(llm LLMClient) *Client {
	return &Client{llm: llm}
}

func (c *Client) Enrich(ctx context.Context, req Request) (*Result, error) {
	resp, err := c.llm.Complete(ctx, systemPrompt, buildUserPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("LLM call failed: %w", err)
	}

	result, err := parseResponse(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing LLM response: %w", err)
	}
	result.TokensUsed = resp.TokensUsed
	return result, nil
}

const systemPrompt = `You are a changelog editor. Given a raw commit description, rewrite it as a clear, user-facing changelog line.

Respond with a JSON object:
- "text": the rewritten changelog line (one sentence, imperative removed, user-facing)
- "impact": one short sentence on what this means for users, or "" if not user-visible
- "technical_detail": one short sentence of technical context, or "" if nothing useful

Keep the meaning of the original description. Do not invent features. Respond ONLY with the JSON object, no other text.`

func buildUserPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\n", req.Category)
	fmt.Fprintf(&b, "Description: %s\n", req.Description)
	if len(req.Files) > 0 {
		fmt.Fprintf(&b, "Touched files: %s\n", strings.Join(req.Files, ", "))
	}
	return b.String()
}

type enrichedPayload struct {
	Text            string `json:"text"`
	Impact          string `json:"impact"`
	TechnicalDetail string `json:"technical_detail"`
}

// parseResponse extracts the JSON payload from the LLM response text.
func parseResponse(content string) (*Result, error) {
	jsonStr, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var payload enrichedPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, fmt.Errorf("unmarshaling enrichment response: %w", err)
	}
	if strings.TrimSpace(payload.Text) == "" {
		return nil, fmt.Errorf("empty text in enrichment response")
	}

	return &Result{
		Text:            strings.TrimSpace(payload.Text),
		Impact:          strings.TrimSpace(payload.Impact),
		TechnicalDetail: strings.TrimSpace(payload.TechnicalDetail),
	}, nil
}

// extractJSON finds and returns the JSON object from text that may be
// wrapped in markdown code fences or surrounded by other text.
func extractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)

	if isValidJSON(s) {
		return s, nil
	}

	// Strip markdown code fences
	if idx := strings.Index(s, "```json"); idx != -1 {
		start := idx + len("```json")
		end := strings.Index(s[start:], "```")
		if end != -1 {
			candidate := strings.TrimSpace(s[start : start+end])
			if isValidJSON(candidate) {
				return candidate, nil
			}
		}
	}
	if idx := strings.Index(s, "```"); idx != -1 {
		start := idx + len("```")
		end := strings.Index(s[start:], "```")
		if end != -1 {
			candidate := strings.TrimSpace(s[start : start+end])
			if isValidJSON(candidate) {
				return candidate, nil
			}
		}
	}

	// Find first { and last }
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first != -1 && last > first {
		candidate := s[first : last+1]
		if isValidJSON(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no valid JSON found in response")
}

func isValidJSON(s string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(s), &js) == nil
}
