// Package normalize flattens provider-specific JSON responses into a
// fixed shape per capability verb, per spec §4.9.
package normalize

import "encoding/json"

type reasonResult struct {
	Content string          `json:"content"`
	Model   string          `json:"model"`
	Usage   reasonUsage     `json:"usage"`
	Raw     json.RawMessage `json:"raw"`
}

type reasonUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type searchResult struct {
	Results []searchHit     `json:"results"`
	Raw     json.RawMessage `json:"raw"`
}

type searchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type unknownResult struct {
	Data json.RawMessage `json:"data"`
	Raw  json.RawMessage `json:"raw"`
}

// openAIChatCompletion is the shape Normalize expects from a "reason"
// capability provider speaking the OpenAI chat-completions wire format.
type openAIChatCompletion struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type serperSearchResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Normalizer implements ports.Normalizer: one mapper per capability verb,
// with an Unknown fallback. raw is always included unmodified.
type Normalizer struct{}

func New() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) Normalize(capability, providerSlug string, raw []byte) ([]byte, error) {
	switch capability {
	case "reason":
		return normalizeReason(raw)
	case "search":
		return normalizeSearch(raw)
	default:
		return normalizeUnknown(raw)
	}
}

func normalizeReason(raw []byte) ([]byte, error) {
	var completion openAIChatCompletion
	// A parse failure is not fatal here: fall back to the unknown shape
	// rather than erroring the whole call over a cosmetic mismatch.
	if err := json.Unmarshal(raw, &completion); err != nil {
		return normalizeUnknown(raw)
	}

	var content string
	if len(completion.Choices) > 0 {
		content = completion.Choices[0].Message.Content
	}

	out := reasonResult{
		Content: content,
		Model:   completion.Model,
		Usage: reasonUsage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
			TotalTokens:  completion.Usage.TotalTokens,
		},
		Raw: json.RawMessage(raw),
	}
	return json.Marshal(out)
}

func normalizeSearch(raw []byte) ([]byte, error) {
	var resp serperSearchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return normalizeUnknown(raw)
	}

	hits := make([]searchHit, 0, len(resp.Organic))
	for _, o := range resp.Organic {
		hits = append(hits, searchHit{Title: o.Title, URL: o.Link, Snippet: o.Snippet})
	}

	out := searchResult{Results: hits, Raw: json.RawMessage(raw)}
	return json.Marshal(out)
}

func normalizeUnknown(raw []byte) ([]byte, error) {
	out := unknownResult{Data: json.RawMessage(raw), Raw: json.RawMessage(raw)}
	return json.Marshal(out)
}
