// Package usage tracks per-session token consumption and estimates cost from
// model pricing.
package usage

import (
	"fmt"
	"strings"
)

// Totals is the accumulated token usage for one session.
type Totals struct {
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	TotalTokens  int    `json:"total_tokens,omitempty"`
	Model        string `json:"model,omitempty"`
	Provider     string `json:"provider,omitempty"`
}

// Empty reports whether no token counts were recorded.
func (t *Totals) Empty() bool {
	if t == nil {
		return true
	}
	return t.InputTokens == 0 && t.OutputTokens == 0 && t.TotalTokens == 0
}

// Total returns the total token count, deriving it from input+output when the
// provider did not report one.
func (t *Totals) Total() int {
	if t == nil {
		return 0
	}
	if t.TotalTokens > 0 {
		return t.TotalTokens
	}
	return t.InputTokens + t.OutputTokens
}

// Add accumulates another usage sample into t. Model and provider stick to
// the most recent non-empty values.
func (t *Totals) Add(other Totals) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
	t.TotalTokens += other.TotalTokens
	if other.Model != "" {
		t.Model = other.Model
	}
	if other.Provider != "" {
		t.Provider = other.Provider
	}
}

// Rate is the price of one million tokens, in USD.
type Rate struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// pricing maps model-name prefixes to rates. Entries are matched by the
// longest prefix so dated model variants resolve to their family rate.
var pricing = map[string]Rate{
	"claude-opus":      {InputPerMTok: 15.00, OutputPerMTok: 75.00},
	"claude-sonnet":    {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-haiku":     {InputPerMTok: 0.80, OutputPerMTok: 4.00},
	"gpt-5":            {InputPerMTok: 1.25, OutputPerMTok: 10.00},
	"gpt-4o":           {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"gemini-2.5-pro":   {InputPerMTok: 1.25, OutputPerMTok: 10.00},
	"gemini-2.5-flash": {InputPerMTok: 0.30, OutputPerMTok: 2.50},
}

// RateFor returns the pricing rate for a model name, matching by the longest
// known prefix. ok is false when the model is unknown.
func RateFor(model string) (Rate, bool) {
	model = strings.ToLower(strings.TrimSpace(model))
	best := ""
	for prefix := range pricing {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return Rate{}, false
	}
	return pricing[best], true
}

// Cost estimates the USD cost of the given totals. ok is false when the model
// has no known rate, in which case cost is zero.
func Cost(t *Totals) (float64, bool) {
	if t == nil {
		return 0, false
	}
	rate, ok := RateFor(t.Model)
	if !ok {
		return 0, false
	}
	cost := float64(t.InputTokens)/1e6*rate.InputPerMTok +
		float64(t.OutputTokens)/1e6*rate.OutputPerMTok
	return cost, true
}

// FormatTokens renders a token count compactly ("850", "1.2k", "3.4M").
func FormatTokens(n int) string {
	switch {
	case n >= 1_000_000:
		return trimZero(fmt.Sprintf("%.1fM", float64(n)/1e6))
	case n >= 1_000:
		return trimZero(fmt.Sprintf("%.1fk", float64(n)/1e3))
	default:
		return fmt.Sprintf("%d", n)
	}
}

func trimZero(s string) string {
	s = strings.Replace(s, ".0k", "k", 1)
	return strings.Replace(s, ".0M", "M", 1)
}
