package llm

import "strings"

// modelPrice holds per-1K-token USD rates.
type modelPrice struct {
	InputPer1K  float64
	OutputPer1K float64
}

// Static price table for common models. Unknown models fall back to
// defaultPrice so cost estimates stay nonzero rather than silently
// reporting free usage.
var modelPrices = map[string]modelPrice{
	"google/gemini-3-flash-preview":  {InputPer1K: 0.000075, OutputPer1K: 0.0003},
	"google/gemini-2.5-flash":        {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	"google/gemini-2.5-pro":          {InputPer1K: 0.00125, OutputPer1K: 0.01},
	"anthropic/claude-sonnet-4.5":    {InputPer1K: 0.003, OutputPer1K: 0.015},
	"anthropic/claude-haiku-4.5":     {InputPer1K: 0.001, OutputPer1K: 0.005},
	"openai/gpt-4o":                  {InputPer1K: 0.0025, OutputPer1K: 0.01},
	"openai/gpt-4o-mini":             {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	"deepseek/deepseek-chat":         {InputPer1K: 0.00027, OutputPer1K: 0.0011},
	"meta-llama/llama-3.3-70b":       {InputPer1K: 0.00012, OutputPer1K: 0.0003},
	"mistralai/mistral-small-latest": {InputPer1K: 0.0001, OutputPer1K: 0.0003},
}

var defaultPrice = modelPrice{InputPer1K: 0.001, OutputPer1K: 0.002}

// EstimateCost returns the estimated USD cost of a completion.
func EstimateCost(model string, inputTokens, outputTokens int64) float64 {
	price, ok := modelPrices[strings.ToLower(strings.TrimSpace(model))]
	if !ok {
		price = defaultPrice
	}
	return float64(inputTokens)/1000*price.InputPer1K + float64(outputTokens)/1000*price.OutputPer1K
}
