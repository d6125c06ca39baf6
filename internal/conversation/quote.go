package conversation

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Quote is an estimated price range in whole pounds.
type Quote struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// DefaultQuote is used whenever the assistant's estimate is unusable.
var DefaultQuote = Quote{Min: 80, Max: 200}

const quoteSystemPrompt = "You are a pricing assistant for a service business. Reply with ONLY valid JSON."

func quotePrompt(serviceType, description string, urgent bool) string {
	return fmt.Sprintf(`Give me a JSON quote estimate for this job.
Service: %s
Description: %s
Urgent: %t

Reply with ONLY valid JSON in this exact format: {"min": 80, "max": 150}
No explanation, just the JSON.`, serviceType, description, urgent)
}

// ParseQuote extracts {"min": n, "max": n} from a model reply. A code fence
// or surrounding prose is tolerated; missing, non-numeric or negative values
// are not. A reversed range is swapped.
func ParseQuote(reply string) (Quote, bool) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return Quote{}, false
	}

	var raw struct {
		Min *float64 `json:"min"`
		Max *float64 `json:"max"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return Quote{}, false
	}
	if raw.Min == nil || raw.Max == nil {
		return Quote{}, false
	}
	lo, hi := *raw.Min, *raw.Max
	if lo < 0 || hi < 0 || math.IsNaN(lo) || math.IsNaN(hi) || lo > math.MaxInt32 || hi > math.MaxInt32 {
		return Quote{}, false
	}
	q := Quote{Min: int(math.Round(lo)), Max: int(math.Round(hi))}
	if q.Min > q.Max {
		q.Min, q.Max = q.Max, q.Min
	}
	return q, true
}
