package vision

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// EstimateTokens returns a best-effort prompt token count using the
// cl100k_base encoding. Providers tokenize differently; this is for budget
// metrics, not billing.
func EstimateTokens(text string) int {
	encOnce.Do(func() {
		enc, _ = tiktoken.GetEncoding("cl100k_base")
	})
	if enc == nil {
		// encoding unavailable: fall back to a crude bytes/4 heuristic
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
