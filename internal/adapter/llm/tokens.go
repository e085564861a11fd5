package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"penny/internal/domain"
)

// perMessageOverhead approximates the role and framing tokens each message
// costs on top of its content.
const perMessageOverhead = 4

// TokenCounter estimates prompt sizes with a tiktoken encoding. Anthropic
// does not publish its tokenizer, so cl100k_base is an approximation; the
// context guard's safety margin absorbs the difference.
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTokenCounter creates a lazy token counter. The encoding is loaded on
// first use because tiktoken fetches its vocabulary file on a cold cache.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

func (c *TokenCounter) encoding() *tiktoken.Tiktoken {
	c.once.Do(func() {
		c.enc, _ = tiktoken.GetEncoding("cl100k_base")
	})
	return c.enc
}

// Count implements domain.TokenCounter. When the encoding cannot be loaded
// (no cache and no network) it falls back to a bytes/4 estimate.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if enc := c.encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return len(text)/4 + 1
}

// CountMessages implements domain.TokenCounter.
func (c *TokenCounter) CountMessages(msgs []domain.Message) int {
	total := 0
	for _, m := range msgs {
		total += c.Count(m.Content) + perMessageOverhead
		for _, tc := range m.ToolCalls {
			total += c.Count(tc.Name) + c.Count(string(tc.Arguments))
		}
	}
	return total
}

var _ domain.TokenCounter = (*TokenCounter)(nil)
