// Package tokenizer derives token counts for billing when the upstream
// provider does not report usage. Counting is a pure function of message
// content; the default counter is a character-based estimate.
package tokenizer

import "unicode/utf8"

// Message is one chat message as relayed by the gateway.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Counter maps text to a token count.
type Counter interface {
	Count(text string) int64
}

// Estimator approximates tokens as ~4 characters per token. It intentionally
// errs on the simple side; exact tokenization belongs to the upstream
// provider, whose reported usage always takes precedence.
type Estimator struct{}

// Count returns the estimated token count for a text.
func (Estimator) Count(text string) int64 {
	if text == "" {
		return 0
	}
	runes := int64(utf8.RuneCountInString(text))
	tokens := runes / 4
	if runes%4 != 0 {
		tokens++
	}
	return tokens
}

// CountMessages sums a counter over all message contents.
func CountMessages(counter Counter, messages []Message) int64 {
	var total int64
	for _, message := range messages {
		total += counter.Count(message.Content)
	}
	return total
}
