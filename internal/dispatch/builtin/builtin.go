// Package builtin provides the in-process functions shipped with the broker.
package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"strings"

	"github.com/Praises003/aether/internal/dispatch"
)

const (
	TextSummarizer = "TEXT_SUMMARIZER_V1"
	ReverseText    = "REVERSE_TEXT_V1"
	RandomFact     = "RANDOM_FACT_V1"
)

// summaryWords is how many leading words a summary keeps.
const summaryWords = 10

// ErrNotString is returned by the text handlers for non-string input. Its
// text is the errorMessage clients see on the outcome and receipt.
var ErrNotString = errors.New("Input must be a string.") //nolint:staticcheck // client-visible message

var facts = []string{
	"Hedera uses aBFT, the highest level of security for a consensus algorithm.",
	"A Hedera consensus topic orders messages with a fair consensus timestamp.",
	"One hbar is divided into 100,000,000 tinybar.",
}

// Handlers returns the built-in handlers keyed by function identifier.
func Handlers() map[string]dispatch.Handler {
	return map[string]dispatch.Handler{
		TextSummarizer: summarize,
		ReverseText:    reverse,
		RandomFact:     randomFact,
	}
}

func stringInput(input json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(input, &s); err != nil {
		return "", ErrNotString
	}
	return s, nil
}

func summarize(_ context.Context, input json.RawMessage) (any, error) {
	text, err := stringInput(input)
	if err != nil {
		return nil, err
	}

	words := strings.Fields(text)
	if len(words) > summaryWords {
		words = words[:summaryWords]
	}
	return "Summary: " + strings.Join(words, " ") + "...", nil
}

func reverse(_ context.Context, input json.RawMessage) (any, error) {
	text, err := stringInput(input)
	if err != nil {
		return nil, err
	}

	runes := []rune(text)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes), nil
}

func randomFact(_ context.Context, _ json.RawMessage) (any, error) {
	return facts[rand.IntN(len(facts))], nil
}
