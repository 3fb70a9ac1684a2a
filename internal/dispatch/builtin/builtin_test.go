package builtin

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	out, err := summarize(context.Background(), json.RawMessage(`"one two three four five six seven eight nine ten eleven twelve"`))
	require.NoError(t, err)
	assert.Equal(t, "Summary: one two three four five six seven eight nine ten...", out)

	out, err = summarize(context.Background(), json.RawMessage(`"short text"`))
	require.NoError(t, err)
	assert.Equal(t, "Summary: short text...", out)

	_, err = summarize(context.Background(), json.RawMessage(`{"text":"x"}`))
	assert.EqualError(t, err, "Input must be a string.")
}

func TestReverse(t *testing.T) {
	out, err := reverse(context.Background(), json.RawMessage(`"hello"`))
	require.NoError(t, err)
	assert.Equal(t, "olleh", out)

	out, err = reverse(context.Background(), json.RawMessage(`"héllo"`))
	require.NoError(t, err)
	assert.Equal(t, "olléh", out)

	_, err = reverse(context.Background(), json.RawMessage(`42`))
	assert.ErrorIs(t, err, ErrNotString)
}

func TestRandomFact(t *testing.T) {
	out, err := randomFact(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, facts, out)
}

func TestHandlers(t *testing.T) {
	h := Handlers()
	assert.Len(t, h, 3)
	assert.Contains(t, h, TextSummarizer)
	assert.Contains(t, h, ReverseText)
	assert.Contains(t, h, RandomFact)
}
