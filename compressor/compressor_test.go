package compressor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/model"
)

func TestCompress_BoundsOutput(t *testing.T) {
	gen := model.NewMockGenerator()
	gen.AddResponse("Compressed context:", strings.Repeat("word ", 500))

	c, err := New(gen, func(o *Options) { o.MaxChars = 100 })
	require.NoError(t, err)

	full := strings.Repeat("accumulated context ", 50)
	summary, err := c.Compress(context.Background(), full, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(summary), 100)
	assert.NotEmpty(t, summary)
}

func TestCompress_NeverExceedsInputLength(t *testing.T) {
	gen := model.NewMockGenerator()
	gen.AddResponse("Compressed context:", strings.Repeat("verbose expansion ", 40))

	c, err := New(gen)
	require.NoError(t, err)

	full := "short input context"
	summary, err := c.Compress(context.Background(), full, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(summary), len(full))
}

func TestCompress_EmptyInputFails(t *testing.T) {
	c, err := New(model.NewMockGenerator())
	require.NoError(t, err)

	_, err = c.Compress(context.Background(), "   ", nil)
	var compErr *core.CompressionError
	require.ErrorAs(t, err, &compErr)
}

func TestCompress_GenerationFailure(t *testing.T) {
	gen := model.NewMockGenerator()
	gen.FailNext(1)

	c, err := New(gen)
	require.NoError(t, err)

	_, err = c.Compress(context.Background(), "some accumulated context", nil)
	var compErr *core.CompressionError
	require.ErrorAs(t, err, &compErr)
}

func TestCompress_EmptySummaryFails(t *testing.T) {
	gen := model.NewMockGenerator()
	gen.AddResponse("Compressed context:", "   ")

	c, err := New(gen)
	require.NoError(t, err)

	_, err = c.Compress(context.Background(), "some accumulated context", nil)
	var compErr *core.CompressionError
	require.ErrorAs(t, err, &compErr)
}

func TestCompress_IncludesRecentEpisodes(t *testing.T) {
	gen := model.NewMockGenerator()
	gen.AddResponse("Compressed context:", "summary")

	c, err := New(gen)
	require.NoError(t, err)

	episodes := []core.Episode{
		{SubtaskDescription: "gather data", ActionSummary: "collected 12 sources"},
	}
	_, err = c.Compress(context.Background(), "the accumulated context so far", episodes)
	require.NoError(t, err)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "gather data")
	assert.Contains(t, calls[0], "collected 12 sources")
}

func TestContextSize_CharacterMode(t *testing.T) {
	c, err := New(model.NewMockGenerator())
	require.NoError(t, err)
	assert.Equal(t, 11, c.ContextSize("hello world"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))
	assert.Equal(t, "", Truncate("", 10))

	long := "one two three four five six seven"
	got := Truncate(long, 20)
	assert.LessOrEqual(t, len(got), 20)
	// Cuts at a word boundary rather than mid-word.
	assert.False(t, strings.HasSuffix(got, "fou"))
	assert.True(t, strings.HasPrefix(long, got))
}

func TestTruncateTail(t *testing.T) {
	assert.Equal(t, "short", TruncateTail("short", 100))

	long := "one two three four five six seven"
	got := TruncateTail(long, 15)
	assert.LessOrEqual(t, len(got), 15)
	assert.True(t, strings.HasSuffix(long, got))
}
