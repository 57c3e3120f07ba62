package aggregator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/model"
)

func testTask() core.Task {
	return core.NewTask("write a travel guide", []string{"pick destinations", "research hotels", "draft itinerary"})
}

func TestAggregate_MergesAllResults(t *testing.T) {
	gen := model.NewMockGenerator()
	gen.AddResponse("result merger", "  The final travel guide.  ")

	a := New(gen)
	task := testTask()

	results := core.NewResults()
	require.NoError(t, results.Record("subtask-1", "Rome, Lisbon"))
	require.NoError(t, results.Record("subtask-2", "three hotels each"))
	require.NoError(t, results.Record("subtask-3", "seven day plan"))

	final, err := a.Aggregate(context.Background(), task, "compressed notes", results)
	require.NoError(t, err)
	assert.Equal(t, "The final travel guide.", final)

	// The merge prompt carries every output, in subtask order.
	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "Rome, Lisbon")
	assert.Contains(t, calls[0], "three hotels each")
	assert.Contains(t, calls[0], "seven day plan")
	assert.Contains(t, calls[0], "compressed notes")
	assert.Less(t,
		strings.Index(calls[0], "pick destinations"),
		strings.Index(calls[0], "draft itinerary"))
}

func TestAggregate_MissingResultIsInvariantViolation(t *testing.T) {
	gen := model.NewMockGenerator()
	a := New(gen)
	task := testTask()

	results := core.NewResults()
	require.NoError(t, results.Record("subtask-1", "Rome, Lisbon"))

	_, err := a.Aggregate(context.Background(), task, "", results)

	var aggErr *core.AggregationError
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, []string{"subtask-2", "subtask-3"}, aggErr.Missing)
	// No model call is made for an invalid result set.
	assert.Empty(t, gen.Calls())
}

func TestAggregate_GenerationFailure(t *testing.T) {
	gen := model.NewMockGenerator()
	gen.FailNext(1)

	a := New(gen)
	task := testTask()

	results := core.NewResults()
	require.NoError(t, results.Record("subtask-1", "a"))
	require.NoError(t, results.Record("subtask-2", "b"))
	require.NoError(t, results.Record("subtask-3", "c"))

	_, err := a.Aggregate(context.Background(), task, "", results)
	require.Error(t, err)

	var modelErr *model.ModelError
	assert.ErrorAs(t, err, &modelErr)
}
