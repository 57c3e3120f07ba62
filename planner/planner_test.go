package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/model"
)

func TestParseSubtaskList(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "numbered list",
			text: "1. Research the market\n2. Draft the plan\n3. Review with the team",
			want: []string{"Research the market", "Draft the plan", "Review with the team"},
		},
		{
			name: "bulleted list",
			text: "- First thing\n* Second thing",
			want: []string{"First thing", "Second thing"},
		},
		{
			name: "prose preamble ignored",
			text: "Here is the breakdown:\n1. Only real item",
			want: []string{"Only real item"},
		},
		{
			name: "parenthesis markers",
			text: "1) Alpha\n2) Beta",
			want: []string{"Alpha", "Beta"},
		},
		{
			name: "empty input",
			text: "",
			want: nil,
		},
		{
			name: "markers without content dropped",
			text: "1.\n2. Real item",
			want: []string{"Real item"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSubtaskList(tt.text))
		})
	}
}

func TestPlan_AssignsOrderedSubtasks(t *testing.T) {
	gen := model.NewMockGenerator()
	gen.AddResponse("task breakdown specialist", "1. Collect data\n2. Analyze data\n3. Summarize findings")

	p := New(gen)
	subtasks, err := p.Plan(context.Background(), "prepare the quarterly report")
	require.NoError(t, err)
	require.Len(t, subtasks, 3)

	assert.Equal(t, "subtask-1", subtasks[0].ID)
	assert.Equal(t, "Collect data", subtasks[0].Description)
	assert.Equal(t, 0, subtasks[0].Position)
	assert.Equal(t, "subtask-3", subtasks[2].ID)
	assert.Equal(t, 2, subtasks[2].Position)
}

func TestPlan_CapsAtMaxSubtasks(t *testing.T) {
	gen := model.NewMockGenerator()
	gen.AddResponse("task breakdown specialist", "1. a\n2. b\n3. c\n4. d\n5. e\n6. f\n7. g")

	p := New(gen, func(o *Options) { o.MaxSubtasks = 4 })
	subtasks, err := p.Plan(context.Background(), "big task")
	require.NoError(t, err)
	assert.Len(t, subtasks, 4)
}

func TestPlan_RepromptsOnceOnUnparsableOutput(t *testing.T) {
	gen := model.NewMockGenerator()
	// First prompt yields prose with no list; the strict re-prompt yields a
	// parsable list.
	gen.AddResponse("task breakdown specialist", "I would approach this holistically.")
	gen.AddResponse("Respond with ONLY a numbered list", "1. Do the thing\n2. Check the thing")

	p := New(gen)
	subtasks, err := p.Plan(context.Background(), "some task")
	require.NoError(t, err)
	assert.Len(t, subtasks, 2)
	assert.Len(t, gen.Calls(), 2)
}

func TestPlan_FailsAfterStrictReprompt(t *testing.T) {
	gen := model.NewMockGenerator()
	gen.AddResponse("task breakdown specialist", "no list here")
	gen.AddResponse("Respond with ONLY a numbered list", "still no list")

	p := New(gen)
	_, err := p.Plan(context.Background(), "some task")

	var planErr *core.PlanningError
	require.ErrorAs(t, err, &planErr)
	assert.Equal(t, "some task", planErr.Task)
	assert.Len(t, gen.Calls(), 2)
}

func TestPlan_RejectsEmptyTask(t *testing.T) {
	p := New(model.NewMockGenerator())

	_, err := p.Plan(context.Background(), "   ")
	var planErr *core.PlanningError
	require.ErrorAs(t, err, &planErr)
}

func TestPlan_GenerationFailureIsFatal(t *testing.T) {
	gen := model.NewMockGenerator()
	gen.FailNext(2) // first attempt and the strict re-prompt

	p := New(gen)
	_, err := p.Plan(context.Background(), "some task")

	var planErr *core.PlanningError
	require.ErrorAs(t, err, &planErr)
	var modelErr *model.ModelError
	assert.ErrorAs(t, err, &modelErr)
}
