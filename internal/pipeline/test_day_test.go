package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadplan/internal/content"
	"roadplan/internal/distance"
	"roadplan/internal/llm"
	"roadplan/internal/repository/artifact"
	"roadplan/internal/types"
)

func newDayProcessor(c ContentGenerator) *DayProcessor {
	return &DayProcessor{
		Optimizer: &RouteOptimizer{Distance: distance.Estimator{}, Logger: quietLogger()},
		Detector:  newDetector(),
		Resolver:  newResolver(c),
		Logger:    quietLogger(),
	}
}

func TestProcessRepairsDay(t *testing.T) {
	c := &fakeContent{replies: []fakeReplacement{{act: types.Activity{Name: "Parc Borély"}}}}
	day := closedMondayDay()
	day.Activities = append(day.Activities, act("Dinner", 12, 5, 13, 0))

	rep := newDayProcessor(c).Process(context.Background(), day, DayOptions{})

	require.True(t, rep.Resolved)
	assert.Equal(t, 1, rep.Passes)
	assert.Equal(t, "Parc Borély", rep.Day.Activities[1].Name)
	// the buffer conflict survives the replacement and dinner moves back
	assert.Equal(t, types.TimeWindow{Start: clock(12, 10), End: clock(13, 5)}, rep.Day.Activities[2].Window)
	assert.Empty(t, rep.Conflicts)
	assert.False(t, rep.Optimization.Optimized)
}

func TestProcessWithoutDetectorOrResolver(t *testing.T) {
	p := &DayProcessor{Logger: quietLogger()}

	rep := p.Process(context.Background(), closedMondayDay(), DayOptions{})

	assert.False(t, rep.Resolved)
	assert.Equal(t, 0, rep.Passes)
	assert.Equal(t, 1, countType(rep.Conflicts, types.ConflictClosedAllDay))
	assert.Empty(t, rep.Resolutions)
	assert.Equal(t, "Musée Cantini", rep.Day.Activities[1].Name)
}

func TestProcessStopsWithoutProgress(t *testing.T) {
	c := &fakeContent{replies: []fakeReplacement{{err: errors.New("quota")}}}

	rep := newDayProcessor(c).Process(context.Background(), closedMondayDay(), DayOptions{MaxPasses: 5})

	assert.False(t, rep.Resolved)
	assert.Equal(t, 1, rep.Passes)
	assert.Equal(t, 1, countType(rep.Conflicts, types.ConflictClosedAllDay))
	require.Len(t, rep.Resolutions, 1)
	assert.Equal(t, types.ResolutionRegenerationFailed, rep.Resolutions[0].Type)
}

func TestProcessCleanDaySkipsResolver(t *testing.T) {
	day := types.DayItinerary{Date: monday, Activities: []types.Activity{
		act("a", 9, 0, 10, 0),
		act("b", 10, 30, 11, 0),
	}}
	rep := newDayProcessor(nil).Process(context.Background(), day, DayOptions{SkipOptimize: true})
	assert.True(t, rep.Resolved)
	assert.Equal(t, 0, rep.Passes)
	assert.Empty(t, rep.Conflicts)
	assert.Empty(t, rep.Resolutions)
}

func TestTripRunnerPersistsReports(t *testing.T) {
	store := artifact.NewMemoryStore()
	runner := &TripRunner{
		Days:     newDayProcessor(&fakeContent{replies: []fakeReplacement{{act: types.Activity{Name: "Parc Borély"}}}}),
		Store:    store,
		Workers:  2,
		Logger:   quietLogger(),
		NewRunID: func() string { return "run-1" },
	}
	days := []types.DayItinerary{
		{Index: 1, Date: monday, City: "Marseille", Activities: []types.Activity{act("a", 9, 0, 10, 0), act("b", 10, 5, 11, 0)}},
		closedMondayDay(),
		{Index: 3, Date: "2024-06-12", City: "Marseille", Activities: []types.Activity{act("c", 9, 0, 10, 0)}},
	}

	res := runner.Run(context.Background(), days, DayOptions{})

	assert.Equal(t, "run-1", res.RunID)
	require.Len(t, res.Reports, 3)
	for i, rep := range res.Reports {
		assert.Equal(t, days[i].Index, rep.Day.Index)
	}
	assert.Equal(t, 3, res.Summary.Resolved)

	paths, err := store.List(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"day-1.json", "day-2.json", "day-3.json", "summary.json"}, paths)

	var got types.DayReport
	require.NoError(t, artifact.GetJSON(context.Background(), store, "run-1", "day-2.json", &got))
	assert.Equal(t, "Parc Borély", got.Day.Activities[1].Name)
}

func TestTripRunnerUsesContextRunID(t *testing.T) {
	runner := &TripRunner{Days: newDayProcessor(nil), Logger: quietLogger()}
	res := runner.Run(WithRunID(context.Background(), "fixed"), nil, DayOptions{})
	assert.Equal(t, "fixed", res.RunID)
	assert.Empty(t, res.Reports)
}

func TestPromptSaverRecordsExchanges(t *testing.T) {
	store := artifact.NewMemoryStore()
	saver := &PromptSaver{Store: store, Logger: quietLogger()}
	fake := llm.NewFakeClient().Script(content.PhaseReplacement, llm.FakeReply{Text: `{"name": "Parc Borély"}`})
	gen := &content.Generator{LLM: llm.Wrap(fake, llm.WithHook(saver)), Logger: quietLogger()}

	ctx := WithRunID(context.Background(), "run-p")
	_, err := gen.ProposeReplacement(ctx, types.ReplacementRequest{City: "Marseille", Reason: "closed_all_day"})
	require.NoError(t, err)

	raw, err := store.Get(context.Background(), "run-p", "prompts/replacement-001.txt")
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, "[INPUT JSON]")
	assert.Contains(t, text, "closed_all_day")
	assert.True(t, strings.Contains(text, "[RESPONSE]") && strings.Contains(text, "Parc Borély"))

	// no run in context, nothing written
	_, err = gen.ProposeReplacement(context.Background(), types.ReplacementRequest{City: "Marseille"})
	require.NoError(t, err)
	paths, _ := store.List(context.Background(), "run-p")
	assert.Len(t, paths, 1)
}
