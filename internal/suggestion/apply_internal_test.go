package suggestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/vitalplan/internal/events"
	"github.com/myrjola/vitalplan/internal/testhelpers"
	"github.com/myrjola/vitalplan/internal/training"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// flakyWeeks fails to add the exercises named in failing.
type flakyWeeks struct {
	WeekStore
	failing map[string]bool
}

func (w flakyWeeks) AddExercise(ctx context.Context, userID int, day time.Weekday, e training.PlannedExercise) error {
	if w.failing[e.Name] {
		return errors.New("write failed")
	}
	return w.WeekStore.AddExercise(ctx, userID, day, e)
}

func newWeekStore(t *testing.T) *training.Service {
	t.Helper()
	db := newTestDatabase(t)
	if _, err := db.ReadWrite.ExecContext(t.Context(), `
		INSERT INTO users (id, name, weight_kg, height_cm, age_years, sex, health_goal)
		VALUES (1, 'Test User', 70, 170, 30, 'male', 'Build Muscle')`); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return training.NewService(db, testhelpers.NewLogger(testhelpers.NewWriter(t)))
}

func chestSuggestion() Suggestion {
	return Suggestion{
		DayOfWeek:          "Thursday",
		RecommendedFocus:   []training.Focus{training.FocusChest},
		SuggestedExercises: exercisesFor("chest", "Bench Press", "Push Up", "Chest Dip"),
		Reasoning:          "Chest is untrained.",
		ValidationStatus:   StatusRuleBased,
		GeneratedAt:        testNow,
	}
}

func TestPipeline_Apply(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	weeks := newWeekStore(t)
	if err := weeks.AddExercise(ctx, 1, time.Thursday, training.PlannedExercise{
		ExerciseID: "ex-push-up", Name: "push up", BodyPart: "chest", Target: "pectorals",
		Sets: 4, Reps: 15, RestSeconds: 45, Completed: false,
	}); err != nil {
		t.Fatalf("AddExercise: %v", err)
	}
	cache := newMemoryCache()
	cache.entries["suggestion:1:Thursday"] = []byte("{}")
	publisher := &recordingPublisher{}
	p := newTestPipeline(t, Deps{
		Analyzer:    nil,
		Weeks:       weeks,
		Searcher:    nil,
		Credentials: nil,
		Provider:    nil,
		Cache:       cache,
		Publisher:   publisher,
	}, Config{})

	first, err := p.Apply(ctx, 1, chestSuggestion())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if diff := cmp.Diff(ApplyResult{Added: 2, Duplicates: 1, Failed: 0}, first); diff != "" {
		t.Errorf("first Apply mismatch (-want +got):\n%s", diff)
	}

	second, err := p.Apply(ctx, 1, chestSuggestion())
	if err != nil {
		t.Fatalf("Apply again: %v", err)
	}
	if diff := cmp.Diff(ApplyResult{Added: 0, Duplicates: 3, Failed: 0}, second); diff != "" {
		t.Errorf("second Apply mismatch (-want +got):\n%s", diff)
	}

	week, err := weeks.WeeklyPlan(ctx, 1)
	if err != nil {
		t.Fatalf("WeeklyPlan: %v", err)
	}
	want := []training.PlannedExercise{
		{ExerciseID: "ex-push-up", Name: "push up", BodyPart: "chest", Target: "pectorals",
			Sets: 4, Reps: 15, RestSeconds: 45, Completed: false},
		{ExerciseID: "ex-bench-press", Name: "Bench Press", BodyPart: "chest", Target: "",
			Sets: 3, Reps: 12, RestSeconds: 60, Completed: false},
		{ExerciseID: "ex-chest-dip", Name: "Chest Dip", BodyPart: "chest", Target: "",
			Sets: 3, Reps: 12, RestSeconds: 60, Completed: false},
	}
	if diff := cmp.Diff(want, week[time.Thursday].Exercises); diff != "" {
		t.Errorf("Thursday plan mismatch (-want +got):\n%s", diff)
	}

	if _, ok := cache.entries["suggestion:1:Thursday"]; ok {
		t.Error("cached suggestion for Thursday was not invalidated")
	}
	if len(publisher.events) != 2 || publisher.events[0].Type != events.TypeSuggestionApplied {
		t.Errorf("published events = %+v, want two %s events", publisher.events, events.TypeSuggestionApplied)
	}
}

func TestPipeline_Apply_partialFailure(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	weeks := newWeekStore(t)
	p := newTestPipeline(t, Deps{
		Analyzer:    nil,
		Weeks:       flakyWeeks{WeekStore: weeks, failing: map[string]bool{"Push Up": true}},
		Searcher:    nil,
		Credentials: nil,
		Provider:    nil,
		Cache:       nil,
		Publisher:   nil,
	}, Config{})

	got, err := p.Apply(ctx, 1, chestSuggestion())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if diff := cmp.Diff(ApplyResult{Added: 2, Duplicates: 0, Failed: 1}, got); diff != "" {
		t.Errorf("Apply mismatch (-want +got):\n%s", diff)
	}

	week, err := weeks.WeeklyPlan(ctx, 1)
	if err != nil {
		t.Fatalf("WeeklyPlan: %v", err)
	}
	if n := len(week[time.Thursday].Exercises); n != 2 {
		t.Errorf("Thursday has %d exercises, want 2", n)
	}
}

func TestPipeline_Apply_invalidDay(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, Deps{
		Analyzer:    nil,
		Weeks:       newWeekStore(t),
		Searcher:    nil,
		Credentials: nil,
		Provider:    nil,
		Cache:       nil,
		Publisher:   nil,
	}, Config{})

	s := chestSuggestion()
	s.DayOfWeek = "Someday"
	if _, err := p.Apply(t.Context(), 1, s); !errors.Is(err, training.ErrInvalidWeekday) {
		t.Errorf("Apply error = %v, want ErrInvalidWeekday", err)
	}
}

