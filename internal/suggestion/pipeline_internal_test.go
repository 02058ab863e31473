package suggestion

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/vitalplan/internal/catalog"
	"github.com/myrjola/vitalplan/internal/testhelpers"
	"github.com/myrjola/vitalplan/internal/training"
)

// Wednesday, so tomorrow is Thursday.
var testNow = time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)

type fixedAnalyzer struct {
	analysis training.Analysis
}

func (a fixedAnalyzer) Analyze(context.Context, int) training.Analysis {
	return a.analysis
}

// fakeSearcher serves exercises by body part and honours the query limit.
type fakeSearcher struct {
	byBodyPart map[string][]catalog.Exercise
	failing    map[string]bool
	panicking  map[string]bool
}

func (s fakeSearcher) Search(_ context.Context, q catalog.Query) ([]catalog.Exercise, error) {
	if s.panicking[q.BodyPart] {
		panic("catalog exploded")
	}
	if s.failing[q.BodyPart] {
		return nil, errors.New("catalog unavailable")
	}
	exercises := s.byBodyPart[q.BodyPart]
	return exercises[:min(len(exercises), q.Limit)], nil
}

type fakeProvider struct {
	response string
	err      error
	panics   bool
	// block makes Complete wait for the context to end.
	block       bool
	calls       atomic.Int32
	credentials sync.Map
}

func (p *fakeProvider) Complete(ctx context.Context, _ string, credential string) (string, error) {
	p.calls.Add(1)
	p.credentials.Store(credential, true)
	if p.panics {
		panic("provider exploded")
	}
	if p.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return p.response, p.err
}

type fixedCredentials string

func (c fixedCredentials) AICredential(context.Context, int) (string, error) {
	return string(c), nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	value, ok := c.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return value, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func exercisesFor(bodyPart string, names ...string) []catalog.Exercise {
	exercises := make([]catalog.Exercise, 0, len(names))
	for _, name := range names {
		exercises = append(exercises, catalog.Exercise{
			ID:         "ex-" + strings.ReplaceAll(strings.ToLower(name), " ", "-"),
			Name:       name,
			BodyPart:   bodyPart,
			Target:     "",
			Muscle:     "",
			Difficulty: "beginner",
		})
	}
	return exercises
}

func testCatalog() fakeSearcher {
	return fakeSearcher{
		byBodyPart: map[string][]catalog.Exercise{
			"chest":       exercisesFor("chest", "Bench Press", "Push Up", "Incline Dumbbell Press", "Chest Dip"),
			"back":        exercisesFor("back", "Barbell Row", "Pull Up", "Deadlift"),
			"upper arms":  exercisesFor("upper arms", "Barbell Curl", "Hammer Curl", "Skull Crusher"),
			"lower legs":  exercisesFor("lower legs", "Back Squat", "Lunge", "Calf Raise"),
			"waist":       exercisesFor("waist", "Plank", "Crunch", "Hanging Leg Raise"),
			"cardio":      exercisesFor("cardio", "Jump Rope", "Burpee", "Rowing Machine"),
		},
		failing:   nil,
		panicking: nil,
	}
}

// midWeek has three workouts covering chest and back. Tomorrow is empty.
func midWeek() training.Analysis {
	return training.Analysis{
		CompletedDays:         []time.Weekday{time.Monday, time.Tuesday, time.Wednesday},
		TrainedMuscleGroups:   []training.Focus{training.FocusChest, training.FocusBack},
		TotalWorkouts:         3,
		TomorrowHasExercises:  false,
		TomorrowExerciseCount: 0,
		Tomorrow:              time.Thursday,
	}
}

func newTestPipeline(t *testing.T, deps Deps, cfg Config) *Pipeline {
	t.Helper()
	p := New(deps, cfg, testhelpers.NewLogger(testhelpers.NewWriter(t)))
	p.now = func() time.Time { return testNow }
	return p
}

func TestPipeline_Suggest(t *testing.T) {
	t.Parallel()

	full := midWeek()
	full.TomorrowHasExercises = true
	full.TomorrowExerciseCount = 3

	emptyWeek := training.EmptyAnalysis(testNow)

	tests := []struct {
		name        string
		analysis    training.Analysis
		searcher    fakeSearcher
		provider    *fakeProvider
		credentials Credentials
		appKey      string
		wantStatus  Status
		wantFocus   []training.Focus
		wantNames   []string
	}{
		{
			name:        "every tier failing yields the static rotation",
			analysis:    emptyWeek,
			searcher:    fakeSearcher{byBodyPart: nil, failing: nil, panicking: nil},
			provider:    &fakeProvider{err: errors.New("provider down")},
			credentials: fixedCredentials("user-key"),
			wantStatus:  StatusFallback,
			wantFocus:   []training.Focus{training.FocusChest, training.FocusBack},
			wantNames:   []string{},
		},
		{
			name:        "validated AI suggestion is enriched",
			analysis:    midWeek(),
			searcher:    testCatalog(),
			provider:    &fakeProvider{response: "```json\n{\"shouldWorkout\": true, \"focus\": [\"Upper Arms\", \"biceps\", \"lower_legs\"], \"reasoning\": \"Legs and arms are untrained.\"}\n```"},
			credentials: fixedCredentials("user-key"),
			wantStatus:  StatusValidated,
			wantFocus:   []training.Focus{training.FocusUpperArms, training.FocusLowerLegs},
			wantNames:   []string{"Barbell Curl", "Hammer Curl", "Skull Crusher", "Back Squat", "Lunge", "Calf Raise"},
		},
		{
			name:        "AI rest decision is validated without exercises",
			analysis:    midWeek(),
			searcher:    testCatalog(),
			provider:    &fakeProvider{response: `{"shouldWorkout": false, "focus": ["chest"], "reasoning": "Recover."}`},
			credentials: fixedCredentials(""),
			appKey:      "app-key",
			wantStatus:  StatusValidated,
			wantFocus:   []training.Focus{},
			wantNames:   []string{},
		},
		{
			name:        "full tomorrow overrides an AI workout decision",
			analysis:    full,
			searcher:    testCatalog(),
			provider:    &fakeProvider{response: `{"shouldWorkout": true, "focus": ["chest"], "reasoning": "Go."}`},
			credentials: fixedCredentials("user-key"),
			wantStatus:  StatusValidated,
			wantFocus:   []training.Focus{},
			wantNames:   []string{},
		},
		{
			name:        "full tomorrow rests in the rule engine",
			analysis:    full,
			searcher:    testCatalog(),
			provider:    &fakeProvider{},
			credentials: fixedCredentials(""),
			wantStatus:  StatusRuleBased,
			wantFocus:   []training.Focus{},
			wantNames:   []string{},
		},
		{
			name:        "malformed AI answer falls through to rules",
			analysis:    midWeek(),
			searcher:    testCatalog(),
			provider:    &fakeProvider{response: `{"focus": ["chest"]}`},
			credentials: fixedCredentials("user-key"),
			wantStatus:  StatusRuleBased,
			wantFocus:   []training.Focus{training.FocusUpperArms, training.FocusLowerLegs},
			wantNames:   []string{"Barbell Curl", "Hammer Curl", "Skull Crusher", "Back Squat", "Lunge", "Calf Raise"},
		},
		{
			name:        "AI focus without catalog exercises falls through to rules",
			analysis:    midWeek(),
			searcher:    testCatalog(),
			provider:    &fakeProvider{response: `{"shouldWorkout": true, "focus": ["yoga"], "reasoning": "Stretch."}`},
			credentials: fixedCredentials("user-key"),
			wantStatus:  StatusRuleBased,
			wantFocus:   []training.Focus{training.FocusUpperArms, training.FocusLowerLegs},
			wantNames:   []string{"Barbell Curl", "Hammer Curl", "Skull Crusher", "Back Squat", "Lunge", "Calf Raise"},
		},
		{
			name:        "no credential skips the AI tier",
			analysis:    emptyWeek,
			searcher:    testCatalog(),
			provider:    &fakeProvider{},
			credentials: fixedCredentials(""),
			wantStatus:  StatusRuleBased,
			wantFocus:   []training.Focus{training.FocusChest, training.FocusBack},
			wantNames:   []string{"Bench Press", "Push Up", "Incline Dumbbell Press", "Barbell Row", "Pull Up", "Deadlift"},
		},
		{
			name:        "provider panic yields the static rotation",
			analysis:    midWeek(),
			searcher:    testCatalog(),
			provider:    &fakeProvider{panics: true},
			credentials: fixedCredentials("user-key"),
			wantStatus:  StatusFallback,
			wantFocus:   []training.Focus{training.FocusChest, training.FocusBack},
			wantNames:   []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := newTestPipeline(t, Deps{
				Analyzer:    fixedAnalyzer{analysis: tt.analysis},
				Weeks:       nil,
				Searcher:    tt.searcher,
				Credentials: tt.credentials,
				Provider:    tt.provider,
				Cache:       nil,
				Publisher:   nil,
			}, Config{AppAPIKey: tt.appKey})

			got := p.Suggest(t.Context(), 1, false)

			if got.ValidationStatus != tt.wantStatus {
				t.Errorf("ValidationStatus = %q, want %q (reasoning %q)", got.ValidationStatus, tt.wantStatus, got.Reasoning)
			}
			if diff := cmp.Diff(tt.wantFocus, got.RecommendedFocus); diff != "" {
				t.Errorf("RecommendedFocus mismatch (-want +got):\n%s", diff)
			}
			names := make([]string, 0, len(got.SuggestedExercises))
			for _, e := range got.SuggestedExercises {
				names = append(names, e.Name)
			}
			if diff := cmp.Diff(tt.wantNames, names); diff != "" {
				t.Errorf("exercise names mismatch (-want +got):\n%s", diff)
			}
			if got.DayOfWeek != "Thursday" {
				t.Errorf("DayOfWeek = %q, want Thursday", got.DayOfWeek)
			}
			if got.Reasoning == "" {
				t.Error("Reasoning is empty")
			}
			if !got.GeneratedAt.Equal(testNow) {
				t.Errorf("GeneratedAt = %v, want %v", got.GeneratedAt, testNow)
			}
		})
	}
}

func TestPipeline_Suggest_credentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		credentials Credentials
		appKey      string
		want        string
	}{
		{name: "user key wins", credentials: fixedCredentials("user-key"), appKey: "app-key", want: "user-key"},
		{name: "app key fallback", credentials: fixedCredentials(""), appKey: "app-key", want: "app-key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			provider := &fakeProvider{response: `{"shouldWorkout": false, "reasoning": "Rest."}`}
			p := newTestPipeline(t, Deps{
				Analyzer:    fixedAnalyzer{analysis: midWeek()},
				Weeks:       nil,
				Searcher:    testCatalog(),
				Credentials: tt.credentials,
				Provider:    provider,
				Cache:       nil,
				Publisher:   nil,
			}, Config{AppAPIKey: tt.appKey})

			p.Suggest(t.Context(), 1, false)

			if _, ok := provider.credentials.Load(tt.want); !ok {
				t.Errorf("provider was not called with %q", tt.want)
			}
		})
	}
}

func TestPipeline_Suggest_aiTimeout(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, Deps{
		Analyzer:    fixedAnalyzer{analysis: midWeek()},
		Weeks:       nil,
		Searcher:    testCatalog(),
		Credentials: fixedCredentials("user-key"),
		Provider:    &fakeProvider{block: true},
		Cache:       nil,
		Publisher:   nil,
	}, Config{AITimeout: 10 * time.Millisecond})

	got := p.Suggest(t.Context(), 1, false)

	if got.ValidationStatus != StatusRuleBased {
		t.Errorf("ValidationStatus = %q, want %q", got.ValidationStatus, StatusRuleBased)
	}
}

func TestPipeline_Suggest_cache(t *testing.T) {
	t.Parallel()

	t.Run("hit and refresh", func(t *testing.T) {
		t.Parallel()
		provider := &fakeProvider{response: `{"shouldWorkout": true, "focus": ["cardio"], "reasoning": "Cardio day."}`}
		cache := newMemoryCache()
		p := newTestPipeline(t, Deps{
			Analyzer:    fixedAnalyzer{analysis: midWeek()},
			Weeks:       nil,
			Searcher:    testCatalog(),
			Credentials: fixedCredentials("user-key"),
			Provider:    provider,
			Cache:       cache,
			Publisher:   nil,
		}, Config{})

		first := p.Suggest(t.Context(), 1, false)
		second := p.Suggest(t.Context(), 1, false)
		if provider.calls.Load() != 1 {
			t.Errorf("provider calls = %d, want 1", provider.calls.Load())
		}
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("cached suggestion mismatch (-first +second):\n%s", diff)
		}
		if _, ok := cache.entries["suggestion:1:Thursday"]; !ok {
			t.Errorf("cache keys = %v, want suggestion:1:Thursday", cache.entries)
		}

		p.Suggest(t.Context(), 1, true)
		if provider.calls.Load() != 2 {
			t.Errorf("provider calls after refresh = %d, want 2", provider.calls.Load())
		}
	})

	t.Run("read errors regenerate", func(t *testing.T) {
		t.Parallel()
		provider := &fakeProvider{response: `{"shouldWorkout": true, "focus": ["cardio"], "reasoning": "Cardio day."}`}
		cache := newMemoryCache()
		cache.getErr = errors.New("cache unavailable")
		p := newTestPipeline(t, Deps{
			Analyzer:    fixedAnalyzer{analysis: midWeek()},
			Weeks:       nil,
			Searcher:    testCatalog(),
			Credentials: fixedCredentials("user-key"),
			Provider:    provider,
			Cache:       cache,
			Publisher:   nil,
		}, Config{})

		for range 2 {
			if got := p.Suggest(t.Context(), 1, false); got.ValidationStatus != StatusValidated {
				t.Errorf("ValidationStatus = %q, want %q", got.ValidationStatus, StatusValidated)
			}
		}
		if provider.calls.Load() != 2 {
			t.Errorf("provider calls = %d, want 2", provider.calls.Load())
		}
	})

	t.Run("corrupt entries regenerate", func(t *testing.T) {
		t.Parallel()
		cache := newMemoryCache()
		cache.entries["suggestion:1:Thursday"] = []byte("not json")
		p := newTestPipeline(t, Deps{
			Analyzer:    fixedAnalyzer{analysis: midWeek()},
			Weeks:       nil,
			Searcher:    testCatalog(),
			Credentials: fixedCredentials(""),
			Provider:    nil,
			Cache:       cache,
			Publisher:   nil,
		}, Config{})

		if got := p.Suggest(t.Context(), 1, false); got.ValidationStatus != StatusRuleBased {
			t.Errorf("ValidationStatus = %q, want %q", got.ValidationStatus, StatusRuleBased)
		}
	})
}

func TestPipeline_Suggest_staleCache(t *testing.T) {
	t.Parallel()

	t.Run("weekly plan changes regenerate", func(t *testing.T) {
		t.Parallel()
		weeks := newWeekStore(t)
		p := newTestPipeline(t, Deps{
			Analyzer:    weeks,
			Weeks:       weeks,
			Searcher:    testCatalog(),
			Credentials: fixedCredentials(""),
			Provider:    nil,
			Cache:       newMemoryCache(),
			Publisher:   nil,
		}, Config{})

		first := p.Suggest(t.Context(), 1, false)
		wantFocus := []training.Focus{training.FocusChest, training.FocusBack}
		if diff := cmp.Diff(wantFocus, first.RecommendedFocus); diff != "" {
			t.Fatalf("RecommendedFocus of an empty week mismatch (-want +got):\n%s", diff)
		}

		tomorrow := weeks.Analyze(t.Context(), 1).Tomorrow
		for _, name := range []string{"Plank", "Crunch", "Hanging Leg Raise"} {
			if err := weeks.AddExercise(t.Context(), 1, tomorrow, training.PlannedExercise{
				ExerciseID:  "ex-" + strings.ReplaceAll(strings.ToLower(name), " ", "-"),
				Name:        name,
				BodyPart:    "waist",
				Target:      "",
				Sets:        3,
				Reps:        12,
				RestSeconds: 60,
				Completed:   false,
			}); err != nil {
				t.Fatalf("AddExercise(%s): %v", name, err)
			}
		}

		got := p.Suggest(t.Context(), 1, false)
		if !got.IsRest() {
			t.Errorf("RecommendedFocus with three exercises planned tomorrow = %v, want rest", got.RecommendedFocus)
		}
	})

	t.Run("non-rest entries are stale when tomorrow is full", func(t *testing.T) {
		t.Parallel()
		full := midWeek()
		full.TomorrowHasExercises = true
		full.TomorrowExerciseCount = 3
		cache := newMemoryCache()
		raw, err := json.Marshal(cacheEntry{Fingerprint: fingerprint(full), Suggestion: chestSuggestion()})
		if err != nil {
			t.Fatalf("marshal entry: %v", err)
		}
		cache.entries[cacheKey(1, time.Thursday)] = raw
		p := newTestPipeline(t, Deps{
			Analyzer:    fixedAnalyzer{analysis: full},
			Weeks:       nil,
			Searcher:    testCatalog(),
			Credentials: fixedCredentials(""),
			Provider:    nil,
			Cache:       cache,
			Publisher:   nil,
		}, Config{})

		got := p.Suggest(t.Context(), 1, false)
		if !got.IsRest() || got.ValidationStatus != StatusRuleBased {
			t.Errorf("Suggest() = %v %q, want a rule-based rest", got.RecommendedFocus, got.ValidationStatus)
		}
	})

	t.Run("matching entries are served", func(t *testing.T) {
		t.Parallel()
		cache := newMemoryCache()
		raw, err := json.Marshal(cacheEntry{Fingerprint: fingerprint(midWeek()), Suggestion: chestSuggestion()})
		if err != nil {
			t.Fatalf("marshal entry: %v", err)
		}
		cache.entries[cacheKey(1, time.Thursday)] = raw
		p := newTestPipeline(t, Deps{
			Analyzer:    fixedAnalyzer{analysis: midWeek()},
			Weeks:       nil,
			Searcher:    testCatalog(),
			Credentials: fixedCredentials(""),
			Provider:    nil,
			Cache:       cache,
			Publisher:   nil,
		}, Config{})

		if diff := cmp.Diff(chestSuggestion(), p.Suggest(t.Context(), 1, false)); diff != "" {
			t.Errorf("Suggest() mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestPipeline_Suggest_searcherPanic(t *testing.T) {
	t.Parallel()
	searcher := testCatalog()
	searcher.panicking = map[string]bool{"chest": true, "back": true}
	p := newTestPipeline(t, Deps{
		Analyzer:    fixedAnalyzer{analysis: training.EmptyAnalysis(testNow)},
		Weeks:       nil,
		Searcher:    searcher,
		Credentials: fixedCredentials(""),
		Provider:    nil,
		Cache:       nil,
		Publisher:   nil,
	}, Config{})

	got := p.Suggest(t.Context(), 1, false)

	want := emergency(time.Thursday, testNow)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Suggest() mismatch (-want +got):\n%s", diff)
	}
}

func TestPipeline_enrich(t *testing.T) {
	t.Parallel()

	searcher := testCatalog()
	// Push Up is listed under two body parts.
	searcher.byBodyPart["upper arms"] = append(exercisesFor("chest", "Push Up"),
		exercisesFor("upper arms", "Barbell Curl", "Hammer Curl")...)

	tests := []struct {
		name   string
		focus  []training.Focus
		fail   map[string]bool
		panics map[string]bool
		want   []string
	}{
		{
			name:  "dedupes across areas",
			focus: []training.Focus{training.FocusChest, training.FocusUpperArms},
			want:  []string{"Bench Press", "Push Up", "Incline Dumbbell Press", "Barbell Curl", "Hammer Curl"},
		},
		{
			name:  "caps the total",
			focus: []training.Focus{training.FocusBack, training.FocusLowerLegs, training.FocusWaist},
			want: []string{"Barbell Row", "Pull Up", "Deadlift", "Back Squat", "Lunge", "Calf Raise", "Plank",
				"Crunch"},
		},
		{
			name:  "failing areas contribute nothing",
			focus: []training.Focus{training.FocusCardio, training.FocusWaist},
			fail:  map[string]bool{"cardio": true},
			want:  []string{"Plank", "Crunch", "Hanging Leg Raise"},
		},
		{
			name:   "panicking areas contribute nothing",
			focus:  []training.Focus{training.FocusChest, training.FocusBack},
			panics: map[string]bool{"chest": true},
			want:   []string{"Barbell Row", "Pull Up", "Deadlift"},
		},
		{
			name:  "no focus",
			focus: []training.Focus{},
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := fakeSearcher{byBodyPart: searcher.byBodyPart, failing: tt.fail, panicking: tt.panics}
			p := newTestPipeline(t, Deps{
				Analyzer:    nil,
				Weeks:       nil,
				Searcher:    s,
				Credentials: nil,
				Provider:    nil,
				Cache:       nil,
				Publisher:   nil,
			}, Config{})

			got := p.enrich(t.Context(), tt.focus)

			names := make([]string, 0, len(got))
			for _, e := range got {
				names = append(names, e.Name)
			}
			if diff := cmp.Diff(tt.want, names); diff != "" {
				t.Errorf("enrich mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func Test_firstSuccessful(t *testing.T) {
	t.Parallel()

	fail := func(context.Context) (int, error) { return 0, errors.New("boom") }
	succeed := func(n int) func(context.Context) (int, error) {
		return func(context.Context) (int, error) { return n, nil }
	}

	var failed []string
	got, ok := firstSuccessful(t.Context(), []step[int]{
		{name: "a", run: fail},
		{name: "b", run: succeed(2)},
		{name: "c", run: succeed(3)},
	}, func(name string, _ error) { failed = append(failed, name) })
	if !ok || got != 2 {
		t.Errorf("firstSuccessful = %d, %t, want 2, true", got, ok)
	}
	if diff := cmp.Diff([]string{"a"}, failed); diff != "" {
		t.Errorf("failed steps mismatch (-want +got):\n%s", diff)
	}

	if _, ok = firstSuccessful(t.Context(), []step[int]{{name: "a", run: fail}}, func(string, error) {}); ok {
		t.Error("firstSuccessful reported success when every step failed")
	}
}
