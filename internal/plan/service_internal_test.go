package plan

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/myrjola/vitalplan/internal/events"
	"github.com/myrjola/vitalplan/internal/health"
	"github.com/myrjola/vitalplan/internal/sqlite"
	"github.com/myrjola/vitalplan/internal/testhelpers"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []string
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

type failingStore[T any] struct {
	err error
}

func (f failingStore[T]) SetGoals(context.Context, int, T) error { return f.err }

func (f failingStore[T]) GetGoals(context.Context, int, time.Time) (T, error) {
	var zero T
	return zero, f.err
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestService(t *testing.T) (*Service, *sqlite.Database, *recordingPublisher, *clock) {
	t.Helper()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	db, err := sqlite.NewDatabase(t.Context(), ":memory:", logger)
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	t.Cleanup(func() {
		if err = db.Close(); err != nil {
			t.Errorf("close database: %v", err)
		}
	})
	publisher := &recordingPublisher{}
	c := &clock{now: time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)}
	svc := NewService(db, health.NewCalculator(health.DefaultPolicies()), publisher, logger)
	svc.now = c.Now
	return svc, db, publisher, c
}

func testProfile() Profile {
	return Profile{
		Name:          "Ada",
		WeightKg:      70,
		HeightCm:      170,
		AgeYears:      30,
		Sex:           "Male",
		ActivityLevel: "Moderate",
		HealthGoal:    "Improve Fitness",
	}
}

func TestService_RegisterUser(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	svc, _, publisher, c := newTestService(t)

	profile, p, err := svc.RegisterUser(ctx, testProfile())
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if profile.ID == 0 || profile.Sex != health.SexMale || profile.ActivityLevel != health.ActivityModerate {
		t.Errorf("unexpected profile %+v", profile)
	}

	day := health.Day(c.Now())
	wantPlan := HealthPlan{
		ID:         p.ID,
		UserID:     profile.ID,
		HealthGoal: "Improve Fitness",
		NutritionGoals: health.NutritionGoals{
			Date:        day,
			UserID:      profile.ID,
			CalorieGoal: 2507,
			ProteinGoal: 98,
			CarbsGoal:   313,
			FatGoal:     56,
			TargetMeals: health.MealTargets{Breakfast: 1, Lunch: 1, Dinner: 1, Snacks: 2},
		},
		WorkoutPlan:     WorkoutPlan{WorkoutsPerWeek: 4, RecommendedFocus: []string{"cardio", "lower-legs", "waist"}},
		HydrationGoalMl: 2450,
		SleepGoalHours:  8,
		CreatedAt:       c.Now(),
		UpdatedAt:       c.Now(),
	}
	if diff := cmp.Diff(wantPlan, p); diff != "" {
		t.Errorf("RegisterUser() plan mismatch (-want +got):\n%s", diff)
	}

	current, err := svc.GetCurrentPlan(ctx, profile.ID)
	if err != nil {
		t.Fatalf("GetCurrentPlan: %v", err)
	}
	if diff := cmp.Diff(wantPlan, current); diff != "" {
		t.Errorf("GetCurrentPlan() mismatch (-want +got):\n%s", diff)
	}

	goals, err := svc.GetGoals(ctx, profile.ID, c.Now())
	if err != nil {
		t.Fatalf("GetGoals: %v", err)
	}
	wantGoals := Goals{
		Nutrition: wantPlan.NutritionGoals,
		Hydration: HydrationGoal{Date: day, UserID: profile.ID, AmountMl: 2450},
		Sleep:     SleepGoal{Date: day, UserID: profile.ID, Hours: 8},
	}
	if diff := cmp.Diff(wantGoals, goals); diff != "" {
		t.Errorf("GetGoals() mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{events.TypePlanGenerated}, publisher.types()); diff != "" {
		t.Errorf("published events mismatch (-want +got):\n%s", diff)
	}
}

func TestService_RegisterUserRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(p *Profile)
		wantErr error
	}{
		{name: "zero weight", mutate: func(p *Profile) { p.WeightKg = 0 }, wantErr: health.ErrInvalidSnapshot},
		{name: "negative age", mutate: func(p *Profile) { p.AgeYears = -3 }, wantErr: health.ErrInvalidSnapshot},
		{name: "missing name", mutate: func(p *Profile) { p.Name = " " }, wantErr: ErrInvalidInput},
		{name: "unknown sex", mutate: func(p *Profile) { p.Sex = "robot" }, wantErr: ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, db, _, _ := newTestService(t)
			profile := testProfile()
			tt.mutate(&profile)
			if _, _, err := svc.RegisterUser(t.Context(), profile); !errors.Is(err, tt.wantErr) {
				t.Errorf("RegisterUser() error = %v, want %v", err, tt.wantErr)
			}
			var users int
			if err := db.ReadOnly.QueryRowContext(t.Context(), "SELECT COUNT(*) FROM users").Scan(&users); err != nil {
				t.Fatalf("count users: %v", err)
			}
			if users != 0 {
				t.Errorf("got %d users, want none", users)
			}
		})
	}
}

func countLogs(t *testing.T, db *sqlite.Database, userID int) int {
	t.Helper()
	var n int
	err := db.ReadOnly.QueryRowContext(t.Context(), `
		SELECT (SELECT COUNT(*) FROM meal_logs WHERE user_id = :id) +
		       (SELECT COUNT(*) FROM water_logs WHERE user_id = :id) +
		       (SELECT COUNT(*) FROM sleep_logs WHERE user_id = :id) +
		       (SELECT COUNT(*) FROM workout_logs WHERE user_id = :id)`,
		sql.Named("id", userID)).Scan(&n)
	if err != nil {
		t.Fatalf("count logs: %v", err)
	}
	return n
}

func TestService_SwitchPlanKeepsHistory(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	svc, db, publisher, c := newTestService(t)

	profile, first, err := svc.RegisterUser(ctx, testProfile())
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	for _, query := range []string{
		"INSERT INTO meal_logs (user_id, meal_type, calories, protein, carbs, fat, logged_at) VALUES (?, 'lunch', 650, 40, 70, 20, '2026-03-04T12:00:00.000Z')",
		"INSERT INTO water_logs (user_id, amount_ml, logged_at) VALUES (?, 500, '2026-03-04T12:05:00.000Z')",
		"INSERT INTO sleep_logs (user_id, hours, logged_at) VALUES (?, 7.5, '2026-03-04T07:00:00.000Z')",
		"INSERT INTO workout_logs (user_id, exercise_name, duration_min, logged_at) VALUES (?, 'Back Squat', 45, '2026-03-04T18:00:00.000Z')",
	} {
		if _, err = db.ReadWrite.ExecContext(ctx, query, profile.ID); err != nil {
			t.Fatalf("insert log: %v", err)
		}
	}
	logsBefore := countLogs(t, db, profile.ID)

	c.Set(time.Date(2026, time.March, 5, 8, 0, 0, 0, time.UTC))
	switched, err := svc.SwitchPlan(ctx, profile.ID, "Lose Weight")
	if err != nil {
		t.Fatalf("SwitchPlan: %v", err)
	}

	if got := countLogs(t, db, profile.ID); got != logsBefore {
		t.Errorf("log entries changed from %d to %d", logsBefore, got)
	}
	if n, _ := svc.plans.count(ctx, profile.ID); n != 1 {
		t.Errorf("got %d plans, want exactly one", n)
	}
	if switched.ID == first.ID || switched.HealthGoal != "Lose Weight" {
		t.Errorf("unexpected switched plan %+v", switched)
	}
	// 2507.125 * 0.8 = 2005.7.
	if switched.NutritionGoals.CalorieGoal != 2006 {
		t.Errorf("calorie goal = %d, want 2006", switched.NutritionGoals.CalorieGoal)
	}

	stored, err := svc.GetProfile(ctx, profile.ID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if stored.HealthGoal != "Lose Weight" {
		t.Errorf("stored health goal = %q", stored.HealthGoal)
	}

	// Yesterday's goals stay as history.
	old, err := svc.GetGoals(ctx, profile.ID, time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetGoals yesterday: %v", err)
	}
	if old.Nutrition.CalorieGoal != first.NutritionGoals.CalorieGoal {
		t.Errorf("yesterday's calorie goal = %d, want %d", old.Nutrition.CalorieGoal, first.NutritionGoals.CalorieGoal)
	}
	current, err := svc.GetGoals(ctx, profile.ID, c.Now().AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("GetGoals future: %v", err)
	}
	if current.Nutrition.CalorieGoal != 2006 || current.Hydration.AmountMl != 2450 {
		t.Errorf("unexpected current goals %+v", current)
	}

	want := []string{events.TypePlanGenerated, events.TypePlanSwitched}
	if diff := cmp.Diff(want, publisher.types()); diff != "" {
		t.Errorf("published events mismatch (-want +got):\n%s", diff)
	}
}

func TestService_SwitchPlanPartialFailure(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	svc, _, _, c := newTestService(t)

	profile, first, err := svc.RegisterUser(ctx, testProfile())
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	diskFull := errors.New("disk full")
	svc.sleep = failingStore[SleepGoal]{err: diskFull}
	c.Set(c.Now().AddDate(0, 0, 1))
	if _, err = svc.SwitchPlan(ctx, profile.ID, "Gain Weight"); !errors.Is(err, diskFull) {
		t.Fatalf("SwitchPlan() error = %v, want %v", err, diskFull)
	}

	// Nutrition and hydration were written before the failure, the plan was not replaced.
	goals, err := svc.nutrition.GetGoals(ctx, profile.ID, c.Now())
	if err != nil {
		t.Fatalf("GetGoals: %v", err)
	}
	if goals.CalorieGoal == first.NutritionGoals.CalorieGoal || goals.TargetMeals.Snacks != 3 {
		t.Errorf("nutrition goals were not updated: %+v", goals)
	}
	current, err := svc.GetCurrentPlan(ctx, profile.ID)
	if err != nil {
		t.Fatalf("GetCurrentPlan: %v", err)
	}
	if current.ID != first.ID {
		t.Errorf("plan was replaced despite the failed sleep write")
	}
}

func TestService_SwitchPlanInvalidInput(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	svc, _, _, _ := newTestService(t)

	if _, err := svc.SwitchPlan(ctx, 999, "Lose Weight"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SwitchPlan() unknown user error = %v, want ErrNotFound", err)
	}

	profile, _, err := svc.RegisterUser(ctx, testProfile())
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if _, err = svc.SwitchPlan(ctx, profile.ID, "  "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("SwitchPlan() empty goal error = %v, want ErrInvalidInput", err)
	}
	stored, err := svc.GetProfile(ctx, profile.ID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if stored.HealthGoal != "Improve Fitness" {
		t.Errorf("health goal changed to %q", stored.HealthGoal)
	}
}

func TestService_PublishFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	svc, _, publisher, _ := newTestService(t)
	publisher.err = errors.New("broker down")
	if _, _, err := svc.RegisterUser(t.Context(), testProfile()); err != nil {
		t.Errorf("RegisterUser() error = %v", err)
	}
}

func TestService_GetCurrentPlanPicksMostRecent(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	svc, db, _, _ := newTestService(t)

	if _, err := svc.GetCurrentPlan(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetCurrentPlan() error = %v, want ErrNotFound", err)
	}

	profile, _, err := svc.RegisterUser(ctx, testProfile())
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	// Duplicates bypassing replace, as left behind by an interrupted switch.
	newest := uuid.New()
	for _, row := range []struct {
		id        uuid.UUID
		createdAt string
	}{
		{uuid.New(), "2026-01-01T00:00:00.000Z"},
		{newest, "2027-01-01T00:00:00.000Z"},
		{uuid.New(), "2026-06-01T00:00:00.000Z"},
	} {
		if _, err = db.ReadWrite.ExecContext(ctx, `
			INSERT INTO health_plans (id, user_id, health_goal, nutrition_goals, workouts_per_week, recommended_focus,
			                          hydration_goal_ml, sleep_goal_hours, created_at, updated_at)
			VALUES (?, ?, 'Maintain Weight', '{}', 3, '[]', 2000, 8, ?, ?)`,
			row.id.String(), profile.ID, row.createdAt, row.createdAt); err != nil {
			t.Fatalf("insert plan: %v", err)
		}
	}

	current, err := svc.GetCurrentPlan(ctx, profile.ID)
	if err != nil {
		t.Fatalf("GetCurrentPlan: %v", err)
	}
	if current.ID != newest {
		t.Errorf("GetCurrentPlan() = %s, want %s", current.ID, newest)
	}
}

func TestService_HealthGoals(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestService(t)

	goals := svc.HealthGoals()

	want := []string{"Build Muscle", "Gain Weight", health.DefaultGoal, "Improve Fitness", "Lose Weight",
		"Maintain Weight"}
	if diff := cmp.Diff(want, goals); diff != "" {
		t.Errorf("HealthGoals() mismatch (-want +got):\n%s", diff)
	}
	for _, label := range goals {
		if _, ok := svc.calculator.Policies().Lookup(label); !ok {
			t.Errorf("label %q has no policy of its own", label)
		}
	}
}
