package plan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/vitalplan/internal/errors"
	"github.com/myrjola/vitalplan/internal/events"
	"github.com/myrjola/vitalplan/internal/health"
	"github.com/myrjola/vitalplan/internal/metrics"
	"github.com/myrjola/vitalplan/internal/sqlite"
)

var (
	ErrNotFound     = errors.NewSentinel("not found")
	ErrInvalidInput = errors.NewSentinel("invalid input")
)

// Service orchestrates plan generation and goal switching.
type Service struct {
	profiles   *sqliteProfileRepository
	plans      *sqlitePlanRepository
	nutrition  GoalStore[health.NutritionGoals]
	hydration  GoalStore[HydrationGoal]
	sleep      GoalStore[SleepGoal]
	calculator *health.Calculator
	publisher  events.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a plan service storing goals and plans in db.
func NewService(
	db *sqlite.Database,
	calculator *health.Calculator,
	publisher events.Publisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		profiles:   newSQLiteProfileRepository(db),
		plans:      newSQLitePlanRepository(db),
		nutrition:  newNutritionStore(db),
		hydration:  newHydrationStore(db),
		sleep:      newSleepStore(db),
		calculator: calculator,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// RegisterUser stores profile and generates its first plan.
func (s *Service) RegisterUser(ctx context.Context, profile Profile) (Profile, HealthPlan, error) {
	profile.Name = strings.TrimSpace(profile.Name)
	profile.Sex = health.Sex(strings.ToLower(strings.TrimSpace(string(profile.Sex))))
	profile.ActivityLevel = health.ParseActivityLevel(string(profile.ActivityLevel))
	profile.HealthGoal = strings.TrimSpace(profile.HealthGoal)
	if profile.HealthGoal == "" {
		profile.HealthGoal = health.DefaultGoal
	}
	if profile.Name == "" {
		return Profile{}, HealthPlan{}, errors.Wrap(ErrInvalidInput, "name is required")
	}
	if profile.Sex != health.SexMale && profile.Sex != health.SexFemale {
		return Profile{}, HealthPlan{}, errors.Wrap(ErrInvalidInput, "sex must be male or female",
			slog.String("sex", string(profile.Sex)))
	}
	// Reject invalid metrics before anything is stored.
	if _, err := s.calculator.Calculate(profile.Snapshot(), s.now()); err != nil {
		return Profile{}, HealthPlan{}, fmt.Errorf("calculate targets: %w", err)
	}

	id, err := s.profiles.create(ctx, profile)
	if err != nil {
		return Profile{}, HealthPlan{}, fmt.Errorf("create profile: %w", err)
	}
	if profile, err = s.profiles.get(ctx, id); err != nil {
		return Profile{}, HealthPlan{}, fmt.Errorf("get created profile: %w", err)
	}

	p, err := s.GeneratePlan(ctx, id, profile.Snapshot())
	if err != nil {
		return profile, HealthPlan{}, fmt.Errorf("generate first plan: %w", err)
	}
	return profile, p, nil
}

// GeneratePlan calculates the targets of snapshot, writes them to the goal stores and replaces the plan of the
// user. The writes are sequential and the first failure stops the rest; targets written before it stay updated.
func (s *Service) GeneratePlan(ctx context.Context, userID int, snapshot health.UserSnapshot) (HealthPlan, error) {
	targets, err := s.calculator.Calculate(snapshot, s.now())
	if err != nil {
		return HealthPlan{}, fmt.Errorf("calculate targets: %w", err)
	}
	p, err := s.applyTargets(ctx, userID, targets)
	if err != nil {
		return HealthPlan{}, err
	}
	s.publish(ctx, events.New(events.TypePlanGenerated, userID, p.CreatedAt, p))
	return p, nil
}

// SwitchPlan changes the health goal of the user and regenerates the plan. Logged meals, water, sleep and
// workouts are left untouched.
func (s *Service) SwitchPlan(ctx context.Context, userID int, newGoal string) (HealthPlan, error) {
	newGoal = strings.TrimSpace(newGoal)
	if newGoal == "" {
		return HealthPlan{}, errors.Wrap(ErrInvalidInput, "health goal is required")
	}
	profile, err := s.profiles.get(ctx, userID)
	if err != nil {
		return HealthPlan{}, fmt.Errorf("get profile: %w", err)
	}
	previousGoal := profile.HealthGoal
	profile.HealthGoal = newGoal

	// Calculate first so that invalid input aborts before anything is touched.
	targets, err := s.calculator.Calculate(profile.Snapshot(), s.now())
	if err != nil {
		return HealthPlan{}, fmt.Errorf("calculate targets: %w", err)
	}
	if err = s.profiles.updateHealthGoal(ctx, userID, newGoal); err != nil {
		return HealthPlan{}, fmt.Errorf("update health goal: %w", err)
	}
	p, err := s.applyTargets(ctx, userID, targets)
	if err != nil {
		return HealthPlan{}, err
	}

	metrics.RecordPlanSwitch()
	s.logger.LogAttrs(ctx, slog.LevelInfo, "switched health goal",
		slog.Int("user_id", userID), slog.String("from", previousGoal), slog.String("to", newGoal))
	s.publish(ctx, events.New(events.TypePlanSwitched, userID, p.CreatedAt, map[string]any{
		"previousGoal": previousGoal,
		"plan":         p,
	}))
	return p, nil
}

// GetCurrentPlan returns the most recent plan of the user or ErrNotFound.
func (s *Service) GetCurrentPlan(ctx context.Context, userID int) (HealthPlan, error) {
	p, err := s.plans.latest(ctx, userID)
	if err != nil {
		return HealthPlan{}, fmt.Errorf("latest plan: %w", err)
	}
	return p, nil
}

// GetGoals returns the goal store values effective on date.
func (s *Service) GetGoals(ctx context.Context, userID int, date time.Time) (Goals, error) {
	var (
		goals Goals
		err   error
	)
	if goals.Nutrition, err = s.nutrition.GetGoals(ctx, userID, date); err != nil {
		return Goals{}, fmt.Errorf("get nutrition goals: %w", err)
	}
	if goals.Hydration, err = s.hydration.GetGoals(ctx, userID, date); err != nil {
		return Goals{}, fmt.Errorf("get hydration goal: %w", err)
	}
	if goals.Sleep, err = s.sleep.GetGoals(ctx, userID, date); err != nil {
		return Goals{}, fmt.Errorf("get sleep goal: %w", err)
	}
	return goals, nil
}

// HealthGoals lists the goal labels with their own policy in sorted order. Other labels get the default policy.
func (s *Service) HealthGoals() []string {
	return s.calculator.Policies().Labels()
}

// GetProfile returns the stored profile or ErrNotFound.
func (s *Service) GetProfile(ctx context.Context, userID int) (Profile, error) {
	profile, err := s.profiles.get(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

// AICredential returns the AI API key configured for the user, or an empty string.
func (s *Service) AICredential(ctx context.Context, userID int) (string, error) {
	profile, err := s.profiles.get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}
	return profile.AIAPIKey, nil
}

type targetWrite struct {
	target string
	write  func(ctx context.Context) error
}

// applyTargets writes targets to the goal stores and then replaces the plan metadata.
func (s *Service) applyTargets(ctx context.Context, userID int, targets health.Targets) (HealthPlan, error) {
	now := s.now().UTC().Truncate(time.Millisecond)
	nutrition := targets.Nutrition
	nutrition.UserID = userID
	p := HealthPlan{
		ID:             uuid.New(),
		UserID:         userID,
		HealthGoal:     targets.HealthGoal,
		NutritionGoals: nutrition,
		WorkoutPlan: WorkoutPlan{
			WorkoutsPerWeek:  targets.WorkoutsPerWeek,
			RecommendedFocus: targets.RecommendedFocus,
		},
		HydrationGoalMl: targets.WaterGoalMl,
		SleepGoalHours:  targets.SleepGoalHours,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	writes := []targetWrite{
		{"nutrition", func(ctx context.Context) error { return s.nutrition.SetGoals(ctx, userID, nutrition) }},
		{"hydration", func(ctx context.Context) error {
			return s.hydration.SetGoals(ctx, userID, HydrationGoal{
				Date: nutrition.Date, UserID: userID, AmountMl: targets.WaterGoalMl,
			})
		}},
		{"sleep", func(ctx context.Context) error {
			return s.sleep.SetGoals(ctx, userID, SleepGoal{
				Date: nutrition.Date, UserID: userID, Hours: targets.SleepGoalHours,
			})
		}},
		{"plan", func(ctx context.Context) error {
			removed, err := s.plans.replace(ctx, p)
			if err == nil && removed > 0 {
				s.logger.LogAttrs(ctx, slog.LevelDebug, "replaced previous plans",
					slog.Int("user_id", userID), slog.Int("removed", removed))
			}
			return err
		}},
	}

	var written []string
	for _, w := range writes {
		err := w.write(ctx)
		metrics.RecordGoalWrite(w.target, err)
		if err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "plan targets partially written",
				slog.Int("user_id", userID),
				slog.String("failed", w.target),
				slog.Any("written", written),
				errors.SlogError(err))
			return HealthPlan{}, errors.Wrap(err, "write "+w.target+" target",
				slog.String("failed", w.target), slog.Any("written", written))
		}
		written = append(written, w.target)
	}
	return p, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to publish event",
			slog.String("event_type", event.Type), errors.SlogError(err))
	}
}
