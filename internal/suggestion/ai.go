package suggestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/myrjola/vitalplan/internal/errors"
	"github.com/myrjola/vitalplan/internal/training"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	maxAIFocus             = 3
	restTomorrowThreshold  = 3
	restWorkoutsThreshold  = 5
	defaultOpenAIModel     = string(openai.ChatModelGPT4oMini)
	systemPromptSuggestion = `You are a strength and conditioning coach planning tomorrow's session.
Answer with a single JSON object and nothing else:
{"shouldWorkout": boolean, "focus": string[], "reasoning": string}
Only use these focus values: %s.
Pick at most three focus values and keep the reasoning to two sentences.`
)

var (
	// ErrMalformedResponse is returned when the AI answer lacks the required JSON fields.
	ErrMalformedResponse = errors.NewSentinel("malformed AI response")
	errNoExercises       = errors.NewSentinel("no catalog exercises for the suggested focus")
)

// Provider completes a prompt with an AI model.
type Provider interface {
	Complete(ctx context.Context, prompt string, credential string) (string, error)
}

// OpenAIProvider completes prompts with the OpenAI chat completions API.
type OpenAIProvider struct {
	model  string
	logger *slog.Logger
}

// NewOpenAIProvider creates a provider using model, or a small default model when model is empty.
func NewOpenAIProvider(model string, logger *slog.Logger) *OpenAIProvider {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIProvider{model: model, logger: logger}
}

func (p *OpenAIProvider) Complete(ctx context.Context, prompt string, credential string) (string, error) {
	// Credentials are per user, so the client is created per call. Retries would outlast the step timeout.
	client := openai.NewClient(option.WithAPIKey(credential), option.WithMaxRetries(0))
	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(fmt.Sprintf(systemPromptSuggestion, strings.Join(focusNames(), ", "))),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	p.logger.LogAttrs(ctx, slog.LevelDebug, "received chat completion",
		slog.String("model", p.model),
		slog.Int64("prompt_tokens", completion.Usage.PromptTokens),
		slog.Int64("completion_tokens", completion.Usage.CompletionTokens))
	if len(completion.Choices) == 0 {
		return "", errors.Wrap(ErrMalformedResponse, "no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// decision is a validated AI answer. Focus only holds whitelisted values.
type decision struct {
	ShouldWorkout bool
	Focus         []training.Focus
	Reasoning     string
	// FocusMistyped is set when focus was present but not a list of strings. Focus is empty then.
	FocusMistyped bool
}

// parseDecision extracts the first JSON object of text, tolerating markdown code fences and surrounding prose.
// shouldWorkout and reasoning are required; focus values outside the whitelist are dropped.
func parseDecision(text string) (decision, error) {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	start := strings.Index(text, "{")
	if start < 0 {
		return decision{}, errors.Wrap(ErrMalformedResponse, "no JSON object")
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&raw); err != nil {
		return decision{}, errors.Wrap(ErrMalformedResponse, "decode JSON object", slog.String("cause", err.Error()))
	}

	var d decision
	if err := decodeField(raw, "shouldWorkout", &d.ShouldWorkout); err != nil {
		return decision{}, err
	}
	if err := decodeField(raw, "reasoning", &d.Reasoning); err != nil {
		return decision{}, err
	}

	var focus []string
	if value, ok := raw["focus"]; ok {
		if err := json.Unmarshal(value, &focus); err != nil {
			focus = nil
			d.FocusMistyped = true
		}
	}
	d.Focus = []training.Focus{}
	for _, f := range focus {
		parsed, ok := training.ParseFocus(f)
		if ok && !slices.Contains(d.Focus, parsed) {
			d.Focus = append(d.Focus, parsed)
		}
	}
	return d, nil
}

// decodeField decodes a required field. null counts as missing.
func decodeField(raw map[string]json.RawMessage, name string, dst any) error {
	value, ok := raw[name]
	if !ok || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
		return errors.Wrap(ErrMalformedResponse, "missing field", slog.String("field", name))
	}
	if err := json.Unmarshal(value, dst); err != nil {
		return errors.Wrap(ErrMalformedResponse, "wrongly typed field", slog.String("field", name))
	}
	return nil
}

// shouldTrainTomorrow is false when tomorrow is already planned full or the week has enough workouts.
func shouldTrainTomorrow(a training.Analysis) bool {
	return a.TomorrowExerciseCount < restTomorrowThreshold && a.TotalWorkouts < restWorkoutsThreshold
}

func buildPrompt(a training.Analysis, trainTomorrow bool) string {
	days := make([]string, 0, len(a.CompletedDays))
	for _, d := range a.CompletedDays {
		days = append(days, d.String())
	}
	groups := make([]string, 0, len(a.TrainedMuscleGroups))
	for _, g := range a.TrainedMuscleGroups {
		groups = append(groups, string(g))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tomorrow is %s.\n", a.Tomorrow)
	fmt.Fprintf(&b, "Workouts completed this week: %d.\n", a.TotalWorkouts)
	fmt.Fprintf(&b, "Days with completed workouts: %s.\n", orNone(days))
	fmt.Fprintf(&b, "Muscle groups trained this week: %s.\n", orNone(groups))
	fmt.Fprintf(&b, "Exercises already planned for tomorrow: %d.\n", a.TomorrowExerciseCount)
	fmt.Fprintf(&b, "Allowed focus values: %s.\n", strings.Join(focusNames(), ", "))
	fmt.Fprintf(&b, "shouldTrainTomorrow: %t.\n", trainTomorrow)
	if !trainTomorrow {
		b.WriteString("The user should rest tomorrow, so answer with shouldWorkout false and an empty focus.\n")
	}
	return b.String()
}

// fromAI asks the provider for a decision and validates it against the catalog.
func (p *Pipeline) fromAI(ctx context.Context, userID int, analysis training.Analysis) (Suggestion, error) {
	credential := p.credential(ctx, userID)
	if credential == "" || p.provider == nil {
		return Suggestion{}, errors.Wrap(errSkipped, "no AI credential")
	}

	trainTomorrow := shouldTrainTomorrow(analysis)
	aiCtx, cancel := context.WithTimeout(ctx, p.cfg.AITimeout)
	defer cancel()
	text, err := p.provider.Complete(aiCtx, buildPrompt(analysis, trainTomorrow), credential)
	if err != nil {
		return Suggestion{}, fmt.Errorf("complete prompt: %w", err)
	}
	d, err := parseDecision(text)
	if err != nil {
		return Suggestion{}, err
	}
	if d.FocusMistyped {
		p.logger.LogAttrs(ctx, slog.LevelDebug, "AI focus is not a list of strings, treating it as empty",
			slog.Int("user_id", userID))
	}

	if !d.ShouldWorkout || !trainTomorrow {
		return restSuggestion(analysis.Tomorrow, d.Reasoning, StatusValidated, p.now()), nil
	}

	focus := d.Focus[:min(len(d.Focus), maxAIFocus)]
	exercises := p.enrich(ctx, focus)
	if len(exercises) == 0 {
		return Suggestion{}, errors.Wrap(errNoExercises, "validate AI focus", slog.Any("focus", focus))
	}
	return Suggestion{
		DayOfWeek:          analysis.Tomorrow.String(),
		RecommendedFocus:   focus,
		SuggestedExercises: exercises,
		Reasoning:          d.Reasoning,
		ValidationStatus:   StatusValidated,
		GeneratedAt:        p.now(),
	}, nil
}

// credential prefers the user's own key over the application key.
func (p *Pipeline) credential(ctx context.Context, userID int) string {
	if p.credentials != nil {
		key, err := p.credentials.AICredential(ctx, userID)
		if err != nil {
			p.logger.LogAttrs(ctx, slog.LevelWarn, "failed to read AI credential", errors.SlogError(err))
		}
		if key != "" {
			return key
		}
	}
	return p.cfg.AppAPIKey
}

func focusNames() []string {
	names := make([]string, 0, len(training.Focuses()))
	for _, f := range training.Focuses() {
		names = append(names, string(f))
	}
	return names
}

func orNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}
