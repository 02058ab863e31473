package health

import "slices"

// DefaultGoal is the policy used for unrecognised health goal labels.
const DefaultGoal = "General Health"

// Policy holds the coefficients of one health goal.
//
// CarbsPct and FatPct are shares of the calorie goal while protein is derived from body weight, so the three do not
// sum to one.
type Policy struct {
	CalorieMultiplier  float64
	ProteinPerKg       float64
	CarbsPct           float64
	FatPct             float64
	WaterPerKgMl       float64
	SleepHours         float64
	WorkoutDaysPerWeek int
	RecommendedFocus   []string
	// MassGain adds a third daily snack.
	MassGain bool
}

// PolicyTable is an immutable lookup of policies by goal label. Construct it with DefaultPolicies or NewPolicyTable.
type PolicyTable struct {
	policies map[string]Policy
	labels   []string
	fallback Policy
}

// NewPolicyTable copies policies into a table. fallback is returned by Lookup for labels missing from policies.
func NewPolicyTable(policies map[string]Policy, fallback Policy) PolicyTable {
	table := PolicyTable{
		policies: make(map[string]Policy, len(policies)),
		labels:   make([]string, 0, len(policies)),
		fallback: clonePolicy(fallback),
	}
	for label, policy := range policies {
		table.policies[label] = clonePolicy(policy)
		table.labels = append(table.labels, label)
	}
	slices.Sort(table.labels)
	return table
}

// DefaultPolicies returns the built-in goal policies.
func DefaultPolicies() PolicyTable {
	general := Policy{
		CalorieMultiplier:  1.0,
		ProteinPerKg:       1.0,
		CarbsPct:           0.50,
		FatPct:             0.30,
		WaterPerKgMl:       30,
		SleepHours:         8,
		WorkoutDaysPerWeek: 3,
		RecommendedFocus:   []string{"cardio", "waist"},
		MassGain:           false,
	}
	return NewPolicyTable(map[string]Policy{
		"Lose Weight": {
			CalorieMultiplier:  0.80,
			ProteinPerKg:       1.8,
			CarbsPct:           0.40,
			FatPct:             0.25,
			WaterPerKgMl:       35,
			SleepHours:         8,
			WorkoutDaysPerWeek: 5,
			RecommendedFocus:   []string{"cardio", "waist"},
			MassGain:           false,
		},
		"Gain Weight": {
			CalorieMultiplier:  1.15,
			ProteinPerKg:       1.6,
			CarbsPct:           0.50,
			FatPct:             0.25,
			WaterPerKgMl:       35,
			SleepHours:         8,
			WorkoutDaysPerWeek: 3,
			RecommendedFocus:   []string{"chest", "back", "lower-legs"},
			MassGain:           true,
		},
		"Build Muscle": {
			CalorieMultiplier:  1.10,
			ProteinPerKg:       2.0,
			CarbsPct:           0.45,
			FatPct:             0.25,
			WaterPerKgMl:       40,
			SleepHours:         8.5,
			WorkoutDaysPerWeek: 4,
			RecommendedFocus:   []string{"chest", "back", "upper-arms", "lower-legs"},
			MassGain:           true,
		},
		"Improve Fitness": {
			CalorieMultiplier:  1.0,
			ProteinPerKg:       1.4,
			CarbsPct:           0.50,
			FatPct:             0.20,
			WaterPerKgMl:       35,
			SleepHours:         8,
			WorkoutDaysPerWeek: 4,
			RecommendedFocus:   []string{"cardio", "lower-legs", "waist"},
			MassGain:           false,
		},
		"Maintain Weight": {
			CalorieMultiplier:  1.0,
			ProteinPerKg:       1.2,
			CarbsPct:           0.50,
			FatPct:             0.30,
			WaterPerKgMl:       33,
			SleepHours:         7.5,
			WorkoutDaysPerWeek: 3,
			RecommendedFocus:   []string{"chest", "back", "cardio"},
			MassGain:           false,
		},
		DefaultGoal: general,
	}, general)
}

// Lookup resolves label by exact match and falls back to the default policy. The second return value reports
// whether label was known.
func (t PolicyTable) Lookup(label string) (Policy, bool) {
	policy, ok := t.policies[label]
	if !ok {
		return clonePolicy(t.fallback), false
	}
	return clonePolicy(policy), true
}

// Labels returns the known goal labels in sorted order.
func (t PolicyTable) Labels() []string {
	return slices.Clone(t.labels)
}

func clonePolicy(p Policy) Policy {
	p.RecommendedFocus = slices.Clone(p.RecommendedFocus)
	return p
}
