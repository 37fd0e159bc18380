package domain

import (
	"testing"
	"time"
)

func testProfile() UserProfile {
	return DefaultProfile(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestComputeTargets(t *testing.T) {
	bodyFat := 20.0

	tests := []struct {
		name      string
		profile   func() UserProfile
		intensity TrainingIntensity
		want      MacroTargets
	}{
		{
			name:      "keto moderate, half rounds up",
			profile:   testProfile,
			intensity: IntensityModerate,
			want:      MacroTargets{Calories: 2335, Protein: 135, Carbs: 25, Fat: 188, Sodium: 5000, Potassium: 3500},
		},
		{
			name:      "keto high raises carbs to 45",
			profile:   testProfile,
			intensity: IntensityHigh,
			want:      MacroTargets{Calories: 2918, Protein: 135, Carbs: 45, Fat: 244, Sodium: 5000, Potassium: 3500},
		},
		{
			name:      "keto rest",
			profile:   testProfile,
			intensity: IntensityRest,
			want:      MacroTargets{Calories: 2101, Protein: 135, Carbs: 25, Fat: 162, Sodium: 5000, Potassium: 3500},
		},
		{
			name: "standard female high",
			profile: func() UserProfile {
				p := testProfile()
				p.Weight, p.Height, p.Age = 60, 165, 25
				p.Gender = GenderFemale
				p.Goal = GoalHealth
				p.ActivityLevel = ActivityActive
				p.Strategy = []string{}
				return p
			},
			intensity: IntensityHigh,
			want:      MacroTargets{Calories: 2691, Protein: 108, Carbs: 370, Fat: 87, Sodium: 2300, Potassium: 3500},
		},
		{
			name: "body fat uses Katch-McArdle, performance protein",
			profile: func() UserProfile {
				p := testProfile()
				p.Weight, p.Height, p.Age = 80, 180, 35
				p.BodyFat = &bodyFat
				p.Goal = GoalPerformance
				p.ActivityLevel = ActivityAthlete
				p.Strategy = nil
				return p
			},
			intensity: IntensityModerate,
			want:      MacroTargets{Calories: 3330, Protein: 176, Carbs: 333, Fat: 144, Sodium: 2300, Potassium: 3500},
		},
		{
			name: "kidney condition caps protein ratio",
			profile: func() UserProfile {
				p := testProfile()
				p.Weight, p.Height, p.Age = 90, 175, 50
				p.Goal = GoalPerformance
				p.ActivityLevel = ActivitySedentary
				p.Strategy = nil
				p.MedicalConditions = []string{ConditionKidney}
				return p
			},
			intensity: IntensityModerate,
			want:      MacroTargets{Calories: 2099, Protein: 108, Carbs: 210, Fat: 92, Sodium: 2300, Potassium: 3500},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.profile()
			if err := p.Validate(); err != nil {
				t.Fatalf("Validate() = %v", err)
			}
			got := ComputeTargets(p, tt.intensity)
			if got != tt.want {
				t.Errorf("ComputeTargets() = %+v, want %+v", got, tt.want)
			}
			if again := ComputeTargets(p, tt.intensity); again != got {
				t.Errorf("ComputeTargets() not deterministic: %+v then %+v", got, again)
			}
		})
	}
}

func TestKetoCarbCeiling(t *testing.T) {
	for _, intensity := range []TrainingIntensity{IntensityRest, IntensityModerate, IntensityHigh} {
		for _, weight := range []float64{50, 75, 120} {
			p := testProfile()
			p.Weight = weight
			raw := ComputeRawTargets(p, intensity)

			limit := 25.0
			if intensity == IntensityHigh {
				limit = 45
			}
			if raw.Carbs > limit {
				t.Errorf("intensity %s weight %v: carbs = %v, want <= %v", intensity, weight, raw.Carbs, limit)
			}
		}
	}
}

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{2334.5, 2335},
		{2.5, 3},
		{-2.5, -2},
		{1.49, 1},
		{0, 0},
	}
	for _, tt := range tests {
		if got := roundHalfUp(tt.in); got != tt.want {
			t.Errorf("roundHalfUp(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *UserProfile)
		wantErr bool
	}{
		{"default is valid", func(p *UserProfile) {}, false},
		{"zero weight", func(p *UserProfile) { p.Weight = 0 }, true},
		{"negative height", func(p *UserProfile) { p.Height = -170 }, true},
		{"zero age", func(p *UserProfile) { p.Age = 0 }, true},
		{"unknown gender", func(p *UserProfile) { p.Gender = "x" }, true},
		{"unknown goal", func(p *UserProfile) { p.Goal = "bulk" }, true},
		{"unknown activity", func(p *UserProfile) { p.ActivityLevel = "couch" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProfile()
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProfilePatchApply(t *testing.T) {
	p := testProfile()
	bf := 18.0
	weight := 82.5

	patched := ProfilePatch{Weight: &weight, BodyFat: &bf, Strategy: []string{StrategyFasting}}.Apply(p)
	if patched.Weight != 82.5 || patched.BodyFat == nil || *patched.BodyFat != 18 {
		t.Errorf("Apply() = %+v", patched)
	}
	if patched.IsKeto() {
		t.Error("Apply() kept keto after strategy replaced")
	}
	if !p.IsKeto() || p.Weight != 75 {
		t.Error("Apply() modified the original profile")
	}

	zero := 0.0
	cleared := ProfilePatch{BodyFat: &zero}.Apply(patched)
	if cleared.BodyFat != nil {
		t.Errorf("Apply() with zero body fat = %v, want nil", *cleared.BodyFat)
	}
}
