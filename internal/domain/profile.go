package domain

import (
	"fmt"
	"time"
)

// Gender values accepted by the BMR formulas
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Goal values
const (
	GoalWeightLoss  = "weight-loss"
	GoalHealth      = "health"
	GoalPerformance = "performance"
)

// Activity levels
const (
	ActivitySedentary = "sedentary"
	ActivityModerate  = "moderate"
	ActivityActive    = "active"
	ActivityAthlete   = "athlete"
)

// Diet strategy tags and medical conditions with special handling
const (
	StrategyKeto     = "keto"
	StrategyFasting  = "fasting"
	ConditionKidney  = "kidney"
	conditionNoneTag = "none"
)

// TrainingIntensity is today's training load, it scales the TDEE
type TrainingIntensity string

const (
	IntensityRest     TrainingIntensity = "rest"
	IntensityModerate TrainingIntensity = "moderate"
	IntensityHigh     TrainingIntensity = "high"
)

// Valid reports whether the intensity is one of the known values
func (i TrainingIntensity) Valid() bool {
	return i == IntensityRest || i == IntensityModerate || i == IntensityHigh
}

// UserProfile holds the biometrics and preferences that drive the macro targets
type UserProfile struct {
	Name              string    `bson:"name" json:"name" firestore:"name"`
	Email             string    `bson:"email,omitempty" json:"email,omitempty" firestore:"email,omitempty"`
	Weight            float64   `bson:"weight" json:"weight" firestore:"weight"` // kg
	Height            float64   `bson:"height" json:"height" firestore:"height"` // cm
	Age               int       `bson:"age" json:"age" firestore:"age"`
	Gender            string    `bson:"gender" json:"gender" firestore:"gender"`
	Goal              string    `bson:"goal" json:"goal" firestore:"goal"`
	Strategy          []string  `bson:"strategy" json:"strategy" firestore:"strategy"`
	ActivityLevel     string    `bson:"activity_level" json:"activityLevel" firestore:"activityLevel"`
	BodyFat           *float64  `bson:"body_fat,omitempty" json:"bodyFat,omitempty" firestore:"bodyFat,omitempty"` // %
	MedicalConditions []string  `bson:"medical_conditions" json:"medicalConditions" firestore:"medicalConditions"`
	Allergies         []string  `bson:"allergies" json:"allergies" firestore:"allergies"`
	JoinedAt          time.Time `bson:"joined_at" json:"joinedAt" firestore:"joinedAt"`
}

// HasStrategy checks if the profile follows a diet strategy tag
func (p *UserProfile) HasStrategy(tag string) bool {
	return containsString(p.Strategy, tag)
}

// HasCondition checks if the profile lists a medical condition
func (p *UserProfile) HasCondition(condition string) bool {
	return containsString(p.MedicalConditions, condition)
}

// IsKeto reports whether net-carb accounting and keto macros apply
func (p *UserProfile) IsKeto() bool {
	return p.HasStrategy(StrategyKeto)
}

// Validate checks the invariants the targets engine relies on
func (p *UserProfile) Validate() error {
	if p.Weight <= 0 {
		return fmt.Errorf("%w: weight must be positive", ErrInvalidProfile)
	}
	if p.Height <= 0 {
		return fmt.Errorf("%w: height must be positive", ErrInvalidProfile)
	}
	if p.Age <= 0 {
		return fmt.Errorf("%w: age must be positive", ErrInvalidProfile)
	}
	if p.Gender != GenderMale && p.Gender != GenderFemale {
		return fmt.Errorf("%w: unknown gender %q", ErrInvalidProfile, p.Gender)
	}
	switch p.Goal {
	case GoalWeightLoss, GoalHealth, GoalPerformance:
	default:
		return fmt.Errorf("%w: unknown goal %q", ErrInvalidProfile, p.Goal)
	}
	if _, ok := activityMultipliers[p.ActivityLevel]; !ok {
		return fmt.Errorf("%w: unknown activity level %q", ErrInvalidProfile, p.ActivityLevel)
	}
	if p.BodyFat != nil && (*p.BodyFat < 0 || *p.BodyFat >= 100) {
		return fmt.Errorf("%w: body fat must be between 0 and 100", ErrInvalidProfile)
	}
	return nil
}

// ProfilePatch is a partial profile update; nil fields are left untouched
type ProfilePatch struct {
	Name              *string  `json:"name,omitempty"`
	Email             *string  `json:"email,omitempty"`
	Weight            *float64 `json:"weight,omitempty"`
	Height            *float64 `json:"height,omitempty"`
	Age               *int     `json:"age,omitempty"`
	Gender            *string  `json:"gender,omitempty"`
	Goal              *string  `json:"goal,omitempty"`
	Strategy          []string `json:"strategy,omitempty"`
	ActivityLevel     *string  `json:"activityLevel,omitempty"`
	BodyFat           *float64 `json:"bodyFat,omitempty"`
	MedicalConditions []string `json:"medicalConditions,omitempty"`
	Allergies         []string `json:"allergies,omitempty"`
}

// Apply returns a copy of the profile with the patch merged in.
// A zero body fat clears it, falling back to Mifflin-St Jeor.
func (pp ProfilePatch) Apply(p UserProfile) UserProfile {
	out := p.clone()
	if pp.Name != nil {
		out.Name = *pp.Name
	}
	if pp.Email != nil {
		out.Email = *pp.Email
	}
	if pp.Weight != nil {
		out.Weight = *pp.Weight
	}
	if pp.Height != nil {
		out.Height = *pp.Height
	}
	if pp.Age != nil {
		out.Age = *pp.Age
	}
	if pp.Gender != nil {
		out.Gender = *pp.Gender
	}
	if pp.Goal != nil {
		out.Goal = *pp.Goal
	}
	if pp.Strategy != nil {
		out.Strategy = append([]string{}, pp.Strategy...)
	}
	if pp.ActivityLevel != nil {
		out.ActivityLevel = *pp.ActivityLevel
	}
	if pp.BodyFat != nil {
		if *pp.BodyFat > 0 {
			bf := *pp.BodyFat
			out.BodyFat = &bf
		} else {
			out.BodyFat = nil
		}
	}
	if pp.MedicalConditions != nil {
		out.MedicalConditions = append([]string{}, pp.MedicalConditions...)
	}
	if pp.Allergies != nil {
		out.Allergies = append([]string{}, pp.Allergies...)
	}
	return out
}

func (p UserProfile) clone() UserProfile {
	out := p
	out.Strategy = append([]string(nil), p.Strategy...)
	out.MedicalConditions = append([]string(nil), p.MedicalConditions...)
	out.Allergies = append([]string(nil), p.Allergies...)
	if p.BodyFat != nil {
		bf := *p.BodyFat
		out.BodyFat = &bf
	}
	return out
}

// DefaultProfile returns the profile a new user starts with
func DefaultProfile(now time.Time) UserProfile {
	return UserProfile{
		Name:              "Usuario",
		Weight:            75,
		Height:            170,
		Age:               30,
		Gender:            GenderMale,
		Goal:              GoalWeightLoss,
		Strategy:          []string{StrategyKeto},
		ActivityLevel:     ActivityModerate,
		MedicalConditions: []string{conditionNoneTag},
		Allergies:         []string{conditionNoneTag},
		JoinedAt:          now,
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
