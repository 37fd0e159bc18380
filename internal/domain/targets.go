package domain

import "math"

// activityMultipliers maps the activity level to its TDEE multiplier
var activityMultipliers = map[string]float64{
	ActivitySedentary: 1.2,
	ActivityModerate:  1.4,
	ActivityActive:    1.6,
	ActivityAthlete:   1.9,
}

const (
	highIntensityFactor = 1.25
	restIntensityFactor = 0.9

	ketoCarbsHigh    = 45.0
	ketoCarbsDefault = 25.0

	sodiumKetoMg     = 5000
	sodiumStandardMg = 2300
	potassiumMg      = 3500
)

// MacroTargets are the daily goals shown to the user, rounded for display
type MacroTargets struct {
	Calories  int `bson:"calories" json:"calories" firestore:"calories"`
	Protein   int `bson:"protein" json:"protein" firestore:"protein"`
	Carbs     int `bson:"carbs" json:"carbs" firestore:"carbs"`
	Fat       int `bson:"fat" json:"fat" firestore:"fat"`
	Sodium    int `bson:"sodium" json:"sodium" firestore:"sodium"`
	Potassium int `bson:"potassium" json:"potassium" firestore:"potassium"`
}

// RawTargets holds the un-rounded values of the calculation
type RawTargets struct {
	BMR       float64
	TDEE      float64
	Protein   float64
	Carbs     float64
	Fat       float64
	Sodium    int
	Potassium int
}

// ComputeRawTargets runs the BMR/TDEE/macro model without rounding.
// The profile must be validated by the caller.
func ComputeRawTargets(p UserProfile, intensity TrainingIntensity) RawTargets {
	var bmr float64
	if p.BodyFat != nil && *p.BodyFat > 0 {
		// Katch-McArdle
		leanMass := p.Weight * (1 - *p.BodyFat/100)
		bmr = 370 + 21.6*leanMass
	} else {
		// Mifflin-St Jeor
		bmr = 10*p.Weight + 6.25*p.Height - 5*float64(p.Age)
		if p.Gender == GenderMale {
			bmr += 5
		} else {
			bmr -= 161
		}
	}

	multiplier, ok := activityMultipliers[p.ActivityLevel]
	if !ok {
		multiplier = activityMultipliers[ActivitySedentary]
	}
	tdee := bmr * multiplier
	switch intensity {
	case IntensityHigh:
		tdee *= highIntensityFactor
	case IntensityRest:
		tdee *= restIntensityFactor
	}

	// Renal protection overrides the goal
	ratio := 1.8
	if p.HasCondition(ConditionKidney) {
		ratio = 1.2
	} else if p.Goal == GoalPerformance {
		ratio = 2.2
	}
	protein := p.Weight * ratio

	keto := p.IsKeto()
	var carbs float64
	if keto {
		carbs = ketoCarbsDefault
		if intensity == IntensityHigh {
			carbs = ketoCarbsHigh
		}
	} else {
		share := 0.40
		if intensity == IntensityHigh {
			share = 0.55
		}
		carbs = tdee * share / 4
	}
	fat := (tdee - protein*4 - carbs*4) / 9

	sodium := sodiumStandardMg
	if keto {
		sodium = sodiumKetoMg
	}

	return RawTargets{
		BMR:       bmr,
		TDEE:      tdee,
		Protein:   protein,
		Carbs:     carbs,
		Fat:       fat,
		Sodium:    sodium,
		Potassium: potassiumMg,
	}
}

// ComputeTargets returns the display targets for a profile and today's intensity
func ComputeTargets(p UserProfile, intensity TrainingIntensity) MacroTargets {
	raw := ComputeRawTargets(p, intensity)
	return MacroTargets{
		Calories:  roundHalfUp(raw.TDEE),
		Protein:   roundHalfUp(raw.Protein),
		Carbs:     roundHalfUp(raw.Carbs),
		Fat:       roundHalfUp(raw.Fat),
		Sodium:    raw.Sodium,
		Potassium: raw.Potassium,
	}
}

// roundHalfUp rounds .5 toward positive infinity, matching the client's display rounding
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// roundTo1 rounds to one decimal place
func roundTo1(x float64) float64 {
	return math.Floor(x*10+0.5) / 10
}
