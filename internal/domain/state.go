package domain

import (
	"context"
	"fmt"
	"math"
	"time"
)

// DefaultMealTime is used when a meal is added without a time
const DefaultMealTime = "12:00"

// WeightRecord is one entry of the weight history
type WeightRecord struct {
	Date   time.Time `bson:"date" json:"date" firestore:"date"`
	Weight float64   `bson:"weight" json:"weight" firestore:"weight"`
	IMC    string    `bson:"imc" json:"imc" firestore:"imc"` // BMI, one decimal
}

// AppState is the per-user document: everything the app persists for one user
type AppState struct {
	UserID               string                     `bson:"_id" json:"userId" firestore:"userId"`
	Profile              UserProfile                `bson:"profile" json:"profile" firestore:"profile"`
	WeeklyPlan           WeeklyPlan                 `bson:"weekly_plan" json:"weeklyPlan" firestore:"weeklyPlan"`
	ActiveMeals          []string                   `bson:"active_meals" json:"activeMeals" firestore:"activeMeals"`
	MealTimes            map[string]string          `bson:"meal_times" json:"mealTimes" firestore:"mealTimes"`
	ConsumedItems        map[string]ConsumedItemLog `bson:"consumed_items" json:"consumedItems" firestore:"consumedItems"`
	Fasting              FastingState               `bson:"fasting" json:"fasting" firestore:"fasting"`
	WeightHistory        []WeightRecord             `bson:"weight_history" json:"weightHistory" firestore:"weightHistory"`
	IsOnboardingComplete bool                       `bson:"is_onboarding_complete" json:"isOnboardingComplete" firestore:"isOnboardingComplete"`
	TrainingIntensity    TrainingIntensity          `bson:"training_intensity" json:"trainingIntensity" firestore:"trainingIntensity"`
	CalculatedTargets    MacroTargets               `bson:"calculated_targets" json:"calculatedTargets" firestore:"calculatedTargets"`
	WaterIntake          float64                    `bson:"water_intake" json:"waterIntake" firestore:"waterIntake"` // ml
	CustomFoods          []FoodItem                 `bson:"custom_foods" json:"customFoods" firestore:"customFoods"`
	LastSync             *time.Time                 `bson:"last_sync,omitempty" json:"lastSync,omitempty" firestore:"lastSync,omitempty"`
	UpdatedAt            time.Time                  `bson:"updated_at" json:"updatedAt" firestore:"updatedAt"`
}

// NewAppState returns the state a new user starts with
func NewAppState(userID string, now time.Time) *AppState {
	s := &AppState{
		UserID:      userID,
		Profile:     DefaultProfile(now),
		WeeklyPlan:  WeeklyPlan{},
		ActiveMeals: []string{"Desayuno", "Almuerzo", "Merienda", "Cena"},
		MealTimes: map[string]string{
			"Desayuno": "08:00",
			"Almuerzo": "12:00",
			"Merienda": "16:00",
			"Cena":     "20:00",
		},
		ConsumedItems:     map[string]ConsumedItemLog{},
		Fasting:           FastingState{TargetHours: DefaultFastingTargetHours},
		WeightHistory:     []WeightRecord{},
		TrainingIntensity: IntensityModerate,
		CustomFoods:       []FoodItem{},
		UpdatedAt:         now,
	}
	s.RefreshTargets()
	return s
}

// Normalize fills nil collections left by older or partial documents and
// migrates legacy custom foods. Call after loading from storage.
func (s *AppState) Normalize() {
	if s.WeeklyPlan == nil {
		s.WeeklyPlan = WeeklyPlan{}
	}
	if s.MealTimes == nil {
		s.MealTimes = map[string]string{}
	}
	if s.ConsumedItems == nil {
		s.ConsumedItems = map[string]ConsumedItemLog{}
	}
	if s.WeightHistory == nil {
		s.WeightHistory = []WeightRecord{}
	}
	if s.CustomFoods == nil {
		s.CustomFoods = []FoodItem{}
	}
	if s.Fasting.TargetHours <= 0 {
		s.Fasting.TargetHours = DefaultFastingTargetHours
	}
	if !s.TrainingIntensity.Valid() {
		s.TrainingIntensity = IntensityModerate
	}
	s.MigrateCustomFoods()
	s.RefreshTargets()
}

// MigrateCustomFoods copies the "(Group)" portion encoding into the explicit
// Group field. Returns the number of foods updated.
func (s *AppState) MigrateCustomFoods() int {
	n := 0
	for i := range s.CustomFoods {
		if s.CustomFoods[i].Group != "" {
			continue
		}
		if g := s.CustomFoods[i].LegacyGroup(); g != "" {
			s.CustomFoods[i].Group = g
			n++
		}
	}
	return n
}

// RefreshTargets recomputes the targets and replaces the cached value only
// when it changed. Returns true when the cache was replaced.
func (s *AppState) RefreshTargets() bool {
	targets := ComputeTargets(s.Profile, s.TrainingIntensity)
	if targets == s.CalculatedTargets {
		return false
	}
	s.CalculatedTargets = targets
	return true
}

// Catalog returns the food catalog including the user's custom foods
func (s *AppState) Catalog() *Catalog {
	return NewCatalog(s.CustomFoods)
}

// DaySummary aggregates one day of the plan against the consumption log
func (s *AppState) DaySummary(dayIndex int) DaySummary {
	return AggregateDay(dayIndex, s.WeeklyPlan.Day(dayIndex), s.ConsumedItems, s.Catalog(), s.Profile.IsKeto())
}

// UpdateProfile merges a patch, validating the result before applying it
func (s *AppState) UpdateProfile(patch ProfilePatch) error {
	next := patch.Apply(s.Profile)
	if err := next.Validate(); err != nil {
		return err
	}
	s.Profile = next
	s.RefreshTargets()
	return nil
}

// SetTrainingIntensity changes today's intensity
func (s *AppState) SetTrainingIntensity(intensity TrainingIntensity) error {
	if !intensity.Valid() {
		return fmt.Errorf("unknown training intensity %q", intensity)
	}
	s.TrainingIntensity = intensity
	s.RefreshTargets()
	return nil
}

// LogConsumption records an entry as eaten with a portion factor
func (s *AppState) LogConsumption(dayIndex int, meal, group, itemID string, factor float64, alternative string) error {
	if !ValidDay(dayIndex) {
		return ErrInvalidDay
	}
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return ErrInvalidFactor
	}
	s.ConsumedItems[ConsumptionKey(dayIndex, meal, group, itemID)] = ConsumedItemLog{
		Consumed:    true,
		Factor:      factor,
		Alternative: alternative,
	}
	return nil
}

// LogWeight updates the profile weight and appends a BMI record
func (s *AppState) LogWeight(weight float64, now time.Time) (WeightRecord, error) {
	if weight <= 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return WeightRecord{}, fmt.Errorf("%w: weight must be positive", ErrInvalidProfile)
	}
	heightM := s.Profile.Height / 100
	record := WeightRecord{
		Date:   now,
		Weight: weight,
		IMC:    fmt.Sprintf("%.1f", roundTo1(weight/(heightM*heightM))),
	}
	s.Profile.Weight = weight
	s.WeightHistory = append(s.WeightHistory, record)
	s.RefreshTargets()
	return record, nil
}

// AddMeal appends a meal slot
func (s *AppState) AddMeal(name, mealTime string) error {
	if name == "" {
		return fmt.Errorf("meal name is required")
	}
	if containsString(s.ActiveMeals, name) {
		return ErrDuplicateMeal
	}
	if mealTime == "" {
		mealTime = DefaultMealTime
	}
	s.ActiveMeals = append(s.ActiveMeals, name)
	s.MealTimes[name] = mealTime
	return nil
}

// RemoveMeal drops a meal slot; its plan entries are kept
func (s *AppState) RemoveMeal(name string) error {
	idx := indexOf(s.ActiveMeals, name)
	if idx < 0 {
		return ErrUnknownMeal
	}
	s.ActiveMeals = append(s.ActiveMeals[:idx:idx], s.ActiveMeals[idx+1:]...)
	delete(s.MealTimes, name)
	return nil
}

// RenameMeal renames a meal slot and carries its time and plan entries
func (s *AppState) RenameMeal(oldName, newName string) error {
	idx := indexOf(s.ActiveMeals, oldName)
	if idx < 0 {
		return ErrUnknownMeal
	}
	if newName == "" {
		return fmt.Errorf("meal name is required")
	}
	if oldName == newName {
		return nil
	}
	if containsString(s.ActiveMeals, newName) {
		return ErrDuplicateMeal
	}
	s.ActiveMeals[idx] = newName
	t := s.MealTimes[oldName]
	delete(s.MealTimes, oldName)
	s.MealTimes[newName] = t
	s.WeeklyPlan = s.WeeklyPlan.RenameMeal(oldName, newName)
	return nil
}

// ReorderMeal moves the meal at oldIndex to newIndex
func (s *AppState) ReorderMeal(oldIndex, newIndex int) error {
	n := len(s.ActiveMeals)
	if oldIndex < 0 || oldIndex >= n || newIndex < 0 || newIndex >= n {
		return fmt.Errorf("meal index out of range")
	}
	meal := s.ActiveMeals[oldIndex]
	rest := append(append([]string{}, s.ActiveMeals[:oldIndex]...), s.ActiveMeals[oldIndex+1:]...)
	out := append([]string{}, rest[:newIndex]...)
	out = append(out, meal)
	s.ActiveMeals = append(out, rest[newIndex:]...)
	return nil
}

// UpdateMealTime sets the time of an active meal
func (s *AppState) UpdateMealTime(name, mealTime string) error {
	if !containsString(s.ActiveMeals, name) {
		return ErrUnknownMeal
	}
	s.MealTimes[name] = mealTime
	return nil
}

// AddWater adds ml to today's intake; negative amounts undo, never below zero
func (s *AppState) AddWater(ml float64) error {
	if math.IsNaN(ml) || math.IsInf(ml, 0) {
		return fmt.Errorf("invalid water amount")
	}
	s.WaterIntake = math.Max(0, s.WaterIntake+ml)
	return nil
}

// AddCustomFood appends a food to the user's catalog
func (s *AppState) AddCustomFood(food FoodItem) error {
	if food.Group == "" {
		food.Group = food.LegacyGroup()
	}
	if !IsKnownGroup(food.Group) {
		return ErrUnknownGroup
	}
	food.IsCustom = true
	s.CustomFoods = append(s.CustomFoods, food)
	return nil
}

// Clone deep-copies the state so snapshots can leave the owner's lock
func (s *AppState) Clone() *AppState {
	out := *s
	out.Profile = s.Profile.clone()
	out.WeeklyPlan = s.WeeklyPlan.Clone()
	out.ActiveMeals = append([]string(nil), s.ActiveMeals...)
	out.MealTimes = make(map[string]string, len(s.MealTimes))
	for k, v := range s.MealTimes {
		out.MealTimes[k] = v
	}
	out.ConsumedItems = make(map[string]ConsumedItemLog, len(s.ConsumedItems))
	for k, v := range s.ConsumedItems {
		out.ConsumedItems[k] = v
	}
	out.Fasting = s.Fasting.clone()
	out.WeightHistory = append([]WeightRecord(nil), s.WeightHistory...)
	out.CustomFoods = append([]FoodItem(nil), s.CustomFoods...)
	if s.LastSync != nil {
		ls := *s.LastSync
		out.LastSync = &ls
	}
	return &out
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// StateRepository persists the per-user document (cloud sync)
type StateRepository interface {
	// Save upserts the whole document
	Save(ctx context.Context, userID string, state *AppState) error

	// Load returns the stored document, nil when the user has none
	Load(ctx context.Context, userID string) (*AppState, error)
}

// StateCache keeps recent snapshots close to the API
type StateCache interface {
	SetState(ctx context.Context, userID string, state *AppState, ttl time.Duration) error

	// GetState returns nil on a cache miss
	GetState(ctx context.Context, userID string) (*AppState, error)

	InvalidateState(ctx context.Context, userID string) error
}
