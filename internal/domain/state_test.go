package domain

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

var testNow = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

func TestNewAppState(t *testing.T) {
	s := NewAppState("uid-1", testNow)

	if s.UserID != "uid-1" {
		t.Errorf("UserID = %q", s.UserID)
	}
	if !reflect.DeepEqual(s.ActiveMeals, []string{"Desayuno", "Almuerzo", "Merienda", "Cena"}) {
		t.Errorf("ActiveMeals = %v", s.ActiveMeals)
	}
	if s.CalculatedTargets != ComputeTargets(s.Profile, IntensityModerate) {
		t.Errorf("CalculatedTargets = %+v not computed", s.CalculatedTargets)
	}
	if s.Fasting.TargetHours != DefaultFastingTargetHours {
		t.Errorf("TargetHours = %v", s.Fasting.TargetHours)
	}
}

func TestNormalizeFillsLegacyDocuments(t *testing.T) {
	s := &AppState{
		UserID:  "uid-legacy",
		Profile: testProfile(),
		CustomFoods: []FoodItem{
			{ID: "custom_1", Name: "Yogurt", Portion: "170 g (Proteinas)"},
		},
	}
	s.Normalize()

	if s.WeeklyPlan == nil || s.ConsumedItems == nil || s.MealTimes == nil || s.WeightHistory == nil {
		t.Errorf("nil collections left: %+v", s)
	}
	if s.TrainingIntensity != IntensityModerate {
		t.Errorf("TrainingIntensity = %q", s.TrainingIntensity)
	}
	if s.CustomFoods[0].Group != GroupProteinas {
		t.Errorf("custom food group = %q, want migrated", s.CustomFoods[0].Group)
	}
	if s.CalculatedTargets.Calories == 0 {
		t.Error("targets not refreshed")
	}
	if n := s.MigrateCustomFoods(); n != 0 {
		t.Errorf("second migration updated %d foods", n)
	}
}

func TestUpdateProfileKeepsStateOnInvalidPatch(t *testing.T) {
	s := NewAppState("uid-1", testNow)
	before := s.CalculatedTargets

	bad := -3.0
	if err := s.UpdateProfile(ProfilePatch{Weight: &bad}); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("UpdateProfile() = %v, want ErrInvalidProfile", err)
	}
	if s.Profile.Weight != 75 || s.CalculatedTargets != before {
		t.Error("invalid patch changed the state")
	}

	heavier := 90.0
	if err := s.UpdateProfile(ProfilePatch{Weight: &heavier}); err != nil {
		t.Fatalf("UpdateProfile() = %v", err)
	}
	if s.CalculatedTargets.Protein != 162 {
		t.Errorf("Protein = %d, want 162", s.CalculatedTargets.Protein)
	}
}

func TestLogWeight(t *testing.T) {
	s := NewAppState("uid-1", testNow)

	record, err := s.LogWeight(72.3, testNow)
	if err != nil {
		t.Fatalf("LogWeight() = %v", err)
	}
	// 72.3 / 1.7^2 = 25.017...
	if record.IMC != "25.0" {
		t.Errorf("IMC = %q, want 25.0", record.IMC)
	}
	if s.Profile.Weight != 72.3 || len(s.WeightHistory) != 1 {
		t.Errorf("state after LogWeight = %+v", s.Profile)
	}
	if _, err := s.LogWeight(0, testNow); err == nil {
		t.Error("LogWeight(0) succeeded")
	}
}

func TestLogConsumption(t *testing.T) {
	s := NewAppState("uid-1", testNow)
	s.WeeklyPlan = s.WeeklyPlan.SetQuantity(0, "Desayuno", GroupProteinas, "p1", 2)

	if err := s.LogConsumption(0, "Desayuno", GroupProteinas, "p1", FactorOneAndHalf, ""); err != nil {
		t.Fatalf("LogConsumption() = %v", err)
	}
	summary := s.DaySummary(0)
	if summary.Real.Calories != 225 {
		t.Errorf("Real.Calories = %v, want 225", summary.Real.Calories)
	}

	if err := s.LogConsumption(9, "Desayuno", GroupProteinas, "p1", 1, ""); !errors.Is(err, ErrInvalidDay) {
		t.Errorf("LogConsumption(day 9) = %v", err)
	}
	if err := s.LogConsumption(0, "Desayuno", GroupProteinas, "p1", 0, ""); !errors.Is(err, ErrInvalidFactor) {
		t.Errorf("LogConsumption(factor 0) = %v", err)
	}
}

func TestMealOperations(t *testing.T) {
	s := NewAppState("uid-1", testNow)
	s.WeeklyPlan = s.WeeklyPlan.SetQuantity(1, "Merienda", GroupGrasas, "g1", 1)

	if err := s.AddMeal("Pre-entreno", ""); err != nil {
		t.Fatalf("AddMeal() = %v", err)
	}
	if s.MealTimes["Pre-entreno"] != DefaultMealTime {
		t.Errorf("default time = %q", s.MealTimes["Pre-entreno"])
	}
	if err := s.AddMeal("Cena", "21:00"); !errors.Is(err, ErrDuplicateMeal) {
		t.Errorf("AddMeal(duplicate) = %v", err)
	}

	if err := s.RenameMeal("Merienda", "Snack"); err != nil {
		t.Fatalf("RenameMeal() = %v", err)
	}
	if s.ActiveMeals[2] != "Snack" || s.MealTimes["Snack"] != "16:00" {
		t.Errorf("rename lost position or time: %v %v", s.ActiveMeals, s.MealTimes)
	}
	if s.WeeklyPlan.Quantity(1, "Snack", GroupGrasas, "g1") != 1 {
		t.Error("rename did not carry plan entries")
	}

	if err := s.ReorderMeal(4, 0); err != nil {
		t.Fatalf("ReorderMeal() = %v", err)
	}
	want := []string{"Pre-entreno", "Desayuno", "Almuerzo", "Snack", "Cena"}
	if !reflect.DeepEqual(s.ActiveMeals, want) {
		t.Errorf("ActiveMeals = %v, want %v", s.ActiveMeals, want)
	}
	if err := s.ReorderMeal(0, 5); err == nil {
		t.Error("ReorderMeal() out of range succeeded")
	}

	if err := s.RemoveMeal("Nope"); !errors.Is(err, ErrUnknownMeal) {
		t.Errorf("RemoveMeal(unknown) = %v", err)
	}
	if err := s.RemoveMeal("Snack"); err != nil {
		t.Fatalf("RemoveMeal() = %v", err)
	}
	if _, ok := s.MealTimes["Snack"]; ok || len(s.ActiveMeals) != 4 {
		t.Errorf("RemoveMeal left %v %v", s.ActiveMeals, s.MealTimes)
	}
}

func TestRenameOntoRemovedMealKeepsEntries(t *testing.T) {
	s := NewAppState("uid-1", testNow)
	s.WeeklyPlan = s.WeeklyPlan.
		SetQuantity(3, "Cena", GroupProteinas, "p3", 2).
		SetQuantity(3, "Merienda", GroupGrasas, "g1", 1)

	if err := s.RemoveMeal("Cena"); err != nil {
		t.Fatalf("RemoveMeal() = %v", err)
	}
	if err := s.RenameMeal("Merienda", "Cena"); err != nil {
		t.Fatalf("RenameMeal() = %v", err)
	}

	if got := s.WeeklyPlan.Quantity(3, "Cena", GroupProteinas, "p3"); got != 2 {
		t.Errorf("kept entry p3 = %v, want 2", got)
	}
	if got := s.WeeklyPlan.Quantity(3, "Cena", GroupGrasas, "g1"); got != 1 {
		t.Errorf("renamed entry g1 = %v, want 1", got)
	}
	if _, ok := s.WeeklyPlan.Day(3)["Merienda"]; ok {
		t.Error("old meal name still in the plan")
	}
}

func TestAddWaterNeverNegative(t *testing.T) {
	s := NewAppState("uid-1", testNow)
	_ = s.AddWater(500)
	_ = s.AddWater(-250)
	if s.WaterIntake != 250 {
		t.Errorf("WaterIntake = %v, want 250", s.WaterIntake)
	}
	_ = s.AddWater(-1000)
	if s.WaterIntake != 0 {
		t.Errorf("WaterIntake = %v, want 0", s.WaterIntake)
	}
}

func TestAddCustomFood(t *testing.T) {
	s := NewAppState("uid-1", testNow)

	err := s.AddCustomFood(FoodItem{ID: "custom_1", Name: "Yogurt", Portion: CustomPortion(170, "g", GroupProteinas)})
	if err != nil {
		t.Fatalf("AddCustomFood() = %v", err)
	}
	if got := s.CustomFoods[0]; got.Group != GroupProteinas || !got.IsCustom {
		t.Errorf("custom food = %+v", got)
	}
	if _, ok := s.Catalog().Find(GroupProteinas, "custom_1"); !ok {
		t.Error("custom food missing from catalog")
	}

	if err := s.AddCustomFood(FoodItem{ID: "custom_2", Portion: "1 taza"}); !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("AddCustomFood(no group) = %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := NewAppState("uid-1", testNow)
	s.WeeklyPlan = s.WeeklyPlan.SetQuantity(0, "Desayuno", GroupProteinas, "p1", 2)
	_ = s.Fasting.Start(testNow)

	c := s.Clone()
	c.WeeklyPlan["0"]["Desayuno"][GroupProteinas]["p1"] = 9
	c.ActiveMeals[0] = "Otro"
	c.MealTimes["Cena"] = "23:00"
	*c.Fasting.StartTime = testNow.Add(time.Hour)

	if s.WeeklyPlan.Quantity(0, "Desayuno", GroupProteinas, "p1") != 2 {
		t.Error("clone shares the plan")
	}
	if s.ActiveMeals[0] != "Desayuno" || s.MealTimes["Cena"] != "20:00" {
		t.Error("clone shares meals")
	}
	if !s.Fasting.StartTime.Equal(testNow) {
		t.Error("clone shares the fasting start time")
	}
}
