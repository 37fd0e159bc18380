package domain

import "fmt"

// Common consumption factors offered by the diary
const (
	FactorHalf       = 0.5
	FactorFull       = 1.0
	FactorOneAndHalf = 1.5
)

// ConsumedItemLog records how much of a planned entry was eaten
type ConsumedItemLog struct {
	Consumed    bool    `bson:"consumed" json:"consumed" firestore:"consumed"`
	Factor      float64 `bson:"factor" json:"factor" firestore:"factor"`
	Alternative string  `bson:"alternative,omitempty" json:"alternative,omitempty" firestore:"alternative,omitempty"`
}

// ConsumptionKey is the composite key "{day}-{meal}-{group}-{itemId}"
func ConsumptionKey(dayIndex int, meal, group, itemID string) string {
	return fmt.Sprintf("%d-%s-%s-%s", dayIndex, meal, group, itemID)
}

// NutrientTotals sums calories and macros
type NutrientTotals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

func (t *NutrientTotals) add(item FoodItem, multiplier float64, netCarbs bool) {
	carbs := item.Macros.C
	if netCarbs {
		carbs -= item.Macros.Fiber
	}
	t.Calories += item.Calories * multiplier
	t.Protein += item.Macros.P * multiplier
	t.Carbs += carbs * multiplier
	t.Fat += item.Macros.F * multiplier
}

// DaySummary compares what was planned for a day with what was logged
type DaySummary struct {
	DayIndex       int            `json:"day_index"`
	Projected      NutrientTotals `json:"projected"`
	Real           NutrientTotals `json:"real"`
	CompletedCount int            `json:"completed_count"`
	TotalCount     int            `json:"total_count"`
}

// Progress is the completed share of planned entries, 0-100
func (s DaySummary) Progress() float64 {
	if s.TotalCount == 0 {
		return 0
	}
	return float64(s.CompletedCount) / float64(s.TotalCount) * 100
}

// AggregateDay sums projected and real nutrients of a day's plan.
// Entries whose item is not in the catalog are skipped. With netCarbs,
// fiber is subtracted from carbs in both totals.
func AggregateDay(dayIndex int, day DayPlan, logs map[string]ConsumedItemLog, catalog *Catalog, netCarbs bool) DaySummary {
	summary := DaySummary{DayIndex: dayIndex}
	for mealName, meal := range day {
		for groupName, group := range meal {
			for itemID, qty := range group {
				item, ok := catalog.Find(groupName, itemID)
				if !ok {
					continue
				}
				summary.TotalCount++
				summary.Projected.add(item, qty, netCarbs)

				log, ok := logs[ConsumptionKey(dayIndex, mealName, groupName, itemID)]
				if ok && log.Consumed {
					summary.Real.add(item, qty*log.Factor, netCarbs)
					summary.CompletedCount++
				}
			}
		}
	}
	return summary
}
