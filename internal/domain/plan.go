package domain

import (
	"fmt"
	"strconv"
	"time"
)

// DaysPerWeek is the number of plan days, Monday=0 ... Sunday=6
const DaysPerWeek = 7

// GroupPlan maps item id to quantity in portions
type GroupPlan map[string]float64

// MealPlan maps food group to its items
type MealPlan map[string]GroupPlan

// DayPlan maps meal name to its groups
type DayPlan map[string]MealPlan

// WeeklyPlan maps the day key ("0".."6") to the day's plan.
// A quantity <= 0 is never stored: absence of the key means "no item".
type WeeklyPlan map[string]DayPlan

// PlanCommand sets (qty > 0) or clears (qty <= 0) one plan entry
type PlanCommand struct {
	DayIndex int     `json:"dayIndex"`
	Meal     string  `json:"meal"`
	Group    string  `json:"group"`
	ItemID   string  `json:"itemId"`
	Qty      float64 `json:"qty"`
}

// Validate checks that the command addresses a single plan entry
func (c PlanCommand) Validate() error {
	if !ValidDay(c.DayIndex) {
		return fmt.Errorf("%w: dayIndex %d", ErrInvalidDay, c.DayIndex)
	}
	switch {
	case c.Meal == "":
		return fmt.Errorf("%w: missing meal", ErrInvalidCommand)
	case c.Group == "":
		return fmt.Errorf("%w: missing group", ErrInvalidCommand)
	case c.ItemID == "":
		return fmt.Errorf("%w: missing itemId", ErrInvalidCommand)
	}
	return nil
}

// DayKey converts a day index to its map key
func DayKey(dayIndex int) string {
	return strconv.Itoa(dayIndex)
}

// ValidDay reports whether dayIndex is within the week
func ValidDay(dayIndex int) bool {
	return dayIndex >= 0 && dayIndex < DaysPerWeek
}

// DayIndexOf maps a date to its plan day, Monday=0
func DayIndexOf(t time.Time) int {
	return (int(t.Weekday()) + 6) % DaysPerWeek
}

// Day returns the plan for a day, nil if nothing is planned
func (w WeeklyPlan) Day(dayIndex int) DayPlan {
	return w[DayKey(dayIndex)]
}

// Quantity returns the planned portions for an entry, 0 when absent
func (w WeeklyPlan) Quantity(dayIndex int, meal, group, itemID string) float64 {
	return w[DayKey(dayIndex)][meal][group][itemID]
}

// SetQuantity returns a new plan with one entry set or cleared
func (w WeeklyPlan) SetQuantity(dayIndex int, meal, group, itemID string, qty float64) WeeklyPlan {
	return ApplyCommands(w, []PlanCommand{{DayIndex: dayIndex, Meal: meal, Group: group, ItemID: itemID, Qty: qty}})
}

// ApplyCommands folds the commands over a copy of plan in input order, so later
// commands for the same entry win. The input plan is not modified.
// Commands with a day outside the week are ignored.
func ApplyCommands(plan WeeklyPlan, cmds []PlanCommand) WeeklyPlan {
	out := plan.Clone()
	for _, cmd := range cmds {
		if !ValidDay(cmd.DayIndex) {
			continue
		}
		dayKey := DayKey(cmd.DayIndex)
		day := out[dayKey]
		if day == nil {
			day = DayPlan{}
			out[dayKey] = day
		}
		meal := day[cmd.Meal]
		if meal == nil {
			meal = MealPlan{}
			day[cmd.Meal] = meal
		}
		group := meal[cmd.Group]
		if group == nil {
			group = GroupPlan{}
			meal[cmd.Group] = group
		}
		if cmd.Qty > 0 {
			group[cmd.ItemID] = cmd.Qty
		} else {
			delete(group, cmd.ItemID)
		}
	}
	return out
}

// Clone deep-copies the plan; the result never shares maps with w
func (w WeeklyPlan) Clone() WeeklyPlan {
	out := make(WeeklyPlan, len(w))
	for dayKey, day := range w {
		out[dayKey] = day.Clone()
	}
	return out
}

// Clone deep-copies a day
func (d DayPlan) Clone() DayPlan {
	if d == nil {
		return nil
	}
	out := make(DayPlan, len(d))
	for mealName, meal := range d {
		m := make(MealPlan, len(meal))
		for groupName, group := range meal {
			g := make(GroupPlan, len(group))
			for itemID, qty := range group {
				g[itemID] = qty
			}
			m[groupName] = g
		}
		out[mealName] = m
	}
	return out
}

// EntryCount counts the stored (qty > 0) entries of the whole week
func (w WeeklyPlan) EntryCount() int {
	n := 0
	for _, day := range w {
		for _, meal := range day {
			for _, group := range meal {
				n += len(group)
			}
		}
	}
	return n
}

// RenameMeal moves every day's entries from one meal name to another.
// Entries already stored under newName (kept from a removed meal) are merged
// item by item; the moved entries win on conflicts.
func (w WeeklyPlan) RenameMeal(oldName, newName string) WeeklyPlan {
	out := w.Clone()
	for _, day := range out {
		meal, ok := day[oldName]
		if !ok {
			continue
		}
		delete(day, oldName)
		target, exists := day[newName]
		if !exists {
			day[newName] = meal
			continue
		}
		for groupName, group := range meal {
			if target[groupName] == nil {
				target[groupName] = GroupPlan{}
			}
			for itemID, qty := range group {
				target[groupName][itemID] = qty
			}
		}
	}
	return out
}
