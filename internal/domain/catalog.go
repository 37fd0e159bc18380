package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Food groups of the equivalency table
const (
	GroupHarinas   = "Harinas"
	GroupProteinas = "Proteinas"
	GroupGrasas    = "Grasas"
	GroupVegetales = "Vegetales"
)

// FoodGroups lists the groups in display order
var FoodGroups = []string{GroupHarinas, GroupProteinas, GroupGrasas, GroupVegetales}

const customFoodIDPrefix = "custom_"

// FoodMacros are grams per portion
type FoodMacros struct {
	P     float64 `bson:"p" json:"p" firestore:"p"`
	C     float64 `bson:"c" json:"c" firestore:"c"`
	F     float64 `bson:"f" json:"f" firestore:"f"`
	Fiber float64 `bson:"fiber" json:"fiber" firestore:"fiber"`
}

// FoodItem is one entry of the equivalency table, built-in or scanned
type FoodItem struct {
	ID         string     `bson:"id" json:"id" firestore:"id"`
	Name       string     `bson:"name" json:"name" firestore:"name"`
	Portion    string     `bson:"portion" json:"portion" firestore:"portion"`
	Calories   float64    `bson:"calories" json:"calories" firestore:"calories"`
	BaseAmount float64    `bson:"base_amount" json:"baseAmount" firestore:"baseAmount"`
	Unit       string     `bson:"unit" json:"unit" firestore:"unit"`
	Macros     FoodMacros `bson:"macros" json:"macros" firestore:"macros"`
	IsCustom   bool       `bson:"is_custom,omitempty" json:"isCustom,omitempty" firestore:"isCustom,omitempty"`
	// Group is authoritative when set. Older custom foods only carry it inside Portion as "(Group)".
	Group string `bson:"group,omitempty" json:"group,omitempty" firestore:"group,omitempty"`
}

// BelongsTo reports whether the item is listed under group
func (f *FoodItem) BelongsTo(group string) bool {
	if f.Group != "" {
		return f.Group == group
	}
	return strings.Contains(f.Portion, "("+group+")")
}

// LegacyGroup extracts the group from the "(Group)" portion encoding
func (f *FoodItem) LegacyGroup() string {
	for _, g := range FoodGroups {
		if strings.Contains(f.Portion, "("+g+")") {
			return g
		}
	}
	return ""
}

// IsKnownGroup checks a group name against the equivalency table
func IsKnownGroup(group string) bool {
	return containsString(FoodGroups, group)
}

// CustomFoodID builds the id of a scanned food from its creation time
func CustomFoodID(createdAt time.Time) string {
	return customFoodIDPrefix + strconv.FormatInt(createdAt.UnixMilli(), 10)
}

// CustomPortion builds the portion label persisted for scanned foods
func CustomPortion(baseAmount float64, unit, group string) string {
	return fmt.Sprintf("%s %s (%s)", strconv.FormatFloat(baseAmount, 'f', -1, 64), unit, group)
}

// builtinFoods is the static equivalency table
var builtinFoods = map[string][]FoodItem{
	GroupHarinas: {
		{ID: "h1", Name: "Gallo Pinto", Portion: "1/2 taza", Calories: 140, BaseAmount: 0.5, Unit: "taza", Macros: FoodMacros{P: 5, C: 25, F: 2, Fiber: 4}},
		{ID: "h2", Name: "Plátano Maduro", Portion: "1/3 taza", Calories: 110, BaseAmount: 0.33, Unit: "taza", Macros: FoodMacros{P: 1, C: 28, F: 0, Fiber: 2}},
		{ID: "h3", Name: "Tortilla de Maíz", Portion: "1 unidad", Calories: 70, BaseAmount: 1, Unit: "unidad", Macros: FoodMacros{P: 2, C: 15, F: 1, Fiber: 2}},
		{ID: "h4", Name: "Pejibaye", Portion: "1 unidad", Calories: 65, BaseAmount: 1, Unit: "unidad", Macros: FoodMacros{P: 1, C: 11, F: 3, Fiber: 3}},
		{ID: "h5", Name: "Yuca", Portion: "1/2 taza", Calories: 120, BaseAmount: 0.5, Unit: "taza", Macros: FoodMacros{P: 1, C: 29, F: 0, Fiber: 2}},
	},
	GroupProteinas: {
		{ID: "p1", Name: "Huevo entero", Portion: "1 unidad", Calories: 75, BaseAmount: 1, Unit: "unidad", Macros: FoodMacros{P: 6, C: 0, F: 5, Fiber: 0}},
		{ID: "p2", Name: "Queso Turrialba", Portion: "30g", Calories: 80, BaseAmount: 30, Unit: "g", Macros: FoodMacros{P: 7, C: 1, F: 6, Fiber: 0}},
		{ID: "p3", Name: "Pechuga de Pollo", Portion: "90g", Calories: 120, BaseAmount: 90, Unit: "g", Macros: FoodMacros{P: 26, C: 0, F: 2, Fiber: 0}},
		{ID: "p4", Name: "Atún en agua", Portion: "1/2 taza", Calories: 100, BaseAmount: 0.5, Unit: "taza", Macros: FoodMacros{P: 22, C: 0, F: 1, Fiber: 0}},
	},
	GroupGrasas: {
		{ID: "g1", Name: "Aguacate Hass", Portion: "1/4 unidad", Calories: 80, BaseAmount: 0.25, Unit: "unidad", Macros: FoodMacros{P: 1, C: 4, F: 7, Fiber: 3}},
		{ID: "g2", Name: "Natilla", Portion: "1 cda", Calories: 60, BaseAmount: 1, Unit: "cda", Macros: FoodMacros{P: 1, C: 1, F: 6, Fiber: 0}},
		{ID: "g3", Name: "Aceite de Coco", Portion: "1 cdta", Calories: 45, BaseAmount: 1, Unit: "cdta", Macros: FoodMacros{P: 0, C: 0, F: 5, Fiber: 0}},
	},
	GroupVegetales: {
		{ID: "v1", Name: "Ensalada Verde", Portion: "1 taza", Calories: 20, BaseAmount: 1, Unit: "taza", Macros: FoodMacros{P: 1, C: 4, F: 0, Fiber: 2}},
		{ID: "v2", Name: "Chayote", Portion: "1/2 taza", Calories: 30, BaseAmount: 0.5, Unit: "taza", Macros: FoodMacros{P: 1, C: 7, F: 0, Fiber: 3}},
	},
}

// Catalog merges the built-in table with a user's custom foods
type Catalog struct {
	groups map[string][]FoodItem
}

// NewCatalog builds a catalog where custom foods are listed first in their group
func NewCatalog(customFoods []FoodItem) *Catalog {
	groups := make(map[string][]FoodItem, len(FoodGroups))
	for _, g := range FoodGroups {
		var items []FoodItem
		for _, food := range customFoods {
			if food.BelongsTo(g) && !hasFood(items, food.ID) {
				items = append(items, food)
			}
		}
		items = append(items, builtinFoods[g]...)
		groups[g] = items
	}
	return &Catalog{groups: groups}
}

// Items returns the foods listed under group
func (c *Catalog) Items(group string) []FoodItem {
	return c.groups[group]
}

// Find looks up an item by id within its group
func (c *Catalog) Find(group, itemID string) (FoodItem, bool) {
	for _, item := range c.groups[group] {
		if item.ID == itemID {
			return item, true
		}
	}
	return FoodItem{}, false
}

// Groups returns a copy of the whole catalog keyed by group
func (c *Catalog) Groups() map[string][]FoodItem {
	out := make(map[string][]FoodItem, len(c.groups))
	for g, items := range c.groups {
		out[g] = append([]FoodItem(nil), items...)
	}
	return out
}

func hasFood(items []FoodItem, id string) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}
