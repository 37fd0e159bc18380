package domain

import (
	"testing"
	"time"
)

func TestFoodItemBelongsTo(t *testing.T) {
	tests := []struct {
		name  string
		item  FoodItem
		group string
		want  bool
	}{
		{"explicit group", FoodItem{Group: GroupProteinas, Portion: "100g"}, GroupProteinas, true},
		{"explicit group wins over portion", FoodItem{Group: GroupGrasas, Portion: "100g (Proteinas)"}, GroupProteinas, false},
		{"legacy portion encoding", FoodItem{Portion: "100g (Proteinas)"}, GroupProteinas, true},
		{"legacy other group", FoodItem{Portion: "100g (Proteinas)"}, GroupHarinas, false},
		{"no group at all", FoodItem{Portion: "1 taza"}, GroupVegetales, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.BelongsTo(tt.group); got != tt.want {
				t.Errorf("BelongsTo(%q) = %v, want %v", tt.group, got, tt.want)
			}
		})
	}
}

func TestNewCatalogListsCustomFoodsFirst(t *testing.T) {
	custom := []FoodItem{
		{ID: "custom_1", Name: "Yogurt Griego", Portion: "170 g (Proteinas)", Calories: 100},
		{ID: "custom_2", Name: "Barra", Group: GroupHarinas, Portion: "40 g (Harinas)"},
		{ID: "custom_1", Name: "Duplicado", Portion: "170 g (Proteinas)"},
	}
	c := NewCatalog(custom)

	proteins := c.Items(GroupProteinas)
	if len(proteins) != len(builtinFoods[GroupProteinas])+1 {
		t.Fatalf("len(Proteinas) = %d", len(proteins))
	}
	if proteins[0].ID != "custom_1" || proteins[0].Name != "Yogurt Griego" {
		t.Errorf("first protein = %+v, want the custom food", proteins[0])
	}

	if item, ok := c.Find(GroupHarinas, "custom_2"); !ok || item.Name != "Barra" {
		t.Errorf("Find(custom_2) = %+v, %v", item, ok)
	}
	if _, ok := c.Find(GroupGrasas, "p1"); ok {
		t.Error("Find() matched an item from another group")
	}
	if item, ok := c.Find(GroupProteinas, "p1"); !ok || item.Calories != 75 {
		t.Errorf("Find(p1) = %+v, %v", item, ok)
	}
}

func TestCustomFoodHelpers(t *testing.T) {
	created := time.UnixMilli(1717400000123)
	if got := CustomFoodID(created); got != "custom_1717400000123" {
		t.Errorf("CustomFoodID() = %q", got)
	}
	if got := CustomPortion(100, "g", GroupProteinas); got != "100 g (Proteinas)" {
		t.Errorf("CustomPortion() = %q", got)
	}
	if got := CustomPortion(0.5, "taza", GroupHarinas); got != "0.5 taza (Harinas)" {
		t.Errorf("CustomPortion() = %q", got)
	}
	item := FoodItem{Portion: CustomPortion(30, "g", GroupGrasas)}
	if item.LegacyGroup() != GroupGrasas {
		t.Errorf("LegacyGroup() = %q", item.LegacyGroup())
	}
}
