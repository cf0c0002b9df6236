package services_test

import (
	"context"
	"testing"

	"stockhold/internal/repos"
	"stockhold/internal/services"
)

func TestInventoryService_CheckAvailability(t *testing.T) {
	f := newFixture(t, map[string]int{"plenty": 6, "few": 2, "none": 0})
	svc := services.NewInventoryService(repos.NewProductRepo(f.db))
	ctx := context.Background()

	cases := []struct {
		id     string
		status string
		qty    int
	}{
		{"plenty", "IN_STOCK", 6},
		{"few", "LOW_STOCK", 2},
		{"none", "OUT_OF_STOCK", 0},
		{"unknown", "OUT_OF_STOCK", 0},
	}
	for _, tc := range cases {
		a, err := svc.CheckAvailability(ctx, tc.id)
		if err != nil {
			t.Fatal(err)
		}
		if a.Status != tc.status || a.Qty != tc.qty {
			t.Fatalf("%s: want %s(%d), got %+v", tc.id, tc.status, tc.qty, a)
		}
	}

	// reserving drops a product into LOW_STOCK
	if _, err := f.svc.ReserveStock(ctx, "plenty", 3, "u"); err != nil {
		t.Fatal(err)
	}
	a, _ := svc.CheckAvailability(ctx, "plenty")
	if a.Status != "LOW_STOCK" || a.Qty != 3 {
		t.Fatalf("after reserve want LOW_STOCK(3), got %+v", a)
	}
}
