package models

import "testing"

func TestTierFor(t *testing.T) {
	tests := []struct {
		balance int
		want    PointsTier
	}{
		{0, PointsTier{Balance: 0, Goal: 500, Remaining: 500, Percent: 0}},
		{125, PointsTier{Balance: 125, Goal: 500, Remaining: 375, Percent: 25}},
		{500, PointsTier{Balance: 500, Goal: 500, Remaining: 0, Percent: 100}},
		{900, PointsTier{Balance: 900, Goal: 500, Remaining: 0, Percent: 100}},
		{-3, PointsTier{Balance: 0, Goal: 500, Remaining: 500, Percent: 0}},
	}

	for _, tt := range tests {
		if got := TierFor(tt.balance); got != tt.want {
			t.Errorf("TierFor(%d) = %+v, want %+v", tt.balance, got, tt.want)
		}
	}
}

func TestTransactionType_ConfirmedStatus(t *testing.T) {
	if s, ok := TransactionDropoff.ConfirmedStatus(); !ok || s != ItemStatusAvailable {
		t.Errorf("dropoff = %q, %v", s, ok)
	}
	if s, ok := TransactionPickup.ConfirmedStatus(); !ok || s != ItemStatusUnavailable {
		t.Errorf("pickup = %q, %v", s, ok)
	}
	if _, ok := TransactionType("Return").ConfirmedStatus(); ok {
		t.Error("unknown type should not map to a status")
	}
}

func TestTransaction_ItemRefAndCreatedBy(t *testing.T) {
	tx := Transaction{ItemID: "item-1", CreatedByEmail: "ann@example.com", Name: "Ann"}
	if got := tx.ItemRef(); got != "item-1" {
		t.Errorf("ItemRef = %q", got)
	}
	if got := tx.CreatedBy(); got != "ann@example.com" {
		t.Errorf("CreatedBy = %q", got)
	}

	tx.QRCodeID = "qr-1"
	if got := tx.ItemRef(); got != "qr-1" {
		t.Errorf("ItemRef = %q", got)
	}
	if got := (Transaction{}).CreatedBy(); got != "Unknown" {
		t.Errorf("CreatedBy = %q", got)
	}
}

func TestItem_PositionAndStatus(t *testing.T) {
	lat, lng := 43.65, -79.38
	item := Item{ID: "1", Lat: &lat, Lng: &lng, Status: "gone"}

	if _, ok := item.Position(); !ok {
		t.Error("expected a position")
	}
	if got := item.NormalizedStatus(); got != ItemStatusUnknown {
		t.Errorf("NormalizedStatus = %q", got)
	}

	bad := 200.0
	item.Lng = &bad
	if _, ok := item.Position(); ok {
		t.Error("out of range coordinate should not be a position")
	}
}

func TestFindReward(t *testing.T) {
	r, ok := FindReward("local-eco-tour")
	if !ok || r.Cost != 1500 {
		t.Errorf("FindReward = %+v, %v", r, ok)
	}
	if _, ok := FindReward("moon-trip"); ok {
		t.Error("unexpected reward")
	}
}
