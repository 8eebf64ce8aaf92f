package enums

import "testing"

func TestParseBookingStatus(t *testing.T) {
	for _, raw := range []string{"pending", "confirmed", "completed", "declined", "cancelled"} {
		got, err := ParseBookingStatus(raw)
		if err != nil {
			t.Fatalf("ParseBookingStatus(%q) error: %v", raw, err)
		}
		if string(got) != raw || !got.IsValid() {
			t.Fatalf("unexpected status %q", got)
		}
	}
	if _, err := ParseBookingStatus("canceled"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestBookingStatusHoldsSlot(t *testing.T) {
	if !BookingStatusConfirmed.HoldsSlot() {
		t.Fatal("confirmed bookings hold a slot")
	}
	for _, s := range []BookingStatus{BookingStatusPending, BookingStatusCompleted, BookingStatusDeclined, BookingStatusCancelled} {
		if s.HoldsSlot() {
			t.Fatalf("%s should not hold a slot", s)
		}
	}
}

func TestParseBookingRole(t *testing.T) {
	if r, err := ParseBookingRole(""); err != nil || r != BookingRoleAny {
		t.Fatalf("empty role should default to any, got %q %v", r, err)
	}
	if _, err := ParseBookingRole("admin"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestOutboxEnums(t *testing.T) {
	if _, err := ParseOutboxEventType("credits_reversed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseOutboxEventType("order_created"); err == nil {
		t.Fatal("expected error for foreign event type")
	}
	if EventCreditsReversed.Aggregate() != AggregateLedgerEntry || OutboxEventType("x").Aggregate() != "" {
		t.Fatalf("unexpected event aggregate mapping")
	}
	if !AggregateBooking.IsValid() || OutboxAggregateType("store").IsValid() {
		t.Fatal("aggregate validation mismatch")
	}
	if _, err := ParseLedgerEntryKind("earned"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
