package enums

import "testing"

func TestParseRoundTrips(t *testing.T) {
	for _, status := range validOrderStatuses {
		got, err := ParseOrderStatus(string(status))
		if err != nil || got != status {
			t.Fatalf("expected %s to parse, got %s err=%v", status, got, err)
		}
	}
	if _, err := ParseOrderStatus("lost"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
	if _, err := ParsePaymentMethod("bitcoin"); err == nil {
		t.Fatal("expected unknown payment method to fail")
	}
	if !PaymentMethodApplePay.IsValid() || PaymentMethod("cash").IsValid() {
		t.Fatal("unexpected payment method validity")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	terminal := map[OrderStatus]bool{
		OrderStatusProcessing: false,
		OrderStatusConfirmed:  false,
		OrderStatusShipped:    false,
		OrderStatusDelivered:  true,
		OrderStatusCancelled:  true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Fatalf("%s terminal: expected %v got %v", status, want, got)
		}
	}
}

func TestReturnStatusActive(t *testing.T) {
	active := map[ReturnStatus]bool{
		ReturnStatusRequested: true,
		ReturnStatusApproved:  true,
		ReturnStatusRejected:  false,
		ReturnStatusCompleted: false,
		ReturnStatusCancelled: false,
	}
	for status, want := range active {
		if got := status.IsActive(); got != want {
			t.Fatalf("%s active: expected %v got %v", status, want, got)
		}
	}
}
