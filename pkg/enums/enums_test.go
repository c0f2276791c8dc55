package enums

import "testing"

func TestPlanCodeBoosts(t *testing.T) {
	cases := map[PlanCode]float64{
		PlanVIP:       2.0,
		PlanTop:       1.5,
		PlanHighlight: 0.3,
		PlanAutobump:  0,
		"GOLD":        0,
	}
	for code, want := range cases {
		if got := code.Boost(); got != want {
			t.Fatalf("%s: expected boost %v got %v", code, want, got)
		}
	}
}

func TestParsePaymentModeDefaultsToWallet(t *testing.T) {
	mode, err := ParsePaymentMode("")
	if err != nil || mode != PaymentModeWallet {
		t.Fatalf("expected wallet default, got %q err=%v", mode, err)
	}
	mode, err = ParsePaymentMode(" CARD ")
	if err != nil || mode != PaymentModeCard {
		t.Fatalf("expected card, got %q err=%v", mode, err)
	}
	if _, err := ParsePaymentMode("crypto"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	if OrderStatusPending.IsTerminal() {
		t.Fatal("pending must not be terminal")
	}
	for _, status := range []OrderStatus{OrderStatusPaid, OrderStatusCancelled, OrderStatusFailed} {
		if !status.IsTerminal() {
			t.Fatalf("%s should be terminal", status)
		}
	}
}

func TestParseSortOption(t *testing.T) {
	sort, err := ParseSortOption("")
	if err != nil || sort != SortRelevance {
		t.Fatalf("expected relevance default, got %q err=%v", sort, err)
	}
	if _, err := ParseSortOption("cheapest"); err == nil {
		t.Fatal("expected invalid sort to fail")
	}
}

func TestUserRolePrivileges(t *testing.T) {
	if !UserRoleAdmin.IsPrivileged() || !UserRoleModerator.IsPrivileged() {
		t.Fatal("admin and moderator are privileged")
	}
	if UserRoleDealer.IsPrivileged() || UserRoleUser.IsPrivileged() {
		t.Fatal("dealer and user are not privileged")
	}
}

func TestTransactionTypeSigned(t *testing.T) {
	if TransactionDebit.Signed(300) != -300 || TransactionCredit.Signed(300) != 300 {
		t.Fatal("unexpected signed amounts")
	}
}
