package validation

import (
	"testing"
)

func fieldNames(errs ValidationErrors) map[string]bool {
	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	return fields
}

func TestValidateInvestmentRequestAccepts(t *testing.T) {
	errs := ValidateInvestmentRequest("u1", "Alice", "alice@example.com", "SOL/USDT", "500", "100 - 200", "2026-09-12", "data:image/png;base64,AAA=", "")
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateInvestmentRequestEachFieldRequired(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(args []string)
		field string
	}{
		{"owner", func(a []string) { a[0] = "" }, "ownerId"},
		{"username", func(a []string) { a[1] = "" }, "username"},
		{"email", func(a []string) { a[2] = "" }, "userEmail"},
		{"pair", func(a []string) { a[3] = "" }, "tradingPair"},
		{"amount", func(a []string) { a[4] = "" }, "investmentAmount"},
		{"profit", func(a []string) { a[5] = "" }, "expectedProfit"},
		{"withdrawal", func(a []string) { a[6] = "" }, "withdrawalDate"},
		{"proof", func(a []string) { a[7] = "" }, "proofFileBase64"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			args := []string{"u1", "Alice", "alice@example.com", "SOL/USDT", "500", "100 - 200", "2026-09-12", "AAA=", ""}
			tc.mut(args)
			errs := ValidateInvestmentRequest(args[0], args[1], args[2], args[3], args[4], args[5], args[6], args[7], args[8])
			if !fieldNames(errs)[tc.field] {
				t.Fatalf("expected error on field %q, got %v", tc.field, errs)
			}
		})
	}
}

func TestValidateInvestmentRequestAmount(t *testing.T) {
	errs := ValidateInvestmentRequest("u1", "Alice", "a@b.c", "SOL/USDT", "-5", "x", "y", "AAA=", "")
	if !fieldNames(errs)["investmentAmount"] {
		t.Fatalf("expected negative amount to be rejected, got %v", errs)
	}
	errs = ValidateInvestmentRequest("u1", "Alice", "a@b.c", "SOL/USDT", "banana", "x", "y", "AAA=", "")
	if !fieldNames(errs)["investmentAmount"] {
		t.Fatalf("expected non-numeric amount to be rejected, got %v", errs)
	}
}

func TestValidateInvestmentRequestStatus(t *testing.T) {
	for _, status := range []string{"pending", "completed", "canceled", "Pending", " COMPLETED "} {
		errs := ValidateInvestmentRequest("u1", "Alice", "a@b.c", "SOL/USDT", "5", "x", "y", "AAA=", status)
		if len(errs) != 0 {
			t.Fatalf("status %q should be accepted, got %v", status, errs)
		}
	}
	errs := ValidateInvestmentRequest("u1", "Alice", "a@b.c", "SOL/USDT", "5", "x", "y", "AAA=", "approved")
	if !fieldNames(errs)["status"] {
		t.Fatalf("expected unknown status to be rejected, got %v", errs)
	}
}

func TestValidatePairRequest(t *testing.T) {
	errs := ValidatePairRequest("SOL/USDT", "125.32", "50", "10000", "100", "200", 14, []TradeMarkInput{
		{Value: "+3.2", Kind: "profit"},
		{Value: "-1.08", Kind: "loss"},
	})
	if len(errs) != 0 {
		t.Fatalf("expected valid pair, got %v", errs)
	}
}

func TestValidatePairRequestBounds(t *testing.T) {
	errs := ValidatePairRequest("SOL/USDT", "125.32", "10000", "50", "200", "100", 0, nil)
	fields := fieldNames(errs)
	for _, want := range []string{"minInvest", "minProfit", "withdrawalDays"} {
		if !fields[want] {
			t.Fatalf("expected error on %q, got %v", want, errs)
		}
	}
}

func TestValidatePairRequestTradeHistory(t *testing.T) {
	errs := ValidatePairRequest("SOL/USDT", "1", "1", "2", "1", "2", 7, []TradeMarkInput{
		{Value: "up three", Kind: "profit"},
		{Value: "+1", Kind: "sideways"},
	})
	fields := fieldNames(errs)
	if !fields["tradeHistory[0].value"] {
		t.Fatalf("expected error on tradeHistory[0].value, got %v", errs)
	}
	if !fields["tradeHistory[1].kind"] {
		t.Fatalf("expected error on tradeHistory[1].kind, got %v", errs)
	}
}
