package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	return "invalid request"
}

var (
	validStatuses    = map[string]bool{"pending": true, "completed": true, "canceled": true}
	tradeMarkPattern = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)
)

// ValidStatus reports whether s belongs to the closed status set. The legacy
// layer accepted any string here; that is exactly the gap this check closes.
func ValidStatus(s string) bool {
	return validStatuses[strings.ToLower(strings.TrimSpace(s))]
}

func ValidateInvestmentRequest(ownerID, username, userEmail, pairName, amount, expectedProfit, withdrawalDate, proofPayload, status string) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(ownerID) == "" {
		errs = append(errs, FieldError{Field: "ownerId", Message: "owner id is required"})
	}
	if strings.TrimSpace(username) == "" {
		errs = append(errs, FieldError{Field: "username", Message: "username is required"})
	}
	if strings.TrimSpace(userEmail) == "" {
		errs = append(errs, FieldError{Field: "userEmail", Message: "user email is required"})
	}
	if strings.TrimSpace(pairName) == "" {
		errs = append(errs, FieldError{Field: "tradingPair", Message: "trading pair is required"})
	}
	if _, err := parsePositiveDecimal(amount, "investmentAmount"); err != nil {
		errs = append(errs, FieldError{Field: "investmentAmount", Message: err.Error()})
	}
	if strings.TrimSpace(expectedProfit) == "" {
		errs = append(errs, FieldError{Field: "expectedProfit", Message: "expected profit is required"})
	}
	if strings.TrimSpace(withdrawalDate) == "" {
		errs = append(errs, FieldError{Field: "withdrawalDate", Message: "withdrawal date is required"})
	}
	if strings.TrimSpace(proofPayload) == "" {
		errs = append(errs, FieldError{Field: "proofFileBase64", Message: "proof file is required"})
	}
	if trimmed := strings.TrimSpace(status); trimmed != "" && !ValidStatus(trimmed) {
		errs = append(errs, FieldError{Field: "status", Message: "status must be pending, completed, or canceled"})
	}

	return errs
}

func ValidatePairRequest(name, price, minInvest, maxInvest, minProfit, maxProfit string, withdrawalDays int, history []TradeMarkInput) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	}

	if _, err := parsePositiveDecimal(price, "price"); err != nil {
		errs = append(errs, FieldError{Field: "price", Message: err.Error()})
	}

	minInv, minErr := parsePositiveDecimal(minInvest, "minInvest")
	if minErr != nil {
		errs = append(errs, FieldError{Field: "minInvest", Message: minErr.Error()})
	}
	maxInv, maxErr := parsePositiveDecimal(maxInvest, "maxInvest")
	if maxErr != nil {
		errs = append(errs, FieldError{Field: "maxInvest", Message: maxErr.Error()})
	}
	if minErr == nil && maxErr == nil && minInv.GreaterThan(maxInv) {
		errs = append(errs, FieldError{Field: "minInvest", Message: "minInvest must not exceed maxInvest"})
	}

	minProf, minProfErr := parseDecimal(minProfit, "minProfit")
	if minProfErr != nil {
		errs = append(errs, FieldError{Field: "minProfit", Message: minProfErr.Error()})
	}
	maxProf, maxProfErr := parseDecimal(maxProfit, "maxProfit")
	if maxProfErr != nil {
		errs = append(errs, FieldError{Field: "maxProfit", Message: maxProfErr.Error()})
	}
	if minProfErr == nil && maxProfErr == nil && minProf.GreaterThan(maxProf) {
		errs = append(errs, FieldError{Field: "minProfit", Message: "minProfit must not exceed maxProfit"})
	}

	if withdrawalDays <= 0 {
		errs = append(errs, FieldError{Field: "withdrawalDays", Message: "withdrawalDays must be positive"})
	}

	for i, mark := range history {
		if !tradeMarkPattern.MatchString(strings.TrimSpace(mark.Value)) {
			errs = append(errs, FieldError{Field: fmt.Sprintf("tradeHistory[%d].value", i), Message: "value must be a signed number"})
		}
		kind := strings.ToLower(strings.TrimSpace(mark.Kind))
		if kind != "profit" && kind != "loss" {
			errs = append(errs, FieldError{Field: fmt.Sprintf("tradeHistory[%d].kind", i), Message: "kind must be profit or loss"})
		}
	}

	return errs
}

// TradeMarkInput mirrors the wire shape of a trade-history entry.
type TradeMarkInput struct {
	Value string
	Kind  string
}

func parsePositiveDecimal(raw, field string) (decimal.Decimal, error) {
	val, err := parseDecimal(raw, field)
	if err != nil {
		return decimal.Zero, err
	}
	if val.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%s must be positive", field)
	}
	return val, nil
}

func parseDecimal(raw, field string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("%s is required", field)
	}
	val, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal", field)
	}
	return val, nil
}
