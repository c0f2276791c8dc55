package enums

import (
	"fmt"
	"strings"
)

// PaymentMode selects how an order is settled.
type PaymentMode string

const (
	PaymentModeWallet PaymentMode = "wallet"
	PaymentModeCard   PaymentMode = "card"
)

var validPaymentModes = []PaymentMode{
	PaymentModeWallet,
	PaymentModeCard,
}

// String implements fmt.Stringer.
func (m PaymentMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known PaymentMode.
func (m PaymentMode) IsValid() bool {
	for _, candidate := range validPaymentModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParsePaymentMode converts raw input into a PaymentMode. Empty input means wallet.
func ParsePaymentMode(value string) (PaymentMode, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return PaymentModeWallet, nil
	}
	for _, candidate := range validPaymentModes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment mode %q", value)
}

// PaymentProvider records which processor owns an order.
type PaymentProvider string

const PaymentProviderMock PaymentProvider = "MOCK"
