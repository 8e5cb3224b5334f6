package models

import (
	"strings"

	"ticket-market/internal/status"
)

// PaymentMethod is the closed set of supported payment methods.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCreditCard   PaymentMethod = "credit_card"
	MethodWallet       PaymentMethod = "wallet"
)

// ParsePaymentMethod normalizes client input ("Credit Card", "digital wallet",
// "momo", ...) into a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")

	switch normalized {
	case "cash":
		return MethodCash, nil
	case "bank_transfer":
		return MethodBankTransfer, nil
	case "credit_card":
		return MethodCreditCard, nil
	case "wallet", "digital_wallet", "momo":
		return MethodWallet, nil
	default:
		return "", status.ErrUnsupportedMethod
	}
}

// Synchronous reports whether the method settles inline. Wallet payments stay
// pending until the gateway IPN arrives.
func (m PaymentMethod) Synchronous() bool {
	return m != MethodWallet
}

func (m PaymentMethod) String() string {
	return string(m)
}
