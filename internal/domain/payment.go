package domain

import "strings"

const (
	MethodCash       = "Cash"
	MethodPIX        = "PIX"
	MethodDebitCard  = "Debit Card"
	MethodCreditCard = "Credit Card"
	MethodOnCredit   = "On Credit"
)

// Payment method names that settle at the moment of sale. Portuguese labels
// used by existing tenants map to the same canonical names.
var cashEquivalent = map[string]string{
	"cash":              MethodCash,
	"dinheiro":          MethodCash,
	"pix":               MethodPIX,
	"debit card":        MethodDebitCard,
	"cartão de débito":  MethodDebitCard,
	"cartao de debito":  MethodDebitCard,
	"credit card":       MethodCreditCard,
	"cartão de crédito": MethodCreditCard,
	"cartao de credito": MethodCreditCard,
}

var onCredit = map[string]bool{
	"on credit": true,
	"crediário": true,
	"crediario": true,
	"fiado":     true,
}

func normalizeMethod(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// IsCashEquivalent reports whether a sale paid with this method posts a
// ledger inflow immediately.
func IsCashEquivalent(name string) bool {
	_, ok := cashEquivalent[normalizeMethod(name)]
	return ok
}

// IsOnCredit reports whether the method defers cash recognition to installments.
func IsOnCredit(name string) bool {
	return onCredit[normalizeMethod(name)]
}

// CanonicalMethod returns the canonical English name for a known method, or
// the trimmed input otherwise.
func CanonicalMethod(name string) string {
	key := normalizeMethod(name)
	if canonical, ok := cashEquivalent[key]; ok {
		return canonical
	}
	if onCredit[key] {
		return MethodOnCredit
	}
	return strings.TrimSpace(name)
}

// DefaultPaymentMethods are seeded for every new tenant.
func DefaultPaymentMethods() []string {
	return []string{MethodCash, MethodPIX, MethodDebitCard, MethodCreditCard, MethodOnCredit}
}
