package domain

import (
	"fmt"
	"math/big"
)

// Money is a decimal amount plus an ISO 4217 alpha-3 currency, persisted
// as a decimal string per spec.md §6. Amount is kept as a string end to
// end to avoid floating point drift; arithmetic over quantities of a
// single Money value is done by the caller (e.g. price * quantity is
// computed once at order-creation time, not recomputed from a float).
type Money struct {
	Amount   string `dynamodbav:"amount"`
	Currency string `dynamodbav:"currency"`
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount, m.Currency)
}

// MultiplyQty scales the amount by an integer quantity using exact
// rational arithmetic, avoiding the float drift a naive price*qty
// would accumulate over repeated order creation.
func (m Money) MultiplyQty(n int) Money {
	r, ok := new(big.Rat).SetString(m.Amount)
	if !ok {
		return m
	}
	r.Mul(r, new(big.Rat).SetInt64(int64(n)))
	return Money{Amount: r.FloatString(2), Currency: m.Currency}
}
