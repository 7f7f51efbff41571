/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package money

import (
	"fmt"
	"regexp"

	"github.com/pkg/errors"
)

// isCurrencyCode reports whether the passed string is a valid currency code
var isCurrencyCode = regexp.MustCompile(`^[A-Z]{3,4}$`).MatchString

// Amount is a currency-typed monetary amount.
// Quantity counts in the currency's smallest unit.
type Amount struct {
	Quantity int64  `json:"quantity"`
	Currency string `json:"currency"`
}

// New returns an amount of the passed quantity in the passed currency
func New(quantity int64, currency string) (Amount, error) {
	if !isCurrencyCode(currency) {
		return Amount{}, errors.Errorf("invalid currency code [%s]", currency)
	}
	return Amount{Quantity: quantity, Currency: currency}, nil
}

// MustNew is like New but panics on an invalid currency code
func MustNew(quantity int64, currency string) Amount {
	a, err := New(quantity, currency)
	if err != nil {
		panic(err)
	}
	return a
}

// Zero returns the zero amount of the passed currency
func Zero(currency string) Amount {
	return Amount{Quantity: 0, Currency: currency}
}

// IsPositive returns true if the quantity is strictly greater than zero
func (a Amount) IsPositive() bool {
	return a.Quantity > 0
}

// IsNegative returns true if the quantity is strictly smaller than zero
func (a Amount) IsNegative() bool {
	return a.Quantity < 0
}

// SameCurrency returns true if both amounts share the currency
func (a Amount) SameCurrency(b Amount) bool {
	return a.Currency == b.Currency
}

// Add returns the sum of the two amounts.
// It fails if the currencies differ or the sum overflows.
func (a Amount) Add(b Amount) (Amount, error) {
	if !a.SameCurrency(b) {
		return Amount{}, errors.Errorf("currency mismatch [%s] vs [%s]", a.Currency, b.Currency)
	}
	sum := a.Quantity + b.Quantity
	if (b.Quantity > 0 && sum < a.Quantity) || (b.Quantity < 0 && sum > a.Quantity) {
		return Amount{}, errors.Errorf("amount overflow adding [%s] to [%s]", b, a)
	}
	return Amount{Quantity: sum, Currency: a.Currency}, nil
}

// Sub returns the difference of the two amounts
func (a Amount) Sub(b Amount) (Amount, error) {
	return a.Add(Amount{Quantity: -b.Quantity, Currency: b.Currency})
}

// Equal returns true if currency and quantity are the same
func (a Amount) Equal(b Amount) bool {
	return a.Quantity == b.Quantity && a.Currency == b.Currency
}

func (a Amount) String() string {
	return fmt.Sprintf("%d %s", a.Quantity, a.Currency)
}
