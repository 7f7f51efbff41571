/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	a, err := New(100, "GBP")
	assert.NoError(t, err)
	assert.Equal(t, int64(100), a.Quantity)
	assert.Equal(t, "GBP", a.Currency)

	_, err = New(100, "pounds")
	assert.Error(t, err)
	_, err = New(100, "")
	assert.Error(t, err)

	// 4-letter codes cover historic units like USDT-style listings
	_, err = New(1, "USDT")
	assert.NoError(t, err)
}

func TestAdd(t *testing.T) {
	a := MustNew(100, "GBP")
	b := MustNew(42, "GBP")

	sum, err := a.Add(b)
	assert.NoError(t, err)
	assert.True(t, sum.Equal(MustNew(142, "GBP")))

	_, err = a.Add(MustNew(1, "EUR"))
	assert.Error(t, err, "currency mismatch must fail")

	_, err = MustNew(math.MaxInt64, "GBP").Add(MustNew(1, "GBP"))
	assert.Error(t, err, "overflow must fail")
}

func TestSub(t *testing.T) {
	a := MustNew(100, "GBP")

	diff, err := a.Sub(MustNew(30, "GBP"))
	assert.NoError(t, err)
	assert.True(t, diff.Equal(MustNew(70, "GBP")))

	diff, err = a.Sub(MustNew(130, "GBP"))
	assert.NoError(t, err)
	assert.True(t, diff.IsNegative())
}

func TestSigns(t *testing.T) {
	assert.True(t, MustNew(1, "GBP").IsPositive())
	assert.False(t, Zero("GBP").IsPositive())
	assert.False(t, Zero("GBP").IsNegative())
	assert.True(t, MustNew(-1, "GBP").IsNegative())
}

func TestString(t *testing.T) {
	assert.Equal(t, "100 GBP", MustNew(100, "GBP").String())
}
