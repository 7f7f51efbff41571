/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package states

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/iou-ledger/platform/ledger/money"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/sig"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

func testIdentity(t *testing.T, tag byte) view.Identity {
	id, _, err := sig.NewSigningIdentityFromSeed(bytes.Repeat([]byte{tag}, 32))
	require.NoError(t, err)
	return id
}

func TestNew(t *testing.T) {
	lender := testIdentity(t, 1)
	borrower := testIdentity(t, 2)
	iou := New(money.MustNew(100, "GBP"), lender, borrower)

	assert.NotEmpty(t, iou.GetLinearID())
	assert.True(t, iou.Paid.Equal(money.Zero("GBP")))
	assert.Equal(t, []view.Identity{lender, borrower}, iou.Participants())

	other := New(money.MustNew(100, "GBP"), lender, borrower)
	assert.NotEqual(t, iou.GetLinearID(), other.GetLinearID())
}

func TestPay(t *testing.T) {
	iou := New(money.MustNew(100, "GBP"), testIdentity(t, 1), testIdentity(t, 2))

	paid, err := iou.Pay(money.MustNew(30, "GBP"))
	require.NoError(t, err)
	assert.True(t, paid.Paid.Equal(money.MustNew(30, "GBP")))
	assert.Equal(t, iou.GetLinearID(), paid.GetLinearID())
	// the original version is untouched
	assert.True(t, iou.Paid.Equal(money.Zero("GBP")))

	outstanding, err := paid.Outstanding()
	require.NoError(t, err)
	assert.True(t, outstanding.Equal(money.MustNew(70, "GBP")))

	_, err = paid.Pay(money.MustNew(100, "GBP"))
	assert.Error(t, err, "overpaying must fail")
	_, err = paid.Pay(money.MustNew(-1, "GBP"))
	assert.Error(t, err, "negative payments must fail")
	_, err = paid.Pay(money.MustNew(1, "EUR"))
	assert.Error(t, err, "currency mismatch must fail")
}

func TestWithNewLender(t *testing.T) {
	lender := testIdentity(t, 1)
	borrower := testIdentity(t, 2)
	newLender := testIdentity(t, 3)
	iou := New(money.MustNew(100, "GBP"), lender, borrower)

	transferred, err := iou.WithNewLender(newLender)
	require.NoError(t, err)
	assert.True(t, transferred.Lender.Equal(newLender))
	assert.Equal(t, iou.GetLinearID(), transferred.GetLinearID())
	assert.True(t, iou.Lender.Equal(lender))

	_, err = iou.WithNewLender(nil)
	assert.Error(t, err)
}
