/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package states

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/platform/ledger/money"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

// IOU records a debt of the borrower towards the lender.
// It is immutable: repayments and lender changes produce a new version under
// the same linear id.
type IOU struct {
	Amount   money.Amount  `json:"amount"`
	Lender   view.Identity `json:"lender"`
	Borrower view.Identity `json:"borrower"`
	Paid     money.Amount  `json:"paid"`
	LinearID string        `json:"linear_id"`
}

// New returns a fresh IOU with a newly assigned linear id and nothing paid yet
func New(amount money.Amount, lender, borrower view.Identity) *IOU {
	return &IOU{
		Amount:   amount,
		Lender:   lender,
		Borrower: borrower,
		Paid:     money.Zero(amount.Currency),
		LinearID: uuid.New().String(),
	}
}

// GetLinearID returns the identifier this IOU is tracked by across versions
func (i *IOU) GetLinearID() string {
	return i.LinearID
}

// Participants returns the identities with a stake in this IOU
func (i *IOU) Participants() []view.Identity {
	return []view.Identity{i.Lender, i.Borrower}
}

// Outstanding returns the amount still owed
func (i *IOU) Outstanding() (money.Amount, error) {
	return i.Amount.Sub(i.Paid)
}

// Pay returns a new version of this IOU with the passed amount added to the
// paid total
func (i *IOU) Pay(amount money.Amount) (*IOU, error) {
	if !amount.IsPositive() {
		return nil, errors.Errorf("payment must be positive, got [%s]", amount)
	}
	paid, err := i.Paid.Add(amount)
	if err != nil {
		return nil, err
	}
	outstanding, err := i.Amount.Sub(paid)
	if err != nil {
		return nil, err
	}
	if outstanding.IsNegative() {
		return nil, errors.Errorf("payment of [%s] exceeds the outstanding amount", amount)
	}
	next := *i
	next.Paid = paid
	return &next, nil
}

// WithNewLender returns a new version of this IOU held by the passed lender
func (i *IOU) WithNewLender(lender view.Identity) (*IOU, error) {
	if lender.IsNone() {
		return nil, errors.New("new lender identity cannot be empty")
	}
	next := *i
	next.Lender = lender
	return &next, nil
}
