/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package views

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/iou"
	"github.com/hyperledger-labs/iou-ledger/iou/states"
	"github.com/hyperledger-labs/iou-ledger/platform/ledger"
	"github.com/hyperledger-labs/iou-ledger/platform/ledger/money"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/assert"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

// Issue carries the parameters of an IOU issuance
type Issue struct {
	// Amount the borrower owes the lender
	Amount money.Amount `json:"amount"`
	// Lender of the IOU. If empty, the node's default identity lends.
	Lender view.Identity `json:"lender,omitempty"`
	// Borrower of the IOU
	Borrower view.Identity `json:"borrower"`
}

// IssueView builds an IOU issuance, collects the borrower's signature, and
// drives the transaction to finality
type IssueView struct {
	Issue
}

func (v *IssueView) Call(context view.Context) (interface{}, error) {
	lender := v.Lender
	if lender.IsNone() {
		lender = context.Me()
	}
	iouState := states.New(v.Amount, lender, v.Borrower)

	tx, err := ledger.NewTransaction(context)
	assert.NoError(err, "failed creating iou issue transaction")
	assert.NoError(tx.AddOutput(iouState), "failed adding the iou to the transaction")
	assert.NoError(tx.AddCommand(iou.IssueCommand, iouState.Lender, iouState.Borrower), "failed adding the issue command")

	// the borrower co-signs, then the notary seals and everyone commits
	if _, err := context.RunView(ledger.NewCollectSignaturesView(tx)); err != nil {
		return nil, errors.WithMessagef(err, "failed collecting signatures on transaction [%s]", tx.ID)
	}
	if _, err := context.RunView(ledger.NewOrderingAndFinalityView(tx)); err != nil {
		return nil, errors.WithMessagef(err, "failed finalizing transaction [%s]", tx.ID)
	}
	return iouState.LinearID, nil
}

type IssueViewFactory struct{}

func (f *IssueViewFactory) NewView(in []byte) (view.View, error) {
	v := &IssueView{}
	if err := json.Unmarshal(in, &v.Issue); err != nil {
		return nil, errors.Wrap(err, "failed unmarshalling issue parameters")
	}
	return v, nil
}
