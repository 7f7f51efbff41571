/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package views

import (
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/iou/states"
	"github.com/hyperledger-labs/iou-ledger/platform/ledger"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/assert"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

// IssueResponderView runs at the borrower when a lender proposes an IOU
// issuance: it signs the proposal if acceptable and waits for the sealed
// transaction to commit it locally.
type IssueResponderView struct{}

func (v *IssueResponderView) Call(context view.Context) (interface{}, error) {
	res, err := context.RunView(ledger.NewSignView(amBorrower))
	if err != nil {
		return nil, err
	}
	tx := res.(*ledger.Transaction)

	if _, err := context.RunView(ledger.NewReceiveFinalityView(tx)); err != nil {
		return nil, errors.WithMessagef(err, "failed receiving finality of transaction [%s]", tx.ID)
	}
	return tx.ID, nil
}

// amBorrower refuses proposals naming someone else as borrower
func amBorrower(context view.Context, tx *ledger.Transaction) error {
	iouState := &states.IOU{}
	assert.NoError(tx.GetOutputAt(0, iouState), "failed extracting the iou from the proposal")
	if !context.IsMe(iouState.Borrower) {
		return errors.Errorf("refusing to sign, I am not the borrower of iou [%s]", iouState.LinearID)
	}
	return nil
}
