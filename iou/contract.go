/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package iou

import (
	"github.com/hyperledger-labs/iou-ledger/iou/states"
	"github.com/hyperledger-labs/iou-ledger/platform/ledger"
)

// IssueCommand names the operation creating a new IOU on the ledger
const IssueCommand = "issue"

// IssueContract checks an IOU issuance proposal. The rules run in a fixed
// order and the first violation is reported, so every party sees the same
// verdict for the same proposal.
type IssueContract struct{}

func (c *IssueContract) Verify(tx *ledger.Transaction) error {
	if tx.NumInputs() != 0 {
		return ledger.NewVerificationError("No inputs should be consumed when issuing an IOU.")
	}
	if tx.NumOutputs() != 1 {
		return ledger.NewVerificationError("Only one output state should be created when issuing an IOU.")
	}
	iou := &states.IOU{}
	if err := tx.GetOutputAt(0, iou); err != nil {
		return ledger.NewVerificationError("The output state of an IOU issue transaction must be an IOU.")
	}
	if !iou.Amount.IsPositive() {
		return ledger.NewVerificationError("A newly issued IOU must have a positive amount.")
	}
	if iou.Lender.Equal(iou.Borrower) {
		return ledger.NewVerificationError("The lender and borrower cannot have the same identity.")
	}
	if !signersMatchParticipants(tx, iou) {
		return ledger.NewVerificationError("Both lender and borrower together only may sign IOU issue transaction.")
	}
	return nil
}

// signersMatchParticipants checks that the command requires exactly the
// signatures of lender and borrower
func signersMatchParticipants(tx *ledger.Transaction, iou *states.IOU) bool {
	lender, borrower := false, false
	for _, signer := range tx.RequiredSigners() {
		switch {
		case signer.Equal(iou.Lender):
			lender = true
		case signer.Equal(iou.Borrower):
			borrower = true
		default:
			return false
		}
	}
	return lender && borrower
}
