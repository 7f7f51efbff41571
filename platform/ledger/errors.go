/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	stderrors "errors"
	"fmt"

	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

// VerificationError reports a violated contract rule.
// It is fatal to the current proposal: the transaction must not be signed
// or submitted, and the error is never retried automatically.
type VerificationError struct {
	Reason string
}

func (e *VerificationError) Error() string {
	return e.Reason
}

// NewVerificationError returns a VerificationError with the passed reason
func NewVerificationError(format string, args ...interface{}) *VerificationError {
	return &VerificationError{Reason: fmt.Sprintf(format, args...)}
}

// IsVerificationError returns true if the passed error wraps a VerificationError
func IsVerificationError(err error) bool {
	var target *VerificationError
	return stderrors.As(err, &target)
}

// CounterpartyRejectedError reports that a counterparty declined to sign.
// It is terminal for the proposal: the initiator cancels all pending
// sessions and does not retry.
type CounterpartyRejectedError struct {
	Party  view.Identity
	Reason string
}

func (e *CounterpartyRejectedError) Error() string {
	return fmt.Sprintf("counterparty [%s] rejected the proposal: %s", e.Party, e.Reason)
}

// IsCounterpartyRejected returns true if the passed error wraps a CounterpartyRejectedError
func IsCounterpartyRejected(err error) bool {
	var target *CounterpartyRejectedError
	return stderrors.As(err, &target)
}

// NotaryRejectedError reports that the notary refused to seal the transaction,
// typically on conflicting consumption of an input. The transaction is
// discarded everywhere; a caller may build an entirely new proposal.
type NotaryRejectedError struct {
	Reason string
}

func (e *NotaryRejectedError) Error() string {
	return fmt.Sprintf("notary rejected the transaction: %s", e.Reason)
}

// IsNotaryRejected returns true if the passed error wraps a NotaryRejectedError
func IsNotaryRejected(err error) bool {
	var target *NotaryRejectedError
	return stderrors.As(err, &target)
}

// SessionError reports a communication failure. The protocol performs no
// silent retries; recovery belongs to the transport layer.
type SessionError struct {
	Party view.Identity
	Cause error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session to [%s] failed: %s", e.Party, e.Cause)
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

// IsSessionError returns true if the passed error wraps a SessionError
func IsSessionError(err error) bool {
	var target *SessionError
	return stderrors.As(err, &target)
}
