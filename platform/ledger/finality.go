/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/platform/view/services/sig"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

// finalityTimeout bounds the wait for the notary's answer and for the
// counterparties' acknowledgements
const finalityTimeout = 1 * time.Minute

var finalityAck = []byte("ack")

// OrderingAndFinalityView makes a fully signed transaction final: it requests
// the notary's seal, commits the sealed transaction to the local vault, and
// distributes it to every counterparty for their own commit. Until the seal
// arrives nothing is committed anywhere.
type OrderingAndFinalityView struct {
	tx *Transaction
}

func NewOrderingAndFinalityView(tx *Transaction) *OrderingAndFinalityView {
	return &OrderingAndFinalityView{tx: tx}
}

func (f *OrderingAndFinalityView) Call(context view.Context) (interface{}, error) {
	tx := f.tx
	if err := tx.IsFullySigned(); err != nil {
		return nil, errors.WithMessagef(err, "transaction [%s] is not ready for finality", tx.ID)
	}

	seal, err := f.requestSeal(context, tx)
	if err != nil {
		return nil, err
	}
	if err := tx.SetSeal(seal); err != nil {
		return nil, err
	}
	logger.Debugf("transaction [%s] sealed with sequence [%d]", tx.ID, seal.Sequence)

	if err := GetVault(context).CommitTransaction(tx); err != nil {
		return nil, errors.WithMessagef(err, "failed committing transaction [%s]", tx.ID)
	}

	if err := f.distribute(context, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// requestSeal submits the transaction to its designated notary and waits for
// the seal
func (f *OrderingAndFinalityView) requestSeal(context view.Context, tx *Transaction) (*Seal, error) {
	s, err := context.GetSession(f, tx.Notary)
	if err != nil {
		return nil, &SessionError{Party: tx.Notary, Cause: err}
	}
	raw, err := tx.Bytes()
	if err != nil {
		return nil, err
	}
	if err := s.Send(raw); err != nil {
		return nil, &SessionError{Party: tx.Notary, Cause: err}
	}
	msg, err := receiveMessage(s, finalityTimeout)
	if err != nil {
		return nil, &SessionError{Party: tx.Notary, Cause: err}
	}
	if msg.Status == view.ERROR {
		return nil, &NotaryRejectedError{Reason: string(msg.Payload)}
	}
	seal := &Seal{}
	if err := json.Unmarshal(msg.Payload, seal); err != nil {
		return nil, errors.Wrap(err, "failed unmarshalling seal")
	}
	return seal, nil
}

// distribute sends the sealed transaction to every remote required signer and
// waits for their acknowledgements. The sessions opened during signature
// collection are reused.
func (f *OrderingAndFinalityView) distribute(context view.Context, tx *Transaction) error {
	raw, err := tx.Bytes()
	if err != nil {
		return err
	}
	sigService := sig.GetService(context)
	var parties []view.Identity
	var sessions []view.Session
	for _, party := range tx.RequiredSigners() {
		if sigService.IsMe(party) || containsIdentity(parties, party) {
			continue
		}
		s, err := context.GetSession(context.Initiator(), party)
		if err != nil {
			return &SessionError{Party: party, Cause: err}
		}
		if err := s.Send(raw); err != nil {
			return &SessionError{Party: party, Cause: err}
		}
		parties = append(parties, party)
		sessions = append(sessions, s)
	}
	for i, s := range sessions {
		msg, err := receiveMessage(s, finalityTimeout)
		if err != nil {
			return &SessionError{Party: parties[i], Cause: err}
		}
		if msg.Status == view.ERROR {
			return &SessionError{Party: parties[i], Cause: errors.Errorf("counterparty failed committing transaction [%s]: %s", tx.ID, string(msg.Payload))}
		}
		logger.Debugf("transaction [%s] acknowledged by [%s]", tx.ID, parties[i])
	}
	return nil
}

// ReceiveFinalityView is the counterparty's tail of the finality protocol:
// it waits for the sealed transaction it signed earlier, checks seal and
// signatures, commits to the local vault, and acknowledges.
type ReceiveFinalityView struct {
	tx *Transaction
}

func NewReceiveFinalityView(tx *Transaction) *ReceiveFinalityView {
	return &ReceiveFinalityView{tx: tx}
}

func (f *ReceiveFinalityView) Call(context view.Context) (interface{}, error) {
	tx, err := ReceiveTransaction(context)
	if err != nil {
		return nil, err
	}
	if f.tx != nil && f.tx.ID != tx.ID {
		return nil, errors.Errorf("expected sealed transaction [%s], received [%s]", f.tx.ID, tx.ID)
	}
	seal := tx.Seal
	if seal == nil {
		return nil, errors.Errorf("received transaction [%s] carries no seal", tx.ID)
	}
	tx.Seal = nil
	if err := tx.IsFullySigned(); err != nil {
		return nil, errors.WithMessagef(err, "received transaction [%s] is not fully signed", tx.ID)
	}
	if err := tx.SetSeal(seal); err != nil {
		return nil, err
	}
	if err := GetVault(context).CommitTransaction(tx); err != nil {
		return nil, errors.WithMessagef(err, "failed committing transaction [%s]", tx.ID)
	}
	if err := context.Session().Send(finalityAck); err != nil {
		return nil, errors.WithMessagef(err, "failed acknowledging transaction [%s]", tx.ID)
	}
	logger.Debugf("transaction [%s] committed and acknowledged", tx.ID)
	return tx, nil
}

func receiveMessage(s view.Session, timeout time.Duration) (*view.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-s.Receive():
		if msg == nil {
			return nil, errors.New("session closed while receiving")
		}
		return msg, nil
	case <-timer.C:
		return nil, errors.New("timeout reached while receiving")
	}
}
