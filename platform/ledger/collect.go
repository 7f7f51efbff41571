/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/platform/view/services/session"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/sig"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

// collectTimeout bounds the wait for a counterparty's answer
const collectTimeout = 1 * time.Minute

type collectAnswer struct {
	party      view.Identity
	signatures []*Signature
	err        error
}

// CollectSignaturesView drives the gathering of the signatures a transaction
// requires. The proposal is verified locally before anything is sent, the
// local identities sign first, then the transaction goes out to every remote
// required signer in parallel. Answers are accepted in any order; the first
// rejection cancels the whole round.
type CollectSignaturesView struct {
	tx *Transaction
}

func NewCollectSignaturesView(tx *Transaction) *CollectSignaturesView {
	return &CollectSignaturesView{tx: tx}
}

func (c *CollectSignaturesView) Call(context view.Context) (interface{}, error) {
	tx := c.tx

	// never ask others to sign what we would not sign ourselves
	if err := GetContractRegistry(context).Verify(tx); err != nil {
		return nil, err
	}

	sigService := sig.GetService(context)
	var remote []view.Identity
	for _, signer := range tx.RequiredSigners() {
		if sigService.IsMe(signer) {
			s, err := sigService.GetSigner(signer)
			if err != nil {
				return nil, err
			}
			if err := tx.SignWith(signer, s); err != nil {
				return nil, err
			}
			continue
		}
		if containsIdentity(remote, signer) {
			continue
		}
		remote = append(remote, signer)
	}
	logger.Debugf("transaction [%s] signed locally, collecting from [%d] remote signers", tx.ID, len(remote))

	raw, err := tx.Bytes()
	if err != nil {
		return nil, err
	}
	sessions := make([]view.Session, len(remote))
	for i, party := range remote {
		s, err := context.GetSession(context.Initiator(), party)
		if err != nil {
			return nil, &SessionError{Party: party, Cause: err}
		}
		sessions[i] = s
		if err := s.Send(raw); err != nil {
			return nil, &SessionError{Party: party, Cause: err}
		}
	}

	answers := make(chan *collectAnswer, len(remote))
	for i, party := range remote {
		go receiveSignatures(sessions[i], party, answers)
	}
	for i := 0; i < len(remote); i++ {
		answer := <-answers
		if answer.err != nil {
			// cancel the round, the remaining counterparties see their
			// sessions close
			for _, s := range sessions {
				s.Close()
			}
			return nil, answer.err
		}
		if err := tx.appendSignaturesFrom(answer.party, answer.signatures); err != nil {
			for _, s := range sessions {
				s.Close()
			}
			return nil, err
		}
		logger.Debugf("transaction [%s] signed by [%s]", tx.ID, answer.party)
	}

	if err := tx.IsFullySigned(); err != nil {
		return nil, err
	}
	return tx, nil
}

func receiveSignatures(s view.Session, party view.Identity, answers chan<- *collectAnswer) {
	timeout := time.NewTimer(collectTimeout)
	defer timeout.Stop()

	select {
	case msg := <-s.Receive():
		if msg == nil {
			answers <- &collectAnswer{party: party, err: &SessionError{Party: party, Cause: errors.New("session closed while collecting signatures")}}
			return
		}
		if msg.Status == view.ERROR {
			answers <- &collectAnswer{party: party, err: &CounterpartyRejectedError{Party: party, Reason: string(msg.Payload)}}
			return
		}
		signatures, err := signaturesFromBytes(msg.Payload)
		if err != nil {
			answers <- &collectAnswer{party: party, err: err}
			return
		}
		answers <- &collectAnswer{party: party, signatures: signatures}
	case <-timeout.C:
		answers <- &collectAnswer{party: party, err: &SessionError{Party: party, Cause: errors.New("timeout reached while collecting signatures")}}
	}
}

// appendSignaturesFrom verifies and appends the signatures a counterparty
// answered with. The answer must carry a signature by the counterparty itself.
func (t *Transaction) appendSignaturesFrom(party view.Identity, signatures []*Signature) error {
	fromParty := false
	for _, signature := range signatures {
		if err := t.AppendSignature(signature); err != nil {
			return errors.WithMessagef(err, "failed appending signature from [%s]", party)
		}
		if signature.Signer.Equal(party) {
			fromParty = true
		}
	}
	if !fromParty {
		return errors.Errorf("counterparty [%s] answered without its own signature on transaction [%s]", party, t.ID)
	}
	return nil
}

// Validator is a business-level check a responder runs on a proposal before
// signing, on top of contract verification
type Validator func(context view.Context, tx *Transaction) error

// signView is the responder side of signature collection. It receives the
// proposal, verifies the contract, runs the extra validators, and only then
// signs with every local identity the command requires.
type signView struct {
	validators []Validator
}

// NewSignView returns the responder view answering a CollectSignaturesView
func NewSignView(validators ...Validator) view.View {
	return &signView{validators: validators}
}

func (s *signView) Call(context view.Context) (interface{}, error) {
	tx, err := ReceiveTransaction(context)
	if err != nil {
		return nil, err
	}
	logger.Debugf("received transaction [%s] for signing", tx.ID)

	// verification always precedes signing
	if err := GetContractRegistry(context).Verify(tx); err != nil {
		return nil, err
	}
	for _, validator := range s.validators {
		if err := validator(context, tx); err != nil {
			return nil, err
		}
	}

	sigService := sig.GetService(context)
	var signatures []*Signature
	payload, err := tx.SignaturePayload()
	if err != nil {
		return nil, err
	}
	for _, signer := range tx.RequiredSigners() {
		if !sigService.IsMe(signer) {
			continue
		}
		if tx.HasSignatureFrom(signer) {
			continue
		}
		sgn, err := sigService.GetSigner(signer)
		if err != nil {
			return nil, err
		}
		sigma, err := sgn.Sign(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "failed signing transaction [%s]", tx.ID)
		}
		signatures = append(signatures, &Signature{Signer: signer, Sigma: sigma})
	}
	if len(signatures) == 0 {
		return nil, errors.Errorf("transaction [%s] requires no signature of mine", tx.ID)
	}

	if err := session.JSON(context).Send(signatures); err != nil {
		return nil, errors.WithMessagef(err, "failed answering with signatures on transaction [%s]", tx.ID)
	}
	return tx, nil
}

// ReceiveTransaction reads a transaction proposal from the context's
// responder session
func ReceiveTransaction(context view.Context) (*Transaction, error) {
	raw, err := session.JSON(context).ReceiveRaw()
	if err != nil {
		return nil, errors.WithMessage(err, "failed receiving transaction")
	}
	return NewTransactionFromBytes(raw)
}

func signaturesFromBytes(raw []byte) ([]*Signature, error) {
	var signatures []*Signature
	if err := json.Unmarshal(raw, &signatures); err != nil {
		return nil, errors.Wrap(err, "failed unmarshalling signatures")
	}
	return signatures, nil
}

func containsIdentity(ids []view.Identity, id view.Identity) bool {
	for _, other := range ids {
		if other.Equal(id) {
			return true
		}
	}
	return false
}
