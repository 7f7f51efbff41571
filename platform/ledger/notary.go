/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/platform/view/services/kvs"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/registry"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/session"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/sig"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

// NotaryService orders transactions and guards input uniqueness.
// The sequence counter and the consumed-input index live in the node's
// key-value store, the mutex serializes concurrent sealing so no two
// transactions observe the same sequence number or race on an input.
type NotaryService struct {
	me     view.Identity
	signer sig.Signer
	store  *kvs.KVS
	mu     sync.Mutex
}

func NewNotaryService(me view.Identity, signer sig.Signer, store *kvs.KVS) *NotaryService {
	return &NotaryService{me: me, signer: signer, store: store}
}

// Identity returns the notary's signing identity
func (n *NotaryService) Identity() view.Identity {
	return n.me
}

// Seal assigns the next sequence number to the passed transaction and signs
// it, after checking that none of its inputs was consumed before. A rejected
// transaction leaves no trace: the sequence does not advance and no input is
// marked consumed.
func (n *NotaryService) Seal(tx *Transaction) (*Seal, error) {
	if !n.me.Equal(tx.Notary) {
		return nil, &NotaryRejectedError{Reason: errors.Errorf("transaction [%s] designates another notary [%s]", tx.ID, tx.Notary).Error()}
	}
	if err := tx.IsFullySigned(); err != nil {
		return nil, &NotaryRejectedError{Reason: errors.WithMessagef(err, "transaction [%s] is not fully signed", tx.ID).Error()}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ref := range tx.Inputs {
		key, err := consumedKey(ref)
		if err != nil {
			return nil, err
		}
		consumedBy := ""
		if err := n.store.Get(key, &consumedBy); err == nil {
			if consumedBy == tx.ID {
				continue
			}
			return nil, &NotaryRejectedError{Reason: errors.Errorf("input [%s] already consumed by transaction [%s]", ref, consumedBy).Error()}
		} else if !errors.Is(err, kvs.ErrNotFound) {
			return nil, err
		}
	}

	sequence, err := n.nextSequence()
	if err != nil {
		return nil, err
	}
	payload, err := tx.SealPayload(sequence)
	if err != nil {
		return nil, err
	}
	sigma, err := n.signer.Sign(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "failed sealing transaction [%s]", tx.ID)
	}

	for _, ref := range tx.Inputs {
		key, err := consumedKey(ref)
		if err != nil {
			return nil, err
		}
		if err := n.store.Put(key, tx.ID); err != nil {
			return nil, err
		}
	}
	logger.Infof("sealed transaction [%s] with sequence [%d]", tx.ID, sequence)
	return &Seal{Sequence: sequence, Notary: n.me, Sigma: sigma}, nil
}

func (n *NotaryService) nextSequence() (uint64, error) {
	key, err := kvs.CreateCompositeKey("notary", "sequence")
	if err != nil {
		return 0, err
	}
	var sequence uint64
	if err := n.store.Get(key, &sequence); err != nil && !errors.Is(err, kvs.ErrNotFound) {
		return 0, err
	}
	sequence++
	return sequence, n.store.Put(key, sequence)
}

func consumedKey(ref StateRef) (string, error) {
	return kvs.CreateCompositeKey("notary", "consumed", ref.TxID, strconv.Itoa(ref.Index))
}

// GetNotaryService returns the notary service registered in the passed
// provider. It panics, if no instance is found.
func GetNotaryService(sp registry.ServiceLocator) *NotaryService {
	s, err := sp.GetService(&NotaryService{})
	if err != nil {
		panic(err)
	}
	return s.(*NotaryService)
}

// NotarizationView is the notary's answer to an OrderingAndFinalityView: it
// receives the fully signed transaction, seals it, and returns the seal.
type NotarizationView struct{}

func (n *NotarizationView) Call(context view.Context) (interface{}, error) {
	tx, err := ReceiveTransaction(context)
	if err != nil {
		return nil, err
	}
	seal, err := GetNotaryService(context).Seal(tx)
	if err != nil {
		return nil, err
	}
	if err := session.JSON(context).Send(seal); err != nil {
		return nil, errors.WithMessagef(err, "failed answering with seal on transaction [%s]", tx.ID)
	}
	return seal, nil
}
