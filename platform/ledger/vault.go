/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/platform/view/services/kvs"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/registry"
)

// stateEntry is the latest committed version of a linear state
type stateEntry struct {
	Type     string          `json:"type"`
	TxID     string          `json:"tx_id"`
	Index    int             `json:"index"`
	Consumed bool            `json:"consumed"`
	Raw      json.RawMessage `json:"raw"`
}

// Vault is this node's record of committed transactions and their states.
// It is append-only: a transaction enters the vault exactly once, when the
// finality protocol delivers it sealed, and is never altered afterwards.
type Vault struct {
	store *kvs.KVS
	mu    sync.Mutex
}

func NewVault(store *kvs.KVS) *Vault {
	return &Vault{store: store}
}

// CommitTransaction records the passed sealed transaction and updates the
// latest-state index. Recommitting the same transaction is a no-op.
func (v *Vault) CommitTransaction(tx *Transaction) error {
	if !tx.IsSealed() {
		return errors.Errorf("transaction [%s] carries no seal, refusing to commit", tx.ID)
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	txKey, err := kvs.CreateCompositeKey("tx", tx.ID)
	if err != nil {
		return err
	}
	if ok, err := v.store.Exists(txKey); err != nil {
		return err
	} else if ok {
		logger.Debugf("transaction [%s] already committed", tx.ID)
		return nil
	}

	// mark consumed inputs
	for _, ref := range tx.Inputs {
		stateKey, err := kvs.CreateCompositeKey("state", ref.LinearID)
		if err != nil {
			return err
		}
		entry := &stateEntry{}
		if err := v.store.Get(stateKey, entry); err != nil {
			return errors.WithMessagef(err, "transaction [%s] consumes unknown state [%s]", tx.ID, ref.LinearID)
		}
		entry.Consumed = true
		if err := v.store.Put(stateKey, entry); err != nil {
			return err
		}
	}

	// index outputs as the latest version of their linear state
	for index, output := range tx.Outputs {
		stateKey, err := kvs.CreateCompositeKey("state", output.LinearID)
		if err != nil {
			return err
		}
		if err := v.store.Put(stateKey, &stateEntry{
			Type:  output.Type,
			TxID:  tx.ID,
			Index: index,
			Raw:   output.Raw,
		}); err != nil {
			return err
		}
	}

	if err := v.store.Put(txKey, tx); err != nil {
		return err
	}
	logger.Debugf("committed transaction [%s] with sequence [%d]", tx.ID, tx.Seal.Sequence)
	return nil
}

// GetTransaction returns the committed transaction with the passed id
func (v *Vault) GetTransaction(id string) (*Transaction, error) {
	txKey, err := kvs.CreateCompositeKey("tx", id)
	if err != nil {
		return nil, err
	}
	tx := &Transaction{}
	if err := v.store.Get(txKey, tx); err != nil {
		return nil, errors.WithMessagef(err, "transaction [%s] is not committed", id)
	}
	return tx, nil
}

// IsCommitted returns true if the transaction with the passed id is committed
func (v *Vault) IsCommitted(id string) (bool, error) {
	txKey, err := kvs.CreateCompositeKey("tx", id)
	if err != nil {
		return false, err
	}
	return v.store.Exists(txKey)
}

// GetState unmarshals the latest committed version of the linear state with
// the passed id into the passed state
func (v *Vault) GetState(linearID string, state LinearState) error {
	stateKey, err := kvs.CreateCompositeKey("state", linearID)
	if err != nil {
		return err
	}
	entry := &stateEntry{}
	if err := v.store.Get(stateKey, entry); err != nil {
		return errors.WithMessagef(err, "no committed state with linear id [%s]", linearID)
	}
	if entry.Consumed {
		return errors.Errorf("state with linear id [%s] has been consumed", linearID)
	}
	return errors.Wrapf(json.Unmarshal(entry.Raw, state), "failed unmarshalling state [%s]", linearID)
}

// GetVault returns the vault registered in the passed provider.
// It panics, if no instance is found.
func GetVault(sp registry.ServiceLocator) *Vault {
	s, err := sp.GetService(&Vault{})
	if err != nil {
		panic(err)
	}
	return s.(*Vault)
}
