/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/iou-ledger/platform/view/services/kvs"
)

func newVault(t *testing.T) *Vault {
	store, err := kvs.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewVault(store)
}

func sealedTransaction(t *testing.T, inputs ...StateRef) *Transaction {
	store, err := kvs.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	notary, notarySigner := newParty(t, 9)
	tx := signedTransaction(t, notary, inputs...)
	seal, err := NewNotaryService(notary, notarySigner, store).Seal(tx)
	require.NoError(t, err)
	require.NoError(t, tx.SetSeal(seal))
	return tx
}

func TestCommitTransaction(t *testing.T) {
	vault := newVault(t)
	tx := sealedTransaction(t)

	committed, err := vault.IsCommitted(tx.ID)
	require.NoError(t, err)
	assert.False(t, committed)

	require.NoError(t, vault.CommitTransaction(tx))
	committed, err = vault.IsCommitted(tx.ID)
	require.NoError(t, err)
	assert.True(t, committed)

	stored, err := vault.GetTransaction(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, stored.ID)
	assert.Equal(t, tx.Seal.Sequence, stored.Seal.Sequence)

	// recommitting is a no-op
	require.NoError(t, vault.CommitTransaction(tx))
}

func TestCommitRejectsUnsealed(t *testing.T) {
	vault := newVault(t)
	notary, _ := newParty(t, 9)
	tx := signedTransaction(t, notary)
	assert.Error(t, vault.CommitTransaction(tx))
}

func TestGetState(t *testing.T) {
	vault := newVault(t)
	tx := sealedTransaction(t)
	require.NoError(t, vault.CommitTransaction(tx))

	state := &testState{}
	require.NoError(t, vault.GetState("state-"+tx.ID, state))
	assert.Equal(t, "state-"+tx.ID, state.LinearID)

	assert.Error(t, vault.GetState("unknown", state))
}

func TestConsumingCommit(t *testing.T) {
	vault := newVault(t)
	tx1 := sealedTransaction(t)
	require.NoError(t, vault.CommitTransaction(tx1))

	tx2 := sealedTransaction(t, StateRef{TxID: tx1.ID, Index: 0, LinearID: "state-" + tx1.ID})
	require.NoError(t, vault.CommitTransaction(tx2))

	// the consumed version is no longer served
	state := &testState{}
	err := vault.GetState("state-"+tx1.ID, state)
	require.Error(t, err)

	require.NoError(t, vault.GetState("state-"+tx2.ID, state))
}

func TestCommitRejectsUnknownInput(t *testing.T) {
	vault := newVault(t)
	tx := sealedTransaction(t, StateRef{TxID: "ghost", Index: 0, LinearID: "no-such-state"})
	assert.Error(t, vault.CommitTransaction(tx))
}
