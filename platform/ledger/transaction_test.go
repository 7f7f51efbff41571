/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/iou-ledger/platform/view/services/sig"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

type testState struct {
	LinearID string `json:"linear_id"`
	Owner    string `json:"owner"`
}

func (s *testState) GetLinearID() string {
	return s.LinearID
}

func newParty(t *testing.T, tag byte) (view.Identity, sig.Signer) {
	id, signer, err := sig.NewSigningIdentityFromSeed(bytes.Repeat([]byte{tag}, 32))
	require.NoError(t, err)
	return id, signer
}

func newTestTransaction(t *testing.T, signers ...view.Identity) *Transaction {
	notary, _ := newParty(t, 9)
	tx, err := NewTransactionWithNotary(notary)
	require.NoError(t, err)
	require.NoError(t, tx.AddOutput(&testState{LinearID: "state-1", Owner: "alice"}))
	require.NoError(t, tx.AddCommand("test", signers...))
	return tx
}

func TestSingleCommand(t *testing.T) {
	alice, _ := newParty(t, 1)
	tx := newTestTransaction(t, alice)
	assert.Error(t, tx.AddCommand("another", alice))
}

func TestOutputs(t *testing.T) {
	alice, _ := newParty(t, 1)
	tx := newTestTransaction(t, alice)
	require.Equal(t, 1, tx.NumOutputs())
	require.Equal(t, 0, tx.NumInputs())

	out := &testState{}
	require.NoError(t, tx.GetOutputAt(0, out))
	assert.Equal(t, "state-1", out.LinearID)
	assert.Equal(t, "alice", out.Owner)

	assert.Error(t, tx.GetOutputAt(1, out))
	assert.Error(t, tx.GetOutputAt(-1, out))
}

func TestWireRoundTrip(t *testing.T) {
	alice, _ := newParty(t, 1)
	tx := newTestTransaction(t, alice)

	raw, err := tx.Bytes()
	require.NoError(t, err)
	tx2, err := NewTransactionFromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, tx2.ID)
	assert.True(t, tx.Notary.Equal(tx2.Notary))
	assert.Equal(t, tx.Command.Name, tx2.Command.Name)

	_, err = NewTransactionFromBytes([]byte("{}"))
	assert.Error(t, err, "a transaction without id must be refused")
}

func TestSigning(t *testing.T) {
	alice, aliceSigner := newParty(t, 1)
	bob, bobSigner := newParty(t, 2)
	tx := newTestTransaction(t, alice, bob)

	assert.Error(t, tx.IsFullySigned(), "no signature collected yet")

	require.NoError(t, tx.SignWith(alice, aliceSigner))
	assert.True(t, tx.HasSignatureFrom(alice))
	assert.Error(t, tx.IsFullySigned(), "bob has not signed yet")

	// signing twice adds nothing
	require.NoError(t, tx.SignWith(alice, aliceSigner))
	assert.Len(t, tx.Signatures, 1)

	require.NoError(t, tx.SignWith(bob, bobSigner))
	assert.NoError(t, tx.IsFullySigned())
}

func TestAppendSignature(t *testing.T) {
	alice, aliceSigner := newParty(t, 1)
	bob, bobSigner := newParty(t, 2)
	stranger, strangerSigner := newParty(t, 3)
	tx := newTestTransaction(t, alice, bob)

	payload, err := tx.SignaturePayload()
	require.NoError(t, err)

	sigma, err := bobSigner.Sign(payload)
	require.NoError(t, err)
	require.NoError(t, tx.AppendSignature(&Signature{Signer: bob, Sigma: sigma}))

	// a signature from a non-required signer is refused
	sigma, err = strangerSigner.Sign(payload)
	require.NoError(t, err)
	assert.Error(t, tx.AppendSignature(&Signature{Signer: stranger, Sigma: sigma}))

	// a signature over different bytes is refused
	sigma, err = aliceSigner.Sign([]byte("other payload"))
	require.NoError(t, err)
	assert.Error(t, tx.AppendSignature(&Signature{Signer: alice, Sigma: sigma}))

	assert.Error(t, tx.AppendSignature(nil))
}

func TestTamperingBreaksSignatures(t *testing.T) {
	alice, aliceSigner := newParty(t, 1)
	tx := newTestTransaction(t, alice)
	require.NoError(t, tx.SignWith(alice, aliceSigner))
	require.NoError(t, tx.IsFullySigned())

	require.NoError(t, tx.AddOutput(&testState{LinearID: "state-2", Owner: "mallory"}))
	assert.Error(t, tx.IsFullySigned(), "signatures must not survive a payload change")
}

func TestSeal(t *testing.T) {
	alice, aliceSigner := newParty(t, 1)
	notary, notarySigner := newParty(t, 9)
	other, otherSigner := newParty(t, 8)

	tx, err := NewTransactionWithNotary(notary)
	require.NoError(t, err)
	require.NoError(t, tx.AddOutput(&testState{LinearID: "state-1"}))
	require.NoError(t, tx.AddCommand("test", alice))
	require.NoError(t, tx.SignWith(alice, aliceSigner))
	assert.False(t, tx.IsSealed())

	payload, err := tx.SealPayload(7)
	require.NoError(t, err)

	// a seal from the wrong notary is refused
	sigma, err := otherSigner.Sign(payload)
	require.NoError(t, err)
	assert.Error(t, tx.SetSeal(&Seal{Sequence: 7, Notary: other, Sigma: sigma}))

	// a seal over the wrong sequence is refused
	sigma, err = notarySigner.Sign(payload)
	require.NoError(t, err)
	assert.Error(t, tx.SetSeal(&Seal{Sequence: 8, Notary: notary, Sigma: sigma}))

	require.NoError(t, tx.SetSeal(&Seal{Sequence: 7, Notary: notary, Sigma: sigma}))
	assert.True(t, tx.IsSealed())
}
