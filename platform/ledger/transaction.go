/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"encoding/binary"
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/platform/view/services/sig"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

// LinearState is a state tracked across transactions by a stable linear identifier
type LinearState interface {
	// GetLinearID returns the linear identifier of this state
	GetLinearID() string
}

// StateRef points to the output of a previously committed transaction
type StateRef struct {
	TxID     string `json:"tx_id"`
	Index    int    `json:"index"`
	LinearID string `json:"linear_id"`
}

func (r StateRef) String() string {
	return r.TxID + ":" + r.LinearID
}

// RawState is the serialized form of an output state
type RawState struct {
	Type     string          `json:"type"`
	LinearID string          `json:"linear_id"`
	Raw      json.RawMessage `json:"raw"`
}

// Command names the operation a transaction performs and the identities
// required to sign it
type Command struct {
	Name    string          `json:"name"`
	Signers []view.Identity `json:"signers"`
}

// Signature is a party's signature over the transaction payload
type Signature struct {
	Signer view.Identity `json:"signer"`
	Sigma  []byte        `json:"sigma"`
}

// Seal is the notary's uniqueness stamp: a monotonically assigned sequence
// number and the notary's signature over payload and sequence
type Seal struct {
	Sequence uint64        `json:"sequence"`
	Notary   view.Identity `json:"notary"`
	Sigma    []byte        `json:"sigma"`
}

// Transaction is a proposed ledger update: inputs consumed, outputs created,
// a single command, the identities required to sign, and the designated
// notary. It becomes final once fully signed and sealed.
type Transaction struct {
	ID         string        `json:"id"`
	Notary     view.Identity `json:"notary,omitempty"`
	Inputs     []StateRef    `json:"inputs,omitempty"`
	Outputs    []RawState    `json:"outputs,omitempty"`
	Command    *Command      `json:"command,omitempty"`
	Signatures []*Signature  `json:"signatures,omitempty"`
	Seal       *Seal         `json:"seal,omitempty"`
}

// NewTransactionFromBytes unmarshals a transaction from its wire form
func NewTransactionFromBytes(raw []byte) (*Transaction, error) {
	tx := &Transaction{}
	if err := json.Unmarshal(raw, tx); err != nil {
		return nil, errors.Wrap(err, "failed unmarshalling transaction")
	}
	if len(tx.ID) == 0 {
		return nil, errors.New("transaction carries no id")
	}
	return tx, nil
}

// Bytes returns the wire form of this transaction
func (t *Transaction) Bytes() ([]byte, error) {
	raw, err := json.Marshal(t)
	return raw, errors.Wrap(err, "failed marshalling transaction")
}

// AddCommand sets the transaction's command.
// A transaction carries exactly one command.
func (t *Transaction) AddCommand(name string, signers ...view.Identity) error {
	if t.Command != nil {
		return errors.Errorf("transaction [%s] already carries command [%s]", t.ID, t.Command.Name)
	}
	if len(name) == 0 {
		return errors.New("command name cannot be empty")
	}
	t.Command = &Command{Name: name, Signers: signers}
	return nil
}

// AddInput appends a reference to a state this transaction consumes
func (t *Transaction) AddInput(ref StateRef) {
	t.Inputs = append(t.Inputs, ref)
}

// AddOutput appends the passed state to the transaction's outputs
func (t *Transaction) AddOutput(state LinearState) error {
	if len(state.GetLinearID()) == 0 {
		return errors.New("output state carries no linear id")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "failed marshalling output state")
	}
	t.Outputs = append(t.Outputs, RawState{
		Type:     stateType(state),
		LinearID: state.GetLinearID(),
		Raw:      raw,
	})
	return nil
}

// NumInputs returns the number of inputs this transaction consumes
func (t *Transaction) NumInputs() int {
	return len(t.Inputs)
}

// NumOutputs returns the number of outputs this transaction creates
func (t *Transaction) NumOutputs() int {
	return len(t.Outputs)
}

// GetOutputAt unmarshals the output at the passed index into the passed state
func (t *Transaction) GetOutputAt(index int, state LinearState) error {
	if index < 0 || index >= len(t.Outputs) {
		return errors.Errorf("output index [%d] out of range [0,%d)", index, len(t.Outputs))
	}
	if expected, actual := t.Outputs[index].Type, stateType(state); expected != actual {
		return errors.Errorf("output at [%d] is of type [%s], not [%s]", index, expected, actual)
	}
	return errors.Wrapf(json.Unmarshal(t.Outputs[index].Raw, state), "failed unmarshalling output at [%d]", index)
}

// RequiredSigners returns the identities the command requires to sign
func (t *Transaction) RequiredSigners() []view.Identity {
	if t.Command == nil {
		return nil
	}
	return t.Command.Signers
}

// SignaturePayload returns the canonical bytes every required signer signs:
// the transaction without signatures and seal.
func (t *Transaction) SignaturePayload() ([]byte, error) {
	raw, err := json.Marshal(&Transaction{
		ID:      t.ID,
		Notary:  t.Notary,
		Inputs:  t.Inputs,
		Outputs: t.Outputs,
		Command: t.Command,
	})
	return raw, errors.Wrap(err, "failed marshalling signature payload")
}

// SealPayload returns the bytes the notary signs: the signature payload
// followed by the assigned sequence number.
func (t *Transaction) SealPayload(sequence uint64) ([]byte, error) {
	payload, err := t.SignaturePayload()
	if err != nil {
		return nil, err
	}
	seq := make([]byte, 8)
	binary.BigEndian.PutUint64(seq, sequence)
	return append(payload, seq...), nil
}

// SignWith signs the transaction payload with the passed signer and appends
// the resulting signature
func (t *Transaction) SignWith(signer view.Identity, s sig.Signer) error {
	if t.HasSignatureFrom(signer) {
		return nil
	}
	payload, err := t.SignaturePayload()
	if err != nil {
		return err
	}
	sigma, err := s.Sign(payload)
	if err != nil {
		return errors.Wrapf(err, "failed signing transaction [%s]", t.ID)
	}
	t.Signatures = append(t.Signatures, &Signature{Signer: signer, Sigma: sigma})
	return nil
}

// AppendSignature verifies the passed signature against the transaction
// payload and appends it
func (t *Transaction) AppendSignature(signature *Signature) error {
	if signature == nil || signature.Signer.IsNone() {
		return errors.New("signature carries no signer")
	}
	if !t.isRequiredSigner(signature.Signer) {
		return errors.Errorf("signer [%s] is not required by transaction [%s]", signature.Signer, t.ID)
	}
	payload, err := t.SignaturePayload()
	if err != nil {
		return err
	}
	verifier, err := sig.NewVerifier(signature.Signer)
	if err != nil {
		return err
	}
	if err := verifier.Verify(payload, signature.Sigma); err != nil {
		return errors.Wrapf(err, "invalid signature from [%s] on transaction [%s]", signature.Signer, t.ID)
	}
	if t.HasSignatureFrom(signature.Signer) {
		return nil
	}
	t.Signatures = append(t.Signatures, signature)
	return nil
}

// HasSignatureFrom returns true if the passed identity already signed
func (t *Transaction) HasSignatureFrom(signer view.Identity) bool {
	for _, s := range t.Signatures {
		if s.Signer.Equal(signer) {
			return true
		}
	}
	return false
}

// IsFullySigned checks that every required signer contributed a valid
// signature and no one else did
func (t *Transaction) IsFullySigned() error {
	if t.Command == nil {
		return errors.Errorf("transaction [%s] carries no command", t.ID)
	}
	payload, err := t.SignaturePayload()
	if err != nil {
		return err
	}
	for _, signer := range t.Command.Signers {
		found := false
		for _, s := range t.Signatures {
			if !s.Signer.Equal(signer) {
				continue
			}
			verifier, err := sig.NewVerifier(s.Signer)
			if err != nil {
				return err
			}
			if err := verifier.Verify(payload, s.Sigma); err != nil {
				return errors.Wrapf(err, "invalid signature from [%s] on transaction [%s]", s.Signer, t.ID)
			}
			found = true
			break
		}
		if !found {
			return errors.Errorf("transaction [%s] misses the signature of [%s]", t.ID, signer)
		}
	}
	for _, s := range t.Signatures {
		if !t.isRequiredSigner(s.Signer) {
			return errors.Errorf("transaction [%s] carries a signature from [%s], which is not required", t.ID, s.Signer)
		}
	}
	return nil
}

// SetSeal verifies the passed seal and attaches it to the transaction
func (t *Transaction) SetSeal(seal *Seal) error {
	if seal == nil {
		return errors.New("seal cannot be nil")
	}
	if !seal.Notary.Equal(t.Notary) {
		return errors.Errorf("seal on transaction [%s] was produced by [%s], not by the designated notary [%s]", t.ID, seal.Notary, t.Notary)
	}
	payload, err := t.SealPayload(seal.Sequence)
	if err != nil {
		return err
	}
	verifier, err := sig.NewVerifier(seal.Notary)
	if err != nil {
		return err
	}
	if err := verifier.Verify(payload, seal.Sigma); err != nil {
		return errors.Wrapf(err, "invalid seal on transaction [%s]", t.ID)
	}
	t.Seal = seal
	return nil
}

// IsSealed returns true if the transaction carries a verified notary seal
func (t *Transaction) IsSealed() bool {
	return t.Seal != nil
}

func (t *Transaction) isRequiredSigner(id view.Identity) bool {
	for _, signer := range t.RequiredSigners() {
		if signer.Equal(id) {
			return true
		}
	}
	return false
}

func stateType(state interface{}) string {
	typ := reflect.TypeOf(state)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return typ.PkgPath() + "/" + typ.Name()
}
