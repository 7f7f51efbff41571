/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package session

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

var logger = logging.MustGetLogger("view-sdk.session")

// defaultReceiveTimeout bounds a receive when the caller does not pass one
const defaultReceiveTimeout = 30 * time.Second

type jsonSession struct {
	s       view.Session
	timeout time.Duration
}

// NewJSON returns a JSON-typed wrapper of a fresh session to the passed party
func NewJSON(context view.Context, caller view.View, party view.Identity) (*jsonSession, error) {
	s, err := context.GetSession(caller, party)
	if err != nil {
		return nil, err
	}
	return &jsonSession{s: s, timeout: defaultReceiveTimeout}, nil
}

// JSON returns a JSON-typed wrapper of the context's responder session
func JSON(context view.Context) *jsonSession {
	return &jsonSession{s: context.Session(), timeout: defaultReceiveTimeout}
}

// Session returns the wrapped session
func (j *jsonSession) Session() view.Session {
	return j.s
}

// Send sends the JSON encoding of the passed state
func (j *jsonSession) Send(state interface{}) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "failed marshalling state")
	}
	logger.Debugf("send message of [%d] bytes on session [%s]", len(raw), j.s.Info().ID)
	return j.s.Send(raw)
}

// SendError reports an error to the other endpoint
func (j *jsonSession) SendError(reason string) error {
	return j.s.SendError([]byte(reason))
}

// Receive unmarshals the next message on the session into the passed state.
// An ERROR status message or an expired timeout aborts the receive.
func (j *jsonSession) Receive(state interface{}) error {
	raw, err := j.ReceiveRaw()
	if err != nil {
		return err
	}
	return errors.Wrap(json.Unmarshal(raw, state), "failed unmarshalling state")
}

// ReceiveRaw returns the payload of the next message on the session
func (j *jsonSession) ReceiveRaw() ([]byte, error) {
	timeout := time.NewTimer(j.timeout)
	defer timeout.Stop()

	select {
	case msg := <-j.s.Receive():
		if msg == nil {
			return nil, errors.New("session closed while receiving")
		}
		if msg.Status == view.ERROR {
			return nil, errors.Errorf("received error from remote [%s]", string(msg.Payload))
		}
		return msg.Payload, nil
	case <-timeout.C:
		return nil, errors.New("timeout reached while receiving")
	}
}
