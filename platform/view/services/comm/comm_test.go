/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package comm

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

func receive(t *testing.T, s view.Session) *view.Message {
	select {
	case msg := <-s.Receive():
		require.NotNil(t, msg)
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestRoundTrip(t *testing.T) {
	mesh := NewMesh()
	alice, err := mesh.NewHost("alice")
	require.NoError(t, err)
	bob, err := mesh.NewHost("bob")
	require.NoError(t, err)

	out, err := alice.NewSession("initiator-view", "ctx-1", "bob")
	require.NoError(t, err)
	require.NoError(t, out.Send([]byte("ping")))

	// the first message of a fresh session shows up on the master session
	master, err := bob.MasterSession()
	require.NoError(t, err)
	first := receive(t, master)
	assert.Equal(t, "ping", string(first.Payload))
	assert.Equal(t, "initiator-view", first.Caller)
	assert.Equal(t, "alice", first.FromEndpoint)

	in, err := bob.NewSessionWithID(first.SessionID, first.ContextID, first.FromEndpoint, nil)
	require.NoError(t, err)
	// the first message is waiting in the session's own mailbox too
	assert.Equal(t, "ping", string(receive(t, in).Payload))

	require.NoError(t, in.Send([]byte("pong")))
	assert.Equal(t, "pong", string(receive(t, out).Payload))
}

func TestOrderingWithinSession(t *testing.T) {
	mesh := NewMesh()
	alice, err := mesh.NewHost("alice")
	require.NoError(t, err)
	bob, err := mesh.NewHost("bob")
	require.NoError(t, err)

	out, err := alice.NewSession("initiator-view", "ctx-1", "bob")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, out.Send([]byte(fmt.Sprintf("msg-%d", i))))
	}

	master, err := bob.MasterSession()
	require.NoError(t, err)
	first := receive(t, master)
	in, err := bob.NewSessionWithID(first.SessionID, first.ContextID, first.FromEndpoint, nil)
	require.NoError(t, err)

	// binding the mailbox after the fact does not reorder anything
	for i := 0; i < 10; i++ {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), string(receive(t, in).Payload))
	}
}

func TestErrorStatus(t *testing.T) {
	mesh := NewMesh()
	alice, err := mesh.NewHost("alice")
	require.NoError(t, err)
	bob, err := mesh.NewHost("bob")
	require.NoError(t, err)

	out, err := alice.NewSession("initiator-view", "ctx-1", "bob")
	require.NoError(t, err)
	require.NoError(t, out.Send([]byte("ping")))

	master, err := bob.MasterSession()
	require.NoError(t, err)
	first := receive(t, master)
	in, err := bob.NewSessionWithID(first.SessionID, first.ContextID, first.FromEndpoint, nil)
	require.NoError(t, err)
	require.NoError(t, in.SendError([]byte("refused")))

	msg := receive(t, out)
	assert.Equal(t, int32(view.ERROR), msg.Status)
	assert.Equal(t, "refused", string(msg.Payload))
}

func TestClosedSession(t *testing.T) {
	mesh := NewMesh()
	alice, err := mesh.NewHost("alice")
	require.NoError(t, err)
	_, err = mesh.NewHost("bob")
	require.NoError(t, err)

	out, err := alice.NewSession("initiator-view", "ctx-1", "bob")
	require.NoError(t, err)
	out.Close()
	assert.Error(t, out.Send([]byte("ping")))
	assert.True(t, out.Info().Closed)
}

func TestUnknownEndpoint(t *testing.T) {
	mesh := NewMesh()
	alice, err := mesh.NewHost("alice")
	require.NoError(t, err)

	out, err := alice.NewSession("initiator-view", "ctx-1", "nowhere")
	require.NoError(t, err)
	assert.Error(t, out.Send([]byte("ping")))

	_, err = mesh.NewHost("alice")
	assert.Error(t, err, "an endpoint registers once")
}
