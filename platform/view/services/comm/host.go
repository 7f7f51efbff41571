/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package comm

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

// Host is the communication endpoint of a single node.
// It hands out sessions to remote hosts and exposes a master session
// carrying the first message of every incoming session.
type Host struct {
	mesh     *Mesh
	endpoint string
	master   *session

	mu        sync.Mutex
	mailboxes map[string]*session
}

func newHost(mesh *Mesh, endpoint string) *Host {
	h := &Host{
		mesh:      mesh,
		endpoint:  endpoint,
		mailboxes: map[string]*session{},
	}
	h.master = newSession(h, "", "", "", "")
	return h
}

// Endpoint returns the endpoint name this host listens on
func (h *Host) Endpoint() string {
	return h.endpoint
}

// MasterSession returns the session receiving the first message of
// every session initiated by a remote party
func (h *Host) MasterSession() (view.Session, error) {
	return h.master, nil
}

// NewSession opens a new session towards the passed endpoint
func (h *Host) NewSession(callerViewID string, contextID string, endpoint string) (view.Session, error) {
	s := newSession(h, uuid.New().String(), contextID, callerViewID, endpoint)
	h.mu.Lock()
	h.mailboxes[s.info.ID] = s
	h.mu.Unlock()
	logger.Debugf("[%s] opened session [%s] to [%s]", h.endpoint, s.info.ID, endpoint)
	return s, nil
}

// NewSessionWithID binds a session to an already established incoming stream.
// The first message, if any, is already queued in the session's mailbox.
func (h *Host) NewSessionWithID(sessionID, contextID, endpoint string, caller view.Identity) (view.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.mailboxes[sessionID]
	if !ok {
		s = newSession(h, sessionID, contextID, "", endpoint)
		h.mailboxes[sessionID] = s
	}
	s.info.Caller = caller
	return s, nil
}

// DeleteSessions drops the mailbox of the passed session
func (h *Host) DeleteSessions(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.mailboxes[sessionID]; ok {
		s.close()
		delete(h.mailboxes, sessionID)
	}
}

func (h *Host) deliver(msg *view.Message) error {
	h.mu.Lock()
	s, ok := h.mailboxes[msg.SessionID]
	if !ok {
		// First message of a fresh incoming session: create the mailbox,
		// queue the message there, and announce it on the master session.
		s = newSession(h, msg.SessionID, msg.ContextID, "", msg.FromEndpoint)
		h.mailboxes[msg.SessionID] = s
		h.mu.Unlock()
		if err := s.enqueue(msg); err != nil {
			return err
		}
		return h.master.enqueue(msg)
	}
	h.mu.Unlock()
	if s.isClosed() {
		return errors.Errorf("session [%s] at [%s] is closed", msg.SessionID, h.endpoint)
	}
	return s.enqueue(msg)
}
