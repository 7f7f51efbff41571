/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package comm

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

// mailboxSize bounds the number of in-flight messages per session
const mailboxSize = 128

type session struct {
	host      *Host
	contextID string
	ch        chan *view.Message

	mu     sync.RWMutex
	info   view.SessionInfo
	closed bool
}

func newSession(host *Host, id, contextID, callerViewID, endpoint string) *session {
	return &session{
		host:      host,
		contextID: contextID,
		ch:        make(chan *view.Message, mailboxSize),
		info: view.SessionInfo{
			ID:           id,
			CallerViewID: callerViewID,
			Endpoint:     endpoint,
		},
	}
}

func (s *session) Info() view.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := s.info
	info.Closed = s.closed
	return info
}

func (s *session) Send(payload []byte) error {
	return s.send(payload, view.OK)
}

func (s *session) SendError(payload []byte) error {
	return s.send(payload, view.ERROR)
}

func (s *session) send(payload []byte, status int32) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return errors.Errorf("session [%s] is closed", s.info.ID)
	}
	endpoint := s.info.Endpoint
	msg := &view.Message{
		SessionID:    s.info.ID,
		ContextID:    s.contextID,
		Caller:       s.info.CallerViewID,
		FromEndpoint: s.host.endpoint,
		Status:       status,
		Payload:      payload,
	}
	s.mu.RUnlock()
	if len(endpoint) == 0 {
		return errors.Errorf("session [%s] has no remote endpoint", s.info.ID)
	}
	return s.host.mesh.route(endpoint, msg)
}

func (s *session) Receive() <-chan *view.Message {
	return s.ch
}

func (s *session) Close() {
	s.host.DeleteSessions(s.info.ID)
}

func (s *session) enqueue(msg *view.Message) error {
	if s.isClosed() {
		return errors.Errorf("session [%s] is closed", s.info.ID)
	}
	select {
	case s.ch <- msg:
		return nil
	default:
		return errors.Errorf("session [%s] mailbox is full", s.info.ID)
	}
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
