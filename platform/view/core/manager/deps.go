/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package manager

import (
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

// SessionFactory is used to create new communication sessions
type SessionFactory interface {
	// NewSession opens a new session towards the passed endpoint
	NewSession(callerViewID string, contextID string, endpoint string) (view.Session, error)

	// NewSessionWithID binds a session to an already established incoming stream
	NewSessionWithID(sessionID, contextID, endpoint string, caller view.Identity) (view.Session, error)

	// DeleteSessions disposes the session with the passed id
	DeleteSessions(sessionID string)
}

// CommLayer gives access to communication sessions and to the master session
// carrying the first message of every incoming session
type CommLayer interface {
	SessionFactory

	// MasterSession returns the session receiving the first message of
	// every session initiated by a remote party
	MasterSession() (view.Session, error)
}

// EndpointService resolves party identities to endpoints and back
type EndpointService interface {
	// Endpoint returns the endpoint the passed party identity listens on
	Endpoint(party view.Identity) (string, error)

	// GetIdentity returns the identity of the party listening at the passed endpoint
	GetIdentity(endpoint string) (view.Identity, error)
}

// IdentityProvider provides the identity of the node itself
type IdentityProvider interface {
	// DefaultIdentity returns the identity of the node itself
	DefaultIdentity() view.Identity
}
