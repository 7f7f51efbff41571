/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

// View wraps a callable function.
// A view is the unit of work a party runs to play its role in a protocol.
// It suspends by blocking on session receive channels, never by spinning.
type View interface {
	// Call invokes the View on input the passed context.
	// It returns a result and error in case of failure.
	Call(context Context) (interface{}, error)
}

// Factory instantiates an initiator view from its marshalled arguments
type Factory interface {
	// NewView returns an instance of the View interface built using the passed argument
	NewView(in []byte) (View, error)
}
