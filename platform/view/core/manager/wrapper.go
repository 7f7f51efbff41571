/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package manager

import (
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

// ParentContext is the piece of a context a child context delegates to
type ParentContext interface {
	localContext
}

// childContext scopes a view run inside an existing context.
// It carries its own responder session, initiator and error callbacks,
// everything else is delegated to the parent.
type childContext struct {
	ParentContext

	session            view.Session
	initiator          view.View
	errorCallbackFuncs []func()
}

func (w *childContext) Session() view.Session {
	if w.session == nil {
		return w.ParentContext.Session()
	}
	return w.session
}

func (w *childContext) Initiator() view.View {
	if w.initiator == nil {
		return w.ParentContext.Initiator()
	}
	return w.initiator
}

func (w *childContext) RunView(v view.View, opts ...view.RunViewOption) (interface{}, error) {
	return runViewOn(v, opts, w)
}

func (w *childContext) OnError(f func()) {
	w.errorCallbackFuncs = append(w.errorCallbackFuncs, f)
}

func (w *childContext) cleanup() {
	for _, callbackFunc := range w.errorCallbackFuncs {
		w.safeInvoke(callbackFunc)
	}
}

func (w *childContext) safeInvoke(f func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debugf("callback panicked [%s]", r)
		}
	}()
	f()
}
