/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package manager

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zapcore"

	"github.com/hyperledger-labs/iou-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/registry"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

var logger = logging.MustGetLogger("view-sdk.manager")

type viewEntry struct {
	View      view.View
	Initiator bool
}

type disposableContext interface {
	view.Context
	Dispose()
}

// Manager runs views. It keeps one context per in-flight protocol instance,
// dispatches incoming first messages to the registered responder views, and
// converts view panics into errors.
type Manager struct {
	sp registry.ServiceLocator

	commLayer        CommLayer
	endpointService  EndpointService
	identityProvider IdentityProvider

	ctx context.Context

	viewsSync    sync.RWMutex
	factoriesSync sync.RWMutex
	contextsSync sync.RWMutex

	contexts   map[string]disposableContext
	views      map[string][]*viewEntry
	initiators map[string]string
	factories  map[string]view.Factory

	tracer trace.Tracer
}

func New(sp registry.ServiceLocator, commLayer CommLayer, endpointService EndpointService, identityProvider IdentityProvider, tracerProvider trace.TracerProvider) *Manager {
	if tracerProvider == nil {
		tracerProvider = noop.NewTracerProvider()
	}
	return &Manager{
		sp:               sp,
		commLayer:        commLayer,
		endpointService:  endpointService,
		identityProvider: identityProvider,

		contexts:   map[string]disposableContext{},
		views:      map[string][]*viewEntry{},
		initiators: map[string]string{},
		factories:  map[string]view.Factory{},

		tracer: tracerProvider.Tracer("view"),
	}
}

// RegisterFactory binds the passed factory to the passed view identifier
func (cm *Manager) RegisterFactory(id string, factory view.Factory) error {
	if logger.IsEnabledFor(zapcore.DebugLevel) {
		logger.Debugf("register view factory [%s]", id)
	}
	cm.factoriesSync.Lock()
	defer cm.factoriesSync.Unlock()
	cm.factories[id] = factory
	return nil
}

// NewView instantiates the initiator view bound to the passed identifier
func (cm *Manager) NewView(id string, in []byte) (f view.View, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("new view triggered panic: %s\n%s\n", r, debug.Stack())
			err = errors.Errorf("failed creating view [%s]", r)
		}
	}()

	cm.factoriesSync.RLock()
	factory, ok := cm.factories[id]
	cm.factoriesSync.RUnlock()
	if !ok {
		return nil, errors.Errorf("no factory found for id [%s]", id)
	}
	return factory.NewView(in)
}

// RegisterResponder binds the passed responder view to the passed initiator view:
// when a remote party runs the initiator, this node runs the responder.
func (cm *Manager) RegisterResponder(responder view.View, initiatedBy view.View) {
	cm.viewsSync.Lock()
	defer cm.viewsSync.Unlock()

	responderID := GetIdentifier(responder)
	initiatedByID := GetIdentifier(initiatedBy)
	logger.Debugf("registering responder [%s] for initiator [%s]", responderID, initiatedByID)

	cm.views[responderID] = append(cm.views[responderID], &viewEntry{View: responder, Initiator: len(initiatedByID) == 0})
	cm.initiators[initiatedByID] = responderID
}

// InitiateView runs the passed view as protocol initiator and waits for its result
func (cm *Manager) InitiateView(v view.View, goCtx context.Context) (interface{}, error) {
	if goCtx == nil {
		goCtx = context.Background()
	}
	viewContext, err := NewContextForInitiator("", goCtx, cm.sp, cm.commLayer, cm.endpointService, cm.me(), v, cm.tracer)
	if err != nil {
		return nil, err
	}
	childContext := &childContext{ParentContext: viewContext}
	cm.contextsSync.Lock()
	cm.contexts[childContext.ID()] = childContext
	cm.contextsSync.Unlock()
	defer cm.deleteContext(childContext.ID())

	if logger.IsEnabledFor(zapcore.DebugLevel) {
		logger.Debugf("[%s] initiate view [%s], context [%s]", cm.me(), GetIdentifier(v), childContext.ID())
	}
	res, err := childContext.RunView(v)
	if err != nil {
		if logger.IsEnabledFor(zapcore.DebugLevel) {
			logger.Debugf("[%s] initiate view [%s], context [%s] failed [%s]", cm.me(), GetIdentifier(v), childContext.ID(), err)
		}
		return nil, err
	}
	return res, nil
}

// Start runs the dispatch loop on the master session until the passed context is done
func (cm *Manager) Start(ctx context.Context) {
	cm.contextsSync.Lock()
	cm.ctx = ctx
	cm.contextsSync.Unlock()
	session, err := cm.commLayer.MasterSession()
	if err != nil {
		logger.Errorf("failed getting the master session [%s]", err)
		return
	}
	ch := session.Receive()
	for {
		select {
		case msg := <-ch:
			go cm.callView(msg)
		case <-ctx.Done():
			logger.Debugf("received done signal, stopping the dispatch loop")
			return
		}
	}
}

func (cm *Manager) existResponderForCaller(caller string) (view.View, error) {
	cm.viewsSync.RLock()
	defer cm.viewsSync.RUnlock()

	label, ok := cm.initiators[caller]
	if !ok {
		return nil, errors.Errorf("no view found initiatable by [%s]", caller)
	}
	var res *viewEntry
	for _, entry := range cm.views[label] {
		if !entry.Initiator {
			res = entry
		}
	}
	if res == nil {
		return nil, errors.Errorf("responder not found for [%s]", label)
	}
	return res.View, nil
}

func (cm *Manager) callView(msg *view.Message) {
	responder, err := cm.existResponderForCaller(msg.Caller)
	if err != nil {
		logger.Errorf("[%s] no responder exists for [%s]: [%s]", cm.me(), msg.String(), err)
		return
	}

	if _, err := cm.respond(responder, msg); err != nil {
		logger.Errorf("failed responding [%s, %s]: [%s]", GetIdentifier(responder), msg.String(), err)
	}
}

func (cm *Manager) respond(responder view.View, msg *view.Message) (ctx view.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("respond triggered panic: %s\n%s\n", r, debug.Stack())
			err = errors.Errorf("failed responding [%s]", r)
		}
	}()

	if logger.IsEnabledFor(zapcore.DebugLevel) {
		logger.Debugf("[%s] respond [from:%s], [session:%s], [context:%s], [view:%s]", cm.me(), msg.FromEndpoint, msg.SessionID, msg.ContextID, GetIdentifier(responder))
	}

	ctx, isNew, err := cm.newContext(msg)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed getting context for [%s]", msg.ContextID)
	}
	_, err = ctx.RunView(responder)
	if err != nil {
		// surface the error to the initiator before tearing the context down
		if sendErr := ctx.Session().SendError([]byte(err.Error())); sendErr != nil {
			logger.Errorf("failed sending error back to the initiator [%s]", sendErr)
		}
	}
	if isNew {
		cm.deleteContext(ctx.ID())
	}
	return ctx, err
}

func (cm *Manager) newContext(msg *view.Message) (disposableContext, bool, error) {
	cm.contextsSync.Lock()
	defer cm.contextsSync.Unlock()

	caller, err := cm.endpointService.GetIdentity(msg.FromEndpoint)
	if err != nil {
		return nil, false, err
	}

	if viewContext, ok := cm.contexts[msg.ContextID]; ok {
		if logger.IsEnabledFor(zapcore.DebugLevel) {
			logger.Debugf("[%s] reuse context [%s] to respond", cm.me(), msg.ContextID)
		}
		return viewContext, false, nil
	}

	if logger.IsEnabledFor(zapcore.DebugLevel) {
		logger.Debugf("[%s] create new context [%s] to respond", cm.me(), msg.ContextID)
	}
	backend, err := cm.commLayer.NewSessionWithID(msg.SessionID, msg.ContextID, msg.FromEndpoint, caller)
	if err != nil {
		return nil, false, err
	}
	goCtx := cm.ctx
	if goCtx == nil {
		goCtx = context.Background()
	}
	newCtx, err := NewContext(goCtx, cm.sp, msg.ContextID, cm.commLayer, cm.endpointService, cm.me(), backend, caller, cm.tracer)
	if err != nil {
		return nil, false, err
	}
	childContext := &childContext{ParentContext: newCtx}
	cm.contexts[msg.ContextID] = childContext
	return childContext, true, nil
}

func (cm *Manager) deleteContext(contextID string) {
	cm.contextsSync.Lock()
	defer cm.contextsSync.Unlock()
	if context, ok := cm.contexts[contextID]; ok {
		context.Dispose()
		delete(cm.contexts, contextID)
	}
}

func (cm *Manager) me() view.Identity {
	return cm.identityProvider.DefaultIdentity()
}
