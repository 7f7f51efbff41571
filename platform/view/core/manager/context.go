/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package manager

import (
	"context"
	"reflect"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"

	"github.com/hyperledger-labs/iou-ledger/platform/view/services/registry"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/sig"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

type ctx struct {
	context        context.Context
	sp             registry.ServiceLocator
	localSP        *registry.ServiceProvider
	id             string
	session        view.Session
	initiator      view.View
	me             view.Identity
	caller         view.Identity
	resolver       EndpointService
	sessionFactory SessionFactory

	sessionsLock       sync.Mutex
	sessions           map[string]view.Session
	errorCallbackFuncs []func()

	tracer trace.Tracer
}

// NewContextForInitiator returns a fresh context bound to the passed initiator view
func NewContextForInitiator(contextID string, goCtx context.Context, sp registry.ServiceLocator, sessionFactory SessionFactory, resolver EndpointService, party view.Identity, initiator view.View, tracer trace.Tracer) (*ctx, error) {
	if len(contextID) == 0 {
		contextID = uuid.New().String()
	}
	c, err := NewContext(goCtx, sp, contextID, sessionFactory, resolver, party, nil, nil, tracer)
	if err != nil {
		return nil, err
	}
	c.initiator = initiator
	return c, nil
}

// NewContext returns a fresh context, bound to the passed responder session if any
func NewContext(goCtx context.Context, sp registry.ServiceLocator, contextID string, sessionFactory SessionFactory, resolver EndpointService, party view.Identity, session view.Session, caller view.Identity, tracer trace.Tracer) (*ctx, error) {
	c := &ctx{
		context:        goCtx,
		id:             contextID,
		sp:             sp,
		localSP:        registry.New(),
		resolver:       resolver,
		sessionFactory: sessionFactory,
		session:        session,
		me:             party,
		caller:         caller,
		sessions:       map[string]view.Session{},
		tracer:         tracer,
	}
	if session != nil {
		// register the responder session under the caller's identity
		c.sessions[caller.UniqueID()] = session
	}
	return c, nil
}

func (ctx *ctx) ID() string {
	return ctx.id
}

func (ctx *ctx) Initiator() view.View {
	return ctx.initiator
}

func (ctx *ctx) Me() view.Identity {
	return ctx.me
}

func (ctx *ctx) IsMe(id view.Identity) bool {
	return sig.GetService(ctx).IsMe(id)
}

func (ctx *ctx) Caller() view.Identity {
	return ctx.caller
}

func (ctx *ctx) StartSpanFrom(c context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return ctx.tracer.Start(c, name, opts...)
}

func (ctx *ctx) RunView(v view.View, opts ...view.RunViewOption) (res interface{}, err error) {
	return runViewOn(v, opts, ctx)
}

func runViewOn(v view.View, opts []view.RunViewOption, ctx localContext) (res interface{}, err error) {
	options, err := view.CompileRunViewOptions(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed compiling options")
	}
	var initiator view.View
	if options.AsInitiator {
		initiator = v
	}

	newCtx, span := ctx.StartSpanFrom(ctx.Context(), GetName(v), trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	var cc localContext
	if options.SameContext {
		cc = wrapWithGoContext(ctx, newCtx)
	} else {
		cc = &childContext{
			ParentContext: wrapWithGoContext(ctx, newCtx),
			session:       options.Session,
			initiator:     initiator,
		}
	}

	defer func() {
		if r := recover(); r != nil {
			cc.cleanup()
			res = nil

			logger.Errorf("caught panic while running view [%s]: [%v][%s]", GetIdentifier(v), r, debug.Stack())

			switch e := r.(type) {
			case error:
				err = errors.WithMessage(e, "caught panic")
			case string:
				err = errors.New(e)
			default:
				err = errors.Errorf("caught panic [%v]", e)
			}
		}
	}()

	if v == nil {
		return nil, errors.Errorf("no view passed")
	}
	res, err = v.Call(cc)
	span.SetAttributes(attribute.Bool("success", err == nil))
	if err != nil {
		cc.cleanup()
		return nil, err
	}
	return res, err
}

func (ctx *ctx) GetSession(f view.View, party view.Identity) (view.Session, error) {
	ctx.sessionsLock.Lock()
	defer ctx.sessionsLock.Unlock()

	s, ok := ctx.sessions[party.UniqueID()]
	if ok && s.Info().Closed {
		if logger.IsEnabledFor(zapcore.DebugLevel) {
			logger.Debugf("removing session to [%s], it is closed", party)
		}
		delete(ctx.sessions, party.UniqueID())
		ok = false
	}
	if !ok {
		if f == nil {
			return nil, errors.Errorf("a session to [%s] should already exist, passed nil view", party)
		}
		if logger.IsEnabledFor(zapcore.DebugLevel) {
			logger.Debugf("[%s] creating new session to [%s]", ctx.me, party)
		}
		endpoint, err := ctx.resolver.Endpoint(party)
		if err != nil {
			return nil, errors.WithMessagef(err, "cannot resolve [%s]", party)
		}
		s, err = ctx.sessionFactory.NewSession(GetIdentifier(f), ctx.id, endpoint)
		if err != nil {
			return nil, err
		}
		ctx.sessions[party.UniqueID()] = s
	} else {
		if logger.IsEnabledFor(zapcore.DebugLevel) {
			logger.Debugf("[%s] reusing session to [%s]", ctx.me, party)
		}
	}
	return s, nil
}

func (ctx *ctx) Session() view.Session {
	return ctx.session
}

func (ctx *ctx) PutService(service interface{}) error {
	return ctx.localSP.RegisterService(service)
}

func (ctx *ctx) GetService(v interface{}) (interface{}, error) {
	// first search locally then globally
	s, err := ctx.localSP.GetService(v)
	if err == nil {
		return s, nil
	}
	return ctx.sp.GetService(v)
}

func (ctx *ctx) OnError(callback func()) {
	ctx.errorCallbackFuncs = append(ctx.errorCallbackFuncs, callback)
}

func (ctx *ctx) Context() context.Context {
	return ctx.context
}

func (ctx *ctx) Dispose() {
	ctx.sessionsLock.Lock()
	defer ctx.sessionsLock.Unlock()

	if ctx.session != nil {
		ctx.sessionFactory.DeleteSessions(ctx.session.Info().ID)
	}
	for _, s := range ctx.sessions {
		ctx.sessionFactory.DeleteSessions(s.Info().ID)
	}
	ctx.sessions = map[string]view.Session{}
}

func (ctx *ctx) cleanup() {
	logger.Debugf("cleaning up context [%s][%d]", ctx.ID(), len(ctx.errorCallbackFuncs))
	for _, callbackFunc := range ctx.errorCallbackFuncs {
		ctx.safeInvoke(callbackFunc)
	}
}

func (ctx *ctx) safeInvoke(f func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debugf("callback panicked [%s]", r)
		}
	}()
	f()
}

type localContext interface {
	view.Context
	view.MutableContext
	cleanup()
	Dispose()
}

func wrapWithGoContext(ctx localContext, goCtx context.Context) localContext {
	return &tempCtx{localContext: ctx, newCtx: goCtx}
}

type tempCtx struct {
	localContext
	newCtx context.Context
}

func (c *tempCtx) Context() context.Context {
	return c.newCtx
}

// GetIdentifier returns the package-qualified identifier of the passed view
func GetIdentifier(f view.View) string {
	if f == nil {
		return "<nil view>"
	}
	t := reflect.TypeOf(f)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.PkgPath() + "/" + t.Name()
}

// GetName returns the type name of the passed view
func GetName(f view.View) string {
	if f == nil {
		return "<nil view>"
	}
	t := reflect.TypeOf(f)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
