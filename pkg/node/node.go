/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package node

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-ledger/platform/ledger"
	"github.com/hyperledger-labs/iou-ledger/platform/view/core/manager"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/comm"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/endpoint"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/id"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/kvs"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/registry"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/sig"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

var logger = logging.MustGetLogger("node")

// Options configures a node
type Options struct {
	// Name is the node's endpoint name on the mesh
	Name string
	// Seed, if set, derives the node's signing key deterministically
	Seed []byte
	// StoragePath is where the node persists its store. Empty means in-memory.
	StoragePath string
	// Notary makes this node a notarizing authority
	Notary bool
}

// Node assembles the services of a single party: identity and signing keys,
// the communication host, the key-value store with vault on top, the
// contract and notary registries, and the view manager tying them together.
type Node struct {
	name     string
	me       view.Identity
	signer   sig.Signer
	notary   bool
	registry *registry.ServiceProvider
	manager  *manager.Manager

	endpoints  *endpoint.Service
	identities *id.Provider
	sigService *sig.Service
	contracts  *ledger.ContractRegistry
	notaries   *ledger.NotaryRegistry
	store      *kvs.KVS

	cancel context.CancelFunc
}

// New assembles a node on the passed mesh
func New(mesh *comm.Mesh, opts Options) (*Node, error) {
	if len(opts.Name) == 0 {
		return nil, errors.New("node name cannot be empty")
	}
	var me view.Identity
	var signer sig.Signer
	var err error
	if len(opts.Seed) != 0 {
		me, signer, err = sig.NewSigningIdentityFromSeed(opts.Seed)
	} else {
		me, signer, err = sig.NewSigningIdentity()
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "failed generating identity for [%s]", opts.Name)
	}

	host, err := mesh.NewHost(opts.Name)
	if err != nil {
		return nil, err
	}
	var store *kvs.KVS
	if len(opts.StoragePath) != 0 {
		store, err = kvs.Open(opts.StoragePath)
	} else {
		store, err = kvs.OpenInMemory()
	}
	if err != nil {
		return nil, err
	}

	n := &Node{
		name:       opts.Name,
		me:         me,
		signer:     signer,
		notary:     opts.Notary,
		registry:   registry.New(),
		endpoints:  endpoint.NewService(),
		identities: id.NewProvider(me),
		sigService: sig.NewService(),
		contracts:  ledger.NewContractRegistry(),
		notaries:   ledger.NewNotaryRegistry(),
		store:      store,
	}
	if err := n.sigService.RegisterSigner(me, signer); err != nil {
		return nil, err
	}
	// a node resolves itself like any other peer
	if err := n.endpoints.AddResolver(opts.Name, opts.Name, me); err != nil {
		return nil, err
	}
	n.identities.Bind(opts.Name, me)

	for _, service := range []interface{}{
		n.endpoints,
		n.identities,
		n.sigService,
		n.contracts,
		n.notaries,
		n.store,
		ledger.NewVault(store),
	} {
		if err := n.registry.RegisterService(service); err != nil {
			return nil, err
		}
	}
	n.manager = manager.New(n.registry, host, n.endpoints, n.identities, nil)

	if opts.Notary {
		notaryService := ledger.NewNotaryService(me, signer, store)
		if err := n.registry.RegisterService(notaryService); err != nil {
			return nil, err
		}
		n.manager.RegisterResponder(&ledger.NotarizationView{}, &ledger.OrderingAndFinalityView{})
	}
	logger.Infof("assembled node [%s] with identity [%s]", opts.Name, me)
	return n, nil
}

// Name returns the node's endpoint name
func (n *Node) Name() string {
	return n.name
}

// Identity returns the node's signing identity
func (n *Node) Identity() view.Identity {
	return n.me
}

// IsNotary returns true if this node notarizes
func (n *Node) IsNotary() bool {
	return n.notary
}

// AddPeer makes the passed party known under the passed name.
// The name doubles as the party's endpoint on the mesh.
func (n *Node) AddPeer(name string, identity view.Identity) error {
	if err := n.endpoints.AddResolver(name, name, identity); err != nil {
		return err
	}
	n.identities.Bind(name, identity)
	return nil
}

// AddNotary makes the passed party this node's notarizing authority
func (n *Node) AddNotary(identity view.Identity) error {
	return n.notaries.Add(identity)
}

// RegisterContract binds the passed contract to the passed command name
func (n *Node) RegisterContract(command string, contract ledger.Contract) error {
	return n.contracts.Register(command, contract)
}

// RegisterResponder binds the passed responder view to the passed initiator view
func (n *Node) RegisterResponder(responder view.View, initiatedBy view.View) {
	n.manager.RegisterResponder(responder, initiatedBy)
}

// RegisterViewFactory binds the passed view factory to the passed identifier
func (n *Node) RegisterViewFactory(id string, factory view.Factory) error {
	return n.manager.RegisterFactory(id, factory)
}

// InitiateView runs the passed view as protocol initiator
func (n *Node) InitiateView(v view.View, ctx context.Context) (interface{}, error) {
	return n.manager.InitiateView(v, ctx)
}

// CallView instantiates the view bound to the passed factory identifier and
// runs it as protocol initiator
func (n *Node) CallView(fid string, in []byte, ctx context.Context) (interface{}, error) {
	v, err := n.manager.NewView(fid, in)
	if err != nil {
		return nil, err
	}
	return n.manager.InitiateView(v, ctx)
}

// Start runs the node's dispatch loop until Stop is called or the passed
// context is done
func (n *Node) Start(ctx context.Context) {
	ctx, n.cancel = context.WithCancel(ctx)
	go n.manager.Start(ctx)
}

// Stop terminates the dispatch loop and releases the node's store
func (n *Node) Stop() error {
	if n.cancel != nil {
		n.cancel()
	}
	return n.store.Close()
}
