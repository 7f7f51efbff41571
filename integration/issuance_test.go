/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/iou-ledger/iou"
	"github.com/hyperledger-labs/iou-ledger/iou/states"
	"github.com/hyperledger-labs/iou-ledger/iou/views"
	"github.com/hyperledger-labs/iou-ledger/pkg/node"
	"github.com/hyperledger-labs/iou-ledger/platform/ledger"
	"github.com/hyperledger-labs/iou-ledger/platform/ledger/money"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/comm"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

// newNetwork assembles an in-process network of two parties and a notary
func newNetwork(t *testing.T) (alice, bob, noto *node.Node) {
	mesh := comm.NewMesh()
	var err error
	alice, err = node.New(mesh, node.Options{Name: "alice"})
	require.NoError(t, err)
	bob, err = node.New(mesh, node.Options{Name: "bob"})
	require.NoError(t, err)
	noto, err = node.New(mesh, node.Options{Name: "noto", Notary: true})
	require.NoError(t, err)

	nodes := []*node.Node{alice, bob, noto}
	for _, n := range nodes {
		for _, peer := range nodes {
			if peer != n {
				require.NoError(t, n.AddPeer(peer.Name(), peer.Identity()))
			}
		}
	}
	for _, n := range []*node.Node{alice, bob} {
		require.NoError(t, n.AddNotary(noto.Identity()))
		require.NoError(t, n.RegisterContract(iou.IssueCommand, &iou.IssueContract{}))
		n.RegisterResponder(&views.IssueResponderView{}, &views.IssueView{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	for _, n := range nodes {
		n.Start(ctx)
	}
	t.Cleanup(func() {
		cancel()
		for _, n := range nodes {
			_ = n.Stop()
		}
	})
	return alice, bob, noto
}

func queryIOU(t *testing.T, n *node.Node, linearID string) *states.IOU {
	res, err := n.InitiateView(&views.QueryView{Query: views.Query{LinearID: linearID}}, context.Background())
	require.NoError(t, err)
	return res.(*states.IOU)
}

func TestIssuance(t *testing.T) {
	alice, bob, _ := newNetwork(t)

	res, err := alice.InitiateView(&views.IssueView{Issue: views.Issue{
		Amount:   money.MustNew(100, "GBP"),
		Borrower: bob.Identity(),
	}}, context.Background())
	require.NoError(t, err)
	linearID := res.(string)
	require.NotEmpty(t, linearID)

	// both parties hold the same committed IOU
	for _, n := range []*node.Node{alice, bob} {
		iouState := queryIOU(t, n, linearID)
		assert.True(t, iouState.Amount.Equal(money.MustNew(100, "GBP")))
		assert.True(t, iouState.Lender.Equal(alice.Identity()))
		assert.True(t, iouState.Borrower.Equal(bob.Identity()))
		assert.True(t, iouState.Paid.Equal(money.Zero("GBP")))
		assert.Equal(t, linearID, iouState.GetLinearID())
	}
}

func TestSelfLendingFailsBeforeSending(t *testing.T) {
	alice, _, _ := newNetwork(t)

	_, err := alice.InitiateView(&views.IssueView{Issue: views.Issue{
		Amount:   money.MustNew(100, "GBP"),
		Borrower: alice.Identity(),
	}}, context.Background())
	require.Error(t, err)
	assert.True(t, ledger.IsVerificationError(err))
	assert.Contains(t, err.Error(), "The lender and borrower cannot have the same identity.")
}

func TestNonPositiveAmountFailsBeforeSending(t *testing.T) {
	alice, bob, _ := newNetwork(t)

	_, err := alice.InitiateView(&views.IssueView{Issue: views.Issue{
		Amount:   money.Zero("GBP"),
		Borrower: bob.Identity(),
	}}, context.Background())
	require.Error(t, err)
	assert.True(t, ledger.IsVerificationError(err))
	assert.Contains(t, err.Error(), "A newly issued IOU must have a positive amount.")
}

// cappedResponder signs only proposals below its borrowing limit
type cappedResponder struct {
	limit int64
}

func (v *cappedResponder) Call(context view.Context) (interface{}, error) {
	res, err := context.RunView(ledger.NewSignView(func(_ view.Context, tx *ledger.Transaction) error {
		iouState := &states.IOU{}
		if err := tx.GetOutputAt(0, iouState); err != nil {
			return err
		}
		if iouState.Amount.Quantity > v.limit {
			return errors.Errorf("refusing to borrow more than [%d]", v.limit)
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return context.RunView(ledger.NewReceiveFinalityView(res.(*ledger.Transaction)))
}

func TestCounterpartyRejection(t *testing.T) {
	mesh := comm.NewMesh()
	alice, err := node.New(mesh, node.Options{Name: "alice"})
	require.NoError(t, err)
	carol, err := node.New(mesh, node.Options{Name: "carol"})
	require.NoError(t, err)
	noto, err := node.New(mesh, node.Options{Name: "noto", Notary: true})
	require.NoError(t, err)

	nodes := []*node.Node{alice, carol, noto}
	for _, n := range nodes {
		for _, peer := range nodes {
			if peer != n {
				require.NoError(t, n.AddPeer(peer.Name(), peer.Identity()))
			}
		}
	}
	for _, n := range []*node.Node{alice, carol} {
		require.NoError(t, n.AddNotary(noto.Identity()))
		require.NoError(t, n.RegisterContract(iou.IssueCommand, &iou.IssueContract{}))
	}
	carol.RegisterResponder(&cappedResponder{limit: 500}, &views.IssueView{})

	ctx, cancel := context.WithCancel(context.Background())
	for _, n := range nodes {
		n.Start(ctx)
	}
	t.Cleanup(func() {
		cancel()
		for _, n := range nodes {
			_ = n.Stop()
		}
	})

	_, err = alice.InitiateView(&views.IssueView{Issue: views.Issue{
		Amount:   money.MustNew(1000, "GBP"),
		Borrower: carol.Identity(),
	}}, context.Background())
	require.Error(t, err)
	assert.True(t, ledger.IsCounterpartyRejected(err))
	assert.Contains(t, err.Error(), "refusing to borrow more than [500]")

	// below the limit the protocol completes
	res, err := alice.InitiateView(&views.IssueView{Issue: views.Issue{
		Amount:   money.MustNew(400, "GBP"),
		Borrower: carol.Identity(),
	}}, context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, res.(string))
}

// tamperingIssueView skips its own verification and ships an illegal proposal
// straight to the borrower
type tamperingIssueView struct {
	borrower view.Identity
}

func (v *tamperingIssueView) Call(context view.Context) (interface{}, error) {
	iouState := states.New(money.Zero("GBP"), context.Me(), v.borrower)
	tx, err := ledger.NewTransaction(context)
	if err != nil {
		return nil, err
	}
	if err := tx.AddOutput(iouState); err != nil {
		return nil, err
	}
	if err := tx.AddCommand(iou.IssueCommand, iouState.Lender, iouState.Borrower); err != nil {
		return nil, err
	}
	s, err := context.GetSession(context.Initiator(), v.borrower)
	if err != nil {
		return nil, err
	}
	raw, err := tx.Bytes()
	if err != nil {
		return nil, err
	}
	if err := s.Send(raw); err != nil {
		return nil, err
	}
	select {
	case msg := <-s.Receive():
		if msg != nil && msg.Status == view.ERROR {
			return nil, &ledger.CounterpartyRejectedError{Party: v.borrower, Reason: string(msg.Payload)}
		}
		return nil, errors.New("the counterparty signed an unverified proposal")
	case <-time.After(10 * time.Second):
		return nil, errors.New("no answer from the counterparty")
	}
}

func TestResponderVerifiesBeforeSigning(t *testing.T) {
	alice, bob, _ := newNetwork(t)
	bob.RegisterResponder(&views.IssueResponderView{}, &tamperingIssueView{})

	_, err := alice.InitiateView(&tamperingIssueView{borrower: bob.Identity()}, context.Background())
	require.Error(t, err)
	assert.True(t, ledger.IsCounterpartyRejected(err))
	assert.Contains(t, err.Error(), "A newly issued IOU must have a positive amount.")
}

func TestDuplicateIssuancesStayIndependent(t *testing.T) {
	alice, bob, _ := newNetwork(t)

	issue := func() string {
		res, err := alice.InitiateView(&views.IssueView{Issue: views.Issue{
			Amount:   money.MustNew(100, "GBP"),
			Borrower: bob.Identity(),
		}}, context.Background())
		require.NoError(t, err)
		return res.(string)
	}
	first := issue()
	second := issue()
	require.NotEqual(t, first, second, "each issuance tracks its own IOU")

	for _, n := range []*node.Node{alice, bob} {
		assert.True(t, queryIOU(t, n, first).Amount.Equal(money.MustNew(100, "GBP")))
		assert.True(t, queryIOU(t, n, second).Amount.Equal(money.MustNew(100, "GBP")))
	}
}
