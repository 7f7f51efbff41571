/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hyperledger-labs/iou-ledger/iou"
	"github.com/hyperledger-labs/iou-ledger/iou/views"
	"github.com/hyperledger-labs/iou-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/comm"
	"github.com/hyperledger-labs/iou-ledger/pkg/node"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "iou-node",
		Short:        "Runs a topology of IOU ledger nodes",
		SilenceUsage: true,
	}
	cmd.AddCommand(newStartCmd())
	return cmd
}

func newStartCmd() *cobra.Command {
	var confPath string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Starts the nodes declared in the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(confPath)
		},
	}
	cmd.Flags().StringVar(&confPath, "conf", "config.yaml", "path to the topology configuration file")
	return cmd
}

func start(confPath string) error {
	conf, err := node.LoadConfig(confPath)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{
		LogSpec: conf.Logging,
		Writer:  os.Stderr,
	})

	mesh := comm.NewMesh()
	nodes := make([]*node.Node, 0, len(conf.Topology))
	for _, nc := range conf.Topology {
		n, err := node.NewFromConfig(mesh, nc)
		if err != nil {
			return err
		}
		nodes = append(nodes, n)
	}
	if err := wire(nodes); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	for _, n := range nodes {
		n.Start(ctx)
	}
	<-ctx.Done()

	for _, n := range nodes {
		if err := n.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "failed stopping node [%s]: %s\n", n.Name(), err)
		}
	}
	return nil
}

// wire makes every node known to every other node and installs the IOU
// business logic on the parties
func wire(nodes []*node.Node) error {
	for _, n := range nodes {
		for _, peer := range nodes {
			if peer == n {
				continue
			}
			if err := n.AddPeer(peer.Name(), peer.Identity()); err != nil {
				return err
			}
			if peer.IsNotary() {
				if err := n.AddNotary(peer.Identity()); err != nil {
					return err
				}
			}
		}
		if n.IsNotary() {
			continue
		}
		if err := n.RegisterContract(iou.IssueCommand, &iou.IssueContract{}); err != nil {
			return err
		}
		n.RegisterResponder(&views.IssueResponderView{}, &views.IssueView{})
		if err := n.RegisterViewFactory("issue", &views.IssueViewFactory{}); err != nil {
			return err
		}
		if err := n.RegisterViewFactory("query", &views.QueryViewFactory{}); err != nil {
			return err
		}
	}
	return nil
}
