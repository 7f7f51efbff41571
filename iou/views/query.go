/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package views

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/iou/states"
	"github.com/hyperledger-labs/iou-ledger/platform/ledger"
	"github.com/hyperledger-labs/iou-ledger/platform/view/view"
)

// Query carries the parameters of an IOU lookup
type Query struct {
	// LinearID of the IOU to look up
	LinearID string `json:"linear_id"`
}

// QueryView returns the latest committed version of an IOU from the local vault
type QueryView struct {
	Query
}

func (v *QueryView) Call(context view.Context) (interface{}, error) {
	iouState := &states.IOU{}
	if err := ledger.GetVault(context).GetState(v.LinearID, iouState); err != nil {
		return nil, errors.WithMessagef(err, "failed querying iou [%s]", v.LinearID)
	}
	return iouState, nil
}

type QueryViewFactory struct{}

func (f *QueryViewFactory) NewView(in []byte) (view.View, error) {
	v := &QueryView{}
	if err := json.Unmarshal(in, &v.Query); err != nil {
		return nil, errors.Wrap(err, "failed unmarshalling query parameters")
	}
	return v, nil
}
