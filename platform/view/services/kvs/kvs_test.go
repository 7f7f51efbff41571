/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package kvs

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestPutGet(t *testing.T) {
	store, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Put("k1", &record{Name: "alice", Count: 7}))

	out := &record{}
	require.NoError(t, store.Get("k1", out))
	assert.Equal(t, &record{Name: "alice", Count: 7}, out)

	ok, err := store.Exists("k1")
	require.NoError(t, err)
	assert.True(t, ok)

	err = store.Get("missing", out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	ok, err = store.Exists("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	store, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Put("k1", 42))
	require.NoError(t, store.Delete("k1"))

	var v int
	assert.True(t, errors.Is(store.Get("k1", &v), ErrNotFound))
}

func TestCompositeKey(t *testing.T) {
	k1, err := CreateCompositeKey("tx", "id-1")
	require.NoError(t, err)
	k2, err := CreateCompositeKey("tx", "id-2")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)

	// attributes cannot smuggle the separator in
	_, err = CreateCompositeKey("tx", "a\x00b")
	assert.Error(t, err)
	_, err = CreateCompositeKey("t\x00x")
	assert.Error(t, err)
}
