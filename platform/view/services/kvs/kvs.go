/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package kvs

import (
	"encoding/json"
	"strings"

	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/iou-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-ledger/platform/view/services/registry"
)

var logger = logging.MustGetLogger("view-sdk.kvs")

// ErrNotFound is returned when the requested key does not exist
var ErrNotFound = errors.New("key not found")

const compositeKeyNamespace = "\x00"

// KVS is a persistent key-value store with JSON-encoded values.
type KVS struct {
	db *badger.DB
}

// Open returns a KVS backed by a badger store at the passed path
func Open(path string) (*KVS, error) {
	if len(path) == 0 {
		return nil, errors.New("path cannot be empty")
	}
	opt := badger.DefaultOptions(path)
	opt.Logger = nil
	db, err := badger.Open(opt)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open badger store at [%s]", path)
	}
	logger.Debugf("opened badger store at [%s]", path)
	return &KVS{db: db}, nil
}

// OpenInMemory returns a KVS backed by an in-memory badger store
func OpenInMemory() (*KVS, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, errors.Wrap(err, "could not open in-memory badger store")
	}
	return &KVS{db: db}, nil
}

func (k *KVS) Close() error {
	return errors.Wrap(k.db.Close(), "could not close badger store")
}

// Put stores the JSON encoding of the passed value under the passed key
func (k *KVS) Put(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "cannot marshal value for key [%s]", key)
	}
	err = k.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
	return errors.Wrapf(err, "cannot write key [%s]", key)
}

// Get unmarshals the value stored under the passed key into the passed value.
// It returns ErrNotFound if the key does not exist.
func (k *KVS) Get(key string, v interface{}) error {
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return errors.Wrapf(ErrNotFound, "[%s]", key)
			}
			return err
		}
		return item.Value(func(raw []byte) error {
			return json.Unmarshal(raw, v)
		})
	})
	return errors.Wrapf(err, "cannot read key [%s]", key)
}

// Exists returns true if the passed key exists
func (k *KVS) Exists(key string) (bool, error) {
	err := k.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, errors.Wrapf(err, "cannot check key [%s]", key)
	}
	return true, nil
}

// Delete removes the passed key
func (k *KVS) Delete(key string) error {
	err := k.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return errors.Wrapf(err, "cannot delete key [%s]", key)
}

// CreateCompositeKey assembles a key from the passed object type and attributes
func CreateCompositeKey(objectType string, attributes ...string) (string, error) {
	if err := validateKeyPart(objectType); err != nil {
		return "", errors.Wrapf(err, "invalid object type [%s]", objectType)
	}
	ck := compositeKeyNamespace + objectType + compositeKeyNamespace
	for _, attr := range attributes {
		if err := validateKeyPart(attr); err != nil {
			return "", errors.Wrapf(err, "invalid attribute [%s]", attr)
		}
		ck += attr + compositeKeyNamespace
	}
	return ck, nil
}

func validateKeyPart(part string) error {
	if strings.Contains(part, compositeKeyNamespace) {
		return errors.New("key part cannot contain the composite key separator")
	}
	return nil
}

// GetService returns the kvs registered in the passed provider.
// It panics, if no instance is found.
func GetService(sp registry.ServiceLocator) *KVS {
	s, err := sp.GetService(&KVS{})
	if err != nil {
		panic(err)
	}
	return s.(*KVS)
}
