/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package registry

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// ErrServiceNotFound is returned when no registered service matches the request
var ErrServiceNotFound = errors.New("service not found")

// ServiceProvider is a type-indexed registry of services.
// Lookups match either the concrete type or any interface the service implements.
type ServiceProvider struct {
	services   []interface{}
	serviceMap map[reflect.Type]interface{}
	lock       sync.Mutex
}

func New() *ServiceProvider {
	return &ServiceProvider{
		services:   []interface{}{},
		serviceMap: map[reflect.Type]interface{}{},
	}
}

// GetService returns the service assignable to the type of the passed value.
// The passed value is expected to be a pointer to either a struct or an interface.
func (sp *ServiceProvider) GetService(v interface{}) (interface{}, error) {
	sp.lock.Lock()
	defer sp.lock.Unlock()

	var typ reflect.Type
	switch t := v.(type) {
	case reflect.Type:
		typ = t
	default:
		typ = reflect.TypeOf(v)
	}
	if typ.Kind() != reflect.Struct {
		typ = typ.Elem()
	}

	if service, ok := sp.serviceMap[typ]; ok {
		return service, nil
	}

	switch typ.Kind() {
	case reflect.Interface:
		for _, s := range sp.services {
			if reflect.TypeOf(s).Implements(typ) {
				sp.serviceMap[typ] = s
				return s, nil
			}
		}
	default:
		for _, s := range sp.services {
			if typ.AssignableTo(reflect.TypeOf(s).Elem()) {
				sp.serviceMap[typ] = s
				return s, nil
			}
		}
	}
	return nil, errors.Wrapf(ErrServiceNotFound, "[%s/%s]", typ.PkgPath(), typ.Name())
}

// RegisterService adds the passed service to the registry
func (sp *ServiceProvider) RegisterService(service interface{}) error {
	sp.lock.Lock()
	defer sp.lock.Unlock()
	sp.services = append(sp.services, service)
	return nil
}

// ServiceLocator is the lookup side of a service provider
type ServiceLocator interface {
	GetService(v interface{}) (interface{}, error)
}
