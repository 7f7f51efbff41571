/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package assert

import (
	"fmt"

	"github.com/test-go/testify/assert"
)

// The helpers in this package panic on failure. Views use them to abort a
// protocol run; the view runner converts the panic into an error returned
// to the caller and, on the responder side, into an error message on the
// session.

type panickier struct{}

func (p *panickier) Errorf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

// NoError checks that the passed error is nil, it panics otherwise
func NoError(err error, msgAndArgs ...interface{}) {
	assert.NoError(&panickier{}, err, msgAndArgs...)
}

// Error checks that the passed error is not nil, it panics otherwise
func Error(err error, msgAndArgs ...interface{}) {
	assert.Error(&panickier{}, err, msgAndArgs...)
}

// Equal checks that actual is as expected, it panics otherwise
func Equal(expected, actual interface{}, msgAndArgs ...interface{}) {
	assert.Equal(&panickier{}, expected, actual, msgAndArgs...)
}

// True checks that the passed value is true, it panics otherwise
func True(value bool, msgAndArgs ...interface{}) {
	assert.True(&panickier{}, value, msgAndArgs...)
}

// False checks that the passed value is false, it panics otherwise
func False(value bool, msgAndArgs ...interface{}) {
	assert.False(&panickier{}, value, msgAndArgs...)
}

// NotNil checks that the passed object is not nil, it panics otherwise
func NotNil(object interface{}, msgAndArgs ...interface{}) {
	assert.NotNil(&panickier{}, object, msgAndArgs...)
}

// Fail panics with the passed failure message
func Fail(failureMessage string, msgAndArgs ...interface{}) {
	assert.Fail(&panickier{}, failureMessage, msgAndArgs...)
}
