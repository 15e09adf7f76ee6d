// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package auth

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with an existing row,
// e.g. two concurrent registrations racing on the same username.
var ErrDuplicate = errors.New("duplicate")

// Rejection is a typed authentication or validation failure carrying the
// HTTP status class it must surface with. Rejections are expected outcomes,
// not faults: callers branch on them and handlers serialize them verbatim.
type Rejection struct {
	Status int
	Reason string
}

// Error implements the error interface.
func (r *Rejection) Error() string {
	return fmt.Sprintf("%d: %s", r.Status, r.Reason)
}

// Reject creates a Rejection with the given status class and reason.
func Reject(status int, reason string) *Rejection {
	return &Rejection{Status: status, Reason: reason}
}

// AsRejection unwraps err into a *Rejection if it is one.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
