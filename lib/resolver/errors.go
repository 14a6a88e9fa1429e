// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by a Resolver after Close.
var ErrClosed = errors.New("resolver: closed")

// InvalidNameError reports a name that cannot be resolved.
type InvalidNameError struct {
	Name   string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid resource name %q: %s", e.Name, e.Reason)
}

// ResourceReadError reports that a claimed resource's bytes could not
// be read.
type ResourceReadError struct {
	Name   string
	Origin string
	Err    error
}

func (e *ResourceReadError) Error() string {
	return fmt.Sprintf("reading %s from %s: %v", e.Name, e.Origin, e.Err)
}

func (e *ResourceReadError) Unwrap() error { return e.Err }
