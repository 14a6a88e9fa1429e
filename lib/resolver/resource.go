// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"io/fs"
	"sync"

	"github.com/bureau-foundation/rootset/lib/root"
)

// BootstrapOrigin is the Origin of resources served from the bootstrap
// filesystem.
const BootstrapOrigin = "bootstrap"

// Resource is a resolved name. Its bytes are read on the first call to
// Bytes and kept.
type Resource struct {
	// Name is the normalized name that was resolved.
	Name string

	// Root is the root that claimed the name, nil for bootstrap
	// resources.
	Root *root.Root

	read func() ([]byte, error)

	once    sync.Once
	content []byte
	err     error
}

// NewResource returns a resource whose bytes come from read. Fallback
// implementations use it to hand resources to a Resolver.
func NewResource(name string, origin *root.Root, read func() ([]byte, error)) *Resource {
	return &Resource{Name: name, Root: origin, read: read}
}

func rootResource(name string, storage *root.Storage) *Resource {
	return NewResource(name, storage.Root(), func() ([]byte, error) {
		return storage.ReadFile(name)
	})
}

func bootstrapResource(name string, bootstrap fs.FS) *Resource {
	return NewResource(name, nil, func() ([]byte, error) {
		return fs.ReadFile(bootstrap, name)
	})
}

// Origin describes where the resource was found: the root's identity
// or BootstrapOrigin.
func (r *Resource) Origin() string {
	if r.Root == nil {
		return BootstrapOrigin
	}
	return string(r.Root.Identity())
}

// Bytes returns the resource content. A failure is returned as a
// *ResourceReadError and is remembered; the resource is not re-read.
func (r *Resource) Bytes() ([]byte, error) {
	r.once.Do(func() {
		content, err := r.read()
		if err != nil {
			r.err = &ResourceReadError{Name: r.Name, Origin: r.Origin(), Err: err}
			return
		}
		r.content = content
	})
	return r.content, r.err
}
