// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package indexer

import "github.com/bureau-foundation/rootset/lib/root"

// CachingCondition decides per root whether lookups may be memoized.
type CachingCondition interface {
	ShouldCache(r *root.Root) bool
}

// CachingConditionFunc adapts a function to CachingCondition.
type CachingConditionFunc func(r *root.Root) bool

func (f CachingConditionFunc) ShouldCache(r *root.Root) bool { return f(r) }

// AlwaysCache permits caching for every root.
var AlwaysCache CachingCondition = CachingConditionFunc(func(*root.Root) bool { return true })

// NeverCache forbids caching for every root.
var NeverCache CachingCondition = CachingConditionFunc(func(*root.Root) bool { return false })
