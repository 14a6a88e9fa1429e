// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package root

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/rootset/lib/archive"
)

// Kind is the storage type of a root.
type Kind int

const (
	KindDirectory Kind = iota + 1
	KindArchive
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "dir"
	case KindArchive:
		return "archive"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// LockPolicy controls how long archive handles stay open. Directory
// roots ignore it.
type LockPolicy int

const (
	// OpenPerAccess opens the archive for each operation and closes it
	// afterwards. Use it when something else may rewrite or delete the
	// archive while the resolver is alive.
	OpenPerAccess LockPolicy = iota

	// HoldOpen keeps one handle for the lifetime of the Storage.
	HoldOpen
)

func (p LockPolicy) String() string {
	if p == HoldOpen {
		return "hold-open"
	}
	return "open-per-access"
}

// Options configures a Root.
type Options struct {
	Policy LockPolicy

	// ExcludeFromBootstrap makes the root own the directories it
	// contains: a name whose directory exists in this root is never
	// served from the resolver's bootstrap source.
	ExcludeFromBootstrap bool

	// Opener opens archive roots. Nil means archive.DefaultOpener.
	Opener archive.Opener
}

// Root is one ordered storage location. The zero value is not usable;
// construct with New.
type Root struct {
	ordinal              int
	kind                 Kind
	location             string
	policy               LockPolicy
	excludeFromBootstrap bool
	opener               archive.Opener
}

// InvalidRootError reports a location that cannot be used as a root.
type InvalidRootError struct {
	Location string
	Reason   string
	Err      error
}

func (e *InvalidRootError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid root %s: %s: %v", e.Location, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid root %s: %s", e.Location, e.Reason)
}

func (e *InvalidRootError) Unwrap() error { return e.Err }

// New classifies location and returns the Root at the given ordinal.
//
// An existing directory is a directory root. An existing regular file
// must carry a recognized archive extension. A location that does not
// exist yet is an archive root if its name looks like one and a
// directory root otherwise, so that build output directories can be
// listed before the build creates them.
func New(ordinal int, location string, options Options) (*Root, error) {
	if location == "" {
		return nil, &InvalidRootError{Location: location, Reason: "empty location"}
	}
	if ordinal < 0 {
		return nil, &InvalidRootError{Location: location, Reason: fmt.Sprintf("negative ordinal %d", ordinal)}
	}

	canonical, err := canonicalize(location)
	if err != nil {
		return nil, &InvalidRootError{Location: location, Reason: "resolving path", Err: err}
	}

	kind, err := classify(canonical)
	if err != nil {
		return nil, err
	}

	opener := options.Opener
	if opener == nil {
		opener = archive.DefaultOpener
	}

	return &Root{
		ordinal:              ordinal,
		kind:                 kind,
		location:             canonical,
		policy:               options.Policy,
		excludeFromBootstrap: options.ExcludeFromBootstrap,
		opener:               opener,
	}, nil
}

// canonicalize makes location absolute and resolves symlinks when the
// path exists, so two spellings of one location share caches.
func canonicalize(location string) (string, error) {
	absolute, err := filepath.Abs(location)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(absolute)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return absolute, nil
		}
		return "", err
	}
	return resolved, nil
}

func classify(location string) (Kind, error) {
	info, err := os.Stat(location)
	if errors.Is(err, fs.ErrNotExist) {
		if archive.IsArchiveName(location) {
			return KindArchive, nil
		}
		return KindDirectory, nil
	}
	if err != nil {
		return 0, &InvalidRootError{Location: location, Reason: "stat failed", Err: err}
	}

	switch {
	case info.IsDir():
		return KindDirectory, nil
	case info.Mode().IsRegular() && archive.IsArchiveName(location):
		return KindArchive, nil
	case info.Mode().IsRegular():
		return 0, &InvalidRootError{Location: location, Reason: "regular file is not a recognized archive"}
	default:
		return 0, &InvalidRootError{Location: location, Reason: fmt.Sprintf("unsupported file mode %s", info.Mode().Type())}
	}
}

// Ordinal is the resolution priority; lower ordinals win.
func (r *Root) Ordinal() int { return r.ordinal }

// Kind returns the storage type.
func (r *Root) Kind() Kind { return r.kind }

// Location returns the canonical absolute path.
func (r *Root) Location() string { return r.location }

// Policy returns the archive lock policy.
func (r *Root) Policy() LockPolicy { return r.policy }

// ExcludesBootstrap reports whether the root suppresses bootstrap
// fallback for the directories it contains.
func (r *Root) ExcludesBootstrap() bool { return r.excludeFromBootstrap }

// Identity is the stable, process-independent key of a root.
type Identity string

// Identity returns "kind:location".
func (r *Root) Identity() Identity {
	return Identity(r.kind.String() + ":" + r.location)
}

func (r *Root) String() string {
	return fmt.Sprintf("#%d %s", r.ordinal, r.Identity())
}

// Fingerprint identifies an ordered list of roots.
type Fingerprint [32]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:8])
}

// FingerprintOf hashes the identities of roots in order, together with
// each root's lock policy and bootstrap exclusion. Each identity is
// length-prefixed so that no two different lists hash the same
// concatenation.
func FingerprintOf(roots []*Root) Fingerprint {
	hasher := blake3.New()
	var length [8]byte
	for _, r := range roots {
		identity := r.Identity()
		binary.LittleEndian.PutUint64(length[:], uint64(len(identity)))
		hasher.Write(length[:])
		hasher.Write([]byte(identity))
		var flags [2]byte
		flags[0] = byte(r.policy)
		if r.excludeFromBootstrap {
			flags[1] = 1
		}
		hasher.Write(flags[:])
	}
	var fingerprint Fingerprint
	copy(fingerprint[:], hasher.Sum(nil))
	return fingerprint
}
