// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package persistindex

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/rootset/lib/codec"
	"github.com/bureau-foundation/rootset/lib/root"
)

// File format: magic(4) + version(4) + body length(8) + CBOR body +
// CRC32C(4) over everything before it.
const (
	fileMagic      = "RSIX"
	fileVersion    = 1
	fileHeaderSize = 16
	fileCRCSize    = 4
	fileSuffix     = ".rsix"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// fileBody is the CBOR payload. The identity is stored to detect hash
// collisions in the file name and hand-copied files.
type fileBody struct {
	Identity root.Identity `cbor:"identity"`
	Snapshot Snapshot      `cbor:"snapshot"`
}

// FileStore keeps one file per root identity under a directory.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore returns a store rooted at dir, creating it if needed.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("persistindex: directory is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Dir returns the directory holding the snapshot files.
func (s *FileStore) Dir() string { return s.dir }

// PathFor returns the file that holds the snapshot for identity.
func (s *FileStore) PathFor(identity root.Identity) string {
	sum := blake3.Sum256([]byte(identity))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:16])+fileSuffix)
}

// Load reads the snapshot for identity.
func (s *FileStore) Load(identity root.Identity) (*Snapshot, error) {
	path := s.PathFor(identity)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading index %s: %w", path, err)
	}

	if len(data) < fileHeaderSize+fileCRCSize {
		return nil, &CorruptError{Identity: identity, Reason: fmt.Sprintf("file too short (%d bytes)", len(data))}
	}
	if magic := string(data[0:4]); magic != fileMagic {
		return nil, &CorruptError{Identity: identity, Reason: fmt.Sprintf("invalid magic %q", magic)}
	}
	if version := binary.LittleEndian.Uint32(data[4:8]); version != fileVersion {
		s.logger.Debug("ignoring index written by another format version",
			"path", path,
			"version", version,
		)
		return nil, nil
	}

	bodyLength := binary.LittleEndian.Uint64(data[8:16])
	if bodyLength != uint64(len(data)-fileHeaderSize-fileCRCSize) {
		return nil, &CorruptError{Identity: identity, Reason: fmt.Sprintf("body length %d does not match file size %d", bodyLength, len(data))}
	}
	crcOffset := len(data) - fileCRCSize
	expected := binary.LittleEndian.Uint32(data[crcOffset:])
	if actual := crc32.Checksum(data[:crcOffset], crc32cTable); actual != expected {
		return nil, &CorruptError{Identity: identity, Reason: fmt.Sprintf("CRC mismatch: expected %08x, got %08x", expected, actual)}
	}

	var body fileBody
	if err := codec.Unmarshal(data[fileHeaderSize:crcOffset], &body); err != nil {
		return nil, &CorruptError{Identity: identity, Reason: "decoding body", Err: err}
	}
	if body.Identity != identity {
		s.logger.Warn("index file belongs to another root",
			"path", path,
			"want", identity,
			"got", body.Identity,
		)
		return nil, nil
	}
	return &body.Snapshot, nil
}

// Save writes the snapshot for identity, replacing any previous one.
// The file is written to a temporary name and renamed into place so
// that concurrent readers never see a partial file.
func (s *FileStore) Save(identity root.Identity, snapshot *Snapshot) error {
	body, err := codec.Marshal(fileBody{Identity: identity, Snapshot: *snapshot})
	if err != nil {
		return fmt.Errorf("encoding index for %s: %w", identity, err)
	}

	data := make([]byte, fileHeaderSize, fileHeaderSize+len(body)+fileCRCSize)
	copy(data[0:4], fileMagic)
	binary.LittleEndian.PutUint32(data[4:8], fileVersion)
	binary.LittleEndian.PutUint64(data[8:16], uint64(len(body)))
	data = append(data, body...)
	data = binary.LittleEndian.AppendUint32(data, crc32.Checksum(data, crc32cTable))

	path := s.PathFor(identity)
	temporary, err := os.CreateTemp(s.dir, ".tmp-*"+fileSuffix)
	if err != nil {
		return fmt.Errorf("creating temporary index file: %w", err)
	}
	temporaryPath := temporary.Name()
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing %s: %w", temporaryPath, err)
	}
	if err := temporary.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing %s: %w", temporaryPath, err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming index into place: %w", err)
	}

	s.logger.Debug("index saved",
		"root", identity,
		"path", path,
		"records", len(snapshot.Records),
	)
	return nil
}
