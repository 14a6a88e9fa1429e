// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"fmt"
	"io/fs"
	"strings"
	"unicode"
)

// escapeCharacters appear only in names that were escaped or carry a
// URL query or fragment.
const escapeCharacters = `%\#?`

// normalizeName strips one leading slash and validates the rest.
func normalizeName(name string, allowUnescaped bool) (string, error) {
	normalized := strings.TrimPrefix(name, "/")
	if normalized == "" || normalized == "." {
		return "", &InvalidNameError{Name: name, Reason: "empty name"}
	}
	if !fs.ValidPath(normalized) {
		return "", &InvalidNameError{Name: name, Reason: "not a clean relative path"}
	}
	if allowUnescaped {
		return normalized, nil
	}
	for _, character := range normalized {
		switch {
		case unicode.IsSpace(character):
			return "", &InvalidNameError{Name: name, Reason: "contains whitespace"}
		case unicode.IsControl(character):
			return "", &InvalidNameError{Name: name, Reason: "contains a control character"}
		case strings.ContainsRune(escapeCharacters, character):
			return "", &InvalidNameError{Name: name, Reason: fmt.Sprintf("contains %q", character)}
		}
	}
	return normalized, nil
}
