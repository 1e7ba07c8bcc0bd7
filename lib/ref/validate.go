// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

func parseMatrixID(matrixID string) (localpart, server string, err error) {
	return parsePrefixedID(matrixID, '@', "Matrix user ID")
}

// parsePrefixedID splits sigil+localpart:server. The localpart ends at
// the first colon; the server keeps any later ones (ports).
func parsePrefixedID(identifier string, sigil byte, kind string) (localpart, server string, err error) {
	if identifier == "" || identifier[0] != sigil {
		return "", "", fmt.Errorf("invalid %s %q: must start with %c", kind, identifier, sigil)
	}
	localpart, server, found := strings.Cut(identifier[1:], ":")
	switch {
	case !found:
		return "", "", fmt.Errorf("invalid %s %q: missing :server", kind, identifier)
	case localpart == "":
		return "", "", fmt.Errorf("invalid %s %q: empty localpart", kind, identifier)
	case server == "":
		return "", "", fmt.Errorf("invalid %s %q: empty server", kind, identifier)
	}
	return localpart, server, nil
}
