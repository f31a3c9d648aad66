// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// Characters fields are UTF-16, big-endian, prefixed with a byte order mark.
// Decoding honours a BOM when present and assumes big-endian otherwise.
var utf16BOM = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

func encodeCharacters(s string) ([]byte, error) {
	b, err := utf16BOM.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("protocol: encode characters: %w", err)
	}
	return b, nil
}

func decodeCharacters(b []byte) (string, error) {
	s, err := utf16BOM.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: characters: %v", ErrDecode, err)
	}
	return string(s), nil
}
