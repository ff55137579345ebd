package tunnel

import (
	"encoding/base64"
	"strings"
)

// decodeEarlyData decodes the "early data" payload optionally carried in
// the Sec-WebSocket-Protocol request header: base64url, padding-insensitive,
// with '-'/'_' swapped back to '+'/'/' before decoding. An empty header
// yields a nil, no-error result — early data is optional.
func decodeEarlyData(header string) ([]byte, error) {
	if header == "" {
		return nil, nil
	}
	s := strings.ReplaceAll(header, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")
	// Padding-insensitive: strip any padding present, then let
	// RawStdEncoding (which expects none) do the work.
	s = strings.TrimRight(s, "=")
	data, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, headerErrorf("invalid early data: %v", err)
	}
	return data, nil
}
