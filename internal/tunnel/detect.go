package tunnel

// detectProtocol classifies the first buffered frame by structural
// signature, per spec.md §4.2. Trojan is checked before VLESS because its
// fixed-offset CRLF+command anchor is a stronger signal than the VLESS
// UUID-shape check, which can false-match inside random Shadowsocks
// bodies. Anything that matches neither falls through to Shadowsocks,
// which has no structural signature of its own — it is the catch-all.
func detectProtocol(buf []byte) Protocol {
	if looksLikeTrojan(buf) {
		return ProtocolTrojan
	}
	if looksLikeVLESS(buf) {
		return ProtocolVLESS
	}
	return ProtocolShadowsocks
}

func looksLikeTrojan(buf []byte) bool {
	if len(buf) < 62 {
		return false
	}
	if buf[56] != 0x0D || buf[57] != 0x0A {
		return false
	}
	switch buf[58] {
	case 0x01, 0x03, 0x7F:
	default:
		return false
	}
	switch buf[59] {
	case 0x01, 0x03, 0x04:
	default:
		return false
	}
	return true
}

// looksLikeVLESS matches bytes [1,17) against the textual UUID v4 shape
// xxxxxxxx-xxxx-4xxx-[89ab]xxx-xxxxxxxxxxxx, read as 16 raw bytes (the
// VLESS header has no hyphens on the wire — the "shape" is positional).
func looksLikeVLESS(buf []byte) bool {
	if len(buf) < 17 {
		return false
	}
	id := buf[1:17]
	// byte 6 high nibble must be 4 (version nibble of a v4 UUID)
	if id[6]>>4 != 0x4 {
		return false
	}
	// byte 8 high nibble must be one of 8,9,a,b (variant nibble)
	switch id[8] >> 4 {
	case 0x8, 0x9, 0xA, 0xB:
	default:
		return false
	}
	return true
}
