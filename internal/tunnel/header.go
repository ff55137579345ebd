package tunnel

// parseHeader detects the protocol of the first buffer and dispatches to
// the matching parser, returning the decoded TunnelHeader. Any unknown
// atyp, unsupported cmd, or out-of-bounds slice surfaces as a
// *HeaderError (spec.md §7 "HeaderMalformed").
func parseHeader(buf []byte) (TunnelHeader, error) {
	switch detectProtocol(buf) {
	case ProtocolTrojan:
		return parseTrojan(buf)
	case ProtocolVLESS:
		return parseVLESS(buf)
	default:
		return parseShadowsocks(buf)
	}
}
