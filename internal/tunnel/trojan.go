package tunnel

// parseTrojan decodes a Trojan header:
//
//	[hash_hex:56][CRLF:2][cmd:1][atyp:1][addr:*][port:2 BE][CRLF:2][payload:*]
//
// cmd: 1=TCP, 3=UDP. The 56-byte password hash is accepted without
// verification — spec.md §1/§9 treat Trojan authentication as a non-goal
// of the tunnel engine; the hash is framing only here.
func parseTrojan(buf []byte) (TunnelHeader, error) {
	const hashLen = 56
	off := hashLen

	if len(buf) < off+2 {
		return TunnelHeader{}, headerErrorf("short trojan header: missing CRLF")
	}
	if buf[off] != 0x0D || buf[off+1] != 0x0A {
		return TunnelHeader{}, headerErrorf("malformed trojan header: expected CRLF after hash")
	}
	off += 2

	if len(buf)-off < 1 {
		return TunnelHeader{}, headerErrorf("short trojan header: missing command")
	}
	cmdByte := buf[off]
	off++
	var cmd Command
	switch cmdByte {
	case 1:
		cmd = CommandTCP
	case 3:
		cmd = CommandUDP
	default:
		return TunnelHeader{}, headerErrorf("unsupported trojan command %d", cmdByte)
	}

	if len(buf)-off < 1 {
		return TunnelHeader{}, headerErrorf("short trojan header: missing atyp")
	}
	atyp := buf[off]
	off++

	host, off, err := readAddr(buf, off, atyp)
	if err != nil {
		return TunnelHeader{}, err
	}

	port, off, err := readPort(buf, off)
	if err != nil {
		return TunnelHeader{}, err
	}

	if len(buf)-off < 2 {
		return TunnelHeader{}, headerErrorf("short trojan header: missing trailing CRLF")
	}
	if buf[off] != 0x0D || buf[off+1] != 0x0A {
		return TunnelHeader{}, headerErrorf("malformed trojan header: expected trailing CRLF")
	}
	off += 2

	return TunnelHeader{
		Protocol: ProtocolTrojan,
		Host:     host,
		Port:     port,
		Command:  cmd,
		Residual: buf[off:],
	}, nil
}
