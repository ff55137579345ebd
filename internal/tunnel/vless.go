package tunnel

// parseVLESS decodes a version-0 VLESS header:
//
//	[ver:1][uuid:16][optLen:1][opt:optLen][cmd:1][port:2 BE][atyp:1][addr:*][payload:*]
//
// cmd: 1=TCP, 2=UDP. The response prefix is [ver, 0].
func parseVLESS(buf []byte) (TunnelHeader, error) {
	const uuidLen = 16
	off := 0

	if len(buf) < 1 {
		return TunnelHeader{}, headerErrorf("short vless header: missing version")
	}
	ver := buf[off]
	off++
	if ver != 0 {
		return TunnelHeader{}, headerErrorf("unsupported vless version %d", ver)
	}

	if len(buf)-off < uuidLen {
		return TunnelHeader{}, headerErrorf("short vless header: missing uuid")
	}
	off += uuidLen

	if len(buf)-off < 1 {
		return TunnelHeader{}, headerErrorf("short vless header: missing opt length")
	}
	optLen := int(buf[off])
	off++
	if len(buf)-off < optLen {
		return TunnelHeader{}, headerErrorf("short vless header: truncated opt")
	}
	off += optLen

	if len(buf)-off < 1 {
		return TunnelHeader{}, headerErrorf("short vless header: missing command")
	}
	cmdByte := buf[off]
	off++
	var cmd Command
	switch cmdByte {
	case 1:
		cmd = CommandTCP
	case 2:
		cmd = CommandUDP
	default:
		return TunnelHeader{}, headerErrorf("unsupported vless command %d", cmdByte)
	}

	port, off, err := readPort(buf, off)
	if err != nil {
		return TunnelHeader{}, err
	}

	if len(buf)-off < 1 {
		return TunnelHeader{}, headerErrorf("short vless header: missing atyp")
	}
	atyp := buf[off]
	off++

	host, off, err := readAddrVLESS(buf, off, atyp)
	if err != nil {
		return TunnelHeader{}, err
	}

	return TunnelHeader{
		Protocol:   ProtocolVLESS,
		Host:       host,
		Port:       port,
		Command:    cmd,
		Residual:   buf[off:],
		RespPrefix: []byte{ver, 0},
	}, nil
}
