package tunnel

// dnsPort is the well-known destination port used to infer a UDP DNS
// query when no explicit command byte is available, per spec.md §4.3.
const dnsPort = 53

// parseShadowsocks decodes a Shadowsocks header:
//
//	[atyp:1][addr:*][port:2 BE][payload:*]
//
// Shadowsocks carries no command byte; the command is inferred as UDP
// when the destination port is 53 (DNS), else TCP. No response prefix.
func parseShadowsocks(buf []byte) (TunnelHeader, error) {
	if len(buf) < 1 {
		return TunnelHeader{}, headerErrorf("short shadowsocks header: missing atyp")
	}
	atyp := buf[0]
	off := 1

	host, off, err := readAddr(buf, off, atyp)
	if err != nil {
		return TunnelHeader{}, err
	}

	port, off, err := readPort(buf, off)
	if err != nil {
		return TunnelHeader{}, err
	}

	cmd := CommandTCP
	if port == dnsPort {
		cmd = CommandUDP
	}

	return TunnelHeader{
		Protocol: ProtocolShadowsocks,
		Host:     host,
		Port:     port,
		Command:  cmd,
		Residual: buf[off:],
	}, nil
}
