package tunnel

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"
)

// readAddr decodes one destination address from buf starting at offset,
// for the given atyp code, using the Trojan/Shadowsocks numbering
// (1=IPv4, 3=domain, 4=IPv6). It returns the canonical host string and the
// offset of the first byte past the address.
func readAddr(buf []byte, offset int, atyp byte) (string, int, error) {
	switch atyp {
	case atypIPv4TrojanSS:
		if len(buf)-offset < 4 {
			return "", 0, headerErrorf("short buffer for ipv4 address")
		}
		host := net.IP(buf[offset : offset+4]).String()
		return host, offset + 4, nil
	case atypDomainTrojanSS:
		if len(buf)-offset < 1 {
			return "", 0, headerErrorf("short buffer for domain length")
		}
		n := int(buf[offset])
		offset++
		if n == 0 {
			return "", 0, headerErrorf("empty domain length")
		}
		if len(buf)-offset < n {
			return "", 0, headerErrorf("short buffer for domain body")
		}
		host := string(buf[offset : offset+n])
		return host, offset + n, nil
	case atypIPv6TrojanSS:
		if len(buf)-offset < 16 {
			return "", 0, headerErrorf("short buffer for ipv6 address")
		}
		host := renderIPv6(buf[offset : offset+16])
		return host, offset + 16, nil
	default:
		return "", 0, headerErrorf("unsupported atyp %d", atyp)
	}
}

// readAddrVLESS is readAddr with VLESS's own atyp numbering
// (1=IPv4, 2=domain, 3=IPv6).
func readAddrVLESS(buf []byte, offset int, atyp byte) (string, int, error) {
	switch atyp {
	case atypIPv4VLESS:
		return readAddr(buf, offset, atypIPv4TrojanSS)
	case atypDomainVLESS:
		return readAddr(buf, offset, atypDomainTrojanSS)
	case atypIPv6VLESS:
		return readAddr(buf, offset, atypIPv6TrojanSS)
	default:
		return "", 0, headerErrorf("unsupported vless atyp %d", atyp)
	}
}

// renderIPv6 renders 16 raw bytes as 8 colon-separated 16-bit hex groups,
// each printed as bare lowercase hex with no zero-padding — so a zero
// group renders as "0", per spec.md §8 boundary test.
func renderIPv6(b []byte) string {
	groups := make([]string, 8)
	for i := 0; i < 8; i++ {
		v := binary.BigEndian.Uint16(b[i*2 : i*2+2])
		groups[i] = fmt.Sprintf("%x", v)
	}
	return strings.Join(groups, ":")
}

func readPort(buf []byte, offset int) (uint16, int, error) {
	if len(buf)-offset < 2 {
		return 0, 0, headerErrorf("short buffer for port")
	}
	return binary.BigEndian.Uint16(buf[offset : offset+2]), offset + 2, nil
}
