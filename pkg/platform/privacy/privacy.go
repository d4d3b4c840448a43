// Package privacy masks candidate PII before it reaches logs or events.
package privacy

import (
	"fmt"
	"net/netip"
	"strings"
)

// AnonymizeIP truncates an address to its network: /24 for IPv4, /48 for
// IPv6. Returns "unknown" for empty input and "invalid" when unparseable.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap()
	if addr.Is4() {
		b := addr.As4()
		return fmt.Sprintf("%d.%d.%d.0", b[0], b[1], b[2])
	}
	b := addr.As16()
	return fmt.Sprintf("%02x%02x:%02x%02x:%02x%02x::", b[0], b[1], b[2], b[3], b[4], b[5])
}

// RedactEmail keeps the first character of the local part and the domain:
// "robin@example.com" -> "r***@example.com".
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}

// MaskSSN renders only the last four digits.
func MaskSSN(last4 string) string {
	if len(last4) != 4 {
		return "***-**-****"
	}
	return "***-**-" + last4
}
