package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"ipv4", "192.168.1.47", "192.168.1.0"},
		{"ipv4 localhost", "127.0.0.1", "127.0.0.0"},
		{"ipv4 mapped ipv6", "::ffff:10.1.2.3", "10.1.2.0"},
		{"ipv6 compressed", "2001:db8:85a3::8a2e:370:7334", "2001:0db8:85a3::"},
		{"ipv6 loopback", "::1", "0000:0000:0000::"},
		{"empty", "", "unknown"},
		{"unknown", "unknown", "unknown"},
		{"garbage", "not-an-ip", "invalid"},
		{"with port", "192.168.1.1:8080", "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AnonymizeIP(tt.input))
		})
	}
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "r***@example.com", RedactEmail("robin@example.com"))
	assert.Equal(t, "***", RedactEmail("no-at-sign"))
	assert.Equal(t, "***", RedactEmail("@example.com"))
}

func TestMaskSSN(t *testing.T) {
	assert.Equal(t, "***-**-6789", MaskSSN("6789"))
	assert.Equal(t, "***-**-****", MaskSSN(""))
}
