package metadata

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basecamp/pkg/requestcontext"
)

func TestMiddlewareHandler(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trusted    string
		expectedIP string
	}{
		{
			name:       "ignores XFF from untrusted peer",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1"},
			remoteAddr: "192.168.1.1:12345",
			expectedIP: "192.168.1.1",
		},
		{
			name:       "trusts XFF from trusted proxy",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.2"},
			remoteAddr: "10.0.0.1:12345",
			trusted:    "10.0.0.0/8",
			expectedIP: "203.0.113.1",
		},
		{
			name:       "falls back to peer on malformed XFF",
			headers:    map[string]string{"X-Forwarded-For": "not-an-ip"},
			remoteAddr: "10.0.0.1:12345",
			trusted:    "10.0.0.0/8",
			expectedIP: "10.0.0.1",
		},
		{
			name:       "uses X-Real-IP from trusted proxy",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			remoteAddr: "10.0.0.1:12345",
			trusted:    "10.0.0.0/8",
			expectedIP: "198.51.100.7",
		},
		{
			name:       "ipv6 peer",
			remoteAddr: "[2001:db8::1]:443",
			expectedIP: "2001:db8::1",
		},
		{
			name:       "garbage remote addr",
			remoteAddr: "garbage",
			expectedIP: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefixes, err := ParsePrefixes(tt.trusted)
			require.NoError(t, err)

			var gotIP, gotUA string
			h := NewMiddleware(prefixes).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotIP = requestcontext.ClientIP(r.Context())
				gotUA = requestcontext.UserAgent(r.Context())
			}))

			req := httptest.NewRequest(http.MethodPost, "/screenings", nil)
			req.RemoteAddr = tt.remoteAddr
			req.Header.Set("User-Agent", "curl/8.5.0")
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.expectedIP, gotIP)
			assert.Equal(t, "curl/8.5.0", gotUA)
		})
	}
}

func TestParsePrefixes(t *testing.T) {
	got, err := ParsePrefixes("10.0.0.0/8, 172.16.0.0/12,")
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8"), netip.MustParsePrefix("172.16.0.0/12")}, got)

	_, err = ParsePrefixes("10.0.0.0/33")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	chrome := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	assert.Contains(t, Summarize(chrome), "Chrome 120")
	assert.Contains(t, Summarize(chrome), "(desktop)")

	iphone := "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	assert.Contains(t, Summarize(iphone), "(mobile)")

	assert.Equal(t, "unknown", Summarize(""))
	assert.Contains(t, Summarize("Googlebot/2.1 (+http://www.google.com/bot.html)"), "bot")
}
