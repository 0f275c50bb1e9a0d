package gate

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP_TrustXForwardedForUsesFirstIP(t *testing.T) {
	fn := ClientIP(true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	if got := fn(r); got != "1.2.3.4" {
		t.Fatalf("expected first XFF ip, got %q", got)
	}
}

func TestClientIP_IgnoresXForwardedForWhenUntrusted(t *testing.T) {
	fn := ClientIP(false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")

	if got := fn(r); got != "10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestClientIP_FallsBackToRawRemoteAddr(t *testing.T) {
	fn := ClientIP(false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "not-a-hostport"

	if got := fn(r); got != "not-a-hostport" {
		t.Fatalf("expected raw remote addr, got %q", got)
	}
}

func TestIsSecure(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	if IsSecure(plain, true) {
		t.Fatalf("expected plain request to be insecure")
	}

	tlsReq := httptest.NewRequest(http.MethodGet, "https://example/", nil)
	tlsReq.TLS = &tls.ConnectionState{}
	if !IsSecure(tlsReq, false) {
		t.Fatalf("expected TLS request to be secure")
	}

	proxied := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	proxied.Header.Set("X-Forwarded-Proto", "https")
	if IsSecure(proxied, false) {
		t.Fatalf("expected X-Forwarded-Proto ignored without trusted proxy")
	}
	if !IsSecure(proxied, true) {
		t.Fatalf("expected X-Forwarded-Proto honored behind trusted proxy")
	}
}
