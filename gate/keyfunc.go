package gate

import (
	"net"
	"net/http"
	"strings"
)

type KeyFunc func(r *http.Request) string

// ClientIP devolve o IP do cliente. Com trustXFF, usa o primeiro IP do
// X-Forwarded-For (cliente original); caso contrário, RemoteAddr.
func ClientIP(trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if trustXFF {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if ip := strings.TrimSpace(parts[0]); ip != "" {
					return ip
				}
			}
			if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
				return ip
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// IsSecure diz se a requisição chegou via HTTPS. Atrás de proxy confiável,
// respeita X-Forwarded-Proto.
func IsSecure(r *http.Request, trustProxy bool) bool {
	if r.TLS != nil {
		return true
	}
	if trustProxy {
		return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https")
	}
	return false
}
