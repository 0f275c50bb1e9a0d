package gate

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"reading-gate/gate/domain"
)

const (
	CookieVisitor  = "gate_vid"
	CookieAttempt  = "gate_attempt"
	CookieUnlocked = "gate_unlocked"

	VisitorCookieTTL = 24 * time.Hour
	AttemptCookieTTL = time.Hour
)

// identityCookie monta um cookie de identidade: Path=/, HttpOnly, SameSite=Lax,
// Secure apenas quando a requisição veio por HTTPS.
func identityCookie(name, value string, ttl time.Duration, secure bool, now time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  now.Add(ttl),
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// ensureIdentity lê os ids de visitante e tentativa e emite os que faltarem.
// Os cookies novos são escritos na resposta e também valem para esta requisição.
func ensureIdentity(w http.ResponseWriter, r *http.Request, secure bool, now time.Time, newID func() string) domain.Identity {
	id := domain.Identity{
		VisitorID: cookieValue(r, CookieVisitor),
		AttemptID: cookieValue(r, CookieAttempt),
	}
	if id.VisitorID == "" {
		id.VisitorID = newID()
		http.SetCookie(w, identityCookie(CookieVisitor, id.VisitorID, VisitorCookieTTL, secure, now))
	}
	if id.AttemptID == "" {
		id.AttemptID = newID()
		http.SetCookie(w, identityCookie(CookieAttempt, id.AttemptID, AttemptCookieTTL, secure, now))
	}
	return id
}

func unlockCookie(cred domain.Credential, secure bool, now time.Time) *http.Cookie {
	c := identityCookie(CookieUnlocked, cred.Value, cred.ExpiresAt.Sub(now), secure, now)
	c.Expires = cred.ExpiresAt
	return c
}

func newUUID() string { return uuid.NewString() }
