package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTokenMissing  = errors.New("gate token missing")
	ErrTokenMismatch = errors.New("gate token mismatch")
)

// Mensagens visíveis ao cliente. Abuso, transporte e storage compartilham a
// mesma mensagem genérica para não virar oráculo de qual regra falhou.
const (
	MessageGeneric      = "Something went wrong. Please try again."
	MessageInvalidEmail = "Please enter a valid email address."
	MessageNoConsent    = "Please tick the box to continue."
	MessageSuccess      = "Thanks. You can keep reading."
)

type Kind int

const (
	KindTransport Kind = iota + 1
	KindAbuse
	KindValidation
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAbuse:
		return "abuse"
	case KindValidation:
		return "validation"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Cause é a causa interna de uma rejeição, para diagnóstico do operador.
type Cause string

const (
	CauseNone              Cause = ""
	CauseInsecureTransport Cause = "insecure_transport"
	CauseBadNonce          Cause = "bad_nonce"
	CauseRateLimited       Cause = "rate_limited"
	CauseHoneypot          Cause = "honeypot"
	CauseTooFast           Cause = "too_fast"
	CauseNoInteraction     Cause = "no_interaction"
	CauseInvalidEmail      Cause = "invalid_email"
	CauseNoConsent         Cause = "no_consent"
	CauseTokenMissing      Cause = "token_missing"
	CauseTokenMismatch     Cause = "token_mismatch"
	CauseStorage           Cause = "storage"

	// Negadas pelos middlewares HTTP antes de chegar ao pipeline.
	CauseThrottled  Cause = "throttled"
	CauseOverloaded Cause = "overloaded"
)

// Rejection é o erro devolvido pelo pipeline quando a submissão é negada.
type Rejection struct {
	Kind  Kind
	Cause Cause
	Err   error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("gate rejected (%s/%s): %v", r.Kind, r.Cause, r.Err)
	}
	return fmt.Sprintf("gate rejected (%s/%s)", r.Kind, r.Cause)
}

func (r *Rejection) Unwrap() error { return r.Err }

// Message devolve a mensagem segura para o cliente.
func (r *Rejection) Message() string {
	switch r.Cause {
	case CauseInvalidEmail:
		return MessageInvalidEmail
	case CauseNoConsent:
		return MessageNoConsent
	default:
		return MessageGeneric
	}
}

// Reject monta uma Rejection; err pode ser nil.
func Reject(kind Kind, cause Cause, err error) *Rejection {
	return &Rejection{Kind: kind, Cause: cause, Err: err}
}

// AsRejection extrai uma *Rejection de err, se houver.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
