package domain

import "time"

// Identity é o par de identificadores opacos emitidos pelo servidor via cookie.
//
// VisitorID vive ~1 dia (visitante que retorna), AttemptID vive ~1 hora
// (uma "sessão" de tentativas). Não são identidade autenticada.
type Identity struct {
	VisitorID string
	AttemptID string
}

// Lead é o registro durável gravado após uma submissão válida e inédita.
type Lead struct {
	ID        string
	Email     string
	Consent   bool
	PageURL   string
	PageTitle string
	CreatedAt time.Time
}

// Submission é o payload já decodificado de POST /gate/submit, junto com os
// sinais de transporte que o pipeline precisa.
type Submission struct {
	Identity Identity
	IP       string
	// Secure indica que a requisição chegou via HTTPS.
	Secure bool

	Email       string
	Consent     bool
	PageURL     string
	PageTitle   string
	Honeypot    string
	Token       string
	Elapsed     time.Duration
	Interaction bool
}

// Page descreve a página/visitante para o predicado de elegibilidade.
type Page struct {
	URL      string
	Unlocked bool
	Operator bool
	Preview  bool
}

// Settings é a configuração reconhecida pelo detector de engajamento no cliente.
type Settings struct {
	DelayBackstop            time.Duration
	DelayMax                 time.Duration
	ScrollDepthPercent       int
	MinMeaningfulScrollCount int
	ContentSelector          string
	CookieDurationDays       int
	PrivacyPolicyURL         string
}

// DefaultSettings devolve os padrões recomendados.
func DefaultSettings() Settings {
	return Settings{
		DelayBackstop:            12 * time.Second,
		DelayMax:                 20 * time.Second,
		ScrollDepthPercent:       30,
		MinMeaningfulScrollCount: 2,
		CookieDurationDays:       30,
	}
}

// Outcome é o resultado de uma submissão aceita.
type Outcome struct {
	// Duplicate indica que o email já havia sido registrado na janela de dedup;
	// o leitor é liberado mas nenhum Lead novo é gravado.
	Duplicate bool
	Lead      *Lead
	// Credential é a credencial de desbloqueio a ser entregue ao cliente.
	Credential Credential
}

// Credential é a credencial de desbloqueio (valor opaco + expiração).
type Credential struct {
	Value     string
	ExpiresAt time.Time
}
