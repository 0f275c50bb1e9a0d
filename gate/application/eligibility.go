package application

import (
	"context"
	"strings"

	"reading-gate/gate/domain"
)

// RuleEligibility é a implementação mínima do predicado de elegibilidade:
// liga/desliga, bypass de quem já desbloqueou, bypass do operador (exceto em
// preview) e exclusão por trecho de URL.
type RuleEligibility struct {
	Enabled     bool
	ExcludeURLs []string
}

func (e RuleEligibility) Eligible(_ context.Context, page domain.Page) bool {
	if !e.Enabled && !page.Preview {
		return false
	}
	if page.Unlocked {
		return false
	}
	if page.Operator && !page.Preview {
		return false
	}
	for _, pattern := range e.ExcludeURLs {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if strings.Contains(page.URL, pattern) {
			return false
		}
	}
	return true
}

var _ domain.Eligibility = RuleEligibility{}
