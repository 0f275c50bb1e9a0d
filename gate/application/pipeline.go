package application

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"reading-gate/gate/domain"
)

const (
	MinElapsed        = 2500 * time.Millisecond
	DefaultUnlockTTL  = 30 * 24 * time.Hour
	maxPageTitleBytes = 512
)

// Pipeline valida uma submissão em ordem fixa, fail-fast:
//
//  1. transporte (HTTPS quando disponível)  - sem incremento
//  2. rate limit                             - sem incremento, 429
//  3. honeypot
//  4. comportamento (tempo >= 2.5s E interação)
//  5. sintaxe do email
//  6. consentimento
//  7. token do gate
//  8. dedup (reserva atômica do email)      - sucesso sem gravar Lead
//  9. persistência                           - falha vira 500, sem incremento, reserva desfeita
//  10. marca dedup (janela completa) + credencial de desbloqueio
//
// Falhas de 3 a 7 incrementam os três contadores do RateLimiter.
type Pipeline struct {
	Tokens      TokenService
	Limiter     *RateLimiter
	Dedup       Deduplicator
	Leads       domain.LeadStore
	Credentials domain.CredentialIssuer
	Stats       domain.StatsStore
	Logger      *zap.Logger

	// RequireTLS indica que o deploy suporta HTTPS; submissões em texto puro são rejeitadas.
	RequireTLS bool
	UnlockTTL  time.Duration

	Now   func() time.Time
	NewID func() string
}

func (p *Pipeline) Submit(ctx context.Context, sub domain.Submission) (domain.Outcome, error) {
	out, err := p.submit(ctx, sub)
	p.record(ctx, out, err)
	return out, err
}

func (p *Pipeline) submit(ctx context.Context, sub domain.Submission) (domain.Outcome, error) {
	if p.RequireTLS && !sub.Secure {
		return domain.Outcome{}, domain.Reject(domain.KindTransport, domain.CauseInsecureTransport, nil)
	}

	subj := Subject{IP: sub.IP, VisitorID: sub.Identity.VisitorID, AttemptID: sub.Identity.AttemptID}
	limited, err := p.Limiter.IsRateLimited(ctx, subj)
	if err != nil {
		return domain.Outcome{}, domain.Reject(domain.KindStorage, domain.CauseStorage, err)
	}
	if limited {
		return domain.Outcome{}, domain.Reject(domain.KindAbuse, domain.CauseRateLimited, nil)
	}

	if strings.TrimSpace(sub.Honeypot) != "" {
		return p.fail(ctx, subj, domain.KindAbuse, domain.CauseHoneypot, nil)
	}
	if sub.Elapsed < MinElapsed {
		return p.fail(ctx, subj, domain.KindAbuse, domain.CauseTooFast, nil)
	}
	if !sub.Interaction {
		return p.fail(ctx, subj, domain.KindAbuse, domain.CauseNoInteraction, nil)
	}

	email := strings.TrimSpace(sub.Email)
	if !ValidEmail(email) {
		return p.fail(ctx, subj, domain.KindValidation, domain.CauseInvalidEmail, nil)
	}
	if !sub.Consent {
		return p.fail(ctx, subj, domain.KindValidation, domain.CauseNoConsent, nil)
	}

	if err := p.Tokens.Check(ctx, sub.Identity.VisitorID, sub.Token); err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenMissing):
			return p.fail(ctx, subj, domain.KindAbuse, domain.CauseTokenMissing, err)
		case errors.Is(err, domain.ErrTokenMismatch):
			return p.fail(ctx, subj, domain.KindAbuse, domain.CauseTokenMismatch, err)
		default:
			return domain.Outcome{}, domain.Reject(domain.KindStorage, domain.CauseStorage, err)
		}
	}

	reserved, err := p.Dedup.Reserve(ctx, email)
	if err != nil {
		// sem a marca, o pior caso é um Lead repetido; ainda assim libera o leitor
		p.logger().Warn("dedup reserve failed", zap.Error(err))
	}
	if err == nil && !reserved {
		cred, err := p.unlock(sub.Identity.VisitorID)
		if err != nil {
			return domain.Outcome{}, domain.Reject(domain.KindStorage, domain.CauseStorage, err)
		}
		return domain.Outcome{Duplicate: true, Credential: cred}, nil
	}

	lead := domain.Lead{
		ID:        p.newID(),
		Email:     email,
		Consent:   true,
		PageURL:   cleanPageURL(sub.PageURL),
		PageTitle: cleanPageTitle(sub.PageTitle),
		CreatedAt: p.now().UTC(),
	}
	if err := p.Leads.Insert(ctx, lead); err != nil {
		p.logger().Error("persist lead failed", zap.Error(err))
		if reserved {
			if rerr := p.Dedup.Release(ctx, email); rerr != nil {
				p.logger().Warn("dedup release failed", zap.Error(rerr))
			}
		}
		return domain.Outcome{}, domain.Reject(domain.KindStorage, domain.CauseStorage, err)
	}
	if err := p.Dedup.MarkDuplicate(ctx, email); err != nil {
		p.logger().Warn("dedup mark failed", zap.Error(err))
	}

	cred, err := p.unlock(sub.Identity.VisitorID)
	if err != nil {
		return domain.Outcome{}, domain.Reject(domain.KindStorage, domain.CauseStorage, err)
	}
	return domain.Outcome{Lead: &lead, Credential: cred}, nil
}

func (p *Pipeline) fail(ctx context.Context, subj Subject, kind domain.Kind, cause domain.Cause, err error) (domain.Outcome, error) {
	if rerr := p.Limiter.RecordFailure(ctx, subj); rerr != nil {
		p.logger().Warn("record rate limit failure", zap.Error(rerr))
	}
	return domain.Outcome{}, domain.Reject(kind, cause, err)
}

func (p *Pipeline) unlock(visitorID string) (domain.Credential, error) {
	ttl := p.UnlockTTL
	if ttl <= 0 {
		ttl = DefaultUnlockTTL
	}
	if p.Credentials == nil {
		return domain.Credential{Value: "1", ExpiresAt: p.now().Add(ttl)}, nil
	}
	return p.Credentials.IssueUnlock(visitorID, ttl)
}

func (p *Pipeline) record(ctx context.Context, out domain.Outcome, err error) {
	ev := domain.StatsEvent{Allowed: err == nil, Duplicate: out.Duplicate, At: p.now()}
	if rej, ok := domain.AsRejection(err); ok {
		ev.Cause = rej.Cause
		if rej.Kind == domain.KindStorage {
			p.logger().Error("submission failed", zap.String("cause", string(rej.Cause)), zap.Error(rej.Err))
		} else {
			p.logger().Info("submission rejected",
				zap.String("kind", rej.Kind.String()),
				zap.String("cause", string(rej.Cause)),
			)
		}
	} else if err == nil {
		p.logger().Info("submission accepted", zap.Bool("duplicate", out.Duplicate))
	}
	if p.Stats != nil {
		if serr := p.Stats.Record(ctx, ev); serr != nil {
			p.logger().Debug("record stats failed", zap.Error(serr))
		}
	}
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) newID() string {
	if p.NewID != nil {
		return p.NewID()
	}
	return ulid.Make().String()
}

// cleanPageURL aceita apenas URLs absolutas http(s); o resto vira vazio.
func cleanPageURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func cleanPageTitle(raw string) string {
	t := strings.Join(strings.Fields(raw), " ")
	if len(t) > maxPageTitleBytes {
		t = strings.ToValidUTF8(t[:maxPageTitleBytes], "")
	}
	return t
}
