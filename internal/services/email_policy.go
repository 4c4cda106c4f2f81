package services

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	EmailReasonMissing  = "missing"
	EmailReasonFormat   = "invalid_format"
	EmailReasonDispose  = "disposable"
	EmailReasonConsumer = "consumer_domain"
)

var defaultDisposableDomains = []string{
	"10minutemail.com", "20minutemail.com", "discard.email", "dispostable.com",
	"emailondeck.com", "fakeinbox.com", "getnada.com", "guerrillamail.com",
	"guerrillamail.net", "maildrop.cc", "mailinator.com", "mailnesia.com",
	"mintemail.com", "mohmal.com", "moakt.com", "sharklasers.com", "spamgourmet.com",
	"temp-mail.org", "tempmail.com", "tempmail.net", "throwawaymail.com",
	"trashmail.com", "yopmail.com", "yopmail.fr",
}

var defaultConsumerDomains = []string{
	"aol.com", "free.fr", "gmail.com", "gmx.com", "gmx.de", "googlemail.com",
	"hotmail.com", "hotmail.fr", "icloud.com", "laposte.net", "live.com", "live.fr",
	"mail.com", "mail.ru", "me.com", "msn.com", "orange.fr", "outlook.com",
	"outlook.fr", "proton.me", "protonmail.com", "sfr.fr", "wanadoo.fr", "yahoo.com",
	"yahoo.fr", "yandex.com", "zoho.com",
}

// EmailPolicy accepts only corporate addresses: well-formed, not disposable,
// not hosted by a consumer mail provider.
type EmailPolicy struct {
	validate   *validator.Validate
	disposable map[string]struct{}
	consumer   map[string]struct{}
}

func NewEmailPolicy() *EmailPolicy {
	return &EmailPolicy{
		validate:   validator.New(),
		disposable: domainSet(defaultDisposableDomains),
		consumer:   domainSet(defaultConsumerDomains),
	}
}

// WithDisposableDomains adds domains to the disposable block list.
func (p *EmailPolicy) WithDisposableDomains(domains ...string) *EmailPolicy {
	for _, d := range domains {
		p.disposable[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	return p
}

// WithConsumerDomains adds domains to the consumer-provider block list.
func (p *EmailPolicy) WithConsumerDomains(domains ...string) *EmailPolicy {
	for _, d := range domains {
		p.consumer[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	return p
}

// Check returns the normalized address or a validation error carrying the reason.
func (p *EmailPolicy) Check(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", NewValidationError(EmailReasonMissing, "email is required")
	}
	if err := p.validate.Var(email, "email"); err != nil {
		return "", NewValidationError(EmailReasonFormat, "email is not a valid address")
	}
	domain := strings.ToLower(email[strings.LastIndex(email, "@")+1:])
	if matchesDomain(p.disposable, domain) {
		return "", NewValidationError(EmailReasonDispose, "disposable email addresses are not accepted")
	}
	if matchesDomain(p.consumer, domain) {
		return "", NewValidationError(EmailReasonConsumer, "please use your professional email address")
	}
	return email, nil
}

// CheckFormat validates syntax only, for flows that accept any provider.
func (p *EmailPolicy) CheckFormat(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", NewValidationError(EmailReasonMissing, "email is required")
	}
	if err := p.validate.Var(email, "email"); err != nil {
		return "", NewValidationError(EmailReasonFormat, "email is not a valid address")
	}
	return email, nil
}

func domainSet(domains []string) map[string]struct{} {
	out := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		out[d] = struct{}{}
	}
	return out
}

// matchesDomain also matches subdomains, e.g. eu.mailinator.com.
func matchesDomain(set map[string]struct{}, domain string) bool {
	for {
		if _, ok := set[domain]; ok {
			return true
		}
		i := strings.Index(domain, ".")
		if i < 0 {
			return false
		}
		domain = domain[i+1:]
	}
}
