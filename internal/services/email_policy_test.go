package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailPolicyCheck(t *testing.T) {
	policy := NewEmailPolicy()
	cases := []struct {
		name   string
		email  string
		reason string
	}{
		{"missing", "", EmailReasonMissing},
		{"blank", "   ", EmailReasonMissing},
		{"malformed", "not-an-email", EmailReasonFormat},
		{"disposable", "someone@mailinator.com", EmailReasonDispose},
		{"disposable subdomain", "someone@eu.mailinator.com", EmailReasonDispose},
		{"disposable upper case", "someone@YOPMAIL.com", EmailReasonDispose},
		{"consumer", "someone@gmail.com", EmailReasonConsumer},
		{"consumer fr", "someone@orange.fr", EmailReasonConsumer},
		{"corporate", "ciso@acme-corp.com", ""},
		{"corporate padded", "  ciso@acme-corp.com ", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := policy.Check(c.email)
			if c.reason == "" {
				require.NoError(t, err)
				assert.Equal(t, "ciso@acme-corp.com", got)
				return
			}
			require.Error(t, err)
			se, ok := AsServiceError(err)
			require.True(t, ok)
			assert.Equal(t, ErrorInvalid, se.Code)
			assert.Equal(t, c.reason, se.Reason)
		})
	}
}

func TestEmailPolicyExtraDomains(t *testing.T) {
	policy := NewEmailPolicy().WithDisposableDomains("burner.test").WithConsumerDomains("Home.Example")

	_, err := policy.Check("a@burner.test")
	se, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, EmailReasonDispose, se.Reason)

	_, err = policy.Check("a@home.example")
	se, ok = AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, EmailReasonConsumer, se.Reason)
}

func TestEmailPolicyCheckFormatAllowsConsumer(t *testing.T) {
	policy := NewEmailPolicy()
	got, err := policy.CheckFormat("someone@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, "someone@gmail.com", got)

	_, err = policy.CheckFormat("nope")
	assert.True(t, HasCode(err, ErrorInvalid))
}
