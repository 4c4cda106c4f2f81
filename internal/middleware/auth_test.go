package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimsEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := ClaimsFromContext(r.Context()); ok {
			_, _ = w.Write([]byte(c.UID + "|" + c.Email))
			return
		}
		_, _ = w.Write([]byte("anonymous"))
	})
}

func serveWithToken(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAuthenticatorRoundTrip(t *testing.T) {
	a := NewAuthenticator("s3cret")
	tok, err := a.SignToken("u1", "a@acme.io", time.Hour)
	require.NoError(t, err)

	rr := serveWithToken(a.WithAuth(claimsEcho(t)), tok)
	assert.Equal(t, "u1|a@acme.io", rr.Body.String())
}

func TestAuthenticatorRejectsBadTokens(t *testing.T) {
	a := NewAuthenticator("s3cret")
	other := NewAuthenticator("different")
	foreign, err := other.SignToken("u1", "a@acme.io", time.Hour)
	require.NoError(t, err)

	expired, err := a.SignToken("u1", "a@acme.io", -time.Minute)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UID: "u1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	h := a.WithAuth(claimsEcho(t))
	for name, tok := range map[string]string{"foreign": foreign, "expired": expired, "none": unsigned, "garbage": "abc.def"} {
		assert.Equal(t, "anonymous", serveWithToken(h, tok).Body.String(), name)
	}
}

func TestRequireAuth(t *testing.T) {
	a := NewAuthenticator("s3cret")
	h := a.WithAuth(RequireAuth(claimsEcho(t)))

	rr := serveWithToken(h, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"authentication required"}`, rr.Body.String())

	tok, _ := a.SignToken("u2", "b@acme.io", time.Hour)
	rr = serveWithToken(h, tok)
	assert.Equal(t, http.StatusOK, rr.Code)
}
