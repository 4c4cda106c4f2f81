package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/soaringjerry/Vigil/internal/api"
	"github.com/soaringjerry/Vigil/internal/config"
)

func TestApplyFlagsOnlyOverridesChanged(t *testing.T) {
	c := config.Default()
	c.Database.URL = "from-env"
	require.NoError(t, rootCmd.PersistentFlags().Set("addr", ":7070"))
	t.Cleanup(func() {
		flagAddr = ""
		rootCmd.PersistentFlags().Lookup("addr").Changed = false
	})

	applyFlags(rootCmd, c)
	assert.Equal(t, ":7070", c.Addr)
	assert.Equal(t, "from-env", c.Database.URL)
}

func TestBuildHandlerServesHealth(t *testing.T) {
	c := config.Default()
	c.Email.Provider = "log"
	h, err := buildHandler(c, api.NewMemoryStore(), zap.NewNop())
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"name":"Vigil API"`)

	c.AdvancedPolicy = "gold"
	_, err = buildHandler(c, api.NewMemoryStore(), zap.NewNop())
	assert.Error(t, err)
}

func TestBuildHandlerAppliesBlockedDomains(t *testing.T) {
	c := config.Default()
	c.Email.BlockedDomains = []string{"burner.test"}
	store := api.NewMemoryStore()
	h, err := buildHandler(c, store, zap.NewNop())
	require.NoError(t, err)

	post := func(email string) (int, map[string]any) {
		body := `{"email":"` + email + `","answers":{"a":1}}`
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/evaluations/guest", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		h.ServeHTTP(rr, req)
		out := map[string]any{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
		return rr.Code, out
	}

	code, out := post("ciso@burner.test")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "disposable", out["reason"])

	code, _ = post("ciso@acme-corp.io")
	assert.Equal(t, http.StatusCreated, code)
}
