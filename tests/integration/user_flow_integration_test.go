//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func baseURL() string {
	if v := os.Getenv("VIGIL_TEST_BASE_URL"); strings.TrimSpace(v) != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://127.0.0.1:18080"
}

func TestGuestJourneyIntegration(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	base := baseURL()

	var guestResp struct {
		Message    string `json:"message"`
		Evaluation struct {
			ID         string `json:"id"`
			Score      int    `json:"score"`
			AccessCode string `json:"accessCode"`
		} `json:"evaluation"`
	}
	status := doJSON(t, client, http.MethodPost, base+"/api/evaluations/guest", "", map[string]any{
		"email":   fmt.Sprintf("ciso_%d@integration-corp.io", time.Now().UnixNano()),
		"type":    "INITIAL",
		"answers": map[string]int{"mfa": 3, "backups": 2},
	}, &guestResp)
	if status != http.StatusCreated {
		t.Fatalf("guest submit status %d", status)
	}
	ev := guestResp.Evaluation
	if ev.ID == "" || ev.Score != 5 || len(ev.AccessCode) != 12 {
		t.Fatalf("unexpected guest receipt: %+v", ev)
	}

	var result struct {
		Evaluation struct {
			ID      string         `json:"id"`
			Answers map[string]int `json:"answers"`
		} `json:"evaluation"`
	}
	status = doJSON(t, client, http.MethodGet, base+"/api/evaluations/"+ev.ID+"?code="+ev.AccessCode, "", nil, &result)
	if status != http.StatusOK || result.Evaluation.Answers["mfa"] != 3 {
		t.Fatalf("guest retrieval status %d result %+v", status, result)
	}

	var rejected struct {
		Reason string `json:"reason"`
	}
	status = doJSON(t, client, http.MethodPost, base+"/api/evaluations/guest", "", map[string]any{
		"email":   "someone@gmail.com",
		"answers": map[string]int{"mfa": 1},
	}, &rejected)
	if status != http.StatusBadRequest || rejected.Reason != "consumer_domain" {
		t.Fatalf("expected consumer domain rejection, got %d %+v", status, rejected)
	}
}

func TestUserJourneyIntegration(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	base := baseURL()

	userEmail := fmt.Sprintf("integration_%d@integration-corp.io", time.Now().UnixNano())
	password := "Secret123!"

	var registerResp struct {
		Token     string `json:"token"`
		ProfileID string `json:"profileId"`
		Role      string `json:"role"`
	}
	if status := doJSON(t, client, http.MethodPost, base+"/api/auth/register", "", map[string]any{
		"email":       userEmail,
		"password":    password,
		"displayName": "Integration",
	}, &registerResp); status != http.StatusCreated {
		t.Fatalf("register status %d", status)
	}
	if registerResp.Token == "" || registerResp.ProfileID == "" || registerResp.Role != "FREE" {
		t.Fatalf("unexpected register response: %+v", registerResp)
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	doJSON(t, client, http.MethodPost, base+"/api/auth/login", "", map[string]string{
		"email":    userEmail,
		"password": password,
	}, &loginResp)
	token := loginResp.Token
	if token == "" {
		t.Fatalf("login did not return token")
	}

	var created struct {
		Evaluation struct {
			ID        string `json:"id"`
			ProfileID string `json:"profileId"`
			Score     int    `json:"score"`
		} `json:"evaluation"`
	}
	if status := doJSON(t, client, http.MethodPost, base+"/api/evaluations", token, map[string]any{
		"type":    "ADVANCED",
		"answers": map[string]int{"a": 4, "b": 4},
	}, &created); status != http.StatusCreated {
		t.Fatalf("authenticated submit status %d", status)
	}
	if created.Evaluation.ProfileID != registerResp.ProfileID || created.Evaluation.Score != 8 {
		t.Fatalf("unexpected evaluation: %+v", created.Evaluation)
	}

	if status := doJSON(t, client, http.MethodGet, base+"/api/evaluations/"+created.Evaluation.ID, token, nil, nil); status != http.StatusOK {
		t.Fatalf("owner read status %d", status)
	}
	if status := doJSON(t, client, http.MethodGet, base+"/api/evaluations", token, nil, nil); status != http.StatusForbidden {
		t.Fatalf("FREE history should be forbidden, got %d", status)
	}
	if status := doJSON(t, client, http.MethodPost, base+"/api/evaluations", "", map[string]any{"answers": map[string]int{}}, nil); status != http.StatusUnauthorized {
		t.Fatalf("anonymous submit should be unauthorized, got %d", status)
	}
}

// doJSON sends body (if any) and decodes the response into out. It returns the status.
func doJSON(t *testing.T, client *http.Client, method, url, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("http %s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			t.Fatalf("decode response from %s: %v", url, err)
		}
	}
	return resp.StatusCode
}
