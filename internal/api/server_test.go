package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"NetBank-Chain/internal/event"
	"NetBank-Chain/internal/identity"
	"NetBank-Chain/internal/intent"
	"NetBank-Chain/internal/orchestrator"
	"NetBank-Chain/internal/repository"
	"NetBank-Chain/internal/session"
	"NetBank-Chain/internal/transfer"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	userDir := filepath.Join(dir, "users", "alice01")
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	available := 1000.0
	accounts, _ := json.Marshal([]repository.Account{{
		AccountID: "CHK-1", Type: repository.AccountTypeChecking,
		Currency: "INR", Balance: 1000, AvailableBalance: &available,
	}})
	if err := os.WriteFile(filepath.Join(userDir, "accounts.json"), accounts, 0o644); err != nil {
		t.Fatalf("write accounts: %v", err)
	}

	repo, err := repository.NewFileRepository(dir)
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}
	domainRouter, err := orchestrator.NewDefaultRouter(repo)
	if err != nil {
		t.Fatalf("NewDefaultRouter: %v", err)
	}
	resolver := intent.NewRuleResolver(nil)
	core, err := orchestrator.New(orchestrator.Deps{
		Sessions: session.NewMemoryStore(),
		Gate:     identity.NewGate(repo),
		Resolver: resolver,
		Planner:  intent.NewRulePlanner(resolver),
		Router:   domainRouter,
		Saga:     transfer.NewSaga(repo, repo, event.NewMemoryPublisher(4)),
	})
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}

	srv := httptest.NewServer(NewServer(":0", core, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp, created := postJSON(t, srv.URL+"/api/v1/sessions", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d", resp.StatusCode)
	}
	sessionID, _ := created["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("missing session_id: %v", created)
	}

	turnURL := srv.URL + "/api/v1/sessions/" + sessionID + "/turns"

	resp, turn := postJSON(t, turnURL, `{"input": "show my balance"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("turn status = %d", resp.StatusCode)
	}
	if pending, _ := turn["identity_pending"].(bool); !pending {
		t.Fatalf("first turn must be identity-gated: %v", turn)
	}

	resp, turn = postJSON(t, turnURL, `{"input": "alice01"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("identity turn status = %d", resp.StatusCode)
	}
	resp, turn = postJSON(t, turnURL, `{"input": "what is my account balance"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("balance turn status = %d", resp.StatusCode)
	}
	if reply, _ := turn["reply"].(string); !strings.Contains(reply, "CHK-1") {
		t.Fatalf("balance reply: %v", turn)
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	srv := newTestServer(t)
	resp, body := postJSON(t, srv.URL+"/api/v1/sessions/nope/turns", `{"input": "hi"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (%v)", resp.StatusCode, body)
	}
}

func TestMethodGuards(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/sessions")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET sessions status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}
