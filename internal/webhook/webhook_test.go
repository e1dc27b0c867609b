package webhook_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/mjarkko/scripter/internal/domain"
	"github.com/mjarkko/scripter/internal/webhook"
)

type fakeStore struct {
	webhooks map[string]domain.Webhook
	scripts  map[int64]domain.Script
}

func (s *fakeStore) GetWebhookByName(ctx context.Context, name string) (*domain.Webhook, error) {
	wh, ok := s.webhooks[name]
	if !ok {
		return nil, domain.ErrWebhookNotFound
	}
	return &wh, nil
}

func (s *fakeStore) GetScript(ctx context.Context, id int64) (*domain.Script, error) {
	sc, ok := s.scripts[id]
	if !ok {
		return nil, domain.ErrScriptNotFound
	}
	return &sc, nil
}

type fakeRunner struct {
	run *domain.Run
	err error
}

func (r *fakeRunner) ExecuteSync(ctx context.Context, scriptID int64, triggerID string) (*domain.Run, error) {
	return r.run, r.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func doTrigger(t *testing.T, store *fakeStore, runner *fakeRunner, name string) *httptest.ResponseRecorder {
	t.Helper()
	router := webhook.NewRouter(webhook.NewHandler(store, runner, discardLogger()), discardLogger())
	req := httptest.NewRequest(http.MethodPost, "/trigger/"+name, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTrigger_UnknownWebhookReturns404(t *testing.T) {
	store := &fakeStore{webhooks: map[string]domain.Webhook{}, scripts: map[int64]domain.Script{}}
	rec := doTrigger(t, store, &fakeRunner{}, "missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestTrigger_WebhookWithMissingScriptReturns404(t *testing.T) {
	store := &fakeStore{
		webhooks: map[string]domain.Webhook{"deploy": {ID: 1, Name: "deploy", ScriptID: 99}},
		scripts:  map[int64]domain.Script{},
	}
	rec := doTrigger(t, store, &fakeRunner{}, "deploy")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestTrigger_LockHeldReturns409(t *testing.T) {
	store := &fakeStore{
		webhooks: map[string]domain.Webhook{"deploy": {ID: 1, Name: "deploy", ScriptID: 1}},
		scripts:  map[int64]domain.Script{1: {ID: 1, Name: "deploy-script"}},
	}
	rec := doTrigger(t, store, &fakeRunner{err: domain.ErrLockHeld}, "deploy")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestTrigger_ExecutorErrorReturns500(t *testing.T) {
	store := &fakeStore{
		webhooks: map[string]domain.Webhook{"deploy": {ID: 1, Name: "deploy", ScriptID: 1}},
		scripts:  map[int64]domain.Script{1: {ID: 1, Name: "deploy-script"}},
	}
	rec := doTrigger(t, store, &fakeRunner{err: errors.New("boom")}, "deploy")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestTrigger_SuccessReturns200WithRunIDAndStatus(t *testing.T) {
	store := &fakeStore{
		webhooks: map[string]domain.Webhook{"deploy": {ID: 1, Name: "deploy", ScriptID: 1}},
		scripts:  map[int64]domain.Script{1: {ID: 1, Name: "deploy-script"}},
	}
	run := &domain.Run{ID: 42, Status: domain.RunStatusSuccess}
	rec := doTrigger(t, store, &fakeRunner{run: run}, "deploy")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		OK     bool   `json:"ok"`
		RunID  int64  `json:"run_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !body.OK || body.RunID != 42 || body.Status != "success" {
		t.Fatalf("unexpected response body: %+v", body)
	}
}
