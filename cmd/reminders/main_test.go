package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestLoggingMiddleware_PassesThroughAndCapturesStatus(t *testing.T) {
	handler := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	if body := rr.Body.String(); body != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", body)
	}
}

func TestStatusRecorder_DefaultsTo200(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	_, _ = rec.Write([]byte("body"))

	if rec.status != http.StatusOK {
		t.Fatalf("expected 200 when WriteHeader is not called, got %d", rec.status)
	}
}

func setCommandEnv(t *testing.T, dbPath string) {
	t.Helper()

	t.Setenv("CONFIG_FILE", "")
	t.Setenv("VAPI_API_KEY", "test-key")
	t.Setenv("PHONE_NUMBER_ID", "pn-1")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", dbPath)
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("LOG_LEVEL", "error")
}

func TestMigrateCommand_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "reminders.db")
	setCommandEnv(t, dbPath)

	defer rootCmd.SetArgs(nil)
	rootCmd.SetArgs([]string{"migrate"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database file at %s: %v", dbPath, err)
	}
}

func TestScanCommand_PrintsEmptyPass(t *testing.T) {
	setCommandEnv(t, filepath.Join(t.TempDir(), "reminders.db"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	defer rootCmd.SetOut(nil)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"scan"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	var res map[string]int
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decoding scan output: %v output=%q", err, out.String())
	}
	if res["due"] != 0 || res["errors"] != 0 {
		t.Fatalf("expected empty pass, got %v", res)
	}
}

func TestRootCommand_ConfigErrors(t *testing.T) {
	setCommandEnv(t, filepath.Join(t.TempDir(), "reminders.db"))
	t.Setenv("VAPI_API_KEY", "")

	defer rootCmd.SetArgs(nil)
	rootCmd.SetArgs([]string{"migrate"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatalf("expected missing VAPI_API_KEY to fail")
	}
}
