package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestVapiClient_PlaceCall_Success(t *testing.T) {
	t.Parallel()

	type gotReq struct {
		Method        string
		Path          string
		ContentType   string
		Authorization string
		Body          []byte
	}

	var captured gotReq

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.ContentType = r.Header.Get("Content-Type")
		captured.Authorization = r.Header.Get("Authorization")

		b, _ := ioReadAll(r)
		captured.Body = b

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"call-123","status":"queued"}`))
	}))
	defer srv.Close()

	c := NewVapiClient(VapiConfig{BaseURL: srv.URL + "/", APIKey: "secret", PhoneNumberID: "pn-1"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	callID, err := c.PlaceCall(ctx, "+37379334046", "Reminder titled Test: hello.")
	if err != nil {
		t.Fatalf("PlaceCall() error: %v", err)
	}
	if callID != "call-123" {
		t.Fatalf("expected call id %q, got %q", "call-123", callID)
	}

	if captured.Method != http.MethodPost {
		t.Fatalf("expected method POST, got %q", captured.Method)
	}
	if captured.Path != "/call" {
		t.Fatalf("expected path /call, got %q", captured.Path)
	}
	if captured.ContentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", captured.ContentType)
	}
	if captured.Authorization != "Bearer secret" {
		t.Fatalf("expected bearer auth, got %q", captured.Authorization)
	}

	var req callRequest
	if err := json.Unmarshal(captured.Body, &req); err != nil {
		t.Fatalf("failed to decode request json: %v body=%q", err, string(captured.Body))
	}
	if req.PhoneNumberID != "pn-1" {
		t.Fatalf("expected phoneNumberId %q, got %q", "pn-1", req.PhoneNumberID)
	}
	if req.Customer.Number != "+37379334046" {
		t.Fatalf("expected customer number, got %q", req.Customer.Number)
	}
	if req.Assistant.FirstMessage != "Reminder titled Test: hello." {
		t.Fatalf("unexpected first message %q", req.Assistant.FirstMessage)
	}
	if req.Assistant.Model.Provider != "openai" || req.Assistant.Model.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected model defaults: %+v", req.Assistant.Model)
	}
	if req.Assistant.Voice.Provider != "11labs" || req.Assistant.Voice.VoiceID != "paula" {
		t.Fatalf("unexpected voice defaults: %+v", req.Assistant.Voice)
	}
}

func TestVapiClient_PlaceCall_Non2xx_ReturnsErrorWithBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid key"))
	}))
	defer srv.Close()

	c := NewVapiClient(VapiConfig{BaseURL: srv.URL})

	_, err := c.PlaceCall(context.Background(), "+361", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	msg := err.Error()
	if !strings.Contains(msg, "unexpected status code: 401") {
		t.Fatalf("expected error to mention status code, got: %v", err)
	}
	if !strings.Contains(msg, `body="invalid key"`) {
		t.Fatalf("expected error to include body, got: %v", err)
	}
}

func TestVapiClient_PlaceCall_InvalidJSON_ReturnsErrorWithBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("THIS IS NOT JSON"))
	}))
	defer srv.Close()

	c := NewVapiClient(VapiConfig{BaseURL: srv.URL})

	_, err := c.PlaceCall(context.Background(), "+361", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	msg := err.Error()
	if !strings.Contains(msg, "failed to decode json") {
		t.Fatalf("expected decode error, got: %v", err)
	}
	if !strings.Contains(msg, `body="THIS IS NOT JSON"`) {
		t.Fatalf("expected error to include body, got: %v", err)
	}
}

func TestVapiClient_PlaceCall_MissingID_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"queued"}`))
	}))
	defer srv.Close()

	c := NewVapiClient(VapiConfig{BaseURL: srv.URL})

	_, err := c.PlaceCall(context.Background(), "+361", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "missing call id") {
		t.Fatalf("expected missing call id error, got: %v", err)
	}
}

func TestVapiClient_PlaceCall_DoesNotRetry(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewVapiClient(VapiConfig{BaseURL: srv.URL})

	if _, err := c.PlaceCall(context.Background(), "+361", "hi"); err == nil {
		t.Fatalf("expected error, got nil")
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected exactly one provider request, got %d", got)
	}
}

func TestVapiClient_PlaceCall_ContextCanceled(t *testing.T) {
	t.Parallel()

	// Server that intentionally blocks longer than our context deadline.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))
	defer srv.Close()

	c := NewVapiClient(VapiConfig{BaseURL: srv.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.PlaceCall(ctx, "+361", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	if !strings.Contains(strings.ToLower(err.Error()), "context") &&
		!strings.Contains(strings.ToLower(err.Error()), "deadline") {
		t.Fatalf("expected context/deadline error, got: %v", err)
	}
}

func TestVapiClient_RateLimitHonoursContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))
	defer srv.Close()

	c := NewVapiClient(VapiConfig{BaseURL: srv.URL, CallsPerSecond: 0.1})

	if _, err := c.PlaceCall(context.Background(), "+361", "first"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	// The bucket is empty for the next 10s; a short deadline must fail fast.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.PlaceCall(ctx, "+361", "second")
	if err == nil || !strings.Contains(err.Error(), "waiting for call slot") {
		t.Fatalf("expected rate limiter error, got %v", err)
	}
}

func ioReadAll(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
