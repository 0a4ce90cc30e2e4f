package ml

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"matclass/features"
)

func steelPayload() features.Payload {
	return features.Encode([features.Count]string{"500", "250", "200000", "80000", "0.3", "7850"})
}

func TestPredict_Success(t *testing.T) {
	var gotMethod, gotContentType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"predicted_material": "Steel"}`))
	}))
	defer srv.Close()

	out := NewClient(srv.URL).Predict(context.Background(), steelPayload())
	if out.Kind != KindLabel || out.Label != "Steel" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.Display() != "Predicted Material: Steel" {
		t.Fatalf("unexpected display: %q", out.Display())
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if gotContentType != "application/json" {
		t.Fatalf("expected application/json, got %q", gotContentType)
	}
	if len(gotBody) != features.Count {
		t.Fatalf("expected %d keys in body, got %v", features.Count, gotBody)
	}
	if gotBody["E"].(float64) != 200000 || gotBody["mu"].(float64) != 0.3 {
		t.Fatalf("unexpected body: %v", gotBody)
	}
}

func TestPredict_BlankFieldsStillSent(t *testing.T) {
	var calls atomic.Int32
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad input"}`))
	}))
	defer srv.Close()

	out := NewClient(srv.URL).Predict(context.Background(), features.Encode([features.Count]string{}))
	if calls.Load() != 1 {
		t.Fatalf("expected 1 request, got %d", calls.Load())
	}
	for _, k := range features.Keys {
		v, ok := gotBody[k]
		if !ok {
			t.Fatalf("missing key %s in %v", k, gotBody)
		}
		if v != nil {
			t.Fatalf("expected null for %s, got %v", k, v)
		}
	}
	if out.Kind != KindFailure || out.Cause != CauseServer {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestPredict_FailuresNormalized(t *testing.T) {
	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	handler := func(status int, body string) string {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte(body))
		}))
		t.Cleanup(srv.Close)
		return srv.URL
	}

	tests := []struct {
		name  string
		url   string
		cause Cause
	}{
		{"network error", closedURL, CauseNetwork},
		{"http 500", handler(500, `{"error":"boom"}`), CauseServer},
		{"missing field", handler(200, `{"other":"x"}`), CauseSchema},
		{"null field", handler(200, `{"predicted_material":null}`), CauseSchema},
		{"empty field", handler(200, `{"predicted_material":""}`), CauseSchema},
		{"non-string field", handler(200, `{"predicted_material":7}`), CauseSchema},
		{"malformed json", handler(200, `not json`), CauseSchema},
		{"array body", handler(200, `["Steel"]`), CauseSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewClient(tt.url).Predict(context.Background(), steelPayload())
			if out.Kind != KindFailure {
				t.Fatalf("expected failure, got %+v", out)
			}
			if out.Cause != tt.cause {
				t.Fatalf("expected cause %q, got %q (%v)", tt.cause, out.Cause, out.Err)
			}
			if out.Display() != FailureMessage {
				t.Fatalf("unexpected message: %q", out.Display())
			}
		})
	}
}

func TestPredict_StatusErrorTruncated(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
		w.Write(long)
	}))
	defer srv.Close()

	out := NewClient(srv.URL).Predict(context.Background(), steelPayload())
	var se *StatusError
	if !errors.As(out.Err, &se) {
		t.Fatalf("expected *StatusError, got %T: %v", out.Err, out.Err)
	}
	if se.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", se.StatusCode)
	}
	if len(se.Body) != maxErrorBody {
		t.Fatalf("expected body truncated to %d, got %d", maxErrorBody, len(se.Body))
	}
}

func TestPredict_NoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(503)
	}))
	defer srv.Close()

	NewClient(srv.URL).Predict(context.Background(), steelPayload())
	if calls.Load() != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls.Load())
	}
}

func TestPredict_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"predicted_material":"Steel"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := NewClient(srv.URL).Predict(ctx, steelPayload())
	if out.Kind != KindFailure || out.Cause != CauseNetwork {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if !errors.Is(out.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", out.Err)
	}
}

func TestPredict_LogsCause(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.DebugLevel)
	NewClient(srv.URL, WithLogger(zap.New(core))).Predict(context.Background(), steelPayload())

	entries := logs.FilterMessage("prediction failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 failure log, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["cause"] != "server" {
		t.Fatalf("expected cause=server, got %v", ctx["cause"])
	}
	if ctx["status"] != int64(500) {
		t.Fatalf("expected status=500, got %v (%T)", ctx["status"], ctx["status"])
	}
}

func TestNewClient_DefaultEndpoint(t *testing.T) {
	if got := NewClient("").Endpoint(); got != DefaultEndpoint {
		t.Fatalf("expected %s, got %s", DefaultEndpoint, got)
	}
}

func TestOutcomeDisplay(t *testing.T) {
	if Empty().Display() != "" {
		t.Fatal("empty outcome should display nothing")
	}
	if Label("Aluminium").Display() != "Predicted Material: Aluminium" {
		t.Fatalf("unexpected label display: %q", Label("Aluminium").Display())
	}
	v := Failure(CauseNetwork, errors.New("dial")).View()
	if v.Status != "failure" || v.Text != FailureMessage || v.Label != "" {
		t.Fatalf("unexpected view: %+v", v)
	}
}

func TestNewClient_TimeoutOptionOrder(t *testing.T) {
	shared := &http.Client{}

	tests := []struct {
		name string
		opts []Option
	}{
		{"timeout first", []Option{WithTimeout(3 * time.Second), WithHTTPClient(shared)}},
		{"client first", []Option{WithHTTPClient(shared), WithTimeout(3 * time.Second)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient("", tt.opts...)
			if c.httpClient.Timeout != 3*time.Second {
				t.Fatalf("timeout = %v, want 3s", c.httpClient.Timeout)
			}
			if c.httpClient == shared {
				t.Fatal("shared client should be copied")
			}
			if shared.Timeout != 0 {
				t.Fatalf("shared client was modified: %v", shared.Timeout)
			}
		})
	}

	if c := NewClient("", WithHTTPClient(shared)); c.httpClient != shared {
		t.Fatal("client without timeout option should be used as is")
	}
}
