package resilience

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBreakerOpensAfterFailures(t *testing.T) {
	b := NewBreaker(3, 0.5, time.Minute)
	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("request %d should be allowed", i)
		}
		b.Report(false)
	}
	if b.Allow() {
		t.Fatal("breaker should be open after failure ratio exceeded")
	}
}

func TestBreakerStaysClosedUnderMinRequests(t *testing.T) {
	b := NewBreaker(5, 0.5, time.Minute)
	b.Report(false)
	b.Report(false)
	if !b.Allow() {
		t.Fatal("breaker must not open below the minimum request count")
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker(1, 0.5, 10*time.Millisecond)
	b.Report(false)
	if b.Allow() {
		t.Fatal("expected open")
	}
	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected half-open probe to be allowed")
	}
	b.Report(true)
	if !b.Allow() {
		t.Fatal("expected closed after successful probe")
	}
}

func TestBreakerHalfOpenReopensOnFailure(t *testing.T) {
	b := NewBreaker(1, 0.5, 10*time.Millisecond)
	b.Report(false)
	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected half-open probe")
	}
	b.Report(false)
	if b.Allow() {
		t.Fatal("expected reopened breaker")
	}
}

func TestClientSingleAttempt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := &Client{HTTP: srv.Client(), Timeout: time.Second}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := c.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	_ = resp.Body.Close()
	if calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", calls)
	}
}

func TestClientRefusesWhenBreakerOpen(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &Client{HTTP: srv.Client(), Breaker: NewBreaker(1, 0.5, time.Minute), Timeout: time.Second}
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	_ = resp.Body.Close()

	_, err = c.Do(context.Background(), req)
	if err != ErrOpenCircuit {
		t.Fatalf("expected ErrOpenCircuit, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("open breaker must not hit the network, calls=%d", calls)
	}
}

func TestClientBodyReadableAfterDoReturns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":`))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		time.Sleep(50 * time.Millisecond)
		_, _ = w.Write([]byte(`"COMPLETED"}`))
	}))
	defer srv.Close()

	c := &Client{HTTP: srv.Client(), Timeout: 2 * time.Second}
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode after Do returned: %v", err)
	}
	if payload.Status != "COMPLETED" {
		t.Fatalf("unexpected status %q", payload.Status)
	}
}

func TestClientTimeoutCoversBodyRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("partial"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := &Client{HTTP: srv.Client(), Timeout: 30 * time.Millisecond}
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	buf := make([]byte, 64)
	n, _ := resp.Body.Read(buf)
	if _, err := resp.Body.Read(buf[n:]); err == nil {
		t.Fatal("expected deadline error reading a stalled body")
	}
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := &Client{HTTP: srv.Client(), Timeout: 20 * time.Millisecond}
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	if _, err := c.Do(context.Background(), req); err == nil {
		t.Fatal("expected timeout error")
	}
}
