// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reset

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newResetTestServer builds a mock reset downstream. statusFn decides the
// response for the nth poll (1-based).
func newResetTestServer(t *testing.T, statusFn func(poll int32) statusResponse) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/reset/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var args Args
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(startResponse{JobID: "job-42"})
	})
	mux.HandleFunc("/api/reset/status/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/job-42") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		n := polls.Add(1)
		json.NewEncoder(w).Encode(statusFn(n))
	})

	return httptest.NewServer(mux), &polls
}

func testClient(url string, maxAttempts int) *Client {
	return NewClient(url, "test-token", time.Millisecond, maxAttempts)
}

func TestStartReset_ReturnsJobHandle(t *testing.T) {
	server, _ := newResetTestServer(t, func(int32) statusResponse {
		return statusResponse{Status: "pending"}
	})
	defer server.Close()

	handle, err := testClient(server.URL, 3).StartReset(context.Background(), Args{
		EmployeeID: "90210",
		Email:      "user@liverpool.com.mx",
		ResetType:  "reinicio",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handle.ID != "job-42" {
		t.Errorf("handle.ID = %q, want job-42", handle.ID)
	}
}

func TestStartReset_MissingJobIDIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	if _, err := testClient(server.URL, 3).StartReset(context.Background(), Args{}); err == nil {
		t.Fatal("expected error when start returns no job id")
	}
}

func TestAwaitOutcome_SuccessOnKthPoll(t *testing.T) {
	const k = 3
	server, polls := newResetTestServer(t, func(n int32) statusResponse {
		if n < k {
			return statusResponse{Status: "pending"}
		}
		return statusResponse{
			Status:      "success",
			Detail:      "Credenciales restablecidas",
			IncidentRef: "INC000000007321",
		}
	})
	defer server.Close()

	outcome, err := testClient(server.URL, 5).AwaitOutcome(context.Background(), JobHandle{ID: "job-42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != StatusSuccess {
		t.Fatalf("Status = %q, want success", outcome.Status)
	}
	if outcome.IncidentRef != "INC000000007321" {
		t.Errorf("IncidentRef = %q", outcome.IncidentRef)
	}
	if got := polls.Load(); got != k {
		t.Errorf("polled %d times, want %d", got, k)
	}
}

func TestAwaitOutcome_AllPendingTimesOut(t *testing.T) {
	const max = 4
	server, polls := newResetTestServer(t, func(int32) statusResponse {
		return statusResponse{Status: "pending"}
	})
	defer server.Close()

	outcome, err := testClient(server.URL, max).AwaitOutcome(context.Background(), JobHandle{ID: "job-42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != StatusTimedOut {
		t.Fatalf("Status = %q, want timed_out", outcome.Status)
	}
	if outcome.Detail != "" {
		t.Errorf("timed_out must carry no downstream detail, got %q", outcome.Detail)
	}
	if got := polls.Load(); got != max {
		t.Errorf("polled %d times, want %d", got, max)
	}
}

func TestAwaitOutcome_FailedIsTerminalBusinessOutcome(t *testing.T) {
	server, _ := newResetTestServer(t, func(int32) statusResponse {
		return statusResponse{Status: "failed", Detail: "identity verification failed"}
	})
	defer server.Close()

	outcome, err := testClient(server.URL, 5).AwaitOutcome(context.Background(), JobHandle{ID: "job-42"})
	if err != nil {
		t.Fatalf("downstream failed must not be a client error: %v", err)
	}
	if outcome.Status != StatusFailed {
		t.Fatalf("Status = %q, want failed", outcome.Status)
	}
	if outcome.Detail != "identity verification failed" {
		t.Errorf("Detail = %q", outcome.Detail)
	}
}

func TestAwaitOutcome_CancelStopsPolling(t *testing.T) {
	server, polls := newResetTestServer(t, func(int32) statusResponse {
		return statusResponse{Status: "pending"}
	})
	defer server.Close()

	// A long interval so cancellation lands while waiting between polls.
	client := NewClient(server.URL, "test-token", time.Minute, 10)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	outcome, err := client.AwaitOutcome(ctx, JobHandle{ID: "job-42"})
	if err != nil {
		t.Fatalf("cancellation must not be an error: %v", err)
	}
	if outcome.Status != StatusTimedOut {
		t.Fatalf("Status = %q, want timed_out-equivalent", outcome.Status)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("loop did not stop on cancel, took %v", elapsed)
	}
	if got := polls.Load(); got != 1 {
		t.Errorf("polled %d times after cancel, want 1", got)
	}
}

func TestAwaitOutcome_TransportFailureIsError(t *testing.T) {
	server, _ := newResetTestServer(t, func(int32) statusResponse {
		return statusResponse{Status: "pending"}
	})
	server.Close() // connection refused from the first poll

	_, err := testClient(server.URL, 3).AwaitOutcome(context.Background(), JobHandle{ID: "job-42"})
	if err == nil {
		t.Fatal("expected transport error when downstream is unreachable")
	}
}
