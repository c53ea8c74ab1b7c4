// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package itsm

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

// newBMCTestServer builds a mock AR server. helpDesk and iface map incident
// numbers to raw value maps for the two forms.
func newBMCTestServer(t *testing.T, helpDesk, iface map[string]map[string]any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var logins atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/jwt/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostFormValue("username") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		logins.Add(1)
		w.Write([]byte("test-jwt-token"))
	})
	mux.HandleFunc("/api/arsys/v1/entry/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "AR-JWT test-jwt-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		form := strings.TrimPrefix(r.URL.Path, "/api/arsys/v1/entry/")
		records := helpDesk
		if form == formIncidentInterface {
			records = iface
		}

		// Pull the quoted incident number out of the qualification.
		q := r.URL.Query().Get("q")
		start := strings.Index(q, `"`)
		end := strings.LastIndex(q, `"`)
		var ref string
		if start >= 0 && end > start {
			ref = q[start+1 : end]
		}

		resp := arEntryList{}
		if values, ok := records[ref]; ok {
			resp.Entries = append(resp.Entries, struct {
				Values map[string]any `json:"values"`
			}{Values: values})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	return httptest.NewServer(mux), &logins
}

func TestBMCClient_Lookup_PrimaryForm(t *testing.T) {
	server, _ := newBMCTestServer(t, map[string]map[string]any{
		"INC000000006816": {
			"Incident Number": "INC000000006816",
			"Status":          "Assigned",
			"Priority":        float64(2),
		},
	}, nil)
	defer server.Close()

	client := NewBMCClient(server.URL, "svc-user", "svc-pass")
	result, err := client.Lookup(context.Background(), "INC000000006816")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Found {
		t.Fatal("expected Found=true")
	}
	if result.Fields["Status"] != "Assigned" {
		t.Errorf("Status = %q, want Assigned", result.Fields["Status"])
	}
	if result.Fields["Priority"] != "2" {
		t.Errorf("Priority = %q, want flattened \"2\"", result.Fields["Priority"])
	}
}

func TestBMCClient_Lookup_FallbackForm(t *testing.T) {
	server, _ := newBMCTestServer(t, nil, map[string]map[string]any{
		"INC000000001730": {
			"Incident Number": "INC000000001730",
			"Status":          "Resolved",
		},
	})
	defer server.Close()

	client := NewBMCClient(server.URL, "svc-user", "svc-pass")
	result, err := client.Lookup(context.Background(), "INC000000001730")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Found {
		t.Fatal("expected fallback form to find the incident")
	}
	if result.Fields["Status"] != "Resolved" {
		t.Errorf("Status = %q, want Resolved", result.Fields["Status"])
	}
}

func TestBMCClient_Lookup_NotFoundIsNotAnError(t *testing.T) {
	server, _ := newBMCTestServer(t, nil, nil)
	defer server.Close()

	client := NewBMCClient(server.URL, "svc-user", "svc-pass")
	result, err := client.Lookup(context.Background(), "INC000000999999")
	if err != nil {
		t.Fatalf("not-found must not be an error, got: %v", err)
	}
	if result.Found {
		t.Error("expected Found=false")
	}
}

func TestBMCClient_Lookup_TokenIsCached(t *testing.T) {
	server, logins := newBMCTestServer(t, map[string]map[string]any{
		"INC000000000001": {"Incident Number": "INC000000000001"},
	}, nil)
	defer server.Close()

	client := NewBMCClient(server.URL, "svc-user", "svc-pass")
	for i := 0; i < 3; i++ {
		if _, err := client.Lookup(context.Background(), "INC000000000001"); err != nil {
			t.Fatalf("lookup %d failed: %v", i, err)
		}
	}
	if got := logins.Load(); got != 1 {
		t.Errorf("login called %d times, want 1 (token cache)", got)
	}
}

func TestBMCClient_Lookup_ReloginOnRejectedToken(t *testing.T) {
	var logins atomic.Int32
	token := "stale-token"

	mux := http.NewServeMux()
	mux.HandleFunc("/api/jwt/login", func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		token = "fresh-token"
		w.Write([]byte(token))
	})
	mux.HandleFunc("/api/arsys/v1/entry/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "AR-JWT fresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(arEntryList{})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewBMCClient(server.URL, "svc-user", "svc-pass")
	// Seed a token the query endpoint will reject.
	client.tokenMu.Lock()
	client.token = "stale-token"
	client.tokenFetched = time.Now()
	client.tokenMu.Unlock()

	if _, err := client.Lookup(context.Background(), "INC000000000001"); err != nil {
		t.Fatalf("lookup should recover via re-login: %v", err)
	}
}

func TestBMCClient_Lookup_ServerErrorSurfaces(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/jwt/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("test-jwt-token"))
	})
	mux.HandleFunc("/api/arsys/v1/entry/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewBMCClient(server.URL, "svc-user", "svc-pass")
	if _, err := client.Lookup(context.Background(), "INC000000000001"); err == nil {
		t.Fatal("expected error on 500 from AR server")
	}
}

func TestBMCClient_Lookup_LoginFailureSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewBMCClient(server.URL, "svc-user", "bad-pass")
	if _, err := client.Lookup(context.Background(), "INC000000000001"); err == nil {
		t.Fatal("expected error on login failure")
	}
}
