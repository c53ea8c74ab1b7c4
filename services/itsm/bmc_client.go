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
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// BMC Remedy AR forms queried for incidents, in fallback order. Help Desk is
// the primary record class; the interface form catches records that are not
// directly visible on the primary form.
const (
	formHelpDesk          = "HPD:Help Desk"
	formIncidentInterface = "HPD:IncidentInterface"
)

// defaultTokenTTL is how long a cached AR-JWT is reused before a fresh login.
// Remedy's server-side session timeout is typically an hour; staying well
// under it avoids racing the expiry on a long poll.
const defaultTokenTTL = 30 * time.Minute

// LookupResult is the outcome of an incident lookup.
//
// Absence of a ticket is a normal outcome, not an error: when neither form
// yields a row, Found is false and Fields is nil.
type LookupResult struct {
	Found  bool
	Fields map[string]string
}

// BMCClient queries the BMC Remedy AR REST API for incident records.
//
// Description:
//
//	Authenticates with the credential-based /api/jwt/login endpoint and
//	caches the session token per process. Lookups are read-only and
//	idempotent, so a token shared across goroutines needs no coordination
//	beyond the cache lock; an expired or rejected token triggers a single
//	re-login.
//
// Thread Safety: BMCClient is safe for concurrent use.
type BMCClient struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string

	tokenMu      sync.Mutex
	token        string
	tokenFetched time.Time
	tokenTTL     time.Duration
}

// NewBMCClient creates a BMCClient with explicit configuration. baseURL is
// the AR server root, e.g. "https://company-restapi.onbmc.com".
func NewBMCClient(baseURL, username, password string) *BMCClient {
	return &BMCClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		tokenTTL:   defaultTokenTTL,
	}
}

// login performs the AR-JWT credential exchange and returns the raw token.
func (c *BMCClient) login(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/jwt/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("bmc: creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("bmc: login request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("bmc: reading login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bmc: login returned status %d", resp.StatusCode)
	}

	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", fmt.Errorf("bmc: login returned empty token")
	}
	return token, nil
}

// sessionToken returns the cached AR-JWT, logging in when the cache is cold
// or stale.
func (c *BMCClient) sessionToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Since(c.tokenFetched) < c.tokenTTL {
		return c.token, nil
	}

	token, err := c.login(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.tokenFetched = time.Now()
	return token, nil
}

// invalidateToken drops the cached token so the next call re-authenticates.
func (c *BMCClient) invalidateToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenMu.Unlock()
}

// arEntryList mirrors the AR REST entry collection envelope.
type arEntryList struct {
	Entries []struct {
		Values map[string]any `json:"values"`
	} `json:"entries"`
}

// Lookup queries an incident by its canonical reference.
//
// Description:
//
//	Queries the primary Help Desk form by incident number and, only when no
//	entry is found there, falls back to the incident interface form. Both
//	queries use the same qualification string. Returns Found=false when
//	neither form yields a row.
//
//	A rejected session token (401) is retried once after a fresh login.
//	Network and auth failures return an error; the caller maps them to its
//	upstream-unavailable taxonomy.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - ticketRef: Canonical incident reference (see NormalizeIncidentRef).
//
// Outputs:
//   - LookupResult: Found flag plus the raw (unprojected) field mapping.
//   - error: Non-nil only on transport or auth failure.
//
// Thread Safety: This method is safe for concurrent use.
func (c *BMCClient) Lookup(ctx context.Context, ticketRef string) (LookupResult, error) {
	for _, form := range []string{formHelpDesk, formIncidentInterface} {
		entry, found, err := c.queryForm(ctx, form, ticketRef)
		if err != nil {
			return LookupResult{}, err
		}
		if found {
			slog.Debug("BMC incident found",
				slog.String("form", form),
				slog.String("ticket_ref", ticketRef),
			)
			return LookupResult{Found: true, Fields: entry}, nil
		}
	}

	slog.Debug("BMC incident not found", slog.String("ticket_ref", ticketRef))
	return LookupResult{}, nil
}

// queryForm runs one query against a single AR form.
func (c *BMCClient) queryForm(ctx context.Context, form, ticketRef string) (map[string]string, bool, error) {
	list, err := c.doQuery(ctx, form, ticketRef, true)
	if err != nil {
		return nil, false, err
	}
	if len(list.Entries) == 0 {
		return nil, false, nil
	}
	return stringifyValues(list.Entries[0].Values), true, nil
}

// doQuery issues the HTTP GET. retryAuth permits one token refresh on 401.
func (c *BMCClient) doQuery(ctx context.Context, form, ticketRef string, retryAuth bool) (*arEntryList, error) {
	token, err := c.sessionToken(ctx)
	if err != nil {
		return nil, err
	}

	qualification := fmt.Sprintf("'Incident Number'=%q", ticketRef)
	reqURL := fmt.Sprintf("%s/api/arsys/v1/entry/%s?q=%s",
		c.baseURL, url.PathEscape(form), url.QueryEscape(qualification))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("bmc: creating query request: %w", err)
	}
	req.Header.Set("Authorization", "AR-JWT "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bmc: query request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && retryAuth {
		c.invalidateToken()
		return c.doQuery(ctx, form, ticketRef, false)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bmc: query returned status %d for form %s", resp.StatusCode, form)
	}

	var list arEntryList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("bmc: parsing query response: %w", err)
	}
	return &list, nil
}

// stringifyValues flattens the mixed-type AR value map into strings. The AR
// API returns numbers for priority-class fields and strings for the rest;
// nulls are dropped.
func stringifyValues(values map[string]any) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		switch t := v.(type) {
		case nil:
			// dropped
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
