// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reset executes password-reset jobs against the user-management
// service. Resets are asynchronous downstream: initiation returns a job
// handle and the outcome is obtained by polling a bounded number of times.
package reset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Status is the state of a reset job as tracked by the polling loop.
type Status string

const (
	// StatusPending means the downstream job has not reached a terminal state.
	StatusPending Status = "pending"
	// StatusSuccess means the downstream completed the reset.
	StatusSuccess Status = "success"
	// StatusFailed means the downstream reported a verification failure.
	// This is a legitimate business outcome, not a transport error.
	StatusFailed Status = "failed"
	// StatusTimedOut means polling exhausted its attempts (or the request
	// context was canceled) while the job was still pending.
	StatusTimedOut Status = "timed_out"
)

// Defaults for the polling policy. Overridable per client via NewClient.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxAttempts  = 12
)

// Args carries the fields the orchestrator passes through to the reset
// initiation call.
type Args struct {
	EmployeeID string `json:"employee_id"`
	Email      string `json:"email"`
	ResetType  string `json:"reset_type"` // "reinicio" (forgotten) or "desbloqueo" (locked)
}

// JobHandle identifies one in-flight reset job. The ID is opaque and comes
// from the downstream service.
type JobHandle struct {
	ID string
}

// Outcome is the terminal result of one reset job.
//
// All three terminal states are normal, non-exceptional results: success
// carries the related incident reference and detail text, failed carries the
// downstream's explanation, timed_out carries no downstream detail.
type Outcome struct {
	Status      Status
	Detail      string
	IncidentRef string
}

// Client talks to the user-management reset service.
//
// Thread Safety: Client is safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	bearerToken  string
	pollInterval time.Duration
	maxAttempts  int
}

// NewClient creates a reset Client. Zero pollInterval or maxAttempts fall
// back to the package defaults.
func NewClient(baseURL, bearerToken string, pollInterval time.Duration, maxAttempts int) *Client {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      strings.TrimRight(baseURL, "/"),
		bearerToken:  bearerToken,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
	}
}

// startResponse mirrors the initiation response envelope.
type startResponse struct {
	JobID string `json:"jobId"`
}

// statusResponse mirrors the polling response envelope.
type statusResponse struct {
	Status      string `json:"status"` // pending | success | failed
	Detail      string `json:"detail,omitempty"`
	IncidentRef string `json:"incidentRef,omitempty"`
}

// StartReset initiates a reset job downstream.
//
// Description:
//
//	POSTs the reset arguments and returns the job handle. A transport
//	failure, a non-2xx status, or a response without a job id are all
//	initiation failures. Initiation is not idempotent downstream, so the
//	caller must issue it at most once per confirmed tool call and must not
//	retry blindly.
//
// Outputs:
//   - JobHandle: The opaque downstream job identifier.
//   - error: Non-nil when the initiation call could not be completed.
func (c *Client) StartReset(ctx context.Context, args Args) (JobHandle, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return JobHandle{}, fmt.Errorf("reset: marshaling start request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/reset/start", bytes.NewReader(payload))
	if err != nil {
		return JobHandle{}, fmt.Errorf("reset: creating start request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return JobHandle{}, fmt.Errorf("reset: start request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return JobHandle{}, fmt.Errorf("reset: reading start response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return JobHandle{}, fmt.Errorf("reset: start returned status %d", resp.StatusCode)
	}

	var parsed startResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return JobHandle{}, fmt.Errorf("reset: parsing start response: %w", err)
	}
	if parsed.JobID == "" {
		return JobHandle{}, fmt.Errorf("reset: start returned no job id")
	}

	slog.Info("Reset job initiated", slog.String("job_id", parsed.JobID))
	return JobHandle{ID: parsed.JobID}, nil
}

// AwaitOutcome drives the polling state machine for one job to a terminal
// state.
//
// Description:
//
//	Polls the job status at a fixed interval up to the configured maximum
//	attempt count. The loop terminates on the first poll that reports
//	success or failed; exhausting the attempts while the job is still
//	pending yields timed_out. Cancellation of ctx stops the loop before the
//	next poll and yields a timed_out-equivalent outcome — the in-flight
//	job is discarded, never left polling in the background.
//
//	A transport failure during polling is an error (the upstream is
//	unavailable); a downstream-reported "failed" status is a terminal
//	Outcome the caller narrates to the user.
//
// Outputs:
//   - Outcome: The terminal job outcome. Meaningful only when error is nil.
//   - error: Non-nil only on transport failure while polling.
func (c *Client) AwaitOutcome(ctx context.Context, handle JobHandle) (Outcome, error) {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		status, err := c.pollOnce(ctx, handle)
		if err != nil {
			// Cancellation mid-poll is the caller giving up, not the
			// downstream being unreachable.
			if ctx.Err() != nil {
				recordOutcome(StatusTimedOut, attempt)
				return Outcome{Status: StatusTimedOut}, nil
			}
			return Outcome{}, err
		}

		switch status.Status {
		case string(StatusSuccess):
			recordOutcome(StatusSuccess, attempt)
			return Outcome{
				Status:      StatusSuccess,
				Detail:      status.Detail,
				IncidentRef: status.IncidentRef,
			}, nil
		case string(StatusFailed):
			recordOutcome(StatusFailed, attempt)
			return Outcome{Status: StatusFailed, Detail: status.Detail}, nil
		}

		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			slog.Warn("Reset polling canceled",
				slog.String("job_id", handle.ID),
				slog.Int("attempts", attempt),
			)
			recordOutcome(StatusTimedOut, attempt)
			return Outcome{Status: StatusTimedOut}, nil
		case <-time.After(c.pollInterval):
		}
	}

	slog.Warn("Reset polling exhausted attempts",
		slog.String("job_id", handle.ID),
		slog.Int("max_attempts", c.maxAttempts),
	)
	recordOutcome(StatusTimedOut, c.maxAttempts)
	return Outcome{Status: StatusTimedOut}, nil
}

// pollOnce issues a single status read for the job.
func (c *Client) pollOnce(ctx context.Context, handle JobHandle) (*statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/reset/status/"+handle.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("reset: creating status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reset: status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reset: status returned %d for job %s", resp.StatusCode, handle.ID)
	}

	var parsed statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("reset: parsing status response: %w", err)
	}
	return &parsed, nil
}
