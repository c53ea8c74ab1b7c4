// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"errors"
	"fmt"
)

// ErrUpstreamUnavailable marks transport or auth failures talking to the
// language model or a downstream action service. The chat endpoint maps it
// to an HTTP-level error; every business outcome (not found, unconfirmed,
// failed, timed out) flows through as a normal reply instead.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// ToolExecutionError reports that a dispatched action failed.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s execution failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }
