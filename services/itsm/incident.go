// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package itsm talks to the BMC Remedy ticketing backend: it normalizes
// user-supplied ticket references into canonical incident numbers, queries
// incidents over the AR REST API, and projects the raw records down to the
// field set the language model is allowed to see.
package itsm

import "strings"

const (
	// incidentPrefix is the literal prefix of every canonical incident number.
	incidentPrefix = "INC"

	// incidentDigits is the zero-padded width of the numeric body.
	incidentDigits = 12
)

// NormalizeIncidentRef maps a free-form ticket reference to its canonical
// form.
//
// Description:
//
//	Strips whitespace, uppercases, extracts every decimal digit from the
//	input, left-pads the digit string with zeros to twelve places, and
//	prepends "INC". Works uniformly whether the user supplied a full ID
//	("INC000000006816"), a bare suffix ("6816"), or mixed-case text
//	("inc 6816").
//
//	Digit strings longer than twelve places pass through untruncated. The
//	backend will not match such an ID; callers that want to reject them up
//	front should check len(ref) > len("INC")+12. Truncating here would
//	silently look up the wrong ticket.
//
// Inputs:
//   - raw: Arbitrary user-supplied ticket reference. May be empty.
//
// Outputs:
//   - string: The canonical reference, or "" when the input contains no digits.
//
// Thread Safety: Pure function, safe for concurrent use.
func NormalizeIncidentRef(raw string) string {
	var digits strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return ""
	}

	body := digits.String()
	if pad := incidentDigits - len(body); pad > 0 {
		body = strings.Repeat("0", pad) + body
	}
	return incidentPrefix + body
}

// ShortRef renders a canonical incident reference in the compact form shown
// to end users, e.g. "INC000000006816" becomes "INC6816". Input that is not
// a canonical reference is returned unchanged.
func ShortRef(canonical string) string {
	body, ok := strings.CutPrefix(canonical, incidentPrefix)
	if !ok || body == "" {
		return canonical
	}
	trimmed := strings.TrimLeft(body, "0")
	if trimmed == "" {
		// All zeros; keep a single digit so the reference stays readable.
		trimmed = "0"
	}
	return incidentPrefix + trimmed
}
