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

// projectedFields is the allow-list mapping raw AR form field names to the
// stable keys exposed to the language model. Anything not listed here is
// dropped at the projection boundary, so an upstream schema change can never
// leak a new field into a prompt.
var projectedFields = []struct {
	raw string
	out string
}{
	{"Incident Number", "ticket_id"},
	{"Status", "status"},
	{"Assigned Group", "assigned_group"},
	{"Assignee", "assignee"},
	{"Description", "summary"},
	{"Detailed Decription", "details"}, // AR field name carries this historical typo
	{"Priority", "priority"},
	{"Reported Date", "reported_date"},
}

// ProjectIncident reduces a raw incident record to the model-visible field
// mapping.
//
// Description:
//
//	Applies the fixed allow-list above. Fields that are absent or empty in
//	the raw record are omitted from the output entirely rather than mapped
//	to empty strings, so the model never narrates blank values.
//
//	This is the privacy and format boundary between the ticketing backend
//	and the language model: raw AR field names and unlisted data must not
//	cross it.
//
// Inputs:
//   - raw: The raw field mapping returned by the AR REST API. May be nil.
//
// Outputs:
//   - map[string]string: The projected record. Empty (non-nil) when nothing
//     survives projection.
//
// Thread Safety: Pure function, safe for concurrent use.
func ProjectIncident(raw map[string]string) map[string]string {
	projected := make(map[string]string, len(projectedFields))
	for _, f := range projectedFields {
		if v, ok := raw[f.raw]; ok && v != "" {
			projected[f.out] = v
		}
	}
	return projected
}
