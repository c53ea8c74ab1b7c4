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
	"strings"
	"testing"
)

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    intent
	}{
		{"ticket keyword", "¿cuál es el estatus de mi ticket?", intentTicket},
		{"incident reference", "dame seguimiento al inc 6816", intentTicket},
		{"reset keyword", "quiero resetear mi contraseña", intentReset},
		{"locked account", "mi cuenta está bloqueada", intentReset},
		{"reset wins over ticket", "reset del ticket de mi contraseña", intentReset},
		{"uppercase", "ESTATUS DEL INC 1730", intentTicket},
		{"no match", "buenos días", intentNone},
		{"empty", "", intentNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectIntent(tt.message); got != tt.want {
				t.Errorf("detectIntent(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestBuildSystemPromptModules(t *testing.T) {
	base := buildSystemPrompt("Ana", intentNone)
	if !strings.Contains(base, "SOPHIA") {
		t.Error("base prompt missing the persona")
	}
	if !strings.Contains(base, "Ana") {
		t.Error("base prompt missing the display name")
	}

	ticket := buildSystemPrompt("Ana", intentTicket)
	if !strings.Contains(ticket, "status_lookup") {
		t.Error("ticket prompt does not reference the lookup tool")
	}
	if strings.Contains(base, "status_lookup") {
		t.Error("lookup guidance leaked into the base prompt")
	}

	resetP := buildSystemPrompt("Ana", intentReset)
	if !strings.Contains(resetP, "confirmed") {
		t.Error("reset prompt does not state the confirmation rule")
	}
}

func TestBuildSystemPromptFallbackName(t *testing.T) {
	got := buildSystemPrompt("", intentNone)
	if !strings.Contains(got, "Usuario") {
		t.Error("empty display name did not fall back to the generic form")
	}
}
