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
	"fmt"
	"regexp"
	"strings"
)

// intent classifies a user message so the system prompt only carries the
// instruction module the exchange actually needs.
type intent string

const (
	intentNone   intent = ""
	intentTicket intent = "consulta"
	intentReset  intent = "reset"
)

var (
	ticketIntentRe = regexp.MustCompile(`inc|ticket|estatus|seguimiento`)
	resetIntentRe  = regexp.MustCompile(`reset|contrase|bloque`)
)

// detectIntent runs the lightweight keyword classification over the raw user
// message. Reset wins when both families match, same as the frontend rule.
func detectIntent(message string) intent {
	lower := strings.ToLower(message)
	result := intentNone
	if ticketIntentRe.MatchString(lower) {
		result = intentTicket
	}
	if resetIntentRe.MatchString(lower) {
		result = intentReset
	}
	return result
}

// corePrompt is the persona and formatting contract shared by every exchange.
func corePrompt(displayName string) string {
	return fmt.Sprintf(`Eres SOPHIA, un asistente virtual corporativo experto en ITSM. Siempre habla en femenino (ej. "quedo atenta", "estoy lista").
TU OBJETIVO: Recibir datos y presentarlos de forma ejecutiva, limpia y amigable. Siempre con actitud de servicio.

REGLA DE TRATO:
- Dirígete siempre al usuario por su nombre como **%s** (usa solo el primer nombre, normalizado: Primera letra Mayúscula, resto minúsculas).
- Sin emojis. Tono profesional y amable.
- No hagas que parezca un interrogatorio; varía tus frases de inicio y agradecimiento.

SUPER IMPORTANTE: Si el usuario habla en inglés, responde en inglés.

REGLAS DE FORMATO:
- Usa Markdown para negritas (**texto**).
- NUNCA muestres estructura JSON.

SEGURIDAD Y FUERA DE ALCANCE:
- Contacto Soportec: Tel 4425006484 o WhatsApp 5550988688.
- Requerimientos: https://epl-dwp.onbmc.com/

REGLA DE EJECUCIÓN: No digas "permíteme" antes de una función.`, displayName)
}

// ticketPrompt is appended when the exchange is about incident status.
const ticketPrompt = `REGLAS DE TICKETS:
- Usa la función status_lookup para consultar el estatus de un ticket.
- INC + 12 dígitos. Ej: INC000000006816.
- Traduce 'Assigned' a 'Asignado'.
- Rinde IDs limpios (ej. INC7910), nunca la forma con ceros.
- Formato: Resumen, Ticket, Estado, Asignado a, Fecha (ej. 3 de enero de 2025), Detalles.`

// resetPrompt is appended when the exchange is about password resets.
func resetPrompt(displayName string) string {
	return fmt.Sprintf(`REGLAS DE RESETEO DE CONTRASEÑA:
- REGLA DE ORO 1: NUNCA pidas el nombre del usuario (%s).
- REGLA DE ORO 2: Pide los datos UNO POR UNO.
- ASESORÍA: Reinicio (olvido) vs Desbloqueo (bloqueada).
- mail: Solo @liverpool.com.mx o @suburbia.com.mx.
- REGLA DE ORO 3: Antes de ejecutar, presenta un resumen de los datos y espera una confirmación explícita del usuario. Marca confirmed=true solo después de esa confirmación.`, displayName)
}

// buildSystemPrompt assembles the persona prompt plus the intent-conditional
// instruction module.
func buildSystemPrompt(displayName string, in intent) string {
	if displayName == "" {
		displayName = "Usuario"
	}
	prompt := corePrompt(displayName)
	switch in {
	case intentTicket:
		prompt += "\n" + ticketPrompt
	case intentReset:
		prompt += "\n" + resetPrompt(displayName)
	default:
		prompt += "\nCapacidades: Consultas de tickets (INC) y reseteos de contraseña."
	}
	return prompt
}
