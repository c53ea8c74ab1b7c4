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

import "github.com/mamartiner07/SophIA/services/llm"

// Tool names the model may request. These are the only two actions the
// orchestrator dispatches; anything else from the model is rejected.
const (
	ToolStatusLookup = "status_lookup"
	ToolResetExecute = "reset_execute"
)

// toolDeclarations is the schema advertised to the model on the first round
// of every exchange. The second round deliberately sends none, so the model
// can only narrate the injected tool result.
var toolDeclarations = []llm.ToolDef{
	{
		Name:        ToolStatusLookup,
		Description: "Consulta el estado de un ticket de soporte (incidente INC).",
		Parameters: llm.ToolParameters{
			Type: "object",
			Properties: map[string]llm.ToolParamDef{
				"ticket_id": {
					Type:        "string",
					Description: "Referencia del ticket tal como la escribió el usuario (p. ej. 'INC000000006816' o '6816').",
				},
			},
			Required: []string{"ticket_id"},
		},
	},
	{
		Name:        ToolResetExecute,
		Description: "Ejecuta el reseteo o desbloqueo de contraseña de un usuario corporativo. Solo debe llamarse cuando el usuario ya confirmó explícitamente el resumen de datos.",
		Parameters: llm.ToolParameters{
			Type: "object",
			Properties: map[string]llm.ToolParamDef{
				"employee_id": {
					Type:        "string",
					Description: "Número de empleado del usuario.",
				},
				"email": {
					Type:        "string",
					Description: "Correo corporativo (@liverpool.com.mx o @suburbia.com.mx).",
				},
				"reset_type": {
					Type:        "string",
					Description: "Tipo de operación solicitada.",
					Enum:        []any{"reinicio", "desbloqueo"},
				},
				"confirmed": {
					Type:        "boolean",
					Description: "true únicamente si el usuario ya aprobó el resumen presentado.",
				},
			},
			Required: []string{"employee_id", "email", "reset_type", "confirmed"},
		},
	},
}
