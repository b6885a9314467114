package llm

import (
	"encoding/json"
	"fmt"
)

// SchemaInstruction renders rf as a system instruction for backends that have
// no native structured-output parameter.
func SchemaInstruction(rf *ResponseFormat) (string, error) {
	if rf == nil {
		return "", nil
	}
	schema, err := json.Marshal(rf.Schema)
	if err != nil {
		return "", fmt.Errorf("llm: encode response schema: %w", err)
	}
	instr := "Respond only with a single JSON value that validates against this JSON Schema. " +
		"Do not wrap it in markdown or add commentary.\nSchema: " + string(schema)
	if rf.Description != "" {
		instr = rf.Description + "\n" + instr
	}
	return instr, nil
}
