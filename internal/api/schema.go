package api

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// recordCommandSchema describes the POST /v1/commands body. Metadata values
// may nest; depth and encoded size are bounded by the service.
const recordCommandSchema = `{
	"type": "object",
	"required": ["user_id", "guild_id", "command_name", "success"],
	"additionalProperties": false,
	"properties": {
		"user_id":          {"type": "string", "pattern": "^[0-9]{17,20}$"},
		"guild_id":         {"type": "string", "pattern": "^[0-9]{17,20}$"},
		"command_name":     {"type": "string", "minLength": 1, "maxLength": 64},
		"success":          {"type": "boolean"},
		"response_time_ms": {"type": ["integer", "null"], "minimum": 0},
		"metadata":         {"type": "object", "maxProperties": 32}
	}
}`

var (
	commandSchema     *jsonschema.Schema
	commandSchemaErr  error
	commandSchemaOnce sync.Once
)

func compiledCommandSchema() (*jsonschema.Schema, error) {
	commandSchemaOnce.Do(func() {
		var doc any
		if err := json.Unmarshal([]byte(recordCommandSchema), &doc); err != nil {
			commandSchemaErr = fmt.Errorf("schema unmarshal: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("record_command.json", doc); err != nil {
			commandSchemaErr = fmt.Errorf("schema compile: %w", err)
			return
		}
		commandSchema, commandSchemaErr = c.Compile("record_command.json")
	})
	return commandSchema, commandSchemaErr
}

// validateCommandBody checks a raw POST /v1/commands body against the schema
// and returns a client-facing message on failure.
func validateCommandBody(body []byte) string {
	sch, err := compiledCommandSchema()
	if err != nil {
		return fmt.Sprintf("schema unavailable: %v", err)
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "Invalid JSON body"
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Sprintf("schema validation failed: %v", err)
	}
	return ""
}
