package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ToolFunc executes a tool with already validated arguments and returns the
// text handed back to the model.
type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool is a function the model may call.
type Tool struct {
	Name        string
	Description string
	// Schema is the JSON schema of the arguments object.
	Schema string
	Fn     ToolFunc
}

// ToolValidationError lists the schema violations of a tool call.
type ToolValidationError struct {
	Tool   string
	Errors []string
}

func (e *ToolValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Errors, "; "))
}

// Parameters returns the schema as a decoded JSON object.
func (t Tool) Parameters() map[string]any {
	var out map[string]any
	if err := json.Unmarshal([]byte(t.Schema), &out); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return out
}

// ValidateArgs checks args against the tool schema.
func (t Tool) ValidateArgs(args map[string]any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(t.Schema), gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return &ToolValidationError{Tool: t.Name, Errors: msgs}
}

// decodeArgs parses the model's argument string. An empty string is an
// empty object.
func decodeArgs(raw string) (map[string]any, error) {
	args := make(map[string]any)
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool arguments: %w", err)
	}
	if args == nil {
		args = make(map[string]any)
	}
	return args, nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func stringsArg(args map[string]any, key string) []string {
	items, _ := args[key].([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func boolArg(args map[string]any, key string, def bool) bool {
	if b, ok := args[key].(bool); ok {
		return b
	}
	return def
}
