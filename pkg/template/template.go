// Package template provides templating for dynamic action configuration:
// subjects, bodies and webhook payloads rendered against contact data and
// trigger payloads.
package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/driftline/journey/pkg/protocol"
)

// RenderWithContext renders a template string against an action context.
// Exposed data: .contact (metadata contact_data), .trigger_data, .config and
// .execution identifiers.
func RenderWithContext(input string, actionCtx protocol.ActionContext) (any, error) {
	data := map[string]any{
		"contact":      actionCtx.Metadata["contact_data"],
		"trigger_data": actionCtx.Metadata["trigger_data"],
		"config":       actionCtx.Config,
		"execution": map[string]any{
			"id":         actionCtx.ExecutionID,
			"contact_id": actionCtx.ContactID,
			"account_id": actionCtx.AccountID,
			"action_id":  actionCtx.ActionID,
		},
	}

	return Render(input, data)
}

// Render parses and executes a template, then coerces the output: JSON-shaped
// results decode to structured values, numeric and boolean strings coerce to
// their types, everything else stays a string.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("render").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"lower": strings.ToLower,
			"upper": strings.ToUpper,
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		if err := json.Unmarshal([]byte(result), &jsonResult); err == nil {
			return jsonResult, nil
		}
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// RenderString renders a template and stringifies the result.
func RenderString(input string, actionCtx protocol.ActionContext) (string, error) {
	rendered, err := RenderWithContext(input, actionCtx)
	if err != nil {
		return "", err
	}

	if s, ok := rendered.(string); ok {
		return s, nil
	}

	return fmt.Sprintf("%v", rendered), nil
}
