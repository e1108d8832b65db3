package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/journey/pkg/protocol"
)

func actionContext() protocol.ActionContext {
	return protocol.ActionContext{
		ExecutionID: "exec-1",
		ContactID:   "contact-1",
		AccountID:   "acct-1",
		Config:      map[string]any{"template_id": "tpl-1"},
		Metadata: map[string]any{
			"contact_data": map[string]any{"first_name": "Jordan", "score": 42.0},
			"trigger_data": map[string]any{"form_id": "f-1"},
		},
	}
}

func TestRenderCoercion(t *testing.T) {
	data := map[string]any{"name": "Jordan", "count": 3.0, "active": true}

	tests := []struct {
		name     string
		template string
		expected any
	}{
		{"plain string", "hello {{.name}}", "hello Jordan"},
		{"numeric output coerces", "{{.count}}", 3.0},
		{"boolean output coerces", "{{.active}}", true},
		{"json object decodes", `{"who": "{{.name}}"}`, map[string]any{"who": "Jordan"}},
		{"json array decodes", `["{{.name}}"]`, []any{"Jordan"}},
		{"malformed json stays string", `{not json`, "{not json"},
		{"lower func", "{{lower .name}}", "jordan"},
		{"upper func", "{{upper .name}}", "JORDAN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.template, data)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRenderWithContextExposesExecution(t *testing.T) {
	result, err := RenderWithContext(
		"{{.execution.contact_id}}/{{.trigger_data.form_id}}/{{.contact.first_name}}",
		actionContext())
	require.NoError(t, err)
	assert.Equal(t, "contact-1/f-1/Jordan", result)
}

func TestRenderStringStringifies(t *testing.T) {
	rendered, err := RenderString("{{.contact.score}}", actionContext())
	require.NoError(t, err)
	assert.Equal(t, "42", rendered)
}

func TestRenderInvalidTemplate(t *testing.T) {
	_, err := Render("{{.unclosed", nil)
	assert.Error(t, err)
}

func TestRenderNowFunc(t *testing.T) {
	result, err := Render("{{now}}", nil)
	require.NoError(t, err)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T`, result)
}
