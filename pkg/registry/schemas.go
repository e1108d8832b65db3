package registry

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/driftline/journey/pkg/journeyerr"
)

// ValidateActionConfig checks a step's config against the JSON schema
// published by its executor factory. Called at workflow save time so the
// engine only ever sees schema-valid config.
func (r *Registry) ValidateActionConfig(actionType string, config map[string]any) error {
	factory, ok := r.executorFactories[actionType]
	if !ok {
		return fmt.Errorf("%w: %q", journeyerr.ErrExecutorNotRegistered, actionType)
	}

	return validateAgainstSchema(actionType, factory.Schema(), config)
}

// ValidateConditionConfig checks branch criteria against the evaluator schema.
func (r *Registry) ValidateConditionConfig(conditionType string, config map[string]any) error {
	factory, ok := r.evaluatorFactories[conditionType]
	if !ok {
		return fmt.Errorf("%w: %q", journeyerr.ErrEvaluatorNotRegistered, conditionType)
	}

	return validateAgainstSchema(conditionType, factory.Schema(), config)
}

func validateAgainstSchema(component string, schema map[string]any, config map[string]any) error {
	if schema == nil {
		return nil
	}

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema for %s: %w", component, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("failed to validate config for %s: %w", component, err)
	}

	if !result.Valid() {
		first := result.Errors()[0]

		return journeyerr.NewConfigurationError(component, first.Field(), fmt.Errorf("%s", first.Description()))
	}

	return nil
}
