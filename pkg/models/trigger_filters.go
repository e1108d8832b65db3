package models

import (
	"errors"
	"fmt"

	"github.com/driftline/journey/pkg/journeyerr"
)

// FilterOperator is a comparison applied by one trigger filter condition.
type FilterOperator string

const (
	OpEquals         FilterOperator = "equals"
	OpNotEquals      FilterOperator = "not_equals"
	OpContains       FilterOperator = "contains"
	OpNotContains    FilterOperator = "not_contains"
	OpGreaterThan    FilterOperator = "greater_than"
	OpLessThan       FilterOperator = "less_than"
	OpGreaterOrEqual FilterOperator = "greater_or_equal"
	OpLessOrEqual    FilterOperator = "less_or_equal"
	OpIn             FilterOperator = "in"
	OpNotIn          FilterOperator = "not_in"
	OpStartsWith     FilterOperator = "starts_with"
	OpEndsWith       FilterOperator = "ends_with"
	OpIsEmpty        FilterOperator = "is_empty"
	OpIsNotEmpty     FilterOperator = "is_not_empty"
)

// FilterLogic combines the results of individual filter conditions.
type FilterLogic string

const (
	FilterLogicAnd FilterLogic = "and"
	FilterLogicOr  FilterLogic = "or"
)

// MaxFilterConditions caps the number of conditions per trigger. This is a
// validation-time limit, not a runtime error.
const MaxFilterConditions = 20

// FilterCondition compares a dot-path field of the event payload to a value.
type FilterCondition struct {
	Field    string         `json:"field"    validate:"required"`
	Operator FilterOperator `json:"operator" validate:"required"`
	Value    any            `json:"value"`
}

// TriggerFilters is the ordered condition list that gates enrollment. Zero
// conditions always match.
type TriggerFilters struct {
	Conditions []FilterCondition `json:"conditions"`
	Logic      FilterLogic       `json:"logic"`
}

// requiredFilterFields maps trigger event types to filter fields that must be
// present at creation time.
var requiredFilterFields = map[string][]string{
	"form_submitted":  {"form_id"},
	"link_clicked":    {"link_id"},
	"stage_changed":   {"pipeline_id"},
}

var (
	errTooManyConditions = fmt.Errorf("trigger filters limited to %d conditions", MaxFilterConditions)
	errUnknownLogic      = errors.New("filter logic must be and/or")
)

// Validate enforces the creation-time rules for a trigger's filters.
func (f *TriggerFilters) Validate(eventType string) error {
	if len(f.Conditions) > MaxFilterConditions {
		return &journeyerr.ValidationError{Entity: "trigger_filters", Err: errTooManyConditions}
	}

	if f.Logic != FilterLogicAnd && f.Logic != FilterLogicOr && f.Logic != "" {
		return &journeyerr.ValidationError{Entity: "trigger_filters", Err: errUnknownLogic}
	}

	for _, required := range requiredFilterFields[eventType] {
		if !f.hasField(required) {
			return &journeyerr.ValidationError{
				Entity: "trigger_filters",
				Err:    fmt.Errorf("trigger event %q requires a filter on field %q", eventType, required),
			}
		}
	}

	return nil
}

func (f *TriggerFilters) hasField(field string) bool {
	for _, condition := range f.Conditions {
		if condition.Field == field {
			return true
		}
	}

	return false
}
