package models

import (
	"errors"
	"fmt"
)

// Step sequences are stored as an arena of nodes addressed by stable id.
// Relink operations return a fresh, renumbered ordering instead of mutating
// pointers in place, which keeps branch insertion free of dangling links.

var (
	errStepNotFound  = errors.New("step not found in sequence")
	errDuplicateStep = errors.New("duplicate step id in sequence")
)

// InsertStepAfter returns a new ordering with step placed after the node
// afterID. An empty afterID prepends the step.
func InsertStepAfter(steps []*Step, step *Step, afterID string) ([]*Step, error) {
	for _, existing := range steps {
		if existing.ID == step.ID {
			return nil, fmt.Errorf("%w: %s", errDuplicateStep, step.ID)
		}
	}

	result := make([]*Step, 0, len(steps)+1)

	if afterID == "" {
		result = append(result, step)
		result = append(result, steps...)

		return Resequence(result), nil
	}

	inserted := false

	for _, existing := range steps {
		result = append(result, existing)

		if existing.ID == afterID {
			result = append(result, step)
			inserted = true
		}
	}

	if !inserted {
		return nil, fmt.Errorf("%w: %s", errStepNotFound, afterID)
	}

	return Resequence(result), nil
}

// RemoveStep returns a new ordering with the node removed and its neighbors
// relinked.
func RemoveStep(steps []*Step, stepID string) ([]*Step, error) {
	result := make([]*Step, 0, len(steps))
	removed := false

	for _, existing := range steps {
		if existing.ID == stepID {
			removed = true

			continue
		}

		result = append(result, existing)
	}

	if !removed {
		return nil, fmt.Errorf("%w: %s", errStepNotFound, stepID)
	}

	return Resequence(result), nil
}

// Resequence recomputes Position and the PreviousID/NextID links for an
// ordering. Steps are copied; the input slice's nodes are not mutated.
func Resequence(steps []*Step) []*Step {
	result := make([]*Step, len(steps))

	for i, step := range steps {
		copied := *step
		copied.Position = i
		copied.PreviousID = nil
		copied.NextID = nil
		result[i] = &copied
	}

	for i := range result {
		if i > 0 {
			prev := result[i-1].ID
			result[i].PreviousID = &prev
		}

		if i < len(result)-1 {
			next := result[i+1].ID
			result[i].NextID = &next
		}
	}

	return result
}
