package engagement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/protocol"
)

func engagedContext(kind models.EngagementKind, emailIDs ...string) protocol.EvaluationContext {
	events := make([]models.EngagementEvent, 0, len(emailIDs))
	for _, id := range emailIDs {
		events = append(events, models.EngagementEvent{EmailID: id, OccurredAt: time.Now().UTC()})
	}

	return protocol.EvaluationContext{
		ContactID:  "contact-1",
		Engagement: map[models.EngagementKind][]models.EngagementEvent{kind: events},
	}
}

func TestEvaluateEngagement(t *testing.T) {
	tests := []struct {
		name     string
		config   map[string]any
		evalCtx  protocol.EvaluationContext
		expected bool
	}{
		{"opened any email", map[string]any{"kind": "opened"},
			engagedContext(models.EngagementOpened, "em-1"), true},
		{"opened specific email", map[string]any{"kind": "opened", "email_id": "em-2"},
			engagedContext(models.EngagementOpened, "em-1", "em-2"), true},
		{"opened wrong email", map[string]any{"kind": "opened", "email_id": "em-9"},
			engagedContext(models.EngagementOpened, "em-1"), false},
		{"clicked list is separate from opened", map[string]any{"kind": "clicked"},
			engagedContext(models.EngagementOpened, "em-1"), false},
		{"no history is no match", map[string]any{"kind": "opened"},
			protocol.EvaluationContext{ContactID: "contact-1"}, false},
		{"has_not inverts", map[string]any{"kind": "clicked", "has_not": true},
			protocol.EvaluationContext{ContactID: "contact-1"}, true},
		{"has_not with engagement", map[string]any{"kind": "opened", "has_not": true},
			engagedContext(models.EngagementOpened, "em-1"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluator, err := NewEvaluator(tt.config)
			require.NoError(t, err)

			result, err := evaluator.Evaluate(context.Background(), nil, tt.evalCtx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Match)
		})
	}
}

func TestNewEvaluatorValidatesKind(t *testing.T) {
	_, err := NewEvaluator(map[string]any{"kind": "bounced"})
	assert.Error(t, err)

	_, err = NewEvaluator(map[string]any{})
	assert.Error(t, err)
}
