package cmd

import (
	"log/slog"

	"github.com/driftline/journey/pkg/executors/contactupdate"
	"github.com/driftline/journey/pkg/executors/email"
	"github.com/driftline/journey/pkg/executors/sms"
	"github.com/driftline/journey/pkg/executors/tag"
	"github.com/driftline/journey/pkg/executors/waittime"
	"github.com/driftline/journey/pkg/executors/webhook"
	"github.com/driftline/journey/pkg/evaluators/customfield"
	"github.com/driftline/journey/pkg/evaluators/engagement"
	"github.com/driftline/journey/pkg/evaluators/field"
	"github.com/driftline/journey/pkg/evaluators/pipeline"
	"github.com/driftline/journey/pkg/evaluators/tags"
	"github.com/driftline/journey/pkg/evaluators/timebased"
	"github.com/driftline/journey/pkg/protocol"
	"github.com/driftline/journey/pkg/registry"
)

// Services carries the downstream integrations the native executors need.
type Services struct {
	Email protocol.EmailSender
	SMS   protocol.SMSSender
	CRM   protocol.CRMService
}

// NewRegistry builds the registry with all native executors and evaluators,
// plus any Go plugins found under pluginsPath.
func NewRegistry(logger *slog.Logger, pluginsPath string, services Services) (*registry.Registry, error) {
	reg := registry.NewRegistry(logger)

	reg.RegisterExecutor(email.NewFactory(services.Email))
	reg.RegisterExecutor(sms.NewFactory(services.SMS))
	reg.RegisterExecutor(tag.NewAddFactory(services.CRM))
	reg.RegisterExecutor(tag.NewRemoveFactory(services.CRM))
	reg.RegisterExecutor(contactupdate.NewFactory(services.CRM))
	reg.RegisterExecutor(webhook.NewFactory())
	reg.RegisterExecutor(waittime.NewFactory())

	reg.RegisterEvaluator(field.NewFactory())
	reg.RegisterEvaluator(customfield.NewFactory())
	reg.RegisterEvaluator(tags.NewFactory())
	reg.RegisterEvaluator(engagement.NewFactory())
	reg.RegisterEvaluator(pipeline.NewFactory())
	reg.RegisterEvaluator(timebased.NewFactory())

	if pluginsPath == "" {
		return reg, nil
	}

	executorPlugins, err := reg.LoadExecutorPlugins(pluginsPath)
	if err != nil {
		return nil, err
	}

	for _, plugin := range executorPlugins {
		reg.RegisterExecutor(plugin)
	}

	evaluatorPlugins, err := reg.LoadEvaluatorPlugins(pluginsPath)
	if err != nil {
		return nil, err
	}

	for _, plugin := range evaluatorPlugins {
		reg.RegisterEvaluator(plugin)
	}

	return reg, nil
}
