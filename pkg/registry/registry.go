// Package registry provides the injectable mapping from action and condition
// type tags to their executor/evaluator factories. Registries are plain
// objects passed into the engine, never ambient globals, so tests and tenants
// can carry their own overrides.
package registry

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"strings"

	"github.com/driftline/journey/pkg/journeyerr"
	"github.com/driftline/journey/pkg/protocol"
)

type Registry struct {
	logger             *slog.Logger
	executorFactories  map[string]protocol.ActionExecutorFactory
	evaluatorFactories map[string]protocol.ConditionEvaluatorFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:             log,
		executorFactories:  make(map[string]protocol.ActionExecutorFactory),
		evaluatorFactories: make(map[string]protocol.ConditionEvaluatorFactory),
	}
}

// RegisterExecutor adds or replaces the factory for an action type.
func (r *Registry) RegisterExecutor(factory protocol.ActionExecutorFactory) {
	r.executorFactories[factory.ID()] = factory
}

// RegisterEvaluator adds or replaces the factory for a condition type.
func (r *Registry) RegisterEvaluator(factory protocol.ConditionEvaluatorFactory) {
	r.evaluatorFactories[factory.ID()] = factory
}

// CreateExecutor validates config and builds the executor for an action type.
// An unknown type is fatal and not retryable.
func (r *Registry) CreateExecutor(actionType string, config map[string]any) (protocol.ActionExecutor, error) {
	factory, ok := r.executorFactories[actionType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", journeyerr.ErrExecutorNotRegistered, actionType)
	}

	return factory.Create(config)
}

// CreateEvaluator validates criteria and builds the evaluator for a condition type.
func (r *Registry) CreateEvaluator(conditionType string, config map[string]any) (protocol.ConditionEvaluator, error) {
	factory, ok := r.evaluatorFactories[conditionType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", journeyerr.ErrEvaluatorNotRegistered, conditionType)
	}

	return factory.Create(config)
}

// ExecutorTypes returns the registered action type tags.
func (r *Registry) ExecutorTypes() []string {
	types := make([]string, 0, len(r.executorFactories))
	for actionType := range r.executorFactories {
		types = append(types, actionType)
	}

	return types
}

// EvaluatorTypes returns the registered condition type tags.
func (r *Registry) EvaluatorTypes() []string {
	types := make([]string, 0, len(r.evaluatorFactories))
	for conditionType := range r.evaluatorFactories {
		types = append(types, conditionType)
	}

	return types
}

// LoadExecutorPlugins loads ActionExecutorFactory symbols from .so files under
// pluginsPath/executors.
func (r *Registry) LoadExecutorPlugins(pluginsPath string) ([]protocol.ActionExecutorFactory, error) {
	return loadPlugin[protocol.ActionExecutorFactory](r.logger, pluginsPath, "Executor")
}

// LoadEvaluatorPlugins loads ConditionEvaluatorFactory symbols from .so files
// under pluginsPath/evaluators.
func (r *Registry) LoadEvaluatorPlugins(pluginsPath string) ([]protocol.ConditionEvaluatorFactory, error) {
	return loadPlugin[protocol.ConditionEvaluatorFactory](r.logger, pluginsPath, "Evaluator")
}

func loadPlugin[T any](logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	rootPath := pluginsPath + "/" + strings.ToLower(symbolName) + "s"
	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "**/*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", pluginsPath), slog.String("type", symbolName))
	l.Info("Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("failed to lookup symbol %s in %s: %w", symbolName, p, err)
		}

		castV, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("plugin %s symbol %s has unexpected type %T", p, symbolName, v)
		}

		pluginList = append(pluginList, castV)

		l.Info("Loaded plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
