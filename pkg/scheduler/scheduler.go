package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/driftline/journey/pkg/eventbus"
	"github.com/driftline/journey/pkg/events"
	"github.com/driftline/journey/pkg/persistence"
	"github.com/driftline/journey/pkg/protocol"
)

const dispatchBatchSize = 500

// JobSource is the store view the poller drains.
type JobSource interface {
	Due(ctx context.Context, now time.Time, limit int64) ([]protocol.JobRef, error)
	Remove(ctx context.Context, ref protocol.JobRef) error
}

// Poller drains due jobs from the store and asks the workers to resume the
// affected executions. A slower reconciliation pass re-publishes waits whose
// jobs were lost, which is safe because wait transitions are idempotent.
type Poller struct {
	store    JobSource
	waits    persistence.WaitRepository
	eventBus eventbus.EventBus
	logger   *slog.Logger
	cron     *cron.Cron
}

// NewPoller creates a scheduler poller.
func NewPoller(logger *slog.Logger, store JobSource, waits persistence.WaitRepository, eventBus eventbus.EventBus) *Poller {
	return &Poller{
		store:    store,
		waits:    waits,
		eventBus: eventBus,
		logger:   logger.With("module", "scheduler"),
	}
}

// Start begins the dispatch and reconciliation loops.
func (p *Poller) Start(ctx context.Context) error {
	p.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := p.cron.AddFunc("@every 10s", func() { p.dispatchDue(ctx) }); err != nil {
		return err
	}

	if _, err := p.cron.AddFunc("@every 1m", func() { p.reconcile(ctx) }); err != nil {
		return err
	}

	p.cron.Start()
	p.logger.InfoContext(ctx, "Scheduler poller started")

	return nil
}

// Stop halts the loops, waiting for a running pass to finish.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cron != nil {
		<-p.cron.Stop().Done()
	}

	p.logger.InfoContext(ctx, "Scheduler poller stopped")

	return nil
}

// dispatchDue publishes a resume request for every job whose time has come,
// removing each job only after its event is published.
func (p *Poller) dispatchDue(ctx context.Context) {
	refs, err := p.store.Due(ctx, time.Now(), dispatchBatchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to query due jobs", "error", err)

		return
	}

	for _, ref := range refs {
		if err := p.publishResume(ctx, ref); err != nil {
			p.logger.ErrorContext(ctx, "Failed to publish resume request",
				"execution_id", ref.ExecutionID, "kind", ref.Kind, "error", err)

			continue
		}

		if err := p.store.Remove(ctx, ref); err != nil {
			p.logger.ErrorContext(ctx, "Failed to remove dispatched job",
				"execution_id", ref.ExecutionID, "kind", ref.Kind, "error", err)
		}
	}
}

func (p *Poller) publishResume(ctx context.Context, ref protocol.JobRef) error {
	event := events.ExecutionResumeRequested{
		BaseEvent:   events.NewBaseEvent(events.ExecutionResumeRequestedType, ""),
		ExecutionID: ref.ExecutionID,
		Reason:      string(ref.Kind),
	}

	if ref.Kind == protocol.JobKindWaitResume || ref.Kind == protocol.JobKindWaitTimeout {
		event.WaitID = ref.TargetID
	}

	return p.eventBus.Publish(ctx, ref.ExecutionID, event)
}

// reconcile sweeps the wait repository for due and timed-out waits, covering
// jobs the store lost. Double publishes are harmless: the second resume hits a
// terminal wait and stops there.
func (p *Poller) reconcile(ctx context.Context) {
	now := time.Now()

	due, err := p.waits.ListDue(ctx, now)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to list due waits", "error", err)
	} else {
		for _, wait := range due {
			p.publishWaitResume(ctx, protocol.JobKindWaitResume, wait.ExecutionID, wait.ID)
		}
	}

	timedOut, err := p.waits.ListTimedOut(ctx, now)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to list timed-out waits", "error", err)

		return
	}

	for _, wait := range timedOut {
		p.publishWaitResume(ctx, protocol.JobKindWaitTimeout, wait.ExecutionID, wait.ID)
	}
}

func (p *Poller) publishWaitResume(ctx context.Context, kind protocol.JobKind, executionID, waitID string) {
	err := p.publishResume(ctx, protocol.JobRef{
		Kind:        kind,
		ExecutionID: executionID,
		TargetID:    waitID,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish reconciled resume request",
			"execution_id", executionID, "wait_id", waitID, "error", err)
	}
}
