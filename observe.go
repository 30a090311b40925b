package flowpipeline

import (
	"context"
	"time"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for chains.
const (
	// Metrics.
	ChainExecutionsTotal           = metricz.Key("chain.executions.total")
	ChainSuccessesTotal            = metricz.Key("chain.successes.total")
	ChainFailuresTotal             = metricz.Key("chain.failures.total")
	ChainStepExceptionsTotal       = metricz.Key("chain.step.exceptions.total")
	ChainActionExceptionsTotal     = metricz.Key("chain.action.exceptions.total")
	ChainConditionFailedTotal      = metricz.Key("chain.condition.failed.total")
	ChainScopeReleaseFailuresTotal = metricz.Key("chain.scope.release.failures.total")
	ChainStagesCompleted           = metricz.Key("chain.stages.completed")
	ChainDurationMs                = metricz.Key("chain.duration.ms")

	// Spans.
	ChainExecuteSpan = tracez.Key("chain.execute")
	ChainStageSpan   = tracez.Key("chain.stage")

	// Tags.
	ChainTagRunID       = tracez.Tag("chain.run_id")
	ChainTagStageCount  = tracez.Tag("chain.stage_count")
	ChainTagStageNumber = tracez.Tag("chain.stage_number")
	ChainTagStageKind   = tracez.Tag("chain.stage_kind")
	ChainTagStageName   = tracez.Tag("chain.stage_name")
	ChainTagSuccess     = tracez.Tag("chain.success")
	ChainTagErrorCode   = tracez.Tag("chain.error_code")
	ChainTagError       = tracez.Tag("chain.error")

	// Hook event keys.
	ChainEventStageComplete = hookz.Key("chain.stage_complete")
	ChainEventStageSkipped  = hookz.Key("chain.stage_skipped")
	ChainEventComplete      = hookz.Key("chain.complete")
)

// StageKind names the chain operation that appended a stage.
type StageKind string

// Stage kinds.
const (
	StageThen     StageKind = "then"
	StageThenWhen StageKind = "then_when"
	StageThenDo   StageKind = "then_do"
	StageThenRun  StageKind = "then_run"
)

// ChainEvent describes a stage or a whole execution. It is emitted via hookz
// when a stage finishes, when a stage is skipped because an earlier one
// failed, and when an execution completes.
type ChainEvent struct {
	ReleaseError error         // Error closing the stage's resolution scope, if any
	Timestamp    time.Time     // When the event occurred
	RunID        string        // Identifies one Execute call
	StageName    string        // Capability type name, or "func"
	StageKind    StageKind     // Operation that appended the stage
	Message      string        // Failure message when Success is false
	Code         string        // Failure code when Success is false
	StageNumber  int           // 1-based position in append order
	TotalStages  int           // Stages in the executed chain
	Completed    int           // Stages that succeeded (for chain.complete)
	Duration     time.Duration // Stage or execution duration
	Success      bool          // Whether the stage or execution succeeded
	Skipped      bool          // Stage was bypassed after an earlier failure
}

type observer struct {
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[ChainEvent]
}

func newObserver() *observer {
	metrics := metricz.New()
	metrics.Counter(ChainExecutionsTotal)
	metrics.Counter(ChainSuccessesTotal)
	metrics.Counter(ChainFailuresTotal)
	metrics.Counter(ChainStepExceptionsTotal)
	metrics.Counter(ChainActionExceptionsTotal)
	metrics.Counter(ChainConditionFailedTotal)
	metrics.Counter(ChainScopeReleaseFailuresTotal)
	metrics.Gauge(ChainStagesCompleted)
	metrics.Gauge(ChainDurationMs)

	return &observer{
		metrics: metrics,
		tracer:  tracez.New(),
		hooks:   hookz.New[ChainEvent](),
	}
}

// countFailure bumps the counter matching an engine failure code.
func (o *observer) countFailure(code string) {
	switch code {
	case CodeStepException:
		o.metrics.Counter(ChainStepExceptionsTotal).Inc()
	case CodeActionException:
		o.metrics.Counter(ChainActionExceptionsTotal).Inc()
	case CodeConditionFailed:
		o.metrics.Counter(ChainConditionFailedTotal).Inc()
	}
}

func (o *observer) emit(ctx context.Context, key hookz.Key, event ChainEvent) {
	_ = o.hooks.Emit(ctx, key, event) //nolint:errcheck
}

func (o *observer) close() error {
	if o.tracer != nil {
		o.tracer.Close()
	}
	o.hooks.Close()
	return nil
}
