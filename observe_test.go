package flowpipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/tracez"
)

func TestChainObservability(t *testing.T) {
	t.Run("Metrics And Spans For Successful Execution", func(t *testing.T) {
		base := Start(nil, 5)
		defer base.Close()

		c := ThenFunc(Then[int, int](base, doubler{}), addTen).ThenRunFunc(func(context.Context) error { return nil })

		if base.Metrics() == nil || c.Metrics() != base.Metrics() {
			t.Fatal("derived chains must share the metrics registry")
		}
		if c.Tracer() == nil {
			t.Fatal("expected tracer to be initialized")
		}

		var spans []tracez.Span
		var spanMu sync.Mutex
		c.Tracer().OnSpanComplete(func(span tracez.Span) {
			spanMu.Lock()
			spans = append(spans, span)
			spanMu.Unlock()
		})

		r := c.Execute(context.Background())
		if r.Value() != 20 {
			t.Fatalf("expected 20, got %v", r)
		}

		if got := c.Metrics().Counter(ChainExecutionsTotal).Value(); got != 1 {
			t.Errorf("expected 1 execution, got %f", got)
		}
		if got := c.Metrics().Counter(ChainSuccessesTotal).Value(); got != 1 {
			t.Errorf("expected 1 success, got %f", got)
		}
		if got := c.Metrics().Counter(ChainFailuresTotal).Value(); got != 0 {
			t.Errorf("expected 0 failures, got %f", got)
		}
		if got := c.Metrics().Gauge(ChainStagesCompleted).Value(); got != 3 {
			t.Errorf("expected 3 completed stages, got %f", got)
		}

		spanMu.Lock()
		defer spanMu.Unlock()
		var executeSpans, stageSpans int
		kinds := map[string]bool{}
		for _, span := range spans {
			switch string(span.Name) {
			case string(ChainExecuteSpan):
				executeSpans++
				if span.Tags[ChainTagStageCount] != "3" {
					t.Errorf("expected stage count 3, got %q", span.Tags[ChainTagStageCount])
				}
				if span.Tags[ChainTagSuccess] != "true" {
					t.Errorf("expected success tag, got %q", span.Tags[ChainTagSuccess])
				}
				if span.Tags[ChainTagRunID] == "" {
					t.Error("expected run id tag")
				}
			case string(ChainStageSpan):
				stageSpans++
				kinds[span.Tags[ChainTagStageKind]] = true
				if span.Tags[ChainTagStageNumber] == "" {
					t.Error("expected stage number tag")
				}
			}
		}
		if executeSpans != 1 || stageSpans != 3 {
			t.Errorf("expected 1 execute and 3 stage spans, got %d and %d", executeSpans, stageSpans)
		}
		if !kinds[string(StageThen)] || !kinds[string(StageThenRun)] {
			t.Errorf("unexpected stage kinds %v", kinds)
		}
	})

	t.Run("Failure Counters", func(t *testing.T) {
		base := Start(nil, 1)
		defer base.Close()

		panics := ThenFunc(base, func(context.Context, int) Result[int] { panic("boom") })
		actionErr := base.ThenDoFunc(func(context.Context, int) error { return errors.New("nope") })
		unmet := ThenWhenFunc(base, func(context.Context, int) bool { return false }, double)
		userFail := ThenFunc(base, func(context.Context, int) Result[int] { return Fail[int]("bad", "USER") })

		panics.Execute(context.Background())
		actionErr.Execute(context.Background())
		unmet.Execute(context.Background())
		userFail.Execute(context.Background())

		m := base.Metrics()
		if got := m.Counter(ChainExecutionsTotal).Value(); got != 4 {
			t.Errorf("expected 4 executions, got %f", got)
		}
		if got := m.Counter(ChainFailuresTotal).Value(); got != 4 {
			t.Errorf("expected 4 failures, got %f", got)
		}
		if got := m.Counter(ChainStepExceptionsTotal).Value(); got != 1 {
			t.Errorf("expected 1 step exception, got %f", got)
		}
		if got := m.Counter(ChainActionExceptionsTotal).Value(); got != 1 {
			t.Errorf("expected 1 action exception, got %f", got)
		}
		if got := m.Counter(ChainConditionFailedTotal).Value(); got != 1 {
			t.Errorf("expected 1 condition failure, got %f", got)
		}
	})

	t.Run("Failure Span Tags", func(t *testing.T) {
		c := ThenFunc(Start(nil, 1), func(context.Context, int) Result[int] { return Fail[int]("bad input", "E42") })
		defer c.Close()

		var spans []tracez.Span
		var spanMu sync.Mutex
		c.Tracer().OnSpanComplete(func(span tracez.Span) {
			spanMu.Lock()
			spans = append(spans, span)
			spanMu.Unlock()
		})

		c.Execute(context.Background())

		spanMu.Lock()
		defer spanMu.Unlock()
		if len(spans) != 2 {
			t.Fatalf("expected 2 spans, got %d", len(spans))
		}
		for _, span := range spans {
			if span.Tags[ChainTagSuccess] != "false" {
				t.Errorf("%s: expected success=false", span.Name)
			}
			if span.Tags[ChainTagErrorCode] != "E42" || span.Tags[ChainTagError] != "bad input" {
				t.Errorf("%s: unexpected error tags %v", span.Name, span.Tags)
			}
		}
	})

	t.Run("Hooks", func(t *testing.T) {
		base := Start(nil, 3)
		defer base.Close()

		c := ThenFunc(ThenFunc(ThenFunc(base, double), func(context.Context, int) Result[int] {
			return Fail[int]("stop", "STOP")
		}), addTen).ThenDoFunc(func(context.Context, int) error { return nil })

		var mu sync.Mutex
		var completed, skipped, finished []ChainEvent
		if err := c.OnStageComplete(func(_ context.Context, e ChainEvent) error {
			mu.Lock()
			completed = append(completed, e)
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatal(err)
		}
		if err := c.OnStageSkipped(func(_ context.Context, e ChainEvent) error {
			mu.Lock()
			skipped = append(skipped, e)
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatal(err)
		}
		if err := c.OnComplete(func(_ context.Context, e ChainEvent) error {
			mu.Lock()
			finished = append(finished, e)
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatal(err)
		}

		r := c.Execute(context.Background())
		if r.ErrorCode() != "STOP" {
			t.Fatalf("unexpected %v", r)
		}

		// Wait for async hooks to fire
		time.Sleep(50 * time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		if len(completed) != 2 {
			t.Fatalf("expected 2 stage events, got %d", len(completed))
		}
		if len(skipped) != 2 {
			t.Fatalf("expected 2 skipped events, got %d", len(skipped))
		}
		if len(finished) != 1 {
			t.Fatalf("expected 1 completion event, got %d", len(finished))
		}

		runID := finished[0].RunID
		if runID == "" {
			t.Error("expected run id")
		}
		for _, e := range append(append([]ChainEvent{}, completed...), skipped...) {
			if e.RunID != runID {
				t.Errorf("stage %d: run id %q does not match %q", e.StageNumber, e.RunID, runID)
			}
			if e.TotalStages != 4 {
				t.Errorf("stage %d: expected 4 total stages, got %d", e.StageNumber, e.TotalStages)
			}
			if e.StageName != funcStageName {
				t.Errorf("stage %d: expected name %q, got %q", e.StageNumber, funcStageName, e.StageName)
			}
		}
		for _, e := range skipped {
			if !e.Skipped {
				t.Errorf("stage %d should be marked skipped", e.StageNumber)
			}
			if e.Code != "STOP" || e.Message != "stop" {
				t.Errorf("skipped stage %d should carry the upstream failure, got %q %q", e.StageNumber, e.Code, e.Message)
			}
		}
		kinds := map[StageKind]bool{}
		for _, e := range skipped {
			kinds[e.StageKind] = true
		}
		if !kinds[StageThen] || !kinds[StageThenDo] {
			t.Errorf("unexpected skipped kinds %v", kinds)
		}
		if finished[0].Success || finished[0].Completed != 1 || finished[0].Code != "STOP" {
			t.Errorf("unexpected completion event %+v", finished[0])
		}
	})

	t.Run("Distinct Run IDs", func(t *testing.T) {
		c := ThenFunc(Start(nil, 1), double)
		defer c.Close()

		var mu sync.Mutex
		ids := map[string]bool{}
		if err := c.OnComplete(func(_ context.Context, e ChainEvent) error {
			mu.Lock()
			ids[e.RunID] = true
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatal(err)
		}

		c.Execute(context.Background())
		c.Execute(context.Background())
		time.Sleep(50 * time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		if len(ids) != 2 {
			t.Errorf("expected 2 distinct run ids, got %d", len(ids))
		}
	})

	t.Run("WithClock", func(t *testing.T) {
		clock := clockz.NewFakeClock()
		base := Start(nil, 1)
		defer base.Close()

		c := ThenFunc(base, func(_ context.Context, v int) Result[int] {
			clock.Advance(250 * time.Millisecond)
			return Success(v)
		}).WithClock(clock)

		var mu sync.Mutex
		var events []ChainEvent
		if err := c.OnStageComplete(func(_ context.Context, e ChainEvent) error {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatal(err)
		}

		c.Execute(context.Background())
		time.Sleep(50 * time.Millisecond)

		if got := c.Metrics().Gauge(ChainDurationMs).Value(); got != 250 {
			t.Errorf("expected duration 250ms, got %f", got)
		}
		mu.Lock()
		defer mu.Unlock()
		if len(events) != 1 {
			t.Fatalf("expected 1 stage event, got %d", len(events))
		}
		if events[0].Duration != 250*time.Millisecond {
			t.Errorf("expected stage duration 250ms, got %v", events[0].Duration)
		}
		if !events[0].Timestamp.Equal(clock.Now()) {
			t.Errorf("expected timestamp from the fake clock, got %v", events[0].Timestamp)
		}
	})

	t.Run("Close", func(t *testing.T) {
		c := Start(nil, 1)
		if err := c.Close(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		var zero Chain[int]
		if err := zero.Close(); err != nil {
			t.Errorf("zero chain close should be a no-op, got %v", err)
		}
		if zero.Metrics() != nil || zero.Tracer() != nil {
			t.Error("zero chain has no observability components")
		}
		err := zero.OnComplete(func(context.Context, ChainEvent) error { return nil })
		if !errors.Is(err, ErrUnstartedChain) {
			t.Errorf("expected ErrUnstartedChain, got %v", err)
		}
	})
}
