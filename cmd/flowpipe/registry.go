package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	flowpipeline "github.com/q7314568/FlowPipeline"
)

const (
	formatText    = "text"
	formatMsgpack = "msgpack"
)

// eventWait bounds how long a run waits for its asynchronous stage events.
const eventWait = time.Second

// Example defines the interface that all examples must implement
type Example interface {
	Name() string
	Description() string
	Run(ctx context.Context, p *session) error
}

// getAllExamples returns all registered examples in a consistent order
func getAllExamples() []Example {
	return []Example{
		&CheckoutExample{},
		&ExpressExample{},
		&FaultsExample{},
		&PayloadExample{},
	}
}

// getExampleByName returns a specific example by name
func getExampleByName(name string) (Example, bool) {
	for _, ex := range getAllExamples() {
		if ex.Name() == name {
			return ex, true
		}
	}
	return nil, false
}

// session holds the output settings and the shop data of one command.
type session struct {
	out     io.Writer
	shop    *Shop
	format  string
	color   bool
	verbose bool
}

func (p *session) paint(color, s string) string {
	if !p.color {
		return s
	}
	return color + s + colorReset
}

func (p *session) heading(name, description string) {
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, p.paint(colorCyan, "═══ "+name+" ═══"))
	fmt.Fprintln(p.out, description)
}

func (p *session) note(format string, args ...any) {
	fmt.Fprintln(p.out, p.paint(colorGray, fmt.Sprintf(format, args...)))
}

// eventLog collects the hook events of one execution.
type eventLog struct {
	mu     sync.Mutex
	events []flowpipeline.ChainEvent
}

func (l *eventLog) add(_ context.Context, e flowpipeline.ChainEvent) error {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
	return nil
}

// wait blocks until n events arrived or eventWait passed, and returns them
// in stage order with the run summary last.
func (l *eventLog) wait(n int) []flowpipeline.ChainEvent {
	deadline := time.Now().Add(eventWait)
	for {
		l.mu.Lock()
		if len(l.events) >= n || time.Now().After(deadline) {
			out := slices.Clone(l.events)
			l.mu.Unlock()
			slices.SortFunc(out, func(a, b flowpipeline.ChainEvent) int {
				return stageOrder(a) - stageOrder(b)
			})
			return out
		}
		l.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
}

func stageOrder(e flowpipeline.ChainEvent) int {
	if e.StageNumber == 0 {
		return e.TotalStages + 1
	}
	return e.StageNumber
}

// report executes c once and prints its stage events and final result.
// Every stage emits exactly one completed or skipped event, plus one event
// for the whole run.
func report[T any](ctx context.Context, p *session, label string, c flowpipeline.Chain[T]) (flowpipeline.Result[T], error) {
	log := &eventLog{}
	if p.verbose {
		for _, register := range []func(func(context.Context, flowpipeline.ChainEvent) error) error{
			c.OnStageComplete, c.OnStageSkipped, c.OnComplete,
		} {
			if err := register(log.add); err != nil {
				return flowpipeline.Result[T]{}, err
			}
		}
	}

	r := c.Execute(ctx)

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, p.paint(colorYellow, label))
	if p.verbose {
		for _, e := range log.wait(c.Len() + 1) {
			p.event(e)
		}
	}
	return r, printResult(p, r)
}

func (p *session) event(e flowpipeline.ChainEvent) {
	switch {
	case e.StageNumber == 0:
		p.note("  run %s: %d/%d stages completed in %v", e.RunID, e.Completed, e.TotalStages, e.Duration)
	case e.Skipped:
		p.note("  [%d/%d] %-9s %-32s skipped", e.StageNumber, e.TotalStages, e.StageKind, e.StageName)
	case e.Success:
		p.note("  [%d/%d] %-9s %-32s ok", e.StageNumber, e.TotalStages, e.StageKind, e.StageName)
	default:
		p.note("  [%d/%d] %-9s %-32s %s", e.StageNumber, e.TotalStages, e.StageKind, e.StageName, e.Code)
	}
}

func printResult[T any](p *session, r flowpipeline.Result[T]) error {
	if p.format == formatMsgpack {
		data, err := flowpipeline.EncodeResult(r)
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		fmt.Fprintln(p.out, hex.EncodeToString(data))
		return nil
	}
	if r.IsSuccess() {
		fmt.Fprintln(p.out, p.paint(colorGreen, "✓ "+r.String()))
	} else {
		fmt.Fprintln(p.out, p.paint(colorRed, "✗ "+r.String()))
	}
	return nil
}
