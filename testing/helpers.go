// Package testing provides test utilities and helpers for flowpipeline chains.
//
// It includes mock steps, actions and runners that record their calls, a
// chaos step for injecting failures, and assertion helpers.
//
// Example usage:
//
//	func TestCheckout(t *testing.T) {
//		price := fptest.NewMockStep[Order, Invoice](t, "price")
//		price.WithSuccess(Invoice{Total: 30})
//		notify := fptest.NewMockAction[Invoice](t, "notify")
//
//		chain := flowpipeline.Then[Order, Invoice](flowpipeline.Start(nil, order), price).ThenDo(notify)
//		result := chain.Execute(context.Background())
//
//		fptest.AssertSuccess(t, result)
//		fptest.AssertCalled(t, notify, 1)
//	}
package testing

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	flowpipeline "github.com/q7314568/FlowPipeline"
)

// Failure codes produced by ChaosStep.
const (
	CodeChaosFailure = "CHAOS_FAILURE"
	CodeChaosTimeout = "CHAOS_TIMEOUT"
)

// Call represents a single recorded invocation of a mock.
type Call[T any] struct {
	Input     T
	Timestamp time.Time
	Context   context.Context
}

// recorder tracks invocations for every mock kind.
type recorder[T any] struct { //nolint:govet // fieldalignment: Test helper struct optimized for functionality over memory efficiency
	name       string
	callCount  int64
	lastInput  T
	delay      time.Duration
	panicMsg   string
	mu         sync.RWMutex
	history    []Call[T]
	maxHistory int
}

func newRecorder[T any](name string) recorder[T] {
	return recorder[T]{name: name, maxHistory: 100}
}

// record stores the call and returns the configured delay and panic message.
func (r *recorder[T]) record(ctx context.Context, input T) (time.Duration, string) {
	atomic.AddInt64(&r.callCount, 1)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastInput = input
	if r.maxHistory > 0 {
		r.history = append(r.history, Call[T]{Input: input, Timestamp: time.Now(), Context: ctx})
		if len(r.history) > r.maxHistory {
			r.history = r.history[1:]
		}
	}
	return r.delay, r.panicMsg
}

// wait applies the configured delay. It returns ctx.Err() when the context
// ends first.
func wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *recorder[T]) setDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delay = d
}

func (r *recorder[T]) setPanic(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panicMsg = msg
}

func (r *recorder[T]) setHistorySize(size int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxHistory = size
	if size == 0 {
		r.history = nil
	} else if len(r.history) > size {
		r.history = r.history[len(r.history)-size:]
	}
}

// Name returns the name the mock was created with.
func (r *recorder[T]) Name() string {
	return r.name
}

// CallCount returns the number of recorded invocations.
func (r *recorder[T]) CallCount() int {
	return int(atomic.LoadInt64(&r.callCount))
}

// LastInput returns the input of the most recent invocation.
func (r *recorder[T]) LastInput() T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastInput
}

// CallHistory returns a copy of the recorded calls, or nil when history is
// disabled.
func (r *recorder[T]) CallHistory() []Call[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.maxHistory == 0 {
		return nil
	}
	history := make([]Call[T], len(r.history))
	copy(history, r.history)
	return history
}

// Reset clears all call tracking.
func (r *recorder[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	atomic.StoreInt64(&r.callCount, 0)
	r.lastInput = *new(T)
	r.history = nil
}

// MockStep is a configurable flowpipeline.Step[In, Out]. It records calls and
// returns the configured Result, optionally after a delay or a panic.
type MockStep[In, Out any] struct {
	t      *testing.T
	result flowpipeline.Result[Out]
	recorder[In]
}

// NewMockStep creates a mock step. Until configured it returns a success
// carrying the zero value of Out.
func NewMockStep[In, Out any](t *testing.T, name string) *MockStep[In, Out] {
	var zero Out
	return &MockStep[In, Out]{
		t:        t,
		result:   flowpipeline.Success(zero),
		recorder: newRecorder[In](name),
	}
}

// WithReturn configures the Result returned by every subsequent call.
func (m *MockStep[In, Out]) WithReturn(r flowpipeline.Result[Out]) *MockStep[In, Out] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = r
	return m
}

// WithSuccess configures a successful Result carrying v.
func (m *MockStep[In, Out]) WithSuccess(v Out) *MockStep[In, Out] {
	return m.WithReturn(flowpipeline.Success(v))
}

// WithFailure configures a failed Result.
func (m *MockStep[In, Out]) WithFailure(message string, code ...string) *MockStep[In, Out] {
	return m.WithReturn(flowpipeline.Fail[Out](message, code...))
}

// WithDelay delays every call by d, or until the context ends.
func (m *MockStep[In, Out]) WithDelay(d time.Duration) *MockStep[In, Out] {
	m.setDelay(d)
	return m
}

// WithPanic makes every call panic with msg.
func (m *MockStep[In, Out]) WithPanic(msg string) *MockStep[In, Out] {
	m.setPanic(msg)
	return m
}

// WithHistorySize configures how many calls to keep. Zero disables history.
func (m *MockStep[In, Out]) WithHistorySize(size int) *MockStep[In, Out] {
	m.setHistorySize(size)
	return m
}

// Process implements flowpipeline.Step.
func (m *MockStep[In, Out]) Process(ctx context.Context, input In) flowpipeline.Result[Out] {
	delay, panicMsg := m.record(ctx, input)
	if panicMsg != "" {
		panic(panicMsg)
	}
	if err := wait(ctx, delay); err != nil {
		return flowpipeline.FromError[Out](err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.result
}

// MockAction is a configurable flowpipeline.Action[T].
type MockAction[T any] struct {
	t   *testing.T
	err error
	recorder[T]
}

// NewMockAction creates a mock action that succeeds until configured.
func NewMockAction[T any](t *testing.T, name string) *MockAction[T] {
	return &MockAction[T]{t: t, recorder: newRecorder[T](name)}
}

// WithError makes every call return err.
func (m *MockAction[T]) WithError(err error) *MockAction[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay delays every call by d, or until the context ends.
func (m *MockAction[T]) WithDelay(d time.Duration) *MockAction[T] {
	m.setDelay(d)
	return m
}

// WithPanic makes every call panic with msg.
func (m *MockAction[T]) WithPanic(msg string) *MockAction[T] {
	m.setPanic(msg)
	return m
}

// Execute implements flowpipeline.Action.
func (m *MockAction[T]) Execute(ctx context.Context, input T) error {
	delay, panicMsg := m.record(ctx, input)
	if panicMsg != "" {
		panic(panicMsg)
	}
	if err := wait(ctx, delay); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// MockRunner is a configurable flowpipeline.Runner.
type MockRunner struct {
	t   *testing.T
	err error
	recorder[flowpipeline.Unit]
}

// NewMockRunner creates a mock runner that succeeds until configured.
func NewMockRunner(t *testing.T, name string) *MockRunner {
	return &MockRunner{t: t, recorder: newRecorder[flowpipeline.Unit](name)}
}

// WithError makes every call return err.
func (m *MockRunner) WithError(err error) *MockRunner {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay delays every call by d, or until the context ends.
func (m *MockRunner) WithDelay(d time.Duration) *MockRunner {
	m.setDelay(d)
	return m
}

// WithPanic makes every call panic with msg.
func (m *MockRunner) WithPanic(msg string) *MockRunner {
	m.setPanic(msg)
	return m
}

// Run implements flowpipeline.Runner.
func (m *MockRunner) Run(ctx context.Context) error {
	delay, panicMsg := m.record(ctx, flowpipeline.Unit{})
	if panicMsg != "" {
		panic(panicMsg)
	}
	if err := wait(ctx, delay); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Assertion Helpers

// Counter is implemented by every mock in this package.
type Counter interface {
	Name() string
	CallCount() int
}

// AssertCalled verifies that a mock was invoked exactly n times.
func AssertCalled(t *testing.T, mock Counter, expectedCalls int) {
	t.Helper()
	if actual := mock.CallCount(); actual != expectedCalls {
		t.Errorf("expected mock %s to be called %d times, but was called %d times",
			mock.Name(), expectedCalls, actual)
	}
}

// AssertNotCalled verifies that a mock was never invoked.
func AssertNotCalled(t *testing.T, mock Counter) {
	t.Helper()
	AssertCalled(t, mock, 0)
}

// AssertCalledWith verifies the input of the most recent call to a mock step.
func AssertCalledWith[In comparable, Out any](t *testing.T, mock *MockStep[In, Out], expectedInput In) {
	t.Helper()
	if mock.CallCount() == 0 {
		t.Errorf("expected mock step %s to be called with input %v, but it was never called",
			mock.name, expectedInput)
		return
	}
	if actual := mock.LastInput(); actual != expectedInput {
		t.Errorf("expected mock step %s to be called with input %v, but was called with %v",
			mock.name, expectedInput, actual)
	}
}

// AssertSuccess verifies that r succeeded.
func AssertSuccess[T any](t *testing.T, r flowpipeline.Result[T]) {
	t.Helper()
	if r.IsFailure() {
		t.Errorf("expected success, got %v", r)
	}
}

// AssertFailure verifies that r failed with the given code.
func AssertFailure[T any](t *testing.T, r flowpipeline.Result[T], code string) {
	t.Helper()
	if r.IsSuccess() {
		t.Errorf("expected failure with code %q, got %v", code, r)
		return
	}
	if r.ErrorCode() != code {
		t.Errorf("expected failure code %q, got %q (%s)", code, r.ErrorCode(), r.ErrorMessage())
	}
}

// ChaosStep wraps a step and randomly injects failures, latency and panics.
type ChaosStep[In, Out any] struct { //nolint:govet // fieldalignment: Test helper struct optimized for functionality over memory efficiency
	wrapped     flowpipeline.Step[In, Out]
	failureRate float64
	latencyMin  time.Duration
	latencyMax  time.Duration
	timeoutRate float64
	panicRate   float64
	rng         *mathrand.Rand
	mu          sync.Mutex
	outcomes    ChaosOutcomes
}

// ChaosConfig holds configuration for chaos testing.
type ChaosConfig struct {
	FailureRate float64       // Probability of returning a CHAOS_FAILURE (0.0 to 1.0)
	LatencyMin  time.Duration // Minimum additional latency to inject
	LatencyMax  time.Duration // Maximum additional latency to inject
	TimeoutRate float64       // Probability of returning a CHAOS_TIMEOUT (0.0 to 1.0)
	PanicRate   float64       // Probability of panicking (0.0 to 1.0)
	Seed        int64         // Random seed for reproducible chaos (0 for random seed)
}

// ChaosOutcomes counts the Results a ChaosStep returned.
type ChaosOutcomes struct {
	Calls     int
	Succeeded int
	Panicked  int
	Failures  map[string]int // keyed by Result error code
}

// Failed returns the number of failed Results, whatever their code.
func (o ChaosOutcomes) Failed() int {
	n := 0
	for _, count := range o.Failures {
		n += count
	}
	return n
}

// NewChaosStep creates a chaos step around wrapped.
func NewChaosStep[In, Out any](wrapped flowpipeline.Step[In, Out], config ChaosConfig) *ChaosStep[In, Out] {
	seed := config.Seed
	if seed == 0 {
		var seedBytes [8]byte
		if _, err := rand.Read(seedBytes[:]); err != nil {
			seed = time.Now().UnixNano()
		} else {
			seed = int64(binary.BigEndian.Uint64(seedBytes[:])) //nolint:gosec // G115: any bit pattern is a valid seed
		}
	}

	return &ChaosStep[In, Out]{
		wrapped:     wrapped,
		failureRate: config.FailureRate,
		latencyMin:  config.LatencyMin,
		latencyMax:  config.LatencyMax,
		timeoutRate: config.TimeoutRate,
		panicRate:   config.PanicRate,
		rng:         mathrand.New(mathrand.NewSource(seed)), //nolint:gosec // G404: Test utility uses weak RNG for deterministic chaos scenarios
		outcomes:    ChaosOutcomes{Failures: make(map[string]int)},
	}
}

// Process implements flowpipeline.Step with chaos injection.
func (c *ChaosStep[In, Out]) Process(ctx context.Context, input In) flowpipeline.Result[Out] {
	c.mu.Lock()
	c.outcomes.Calls++
	if c.rng.Float64() < c.panicRate {
		c.outcomes.Panicked++
		c.mu.Unlock()
		panic("chaos step induced panic")
	}

	var latency time.Duration
	if c.latencyMax > c.latencyMin {
		latency = c.latencyMin + time.Duration(c.rng.Int63n(int64(c.latencyMax-c.latencyMin)))
	} else if c.latencyMin > 0 {
		latency = c.latencyMin
	}
	simulateTimeout := c.rng.Float64() < c.timeoutRate
	injectFailure := c.rng.Float64() < c.failureRate
	c.mu.Unlock()

	if err := wait(ctx, latency); err != nil {
		return c.record(flowpipeline.FromError[Out](err))
	}
	if simulateTimeout {
		return c.record(flowpipeline.Fail[Out](context.DeadlineExceeded.Error(), CodeChaosTimeout))
	}

	result := c.wrapped.Process(ctx, input)
	if injectFailure && result.IsSuccess() {
		result = flowpipeline.Fail[Out]("chaos step induced failure", CodeChaosFailure)
	}
	return c.record(result)
}

func (c *ChaosStep[In, Out]) record(r flowpipeline.Result[Out]) flowpipeline.Result[Out] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.IsSuccess() {
		c.outcomes.Succeeded++
	} else {
		c.outcomes.Failures[r.ErrorCode()]++
	}
	return r
}

// Outcomes returns a snapshot of what the step has returned so far.
func (c *ChaosStep[In, Out]) Outcomes() ChaosOutcomes {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.outcomes
	out.Failures = make(map[string]int, len(c.outcomes.Failures))
	for code, n := range c.outcomes.Failures {
		out.Failures[code] = n
	}
	return out
}

// Helper Functions

// WaitForCalls waits until mock has been called at least n times, or until
// timeout. It reports whether the count was reached.
func WaitForCalls(mock Counter, expectedCalls int, timeout time.Duration) bool {
	start := time.Now()
	for time.Since(start) < timeout {
		if mock.CallCount() >= expectedCalls {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// ParallelTest runs testFunc in the given number of goroutines and waits for
// all of them.
func ParallelTest(t *testing.T, goroutines int, testFunc func(int)) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			testFunc(id)
		}(i)
	}
	wg.Wait()
}
