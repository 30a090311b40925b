package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	flowpipeline "github.com/q7314568/FlowPipeline"
)

// Order is the input of the shop examples.
type Order struct {
	ID       string   `yaml:"id"`
	Customer string   `yaml:"customer"`
	Items    []string `yaml:"items"`
	Express  bool     `yaml:"express"`
}

// Invoice is a priced order.
type Invoice struct {
	OrderID string
	Total   int
	Express bool
}

// PriceBook maps items to prices in cents.
type PriceBook map[string]int

// StockError reports an item that cannot be shipped.
type StockError struct {
	flowpipeline.BaseError
	Item string
}

func validateOrder(_ context.Context, o Order) flowpipeline.Result[Order] {
	if len(o.Items) == 0 {
		return flowpipeline.Fail[Order]("order "+o.ID+" has no items", "EMPTY_ORDER")
	}
	for _, item := range o.Items {
		if strings.HasPrefix(item, "discontinued-") {
			return flowpipeline.FailWith[Order]("order "+o.ID+" cannot be fulfilled", &StockError{
				BaseError: flowpipeline.NewBaseError(item+" is no longer sold", "OUT_OF_STOCK"),
				Item:      item,
			}, "OUT_OF_STOCK")
		}
	}
	return flowpipeline.Success(o)
}

// Pricer prices orders against the registered PriceBook.
type Pricer struct {
	prices PriceBook
}

// Process implements flowpipeline.Step.
func (p *Pricer) Process(_ context.Context, o Order) flowpipeline.Result[Invoice] {
	total := 0
	for _, item := range o.Items {
		price, ok := p.prices[item]
		if !ok {
			return flowpipeline.Fail[Invoice]("no price for "+item, "UNKNOWN_ITEM")
		}
		total += price
	}
	return flowpipeline.Success(Invoice{OrderID: o.ID, Total: total, Express: o.Express})
}

// ExpressSurcharge adds the express shipping fee.
type ExpressSurcharge struct {
	Fee int
}

// Process implements flowpipeline.Step.
func (s ExpressSurcharge) Process(_ context.Context, inv Invoice) flowpipeline.Result[Invoice] {
	inv.Total += s.Fee
	return flowpipeline.Success(inv)
}

// Mailer sends invoices. A new one is built for every stage that resolves it
// and closed with the stage's scope.
type Mailer struct {
	p      *session
	closed *atomic.Int32
}

// Execute implements flowpipeline.Action.
func (m *Mailer) Execute(_ context.Context, inv Invoice) error {
	m.p.note("  mail: invoice for %s, total %s", inv.OrderID, cents(inv.Total))
	return nil
}

// Close releases the mailer connection.
func (m *Mailer) Close() error {
	m.closed.Add(1)
	return nil
}

func cents(v int) string {
	return fmt.Sprintf("$%d.%02d", v/100, v%100)
}

// newShop builds the container shared by the shop examples.
func newShop(p *session, mailers *atomic.Int32) (*flowpipeline.Container, error) {
	c := flowpipeline.NewContainer()
	err := errors.Join(
		flowpipeline.RegisterInstance(c, p.shop.Prices),
		flowpipeline.Register(c, flowpipeline.Scoped, func(ctx context.Context, s flowpipeline.Scope) (*Pricer, error) {
			prices, err := flowpipeline.Resolve[PriceBook](ctx, s)
			if err != nil {
				return nil, err
			}
			return &Pricer{prices: prices}, nil
		}),
		flowpipeline.Register(c, flowpipeline.Transient, func(context.Context, flowpipeline.Scope) (*Mailer, error) {
			return &Mailer{p: p, closed: mailers}, nil
		}),
		flowpipeline.RegisterInstance(c, ExpressSurcharge{Fee: p.shop.Surcharge}),
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CheckoutExample validates, prices and mails orders.
type CheckoutExample struct{}

func (*CheckoutExample) Name() string { return "checkout" }

func (*CheckoutExample) Description() string {
	return "Validate, price and mail orders with container-resolved stages"
}

func (*CheckoutExample) Run(ctx context.Context, p *session) error {
	var mailers atomic.Int32
	container, err := newShop(p, &mailers)
	if err != nil {
		return err
	}
	defer container.Close()

	for _, o := range p.shop.Checkout {
		start := flowpipeline.Start(container, o)
		validated := flowpipeline.ThenFunc(start, validateOrder)
		priced := flowpipeline.ThenResolve[*Pricer, Invoice](validated)
		chain := flowpipeline.ThenDoResolve[*Mailer](priced)

		_, err := report(ctx, p, "checkout "+o.ID, chain)
		start.Close()
		if err != nil {
			return err
		}
	}
	p.note("mailers released: %d", mailers.Load())
	return nil
}

// ExpressExample applies a surcharge only to express orders.
type ExpressExample struct{}

func (*ExpressExample) Name() string { return "express" }

func (*ExpressExample) Description() string {
	return "Conditional stages: non-express orders stop with CONDITION_FAILED"
}

func (*ExpressExample) Run(ctx context.Context, p *session) error {
	var mailers atomic.Int32
	container, err := newShop(p, &mailers)
	if err != nil {
		return err
	}
	defer container.Close()

	isExpress := func(_ context.Context, inv Invoice) bool { return inv.Express }
	for _, o := range p.shop.Express {
		start := flowpipeline.Start(container, o)
		priced := flowpipeline.ThenResolve[*Pricer, Invoice](start)
		chain := flowpipeline.ThenWhenResolve[ExpressSurcharge, Invoice](priced, isExpress)

		r, err := report(ctx, p, "express "+o.ID, chain)
		start.Close()
		if err != nil {
			return err
		}
		if r.IsSuccess() {
			p.note("  total with surcharge: %s", cents(r.Value().Total))
		}
	}
	return nil
}

// FaultsExample shows how panics and action errors become failures.
type FaultsExample struct{}

func (*FaultsExample) Name() string { return "faults" }

func (*FaultsExample) Description() string {
	return "Panics and action errors become STEP_EXCEPTION and ACTION_EXCEPTION"
}

func (*FaultsExample) Run(ctx context.Context, p *session) error {
	var items []string

	panicking := flowpipeline.ThenFunc(flowpipeline.Start(nil, items), func(_ context.Context, in []string) flowpipeline.Result[string] {
		return flowpipeline.Success(in[3])
	})
	defer panicking.Close()
	if _, err := report(ctx, p, "step reading past the end of a slice", panicking); err != nil {
		return err
	}

	unreachable := flowpipeline.StartUnit(nil).
		ThenRunFunc(func(context.Context) error { return nil }).
		ThenRunFunc(func(context.Context) error { return errors.New("cache warmup failed") }).
		ThenRunFunc(func(context.Context) error {
			p.note("  never printed")
			return nil
		})
	defer unreachable.Close()
	if _, err := report(ctx, p, "runner returning an error", unreachable); err != nil {
		return err
	}

	lifted := flowpipeline.Then[string, int](flowpipeline.Start(nil, "forty-two"), flowpipeline.Lift(parseQuantity))
	defer lifted.Close()
	_, err := report(ctx, p, "lifted function returning an error", lifted)
	return err
}

func parseQuantity(_ context.Context, s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("quantity %q: %w", s, err)
	}
	return n, nil
}

// PayloadExample inspects a typed failure payload and its msgpack snapshot.
type PayloadExample struct{}

func (*PayloadExample) Name() string { return "payload" }

func (*PayloadExample) Description() string {
	return "Typed error payloads and msgpack result snapshots"
}

func (*PayloadExample) Run(ctx context.Context, p *session) error {
	chain := flowpipeline.ThenFunc(
		flowpipeline.Start(nil, Order{ID: "ORD-20", Items: []string{"discontinued-clock"}}),
		validateOrder,
	)
	defer chain.Close()

	r, err := report(ctx, p, "validation failure", chain)
	if err != nil {
		return err
	}
	if stock, ok := flowpipeline.TryGetError[*StockError](r); ok {
		p.note("  payload: %s (%s) item=%s at %s", stock.Message(), stock.Code(), stock.Item, stock.OccurredAt().Format("15:04:05"))
	}

	data, err := flowpipeline.EncodeResult(r)
	if err != nil {
		return err
	}
	p.note("  snapshot: %s", hex.EncodeToString(data))

	decoded, err := flowpipeline.DecodeResult[Order](data)
	if err != nil {
		return err
	}
	if rec, ok := flowpipeline.TryGetError[*flowpipeline.PayloadRecord](decoded); ok {
		p.note("  decoded: %s payload %q (%s)", rec.Type, rec.Message(), rec.Code())
	}
	return nil
}
