package flowpipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"sync"

	"github.com/samber/do/v2"
)

// Container errors.
var (
	ErrNotRegistered       = errors.New("type not registered")
	ErrAlreadyRegistered   = errors.New("type already registered")
	ErrCircularDependency  = do.ErrCircularDependency
	ErrCaptiveDependency   = errors.New("scoped type resolved outside a stage scope")
	ErrScopeClosed         = errors.New("scope is closed")
	ErrContainerClosed     = errors.New("container is closed")
	ErrInvalidRegistration = errors.New("invalid registration")
)

// Lifetime controls how often a registered factory runs.
type Lifetime int

const (
	// Transient builds a new instance on every resolution.
	Transient Lifetime = iota
	// Scoped builds one instance per scope.
	Scoped
	// Singleton builds one instance per container.
	Singleton
)

// String implements fmt.Stringer.
func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "transient"
	case Scoped:
		return "scoped"
	case Singleton:
		return "singleton"
	default:
		return fmt.Sprintf("Lifetime(%d)", int(l))
	}
}

// Factory builds an instance. It may resolve its own dependencies from scope.
// ctx is the context the owning scope was created with, or
// context.Background for singletons.
type Factory[T any] func(ctx context.Context, scope Scope) (T, error)

type registration struct {
	typ      reflect.Type
	name     string
	lifetime Lifetime
	factory  func(context.Context, Scope) (any, error)
}

// Container is a dependency container implementing Provider, backed by
// samber/do injectors.
//
// Singletons live in a root injector owned by the container and are built
// against it, so whatever they resolve is owned by the container too. Each
// scope gets its own injector holding its scoped and transient instances,
// and delegates singletons to the root. A singleton, or a transient built
// for one, that asks for a scoped type fails with ErrCaptiveDependency.
//
// On Close a scope closes every transient and scoped instance it built that
// implements io.Closer, newest first. Singletons are closed the same way
// when the container is closed. Instances implementing one of do's
// Shutdowner interfaces are shut down by the owning injector afterwards.
//
//	c := flowpipeline.NewContainer()
//	_ = flowpipeline.RegisterInstance[PriceBook](c, defaultPrices)
//	_ = flowpipeline.Register(c, flowpipeline.Scoped, func(ctx context.Context, s flowpipeline.Scope) (*PriceOrder, error) {
//	    prices, err := flowpipeline.Resolve[PriceBook](ctx, s)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &PriceOrder{Prices: prices}, nil
//	})
//
//	result := flowpipeline.ThenResolve[*PriceOrder, Invoice](flowpipeline.Start(c, order)).Execute(ctx)
//
// Container is safe for concurrent use.
type Container struct {
	root          *do.RootScope
	owner         *disposer
	registrations map[reflect.Type]*registration
	names         map[string]reflect.Type
	mu            sync.RWMutex
	closed        bool
}

// NewContainer returns an empty Container.
func NewContainer() *Container {
	return &Container{
		root:          do.New(),
		owner:         &disposer{closedErr: ErrContainerClosed},
		registrations: make(map[reflect.Type]*registration),
		names:         make(map[string]reflect.Type),
	}
}

// Register adds a factory for T with the given lifetime.
func Register[T any](c *Container, lifetime Lifetime, factory Factory[T]) error {
	t := reflect.TypeFor[T]()
	if factory == nil {
		return fmt.Errorf("%w: nil factory for %s", ErrInvalidRegistration, t)
	}
	if lifetime < Transient || lifetime > Singleton {
		return fmt.Errorf("%w: %s for %s", ErrInvalidRegistration, lifetime, t)
	}
	reg := &registration{
		typ:      t,
		lifetime: lifetime,
		factory: func(ctx context.Context, s Scope) (any, error) {
			return factory(ctx, s)
		},
	}
	return c.add(reg, func() {
		switch lifetime {
		case Singleton:
			do.ProvideNamed[any](c.root, reg.name, c.provider(context.Background(), reg, c.owner, c.lookup))
		case Transient:
			do.ProvideNamedTransient[any](c.root, reg.name, c.provider(context.Background(), reg, c.owner, c.lookup))
		case Scoped:
			do.ProvideNamedTransient[any](c.root, reg.name, func(do.Injector) (any, error) {
				return nil, fmt.Errorf("%w: %s", ErrCaptiveDependency, t)
			})
		}
	})
}

// RegisterInstance adds an already built singleton for T. The container
// closes it on Close when it implements io.Closer.
func RegisterInstance[T any](c *Container, instance T) error {
	reg := &registration{typ: reflect.TypeFor[T](), lifetime: Singleton}
	return c.add(reg, func() {
		do.ProvideNamedValue[any](c.root, reg.name, instance)
		_ = c.owner.track(instance) //nolint:errcheck
	})
}

// add records reg under a unique service name and runs provide while the
// container is locked.
func (c *Container) add(reg *registration, provide func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContainerClosed
	}
	if _, exists := c.registrations[reg.typ]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, reg.typ)
	}
	reg.name = reg.typ.String()
	for n := 2; ; n++ {
		if _, taken := c.names[reg.name]; !taken {
			break
		}
		reg.name = reg.typ.String() + "#" + strconv.Itoa(n)
	}
	c.names[reg.name] = reg.typ
	c.registrations[reg.typ] = reg
	provide()
	return nil
}

// IsRegistered reports whether t has a registration.
func (c *Container) IsRegistered(t reflect.Type) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.registrations[t]
	return ok
}

// CreateScope implements Provider. The scope sees the registrations made
// before it was created.
func (c *Container) CreateScope(ctx context.Context) (Scope, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrContainerClosed
	}

	s := &containerScope{
		container:     c,
		owner:         &disposer{closedErr: ErrScopeClosed},
		registrations: make(map[reflect.Type]*registration, len(c.registrations)),
	}
	for t, reg := range c.registrations {
		s.registrations[t] = reg
	}
	s.injector = do.New(func(i do.Injector) {
		for _, reg := range s.registrations {
			switch reg.lifetime {
			case Singleton:
				name := reg.name
				do.ProvideNamedTransient[any](i, name, func(do.Injector) (any, error) {
					return do.InvokeNamed[any](c.root, name)
				})
			case Scoped:
				do.ProvideNamed[any](i, reg.name, c.provider(ctx, reg, s.owner, s.lookup))
			case Transient:
				do.ProvideNamedTransient[any](i, reg.name, c.provider(ctx, reg, s.owner, s.lookup))
			}
		}
	})
	return s, nil
}

// Close closes every built singleton implementing io.Closer, newest first,
// then shuts the root injector down. The container cannot create scopes
// afterwards.
func (c *Container) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.owner.close()
	if report := c.root.Shutdown(); report != nil && len(report.Errors) > 0 {
		err = errors.Join(err, report)
	}
	return err
}

func (c *Container) lookup(t reflect.Type) (*registration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrContainerClosed
	}
	reg, ok := c.registrations[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, t)
	}
	return reg, nil
}

func (c *Container) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// provider adapts reg's factory to do. Instances it builds belong to owner.
func (c *Container) provider(ctx context.Context, reg *registration, owner *disposer, lookup func(reflect.Type) (*registration, error)) do.Provider[any] {
	return func(i do.Injector) (instance any, err error) {
		defer func() {
			if r := recover(); r != nil {
				instance, err = nil, fmt.Errorf("building %s: %w", reg.typ, panicError(r))
			}
		}()
		instance, err = reg.factory(ctx, &factoryScope{injector: i, lookup: lookup})
		if err != nil {
			return nil, fmt.Errorf("building %s: %w", reg.typ, err)
		}
		if err := owner.track(instance); err != nil {
			return nil, err
		}
		return instance, nil
	}
}

// containerScope is the Scope handed to one resolved stage.
type containerScope struct {
	container     *Container
	injector      *do.RootScope
	owner         *disposer
	registrations map[reflect.Type]*registration
}

// Resolve implements Scope.
func (s *containerScope) Resolve(_ context.Context, t reflect.Type) (any, error) {
	if s.owner.isClosed() {
		return nil, ErrScopeClosed
	}
	if s.container.isClosed() {
		return nil, ErrContainerClosed
	}
	reg, err := s.lookup(t)
	if err != nil {
		return nil, err
	}
	return do.InvokeNamed[any](s.injector, reg.name)
}

func (s *containerScope) lookup(t reflect.Type) (*registration, error) {
	reg, ok := s.registrations[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, t)
	}
	return reg, nil
}

// Close implements Scope. Closing twice is a no-op.
func (s *containerScope) Close() error {
	if s.owner.isClosed() {
		return nil
	}
	err := s.owner.close()
	if report := s.injector.Shutdown(); report != nil && len(report.Errors) > 0 {
		err = errors.Join(err, report)
	}
	return err
}

// factoryScope is the view of a scope passed to factories. Resolutions go
// through the injector do handed to the provider, which tracks the
// resolution path for cycle detection.
type factoryScope struct {
	injector do.Injector
	lookup   func(reflect.Type) (*registration, error)
}

// Resolve implements Scope.
func (s *factoryScope) Resolve(_ context.Context, t reflect.Type) (any, error) {
	reg, err := s.lookup(t)
	if err != nil {
		return nil, err
	}
	return do.InvokeNamed[any](s.injector, reg.name)
}

// Close implements Scope. The owning scope releases what factories build.
func (s *factoryScope) Close() error {
	return nil
}

// disposer closes the io.Closer instances of one owner, newest first.
type disposer struct {
	closedErr error
	closers   []io.Closer
	mu        sync.Mutex
	closed    bool
}

// track records instance. An instance built after the owner closed is
// closed right away and reported with closedErr.
func (d *disposer) track(instance any) error {
	closer, ok := instance.(io.Closer)
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		if ok {
			_ = closer.Close() //nolint:errcheck
		}
		return d.closedErr
	}
	if ok {
		d.closers = append(d.closers, closer)
	}
	d.mu.Unlock()
	return nil
}

func (d *disposer) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *disposer) close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	closers := d.closers
	d.closers = nil
	d.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
