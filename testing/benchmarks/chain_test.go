package benchmarks

import (
	"context"
	"errors"
	"testing"

	flowpipeline "github.com/q7314568/FlowPipeline"
)

type incrementer struct{}

func (incrementer) Process(_ context.Context, n int) flowpipeline.Result[int] {
	return flowpipeline.Success(n + 1)
}

func buildChain(stages int) flowpipeline.Chain[int] {
	c := flowpipeline.Start(nil, 0)
	for i := 0; i < stages; i++ {
		c = flowpipeline.ThenFunc(c, func(_ context.Context, n int) flowpipeline.Result[int] {
			return flowpipeline.Success(n + 1)
		})
	}
	return c
}

// BenchmarkChainExecute measures chains of increasing length.
func BenchmarkChainExecute(b *testing.B) {
	ctx := context.Background()

	for _, size := range []struct {
		name   string
		stages int
	}{
		{"1", 1},
		{"10", 10},
		{"100", 100},
	} {
		b.Run(size.name, func(b *testing.B) {
			c := buildChain(size.stages)
			defer c.Close()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if r := c.Execute(ctx); r.Value() != size.stages {
					b.Fatalf("expected %d, got %v", size.stages, r)
				}
			}
		})
	}
}

// BenchmarkStageKinds compares the cost of each stage kind.
func BenchmarkStageKinds(b *testing.B) {
	ctx := context.Background()
	always := func(context.Context, int) bool { return true }

	b.Run("Then", func(b *testing.B) {
		c := flowpipeline.Then[int, int](flowpipeline.Start(nil, 1), incrementer{})
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			c.Execute(ctx)
		}
	})

	b.Run("ThenWhen", func(b *testing.B) {
		c := flowpipeline.ThenWhen[int, int](flowpipeline.Start(nil, 1), always, incrementer{})
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			c.Execute(ctx)
		}
	})

	b.Run("ThenDo", func(b *testing.B) {
		c := flowpipeline.Start(nil, 1).ThenDoFunc(func(context.Context, int) error { return nil })
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			c.Execute(ctx)
		}
	})

	b.Run("ThenResolve", func(b *testing.B) {
		container := flowpipeline.NewContainer()
		if err := flowpipeline.RegisterInstance(container, incrementer{}); err != nil {
			b.Fatal(err)
		}
		c := flowpipeline.ThenResolve[incrementer, int](flowpipeline.Start(container, 1))
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			c.Execute(ctx)
		}
	})
}

// BenchmarkFailurePath measures a chain that fails at its first stage and
// skips the rest.
func BenchmarkFailurePath(b *testing.B) {
	ctx := context.Background()
	failing := flowpipeline.ThenFunc(flowpipeline.Start(nil, 1), func(context.Context, int) flowpipeline.Result[int] {
		return flowpipeline.Fail[int]("stop", "STOP")
	})
	c := failing
	for i := 0; i < 10; i++ {
		c = flowpipeline.Then[int, int](c, incrementer{})
	}

	b.Run("Result", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			c.Execute(ctx)
		}
	})

	b.Run("ActionError", func(b *testing.B) {
		errDown := errors.New("down")
		a := flowpipeline.Start(nil, 1).ThenDoFunc(func(context.Context, int) error { return errDown })
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			a.Execute(ctx)
		}
	})
}
