package flowpipeline

// Unit is the value of chains that carry no meaningful data. It lets
// input-less pipelines share the same generic shape as typed ones:
//
//	flowpipeline.StartUnit(nil).
//	    ThenRunFunc(warmCaches).
//	    ThenRunFunc(announceReady).
//	    Execute(ctx)
type Unit struct{}

// String implements fmt.Stringer.
func (Unit) String() string { return "()" }
