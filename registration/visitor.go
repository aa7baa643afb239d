package registration

// TransformVisitor observes per-trial progress of a registration run. Visit is
// called after every completed trial with the trial's best LCP score, the
// fraction of the trial budget consumed, and a transform.
//
// When NeedsGlobalTransform reports true the transform passed to Visit maps
// the original target cloud onto the original reference cloud (the same frame
// as the final result); otherwise it is the raw transform between the centered
// sampled clouds, which is cheaper to produce.
type TransformVisitor interface {
	Visit(lcp, progress float64, transform *Transform)
	NeedsGlobalTransform() bool
}

// NoopVisitor ignores all progress callbacks.
type NoopVisitor struct{}

// Visit implements TransformVisitor.
func (NoopVisitor) Visit(lcp, progress float64, transform *Transform) {}

// NeedsGlobalTransform implements TransformVisitor.
func (NoopVisitor) NeedsGlobalTransform() bool { return false }

// VisitorFunc adapts a plain function to a TransformVisitor that asks for
// global transforms.
type VisitorFunc func(lcp, progress float64, transform *Transform)

// Visit implements TransformVisitor.
func (f VisitorFunc) Visit(lcp, progress float64, transform *Transform) {
	f(lcp, progress, transform)
}

// NeedsGlobalTransform implements TransformVisitor.
func (VisitorFunc) NeedsGlobalTransform() bool { return true }
