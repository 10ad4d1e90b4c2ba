package transport

// Middleware decorates a ChatRunner.
type Middleware func(ChatRunner) ChatRunner

// Chain composes middleware so that Chain(a, b)(r) runs a, then b, then r.
// The first middleware sees the turn first and its events last.
func Chain(middlewares ...Middleware) Middleware {
	return func(runner ChatRunner) ChatRunner {
		for i := range middlewares {
			runner = middlewares[len(middlewares)-1-i](runner)
		}
		return runner
	}
}
