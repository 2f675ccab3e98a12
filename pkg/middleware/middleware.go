package middleware

import "net/http"

// Func wraps an http.Handler with cross-cutting behavior.
type Func func(http.Handler) http.Handler

// Stack is an ordered list of middleware. The first entry added is the
// outermost wrapper and sees each request first.
type Stack []Func

// New returns an empty Stack.
func New() *Stack {
	return &Stack{}
}

func (s *Stack) Use(mw ...Func) {
	*s = append(*s, mw...)
}

func (s *Stack) Len() int {
	return len(*s)
}

// Apply wraps handler with every middleware in the stack.
func (s *Stack) Apply(handler http.Handler) http.Handler {
	return Chain(handler, *s...)
}

// Chain wraps handler so that mws[0] runs first.
func Chain(handler http.Handler, mws ...Func) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	return handler
}
