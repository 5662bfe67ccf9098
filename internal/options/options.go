// Package options implements the functional-option pattern shared by the
// writer and reader configuration surfaces.
//
// Each package keeps its config struct unexported and aliases
// Option[*config] under a local Option name; the WithXxx constructors wrap
// their setters with New (fallible) or NoError (infallible).
package options

// Option configures a target of type T. Implementations are created
// through New or NoError; the apply method stays unexported so option
// values can only be built by this package.
type Option[T any] interface {
	apply(T) error
}

// Func adapts a plain function into an Option.
type Func[T any] struct {
	applyFunc func(T) error
}

func (f *Func[T]) apply(target T) error {
	return f.applyFunc(target)
}

// New wraps a setter that validates its input and may fail.
func New[T any](fn func(T) error) *Func[T] {
	return &Func[T]{applyFunc: fn}
}

// NoError wraps a setter that cannot fail.
func NoError[T any](fn func(T)) *Func[T] {
	return &Func[T]{
		applyFunc: func(target T) error {
			fn(target)

			return nil
		},
	}
}

// Apply runs opts against target in order, stopping at the first error.
// The target keeps any options applied before the failure.
func Apply[T any](target T, opts ...Option[T]) error {
	for _, opt := range opts {
		if err := opt.apply(target); err != nil {
			return err
		}
	}

	return nil
}
