package framestream

import "sync/atomic"

// Map applies fn to every value.
func Map[T, R any](src Stream[T], fn func(T) R) Stream[R] {
	return New(func(o Observer[R]) Subscription {
		return src.Subscribe(Funcs[T]{
			Next:      func(v T) { o.OnNext(fn(v)) },
			Error:     o.OnError,
			Completed: o.OnCompleted,
		})
	})
}

// Filter forwards values for which keep returns true.
func Filter[T any](src Stream[T], keep func(T) bool) Stream[T] {
	return New(func(o Observer[T]) Subscription {
		return src.Subscribe(Funcs[T]{
			Next: func(v T) {
				if keep(v) {
					o.OnNext(v)
				}
			},
			Error:     o.OnError,
			Completed: o.OnCompleted,
		})
	})
}

// FilterMap applies fn and forwards only the results reported as present.
// This is the select-then-drop-empty shape every frame extractor uses.
func FilterMap[T, R any](src Stream[T], fn func(T) (R, bool)) Stream[R] {
	return New(func(o Observer[R]) Subscription {
		return src.Subscribe(Funcs[T]{
			Next: func(v T) {
				if r, ok := fn(v); ok {
					o.OnNext(r)
				}
			},
			Error:     o.OnError,
			Completed: o.OnCompleted,
		})
	})
}

// Do runs a side effect for every value and forwards it unchanged.
func Do[T any](src Stream[T], fn func(T)) Stream[T] {
	return New(func(o Observer[T]) Subscription {
		return src.Subscribe(Funcs[T]{
			Next: func(v T) {
				fn(v)
				o.OnNext(v)
			},
			Error:     o.OnError,
			Completed: o.OnCompleted,
		})
	})
}

// Take forwards the first n values and then completes.
func Take[T any](src Stream[T], n int) Stream[T] {
	return New(func(o Observer[T]) Subscription {
		if n <= 0 {
			o.OnCompleted()
			return Nop
		}

		var seen atomic.Int64
		return src.Subscribe(Funcs[T]{
			Next: func(v T) {
				c := seen.Add(1)
				if c > int64(n) {
					return
				}
				o.OnNext(v)
				if c == int64(n) {
					o.OnCompleted()
				}
			},
			Error:     o.OnError,
			Completed: o.OnCompleted,
		})
	})
}

// Fail returns a Stream that terminates with err on subscribe.
func Fail[T any](err error) Stream[T] {
	return New(func(o Observer[T]) Subscription {
		o.OnError(err)
		return Nop
	})
}
