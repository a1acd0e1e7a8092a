package wait

import "context"

// Continuation consumes a successful value.
type Continuation func(v any) (any, error)

// Recovery consumes a failure. Returning the error again propagates it.
type Recovery func(err error) (any, error)

// Wait applies onSuccess or onFailure to the outcome (v, err).
//
// If v is a pending *Future, Wait returns a new *Future that settles with the
// continuation's result. Otherwise the continuation runs right away and its
// result is returned as is. A nil onFailure rethrows. Exactly one of the two
// continuations runs, once.
func Wait(v any, err error, onSuccess Continuation, onFailure Recovery) (any, error) {
	v, err = Flatten(v, err)
	if err != nil {
		if onFailure == nil {
			return nil, err
		}
		return onFailure(err)
	}

	f, ok := v.(*Future)
	if !ok {
		if onSuccess == nil {
			return v, nil
		}
		return onSuccess(v)
	}

	out := NewPromise()
	f.subscribe(func(v any, err error) {
		r, rerr := Wait(v, err, onSuccess, onFailure)
		if rerr != nil {
			_ = out.Reject(rerr)
			return
		}
		_ = out.Resolve(r)
	})
	return out, nil
}

// Then is Wait without a failure continuation.
func Then(v any, err error, onSuccess Continuation) (any, error) {
	return Wait(v, err, onSuccess, nil)
}

// Catch is Wait without a success continuation.
func Catch(v any, err error, onFailure Recovery) (any, error) {
	return Wait(v, err, nil, onFailure)
}

// Finally runs fn once (v, err) has settled, whatever the outcome, and passes
// the outcome through unchanged.
func Finally(v any, err error, fn func()) (any, error) {
	return Wait(v, err,
		func(v any) (any, error) {
			fn()
			return v, nil
		},
		func(err error) (any, error) {
			fn()
			return nil, err
		},
	)
}

// Flatten unwraps settled futures so that callers only ever see a plain
// value, an error, or a still pending *Future.
func Flatten(v any, err error) (any, error) {
	for err == nil {
		f, ok := v.(*Future)
		if !ok {
			return v, nil
		}
		fv, ferr, settled := f.Result()
		if !settled {
			return f, nil
		}
		v, err = fv, ferr
	}
	return nil, err
}

// IsPending reports whether v is a *Future that has not settled yet.
func IsPending(v any) bool {
	f, ok := v.(*Future)
	return ok && !f.Settled()
}

// Await blocks until (v, err) is final.
func Await(ctx context.Context, v any, err error) (any, error) {
	v, err = Flatten(v, err)
	if err != nil {
		return nil, err
	}
	if f, ok := v.(*Future); ok {
		r, err := f.Await(ctx)
		return Await(ctx, r, err)
	}
	return v, nil
}

// ToFuture lifts (v, err) into a *Future.
func ToFuture(v any, err error) *Future {
	if err != nil {
		return Rejected(err)
	}
	if f, ok := v.(*Future); ok {
		return f
	}
	return Resolved(v)
}
