package wait

// Sequence applies action to every item strictly in order. Action n+1 does not
// start before the result of action n has settled. The first failure stops
// the sequence. The result is a []any holding each action's value, or a
// *Future of it once any action went asynchronous.
func Sequence[T any](items []T, action func(i int, item T) (any, error)) (any, error) {
	results := make([]any, 0, len(items))

	var step func(start int) (any, error)
	step = func(start int) (any, error) {
		for i := start; i < len(items); i++ {
			v, err := Flatten(action(i, items[i]))
			if err != nil {
				return nil, err
			}
			if f, ok := v.(*Future); ok {
				next := i + 1
				return Then(f, nil, func(v any) (any, error) {
					results = append(results, v)
					return step(next)
				})
			}
			results = append(results, v)
		}
		return results, nil
	}

	return step(0)
}

// SequenceThen runs Sequence and hands the collected results to final.
func SequenceThen[T any](items []T, action func(i int, item T) (any, error), final func([]any) (any, error)) (any, error) {
	v, err := Sequence(items, action)
	return Then(v, err, func(v any) (any, error) {
		return final(v.([]any))
	})
}
