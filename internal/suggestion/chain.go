package suggestion

import (
	"context"

	"github.com/myrjola/vitalplan/internal/errors"
)

// errSkipped marks a step that did not apply, such as the AI step without a credential.
var errSkipped = errors.NewSentinel("step skipped")

type step[T any] struct {
	name string
	run  func(ctx context.Context) (T, error)
}

// firstSuccessful runs steps in order and returns the result of the first one that succeeds. onFailure is called
// for each failed or skipped step. ok is false when every step failed.
func firstSuccessful[T any](
	ctx context.Context,
	steps []step[T],
	onFailure func(name string, err error),
) (result T, ok bool) {
	for _, s := range steps {
		res, err := s.run(ctx)
		if err == nil {
			return res, true
		}
		onFailure(s.name, err)
	}
	return result, false
}
