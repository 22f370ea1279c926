package runlog

import (
	"context"
	"errors"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/port"
)

// Multi fans every entry out to several recorders.
type Multi []port.RunRecorder

// Combine drops nil recorders and returns a NoopRecorder when none remain.
func Combine(recorders ...port.RunRecorder) port.RunRecorder {
	var m Multi
	for _, r := range recorders {
		if r != nil {
			m = append(m, r)
		}
	}
	switch len(m) {
	case 0:
		return port.NoopRecorder{}
	case 1:
		return m[0]
	default:
		return m
	}
}

func (m Multi) Record(ctx context.Context, entry port.RunEntry) {
	for _, r := range m {
		r.Record(ctx, entry)
	}
}

// Close closes every recorder and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
