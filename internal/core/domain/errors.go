package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownNode           = errors.New("unknown schema node")
	ErrCollectionNotInLayout = errors.New("collection not in layout")
	ErrUnknownCollection     = errors.New("unknown collection")
	ErrUnknownLayout         = errors.New("unknown layout")
	ErrEmptyQuery            = errors.New("empty query")
	ErrNotAllowed            = errors.New("only SELECT queries are allowed")
	ErrMultiStatement        = errors.New("multiple statements are not allowed")
	ErrParseFailed           = errors.New("failed to parse SQL")
	ErrUnsupportedQuery      = errors.New("unsupported query shape")
)

// MissingCollectionError reports an operator referencing a collection that the
// layout embedded elsewhere (or never had). It is an expected outcome, rendered
// as "not applicable" rather than as a zero cost.
type MissingCollectionError struct {
	Layout     string
	Collection string
}

func (e *MissingCollectionError) Error() string {
	return fmt.Sprintf("%s: %s not in %s", ErrCollectionNotInLayout, e.Collection, e.Layout)
}

func (e *MissingCollectionError) Is(target error) bool {
	return target == ErrCollectionNotInLayout
}

// NotApplicable returns the diagnostic shown instead of a cost when err is a
// missing-collection outcome.
func NotApplicable(err error) (string, bool) {
	var mc *MissingCollectionError
	if !errors.As(err, &mc) {
		return "", false
	}
	return fmt.Sprintf("N/A (%s not in layout)", mc.Collection), true
}
