package hashpart

import (
	"fmt"
	"strings"

	parterrors "github.com/tamirms/hashpart/errors"
)

// Strategy selects how workers write tuples into buckets.
type Strategy uint8

const (
	// Independent gives every worker its own 2^b growable buckets.
	// No synchronization is needed during the pass.
	Independent Strategy = iota + 1

	// Concurrent has all workers share one array of 2^b fixed-capacity
	// buckets, claiming slots with an atomic per-bucket cursor.
	Concurrent
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case Independent:
		return "independent"
	case Concurrent:
		return "concurrent"
	default:
		return fmt.Sprintf("Strategy(%d)", uint8(s))
	}
}

// ParseStrategy accepts the numeric method selector ("1", "2") or the
// strategy name, case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "independent":
		return Independent, nil
	case "2", "concurrent":
		return Concurrent, nil
	default:
		return 0, fmt.Errorf("%w: %q (use 1|independent or 2|concurrent)", parterrors.ErrInvalidStrategy, s)
	}
}

func (s Strategy) valid() bool {
	return s == Independent || s == Concurrent
}
