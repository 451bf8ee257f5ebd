package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidSymbol = errors.New("invalid symbol")
	ErrFetchTimeout  = errors.New("fetch timeout")
	ErrFetchFailed   = errors.New("fetch transport error")
)

// PartialFailure reports a batch fetch where some symbols failed. The
// succeeded subset travels in the result map alongside this error.
type PartialFailure struct {
	Failed map[string]error // ticker -> cause
}

func (e *PartialFailure) Error() string {
	tickers := make([]string, 0, len(e.Failed))
	for t := range e.Failed {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return fmt.Sprintf("partial failure: %s", strings.Join(tickers, ","))
}

// Is lets callers match any per-symbol cause, e.g. ErrFetchTimeout.
func (e *PartialFailure) Is(target error) bool {
	for _, cause := range e.Failed {
		if errors.Is(cause, target) {
			return true
		}
	}
	return false
}
