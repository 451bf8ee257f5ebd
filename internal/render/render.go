// Package render formats cache lookups as ticker-tape text. Colors, fonts
// and scrolling belong to the display host; this package only produces the
// strings and the change direction the host needs.
package render

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tickerfeed/internal/application"
	"tickerfeed/internal/domain"
)

// Direction of a price change, for the host's color coding.
type Direction int

const (
	Flat Direction = iota
	Up
	Down
)

const (
	noData = "--"

	// staleMark suffixes lines whose data is past the staleness threshold,
	// so the host can dim them.
	staleMark = " *"
)

// Line renders one lookup as `SYMBOL: $PRICE CHANGE (PCT%)`, e.g.
// `AAPL: $150.25 +2.50 (+1.7%)`. Unknown symbols render as `SYMBOL: --`;
// stale ones keep their last values and gain the stale mark.
func Line(l application.Lookup) string {
	if l.Freshness == domain.FreshnessUnknown {
		return fmt.Sprintf("%s: %s", l.Symbol.Ticker, noData)
	}
	line := fmt.Sprintf("%s: $%s %s (%s%%)",
		l.Symbol.Ticker,
		l.Quote.Price.StringFixed(2),
		signedFixed(l.Quote.Change),
		signed(l.Quote.ChangePct),
	)
	if l.Freshness == domain.FreshnessStale {
		line += staleMark
	}
	return line
}

// Tape joins one line per lookup in the given order, the way the scrolling
// display concatenates them.
func Tape(lookups []application.Lookup) string {
	lines := make([]string, 0, len(lookups))
	for _, l := range lookups {
		lines = append(lines, Line(l))
	}
	return strings.Join(lines, "  |  ")
}

// ChangeDirection reports whether the quote moved up, down or not at all.
func ChangeDirection(l application.Lookup) Direction {
	if l.Freshness == domain.FreshnessUnknown {
		return Flat
	}
	switch l.Quote.Change.Sign() {
	case 1:
		return Up
	case -1:
		return Down
	default:
		return Flat
	}
}

func signedFixed(d decimal.Decimal) string {
	if d.Sign() >= 0 {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}

func signed(d decimal.Decimal) string {
	if d.Sign() >= 0 {
		return "+" + d.String()
	}
	return d.String()
}
