package domain

import (
	"fmt"
	"regexp"
	"strings"
)

type SymbolKind string

const (
	SymbolKindStock  SymbolKind = "stock"
	SymbolKindCrypto SymbolKind = "crypto"
)

// Symbol identifies one tracked instrument. Ticker is the cache key and is
// always stored uppercase.
type Symbol struct {
	Ticker string
	Kind   SymbolKind
}

var tickerRe = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,11}$`)

func NewSymbol(ticker string, kind SymbolKind) (Symbol, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if !tickerRe.MatchString(t) {
		return Symbol{}, fmt.Errorf("%w: bad ticker %q", ErrInvalidSymbol, ticker)
	}
	if kind != SymbolKindStock && kind != SymbolKindCrypto {
		return Symbol{}, fmt.Errorf("%w: bad kind %q", ErrInvalidSymbol, kind)
	}
	return Symbol{Ticker: t, Kind: kind}, nil
}

func (s Symbol) String() string { return s.Ticker }
