// Package market provides a data-driven symbol lookup table. The universe is
// plain data loaded at startup, keeping strategy and engine logic decoupled
// from any fixed symbol list.
package market

import (
	_ "embed"
	"fmt"

	json "github.com/goccy/go-json"
)

//go:embed symbols.json
var symbolData []byte

// Symbol is one tradable instrument in the universe.
type Symbol struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Market string `json:"market"` // "domestic" or "overseas"
	Sector string `json:"sector"`
}

// Registry resolves symbol codes against the loaded universe.
type Registry struct {
	byCode  map[string]Symbol
	ordered []Symbol
}

// NewRegistry loads the embedded symbol universe.
func NewRegistry() (*Registry, error) {
	return NewRegistryFromJSON(symbolData)
}

// NewRegistryFromJSON builds a registry from raw JSON, allowing callers to
// supply their own universe.
func NewRegistryFromJSON(data []byte) (*Registry, error) {
	var symbols []Symbol
	if err := json.Unmarshal(data, &symbols); err != nil {
		return nil, fmt.Errorf("failed to parse symbol table: %w", err)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("symbol table is empty")
	}

	byCode := make(map[string]Symbol, len(symbols))
	for _, s := range symbols {
		if s.Code == "" {
			return nil, fmt.Errorf("symbol table contains an entry without a code")
		}
		if _, dup := byCode[s.Code]; dup {
			return nil, fmt.Errorf("duplicate symbol code %q", s.Code)
		}
		byCode[s.Code] = s
	}

	return &Registry{byCode: byCode, ordered: symbols}, nil
}

// Lookup returns the symbol for a code.
func (r *Registry) Lookup(code string) (Symbol, bool) {
	s, ok := r.byCode[code]
	return s, ok
}

// All returns the universe in table order.
func (r *Registry) All() []Symbol {
	out := make([]Symbol, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// ByMarket returns the symbols listed on the given market.
func (r *Registry) ByMarket(market string) []Symbol {
	var out []Symbol
	for _, s := range r.ordered {
		if s.Market == market {
			out = append(out, s)
		}
	}
	return out
}
