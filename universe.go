package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// UniverseEntry is one screened ticker. BasePrice is optional and only used by
// the synthetic generator.
type UniverseEntry struct {
	Symbol    string  `yaml:"symbol"`
	BasePrice float64 `yaml:"base_price,omitempty"`
}

type universeFile struct {
	Universe []UniverseEntry `yaml:"universe"`
}

var defaultTickers = []string{"HBL", "LUCK", "MCB", "TPLP", "SYS", "ENGRO", "EPCL", "UNITY", "SNGP", "JSCL"}

func DefaultUniverse() []UniverseEntry {
	out := make([]UniverseEntry, 0, len(defaultTickers))
	for _, s := range defaultTickers {
		out = append(out, UniverseEntry{Symbol: s})
	}
	return out
}

func LoadUniverse(path string) ([]UniverseEntry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var uf universeFile
	if err := yaml.Unmarshal(b, &uf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(uf.Universe))
	out := make([]UniverseEntry, 0, len(uf.Universe))
	for _, it := range uf.Universe {
		s := strings.ToUpper(strings.TrimSpace(it.Symbol))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, UniverseEntry{Symbol: s, BasePrice: it.BasePrice})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no symbols found in universe")
	}
	return out, nil
}

// ResolveUniverse loads path when it exists and falls back to the default
// tickers when it does not.
func ResolveUniverse(path string, log *Logger) ([]UniverseEntry, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultUniverse(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Infof("universe file %s not found, using %d default tickers", path, len(defaultTickers))
		return DefaultUniverse(), nil
	}
	return LoadUniverse(path)
}

func universeSymbols(u []UniverseEntry) []string {
	out := make([]string, 0, len(u))
	for _, e := range u {
		out = append(out, e.Symbol)
	}
	return out
}
