// src/services/symbol_service.go
package services

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
	"github.com/username/folioimport/src/logger"
)

// SymbolService answers ticker autocomplete queries from a static catalog
// loaded at startup. Ranking is exact match, then prefix, then small edit
// distance against the symbol; results never feed back into replay except
// through an explicit operator correction.
type SymbolService struct {
	catalog []SymbolMatch
}

// NewSymbolService loads the symbol catalog from a JSON file of
// {"symbol","name"} entries. A missing or malformed file is logged and
// leaves the service running with an empty catalog.
func NewSymbolService(dataPath string) *SymbolService {
	s := &SymbolService{catalog: []SymbolMatch{}}
	if err := s.load(dataPath); err != nil {
		logger.L.Error("Failed to load symbol catalog; autocomplete disabled", "path", dataPath, "error", err)
	}
	return s
}

func (s *SymbolService) load(dataPath string) error {
	fileData, err := os.ReadFile(dataPath)
	if err != nil {
		return fmt.Errorf("failed to read symbol data file '%s': %w", dataPath, err)
	}
	var entries []SymbolMatch
	if err := json.Unmarshal(fileData, &entries); err != nil {
		return fmt.Errorf("failed to unmarshal symbol data from '%s': %w", dataPath, err)
	}
	s.catalog = entries
	logger.L.Info("Symbol catalog loaded", "path", dataPath, "symbolCount", len(entries))
	return nil
}

const maxEditDistance = 2

// Search returns up to limit matches ranked best-first. Rank: exact symbol,
// symbol prefix, name substring, then edit distance up to maxEditDistance.
// Ties break alphabetically so results are stable.
func (s *SymbolService) Search(query string, limit int) []SymbolMatch {
	q := strings.ToUpper(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return []SymbolMatch{}
	}

	type ranked struct {
		match SymbolMatch
		score int
	}
	var candidates []ranked

	for _, entry := range s.catalog {
		symbol := strings.ToUpper(entry.Symbol)
		switch {
		case symbol == q:
			candidates = append(candidates, ranked{entry, 0})
		case strings.HasPrefix(symbol, q):
			candidates = append(candidates, ranked{entry, 1})
		case strings.Contains(strings.ToUpper(entry.Name), q):
			candidates = append(candidates, ranked{entry, 2})
		default:
			distance := levenshtein.DistanceForStrings([]rune(symbol), []rune(q), levenshtein.DefaultOptions)
			if distance <= maxEditDistance {
				candidates = append(candidates, ranked{entry, 2 + distance})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score < candidates[j].score
		}
		return candidates[i].match.Symbol < candidates[j].match.Symbol
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]SymbolMatch, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.match)
	}
	return out
}
