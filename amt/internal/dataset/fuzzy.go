// CLAUDE:SUMMARY Trigram-similarity fuzzy lookup over canonical municipality names.
package dataset

import (
	"context"
	"sort"
)

// Match is a fuzzy-search hit.
type Match struct {
	BFSNr int
	Name  string
	Score float64
}

// FuzzyByName ranks canonical names by trigram similarity to query and
// returns matches at or above threshold, best first. Comparison runs on
// the normalized forms, so "Zurich" finds "Zürich".
func (s *Store) FuzzyByName(ctx context.Context, query, canton string, threshold float64) ([]Match, error) {
	refs, err := s.AllNames(ctx, canton)
	if err != nil {
		return nil, err
	}
	qn := Normalize(query)
	if qn == "" {
		return nil, nil
	}

	var matches []Match
	for _, r := range refs {
		score := TrigramSimilarity(qn, Normalize(r.Name))
		if score >= threshold {
			matches = append(matches, Match{BFSNr: r.BFSNr, Name: r.Name, Score: score})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].BFSNr < matches[j].BFSNr
	})
	return matches, nil
}

// TrigramSimilarity returns the Sørensen–Dice coefficient of the character
// trigram sets of a and b, in [0,1]. Inputs are padded so short names still
// produce trigrams.
func TrigramSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	var shared int
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(ta)+len(tb))
}

func trigrams(s string) map[string]struct{} {
	runes := []rune("  " + s + " ")
	set := make(map[string]struct{})
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}
