package usecases

import (
	"strings"
	"time"
	"unicode"

	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
)

// Score weights, summing to 1.
const (
	weightDuration = 0.5
	weightTitle    = 0.3
	weightArtist   = 0.2
)

// Matcher picks the direct-source candidate that best represents a metadata-only track.
type Matcher struct {
	// DurationTolerance is the difference that still counts as an exact duration match.
	// Beyond it the duration score decays linearly to zero at four times the tolerance.
	DurationTolerance time.Duration

	// MinScore is the score a candidate needs to be accepted, in [0, 1].
	MinScore float64
}

// DefaultMatcher returns the matcher used when none is configured.
func DefaultMatcher() Matcher {
	return Matcher{DurationTolerance: 3 * time.Second, MinScore: 0.55}
}

// Best returns the index of the best scoring candidate, or -1 if none clears MinScore.
// Ties go to the earliest candidate.
func (m Matcher) Best(target ports.Candidate, candidates []ports.Candidate) (int, float64) {
	best, bestScore := -1, 0.0
	for i, c := range candidates {
		score := m.Score(target, c)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore < m.MinScore {
		return -1, bestScore
	}
	return best, bestScore
}

// Score rates how well candidate represents target, in [0, 1].
// When either duration is unknown only the text components are weighted.
func (m Matcher) Score(target, candidate ports.Candidate) float64 {
	titleScore := tokenOverlap(tokenize(target.Title), tokenSet(tokenize(candidate.Title)))

	candidateText := tokenSet(append(tokenize(candidate.Artist), tokenize(candidate.Title)...))
	artistScore := tokenOverlap(tokenize(primaryArtist(target.Artist)), candidateText)

	if target.Duration <= 0 || candidate.Duration <= 0 {
		return (weightTitle*titleScore + weightArtist*artistScore) / (weightTitle + weightArtist)
	}
	return weightDuration*m.durationScore(target.Duration, candidate.Duration) +
		weightTitle*titleScore +
		weightArtist*artistScore
}

func (m Matcher) durationScore(a, b time.Duration) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	tol := m.DurationTolerance
	if tol <= 0 {
		tol = time.Second
	}
	if diff <= tol {
		return 1
	}
	limit := 4 * tol
	if diff >= limit {
		return 0
	}
	return 1 - float64(diff-tol)/float64(limit-tol)
}

// BuildMatchQuery returns the search text used to find candidates for a metadata-only track.
func BuildMatchQuery(title, artist string) string {
	artist = primaryArtist(artist)
	if artist == "" {
		return title
	}
	return artist + " " + title
}

// primaryArtist returns the first artist of a comma separated artist list.
func primaryArtist(artist string) string {
	first, _, _ := strings.Cut(artist, ",")
	return strings.TrimSpace(first)
}

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "of": {}, "feat": {}, "ft": {},
	"official": {}, "video": {}, "audio": {}, "lyrics": {}, "lyric": {}, "hd": {}, "mv": {},
	"topic": {},
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if _, ok := stopwords[f]; !ok {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// tokenOverlap returns the fraction of want found in have.
func tokenOverlap(want []string, have map[string]struct{}) float64 {
	if len(want) == 0 {
		return 0
	}
	found := 0
	for _, t := range want {
		if _, ok := have[t]; ok {
			found++
		}
	}
	return float64(found) / float64(len(want))
}
