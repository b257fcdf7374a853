package watchlist

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMatchScore is the minimum similarity Search reports by default.
const DefaultMatchScore = 0.3

// Match is a title ranked against a search query.
type Match struct {
	Title Title
	Score float64
}

// vector is a term-weight vector with a cached norm.
type vector struct {
	terms map[string]float64
	norm  float64
}

func newVector(terms map[string]float64) vector {
	var sum float64
	for _, w := range terms {
		sum += w * w
	}
	return vector{terms: terms, norm: math.Sqrt(sum)}
}

func (v vector) cosine(other vector) float64 {
	if v.norm == 0 || other.norm == 0 {
		return 0
	}
	var dot float64
	for term, w := range v.terms {
		dot += w * other.terms[term]
	}
	return dot / (v.norm * other.norm)
}

// Search ranks titles against query by TF-IDF cosine similarity over the
// title name, directors, and genres. Document frequencies come from titles
// itself so words shared by most of a watchlist weigh less. Titles whose
// folded name contains the folded query always match with score 1. Results
// scoring below minScore are dropped; ties keep watchlist order.
func Search(titles []Title, query string, minScore float64) []Match {
	queryTerms := Tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}
	folded := strings.Join(queryTerms, " ")

	docs := make([][]string, len(titles))
	docFreq := make(map[string]int)
	for i, title := range titles {
		docs[i] = Tokenize(title.Name + " " + title.Directors + " " + strings.Join(title.Genres, " "))
		seen := make(map[string]struct{}, len(docs[i]))
		for _, term := range docs[i] {
			if _, dup := seen[term]; dup {
				continue
			}
			seen[term] = struct{}{}
			docFreq[term]++
		}
	}

	n := float64(len(titles))
	idf := func(term string) float64 {
		return math.Log((n+1)/(1+float64(docFreq[term]))) + 1
	}
	weigh := func(terms []string) vector {
		weights := make(map[string]float64, len(terms))
		for _, term := range terms {
			weights[term] += idf(term)
		}
		return newVector(weights)
	}

	q := weigh(queryTerms)
	matches := make([]Match, 0)
	for i, title := range titles {
		score := q.cosine(weigh(docs[i]))
		if strings.Contains(strings.Join(Tokenize(title.Name), " "), folded) {
			score = 1
		}
		if score >= minScore && score > 0 {
			matches = append(matches, Match{Title: title, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches
}

var folder = cases.Fold()

// Tokenize case-folds text, strips diacritics, and splits it on anything
// that is not a letter or digit. Single-character tokens are dropped except
// digits, so "Se7en" and "Part 2" stay searchable.
func Tokenize(text string) []string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), text)
	if err != nil {
		stripped = text
	}
	fields := strings.FieldsFunc(folder.String(stripped), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := fields[:0]
	for _, field := range fields {
		if len([]rune(field)) < 2 && !unicode.IsDigit([]rune(field)[0]) {
			continue
		}
		terms = append(terms, field)
	}
	return terms
}
