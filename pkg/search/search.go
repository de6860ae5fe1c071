// Package search finds documents matching a free-text query. Query terms
// are compiled into a single Aho-Corasick automaton which scans each
// document's title and extracted text in one pass. Title hits weigh more
// than body hits.
package search

import (
	"sort"
	"strings"
	"unicode"

	"github.com/coregx/ahocorasick"
	"github.com/orsinium-labs/stopwords"
	"go.uber.org/zap"

	"github.com/notionmini/gonote/pkg/blocks"
	"github.com/notionmini/gonote/pkg/convert"
	"github.com/notionmini/gonote/pkg/registry"
)

const (
	titleWeight   = 3
	snippetRadius = 40
)

// isJoiner reports punctuation preserved inside terms, so "o'brien" and
// "jean-luc" stay single tokens.
func isJoiner(r rune) bool {
	switch r {
	case '\'', '\u2019', '\u2018', '-', '\u2013', '\u2014', '.', '_', '&':
		return true
	default:
		return false
	}
}

// Canonicalize folds text to lowercase, keeps letters, digits, and
// joiners, collapses everything else into single spaces, and trims. The
// same form is used for query terms and document text so matches line up.
func Canonicalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	lastWasSpace := true
	for _, ch := range s {
		c := unicode.ToLower(ch)
		if c == '\u2019' || c == '\u2018' {
			c = '\''
		}
		if c == '\u2013' || c == '\u2014' {
			c = '-'
		}
		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
		} else if !lastWasSpace {
			out.WriteRune(' ')
			lastWasSpace = true
		}
	}

	return strings.TrimRight(out.String(), " ")
}

// Result is one matching document.
type Result struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// Score is the weighted hit count; higher sorts first.
	Score int `json:"score"`
	// Snippet is a short context window around the first body hit, empty
	// when only the title matched.
	Snippet string `json:"snippet,omitempty"`
}

// Searcher scans a registry's documents.
type Searcher struct {
	reg  *registry.Registry
	stop *stopwords.Stopwords
	log  *zap.Logger
}

// NewSearcher returns a Searcher over reg. Pass a nil logger to disable
// logging.
func NewSearcher(reg *registry.Registry, log *zap.Logger) *Searcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Searcher{reg: reg, stop: stopwords.MustGet("en"), log: log}
}

// Search returns documents matching query, best first. An empty query or
// one with no usable terms returns no results.
func (s *Searcher) Search(query string) ([]Result, error) {
	terms := s.queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	ac, err := ahocorasick.NewBuilder().
		AddStrings(terms).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, doc := range s.reg.Documents() {
		title := Canonicalize(doc.Title)
		body := Canonicalize(s.extractText(doc.ID))

		titleHits := len(ac.FindAllOverlapping([]byte(title)))
		bodyMatches := ac.FindAllOverlapping([]byte(body))

		score := titleHits*titleWeight + len(bodyMatches)
		if score == 0 {
			continue
		}

		r := Result{ID: doc.ID, Title: doc.Title, Score: score}
		if len(bodyMatches) > 0 {
			r.Snippet = snippet(body, bodyMatches[0].Start, bodyMatches[0].End)
		}
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Title < results[j].Title
	})
	return results, nil
}

// queryTerms canonicalizes and splits the query, dropping stopwords. If
// every term is a stopword the raw terms are kept, so a literal search for
// common words still works.
func (s *Searcher) queryTerms(query string) []string {
	words := strings.Fields(Canonicalize(query))
	filtered := make([]string, 0, len(words))
	for _, w := range words {
		if !s.stop.Contains(w) {
			filtered = append(filtered, w)
		}
	}
	if len(filtered) == 0 {
		return words
	}
	return filtered
}

// extractText pulls the searchable plain text out of a document's stored
// payload. Block documents contribute each block's text; payloads that are
// not block arrays are scanned as raw text.
func (s *Searcher) extractText(id string) string {
	content, ok := s.reg.GetContent(id)
	if !ok {
		return ""
	}
	parsed, err := convert.ParseJSONBlocks(content)
	if err != nil {
		return content
	}
	var b strings.Builder
	writeBlockText(&b, parsed)
	return b.String()
}

func writeBlockText(b *strings.Builder, blks []blocks.Block) {
	for _, blk := range blks {
		if text := blk.Text(); text != "" {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(text)
		}
		writeBlockText(b, blk.Children)
	}
}

func snippet(text string, start, end int) string {
	lo := start - snippetRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + snippetRadius
	if hi > len(text) {
		hi = len(text)
	}
	// Avoid cutting words in half at the window edges.
	if lo > 0 {
		if i := strings.IndexByte(text[lo:start], ' '); i >= 0 {
			lo += i + 1
		}
	}
	if hi < len(text) {
		if i := strings.LastIndexByte(text[end:hi], ' '); i >= 0 {
			hi = end + i
		}
	}
	return text[lo:hi]
}
