package search

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/shelfapp/shelf-server/internal/domain"
)

// MaxMatches bounds the number of book IDs returned by MatchBookIDs.
const MaxMatches = 10000

var lower = cases.Lower(language.Und)

// normalizeQuery applies NFKC and trims surrounding whitespace.
func normalizeQuery(q string) string {
	return strings.TrimSpace(norm.NFKC.String(q))
}

// MatchBookIDs returns the IDs of books matching text, best match first.
// limit <= 0 or above MaxMatches is treated as MaxMatches. A blank query
// matches nothing.
func (s *Index) MatchBookIDs(ctx context.Context, text string, limit int) ([]string, error) {
	text = normalizeQuery(text)
	if text == "" {
		return []string{}, nil
	}
	if limit <= 0 || limit > MaxMatches {
		limit = MaxMatches
	}
	return s.searchIDs(ctx, buildBookQuery(text), limit)
}

// MatchBookIDsIn is MatchBookIDs restricted to the given book IDs, typically
// one user's library. Every matching book in the set is returned, so the
// result is never truncated by matches outside it.
func (s *Index) MatchBookIDsIn(ctx context.Context, text string, bookIDs []string) ([]string, error) {
	text = normalizeQuery(text)
	if text == "" || len(bookIDs) == 0 {
		return []string{}, nil
	}
	q := bleve.NewConjunctionQuery(bleve.NewDocIDQuery(bookIDs), buildBookQuery(text))
	return s.searchIDs(ctx, q, len(bookIDs))
}

func (s *Index) searchIDs(ctx context.Context, q query.Query, size int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(q, size, 0, false)
	req.SortBy([]string{"-_score", "_id"})

	result, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// prefixFields are the fields searched by token prefix.
var prefixFields = []struct {
	name  string
	boost float64
}{
	{"title", 0.5},
	{"author", 0.5},
	{"subtitle", 0.3},
}

// queryTokens lowercases text and splits it on anything that is not a
// letter or digit, the way the simple analyzer tokenizes author names.
func queryTokens(text string) []string {
	return strings.FieldsFunc(lower.String(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// buildBookQuery matches text against titles, authors, subtitles and
// descriptions, with typo tolerance on the title and per-token prefix
// matching on title, author and subtitle. Inputs that look like an ISBN also
// match the isbn keyword field.
func buildBookQuery(text string) query.Query {
	var queries []query.Query

	titleMatch := bleve.NewMatchQuery(text)
	titleMatch.SetField("title")
	titleMatch.SetBoost(3.0)
	queries = append(queries, titleMatch)

	authorMatch := bleve.NewMatchQuery(text)
	authorMatch.SetField("author")
	authorMatch.SetBoost(2.0)
	queries = append(queries, authorMatch)

	subtitleMatch := bleve.NewMatchQuery(text)
	subtitleMatch.SetField("subtitle")
	subtitleMatch.SetBoost(1.5)
	queries = append(queries, subtitleMatch)

	descMatch := bleve.NewMatchQuery(text)
	descMatch.SetField("description")
	descMatch.SetBoost(0.5)
	queries = append(queries, descMatch)

	fuzzy := bleve.NewFuzzyQuery(lower.String(text))
	fuzzy.SetFuzziness(1)
	fuzzy.SetField("title")
	fuzzy.SetBoost(0.8)
	queries = append(queries, fuzzy)

	// Prefix per token (minimum 2 chars) so partial words match, e.g.
	// "herb" finds Frank Herbert.
	for _, token := range queryTokens(text) {
		if len([]rune(token)) < 2 {
			continue
		}
		for _, f := range prefixFields {
			prefix := bleve.NewPrefixQuery(token)
			prefix.SetField(f.name)
			prefix.SetBoost(f.boost)
			queries = append(queries, prefix)
		}
	}

	if isbn := domain.NormalizeISBN(text); len(isbn) == 10 || len(isbn) == 13 {
		term := bleve.NewTermQuery(isbn)
		term.SetField("isbn")
		term.SetBoost(5.0)
		queries = append(queries, term)
	}

	return bleve.NewDisjunctionQuery(queries...)
}
