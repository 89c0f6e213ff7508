// Package ranker rescores full-text candidates so that title matches always
// outrank body matches, with a deterministic total order.
package ranker

import (
	"cmp"
	"path"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"

	"github.com/starford/tessera/internal/parser"
)

// Tier is the primary sort key of a hit. Higher tiers always rank first,
// regardless of score.
type Tier int

const (
	TierContent Tier = iota
	TierTitleFuzzy
	TierTitlePrefix
	TierTitleExact
)

func (t Tier) String() string {
	switch t {
	case TierTitleExact:
		return "title-exact"
	case TierTitlePrefix:
		return "title-prefix"
	case TierTitleFuzzy:
		return "title-fuzzy"
	default:
		return "content"
	}
}

// Match scores before the field bonus.
const (
	scoreExact      = 950
	scorePrefix     = 750
	scoreWordPrefix = 650
	scoreSubstring  = 550

	bonusTitle    = 100
	bonusFilename = 50

	fuzzyThreshold = 50
	fuzzyOffset    = 200

	contentBase   = 50
	contentPerHit = 10
)

// Doc is a candidate to rank.
type Doc struct {
	Filename string
	Content  string
	Modified int64
}

// Hit is a ranked result.
type Hit struct {
	Filename string `json:"filename"`
	Title    string `json:"title"`
	Tier     Tier   `json:"tier"`
	Score    int    `json:"score"`
	Modified int64  `json:"modified"`
}

// Rank scores docs against query and returns at most limit hits, best first.
// Docs that match neither title, filename nor content are dropped. A blank
// query returns the most recently modified docs.
func Rank(query string, docs []Doc, limit int) []Hit {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		hits := lo.Map(docs, func(d Doc, _ int) Hit {
			return Hit{Filename: d.Filename, Title: parser.Title(d.Content, d.Filename), Modified: d.Modified}
		})
		slices.SortFunc(hits, func(a, b Hit) int {
			return cmp.Or(cmp.Compare(b.Modified, a.Modified), strings.Compare(a.Filename, b.Filename))
		})
		return truncate(hits, limit)
	}

	titles := make(titleSource, len(docs))
	for i, d := range docs {
		titles[i] = parser.Title(d.Content, d.Filename)
	}
	titleFuzzy := fuzzyScores(q, titles)

	hits := make([]Hit, 0, len(docs))
	for i, d := range docs {
		h := Hit{Filename: d.Filename, Title: titles[i], Modified: d.Modified}

		ts, tExact := fieldScore(q, strings.ToLower(titles[i]))
		fs, fExact := filenameScore(q, strings.ToLower(d.Filename))
		if ts > 0 {
			ts += bonusTitle
		}
		if fs > 0 {
			fs += bonusFilename
		}

		switch {
		case ts > 0 || fs > 0:
			h.Score = max(ts, fs)
			h.Tier = TierTitlePrefix
			if (tExact && ts >= fs) || (fExact && fs >= ts) {
				h.Tier = TierTitleExact
			}
		case titleFuzzy[i] >= fuzzyThreshold:
			h.Tier = TierTitleFuzzy
			h.Score = titleFuzzy[i] + fuzzyOffset
		default:
			score, ok := contentScore(q, d.Content)
			if !ok {
				continue
			}
			h.Tier = TierContent
			h.Score = score
		}
		hits = append(hits, h)
	}

	slices.SortFunc(hits, compareHits)
	return truncate(hits, limit)
}

// Filenames returns the filename of each hit in order.
func Filenames(hits []Hit) []string {
	return lo.Map(hits, func(h Hit, _ int) string { return h.Filename })
}

func compareHits(a, b Hit) int {
	return cmp.Or(
		cmp.Compare(b.Tier, a.Tier),
		cmp.Compare(b.Score, a.Score),
		cmp.Compare(b.Modified, a.Modified),
		strings.Compare(a.Title, b.Title),
		strings.Compare(a.Filename, b.Filename),
	)
}

func truncate(hits []Hit, n int) []Hit {
	if n >= 0 && len(hits) > n {
		return hits[:n]
	}
	return hits
}

// fieldScore matches q against a lower-cased field. exact reports whether
// the whole field equals q.
func fieldScore(q, field string) (score int, exact bool) {
	switch {
	case field == "":
		return 0, false
	case field == q:
		return scoreExact, true
	case strings.HasPrefix(field, q):
		return scorePrefix, false
	case wordPrefix(q, field):
		return scoreWordPrefix, false
	case strings.Contains(field, q):
		return scoreSubstring, false
	}
	return 0, false
}

// filenameScore matches q against the relative filename and its base name,
// keeping the better of the two.
func filenameScore(q, filename string) (score int, exact bool) {
	score, exact = fieldScore(q, filename)
	if base := path.Base(filename); base != filename {
		if bs, bExact := fieldScore(q, base); bs > score {
			return bs, bExact
		}
	}
	return score, exact
}

func wordPrefix(q, field string) bool {
	return slices.ContainsFunc(strings.Fields(field), func(w string) bool {
		return strings.HasPrefix(w, q)
	})
}

// contentScore rewards occurrences of the whole query, then of every word of
// a multi-word query, and finally falls back to a fuzzy match.
func contentScore(q, content string) (int, bool) {
	body := strings.ToLower(content)
	if n := strings.Count(body, q); n > 0 {
		return contentBase + contentPerHit*n, true
	}
	if words := lo.Uniq(strings.Fields(q)); len(words) > 1 {
		total := 0
		for _, w := range words {
			n := strings.Count(body, w)
			if n == 0 {
				total = 0
				break
			}
			total += n
		}
		if total > 0 {
			return contentBase + contentPerHit*total, true
		}
	}
	if s := fuzzyScores(q, titleSource{body})[0]; s >= fuzzyThreshold {
		return s, true
	}
	return 0, false
}

// titleSource adapts a slice of strings to fuzzy.Source.
type titleSource []string

func (s titleSource) String(i int) string { return s[i] }
func (s titleSource) Len() int            { return len(s) }

// fuzzyScores returns a subsequence score per entry of src (0 when q is not a
// subsequence). Each matched character is worth 10, plus 15 when it extends
// a consecutive run or sits at the start. Skipped bytes inside the matched
// span cost 1 each.
func fuzzyScores(q string, src titleSource) []int {
	out := make([]int, src.Len())
	for _, m := range fuzzy.FindFrom(q, src) {
		idx := m.MatchedIndexes
		if len(idx) == 0 {
			continue
		}
		score := 10 * len(idx)
		if idx[0] == 0 {
			score += 15
		}
		for i := 1; i < len(idx); i++ {
			if idx[i] == idx[i-1]+1 {
				score += 15
			}
		}
		score -= (idx[len(idx)-1] - idx[0] + 1) - len(idx)
		out[m.Index] = score
	}
	return out
}
