package noteservice

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/index"
	"github.com/starford/tessera/internal/ranker"
)

// DefaultSearchLimit is used when a caller passes a non-positive limit.
const DefaultSearchLimit = 20

// Search returns up to limit note names matching query, best first. A blank
// query returns the most recently modified notes.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]string, error) {
	hits, err := s.SearchHits(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return ranker.Filenames(hits), nil
}

// SearchHits is Search with titles, tiers and scores.
func (s *Service) SearchHits(ctx context.Context, query string, limit int) ([]ranker.Hit, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var (
		cands []index.Candidate
		err   error
	)
	if strings.TrimSpace(query) == "" {
		cands, err = s.idx.Recent(ctx, limit)
	} else {
		cands, err = s.idx.Candidates(ctx, query, s.maxCandidates)
	}
	if err != nil {
		if !errors.Is(err, apperr.ErrSearchQuery) {
			s.RebuildAsync("search failed")
		}
		return nil, err
	}

	docs := lo.Map(cands, func(c index.Candidate, _ int) ranker.Doc {
		return ranker.Doc{Filename: c.Filename, Content: c.Content, Modified: c.Modified}
	})
	return ranker.Rank(query, docs, limit), nil
}
