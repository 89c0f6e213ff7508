package ranker

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRankTitleBeforeBody(t *testing.T) {
	docs := []Doc{
		{Filename: "body.md", Content: "# Notes\nsay hello to everyone", Modified: 300},
		{Filename: "hw.md", Content: "# Hello World", Modified: 200},
		{Filename: "h.md", Content: "# Hello", Modified: 100},
	}
	hits := Rank("hello", docs, 10)

	if diff := cmp.Diff([]string{"h.md", "hw.md", "body.md"}, Filenames(hits)); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	wantTiers := []Tier{TierTitleExact, TierTitlePrefix, TierContent}
	for i, h := range hits {
		if h.Tier != wantTiers[i] {
			t.Errorf("%s tier = %v, want %v", h.Filename, h.Tier, wantTiers[i])
		}
	}
}

func TestRankTitleExactBeatsContentMatch(t *testing.T) {
	docs := []Doc{
		{Filename: "a.md", Content: "# Hello", Modified: 1},
		{Filename: "b.md", Content: "world hello", Modified: 2},
	}
	got := Filenames(Rank("hello", docs, 10))
	if diff := cmp.Diff([]string{"a.md", "b.md"}, got); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestRankTieBreaks(t *testing.T) {
	docs := []Doc{
		{Filename: "z.md", Content: "# Same", Modified: 5},
		{Filename: "b.md", Content: "# Same", Modified: 9},
		{Filename: "a.md", Content: "# Same", Modified: 5},
	}
	got := Filenames(Rank("same", docs, 10))
	if diff := cmp.Diff([]string{"b.md", "a.md", "z.md"}, got); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestRankScoreWithinTier(t *testing.T) {
	docs := []Doc{
		{Filename: "sub.md", Content: "# Subproject", Modified: 3},
		{Filename: "word.md", Content: "# My Project Plan", Modified: 2},
		{Filename: "pre.md", Content: "# Projects", Modified: 1},
	}
	hits := Rank("project", docs, 10)
	if diff := cmp.Diff([]string{"pre.md", "word.md", "sub.md"}, Filenames(hits)); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	for _, h := range hits {
		if h.Tier != TierTitlePrefix {
			t.Errorf("%s tier = %v", h.Filename, h.Tier)
		}
	}
}

func TestRankFilenameMatch(t *testing.T) {
	docs := []Doc{{Filename: "meeting-notes.md", Content: "agenda items"}}
	hits := Rank("meeting", docs, 10)
	if len(hits) != 1 {
		t.Fatalf("hits = %+v", hits)
	}
	if hits[0].Tier != TierTitlePrefix || hits[0].Score != scorePrefix+bonusFilename {
		t.Errorf("hit = %+v", hits[0])
	}
}

func TestRankFilenameWithExtension(t *testing.T) {
	docs := []Doc{
		{Filename: "a.md", Content: "# Hello", Modified: 1},
		{Filename: "b.md", Content: "world hello", Modified: 2},
	}
	hits := Rank("A.md", docs, 10)
	if len(hits) != 1 || hits[0].Filename != "a.md" {
		t.Fatalf("hits = %+v", hits)
	}
	if hits[0].Tier != TierTitleExact || hits[0].Score != scoreExact+bonusFilename {
		t.Errorf("hit = %+v", hits[0])
	}
}

func TestRankFilenameFolderSegment(t *testing.T) {
	docs := []Doc{
		{Filename: "projects/notes/plan.md", Content: "# Plan"},
		{Filename: "other.md", Content: "# Other"},
	}
	hits := Rank("notes", docs, 10)
	if len(hits) != 1 || hits[0].Filename != "projects/notes/plan.md" {
		t.Fatalf("hits = %+v", hits)
	}
	if hits[0].Tier != TierTitlePrefix || hits[0].Score != scoreSubstring+bonusFilename {
		t.Errorf("hit = %+v", hits[0])
	}
}

func TestRankFilenameBaseNameExact(t *testing.T) {
	docs := []Doc{{Filename: "projects/plan.md", Content: "agenda"}}
	hits := Rank("plan.md", docs, 10)
	if len(hits) != 1 || hits[0].Tier != TierTitleExact {
		t.Fatalf("hits = %+v", hits)
	}
}

func TestRankWordPrefixSplitsOnWhitespace(t *testing.T) {
	docs := []Doc{{Filename: "x.md", Content: "# say -hello there"}}
	hits := Rank("-hello", docs, 10)
	if len(hits) != 1 {
		t.Fatalf("hits = %+v", hits)
	}
	if hits[0].Score != scoreWordPrefix+bonusTitle {
		t.Errorf("score = %d, want %d", hits[0].Score, scoreWordPrefix+bonusTitle)
	}
}

func TestRankWordPrefixIgnoresPunctuationInsideWords(t *testing.T) {
	docs := []Doc{{Filename: "x.md", Content: "# foo-bar baz"}}
	hits := Rank("bar", docs, 10)
	if len(hits) != 1 || hits[0].Score != scoreSubstring+bonusTitle {
		t.Fatalf("hits = %+v", hits)
	}
}

func TestRankTitleOutscoresFilename(t *testing.T) {
	docs := []Doc{
		{Filename: "plan.md", Content: "unrelated text"},
		{Filename: "other.md", Content: "# Plan"},
	}
	got := Filenames(Rank("plan", docs, 10))
	if diff := cmp.Diff([]string{"other.md", "plan.md"}, got); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestRankFuzzyTitle(t *testing.T) {
	docs := []Doc{
		{Filename: "x.md", Content: "# Hello World"},
		{Filename: "y.md", Content: "# Unrelated"},
	}
	hits := Rank("helo", docs, 10)
	if len(hits) != 1 || hits[0].Filename != "x.md" {
		t.Fatalf("hits = %+v", hits)
	}
	if hits[0].Tier != TierTitleFuzzy || hits[0].Score < fuzzyThreshold+fuzzyOffset {
		t.Errorf("hit = %+v", hits[0])
	}
}

func TestRankContentOccurrences(t *testing.T) {
	docs := []Doc{
		{Filename: "once.md", Content: "# A\nkiwi", Modified: 9},
		{Filename: "thrice.md", Content: "# B\nkiwi kiwi kiwi", Modified: 1},
	}
	hits := Rank("kiwi", docs, 10)
	if diff := cmp.Diff([]string{"thrice.md", "once.md"}, Filenames(hits)); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	if hits[0].Score != contentBase+3*contentPerHit {
		t.Errorf("score = %d", hits[0].Score)
	}
}

func TestRankMultiWordContent(t *testing.T) {
	docs := []Doc{{Filename: "g.md", Content: "# Notes\ngolang has good concurrency patterns"}}
	hits := Rank("golang patterns", docs, 10)
	if len(hits) != 1 || hits[0].Tier != TierContent {
		t.Errorf("hits = %+v", hits)
	}
}

func TestRankDropsNonMatches(t *testing.T) {
	docs := []Doc{{Filename: "a.md", Content: "# Alpha\nbeta"}}
	if hits := Rank("zzzz", docs, 10); len(hits) != 0 {
		t.Errorf("hits = %+v", hits)
	}
}

func TestRankLimit(t *testing.T) {
	docs := []Doc{
		{Filename: "a.md", Content: "# Item"},
		{Filename: "b.md", Content: "# Item"},
		{Filename: "c.md", Content: "# Item"},
	}
	if hits := Rank("item", docs, 2); len(hits) != 2 {
		t.Errorf("len = %d, want 2", len(hits))
	}
}

func TestRankBlankQueryReturnsRecent(t *testing.T) {
	docs := []Doc{
		{Filename: "old.md", Modified: 1},
		{Filename: "new.md", Modified: 3},
		{Filename: "mid.md", Modified: 2},
	}
	got := Filenames(Rank("   ", docs, 2))
	if diff := cmp.Diff([]string{"new.md", "mid.md"}, got); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestRankIsDeterministic(t *testing.T) {
	docs := []Doc{
		{Filename: "a.md", Content: "# Hello there", Modified: 1},
		{Filename: "b.md", Content: "# Say hello", Modified: 1},
		{Filename: "c.md", Content: "hello hello", Modified: 1},
		{Filename: "d.md", Content: "# Hello", Modified: 1},
	}
	first := Filenames(Rank("hello", docs, 10))
	for range 20 {
		if diff := cmp.Diff(first, Filenames(Rank("hello", docs, 10))); diff != "" {
			t.Fatalf("ranking changed between runs:\n%s", diff)
		}
	}
}
