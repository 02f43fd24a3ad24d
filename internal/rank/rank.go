// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank merges duplicate candidates, applies the recency window, and
// produces the stable citation ordering that the rest of the pipeline
// preserves. Given the same candidates and reference year, the output is
// identical across runs.
package rank

import (
	"sort"

	"github.com/pdiddy/litpipe/pkg/types"
)

// Options controls one Process call.
type Options struct {
	// RecencyWindowYears excludes records published before
	// ReferenceYear - RecencyWindowYears. Zero disables the filter.
	RecencyWindowYears int
	// ReferenceYear is the "current year" used by the window.
	ReferenceYear int
}

// Output is the ranked sequence plus counters for run stats.
type Output struct {
	Records           []types.LiteratureRecord
	CandidatesSeen    int
	DuplicatesMerged  int
	ExcludedByRecency int
}

// group collects candidates sharing one fingerprint, in input order.
type group struct {
	firstSeen int
	members   []types.Candidate
	best      types.Candidate
}

// Process deduplicates by fingerprint, drops records outside the recency
// window, and orders the rest by citation count descending, then year
// descending, then first appearance in the input.
func Process(cands []types.Candidate, opts Options) Output {
	out := Output{CandidatesSeen: len(cands)}

	index := make(map[string]int, len(cands)) // fingerprint → groups index
	var groups []group
	for i, c := range cands {
		fp := c.Fingerprint()
		if gi, ok := index[fp]; ok {
			groups[gi].members = append(groups[gi].members, c)
			out.DuplicatesMerged++
			continue
		}
		index[fp] = len(groups)
		groups = append(groups, group{firstSeen: i, members: []types.Candidate{c}})
	}
	for i := range groups {
		groups[i].best = merge(groups[i].members)
	}

	kept := groups[:0]
	for _, g := range groups {
		if excluded(g.best.Year, opts) {
			out.ExcludedByRecency++
			continue
		}
		kept = append(kept, g)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i].best, kept[j].best
		if a.CitationCount != b.CitationCount {
			return a.CitationCount > b.CitationCount
		}
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		return kept[i].firstSeen < kept[j].firstSeen
	})

	out.Records = make([]types.LiteratureRecord, 0, len(kept))
	for _, g := range kept {
		out.Records = append(out.Records, types.NewRecord(g.best))
	}
	return out
}

// excluded reports whether year falls outside the window. An unknown year
// (0) cannot be shown to be recent, so it is excluded whenever a window is
// set.
func excluded(year int, opts Options) bool {
	if opts.RecencyWindowYears <= 0 {
		return false
	}
	return year < opts.ReferenceYear-opts.RecencyWindowYears
}

// merge picks the winner among duplicates and backfills its empty fields
// from the others. The higher citation count wins; on a tie the candidate
// with more populated fields wins; on a further tie the earliest wins. The
// winner is chosen over the original candidates before any backfill, so
// earlier merges cannot inflate a candidate's richness.
func merge(members []types.Candidate) types.Candidate {
	wi := 0
	for i := 1; i < len(members); i++ {
		if beats(members[i], members[wi]) {
			wi = i
		}
	}

	winner := members[wi]
	for i, loser := range members {
		if i != wi {
			winner = backfill(winner, loser)
		}
	}
	return winner
}

func beats(b, a types.Candidate) bool {
	if b.CitationCount != a.CitationCount {
		return b.CitationCount > a.CitationCount
	}
	return richness(b) > richness(a)
}

// backfill copies loser fields into the winner's empty ones and unions
// keywords and links.
func backfill(winner, loser types.Candidate) types.Candidate {
	if winner.DOI == "" {
		winner.DOI = loser.DOI
	}
	if winner.Journal == "" {
		winner.Journal = loser.Journal
	}
	if winner.Year == 0 {
		winner.Year = loser.Year
	}
	if len(winner.Authors) == 0 && len(loser.Authors) > 0 {
		winner.Authors = append([]string(nil), loser.Authors...)
	}
	if winner.Abstract == "" {
		winner.Abstract = loser.Abstract
	}
	if winner.URL == "" {
		winner.URL = loser.URL
	}
	winner.Links = unionLinks(winner.Links, loser.Links)
	if len(loser.Keywords) > 0 {
		winner.Keywords = types.KeywordSet(append(append([]string(nil), winner.Keywords...), loser.Keywords...))
	}
	return winner
}

// richness counts populated optional fields.
func richness(c types.Candidate) int {
	n := 0
	for _, ok := range []bool{
		c.DOI != "",
		c.Journal != "",
		c.Year > 0,
		len(c.Authors) > 0,
		c.Abstract != "",
		c.URL != "",
		len(c.Links) > 0,
		len(c.Keywords) > 0,
	} {
		if ok {
			n++
		}
	}
	return n
}

func unionLinks(a, b []types.Link) []types.Link {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]types.Link, 0, len(a)+len(b))
	for _, l := range append(append([]types.Link(nil), a...), b...) {
		if seen[l.URL] {
			continue
		}
		seen[l.URL] = true
		out = append(out, l)
	}
	return out
}
