package leaderboard

import (
	"sort"
	"time"
)

// Entry is one participant's aggregated standing within one (group, season),
// prior to rank assignment (spec.md §3, §4.5).
type Entry struct {
	UserID                 string
	GroupID                string
	SeasonID               string
	TotalPoints            int
	ExactScoreCount        int
	WinnerOnlyCount        int
	SettledPredictionCount int
	LastUpdatedAt          time.Time
	// RankCached is the last Rank this entry held the previous time it was
	// written; it is never consulted to compute a fresh Rank, only carried
	// along as the display value callers see before the next recompute
	// (spec.md §3).
	RankCached int
	Rank       int
}

// TieBreak selects the ordering applied among entries with equal
// TotalPoints (spec.md §6: tieBreak.efficiency, tieBreak.headToHead).
type TieBreak struct {
	// Efficiency, when true, breaks ties by fewer SettledPredictionCount
	// first (reward efficient accuracy over volume). When false,
	// SettledPredictionCount is not a ranking key at all; no setting ranks
	// more settled predictions higher.
	Efficiency bool
	// HeadToHead, when true, runs the supplemental head-to-head rerank pass
	// (see Rerank) after the primary sort, for entries still tied.
	HeadToHead bool
}

// Rank produces a dense-ranked, ordered copy of entries per spec.md §4.5:
// totalPoints desc, then exactScoreCount desc, then (if tb.Efficiency)
// settledPredictionCount asc, then userID asc as the final, always-stable
// tie-break. Equal-key entries share a rank; the next distinct key's rank is
// its position, not a skip (dense rank, no gaps).
func Rank(entries []Entry, tb TieBreak) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.ExactScoreCount != b.ExactScoreCount {
			return a.ExactScoreCount > b.ExactScoreCount
		}
		if tb.Efficiency && a.SettledPredictionCount != b.SettledPredictionCount {
			return a.SettledPredictionCount < b.SettledPredictionCount
		}
		return a.UserID < b.UserID
	})

	rank := 0
	for i := range out {
		if i == 0 || !sameKey(out[i-1], out[i], tb) {
			rank++
		}
		out[i].Rank = rank
	}
	return out
}

// sameKey reports whether a and b sit in the same rank bucket: equal on
// every key that precedes userID in Rank's ordering. userID itself is a
// pure tie-break for display order, never a rank-distinguishing key, so two
// entries with identical points/accuracy (and, if enabled, identical
// efficiency) always share a rank.
func sameKey(a, b Entry, tb TieBreak) bool {
	if a.TotalPoints != b.TotalPoints || a.ExactScoreCount != b.ExactScoreCount {
		return false
	}
	if tb.Efficiency && a.SettledPredictionCount != b.SettledPredictionCount {
		return false
	}
	return true
}

// ExactMatchWins counts, for a pair of tied users, how many matches each
// settled with an exact-score outcome while the other did not — the input
// to the optional head-to-head rerank stage. Keyed "userA|userB" with
// userA < userB lexically; callers build it from Settlement history before
// calling Rerank.
type ExactMatchWins map[string][2]int

// Rerank applies the supplemental head-to-head pass (spec.md §3 Open
// Questions: off by default, opt-in via tieBreak.headToHead) within each
// rank bucket Rank produced: entries still tied after the primary ordering
// are reordered by pairwise exact-score win count, highest first, holding
// the bucket's rank value fixed (a rerank never changes who is "rank 3", only
// which of the tied users appears first within that bucket).
func Rerank(ranked []Entry, wins ExactMatchWins) []Entry {
	out := make([]Entry, len(ranked))
	copy(out, ranked)

	start := 0
	for start < len(out) {
		end := start + 1
		for end < len(out) && out[end].Rank == out[start].Rank {
			end++
		}
		if end-start > 1 {
			bucket := out[start:end]
			sort.SliceStable(bucket, func(i, j int) bool {
				return pairWins(bucket[i].UserID, bucket[j].UserID, wins) > 0
			})
		}
		start = end
	}
	return out
}

func pairWins(userA, userB string, wins ExactMatchWins) int {
	if userA <= userB {
		w := wins[userA+"|"+userB]
		return w[0] - w[1]
	}
	w := wins[userB+"|"+userA]
	return w[1] - w[0]
}
