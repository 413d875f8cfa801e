package leaderboard

import "sort"

// Entry is one scored result row, as delivered by the exam results API.
type Entry struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	TimeTaken int    `json:"timeTaken"` // seconds
}

// RankedEntry is an Entry with its assigned 1-based rank.
type RankedEntry struct {
	Entry
	Rank int `json:"rank"`
}

// Rank sorts entries by score descending, ties broken by timeTaken ascending
// (faster wins), and assigns 1-based ranks in sorted order. The input slice
// is not modified.
func Rank(entries []Entry) []RankedEntry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].TimeTaken < sorted[j].TimeTaken
	})

	ranked := make([]RankedEntry, len(sorted))
	for i, e := range sorted {
		ranked[i] = RankedEntry{Entry: e, Rank: i + 1}
	}
	return ranked
}

// ViewerRank looks the viewer's rank up from an already-ranked list by user
// id, falling back to a name match for rows the backend sent without one.
// Looking it up rather than recomputing means the viewer's rank can never
// disagree with the list.
func ViewerRank(ranked []RankedEntry, userID, name string) (int, bool) {
	for _, e := range ranked {
		if e.UserID != "" && e.UserID == userID {
			return e.Rank, true
		}
	}
	if name == "" {
		return 0, false
	}
	for _, e := range ranked {
		if e.UserID == "" && e.Name == name {
			return e.Rank, true
		}
	}
	return 0, false
}
