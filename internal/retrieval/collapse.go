// Package retrieval answers questions against the vector store: embed the
// question, over-fetch candidates, collapse chunks back to messages, rank,
// and hand the winners to the answer drafter.
package retrieval

import (
	"sort"

	"github.com/askchat/askchat-ai-backend/internal/store"
)

// Collapse reduces a raw hit list to one best hit per distinct message.
// Chunks of one message occupy separate store entries, so the raw top-N can
// contain the same message several times. Grouping is by (chatId, messageId);
// within a group the lowest distance wins, and on exact ties the first-seen
// hit is kept (comparison is strict less-than). Output preserves first-seen
// order of the groups.
func Collapse(hits []store.Hit) []store.Hit {
	type key struct{ chatID, messageID string }
	best := make(map[key]int, len(hits))
	collapsed := make([]store.Hit, 0, len(hits))
	for _, h := range hits {
		k := key{h.Meta.ChatID, h.Meta.MessageID}
		if i, seen := best[k]; seen {
			if h.Distance < collapsed[i].Distance {
				collapsed[i] = h
			}
			continue
		}
		best[k] = len(collapsed)
		collapsed = append(collapsed, h)
	}
	return collapsed
}

// Rank sorts hits ascending by distance and truncates to topK. The sort is
// stable, so equal distances keep their incoming order.
func Rank(hits []store.Hit, topK int) []store.Hit {
	if topK <= 0 {
		return nil
	}
	ranked := make([]store.Hit, len(hits))
	copy(ranked, hits)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Distance < ranked[j].Distance })
	if topK > len(ranked) {
		topK = len(ranked)
	}
	return ranked[:topK]
}
