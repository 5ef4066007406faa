// Package analyze provides the stateless scoring heuristics consumed by
// the self-improvement engine: content similarity, type promotion
// scoring, keyword extraction, and staleness checks.
package analyze

import (
	"regexp"
	"strings"
	"time"

	"github.com/rcliao/context-keeper/internal/model"
	"github.com/rcliao/context-keeper/internal/schema"
)

const (
	// DuplicateThreshold is the Jaccard similarity above which two
	// same-typed entries count as near-duplicates.
	DuplicateThreshold = 0.8

	// MaxDuplicatePairs caps the duplicate scan; pairs past the cap are
	// silently ignored. Bounds the O(n^2) scan on large stores.
	MaxDuplicatePairs = 10

	// PromotionThreshold is the minimum type-match score that makes an
	// untyped entry promotable.
	PromotionThreshold = 0.4

	// MaxPromotionCandidates caps the promotion scan.
	MaxPromotionCandidates = 20

	// StaleAfterDays is the update-age beyond which an unread-type entry
	// qualifies for archival.
	StaleAfterDays = 180

	// MaxKeywords is how many extracted keywords become tags.
	MaxKeywords = 5
)

// Similarity computes Jaccard similarity of the lower-cased
// whitespace-tokenized word sets of two texts. Empty union yields 0.
func Similarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)

	union := len(setB)
	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = true
	}
	return set
}

// DuplicatePairs scans non-archived entries pairwise in index order
// (i<j) and returns pairs with equal declared type and similarity above
// the threshold, capped at MaxDuplicatePairs.
func DuplicatePairs(entries []model.ContextEntry) []model.DuplicatePair {
	var pairs []model.DuplicatePair
	for i := 0; i < len(entries); i++ {
		if entries[i].Archived {
			continue
		}
		for j := i + 1; j < len(entries); j++ {
			if entries[j].Archived || entries[i].Type != entries[j].Type {
				continue
			}
			sim := Similarity(entries[i].Content, entries[j].Content)
			if sim > DuplicateThreshold {
				pairs = append(pairs, model.DuplicatePair{
					AID:        entries[i].ID,
					BID:        entries[j].ID,
					Similarity: sim,
				})
				if len(pairs) >= MaxDuplicatePairs {
					return pairs
				}
			}
		}
	}
	return pairs
}

// PromotionCandidates scores untyped, non-archived entries against the
// schema's declared types and returns those whose best match reaches
// the threshold, capped at MaxPromotionCandidates. Ties keep the first
// type in schema order.
func PromotionCandidates(entries []model.ContextEntry, types []schema.Type) []model.PromotionCandidate {
	var candidates []model.PromotionCandidate
	for _, e := range entries {
		if e.Archived || e.Type != "" {
			continue
		}
		bestType := ""
		bestScore := 0.0
		content := strings.ToLower(e.Content)
		for _, t := range types {
			score := typeMatchScore(content, t.Description)
			if score > bestScore {
				bestScore = score
				bestType = t.Name
			}
		}
		if bestScore >= PromotionThreshold {
			candidates = append(candidates, model.PromotionCandidate{
				EntryID: e.ID,
				Type:    bestType,
				Score:   bestScore,
			})
			if len(candidates) >= MaxPromotionCandidates {
				break
			}
		}
	}
	return candidates
}

// typeMatchScore tokenizes the description into words longer than 4
// characters and returns the fraction appearing as substrings of the
// lower-cased content.
func typeMatchScore(content, description string) float64 {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(description)) {
		if len(w) > 4 {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return 0
	}
	matches := 0
	for _, w := range words {
		if strings.Contains(content, w) {
			matches++
		}
	}
	return float64(matches) / float64(len(words))
}

var nonWord = regexp.MustCompile(`\W+`)

var stopWords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"will": true, "your": true, "about": true, "what": true, "when": true,
	"where": true, "which": true, "their": true, "would": true, "there": true,
	"been": true, "were": true, "they": true, "them": true, "then": true,
	"than": true, "into": true, "over": true, "some": true, "just": true,
	"also": true, "very": true, "because": true, "should": true, "could": true,
}

// Keywords lower-cases the text, splits on non-word characters, drops
// stop words and short tokens, and keeps the first MaxKeywords in
// original order. Used to auto-populate tags for untagged entries.
func Keywords(text string) []string {
	var keywords []string
	for _, w := range nonWord.Split(strings.ToLower(text), -1) {
		if len(w) <= 3 || stopWords[w] {
			continue
		}
		keywords = append(keywords, w)
		if len(keywords) >= MaxKeywords {
			break
		}
	}
	return keywords
}

// IsStale reports whether an entry qualifies for archival: its last
// update is more than StaleAfterDays away from now, and its declared
// type has zero recorded reads.
func IsStale(e model.ContextEntry, now time.Time, readsByType map[string]int) bool {
	days := now.Sub(e.UpdatedAt).Hours() / 24
	if days < 0 {
		days = -days
	}
	return days > StaleAfterDays && readsByType[e.Type] == 0
}
