package collector

import "xengage/pkg/models"

// textKeyLen is how much reply text participates in identity matching when a
// record has no source id. Near-duplicates that only diverge after this many
// characters are treated as the same record. Approximate on purpose; the
// browser source truncates long replies, so full-text equality would miss
// genuine duplicates.
const textKeyLen = 50

// Merge combines API records (primary) with fallback records (secondary).
// Two records match when they share a non-empty ReplySourceID, or, when
// either side lacks the id, when the handles match case-insensitively and
// the reply text agrees over its first textKeyLen characters.
//
// Primary always wins: the output is primary in its original order, then the
// net-new secondary records in theirs. Matching happens only across the two
// inputs; duplicates inside one input pass through untouched. Inputs are
// never mutated.
func Merge(primary, secondary []models.InteractionRecord) []models.InteractionRecord {
	merged := make([]models.InteractionRecord, 0, len(primary)+len(secondary))
	merged = append(merged, primary...)

	for _, rec := range secondary {
		if matchesAny(primary, rec) {
			continue
		}
		merged = append(merged, rec)
	}
	return merged
}

func matchesAny(records []models.InteractionRecord, rec models.InteractionRecord) bool {
	for _, other := range records {
		if sameRecord(other, rec) {
			return true
		}
	}
	return false
}

// sameRecord applies the cross-source identity rule.
func sameRecord(a, b models.InteractionRecord) bool {
	if a.ReplySourceID != "" && a.ReplySourceID == b.ReplySourceID {
		return true
	}
	// Both carry ids and they differ: distinct records, whatever the text.
	if a.ReplySourceID != "" && b.ReplySourceID != "" {
		return false
	}
	return models.SameHandle(a.Identity.Handle, b.Identity.Handle) &&
		textKey(a.ReplyText) == textKey(b.ReplyText)
}

// textKey folds reply text down to its comparison prefix.
func textKey(text string) string {
	runes := []rune(text)
	if len(runes) > textKeyLen {
		runes = runes[:textKeyLen]
	}
	return string(runes)
}
