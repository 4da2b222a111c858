package collector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xengage/pkg/models"
)

func reply(handle, text, sourceID string) models.InteractionRecord {
	return models.InteractionRecord{
		Identity:      models.UserIdentity{Handle: handle, DisplayName: handle},
		Kind:          models.KindReply,
		ReplyText:     text,
		ReplySourceID: sourceID,
	}
}

func TestMergeBySourceID(t *testing.T) {
	primary := []models.InteractionRecord{
		reply("alice", "first reply", "501"),
		reply("bob", "second reply", "502"),
	}
	secondary := []models.InteractionRecord{
		reply("alice_rendered", "different text entirely", "501"), // same id, noisy fields
		reply("carol", "a new voice", "503"),
	}

	merged := Merge(primary, secondary)

	require.Len(t, merged, 3)
	// Primary wins: the id-501 record keeps its API fields.
	assert.Equal(t, "alice", merged[0].Identity.Handle)
	assert.Equal(t, "first reply", merged[0].ReplyText)
	assert.Equal(t, "bob", merged[1].Identity.Handle)
	assert.Equal(t, "carol", merged[2].Identity.Handle)
}

func TestMergeByHandleAndTextPrefix(t *testing.T) {
	primary := []models.InteractionRecord{
		reply("alice", "great thread, thanks for sharing", "501"),
	}
	secondary := []models.InteractionRecord{
		// Browser-sourced: no id, same handle (different case), same text.
		reply("Alice", "great thread, thanks for sharing", ""),
		// Same handle, different text: a distinct reply.
		reply("alice", "completely different remark", ""),
	}

	merged := Merge(primary, secondary)

	require.Len(t, merged, 2)
	assert.Equal(t, "501", merged[0].ReplySourceID)
	assert.Equal(t, "completely different remark", merged[1].ReplyText)
}

func TestMergeTextPrefixBoundary(t *testing.T) {
	base := strings.Repeat("x", textKeyLen)

	t.Run("divergence past the prefix is invisible", func(t *testing.T) {
		primary := []models.InteractionRecord{reply("dana", base+" trailing one", "")}
		secondary := []models.InteractionRecord{reply("dana", base+" trailing two", "")}

		merged := Merge(primary, secondary)
		assert.Len(t, merged, 1, "records differing only after %d characters are the same record", textKeyLen)
	})

	t.Run("divergence inside the prefix separates", func(t *testing.T) {
		primary := []models.InteractionRecord{reply("dana", "short one", "")}
		secondary := []models.InteractionRecord{reply("dana", "short two", "")}

		merged := Merge(primary, secondary)
		assert.Len(t, merged, 2)
	})
}

func TestMergeDistinctIDsNeverMatch(t *testing.T) {
	// Same handle and identical text, but both sides carry (different) ids:
	// two real replies saying the same thing.
	primary := []models.InteractionRecord{reply("erin", "me too", "601")}
	secondary := []models.InteractionRecord{reply("erin", "me too", "602")}

	merged := Merge(primary, secondary)
	assert.Len(t, merged, 2)
}

func TestMergeProperties(t *testing.T) {
	a := []models.InteractionRecord{
		reply("alice", "one", "1"),
		reply("bob", "two", "2"),
		reply("carol", "three", ""),
	}
	b := []models.InteractionRecord{
		reply("bob", "two", "2"),
		reply("dana", "four", ""),
		reply("dana", "four", ""), // duplicate within one input
	}

	t.Run("size bound", func(t *testing.T) {
		merged := Merge(a, b)
		assert.LessOrEqual(t, len(merged), len(a)+len(b))
	})

	t.Run("primary passes through unchanged and in order", func(t *testing.T) {
		merged := Merge(a, b)
		require.GreaterOrEqual(t, len(merged), len(a))
		for i, rec := range a {
			assert.Equal(t, rec, merged[i])
		}
	})

	t.Run("merge with empty secondary is identity", func(t *testing.T) {
		merged := Merge(a, nil)
		assert.Equal(t, a, merged)
	})

	t.Run("merge with empty primary keeps secondary duplicates", func(t *testing.T) {
		// Dedup works across the two inputs only, never within one input.
		merged := Merge(nil, b)
		assert.Equal(t, b, merged)
		assert.Len(t, merged, 3)
	})

	t.Run("inputs are not mutated", func(t *testing.T) {
		aCopy := append([]models.InteractionRecord(nil), a...)
		bCopy := append([]models.InteractionRecord(nil), b...)

		_ = Merge(a, b)

		assert.Equal(t, aCopy, a)
		assert.Equal(t, bCopy, b)
	})
}
