package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xengage/pkg/models"
)

func TestResolverStructured(t *testing.T) {
	r := NewResolver()

	identity, ok := r.Resolve(models.RawFragment{
		SourceID:    "501",
		Handle:      "@Alice_1",
		DisplayName: " Alice ",
	})

	require.True(t, ok)
	assert.Equal(t, "Alice_1", identity.Handle)
	assert.Equal(t, "Alice", identity.DisplayName)
	assert.Empty(t, identity.PlatformUserID, "browser fragments never carry a platform user id")
}

func TestResolverProfileURL(t *testing.T) {
	r := NewResolver()

	tests := []struct {
		name       string
		profileURL string
		wantHandle string
		wantOK     bool
	}{
		{"absolute x.com", "https://x.com/bob", "bob", true},
		{"relative path", "/carol", "carol", true},
		{"legacy host", "https://twitter.com/Dave", "Dave", true},
		{"mobile host", "https://mobile.twitter.com/erin", "erin", true},
		{"status link is not a profile", "https://x.com/alice/status/1001", "", false},
		{"reserved route", "https://x.com/i", "", false},
		{"foreign host", "https://example.com/eve", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, ok := r.Resolve(models.RawFragment{ProfileURL: tt.profileURL})
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantHandle, identity.Handle)
			}
		})
	}
}

func TestResolverMention(t *testing.T) {
	r := NewResolver()

	t.Run("bare handle field without reply id", func(t *testing.T) {
		identity, ok := r.Resolve(models.RawFragment{Handle: "dave"})
		require.True(t, ok)
		assert.Equal(t, "dave", identity.Handle)
	})

	t.Run("mention token in text", func(t *testing.T) {
		identity, ok := r.Resolve(models.RawFragment{Text: "reposting @carol because this is great"})
		require.True(t, ok)
		assert.Equal(t, "carol", identity.Handle)
	})

	t.Run("mention at start of text", func(t *testing.T) {
		identity, ok := r.Resolve(models.RawFragment{Text: "@frank thanks!"})
		require.True(t, ok)
		assert.Equal(t, "frank", identity.Handle)
	})

	t.Run("email address in text is not a mention", func(t *testing.T) {
		_, ok := r.Resolve(models.RawFragment{Text: "reach me at frank@example.com"})
		assert.False(t, ok)
	})

	t.Run("display name junk in handle field", func(t *testing.T) {
		_, ok := r.Resolve(models.RawFragment{Handle: "Alice Smith"})
		assert.False(t, ok)
	})
}

func TestResolverPriority(t *testing.T) {
	r := NewResolver()

	// Structured beats the profile URL when both could resolve.
	identity, ok := r.Resolve(models.RawFragment{
		SourceID:   "501",
		Handle:     "alice",
		ProfileURL: "https://x.com/someoneelse",
	})
	require.True(t, ok)
	assert.Equal(t, "alice", identity.Handle)

	// Without a reply id the handle field is only the mention fallback, so
	// the profile URL wins first.
	identity, ok = r.Resolve(models.RawFragment{
		Handle:     "alice",
		ProfileURL: "https://x.com/frank",
	})
	require.True(t, ok)
	assert.Equal(t, "frank", identity.Handle)
}

func TestResolverUnresolvable(t *testing.T) {
	r := NewResolver()

	_, ok := r.Resolve(models.RawFragment{
		DisplayName: "Somebody",
		Text:        "no usable identity in here",
		Timestamp:   "2026-08-20T12:00:00Z",
	})
	assert.False(t, ok)
}

func TestHandleFromProfileURLTrimsDecorations(t *testing.T) {
	assert.Equal(t, "alice", handleFromProfileURL(" https://www.x.com/alice "))
	assert.Equal(t, "alice", handleFromProfileURL("https://x.com/alice?lang=en"))
	assert.Equal(t, "", handleFromProfileURL("https://x.com/alice/with/likes"))
}
