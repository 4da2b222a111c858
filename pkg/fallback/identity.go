package fallback

import (
	"net/url"
	"regexp"
	"strings"

	"xengage/pkg/models"
)

// Strategy attempts to resolve one raw fragment into a user identity.
type Strategy func(models.RawFragment) (models.UserIdentity, bool)

// Resolver turns raw DOM fragments into identities. The strategy list is
// fixed at construction and tried in order; the first success wins. A
// fragment no strategy accepts has no usable identity and is discarded by
// the extractor.
type Resolver struct {
	strategies []Strategy
}

// NewResolver creates a resolver with the default strategy order: the
// structured handle the page delivered alongside a reply id, then a handle
// derived from a profile link, then the first @handle-looking token in the
// fragment's own text.
func NewResolver() *Resolver {
	return &Resolver{
		strategies: []Strategy{
			structuredIdentity,
			profileURLIdentity,
			mentionIdentity,
		},
	}
}

// Resolve tries each strategy in order.
func (r *Resolver) Resolve(frag models.RawFragment) (models.UserIdentity, bool) {
	for _, strategy := range r.strategies {
		if identity, ok := strategy(frag); ok {
			return identity, true
		}
	}
	return models.UserIdentity{}, false
}

// handlePattern is the platform's handle alphabet: word characters, at most
// fifteen of them.
var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// mentionPattern finds an @handle token that is not part of a larger word,
// so email addresses in reply text do not match.
var mentionPattern = regexp.MustCompile(`(?:^|[^A-Za-z0-9_])@([A-Za-z0-9_]{1,15})`)

// reservedPaths are single-segment x.com paths that are never profiles.
var reservedPaths = map[string]struct{}{
	"i": {}, "home": {}, "explore": {}, "search": {}, "notifications": {},
	"messages": {}, "compose": {}, "settings": {}, "hashtag": {},
	"intent": {}, "login": {}, "share": {},
}

// structuredIdentity accepts fragments the page delivered fully formed:
// a reply id plus a well-formed handle.
func structuredIdentity(f models.RawFragment) (models.UserIdentity, bool) {
	if f.SourceID == "" {
		return models.UserIdentity{}, false
	}
	handle := bareHandle(f.Handle)
	if !handlePattern.MatchString(handle) {
		return models.UserIdentity{}, false
	}
	return identityFor(handle, f.DisplayName), true
}

// profileURLIdentity derives the handle from a profile link. Only
// single-segment paths on the platform's own hosts qualify; status links and
// reserved routes never resolve.
func profileURLIdentity(f models.RawFragment) (models.UserIdentity, bool) {
	handle := handleFromProfileURL(f.ProfileURL)
	if handle == "" {
		return models.UserIdentity{}, false
	}
	return identityFor(handle, f.DisplayName), true
}

// mentionIdentity is the last resort: a bare handle left in the handle field
// without a reply id, or the first @handle token in the fragment text.
func mentionIdentity(f models.RawFragment) (models.UserIdentity, bool) {
	if handle := bareHandle(f.Handle); handlePattern.MatchString(handle) {
		return identityFor(handle, f.DisplayName), true
	}
	if m := mentionPattern.FindStringSubmatch(f.Text); m != nil {
		return identityFor(m[1], f.DisplayName), true
	}
	return models.UserIdentity{}, false
}

func handleFromProfileURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Host != "" {
		host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
		host = strings.TrimPrefix(host, "mobile.")
		if host != "x.com" && host != "twitter.com" {
			return ""
		}
	}

	path := strings.Trim(u.Path, "/")
	if path == "" || strings.Contains(path, "/") {
		return ""
	}
	if _, reserved := reservedPaths[strings.ToLower(path)]; reserved {
		return ""
	}
	if !handlePattern.MatchString(path) {
		return ""
	}
	return path
}

func bareHandle(h string) string {
	return strings.TrimPrefix(strings.TrimSpace(h), "@")
}

func identityFor(handle, displayName string) models.UserIdentity {
	return models.UserIdentity{
		Handle:      handle,
		DisplayName: strings.TrimSpace(displayName),
	}
}
