package fallback

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	errs "xengage/pkg/errors"
	"xengage/pkg/logger"
	"xengage/pkg/models"
)

// DefaultUserAgent is a realistic Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultSessionTimeout bounds one whole browser session.
const DefaultSessionTimeout = 5 * time.Minute

// ChromeOptions configure a browser session.
type ChromeOptions struct {
	// Headless runs Chrome without a window. Headed mode is noticeably less
	// likely to trip bot detection.
	Headless bool

	// UserAgent overrides the default realistic agent string.
	UserAgent string

	// Cookies are injected before navigation. Without a session cookie the
	// conversation page shows only a teaser of the replies.
	Cookies []*network.Cookie

	// ExecPath points at a specific Chrome binary. Empty lets chromedp find
	// one on PATH.
	ExecPath string

	// Timeout bounds the whole session; zero means DefaultSessionTimeout.
	Timeout time.Duration
}

// ChromeRenderer drives a Chrome instance over one conversation page. It is
// single-use: Open once, Reveal/Extract repeatedly, Close once.
type ChromeRenderer struct {
	opts   ChromeOptions
	logger logger.Logger

	postID  string
	ctx     context.Context
	cancels []context.CancelFunc
}

// NewChromeRenderer creates a renderer. The browser process starts on Open,
// not here.
func NewChromeRenderer(opts ChromeOptions, log logger.Logger) *ChromeRenderer {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSessionTimeout
	}
	return &ChromeRenderer{opts: opts, logger: log}
}

// allocatorOptions returns chromedp allocator options with anti-bot-detection
// measures. The blink feature flag matters most: it keeps
// navigator.webdriver false, which is the first thing X checks.
func allocatorOptions(o ChromeOptions) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(o.UserAgent),
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	if o.Headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	return opts
}

// Open starts the browser, injects cookies and navigates to the post. Any
// failure here means the fallback cannot run at all, so everything is
// reported as RenderUnavailable.
func (r *ChromeRenderer) Open(ctx context.Context, postURL string) error {
	if r.ctx != nil {
		return errs.RenderUnavailable("renderer session already open")
	}
	r.postID = postIDFromURL(postURL)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(r.opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	browserCtx, timeoutCancel := context.WithTimeout(browserCtx, r.opts.Timeout)
	r.ctx = browserCtx
	r.cancels = []context.CancelFunc{timeoutCancel, browserCancel, allocCancel}

	if len(r.opts.Cookies) > 0 {
		if err := r.injectCookies(); err != nil {
			r.Close()
			return errs.RenderUnavailable("injecting session cookies: %v", err)
		}
	}

	err := chromedp.Run(r.ctx,
		chromedp.Navigate(postURL),
		chromedp.WaitVisible(ConversationContainer, chromedp.ByQuery),
	)
	if err != nil {
		r.Close()
		return errs.RenderUnavailable("loading %s: %v", postURL, err)
	}

	r.logger.DebugWithFields("conversation page loaded", map[string]interface{}{
		"post_url": postURL,
		"headless": r.opts.Headless,
	})
	return nil
}

// injectCookies sets session cookies in the browser before navigation.
func (r *ChromeRenderer) injectCookies() error {
	return chromedp.Run(r.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range r.opts.Cookies {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithSameSite(c.SameSite).
				Do(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	}))
}

// Reveal scrolls to the bottom of the conversation and expands any "show
// more replies" cells that appeared.
func (r *ChromeRenderer) Reveal(ctx context.Context) error {
	if r.ctx == nil {
		return errs.RenderUnavailable("renderer session not open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var clicked int
	if err := chromedp.Run(r.ctx, chromedp.Evaluate(revealJS, &clicked)); err != nil {
		return fmt.Errorf("reveal action: %w", err)
	}
	if clicked > 0 {
		r.logger.DebugWithFields("expanded hidden replies", map[string]interface{}{
			"buttons": clicked,
		})
	}
	return nil
}

// Extract reads every reply article currently in the DOM. The root post
// matches the same selectors, so it is filtered by its status id; the list
// is virtualized and the root may already have scrolled out, which is why
// position can not be used.
func (r *ChromeRenderer) Extract(ctx context.Context) ([]models.RawFragment, error) {
	if r.ctx == nil {
		return nil, errs.RenderUnavailable("renderer session not open")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var fragments []models.RawFragment
	js := fmt.Sprintf(extractJS, r.postID)
	if err := chromedp.Run(r.ctx, chromedp.Evaluate(js, &fragments)); err != nil {
		return nil, fmt.Errorf("extracting reply fragments: %w", err)
	}
	return fragments, nil
}

// Close tears the browser session down. Safe to call more than once.
func (r *ChromeRenderer) Close() error {
	for _, cancel := range r.cancels {
		cancel()
	}
	r.cancels = nil
	r.ctx = nil
	return nil
}

var statusIDPattern = regexp.MustCompile(`/status/(\d+)`)

func postIDFromURL(postURL string) string {
	m := statusIDPattern.FindStringSubmatch(postURL)
	if m == nil {
		return ""
	}
	return m[1]
}

const revealJS = `
(function() {
	window.scrollTo(0, document.body.scrollHeight);
	let clicked = 0;
	document.querySelectorAll('` + ShowMoreButton + `').forEach(el => {
		const label = (el.textContent || '').toLowerCase();
		if (label.includes('show') && (label.includes('repl') || label.includes('more'))) {
			el.click();
			clicked++;
		}
	});
	return clicked;
})()
`

// extractJS pulls every visible reply as a raw fragment. Every field is
// best-effort; identity resolution decides later what is usable.
const extractJS = `
(function() {
	const rootId = "%s";
	const results = [];

	document.querySelectorAll('article[data-testid="tweet"]').forEach(el => {
		try {
			const statusLink = el.querySelector('a[href*="/status/"]');
			const match = statusLink ? statusLink.href.match(/status\/(\d+)/) : null;
			const sourceId = match ? match[1] : '';
			if (rootId && sourceId === rootId) return;

			let handle = '';
			let profileUrl = '';
			let displayName = '';
			const userName = el.querySelector('[data-testid="User-Name"]');
			if (userName) {
				const link = userName.querySelector('a[href^="/"]');
				if (link) {
					handle = (link.getAttribute('href') || '').replace('/', '');
					profileUrl = link.href || '';
				}
				const nameSpan = userName.querySelector('span');
				displayName = nameSpan ? nameSpan.textContent : '';
			}

			const textEl = el.querySelector('[data-testid="tweetText"]');
			const text = textEl ? textEl.textContent : '';

			const timeEl = el.querySelector('time');
			const timestamp = timeEl ? (timeEl.getAttribute('datetime') || '') : '';

			results.push({
				source_id: sourceId,
				handle: handle,
				display_name: displayName,
				profile_url: profileUrl,
				text: text,
				timestamp: timestamp
			});
		} catch (e) {
			console.error('fragment extraction failed:', e);
		}
	});

	return results;
})()
`
