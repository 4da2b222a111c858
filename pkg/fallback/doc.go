// Package fallback extracts reply candidates from a rendered conversation
// page when the API cannot serve them.
//
// The Extractor drives a Renderer (the chromedp-backed ChromeRenderer in
// production, a scripted fake in tests) through a reveal loop: scroll and
// expand, wait for lazy content to settle, extract raw fragments, resolve
// identities. The loop ends when consecutive steps stop producing new
// candidates, when the candidate limit is hit, or when the step budget runs
// out.
//
// Browser-sourced data is best-effort by nature. Fragments without a
// resolvable handle are dropped here; everything that leaves this package
// carries a usable identity. A browser that cannot start surfaces as a
// RenderUnavailable error, which callers must treat as "fallback skipped",
// never as "zero replies".
package fallback
