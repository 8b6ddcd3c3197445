// Package port defines the interfaces this core expects from its external
// collaborators: the rendering engine, the snapshot store, and navigation
// event consumers. The core never talks to an engine directly.
package port

import "context"

// WebView is one native rendering context owned by the rendering-engine
// collaborator. The core manages its lifecycle but never performs the actual
// fetch or paint.
type WebView interface {
	// LoadURL starts navigating the view to the given URL.
	LoadURL(ctx context.Context, url string) error
	// StopLoading cancels any in-flight load.
	StopLoading()
	// ClearContent resets the view to a blank state so it can be reused.
	ClearContent()
	// SetVisible shows or hides the view.
	SetVisible(visible bool)
	// SetThrottled reduces the view's background resource usage.
	// Implementations decide the actual suspension technique.
	SetThrottled(throttled bool)
	// ApplyContentRules attaches a compiled blocking ruleset, identified by
	// its fingerprint, to the view.
	ApplyContentRules(fingerprint string, rules []byte)
	// RemoveContentRules detaches all blocking rulesets from the view.
	RemoveContentRules()
	// Destroy releases the native context. The view must not be used after.
	Destroy()
}

// WebViewFactory constructs rendering contexts.
// Construction is assumed expensive; failures are surfaced to the caller.
type WebViewFactory interface {
	NewWebView(ctx context.Context) (WebView, error)
}

// NavigationEvents receives load lifecycle notifications from whichever
// collaborator performs real navigation.
type NavigationEvents interface {
	OnLoadStart(tabID string, url string)
	OnLoadFinish(tabID string, url string)
}
