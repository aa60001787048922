package core

import "errors"

// Resolution and provider failure taxonomy. Handlers map these to structured
// responses; raw error text never reaches a client.
var (
	// ErrUnsupportedSource means no adapter, fallbacks included, applies to
	// the URL. Unreachable while the generic fallback tail is registered.
	ErrUnsupportedSource = errors.New("unsupported source")

	// ErrFetchFailed means every adapter candidate was exhausted.
	ErrFetchFailed = errors.New("could not retrieve content from any source")

	// ErrContentTooLarge means a streaming fetch exceeded its byte cap.
	ErrContentTooLarge = errors.New("content exceeds size limit")

	// ErrUnsafeTarget means the URL resolves to a private, loopback,
	// link-local, or reserved address and private-network access is disabled.
	ErrUnsafeTarget = errors.New("target address is not publicly routable")

	// ErrProviderUnavailable means no summarization provider is configured
	// or every configured provider was exhausted.
	ErrProviderUnavailable = errors.New("no language model provider available")

	// ErrRateLimited means an upstream provider signaled throttling.
	ErrRateLimited = errors.New("rate limited by upstream provider")
)
