package sources

import "time"

const (
	componentName = "sources"

	defaultUserAgent = "amon-hen/0.1"
	fetchTimeout     = 30 * time.Second

	headerUserAgent     = "User-Agent"
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	contentTypeJSON     = "application/json"

	logKeyComponent = "component"
	logKeySource    = "source"
	logKeyFeed      = "feed"
	logKeyQuery     = "query"
	logKeyKeyword   = "keyword"
	logKeySubreddit = "subreddit"
	logKeyURL       = "url"
	logKeyItems     = "items"

	wrapCreateRequest = "create request: %w"
	wrapHTTPStatusFmt = "%w: status %d"
)
