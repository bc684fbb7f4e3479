// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package proxy

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// CacheVersion namespaces every cache entry the proxy writes.
const CacheVersion = "amt-v3.8.0"

// StaticCache and APICache name the two caches of CacheVersion.
const (
	StaticCache = CacheVersion + "-static"
	APICache    = CacheVersion + "-api"
)

// DefaultAppShell is pre-cached by Install.
var DefaultAppShell = []string{
	"/",
	"/wp-content/themes/astra/ask-mirror-talk.css",
	"/wp-content/themes/astra/ask-mirror-talk.js",
	"/wp-content/themes/astra/analytics-addon.js",
}

var staticAsset = regexp.MustCompile(`\.(css|js|png|jpg|jpeg|svg|webp|woff2?|ttf|ico)(\?.*)?$`)

// Class is the caching policy a request falls under.
type Class int

const (
	ClassBypass Class = iota
	ClassAPI
	ClassStatic
	ClassHTML
	ClassOther
)

func (c Class) String() string {
	switch c {
	case ClassBypass:
		return "bypass"
	case ClassAPI:
		return "api"
	case ClassStatic:
		return "static"
	case ClassHTML:
		return "html"
	default:
		return "other"
	}
}

// Classify picks the policy for r, whose upstream URL is target. apiBase
// is the answer API origin. The checks run in a fixed order so, for
// example, the answer stream is bypassed even though it lives on the API
// origin.
func Classify(r *http.Request, target *url.URL, apiBase string) Class {
	if r.Method != http.MethodGet {
		return ClassBypass
	}

	path := target.Path
	href := target.String()
	switch {
	case strings.Contains(path, "/ask/stream"):
		return ClassBypass
	case strings.Contains(path, "/audio/") || strings.Contains(href, "cloudfront.net"):
		return ClassBypass
	case strings.HasPrefix(path, "/wp-admin") || strings.HasPrefix(path, "/wp-login"):
		return ClassBypass
	}

	if apiBase != "" && strings.HasPrefix(href, strings.TrimRight(apiBase, "/")) {
		return ClassAPI
	}
	if staticAsset.MatchString(path) {
		return ClassStatic
	}
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		return ClassHTML
	}
	return ClassOther
}
