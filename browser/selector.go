package browser

import (
	"strings"

	"github.com/chromedp/chromedp"
)

// IsXPath reports whether sel is an XPath expression rather than CSS.
func IsXPath(sel string) bool {
	s := strings.TrimSpace(sel)
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(")
}

func byOne(sel string) chromedp.QueryOption {
	if IsXPath(sel) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func byAll(sel string) chromedp.QueryOption {
	if IsXPath(sel) {
		return chromedp.BySearch
	}
	return chromedp.ByQueryAll
}
