// Package artifact locates the published chart artifact for a chat session
// and captures it as a full-page screenshot. Every step degrades: a missed
// URL or screenshot yields empty fields, never a failed session.
package artifact

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Published artifacts live under /chat/shared/artifacts/<slug>-<hash>. The
// bare /artifacts path is the dashboard, not an artifact.
var (
	artifactPathRe = regexp.MustCompile(`/shared/artifacts/[^/"'\s]+-[a-zA-Z0-9]+`)
	artifactURLRe  = regexp.MustCompile(`https://[^"'\s]+/chat/shared/artifacts/[^"'\s]+-[a-zA-Z0-9]+`)
)

// IsArtifactURL reports whether u points at a published artifact.
func IsArtifactURL(u string) bool {
	if u == "" || strings.HasSuffix(u, "/artifacts") {
		return false
	}
	return artifactPathRe.MatchString(u)
}

// FirstInText returns the first absolute artifact URL in text, or "".
func FirstInText(text string) string {
	return artifactURLRe.FindString(text)
}

// ToDirectChatURL rewrites a shared chat URL to its direct form so the
// authenticated session can open it. Idempotent: a direct URL passes through
// unchanged.
func ToDirectChatURL(u string) string {
	const marker = "/shared/chats/"
	idx := strings.Index(u, marker)
	if idx < 0 {
		return u
	}
	return u[:idx] + "/chat/" + u[idx+len(marker):]
}

// Attributes that UI frameworks stash navigation targets in.
var urlAttrs = []string{"href", "data-url", "data-href", "data-link", "data-artifact-url"}

// FindInHTML walks the page markup for an artifact URL in anchor hrefs and
// data attributes, then onclick handlers. Relative matches are resolved
// against base. Raw-text pattern scanning is a separate, later fallback.
func FindInHTML(markup, base string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}

	var fromAttrs, fromOnclick string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				switch {
				case contains(urlAttrs, attr.Key):
					if fromAttrs == "" && IsArtifactURL(attr.Val) {
						fromAttrs = attr.Val
					}
				case attr.Key == "onclick":
					if fromOnclick == "" {
						if m := artifactURLRe.FindString(attr.Val); m != "" {
							fromOnclick = m
						}
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if fromAttrs != "" {
		return resolve(fromAttrs, base)
	}
	return resolve(fromOnclick, base)
}

func resolve(u, base string) string {
	if u == "" || !strings.HasPrefix(u, "/") {
		return u
	}
	return strings.TrimSuffix(base, "/") + u
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
