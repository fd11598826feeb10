package replay

import (
	"encoding/json"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/classboard/classboard-api/model"
)

// BlobSentinel is served in place of a blob: URL whose original filename
// could not be recovered. blob: object URLs die with the browser tab that
// created them, so the bytes themselves are unrecoverable at replay time.
const BlobSentinel = "unavailable-asset"

// attribute keys that carry asset URLs in captured DOM snapshots
var urlAttributes = map[string]bool{
	"src":      true,
	"href":     true,
	"poster":   true,
	"data-src": true,
}

// keys whose string values are serialized HTML fragments
var htmlKeys = map[string]bool{
	"html":      true,
	"innerHTML": true,
	"outerHTML": true,
}

// Rewriter redirects asset references inside captured replay events to the
// file-serving proxy. Replayed snapshots must never reach back to the
// origin they were recorded on; every asset resolves through serveBase.
type Rewriter struct {
	serveBase string
}

// NewRewriter creates a rewriter targeting the given proxy base path,
// typically "/api/files/serve".
func NewRewriter(serveBase string) *Rewriter {
	return &Rewriter{serveBase: strings.TrimRight(serveBase, "/")}
}

// RewriteEvents rewrites every event payload. Payloads that fail to decode
// pass through untouched; a malformed event should still replay as well as
// it can.
func (rw *Rewriter) RewriteEvents(events []model.ReplayEvent) []model.ReplayEvent {
	out := make([]model.ReplayEvent, len(events))
	for i, ev := range events {
		out[i] = ev
		if len(ev.Data) == 0 {
			continue
		}
		var payload interface{}
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			continue
		}
		rewritten := rw.walk(payload)
		data, err := json.Marshal(rewritten)
		if err != nil {
			continue
		}
		out[i].Data = data
	}
	return out
}

// walk recurses through a decoded JSON payload, rewriting URL-bearing
// attributes and embedded HTML fragments.
func (rw *Rewriter) walk(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for key, child := range val {
			s, isString := child.(string)
			switch {
			case isString && urlAttributes[key]:
				val[key] = rw.RewriteURL(s, recoverName(val))
			case isString && htmlKeys[key]:
				val[key] = rw.RewriteFragment(s)
			default:
				val[key] = rw.walk(child)
			}
		}
		return val
	case []interface{}:
		for i, child := range val {
			val[i] = rw.walk(child)
		}
		return val
	default:
		return v
	}
}

// recoverName pulls a usable filename from sibling attributes. Uploaded
// media is rendered with the stored filename in alt or title, which
// survives even when the src was a blob: URL.
func recoverName(attrs map[string]interface{}) string {
	for _, key := range []string{"alt", "title", "data-filename"} {
		if s, ok := attrs[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// RewriteURL maps one asset URL onto the serving proxy. Data URIs and
// anchors pass through, blob: URLs fall back to the recovered filename or
// the sentinel, and everything else keeps only its final path segment.
func (rw *Rewriter) RewriteURL(raw, recoveredName string) string {
	if raw == "" ||
		strings.HasPrefix(raw, "data:") ||
		strings.HasPrefix(raw, "#") ||
		strings.HasPrefix(raw, "about:") {
		return raw
	}
	if strings.HasPrefix(raw, rw.serveBase+"/") {
		return raw
	}

	if strings.HasPrefix(raw, "blob:") {
		if recoveredName != "" {
			return rw.serveBase + "/" + recoveredName
		}
		return rw.serveBase + "/" + BlobSentinel
	}

	name := path.Base(strings.SplitN(strings.SplitN(raw, "?", 2)[0], "#", 2)[0])
	if name == "" || name == "." || name == "/" || !strings.Contains(name, ".") {
		// not a file reference, leave navigation links alone
		return raw
	}
	return rw.serveBase + "/" + name
}

// RewriteFragment parses a serialized HTML fragment, rewrites the asset
// URLs on its elements, and renders it back. Unparseable input passes
// through unchanged.
func (rw *Rewriter) RewriteFragment(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return fragment
	}

	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return fragment
	}

	var sb strings.Builder
	for _, n := range nodes {
		rw.rewriteNode(n)
		if err := html.Render(&sb, n); err != nil {
			return fragment
		}
	}
	return sb.String()
}

func (rw *Rewriter) rewriteNode(n *html.Node) {
	if n.Type == html.ElementNode {
		name := attrValue(n, "alt")
		if name == "" {
			name = attrValue(n, "title")
		}
		for i, attr := range n.Attr {
			if urlAttributes[attr.Key] {
				n.Attr[i].Val = rw.RewriteURL(attr.Val, name)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		rw.rewriteNode(c)
	}
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
