package htmlfetch

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DefaultMaxHTMLLength caps the compressed payload. Sized so that payload
// plus fixed prompt text stays well inside the inference tier's per-minute
// token budget with headroom for model output.
const DefaultMaxHTMLLength = 20000

// allowedMetaKeys is the meta-tag allow-list for the compressed payload.
var allowedMetaKeys = map[string]bool{
	"description":    true,
	"og:title":       true,
	"og:description": true,
	"og:site_name":   true,
	"og:image":       true,
	"og:url":         true,
}

// skipTags are removed wholesale before body text extraction.
var skipTags = map[string]bool{
	"script":   true,
	"style":    true,
	"svg":      true,
	"noscript": true,
	"nav":      true,
	"footer":   true,
	"header":   true,
}

// blockTags get a newline after their text so paragraph structure survives
// tag stripping.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "ul": true, "ol": true, "table": true,
}

// Compress reduces raw page HTML to a budget-capped text payload, built in
// priority order: JSON-LD blocks (the densest structured signal), then the
// curated meta tags, then stripped body text filling whatever budget
// remains. The result never exceeds maxLen.
func Compress(rawHTML string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxHTMLLength
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return truncateTo(collapseWhitespace(rawHTML), maxLen)
	}

	var parts []string
	if jsonLD := extractJSONLD(doc); jsonLD != "" {
		parts = append(parts, jsonLD)
	}
	if meta := extractMeta(doc); meta != "" {
		parts = append(parts, meta)
	}
	if body := extractBodyText(doc); body != "" {
		parts = append(parts, body)
	}

	return truncateTo(strings.Join(parts, "\n"), maxLen)
}

// extractJSONLD collects every ld+json script, minified when it parses and
// passed through trimmed when it does not.
func extractJSONLD(doc *goquery.Document) string {
	var blocks []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		blocks = append(blocks, minifyJSON(raw))
	})
	return strings.Join(blocks, "\n")
}

func minifyJSON(raw string) string {
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return raw
	}
	minified, err := json.Marshal(payload)
	if err != nil {
		return raw
	}
	return string(minified)
}

// extractMeta renders the page title plus allow-listed name/property meta
// tags as "key: value" lines. goquery's parser already decodes entities.
func extractMeta(doc *goquery.Document) string {
	var lines []string
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		lines = append(lines, "title: "+title)
	}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, _ := s.Attr("name")
		if key == "" {
			key, _ = s.Attr("property")
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if !allowedMetaKeys[key] {
			return
		}
		content, _ := s.Attr("content")
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		lines = append(lines, key+": "+content)
	})
	return strings.Join(lines, "\n")
}

// extractBodyText walks the parsed tree, dropping chrome elements and
// comments, and collapses the result's whitespace.
func extractBodyText(doc *goquery.Document) string {
	body := doc.Find("body")
	if body.Length() == 0 {
		return ""
	}
	var sb strings.Builder
	for _, node := range body.Nodes {
		writeText(&sb, node)
	}
	return collapseWhitespace(sb.String())
}

func writeText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.CommentNode:
		return
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		if skipTags[n.Data] {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(sb, c)
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		sb.WriteString("\n")
	}
}

// collapseWhitespace squeezes runs of spaces into one and runs of blank
// lines into a single newline.
func collapseWhitespace(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		lines = append(lines, strings.Join(fields, " "))
	}
	return strings.Join(lines, "\n")
}

func truncateTo(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
