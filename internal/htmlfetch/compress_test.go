package htmlfetch

import (
	"strings"
	"testing"
)

const fixturePage = `<!DOCTYPE html>
<html>
<head>
<title>Senior Engineer &amp; Lead - Acme</title>
<meta name="description" content="Build things at Acme.">
<meta property="og:title" content="Senior Engineer">
<meta property="og:site_name" content="Acme Careers">
<meta name="keywords" content="should,not,appear">
<script type="application/ld+json">
{
  "@type": "JobPosting",
  "title": "Senior Engineer",
  "hiringOrganization": { "name": "Acme" }
}
</script>
<style>body { color: red; }</style>
</head>
<body>
<header>Site navigation header</header>
<nav>Home Jobs About</nav>
<!-- tracking comment -->
<script>console.log("analytics");</script>
<div>
  <h1>Senior Engineer</h1>
  <p>We are   looking for an engineer.</p>

  <p>Apply today.</p>
</div>
<footer>Copyright Acme</footer>
</body>
</html>`

func TestCompressBudget(t *testing.T) {
	long := fixturePage + strings.Repeat("<p>filler paragraph with content</p>", 2000)
	for _, budget := range []int{50, 200, 1000, 20000} {
		if got := Compress(long, budget); len(got) > budget {
			t.Errorf("Compress output %d bytes exceeds budget %d", len(got), budget)
		}
	}
}

func TestCompressPriority(t *testing.T) {
	// Budget too small for both sections: JSON-LD must survive, body text
	// gets truncated away, never the reverse.
	got := Compress(fixturePage, 120)
	if !strings.Contains(got, `"JobPosting"`) {
		t.Fatalf("JSON-LD missing from truncated output: %q", got)
	}
	if strings.Contains(got, "Apply today") {
		t.Fatalf("body text survived truncation ahead of JSON-LD: %q", got)
	}
}

func TestCompressMinifiesJSONLD(t *testing.T) {
	got := Compress(fixturePage, DefaultMaxHTMLLength)
	if !strings.Contains(got, `"hiringOrganization":{"name":"Acme"}`) {
		t.Fatalf("JSON-LD not minified: %q", got)
	}
}

func TestCompressMetaTags(t *testing.T) {
	got := Compress(fixturePage, DefaultMaxHTMLLength)
	if !strings.Contains(got, "title: Senior Engineer & Lead - Acme") {
		t.Errorf("title line missing or entities not decoded: %q", got)
	}
	if !strings.Contains(got, "description: Build things at Acme.") {
		t.Errorf("description meta missing: %q", got)
	}
	if !strings.Contains(got, "og:site_name: Acme Careers") {
		t.Errorf("og:site_name meta missing: %q", got)
	}
	if strings.Contains(got, "should,not,appear") {
		t.Errorf("non-allow-listed meta leaked: %q", got)
	}
}

func TestCompressStripsChrome(t *testing.T) {
	got := Compress(fixturePage, DefaultMaxHTMLLength)
	for _, banned := range []string{
		"console.log",
		"color: red",
		"Site navigation header",
		"Home Jobs About",
		"Copyright Acme",
		"tracking comment",
	} {
		if strings.Contains(got, banned) {
			t.Errorf("stripped element leaked %q into output", banned)
		}
	}
	if !strings.Contains(got, "We are looking for an engineer.") {
		t.Errorf("body text missing or spaces not collapsed: %q", got)
	}
}

func TestCompressCollapsesWhitespace(t *testing.T) {
	got := Compress(fixturePage, DefaultMaxHTMLLength)
	if strings.Contains(got, "  ") {
		t.Errorf("run of spaces survived: %q", got)
	}
	if strings.Contains(got, "\n\n") {
		t.Errorf("blank-line run survived: %q", got)
	}
}

func TestCompressUnparseableInput(t *testing.T) {
	// Garbage input still respects the budget and does not panic.
	if got := Compress(strings.Repeat("\x00garbage ", 100), 50); len(got) > 50 {
		t.Fatalf("budget exceeded for garbage input: %d bytes", len(got))
	}
}
