package sanitize

import (
	"strings"
	"testing"
)

func TestStripsScriptsAndHandlers(t *testing.T) {
	in := `<div><script>alert(1)</script><p onclick="evil()">hi</p></div>`
	out := HTML(in)
	if strings.Contains(out, "script") || strings.Contains(out, "onclick") {
		t.Errorf("Expected scripts and handlers stripped, got %q", out)
	}
	if !strings.Contains(out, "<p>hi</p>") {
		t.Errorf("Expected paragraph preserved, got %q", out)
	}
}

func TestDisallowedProtocols(t *testing.T) {
	in := `<a href="javascript:alert(1)">x</a><img src="data:image/png;base64,AAAA">`
	out := HTML(in)
	if strings.Contains(out, "javascript:") || strings.Contains(out, "data:") {
		t.Errorf("Expected javascript:/data: URLs stripped, got %q", out)
	}
}

func TestSidecarAttributesSurvive(t *testing.T) {
	in := `<div class="nook-article" data-title="T" data-author="A" data-published="2024-01-02" data-tags="go,web"><p>body</p></div>`
	out := HTML(in)
	for _, want := range []string{`data-title="T"`, `data-author="A"`, `data-published="2024-01-02"`, `data-tags="go,web"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected sidecar attribute %s to survive, got %q", want, out)
		}
	}
}

func TestImageAttributesFiltered(t *testing.T) {
	in := `<img src="https://example.com/a.jpg" width="600" height="400" style="float:left" srcset="a 1x" loading="lazy" referrerpolicy="no-referrer">`
	out := HTML(in)
	for _, banned := range []string{"width=", "height=", "style=", "srcset="} {
		if strings.Contains(out, banned) {
			t.Errorf("Expected %s stripped, got %q", banned, out)
		}
	}
	for _, want := range []string{`loading="lazy"`, `referrerpolicy="no-referrer"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %s preserved, got %q", want, out)
		}
	}
}

func TestIdempotence(t *testing.T) {
	inputs := []string{
		`<div><p>simple</p></div>`,
		`<div data-title="x"><h1>T</h1><script>no</script><img src="https://e.com/i.png"><a href="javascript:x">l</a></div>`,
		`plain text & ampersand <unclosed`,
		`<pre><code>x < y</code></pre>`,
	}
	for _, in := range inputs {
		once := HTML(in)
		twice := HTML(once)
		if once != twice {
			t.Errorf("Sanitizer not idempotent for %q:\n first: %q\nsecond: %q", in, once, twice)
		}
	}
}
