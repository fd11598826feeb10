package replay

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/classboard/classboard-api/model"
)

func TestRewriteURL(t *testing.T) {
	rw := NewRewriter("/api/files/serve")

	cases := []struct {
		name      string
		raw       string
		recovered string
		want      string
	}{
		{"absolute url", "https://cdn.example.com/uploads/lesson-4.pdf?v=2", "", "/api/files/serve/lesson-4.pdf"},
		{"relative url", "/static/img/diagram.png", "", "/api/files/serve/diagram.png"},
		{"blob with recovered name", "blob:https://app.local/5a1f", "intro.mp4", "/api/files/serve/intro.mp4"},
		{"blob without name", "blob:https://app.local/5a1f", "", "/api/files/serve/" + BlobSentinel},
		{"data uri passthrough", "data:image/png;base64,iVBOR", "", "data:image/png;base64,iVBOR"},
		{"anchor passthrough", "#section-2", "", "#section-2"},
		{"about passthrough", "about:blank", "", "about:blank"},
		{"navigation link passthrough", "/dashboard/folders", "", "/dashboard/folders"},
		{"already proxied", "/api/files/serve/notes.pdf", "", "/api/files/serve/notes.pdf"},
		{"empty", "", "", ""},
	}

	for _, tc := range cases {
		if got := rw.RewriteURL(tc.raw, tc.recovered); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestRewriteEvents(t *testing.T) {
	rw := NewRewriter("/api/files/serve")

	data, _ := json.Marshal(map[string]interface{}{
		"node": map[string]interface{}{
			"tagName": "img",
			"attributes": map[string]interface{}{
				"src": "blob:https://app.local/9b2c",
				"alt": "worksheet.png",
			},
		},
	})
	events := []model.ReplayEvent{
		{Type: 2, Timestamp: 100, Data: data},
		{Type: 3, Timestamp: 200, Data: json.RawMessage(`{not json`)},
		{Type: 3, Timestamp: 300},
	}

	out := rw.RewriteEvents(events)
	if len(out) != 3 {
		t.Fatalf("expected 3 events, got %d", len(out))
	}

	var decoded struct {
		Node struct {
			Attributes map[string]string `json:"attributes"`
		} `json:"node"`
	}
	if err := json.Unmarshal(out[0].Data, &decoded); err != nil {
		t.Fatalf("rewritten payload no longer decodes: %v", err)
	}
	if got := decoded.Node.Attributes["src"]; got != "/api/files/serve/worksheet.png" {
		t.Errorf("expected blob src recovered via alt, got %q", got)
	}
	if got := decoded.Node.Attributes["alt"]; got != "worksheet.png" {
		t.Errorf("expected alt untouched, got %q", got)
	}

	// malformed payloads pass through byte for byte
	if string(out[1].Data) != `{not json` {
		t.Errorf("expected malformed payload untouched, got %q", out[1].Data)
	}
	if len(out[2].Data) != 0 {
		t.Errorf("expected empty payload untouched, got %q", out[2].Data)
	}

	// input slice stays untouched
	if string(events[0].Data) != string(data) {
		t.Error("rewrite mutated the input events")
	}
}

func TestRewriteEventsHTMLFragment(t *testing.T) {
	rw := NewRewriter("/api/files/serve")

	data, _ := json.Marshal(map[string]interface{}{
		"html": `<img src="blob:https://app.local/77aa" alt="chart.svg"><a href="/files/report.pdf">report</a>`,
	})
	out := rw.RewriteEvents([]model.ReplayEvent{{Type: 2, Data: data}})

	var decoded map[string]string
	if err := json.Unmarshal(out[0].Data, &decoded); err != nil {
		t.Fatalf("rewritten payload no longer decodes: %v", err)
	}
	fragment := decoded["html"]
	if !strings.Contains(fragment, `src="/api/files/serve/chart.svg"`) {
		t.Errorf("expected img src rewritten via alt, got %q", fragment)
	}
	if !strings.Contains(fragment, `href="/api/files/serve/report.pdf"`) {
		t.Errorf("expected anchor href rewritten, got %q", fragment)
	}
}

func TestRewriteFragmentPlainText(t *testing.T) {
	rw := NewRewriter("/api/files/serve")
	if got := rw.RewriteFragment("no markup here"); got != "no markup here" {
		t.Errorf("expected plain text untouched, got %q", got)
	}
}
