package extract

import (
	"context"
	"strings"
	"testing"
)

func TestExtractPlainText(t *testing.T) {
	e := New()
	got, err := e.Extract(context.Background(), []byte("plain notes"), "text/plain; charset=utf-8")
	if err != nil {
		t.Fatal(err)
	}
	if got != "plain notes" {
		t.Errorf("got %q", got)
	}
}

func TestExtractSanitizesText(t *testing.T) {
	e := New()
	got, err := e.Extract(context.Background(), []byte("a\x00b\xffc"), "text/plain")
	if err != nil {
		t.Fatal(err)
	}
	if strings.ContainsRune(got, 0) {
		t.Errorf("NUL byte survived: %q", got)
	}
	if !strings.Contains(got, "a") || !strings.Contains(got, "c") {
		t.Errorf("valid runes dropped: %q", got)
	}
}

func TestExtractSourceCode(t *testing.T) {
	e := New()
	src := "function main() { return 42 }"
	for _, mime := range []string{"application/javascript", "application/typescript"} {
		got, err := e.Extract(context.Background(), []byte(src), mime)
		if err != nil {
			t.Fatalf("%s: %v", mime, err)
		}
		if got != src {
			t.Errorf("%s: got %q, want the source read as-is", mime, got)
		}
	}
}

func TestExtractJSON(t *testing.T) {
	e := New()
	doc := []byte(`{"title":"quarterly report","tags":["finance","q3"],"pages":12,"draft":false}`)
	got, err := e.Extract(context.Background(), doc, "application/json")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"title", "quarterly report", "finance", "q3", "12", "false"} {
		if !strings.Contains(got, want) {
			t.Errorf("flattened json missing %q: %q", want, got)
		}
	}
	if strings.ContainsAny(got, "{}[]\"") {
		t.Errorf("json punctuation leaked into text: %q", got)
	}
}

func TestExtractJSONInvalid(t *testing.T) {
	e := New()
	if _, err := e.Extract(context.Background(), []byte("{nope"), "application/json"); err == nil {
		t.Error("invalid json extracted without error")
	}
}

func TestExtractHTML(t *testing.T) {
	e := New()
	doc := []byte(`<html><head><title>ignored</title><style>body{}</style></head>
		<body><h1>Heading</h1><p>Body   text.</p><script>var x = "hidden";</script></body></html>`)
	got, err := e.Extract(context.Background(), doc, "text/html")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "Heading") || !strings.Contains(got, "Body text.") {
		t.Errorf("visible text missing: %q", got)
	}
	for _, leaked := range []string{"hidden", "body{}", "ignored"} {
		if strings.Contains(got, leaked) {
			t.Errorf("non-visible content %q leaked: %q", leaked, got)
		}
	}
}

func TestExtractXML(t *testing.T) {
	e := New()
	got, err := e.Extract(context.Background(), []byte(`<note><to>alice</to><body>remember</body></note>`), "application/xml")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "alice") || !strings.Contains(got, "remember") {
		t.Errorf("xml text missing: %q", got)
	}
}

func TestExtractUnknownMimeIsSilent(t *testing.T) {
	e := New()
	got, err := e.Extract(context.Background(), []byte{0x89, 0x50, 0x4E, 0x47}, "image/png")
	if err != nil {
		t.Fatalf("unknown mime returned error: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestExtractCancelledContext(t *testing.T) {
	e := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Extract(ctx, []byte("x"), "text/plain"); err == nil {
		t.Error("cancelled context not honored")
	}
}

func TestTruncateText(t *testing.T) {
	// A multibyte rune straddling the cap must not be split.
	s := strings.Repeat("a", maxTextBytes-1) + "é"
	got := truncateText(s)
	if len(got) > maxTextBytes {
		t.Errorf("truncated to %d bytes, cap is %d", len(got), maxTextBytes)
	}
	if got != strings.Repeat("a", maxTextBytes-1) {
		t.Error("truncation split a rune")
	}

	short := "untouched"
	if truncateText(short) != short {
		t.Error("short text modified")
	}
}
