package extract

import "testing"

func TestParseContentStream(t *testing.T) {
	stream := []byte("BT\n/F1 12 Tf\n(Hello) Tj\n[(World) -250 (again)] TJ\nT*\n(next line) '\nET\n")
	got := parseContentStream(stream)
	want := "HelloWorldagain next line"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDecodePDFString(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`plain`, "plain"},
		{`a\nb`, "a\nb"},
		{`a\tb`, "a\tb"},
		{`paren \( pair \)`, "paren ( pair )"},
		{`back\\slash`, `back\slash`},
		{`octal \101\102`, "octal AB"},
		{`short \61`, "short 1"},
	}
	for _, tt := range tests {
		if got := decodePDFString([]byte(tt.raw)); got != tt.want {
			t.Errorf("decodePDFString(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizePDFText(t *testing.T) {
	got := normalizePDFText("  Hello \n\n world\t\x00! ")
	if got != "Hello world !" {
		t.Errorf("got %q", got)
	}
}

func TestExtractPDFRejectsGarbage(t *testing.T) {
	if _, err := extractPDF([]byte("definitely not a pdf")); err == nil {
		t.Error("garbage accepted as pdf")
	}
}
