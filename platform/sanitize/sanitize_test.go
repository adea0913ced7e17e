package sanitize

import "testing"

func TestText(t *testing.T) {
	got := Text("  <b>Olá</b>\n\n mundo &lt;script&gt;x&lt;/script&gt; ")
	if got != "Olá mundo x" {
		t.Fatalf("unexpected sanitized text %q", got)
	}
}

func TestExcerpt(t *testing.T) {
	long := "não gostei nada do atendimento, achei tudo muito caro e demorado demais"
	got := Excerpt(long, 50)
	if len([]rune(got)) != 53 {
		t.Fatalf("expected 50 runes plus ellipsis, got %d (%q)", len([]rune(got)), got)
	}
	if Excerpt("curto", 50) != "curto" {
		t.Fatal("short text must be returned unchanged")
	}
	if Excerpt("ççççç", 3) != "ççç..." {
		t.Fatalf("excerpt must cut on rune boundaries, got %q", Excerpt("ççççç", 3))
	}
}
