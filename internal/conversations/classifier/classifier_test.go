package classifier

import (
	"os"
	"path/filepath"
	"testing"
)

func newDefault(t *testing.T) *Classifier {
	t.Helper()
	lex, err := LoadLexicon("")
	if err != nil {
		t.Fatalf("load lexicon: %v", err)
	}
	return New(lex)
}

func TestClassifyIntent(t *testing.T) {
	c := newDefault(t)
	tests := []struct {
		text string
		want Intent
	}{
		{"Sim, confirmo!", IntentAffirmative},
		{"OK", IntentAffirmative},
		{"Pode confirmar, obrigado", IntentAffirmative},
		{"Preciso cancelar", IntentNegative},
		{"NÃO POSSO ir amanhã", IntentNegative},
		{"nao vou conseguir", IntentNegative},
		{"sim... na verdade não", IntentNegative},
		{"Sim, não posso ir", IntentNegative},
		{"Sim, confirmo! Não vejo a hora", IntentAffirmative},
		{"Confirmado, não vou faltar", IntentAffirmative},
		{"Não, tudo certo. Confirmado", IntentAffirmative},
		{"Ok, não precisa remarcar", IntentNone},
		{"Sim, mas preciso cancelar", IntentNone},
		{"Qual o endereço?", IntentNone},
		{"simples assim", IntentNone},
		{"bookmark", IntentNone},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.text).Intent; got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestClassifyFrustration(t *testing.T) {
	c := newDefault(t)
	if !c.Classify("Que absurdo, muito caro!").Frustrated {
		t.Fatal("expected frustration")
	}
	if !c.Classify("serviço pessimo").Frustrated {
		t.Fatal("unaccented spelling must match")
	}
	if c.Classify("Caroline confirmou").Frustrated {
		t.Fatal("substring must not match")
	}
}

func TestIsLowConfidence(t *testing.T) {
	c := newDefault(t)
	if !c.IsLowConfidence("Desculpe, não tenho certeza sobre o horário.") {
		t.Fatal("expected hedging reply")
	}
	if c.IsLowConfidence("Seu horário está confirmado para 14h.") {
		t.Fatal("unexpected low confidence")
	}
}

func TestLoadLexiconFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	data := []byte("affirmative: [yes]\nnegative: [no]\nfrustration: [bad]\nlow_confidence: [maybe]\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	lex, err := LoadLexicon(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c := New(lex)
	if c.Classify("Yes please").Intent != IntentAffirmative {
		t.Fatal("custom lexicon not applied")
	}
}

func TestParseLexiconRejectsEmptyLists(t *testing.T) {
	if _, err := ParseLexicon([]byte("affirmative: [sim]\n")); err == nil {
		t.Fatal("expected error for missing lists")
	}
}
