package router

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furnbridge/orderdesk/internal/model"
)

func writeRulesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routing_rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRules(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  - branch: momax_bg
    reason: sender_domain:momax.bg
    sender_regex: '(?i)@momax\.bg\b'
  - branch: braun
    subject_regex: '(?i)kommission'
    pdf_regex: '(?i)braun m(ö|oe)bel'
`)

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "momax_bg", rules[0].branchID)
	assert.Equal(t, "sender_domain:momax.bg", rules[0].reason)
	assert.True(t, rules[0].match(model.IngestedEmail{Sender: "bestellung@MOMAX.bg"}, ""))
	assert.False(t, rules[0].match(model.IngestedEmail{Sender: "bestellung@xxxlutz.de"}, ""))

	// Both conditions must hold.
	assert.Equal(t, "rules_file:braun", rules[1].reason)
	assert.True(t, rules[1].match(model.IngestedEmail{Subject: "Kommission Wagner"}, "BRAUN Möbel-Zentrum"))
	assert.False(t, rules[1].match(model.IngestedEmail{Subject: "Kommission Wagner"}, "Porta"))
	assert.False(t, rules[1].match(model.IngestedEmail{Subject: "Rechnung"}, "BRAUN Möbel-Zentrum"))
}

func TestLoadRulesValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing branch", "rules:\n  - sender_regex: '@momax\\.bg'\n"},
		{"no condition", "rules:\n  - branch: braun\n"},
		{"bad regex", "rules:\n  - branch: braun\n    sender_regex: '('\n"},
		{"bad yaml", "rules: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeRulesFile(t, tt.content)
			_, err := LoadRules(path)
			require.Error(t, err)
		})
	}
}

func TestLoadRulesMissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestRouterUsesExtraRules(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  - branch: momax_bg
    sender_regex: '(?i)@momax\.bg\b'
`)
	cfg := testConfig()
	cfg.RulesPath = path

	client := &fakeLLM{}
	r := newTestRouter(client, &fakePDFText{}, cfg)

	msg := testMessage()
	msg.Sender = "bestellung@momax.bg"
	route := r.Route(context.Background(), msg)

	assert.Equal(t, "momax_bg", route.SelectedBranchID)
	assert.Equal(t, "rules_file:momax_bg", route.Reason)
	assert.True(t, route.ForcedByDetector)
	assert.Zero(t, client.classifyCalls)
}
