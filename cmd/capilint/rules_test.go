package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/nao1215/capilint/internal/rules"
)

func TestRulesCmd(t *testing.T) {
	dir := t.TempDir()

	t.Run("table lists active rules", func(t *testing.T) {
		res := runCLI(t, "rules")
		if res.code != exitOK {
			t.Fatalf("exit code = %d (stderr %q)", res.code, res.stderr)
		}
		for _, want := range []string{"Py_TYPE", "Py_SET_TYPE", "allowed", "rule(s) active"} {
			if !strings.Contains(res.stdout, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("json honors disable", func(t *testing.T) {
		res := runCLI(t, "rules", "--json", "-d", "object")
		if res.code != exitOK {
			t.Fatalf("exit code = %d (stderr %q)", res.code, res.stderr)
		}
		var got []rules.SymbolRule
		if err := json.Unmarshal([]byte(res.stdout), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got) != rules.Default().Len()-3 {
			t.Errorf("got %d rules, want %d", len(got), rules.Default().Len()-3)
		}
		for _, r := range got {
			if r.Category == "object" {
				t.Errorf("rule %s should be disabled", r.Name)
			}
		}
	})

	t.Run("custom table only", func(t *testing.T) {
		rulesPath := writeSource(t, dir, "mine.yaml", "rules:\n  - name: MY_FIELD\n    replacement: my_set_field\n")
		res := runCLI(t, "rules", "--json", "--no-default-rules", "--rules", rulesPath)
		if res.code != exitOK {
			t.Fatalf("exit code = %d (stderr %q)", res.code, res.stderr)
		}
		var got []rules.SymbolRule
		if err := json.Unmarshal([]byte(res.stdout), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got) != 1 || got[0].Name != "MY_FIELD" {
			t.Errorf("got %+v, want only MY_FIELD", got)
		}
	})

	t.Run("defaults prints the embedded table", func(t *testing.T) {
		res := runCLI(t, "rules", "--defaults")
		if res.code != exitOK {
			t.Fatalf("exit code = %d", res.code)
		}
		if res.stdout != string(rules.DefaultYAML()) {
			t.Error("expected the embedded rule table verbatim")
		}
	})

	t.Run("contexts", func(t *testing.T) {
		res := runCLI(t, "rules", "--contexts")
		if res.code != exitOK {
			t.Fatalf("exit code = %d", res.code)
		}
		for _, want := range []string{"assignment", "address-of", "increment"} {
			if !strings.Contains(res.stdout, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})
}

func TestWriteRuleTable(t *testing.T) {
	t.Parallel()

	rs, err := rules.New([]rules.SymbolRule{
		{Name: "MY_FIELD", Origin: "mine.yaml:3"},
		{Name: "MY_ITEM", AllowedAddressOf: true, Category: "project"},
	})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := writeRuleTable(&buf, rs); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"MY_FIELD", "mine.yaml:3", "MY_ITEM", "project", "2 rule(s) active"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected table to contain %q, got:\n%s", want, out)
		}
	}
}
