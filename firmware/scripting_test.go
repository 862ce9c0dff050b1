package firmware

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestRunLuaSignatureScript_MatchesConfig(t *testing.T) {
	script := `
signature("5a4f", hex("5a4f0000"))
signature("padding", fill(0, 1), { lookback = 20, repeats = 15 * 16 + 7 })
`
	sigs, err := RunLuaSignatureScript(script)
	if err != nil {
		t.Fatalf("Error running signature script: %s", err)
	}
	config, err := ParseConfig([]byte(testConfigToml))
	if err != nil {
		t.Fatalf("Error parsing config: %s", err)
	}
	if !reflect.DeepEqual(sigs, config.Signatures) {
		t.Fatalf("Expected lua and toml to agree: %+v vs %+v", sigs, config.Signatures)
	}
}

func TestRunLuaSignatureScript_Helpers(t *testing.T) {
	script := `
signature("b64", base64("AQgB"))
signature("text", "PK", { repeats = 2 })
signature("run", fill(255, 3))
`
	sigs, err := RunLuaSignatureScript(script)
	if err != nil {
		t.Fatalf("Error running signature script: %s", err)
	}
	expected := []Signature{
		{Name: "b64", Pattern: "010801"},
		{Name: "text", Pattern: "504b", Repeats: 2},
		{Name: "run", Pattern: "ffffff"},
	}
	if !reflect.DeepEqual(sigs, expected) {
		t.Fatalf("Expected %+v, got %+v", expected, sigs)
	}
}

func TestRunLuaSignatureScript_Rejects(t *testing.T) {
	scripts := map[string]string{
		"overlap": `signature("bad", "aab")`,
		"empty":   `signature("bad", "")`,
		"hex":     `signature("bad", hex("zz"))`,
		"fill":    `signature("bad", fill(300, 1))`,
		"syntax":  `signature("bad",`,
	}
	for name, script := range scripts {
		_, err := RunLuaSignatureScript(script)
		var configErr *ConfigError
		if !errors.As(err, &configErr) {
			t.Fatalf("%s: expected config error, got %v", name, err)
		}
		if configErr.Field != "lua script" {
			t.Fatalf("%s: expected lua script field, got %s", name, configErr.Field)
		}
	}
	_, err := RunLuaSignatureScript(`signature("bad", "aab")`)
	if !strings.Contains(err.Error(), "self-overlapping") {
		t.Fatalf("Expected overlap reason in error, got %s", err)
	}
}
