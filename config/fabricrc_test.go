package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestParseRC(t *testing.T) {
	t.Setenv("RC_TEST_HOME", "/home/alice")
	rc := `# FABRIC environment
export FABRIC_CREDMGR_HOST=cm.fabric-testbed.net
export FABRIC_PROJECT_ID="a b c"
export FABRIC_TOKEN_LOCATION=${RC_TEST_HOME}/.fabric/tokens.json
BASE=/opt/fabric
export FABRIC_BASTION_KEY_LOCATION=$BASE/keys/bastion
export FABRIC_QUOTED='$NOT_EXPANDED'
echo "not an assignment"
alias ll='ls -l'
`
	vars, err := ParseRC(strings.NewReader(rc), "fabric_rc")
	if err != nil {
		t.Fatalf("ParseRC() error = %v", err)
	}

	want := map[string]string{
		"FABRIC_CREDMGR_HOST":         "cm.fabric-testbed.net",
		"FABRIC_PROJECT_ID":           "a b c",
		"FABRIC_TOKEN_LOCATION":       "/home/alice/.fabric/tokens.json",
		"BASE":                        "/opt/fabric",
		"FABRIC_BASTION_KEY_LOCATION": "/opt/fabric/keys/bastion",
		"FABRIC_QUOTED":               "$NOT_EXPANDED",
	}
	for k, v := range want {
		if got := vars[k]; got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if got, want := len(vars), len(want); got != want {
		t.Errorf("len(vars) = %d, want %d: %v", got, want, vars)
	}
}

func TestParseRCRejectsCommandSubstitution(t *testing.T) {
	if _, err := ParseRC(strings.NewReader("export FABRIC_TOKEN=$(cat /etc/passwd)\n"), "fabric_rc"); err == nil {
		t.Fatal("ParseRC() expected error for command substitution")
	}
}

func TestParseRCSyntaxError(t *testing.T) {
	if _, err := ParseRC(strings.NewReader("export FOO='unterminated\n"), "fabric_rc"); err == nil {
		t.Fatal("ParseRC() expected syntax error")
	}
}

func TestLoadRCAcceptsFileOrDirectory(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, rcFileName, "export FABRIC_TOKEN=abc\n")

	for _, p := range []string{dir, path} {
		vars, err := LoadRC(p)
		if err != nil {
			t.Fatalf("LoadRC(%s) error = %v", p, err)
		}
		if got, want := vars["FABRIC_TOKEN"], "abc"; got != want {
			t.Fatalf("LoadRC(%s) FABRIC_TOKEN = %q, want %q", p, got, want)
		}
	}

	if _, err := LoadRC(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("LoadRC() expected error for missing file")
	}
}

func TestReadTokenFile(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		data    string
		want    string
		wantErr bool
	}{
		{"id_token", `{"id_token":"id","token":"tok"}`, "id", false},
		{"token fallback", `{"token":"tok"}`, "tok", false},
		{"empty", `{}`, "", true},
		{"not json", `id_token=abc`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, strings.ReplaceAll(tt.name, " ", "_")+".json", tt.data)
			got, err := ReadTokenFile(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadTokenFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("ReadTokenFile() = %q, want %q", got, tt.want)
			}
		})
	}
}
