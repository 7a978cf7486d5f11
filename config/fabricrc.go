package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

const rcFileName = "fabric_rc"

// LoadRC reads a fabric_rc file. path may name the file itself or the
// directory holding it.
func LoadRC(path string) (map[string]string, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, rcFileName)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fabric_rc: %w", err)
	}
	defer func() { _ = f.Close() }()

	vars, err := ParseRC(f, path)
	if err != nil {
		return nil, err
	}
	return vars, nil
}

// ParseRC collects the variables assigned by a shell rc file, either as
// "export K=V" or as a bare "K=V". Values are expanded against earlier
// assignments and the process environment. Other commands are ignored and
// never run.
func ParseRC(r io.Reader, name string) (map[string]string, error) {
	file, err := syntax.NewParser().Parse(r, name)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	vars := map[string]string{}
	for _, stmt := range file.Stmts {
		var assigns []*syntax.Assign
		switch cmd := stmt.Cmd.(type) {
		case *syntax.DeclClause:
			if cmd.Variant == nil || cmd.Variant.Value != "export" {
				continue
			}
			assigns = cmd.Args
		case *syntax.CallExpr:
			if len(cmd.Args) > 0 {
				continue
			}
			assigns = cmd.Assigns
		default:
			continue
		}

		for _, as := range assigns {
			if as.Name == nil || as.Naked {
				continue
			}
			value := ""
			if as.Value != nil {
				cfg := &expand.Config{Env: rcEnviron(vars)}
				v, err := expand.Literal(cfg, as.Value)
				if err != nil {
					return nil, fmt.Errorf("expand %s in %s: %w", as.Name.Value, name, err)
				}
				value = v
			}
			vars[as.Name.Value] = value
		}
	}
	return vars, nil
}

func rcEnviron(vars map[string]string) expand.Environ {
	pairs := os.Environ()
	for k, v := range vars {
		pairs = append(pairs, k+"="+v)
	}
	return expand.ListEnviron(pairs...)
}

// tokenFile is the JSON written by the FABRIC credential manager.
type tokenFile struct {
	IDToken string `json:"id_token"`
	Token   string `json:"token"`
}

// ReadTokenFile returns the id_token (or, failing that, token) stored in the
// JSON file at path.
func ReadTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return "", fmt.Errorf("parse token file %s: %w", path, err)
	}
	for _, t := range []string{tf.IDToken, tf.Token} {
		if t = strings.TrimSpace(t); t != "" {
			return t, nil
		}
	}
	return "", fmt.Errorf("token file %s has no id_token or token", path)
}
