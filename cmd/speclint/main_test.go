package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validFeature = `# FEAT-001: Login

## Overview

Users sign in.

## Requirements

**REQ-001**: The system shall authenticate users.

## Acceptance Criteria

### AC-1: Successful login

Given a registered user
When they submit valid credentials
Then they see the dashboard
`

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, data := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestValidate_Clean(t *testing.T) {
	root := writeTree(t, map[string]string{
		"features/login.md": validFeature,
		"README.md":         "# Readme\n",
	})
	code, out, errOut := run("validate", root)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d\nstdout: %s\nstderr: %s", code, out, errOut)
	}
	if !strings.Contains(out, "2 documents") {
		t.Errorf("expected summary line, got %q", out)
	}
}

func TestValidate_FindingsExitOne(t *testing.T) {
	root := writeTree(t, map[string]string{
		"features/login.md": strings.Replace(validFeature, "shall", "should", 1),
	})
	code, out, _ := run("validate", "--format", "json", root)
	if code != exitFindings {
		t.Fatalf("expected exit 1, got %d", code)
	}
	var rep struct {
		Findings []struct {
			Category string `json:"category"`
			Message  string `json:"message"`
		} `json:"findings"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("invalid json output: %v\n%s", err, out)
	}
	if len(rep.Findings) != 1 || rep.Findings[0].Category != "content" {
		t.Errorf("expected one content finding, got %+v", rep.Findings)
	}
}

func TestValidate_IgnoreFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"features/login.md":  validFeature,
		"features/draft.md":  "# nothing valid here\n",
		"features/legacy.md": "# legacy\n",
		".specignore":        "draft.md\n",
		".specunmanaged":     "features/legacy.md\n",
	})
	code, out, errOut := run("validate", root)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d\nstdout: %s\nstderr: %s", code, out, errOut)
	}
}

func TestValidate_WarningsAsErrors(t *testing.T) {
	root := writeTree(t, map[string]string{
		"features/login.md": validFeature,
		"notes/todo.md":     "# Todo\n",
	})
	if code, _, _ := run("validate", "--unmatched", "warn", root); code != exitOK {
		t.Errorf("warnings alone should exit 0, got %d", code)
	}
	if code, _, _ := run("validate", "--unmatched", "warn", "--warnings-as-errors", root); code != exitFindings {
		t.Errorf("expected exit 1 with --warnings-as-errors, got %d", code)
	}
}

func TestValidate_SchemaLoadFailure(t *testing.T) {
	root := writeTree(t, map[string]string{
		"features/login.md":   validFeature,
		"schemas/broken.yaml": "kind: module\nname: Broken\n",
	})
	code, _, errOut := run("validate", "--schemas", filepath.Join(root, "schemas"), root)
	if code != exitSchemaLoad {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(errOut, "file_pattern or location_pattern is required") {
		t.Errorf("expected schema error on stderr, got %q", errOut)
	}
}

func TestValidate_BadArguments(t *testing.T) {
	if code, _, _ := run("validate", "--format", "xml", t.TempDir()); code != exitSchemaLoad {
		t.Errorf("expected exit 2 for unknown format, got %d", code)
	}
	if code, _, _ := run("validate", filepath.Join(t.TempDir(), "missing")); code != exitSchemaLoad {
		t.Errorf("expected exit 2 for missing root, got %d", code)
	}
	if code, _, _ := run("validate", "--unmatched", "ignore", t.TempDir()); code != exitSchemaLoad {
		t.Errorf("expected exit 2 for unknown policy, got %d", code)
	}
}

func TestSchemas(t *testing.T) {
	code, out, _ := run("schemas")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	for _, want := range []string{"KIND", "Feature.Requirement", "AcceptanceCriterion", "given-when-then"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestVersion(t *testing.T) {
	code, out, _ := run("version")
	if code != exitOK || !strings.HasPrefix(out, "speclint version "+Version) {
		t.Errorf("unexpected version output %q (exit %d)", out, code)
	}
}
