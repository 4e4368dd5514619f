package app

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	want := map[string]bool{"run": false, "migrate": false, "version": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}

	if cmd.PersistentFlags().Lookup("config") == nil {
		t.Error("persistent --config flag missing")
	}
}

func TestRootCmd_Help(t *testing.T) {
	out, err := execute(t)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "catalog-crawler") || !strings.Contains(out, "migrate") {
		t.Errorf("help output missing expected text:\n%s", out)
	}
}

func TestRunCmd_Flags(t *testing.T) {
	cmd := newRunCmd()
	for _, name := range []string{"migrate", "strict", "refresh-cache"} {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			t.Errorf("flag --%s missing", name)
			continue
		}
		if f.DefValue != "false" {
			t.Errorf("flag --%s default = %s, want false", name, f.DefValue)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	Version, Commit = "1.2.3", "abc123"
	t.Cleanup(func() { Version, Commit = "dev", "unknown" })

	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.HasPrefix(out, "catalog-crawler 1.2.3 (commit abc123") {
		t.Errorf("unexpected version output: %q", out)
	}
}

func TestVersionCmd_JSON(t *testing.T) {
	out, err := execute(t, "version", "--format", "json")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	var info VersionInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if info.Version != Version {
		t.Errorf("version = %q, want %q", info.Version, Version)
	}
	if info.GoVersion == "" || info.Platform == "" {
		t.Errorf("missing runtime info: %+v", info)
	}
}

func TestCommands_InvalidConfig(t *testing.T) {
	t.Setenv("CRAWLER_DATABASE_URL", "")

	tests := []struct {
		name string
		args []string
	}{
		{name: "run", args: []string{"run"}},
		{name: "migrate", args: []string{"migrate"}},
		{name: "migrate down", args: []string{"migrate", "--down"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected error for missing database url")
			}
			if !strings.Contains(err.Error(), "database.url is required") {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCommands_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "run", "--config", "/nonexistent/crawler.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("unexpected error: %v", err)
	}
}
