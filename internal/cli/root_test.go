package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCommands(t *testing.T) {
	if rootCmd.Name() != "puppetizer" {
		t.Errorf("Expected root command name puppetizer, got %s", rootCmd.Name())
	}

	want := map[string]bool{"start": false, "stop": false, "status": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Missing %s subcommand", name)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	orig := cfgFile
	defer func() { cfgFile = orig }()

	cfgFile = writeTempConfig(t, `
version: "1"
supervisor:
  apply_command: ["/sbin/apply"]
`)
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if len(cfg.Supervisor.ApplyCommand) != 1 || cfg.Supervisor.ApplyCommand[0] != "/sbin/apply" {
		t.Errorf("Unexpected apply command: %v", cfg.Supervisor.ApplyCommand)
	}
	// Defaults filled by Normalize.
	if cfg.Supervisor.ControlSocket == "" || cfg.Supervisor.ServicesDir == "" {
		t.Error("Expected socket and services dir defaults")
	}
}

func TestControlSocketFallsBackToDefault(t *testing.T) {
	orig := cfgFile
	defer func() { cfgFile = orig }()

	cfgFile = "/nonexistent/puppetizer.yaml"
	if got := controlSocket(); got == "" {
		t.Error("Expected a default socket path for a missing config")
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "puppetizer.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
