package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestInitConfig_FileNotFound(t *testing.T) {
	origHome := os.Getenv("HOME")
	defer os.Setenv("HOME", origHome)

	tmpDir := t.TempDir()
	os.Setenv("HOME", tmpDir)

	viper.Reset()
	cfgFile = ""

	// This should not error even if config doesn't exist.
	initConfig()
}

func TestInitConfig_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".clusteradm.yaml")

	configContent := `connections:
  default:
    host: testhost
    port: 3307
    user: testuser
defaults:
  format: json
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	viper.Reset()
	cfgFile = configPath

	initConfig()

	if viper.GetString("connections.default.host") != "testhost" {
		t.Errorf("expected nested config to be loaded, got: %s", viper.GetString("connections.default.host"))
	}
	if viper.GetString("defaults.format") != "json" {
		t.Errorf("format = %s, want json", viper.GetString("defaults.format"))
	}
}

func TestInitConfig_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".clusteradm.yaml")

	invalidYAML := "connections:\n  default:\n    host: testhost\n\tinvalid indentation\n"
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	viper.Reset()
	cfgFile = configPath

	// Must not panic; a parse failure just leaves viper without the file's values.
	initConfig()

	if viper.GetString("connections.default.host") == "testhost" {
		t.Error("invalid YAML should not have been parsed successfully")
	}
}

func TestRootCommand_Use(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd should not be nil")
	}
	if rootCmd.Use != "clusteradm" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "clusteradm")
	}
}

func TestSplitEndpoint(t *testing.T) {
	host, port, err := splitEndpoint("db1.example.com:3306")
	if err != nil {
		t.Fatalf("splitEndpoint: %v", err)
	}
	if host != "db1.example.com" || port != 3306 {
		t.Errorf("got (%s, %d), want (db1.example.com, 3306)", host, port)
	}

	if _, _, err := splitEndpoint("not-an-endpoint"); err == nil {
		t.Error("expected error for malformed endpoint")
	}
}
