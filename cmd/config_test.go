package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestConfigInitCmd_NewConfig(t *testing.T) {
	tmpDir := t.TempDir()

	origHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	input := "127.0.0.1\n3306\nclusteradm\ntext\n"

	oldStdin := os.Stdin
	defer func() { os.Stdin = oldStdin }()

	tmpInput, err := os.CreateTemp(tmpDir, "input")
	if err != nil {
		t.Fatalf("failed to create temp input file: %v", err)
	}
	defer tmpInput.Close()
	tmpInput.WriteString(input)
	tmpInput.Seek(0, 0)
	os.Stdin = tmpInput

	output := &bytes.Buffer{}
	configInitCmd.SetOut(output)
	configInitCmd.SetErr(output)

	if err := configInitCmd.RunE(configInitCmd, []string{}); err != nil {
		t.Fatalf("config init should succeed: %v", err)
	}

	configPath := filepath.Join(tmpDir, ".clusteradm", "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Errorf("config file should be created at %s", configPath)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}
	if !strings.Contains(string(content), "host: 127.0.0.1") {
		t.Errorf("config should contain the configured host: %s", content)
	}
}

func TestConfigShowCmd_NoConfigFile(t *testing.T) {
	viper.Reset()

	output := &bytes.Buffer{}
	configShowCmd.SetOut(output)

	if err := configShowCmd.RunE(configShowCmd, []string{}); err != nil {
		t.Fatalf("config show should not error when no config file exists: %v", err)
	}
}
