package cli

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Praises003/aether/internal/config"
)

func TestConfigureLogging(t *testing.T) {
	oldLevel := zerolog.GlobalLevel()
	oldVerbose := verbose
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(oldLevel)
		verbose = oldVerbose
	})

	tests := []struct {
		name    string
		level   string
		verbose bool
		want    zerolog.Level
	}{
		{name: "configured level", level: "warn", want: zerolog.WarnLevel},
		{name: "upper case level", level: "ERROR", want: zerolog.ErrorLevel},
		{name: "empty level", level: "", want: zerolog.InfoLevel},
		{name: "unknown level", level: "loud", want: zerolog.InfoLevel},
		{name: "verbose wins", level: "error", verbose: true, want: zerolog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verbose = tt.verbose
			configureLogging(&config.LoggingConfig{Level: tt.level, Format: "json"})
			if got := zerolog.GlobalLevel(); got != tt.want {
				t.Errorf("level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRootCommands(t *testing.T) {
	want := []string{"serve", "submit", "result", "functions", "topic", "init", "version"}

	have := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		have[cmd.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("root command missing %q", name)
		}
	}
}

func TestVersion(t *testing.T) {
	if got := Version(); !strings.HasPrefix(got, "aether version ") {
		t.Errorf("Version() = %q", got)
	}

	cmd, out := testCommand()
	versionCmd.Run(cmd, nil)
	if strings.TrimSpace(out.String()) != Version() {
		t.Errorf("version output = %q", out.String())
	}
}
