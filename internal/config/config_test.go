package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Build defaults
	if cfg.Build.Fingerprint != "timestamp" {
		t.Errorf("expected fingerprint 'timestamp', got %s", cfg.Build.Fingerprint)
	}
	if cfg.Build.WatchInterval != time.Second {
		t.Errorf("expected watch interval 1s, got %v", cfg.Build.WatchInterval)
	}
	if cfg.Build.StateDir != ".coreengine" {
		t.Errorf("expected state dir '.coreengine', got %s", cfg.Build.StateDir)
	}
	if cfg.Build.Platform != "" {
		t.Errorf("expected no platform override, got %s", cfg.Build.Platform)
	}

	if !cfg.Mesh.InvertHandedness {
		t.Error("expected handedness inversion to be enabled by default")
	}
	if cfg.Texture.Filter != "lanczos" {
		t.Errorf("expected texture filter 'lanczos', got %s", cfg.Texture.Filter)
	}
	if cfg.Tools.TextureBC6 != "" {
		t.Errorf("expected no BC6 tool by default, got %s", cfg.Tools.TextureBC6)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "cecompiler.yaml")

	yamlContent := `
build:
  fingerprint: hash
  watch_interval: 250ms
  tool_timeout: 30s

mesh:
  invert_handedness: false

texture:
  filter: catmullrom

tools:
  shader_glsl: "glslc -fshader-stage={stage} {input} -o {output}"
  texture_bc6: "bc6enc {input} {output}"

logging:
  level: "debug"
  log_file: "build.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Build.Fingerprint != "hash" {
		t.Errorf("expected fingerprint 'hash', got %s", cfg.Build.Fingerprint)
	}
	if cfg.Build.WatchInterval != 250*time.Millisecond {
		t.Errorf("expected watch interval 250ms, got %v", cfg.Build.WatchInterval)
	}
	if cfg.Build.ToolTimeout != 30*time.Second {
		t.Errorf("expected tool timeout 30s, got %v", cfg.Build.ToolTimeout)
	}
	// Keys missing from the file keep their defaults.
	if cfg.Build.StateDir != ".coreengine" {
		t.Errorf("expected default state dir, got %s", cfg.Build.StateDir)
	}

	if cfg.Mesh.InvertHandedness {
		t.Error("expected handedness inversion to be disabled")
	}
	if cfg.Texture.Filter != "catmullrom" {
		t.Errorf("expected filter 'catmullrom', got %s", cfg.Texture.Filter)
	}
	if cfg.Tools.TextureBC6 != "bc6enc {input} {output}" {
		t.Errorf("unexpected BC6 tool %q", cfg.Tools.TextureBC6)
	}
	if cfg.Tools.ShaderHLSL == "" {
		t.Error("expected default HLSL tool to survive partial tools section")
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "build.log" {
		t.Errorf("expected log file 'build.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
build:
  watch_interval: not a duration
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/cecompiler.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"hash fingerprint", func(c *Config) { c.Build.Fingerprint = "hash" }, false},
		{"unknown fingerprint", func(c *Config) { c.Build.Fingerprint = "md5" }, true},
		{"zero interval", func(c *Config) { c.Build.WatchInterval = 0 }, true},
		{"empty state dir", func(c *Config) { c.Build.StateDir = "" }, true},
		{"unknown filter", func(c *Config) { c.Texture.Filter = "nearest" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Setenv("HOME", tmpDir)

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "cecompiler.yaml")
	if err := os.WriteFile(configPath, []byte("build:\n  fingerprint: hash\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if path := findConfigFile(); path == "" {
		t.Error("expected to find cecompiler.yaml in current directory")
	}
}

func TestParseInterleaved(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		positional []string
		verify     func(*testing.T, *Flags)
	}{
		{
			name:       "flags after project",
			args:       []string{"game.ceproj", "--watch"},
			positional: []string{"game.ceproj"},
			verify: func(t *testing.T, f *Flags) {
				if !f.Watch {
					t.Error("expected watch to be set")
				}
			},
		},
		{
			name:       "pattern and valued flag",
			args:       []string{"-fingerprint", "hash", "game.ceproj", "*.obj", "-rebuild"},
			positional: []string{"game.ceproj", "*.obj"},
			verify: func(t *testing.T, f *Flags) {
				if f.Fingerprint != "hash" {
					t.Errorf("expected fingerprint hash, got %s", f.Fingerprint)
				}
				if !f.Rebuild {
					t.Error("expected rebuild to be set")
				}
			},
		},
		{
			name:       "equals form",
			args:       []string{"--interval=2s", "game.ceproj"},
			positional: []string{"game.ceproj"},
			verify: func(t *testing.T, f *Flags) {
				if f.Interval != 2*time.Second {
					t.Errorf("expected interval 2s, got %v", f.Interval)
				}
			},
		},
		{
			name:       "double dash",
			args:       []string{"--debug", "--", "-odd.ceproj"},
			positional: []string{"-odd.ceproj"},
			verify: func(t *testing.T, f *Flags) {
				if !f.Debug {
					t.Error("expected debug to be set")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Flags
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			f.Bind(fs)

			positional, err := f.Parse(fs, tt.args)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if len(positional) != len(tt.positional) {
				t.Fatalf("expected positional %v, got %v", tt.positional, positional)
			}
			for i := range positional {
				if positional[i] != tt.positional[i] {
					t.Errorf("positional[%d] = %s, want %s", i, positional[i], tt.positional[i])
				}
			}
			tt.verify(t, &f)
		})
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name   string
		flags  Flags
		verify func(*testing.T, *Config)
	}{
		{
			name:  "debug flag",
			flags: Flags{Debug: true},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
		},
		{
			name:  "platform flag",
			flags: Flags{Platform: "osx"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Build.Platform != "osx" {
					t.Errorf("expected platform osx, got %s", cfg.Build.Platform)
				}
			},
		},
		{
			name:  "zero interval keeps default",
			flags: Flags{},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Build.WatchInterval != time.Second {
					t.Errorf("expected default interval, got %v", cfg.Build.WatchInterval)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.flags.apply(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "cecompiler.yaml")

	yamlContent := `
build:
  fingerprint: hash
  watch_interval: 5s
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(&Flags{Config: configPath, Interval: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Interval should come from the flag, not the file.
	if cfg.Build.WatchInterval != 100*time.Millisecond {
		t.Errorf("expected interval 100ms from flag, got %v", cfg.Build.WatchInterval)
	}
	// Fingerprint comes from the file since no flag overrides it.
	if cfg.Build.Fingerprint != "hash" {
		t.Errorf("expected fingerprint hash from file, got %s", cfg.Build.Fingerprint)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cecompiler.yaml")

	cfg := Default()
	cfg.Build.Fingerprint = "hash"
	cfg.Build.WatchInterval = 500 * time.Millisecond
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "# cecompiler") {
		t.Errorf("expected header comment, got %q", data)
	}
	if !strings.Contains(string(data), "watch_interval: 500ms") {
		t.Errorf("expected duration written as text, got:\n%s", data)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.Build.Fingerprint != "hash" {
		t.Errorf("expected saved fingerprint hash, got %s", loaded.Build.Fingerprint)
	}
	if loaded.Build.WatchInterval != 500*time.Millisecond {
		t.Errorf("expected saved interval 500ms, got %v", loaded.Build.WatchInterval)
	}
}

func TestLoadRejectsUnknownPlatform(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	chdir(t, t.TempDir())

	flags := &Flags{Platform: "amiga"}
	if _, err := Load(flags); err == nil {
		t.Error("expected error for unknown platform")
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(orig); err != nil {
			t.Fatal(err)
		}
	})
}
