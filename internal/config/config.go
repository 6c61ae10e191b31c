// Package config handles compiler tool configuration loading and management.
package config

import "time"

// Config holds all compiler settings.
type Config struct {
	Build   BuildConfig   `yaml:"build"`
	Mesh    MeshConfig    `yaml:"mesh"`
	Texture TextureConfig `yaml:"texture"`
	Tools   ToolsConfig   `yaml:"tools"`
	Logging LoggingConfig `yaml:"logging"`
}

// BuildConfig holds incremental build settings.
type BuildConfig struct {
	Fingerprint   string        `yaml:"fingerprint"`    // "timestamp" or "hash"
	WatchInterval time.Duration `yaml:"watch_interval"` // Poll interval in watch mode
	ToolTimeout   time.Duration `yaml:"tool_timeout"`   // Upper bound for one external tool run
	StateDir      string        `yaml:"state_dir"`      // Hidden directory next to the project file
	Platform      string        `yaml:"platform"`       // Overrides the project's TargetPlatform
}

// MeshConfig holds mesh import settings.
type MeshConfig struct {
	InvertHandedness bool `yaml:"invert_handedness"`
}

// TextureConfig holds texture compiler settings.
type TextureConfig struct {
	Filter string `yaml:"filter"` // Mip resampling: lanczos, catmullrom or linear
}

// ToolsConfig holds command lines of external toolchains.
// Commands may use {input}, {output}, {entry}, {stage}, {width} and
// {height} placeholders.
type ToolsConfig struct {
	ShaderHLSL  string `yaml:"shader_hlsl"`
	ShaderMetal string `yaml:"shader_metal"`
	ShaderGLSL  string `yaml:"shader_glsl"`
	TextureBC6  string `yaml:"texture_bc6"`
	FBXImport   string `yaml:"fbx_import"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Build: BuildConfig{
			Fingerprint:   "timestamp",
			WatchInterval: time.Second,
			ToolTimeout:   2 * time.Minute,
			StateDir:      ".coreengine",
		},
		Mesh: MeshConfig{
			InvertHandedness: true,
		},
		Texture: TextureConfig{
			Filter: "lanczos",
		},
		Tools: ToolsConfig{
			ShaderHLSL:  "dxc {input} -T {stage}_6_0 -E {entry} -Fo {output}",
			ShaderMetal: "xcrun -sdk macosx metal -c {input} -o {output}",
			ShaderGLSL:  "glslangValidator -V -S {stage} -e {entry} --source-entrypoint {entry} {input} -o {output}",
			TextureBC6:  "",
			FBXImport:   "FBX2glTF --binary --input {input} --output {output}",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
