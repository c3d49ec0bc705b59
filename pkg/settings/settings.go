// Package settings handles loading user configuration from
// ~/.trampolino/settings.json (or settings.yaml) and merging
// TRAMPOLINO_* environment overrides on top.
package settings

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/ai8future/chassis-go/v5/config"
	"gopkg.in/yaml.v3"

	"trampolino/pkg/colors"
)

const (
	ConfigDirName      = ".trampolino"
	ConfigFileName     = "settings.json"
	ConfigYAMLFileName = "settings.yaml"
)

// PreprocessDefaults toggles the optional DWI preprocessing nodes of recon.
type PreprocessDefaults struct {
	Denoise     bool   `json:"denoise" yaml:"denoise"`
	Degibbs     bool   `json:"degibbs" yaml:"degibbs"`
	BiasCorrect string `json:"bias_correct,omitempty" yaml:"bias_correct,omitempty"` // "", "ants" or "fsl"
}

// TrackDefaults holds default tckgen settings.
type TrackDefaults struct {
	Algorithm string `json:"algorithm,omitempty" yaml:"algorithm,omitempty"` // tckgen algorithm (iFOD2, SD_Stream, ...)
	Select    int    `json:"select,omitempty" yaml:"select,omitempty"`       // number of streamlines
}

// Settings holds all configuration for trampolino
type Settings struct {
	ResultsDir string             `json:"results_dir" yaml:"results_dir"`                       // DataSink base directory (supports ~ expansion)
	Container  string             `json:"container,omitempty" yaml:"container,omitempty"`       // subdirectory of ResultsDir receiving sinked files
	WorkDir    string             `json:"work_dir,omitempty" yaml:"work_dir,omitempty"`         // node working directories
	BinDir     string             `json:"bin_dir,omitempty" yaml:"bin_dir,omitempty"`           // MRtrix3 binaries, empty means PATH
	NProcs     int                `json:"nprocs,omitempty" yaml:"nprocs,omitempty"`             // concurrently running nodes
	NThreads   int                `json:"nthreads,omitempty" yaml:"nthreads,omitempty"`         // -nthreads passed to MRtrix3 binaries, 0 leaves it unset
	LogLevel   string             `json:"log_level,omitempty" yaml:"log_level,omitempty"`       // logrus level
	Preprocess PreprocessDefaults `json:"preprocess" yaml:"preprocess"`                         // recon preprocessing
	Track      TrackDefaults      `json:"track" yaml:"track"`                                   // tckgen defaults
	Labels     string             `json:"label_config,omitempty" yaml:"label_config,omitempty"` // default connectome lookup table
}

// EnvOverrides allows environment variables to override settings file values.
// All fields are optional (required:"false"), only non-empty values apply.
// Merge order: defaults < settings file < env vars < CLI flags.
type EnvOverrides struct {
	ResultsDir string `env:"TRAMPOLINO_RESULTS_DIR" required:"false"`
	WorkDir    string `env:"TRAMPOLINO_WORK_DIR" required:"false"`
	BinDir     string `env:"TRAMPOLINO_BIN_DIR" required:"false"`
	NProcs     string `env:"TRAMPOLINO_NPROCS" required:"false"`
	NThreads   string `env:"TRAMPOLINO_NTHREADS" required:"false"`
	Select     string `env:"TRAMPOLINO_TRACK_SELECT" required:"false"`
	Algorithm  string `env:"TRAMPOLINO_TRACK_ALGORITHM" required:"false"`
	LogLevel   string `env:"TRAMPOLINO_LOG_LEVEL" required:"false"`
}

// applyEnvOverrides loads environment variable overrides and merges them into settings.
func applyEnvOverrides(s *Settings) error {
	env := config.MustLoad[EnvOverrides]()

	if env.ResultsDir != "" {
		s.ResultsDir = expandTilde(env.ResultsDir)
	}
	if env.WorkDir != "" {
		s.WorkDir = expandTilde(env.WorkDir)
	}
	if env.BinDir != "" {
		s.BinDir = expandTilde(env.BinDir)
	}
	if env.Algorithm != "" {
		s.Track.Algorithm = env.Algorithm
	}
	if env.LogLevel != "" {
		s.LogLevel = env.LogLevel
	}
	for _, o := range []struct {
		name string
		raw  string
		dst  *int
	}{
		{"TRAMPOLINO_NPROCS", env.NProcs, &s.NProcs},
		{"TRAMPOLINO_NTHREADS", env.NThreads, &s.NThreads},
		{"TRAMPOLINO_TRACK_SELECT", env.Select, &s.Track.Select},
	} {
		if o.raw == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(o.raw))
		if err != nil || n < 0 {
			return fmt.Errorf("%s: want a non-negative integer, got %q", o.name, o.raw)
		}
		*o.dst = n
	}
	return nil
}

// GetConfigDir returns the path to the config directory (~/.trampolino)
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME") // fallback for legacy systems
	}
	return filepath.Join(home, ConfigDirName)
}

// GetConfigPath returns the settings file in use. settings.json wins
// over settings.yaml when both exist; the JSON path is returned when neither does.
func GetConfigPath() string {
	dir := GetConfigDir()
	jsonPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath
	}
	yamlPath := filepath.Join(dir, ConfigYAMLFileName)
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	return jsonPath
}

// expandTilde expands ~ to the user's home directory
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
		if home == "" {
			return path
		}
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// Load reads settings from path, choosing the decoder by extension.
func Load(path string) (*Settings, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("settings file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to stat settings file: %w", err)
	}

	// Warn if settings file is world-writable (security risk)
	mode := info.Mode().Perm()
	if mode&0002 != 0 {
		fmt.Fprintf(os.Stderr, "Warning: settings file %s is world-writable (mode %o). This is a security risk.\n", path, mode)
		fmt.Fprintf(os.Stderr, "Run: chmod 600 %s\n", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var settings Settings
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
		}
	}

	settings.ResultsDir = expandTilde(settings.ResultsDir)
	settings.WorkDir = expandTilde(settings.WorkDir)
	settings.BinDir = expandTilde(settings.BinDir)
	settings.Labels = expandTilde(settings.Labels)

	return &settings, nil
}

// GetDefaultSettings returns settings with sensible defaults
func GetDefaultSettings() *Settings {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return &Settings{
		ResultsDir: cwd,
		Container:  "tramp",
		WorkDir:    filepath.Join(os.TempDir(), "trampolino"),
		NProcs:     runtime.NumCPU(),
		LogLevel:   "info",
		Track: TrackDefaults{
			Algorithm: "iFOD2",
		},
	}
}

// fillDefaults copies defaults into any field the settings file left empty.
func (s *Settings) fillDefaults() {
	d := GetDefaultSettings()
	if s.ResultsDir == "" {
		s.ResultsDir = d.ResultsDir
	}
	if s.Container == "" {
		s.Container = d.Container
	}
	if s.WorkDir == "" {
		s.WorkDir = d.WorkDir
	}
	if s.NProcs <= 0 {
		s.NProcs = d.NProcs
	}
	if s.LogLevel == "" {
		s.LogLevel = d.LogLevel
	}
	if s.Track.Algorithm == "" {
		s.Track.Algorithm = d.Track.Algorithm
	}
}

// LoadWithFallback loads the settings file, falling back to defaults when it
// is missing, then applies environment overrides. The bool reports whether a
// settings file was read. An unreadable settings file or a malformed
// environment override is an error.
func LoadWithFallback() (*Settings, bool, error) {
	path := GetConfigPath()
	found := true
	s, err := Load(path)
	if err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, true, err
		}
		s, found = GetDefaultSettings(), false
	}
	s.fillDefaults()
	// TRAMPOLINO_* vars override the settings file
	if err := applyEnvOverrides(s); err != nil {
		return nil, found, err
	}
	return s, found, nil
}

// Validate rejects settings that no run could use.
func (s *Settings) Validate() error {
	switch s.Preprocess.BiasCorrect {
	case "", "ants", "fsl":
	default:
		return fmt.Errorf("preprocess.bias_correct must be ants or fsl, got %q", s.Preprocess.BiasCorrect)
	}
	if s.NProcs < 1 {
		return fmt.Errorf("nprocs must be at least 1, got %d", s.NProcs)
	}
	if s.Container == "" || strings.ContainsRune(s.Container, filepath.Separator) {
		return fmt.Errorf("container must be a single directory name, got %q", s.Container)
	}
	return nil
}

// SinkDir is the directory receiving pipeline results.
func (s *Settings) SinkDir() string {
	return filepath.Join(s.ResultsDir, s.Container)
}

// PrintSetupInstructions shows where settings are read from, with an
// example file.
func PrintSetupInstructions(w io.Writer) {
	fmt.Fprintf(w, "\n%s%sSettings:%s\n", colors.Bold, colors.Cyan, colors.Reset)
	fmt.Fprintf(w, "  trampolino reads %s%s%s (or %s).\n\n",
		colors.Magenta, filepath.Join(GetConfigDir(), ConfigFileName), colors.Reset, ConfigYAMLFileName)
	fmt.Fprintf(w, "    %s{\n", colors.Yellow)
	fmt.Fprintf(w, "      \"results_dir\": \"~/derivatives\",\n")
	fmt.Fprintf(w, "      \"bin_dir\": \"/opt/mrtrix3/bin\",\n")
	fmt.Fprintf(w, "      \"nprocs\": 4,\n")
	fmt.Fprintf(w, "      \"preprocess\": {\"denoise\": true, \"degibbs\": true},\n")
	fmt.Fprintf(w, "      \"track\": {\"algorithm\": \"iFOD2\", \"select\": 100000}\n")
	fmt.Fprintf(w, "    }%s\n\n", colors.Reset)
}
