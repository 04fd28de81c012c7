package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/nisidabay/streamlit-video-manager/internal/model"
)

// FileName is the project configuration file name searched for in the
// project directory.
const FileName = "svm.json"

// Default values applied wherever svm.json omits a setting. These mirror
// the hardcoded values of the original run_indexer.sh / run_app.sh scripts.
const (
	DefaultEnvDir       = ".venv"
	DefaultRequirements = "requirements.txt"
	DefaultImage        = "python:3.12-slim"
	DefaultIndexerEntry = "indexer.py"
	DefaultAppEntry     = "streamlit_app.py"
	DefaultAppPort      = 8501
	DefaultAppAddress   = "localhost"
)

// defaultPythonCandidates are the interpreter names probed, in order,
// when svm.json does not name one explicitly. "python3" first because
// on many distributions plain "python" is either absent or Python 2.
var defaultPythonCandidates = []string{"python3", "python"}

// rawConfig is the raw JSON structure of svm.json. Only the fields svm
// understands are declared; other fields are silently ignored during
// parsing, matching how devcontainer-style tooling treats unknown keys.
//
// Python uses interface{} because the field accepts either a single
// string or an array of candidate names.
type rawConfig struct {
	EnvDir       string      `json:"envDir,omitempty"`
	Python       interface{} `json:"python,omitempty"`
	Requirements string      `json:"requirements,omitempty"`
	Backend      string      `json:"backend,omitempty"`
	Image        string      `json:"image,omitempty"`
	Indexer      *rawIndexer `json:"indexer,omitempty"`
	App          *rawApp     `json:"app,omitempty"`
}

// rawIndexer is the "indexer" object in svm.json.
type rawIndexer struct {
	Script string `json:"script,omitempty"`
}

// rawApp is the "app" object in svm.json.
//
// Headless and AutoPort are pointers so that an omitted field can be
// distinguished from an explicit false.
type rawApp struct {
	Script   string `json:"script,omitempty"`
	Port     int    `json:"port,omitempty"`
	Address  string `json:"address,omitempty"`
	Headless *bool  `json:"headless,omitempty"`
	AutoPort *bool  `json:"autoPort,omitempty"`
}

// Config is the fully resolved project configuration: raw values merged
// with defaults and validated. All paths are kept relative to the project
// directory; callers resolve them against Config.ProjectDir as needed.
type Config struct {
	// ProjectDir is the directory the configuration was loaded from
	// (or the directory Default was asked about).
	ProjectDir string

	// EnvDir is the isolated environment location, relative to ProjectDir.
	EnvDir string

	// PythonCandidates are interpreter names probed in order when
	// provisioning. The first one found on PATH wins.
	PythonCandidates []string

	// Requirements is the dependency manifest path, relative to ProjectDir.
	Requirements string

	// Backend selects the environment mechanism (venv or container).
	Backend model.Backend

	// Image is the base image for the container backend. Ignored by the
	// venv backend.
	Image string

	// IndexerScript is the batch entry point run by "svm index".
	IndexerScript string

	// AppScript is the server entry point run by "svm app" via
	// "streamlit run".
	AppScript string

	// AppPort is the TCP port the app server binds.
	AppPort int

	// AppAddress is the address the app server binds.
	AppAddress string

	// AppHeadless suppresses Streamlit's browser auto-open when true.
	AppHeadless bool

	// AppAutoPort allows the app command to pick the next free port when
	// the configured one is taken, instead of failing.
	AppAutoPort bool
}

// Default returns the configuration used when no svm.json exists in the
// project directory.
func Default(projectDir string) *Config {
	return &Config{
		ProjectDir:       projectDir,
		EnvDir:           DefaultEnvDir,
		PythonCandidates: append([]string(nil), defaultPythonCandidates...),
		Requirements:     DefaultRequirements,
		Backend:          model.BackendVenv,
		Image:            DefaultImage,
		IndexerScript:    DefaultIndexerEntry,
		AppScript:        DefaultAppEntry,
		AppPort:          DefaultAppPort,
		AppAddress:       DefaultAppAddress,
		AppHeadless:      true,
		AppAutoPort:      false,
	}
}

// Load resolves the configuration for a project directory.
//
// If svm.json does not exist, the defaults are returned — a missing config
// file is the normal case, not an error. If the file exists but cannot be
// parsed or fails validation, a CLIError with ExitConfigInvalid is
// returned so the CLI exits with code 2.
func Load(projectDir string) (*Config, error) {
	path := filepath.Join(projectDir, FileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(projectDir), nil
		}
		return nil, model.WrapCLIError(
			model.ExitConfigInvalid,
			fmt.Sprintf("failed to read %s", path),
			err,
		)
	}

	// Strip JSONC comments (// and /* */) and trailing commas before
	// parsing, so the config file can be annotated like devcontainer.json.
	cleanJSON := jsonc.ToJSON(data)

	var raw rawConfig
	if err := json.Unmarshal(cleanJSON, &raw); err != nil {
		return nil, model.WrapCLIError(
			model.ExitConfigInvalid,
			fmt.Sprintf("invalid JSON in %s", path),
			err,
		)
	}

	cfg, err := resolve(projectDir, &raw)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitConfigInvalid,
			fmt.Sprintf("invalid configuration in %s", path),
			err,
		)
	}

	return cfg, nil
}

// resolve merges raw values over the defaults and validates the result.
func resolve(projectDir string, raw *rawConfig) (*Config, error) {
	cfg := Default(projectDir)

	if raw.EnvDir != "" {
		cfg.EnvDir = raw.EnvDir
	}
	if raw.Requirements != "" {
		cfg.Requirements = raw.Requirements
	}
	if raw.Image != "" {
		cfg.Image = raw.Image
	}

	if raw.Backend != "" {
		backend, err := model.ParseBackend(raw.Backend)
		if err != nil {
			return nil, err
		}
		cfg.Backend = backend
	}

	candidates, err := parsePythonField(raw.Python)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		cfg.PythonCandidates = candidates
	}

	if raw.Indexer != nil && raw.Indexer.Script != "" {
		cfg.IndexerScript = raw.Indexer.Script
	}

	if raw.App != nil {
		if raw.App.Script != "" {
			cfg.AppScript = raw.App.Script
		}
		if raw.App.Port != 0 {
			cfg.AppPort = raw.App.Port
		}
		if raw.App.Address != "" {
			cfg.AppAddress = raw.App.Address
		}
		if raw.App.Headless != nil {
			cfg.AppHeadless = *raw.App.Headless
		}
		if raw.App.AutoPort != nil {
			cfg.AppAutoPort = *raw.App.AutoPort
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parsePythonField normalizes the "python" field, which may be a single
// string or an array of strings in svm.json.
func parsePythonField(v interface{}) ([]string, error) {
	switch value := v.(type) {
	case nil:
		return nil, nil
	case string:
		if value == "" {
			return nil, nil
		}
		return []string{value}, nil
	case []interface{}:
		candidates := make([]string, 0, len(value))
		for _, item := range value {
			s, ok := item.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("python: array entries must be non-empty strings, got %v", item)
			}
			candidates = append(candidates, s)
		}
		return candidates, nil
	default:
		return nil, fmt.Errorf("python: must be a string or an array of strings, got %T", v)
	}
}

// Validate checks the resolved configuration for values that cannot work.
// It returns a plain error; Load wraps it into a CLIError with the
// config-invalid exit code.
func (c *Config) Validate() error {
	if c.EnvDir == "" {
		return fmt.Errorf("envDir must not be empty")
	}
	if filepath.IsAbs(c.EnvDir) {
		// Keeping the environment inside the project directory is what the
		// original scripts did; an absolute envDir is almost always a
		// misconfiguration (e.g., "/venv" wiping into the filesystem root).
		return fmt.Errorf("envDir must be relative to the project directory, got %q", c.EnvDir)
	}
	if c.Requirements == "" {
		return fmt.Errorf("requirements must not be empty")
	}
	if !c.Backend.IsValid() {
		return fmt.Errorf("invalid backend %q", c.Backend)
	}
	if c.Backend == model.BackendContainer && c.Image == "" {
		return fmt.Errorf("image must not be empty with the container backend")
	}
	if len(c.PythonCandidates) == 0 {
		return fmt.Errorf("python must name at least one interpreter")
	}
	if c.IndexerScript == "" {
		return fmt.Errorf("indexer.script must not be empty")
	}
	if c.AppScript == "" {
		return fmt.Errorf("app.script must not be empty")
	}
	if c.AppPort < 1 || c.AppPort > 65535 {
		return fmt.Errorf("app.port %d out of range (1-65535)", c.AppPort)
	}
	if c.AppAddress == "" {
		return fmt.Errorf("app.address must not be empty")
	}
	return nil
}

// EnvPath returns the absolute environment directory path.
func (c *Config) EnvPath() string {
	return filepath.Join(c.ProjectDir, c.EnvDir)
}

// RequirementsPath returns the absolute dependency manifest path.
func (c *Config) RequirementsPath() string {
	return filepath.Join(c.ProjectDir, c.Requirements)
}

// IndexerPath returns the absolute batch entry point path.
func (c *Config) IndexerPath() string {
	return filepath.Join(c.ProjectDir, c.IndexerScript)
}

// AppPath returns the absolute server entry point path.
func (c *Config) AppPath() string {
	return filepath.Join(c.ProjectDir, c.AppScript)
}

// ContainerName returns the name used for the container backend's runtime
// container. It is derived from the project directory base name so that
// two projects on the same host get distinct containers.
func (c *Config) ContainerName() string {
	return "svm-" + filepath.Base(c.ProjectDir)
}
