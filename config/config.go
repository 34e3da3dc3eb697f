package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/basicflag"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"github.com/nvr-ai/mri-detect/artifact"
	"github.com/nvr-ai/mri-detect/models"
)

// EnvPrefix prefixes environment overrides, e.g. MRI_MODEL_PATH for model.path.
const EnvPrefix = "MRI_"

// ModelConfig locates the model artifact.
type ModelConfig struct {
	Path        string `koanf:"path"`
	Locator     string `koanf:"locator"`
	URLTemplate string `koanf:"urltemplate"`
	SHA256      string `koanf:"sha256"`
}

// DownloadConfig bounds the artifact download.
type DownloadConfig struct {
	Timeout  time.Duration `koanf:"timeout"`
	LockWait time.Duration `koanf:"lockwait"`
}

// DetectorConfig configures inference.
type DetectorConfig struct {
	InputSize   int      `koanf:"inputsize"`
	Confidence  float32  `koanf:"confidence"`
	IoU         float32  `koanf:"iou"`
	Classes     []string `koanf:"classes"`
	Provider    string   `koanf:"provider"`
	LibraryPath string   `koanf:"librarypath"`
	Threads     int      `koanf:"threads"`
}

// RenderConfig configures the display images.
type RenderConfig struct {
	Scale float64 `koanf:"scale"`
}

// ServerConfig holds process-wide switches.
type ServerConfig struct {
	Debug bool `koanf:"debug"`
}

// AppConfig defines
type AppConfig struct {
	Model    ModelConfig    `koanf:"model"`
	Download DownloadConfig `koanf:"download"`
	Detector DetectorConfig `koanf:"detector"`
	Render   RenderConfig   `koanf:"render"`
	Server   ServerConfig   `koanf:"server"`
}

// Config - Global variable to export
var Config AppConfig

// defaults mirror the brain tumor model the app ships with.
var defaults = map[string]any{
	"model.path":          "best.onnx",
	"model.locator":       "1jbiP_jZbMEWMSPnmVCL_UnW6dxWmYGeD",
	"model.urltemplate":   artifact.DefaultURLTemplate,
	"download.timeout":    artifact.DefaultTimeout.String(),
	"download.lockwait":   "10m",
	"detector.inputsize":  640,
	"detector.confidence": 0.25,
	"detector.iou":        0.7,
	"detector.classes":    append([]string(nil), models.BrainTumorClasses...),
	"detector.provider":   "cpu",
	"render.scale":        2.0,
	"server.debug":        false,
}

// Init - Assign global config to decoded config struct
func Init(filePath string, flags *flag.FlagSet) error {
	cfg, err := Load(filePath, flags)
	if err != nil {
		return err
	}
	Config = *cfg
	return nil
}

// Load builds the configuration from, in increasing precedence: defaults,
// the YAML file at filePath (skipped when empty), a .env file in the working
// directory, MRI_* environment variables and flags named after a config key
// (e.g. -render.scale) that were set on the command line.
//
// Arguments:
//   - filePath: The YAML file, or "" for none.
//   - flags: A parsed flag set, or nil.
//
// Returns:
//   - *AppConfig: The validated configuration.
//   - error: An error if a source cannot be read or validation fails.
func Load(filePath string, flags *flag.FlagSet) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, err
	}

	if filePath != "" {
		if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config file %s: %w", filePath, err)
		}
	}

	// Variables already in the environment win over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env: %w", err)
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
		if strings.Contains(v, ",") {
			return key, strings.Split(strings.TrimSpace(v), ",")
		}
		return key, v
	}), nil); err != nil {
		return nil, err
	}

	if flags != nil {
		set := map[string]bool{}
		flags.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if err := k.Load(basicflag.ProviderWithValue(flags, ".", func(key, value string) (string, any) {
			if !set[key] || !k.Exists(key) {
				return "", nil
			}
			if strings.Contains(value, ",") {
				return key, strings.Split(value, ",")
			}
			return key, value
		}), nil); err != nil {
			return nil, err
		}
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfig rejects configurations the pipeline cannot run with.
func ValidateConfig(cfg *AppConfig) error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(cfg.Model.Path != "", "model.path is required")
	check(cfg.Model.Locator != "", "model.locator is required")
	check(strings.Count(cfg.Model.URLTemplate, "%s") == 1, "model.urltemplate must contain exactly one %%s")
	check(cfg.Model.SHA256 == "" || len(cfg.Model.SHA256) == 64, "model.sha256 must be a hex sha256 digest")
	check(cfg.Download.Timeout > 0, "download.timeout must be positive")
	check(cfg.Download.LockWait >= 0, "download.lockwait must not be negative")
	check(cfg.Detector.InputSize > 0 && cfg.Detector.InputSize%32 == 0,
		"detector.inputsize must be a positive multiple of 32, got %d", cfg.Detector.InputSize)
	check(cfg.Detector.Confidence > 0 && cfg.Detector.Confidence <= 1,
		"detector.confidence must be in (0,1], got %v", cfg.Detector.Confidence)
	check(cfg.Detector.IoU > 0 && cfg.Detector.IoU <= 1,
		"detector.iou must be in (0,1], got %v", cfg.Detector.IoU)
	check(len(cfg.Detector.Classes) > 0, "detector.classes is required")
	check(cfg.Detector.Threads >= 0, "detector.threads must not be negative")
	switch cfg.Detector.Provider {
	case "cpu", "coreml", "cuda", "openvino":
	default:
		check(false, "detector.provider %q is not one of cpu, coreml, cuda, openvino", cfg.Detector.Provider)
	}
	check(cfg.Render.Scale > 0, "render.scale must be positive, got %v", cfg.Render.Scale)

	return errors.Join(errs...)
}
