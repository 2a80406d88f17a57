package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"hotscribe/hotkey"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// DefaultPath is $XDG_CONFIG_HOME/hotscribe/config.yaml or the platform
// equivalent.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "hotscribe", "config.yaml"), nil
}

// Load reads and validates the YAML file at path. A missing file yields
// Default().
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes, fills defaults and validates.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if len(cfg.Profiles) == 0 {
		cfg.Profiles = Default().Profiles
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags first, then rules that span fields. All
// failures are joined into one error.
func Validate(cfg *Config) error {
	var errs []error

	if err := getValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("%s: %s", fieldPath(fe.Namespace()), describe(fe)))
		}
	}

	seen := make(map[string]bool)
	for i, p := range cfg.Profiles {
		if p.Name == "" {
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("profiles[%d].name: duplicate profile %q", i, p.Name))
		}
		seen[p.Name] = true
		if p.ActivationKey != "" {
			if _, err := hotkey.ParseCombination(p.ActivationKey); err != nil {
				errs = append(errs, fmt.Errorf("profiles[%d].activation_key: %w", i, err))
			}
		}
	}
	for _, name := range cfg.GlobalOptions.ActiveProfiles {
		if !seen[name] {
			errs = append(errs, fmt.Errorf("global_options.active_profiles: unknown profile %q", name))
		}
	}

	return errors.Join(errs...)
}

func fieldPath(ns string) string {
	_, rest, found := strings.Cut(ns, ".")
	if !found {
		return ns
	}
	return rest
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return fmt.Sprintf("%v is not one of: %s", fe.Value(), fe.Param())
	case "hostname_port":
		return "must be host:port"
	default:
		return "is invalid"
	}
}

// LoadEnv loads a .env file from dir into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

func defaultSimulator() string {
	if runtime.GOOS == "linux" {
		return "uinput"
	}
	return "keybd"
}
