// Package config holds the dictation configuration: global options and the
// list of profiles. A Config is an explicit value handed to constructors;
// reloading produces a new value and the controller rebuilds its dependents.
package config

import (
	"slices"
	"strconv"
	"time"
)

type RecordingMode string

const (
	Continuous             RecordingMode = "continuous"
	VoiceActivityDetection RecordingMode = "voice_activity_detection"
	PressToToggle          RecordingMode = "press_to_toggle"
	HoldToRecord           RecordingMode = "hold_to_record"
)

// UsesVAD reports whether recordings in this mode stop on trailing silence.
func (m RecordingMode) UsesVAD() bool {
	return m == Continuous || m == VoiceActivityDetection
}

const (
	DefaultSampleRate        = 16000
	DefaultSilenceDurationMs = 900
	DefaultMinDurationMs     = 200
	DefaultVADAggressiveness = 2
	DefaultKeyPressDelay     = 0.005
)

type Config struct {
	GlobalOptions GlobalOptions `yaml:"global_options"`
	Profiles      []Profile     `yaml:"profiles" validate:"required,min=1,dive"`
}

type GlobalOptions struct {
	InputBackend string `yaml:"input_backend" validate:"oneof=auto evdev xhotkey stdin"`
	// ActiveProfiles lists the profiles to load. Empty means all of them.
	ActiveProfiles    []string `yaml:"active_profiles"`
	NoiseOnCompletion bool     `yaml:"noise_on_completion"`
	PrintToTerminal   bool     `yaml:"print_to_terminal"`
	MetricsAddr       string   `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
}

type Profile struct {
	Name             string           `yaml:"name" validate:"required"`
	ActivationKey    string           `yaml:"activation_key" validate:"required"`
	BackendType      string           `yaml:"backend_type" validate:"required,oneof=openai deepgram whisper_server whisper_cpp fake"`
	Backend          Options          `yaml:"backend"`
	RecordingOptions RecordingOptions `yaml:"recording_options"`
	PostProcessing   PostProcessing   `yaml:"post_processing"`
}

// UseStreaming reports whether the profile asks its backend for incremental
// results.
func (p Profile) UseStreaming() bool {
	return p.Backend.Bool("use_streaming", false)
}

type RecordingOptions struct {
	SampleRate        int           `yaml:"sample_rate" validate:"oneof=8000 16000 32000 48000"`
	SilenceDuration   int           `yaml:"silence_duration" validate:"min=30"`
	MinDuration       *int          `yaml:"min_duration" validate:"required,min=0"`
	RecordingMode     RecordingMode `yaml:"recording_mode" validate:"oneof=continuous voice_activity_detection press_to_toggle hold_to_record"`
	SoundDevice       string        `yaml:"sound_device"`
	VADAggressiveness *int          `yaml:"vad_aggressiveness" validate:"required,min=0,max=3"`
	Language          string        `yaml:"language"`
}

func (r RecordingOptions) Silence() time.Duration {
	return time.Duration(r.SilenceDuration) * time.Millisecond
}

func (r RecordingOptions) MinimumDuration() time.Duration {
	if r.MinDuration == nil {
		return DefaultMinDurationMs * time.Millisecond
	}
	return time.Duration(*r.MinDuration) * time.Millisecond
}

func (r RecordingOptions) VADLevel() int {
	if r.VADAggressiveness == nil {
		return DefaultVADAggressiveness
	}
	return *r.VADAggressiveness
}

type PostProcessing struct {
	EnabledScripts       []string `yaml:"enabled_scripts"`
	KeyboardSimulator    string   `yaml:"keyboard_simulator" validate:"oneof=uinput keybd ydotool dotool print"`
	WritingKeyPressDelay float64  `yaml:"writing_key_press_delay" validate:"min=0,max=1"`
}

func (p PostProcessing) KeyDelay() time.Duration {
	return time.Duration(p.WritingKeyPressDelay * float64(time.Second))
}

// Options carries backend specific settings. Values come straight from
// YAML, so numbers may be int or float64.
type Options map[string]any

func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case int:
			return strconv.Itoa(s)
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		}
	}
	return def
}

func (o Options) Float(key string, def float64) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func (o Options) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Active returns the profiles named in active_profiles, in file order.
func (c *Config) Active() []Profile {
	if len(c.GlobalOptions.ActiveProfiles) == 0 {
		return slices.Clone(c.Profiles)
	}
	var out []Profile
	for _, p := range c.Profiles {
		if slices.Contains(c.GlobalOptions.ActiveProfiles, p.Name) {
			out = append(out, p)
		}
	}
	return out
}

// Profile looks a profile up by name.
func (c *Config) Profile(name string) (Profile, bool) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// Default is used when no config file exists yet.
func Default() *Config {
	cfg := &Config{
		GlobalOptions: GlobalOptions{
			InputBackend:    "auto",
			PrintToTerminal: true,
		},
		Profiles: []Profile{{
			Name:          "default",
			ActivationKey: "ctrl+shift+space",
			BackendType:   "openai",
			Backend:       Options{"model": "whisper-1"},
			RecordingOptions: RecordingOptions{
				RecordingMode: PressToToggle,
			},
			PostProcessing: PostProcessing{
				EnabledScripts: []string{"add_trailing_space"},
			},
		}},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.GlobalOptions.InputBackend == "" {
		cfg.GlobalOptions.InputBackend = "auto"
	}
	for i := range cfg.Profiles {
		p := &cfg.Profiles[i]
		if p.Backend == nil {
			p.Backend = Options{}
		}
		r := &p.RecordingOptions
		if r.SampleRate == 0 {
			r.SampleRate = DefaultSampleRate
		}
		if r.SilenceDuration == 0 {
			r.SilenceDuration = DefaultSilenceDurationMs
		}
		if r.MinDuration == nil {
			v := DefaultMinDurationMs
			r.MinDuration = &v
		}
		if r.RecordingMode == "" {
			r.RecordingMode = PressToToggle
		}
		if r.VADAggressiveness == nil {
			v := DefaultVADAggressiveness
			r.VADAggressiveness = &v
		}
		if r.Language == "" {
			r.Language = "auto"
		}
		pp := &p.PostProcessing
		if pp.KeyboardSimulator == "" {
			pp.KeyboardSimulator = defaultSimulator()
		}
		if pp.WritingKeyPressDelay == 0 {
			pp.WritingKeyPressDelay = DefaultKeyPressDelay
		}
	}
}
