// Package config reads koescroll settings through viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"koescroll/internal/narration"
	"koescroll/internal/reading"
	"koescroll/internal/tts"
	"koescroll/internal/voice"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	Name      = "koescroll"
	EnvPrefix = "KOESCROLL"
)

// Settings is a typed snapshot of the configuration.
type Settings struct {
	TTS     tts.Config
	Reading reading.Engine
	Voices  voice.Defaults

	Speed           float64
	LinePause       time.Duration
	DictionaryPath  string
	Prefetch        bool
	PrefetchWorkers int
	PrefetchRate    float64

	StorageDir string
	HotTTL     time.Duration

	LogLevel string
}

// SetDefaults registers defaults on the global viper instance.
func SetDefaults() {
	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tts.provider", tts.ProviderAuto.String()) // Auto-select best engine
	v.SetDefault("tts.fallback", tts.ProviderPlatform.String())
	v.SetDefault("tts.timeout", tts.DefaultTimeout)
	v.SetDefault("tts.local_voice", "")
	v.SetDefault("tts.breaker.threshold", 3)
	v.SetDefault("tts.breaker.cooldown", 30*time.Second)
	v.SetDefault("tts.elevenlabs.api_key", "")
	v.SetDefault("tts.elevenlabs.model", tts.DefaultElevenLabsModel)
	v.SetDefault("tts.elevenlabs.base_url", tts.DefaultElevenLabsURL)
	v.SetDefault("tts.google.language", tts.DefaultGoogleLanguage)
	v.SetDefault("tts.google.voice", tts.DefaultGoogleVoice)

	v.SetDefault("narration.speed", 1.0)
	v.SetDefault("narration.pause", narration.DefaultLinePause)
	v.SetDefault("narration.dictionary", "")
	v.SetDefault("narration.prefetch", true)
	v.SetDefault("narration.prefetch_workers", narration.DefaultPrefetchWorkers)
	v.SetDefault("narration.prefetch_rate", 2.0)

	v.SetDefault("reading.panel_gap", reading.DefaultPanelGap)
	v.SetDefault("reading.row_tolerance", reading.DefaultRowTolerance)

	v.SetDefault("storage.dir", defaultStorageDir())
	v.SetDefault("storage.hot_ttl", 10*time.Minute)

	v.SetDefault("voices.default", voice.DefaultVoice)
	v.SetDefault("log.level", "info")
}

// Init points viper at the config file and the environment. A missing file
// is not an error.
func Init(cfgFile string) error {
	return initViper(viper.GetViper(), cfgFile)
}

func initViper(v *viper.Viper, cfgFile string) error {
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/." + Name)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			logrus.Debug("No config file found, using defaults")
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	logrus.WithField("file", v.ConfigFileUsed()).Debug("Loaded config")
	return nil
}

// Load returns the current settings from the global viper instance.
func Load() Settings {
	return load(viper.GetViper())
}

func load(v *viper.Viper) Settings {
	defaults := voice.StandardDefaults().Merge(voice.Defaults{
		Archetypes: v.GetStringMapString("voices.archetypes"),
		Categories: v.GetStringMapString("voices.categories"),
		Fallback:   v.GetString("voices.default"),
	})

	return Settings{
		TTS: tts.Config{
			Provider:   v.GetString("tts.provider"),
			Fallback:   v.GetString("tts.fallback"),
			Timeout:    v.GetDuration("tts.timeout"),
			LocalVoice: v.GetString("tts.local_voice"),
			ElevenLabs: tts.ElevenLabsConfig{
				APIKey:  v.GetString("tts.elevenlabs.api_key"),
				Model:   v.GetString("tts.elevenlabs.model"),
				BaseURL: v.GetString("tts.elevenlabs.base_url"),
				Timeout: v.GetDuration("tts.timeout"),
			},
			Google: tts.GoogleConfig{
				Language:     v.GetString("tts.google.language"),
				DefaultVoice: v.GetString("tts.google.voice"),
				VoiceMap:     v.GetStringMapString("tts.google.voices"),
			},
			BreakerThreshold: v.GetInt("tts.breaker.threshold"),
			BreakerCooldown:  v.GetDuration("tts.breaker.cooldown"),
		},
		Reading: reading.Engine{
			PanelGap:     v.GetFloat64("reading.panel_gap"),
			RowTolerance: v.GetFloat64("reading.row_tolerance"),
		},
		Voices:          defaults,
		Speed:           narration.ClampSpeed(v.GetFloat64("narration.speed")),
		LinePause:       v.GetDuration("narration.pause"),
		DictionaryPath:  v.GetString("narration.dictionary"),
		Prefetch:        v.GetBool("narration.prefetch"),
		PrefetchWorkers: v.GetInt("narration.prefetch_workers"),
		PrefetchRate:    v.GetFloat64("narration.prefetch_rate"),
		StorageDir:      v.GetString("storage.dir"),
		HotTTL:          v.GetDuration("storage.hot_ttl"),
		LogLevel:        v.GetString("log.level"),
	}
}

// Set stores a single value and writes the config file back, creating it in
// $HOME/.koescroll when none was loaded.
func Set(key string, value interface{}) (string, error) {
	viper.Set(key, value)
	path := viper.ConfigFileUsed()
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to locate home directory: %w", err)
		}
		dir := filepath.Join(home, "."+Name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create config directory: %w", err)
		}
		path = filepath.Join(dir, Name+".yaml")
	}
	if err := viper.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return path, nil
}

func defaultStorageDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, Name)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "."+Name, "cache")
	}
	return "cache"
}
