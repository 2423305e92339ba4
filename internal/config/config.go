package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"kokuban/internal/datasync"
	"kokuban/internal/voice/manifest"
	"kokuban/internal/voice/tts"
)

const EnvPrefix = "KOKUBAN"

type Config struct {
	TTS     TTS     `mapstructure:"tts"`
	Paths   Paths   `mapstructure:"paths"`
	Editor  Editor  `mapstructure:"editor"`
	Actions Actions `mapstructure:"actions"`
	Log     Log     `mapstructure:"log"`
}

type TTS struct {
	Type     string `mapstructure:"type"`
	Voicevox struct {
		Host string `mapstructure:"host"`
		// Timeout per request; 0 waits as long as the run's context allows
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"voicevox"`
	Google struct {
		Language string `mapstructure:"language"`
		Voice    string `mapstructure:"voice"`
	} `mapstructure:"google"`
	ESpeak struct {
		Voice string `mapstructure:"voice"`
	} `mapstructure:"espeak"`
}

// Paths are relative to Root unless absolute
type Paths struct {
	Root       string `mapstructure:"root"`
	Script     string `mapstructure:"script"`
	Characters string `mapstructure:"characters"`
	Defaults   string `mapstructure:"defaults"`
	Settings   string `mapstructure:"settings"`
	Public     string `mapstructure:"public"`
	Voices     string `mapstructure:"voices"`
	Images     string `mapstructure:"images"`
	Generated  string `mapstructure:"generated"`
}

type Editor struct {
	Addr string `mapstructure:"addr"`
}

type Actions struct {
	// BuildCommand renders the video; it runs in Root
	BuildCommand []string `mapstructure:"build_command"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func SetDefaults() {
	viper.SetDefault("tts.type", "voicevox")
	viper.SetDefault("tts.voicevox.host", "http://localhost:50021")
	viper.SetDefault("tts.voicevox.timeout", 0)
	viper.SetDefault("tts.google.language", "ja-JP")
	viper.SetDefault("tts.google.voice", "ja-JP-Neural2-B")
	viper.SetDefault("tts.espeak.voice", "ja")

	viper.SetDefault("paths.root", ".")
	viper.SetDefault("paths.script", "config/script.yaml")
	viper.SetDefault("paths.characters", "config/characters.yaml")
	viper.SetDefault("paths.defaults", "config/defaults.yaml")
	viper.SetDefault("paths.settings", "video-settings.yaml")
	viper.SetDefault("paths.public", "public")
	viper.SetDefault("paths.voices", "public/voices")
	viper.SetDefault("paths.images", "public/images")
	viper.SetDefault("paths.generated", "generated")

	viper.SetDefault("editor.addr", ":3002")
	viper.SetDefault("actions.build_command", []string{"npm", "run", "build"})

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

// BindEnv lets KOKUBAN_TTS_TYPE and friends override the file
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load unmarshals the merged viper configuration
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Log.Apply(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Apply configures the global logrus logger
func (l Log) Apply() error {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	logrus.SetLevel(level)

	switch l.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", l.Format)
	}

	logrus.SetOutput(os.Stderr)
	return nil
}

func (p Paths) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Root, path)
}

func (p Paths) ScriptFile() string     { return p.resolve(p.Script) }
func (p Paths) CharactersFile() string { return p.resolve(p.Characters) }
func (p Paths) DefaultsFile() string   { return p.resolve(p.Defaults) }
func (p Paths) SettingsFile() string   { return p.resolve(p.Settings) }
func (p Paths) PublicDir() string      { return p.resolve(p.Public) }
func (p Paths) VoicesDir() string      { return p.resolve(p.Voices) }
func (p Paths) ImagesDir() string      { return p.resolve(p.Images) }
func (p Paths) GeneratedDir() string   { return p.resolve(p.Generated) }

// Sync returns the locations used by the sync steps
func (p Paths) Sync() datasync.Paths {
	return datasync.Paths{
		Script:     p.ScriptFile(),
		Characters: p.CharactersFile(),
		Defaults:   p.DefaultsFile(),
		Settings:   p.SettingsFile(),
		Durations:  filepath.Join(p.VoicesDir(), manifest.DurationsFileName),
		OutputDir:  p.GeneratedDir(),
	}
}

// EngineConfig maps the tts section onto the engine factory config
func (t TTS) EngineConfig() tts.Config {
	return tts.Config{
		Type:         t.Type,
		Host:         t.Voicevox.Host,
		Timeout:      t.Voicevox.Timeout,
		LanguageCode: t.Google.Language,
		Voice:        t.Google.Voice,
		ESpeakVoice:  t.ESpeak.Voice,
	}
}
