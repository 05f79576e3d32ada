package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Taxonomy struct {
		// Extension filter for documents inside the bundle.
		ArchiveExtension string `yaml:"archive_extension"`
		// Label used when a code has no label-linkbase entry. Nil means
		// the JSON output carries an explicit null.
		LabelFallback *string `yaml:"label_fallback"`
	} `yaml:"taxonomy"`
	Xport struct {
		// Character encodings tried in order when decoding text fields.
		Encodings []string `yaml:"encodings"`
	} `yaml:"xport"`
	MDRM struct {
		HTTPTimeout Duration `yaml:"http_timeout"`
	} `yaml:"mdrm"`
	UBPR struct {
		HTTPTimeout Duration `yaml:"http_timeout"`
	} `yaml:"ubpr"`
}

// Duration lets YAML carry either a Go duration string ("90s") or a number
// of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var secs int64
	if err := value.Decode(&secs); err != nil {
		return err
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	var cfg Config
	cfg.Taxonomy.ArchiveExtension = ".xml"
	cfg.Xport.Encodings = []string{"windows-1252", "latin-1"}
	cfg.MDRM.HTTPTimeout = Duration(60 * time.Second)
	cfg.UBPR.HTTPTimeout = Duration(60 * time.Second)
	return &cfg
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config, if present
	file, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// 3. Override with Environment Variables if present
	if ext := os.Getenv("CDRKIT_ARCHIVE_EXTENSION"); ext != "" {
		cfg.Taxonomy.ArchiveExtension = ext
	}
	if timeout := os.Getenv("CDRKIT_HTTP_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.MDRM.HTTPTimeout = Duration(d)
			cfg.UBPR.HTTPTimeout = Duration(d)
		} else if secs, err := strconv.Atoi(timeout); err == nil {
			cfg.MDRM.HTTPTimeout = Duration(time.Duration(secs) * time.Second)
			cfg.UBPR.HTTPTimeout = Duration(time.Duration(secs) * time.Second)
		}
	}

	if cfg.Taxonomy.ArchiveExtension == "" {
		cfg.Taxonomy.ArchiveExtension = ".xml"
	}
	if len(cfg.Xport.Encodings) == 0 {
		cfg.Xport.Encodings = []string{"windows-1252", "latin-1"}
	}
	if cfg.MDRM.HTTPTimeout <= 0 {
		cfg.MDRM.HTTPTimeout = Duration(60 * time.Second)
	}
	if cfg.UBPR.HTTPTimeout <= 0 {
		cfg.UBPR.HTTPTimeout = Duration(60 * time.Second)
	}

	return cfg, nil
}
