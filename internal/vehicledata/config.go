package vehicledata

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/vehicle-data/internal/cost"
	"github.com/sells-group/vehicle-data/internal/model"
)

// Config routes each category to a provider and sets freshness windows.
type Config struct {
	Categories       map[model.DataType]CategoryConfig `yaml:"categories"`
	ImageTTLHours    int                               `yaml:"image_ttl_hours"`
	MOTTTLHours      int                               `yaml:"mot_ttl_hours"`
	DefaultDataTypes []model.DataType                  `yaml:"default_data_types"`
}

// CategoryConfig configures one data category.
type CategoryConfig struct {
	Provider string `yaml:"provider"`
	TTLHours int    `yaml:"ttl_hours,omitempty"` // 0 = no age limit
}

const (
	defaultImageTTL = 24 * time.Hour
	defaultMOTTTL   = 24 * time.Hour
)

// DefaultConfig returns the standard routing: DVLA for basic, DVSA for MOT
// and SWS for everything else.
func DefaultConfig() *Config {
	return &Config{
		Categories: map[model.DataType]CategoryConfig{
			model.DataTypeBasic:     {Provider: cost.ProviderDVLA},
			model.DataTypeTechnical: {Provider: cost.ProviderSWS},
			model.DataTypeImage:     {Provider: cost.ProviderSWS},
			model.DataTypeMOT:       {Provider: cost.ProviderMOT},
			model.DataTypeService:   {Provider: cost.ProviderSWS},
		},
		ImageTTLHours:    24,
		MOTTTLHours:      24,
		DefaultDataTypes: []model.DataType{model.DataTypeBasic},
	}
}

// LoadConfig reads routing config from a YAML file with a top-level
// "routing" key. Categories missing from the file keep their default route.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vehicledata: read config %s", path)
	}
	return ParseConfig(data)
}

// ParseConfig parses routing config from YAML bytes.
func ParseConfig(data []byte) (*Config, error) {
	var wrapper struct {
		Routing Config `yaml:"routing"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "vehicledata: parse config")
	}

	cfg := DefaultConfig()
	parsed := wrapper.Routing
	for dt, cc := range parsed.Categories {
		if !dt.Valid() {
			return nil, eris.Errorf("vehicledata: unknown category %q in config", dt)
		}
		if cc.Provider == "" {
			cc.Provider = cfg.Categories[dt].Provider
		}
		cfg.Categories[dt] = cc
	}
	if parsed.ImageTTLHours > 0 {
		cfg.ImageTTLHours = parsed.ImageTTLHours
	}
	if parsed.MOTTTLHours > 0 {
		cfg.MOTTTLHours = parsed.MOTTTLHours
	}
	if len(parsed.DefaultDataTypes) > 0 {
		for _, dt := range parsed.DefaultDataTypes {
			if !dt.Valid() {
				return nil, eris.Errorf("vehicledata: unknown default data type %q", dt)
			}
		}
		cfg.DefaultDataTypes = parsed.DefaultDataTypes
	}
	return cfg, nil
}

// ProviderFor returns the provider routed for dataType, or "" if none.
func (c *Config) ProviderFor(dataType model.DataType) string {
	return c.Categories[dataType].Provider
}

// TTL returns the maximum age for a category, or 0 for no limit.
func (c *Config) TTL(dataType model.DataType) time.Duration {
	return time.Duration(c.Categories[dataType].TTLHours) * time.Hour
}

// ImageTTL is applied to images whose provider states no expiry.
func (c *Config) ImageTTL() time.Duration {
	if c.ImageTTLHours <= 0 {
		return defaultImageTTL
	}
	return time.Duration(c.ImageTTLHours) * time.Hour
}

// MOTTTL is how long a fetched MOT history is served from cache.
func (c *Config) MOTTTL() time.Duration {
	if c.MOTTTLHours <= 0 {
		return defaultMOTTTL
	}
	return time.Duration(c.MOTTTLHours) * time.Hour
}
