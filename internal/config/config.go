package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// dateLayout is the format period boundaries use in config files
const dateLayout = "2006-01-02"

// Config represents the complete application configuration
type Config struct {
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
	Load    LoadConfig    `yaml:"load" envconfig:"LOAD"`
	Dates   DatesConfig   `yaml:"dates" envconfig:"DATES"`
	Runner  RunnerConfig  `yaml:"runner" envconfig:"RUNNER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir       string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	ResultsDir    string `yaml:"results_dir" envconfig:"RESULTS_DIR" validate:"required"`
	StandardDir   string `yaml:"standard_dir" envconfig:"STANDARD_DIR"`
	CellsFile     string `yaml:"cells_file" envconfig:"CELLS_FILE" validate:"required"`
	DistancesFile string `yaml:"distances_file" envconfig:"DISTANCES_FILE"`
	IncidenceFile string `yaml:"incidence_file" envconfig:"INCIDENCE_FILE"`
	HomesFile     string `yaml:"homes_file" envconfig:"HOMES_FILE"`
}

// LoadConfig describes the raw CDR file layout
type LoadConfig struct {
	Separator string `yaml:"separator" envconfig:"SEPARATOR" validate:"required,len=1"`
	Header    bool   `yaml:"header" envconfig:"HEADER"`
	Datemask  string `yaml:"datemask" envconfig:"DATEMASK" validate:"required"`
	Sample    int    `yaml:"sample" envconfig:"SAMPLE" validate:"gte=0"`
	Seed      int64  `yaml:"seed" envconfig:"SEED"`
}

// DatesConfig bounds the analysis periods. The weeks period should cover
// whole calendar weeks so that weekly and monthly indicators see complete
// buckets.
type DatesConfig struct {
	StartDate      string `yaml:"start_date" envconfig:"START_DATE" validate:"required"`
	EndDate        string `yaml:"end_date" envconfig:"END_DATE" validate:"required"`
	WeeksStartDate string `yaml:"weeks_start_date" envconfig:"WEEKS_START_DATE"`
	WeeksEndDate   string `yaml:"weeks_end_date" envconfig:"WEEKS_END_DATE"`
	WindowStart    string `yaml:"window_start" envconfig:"WINDOW_START"`
	WindowEnd      string `yaml:"window_end" envconfig:"WINDOW_END"`
}

// RunnerConfig controls indicator execution
type RunnerConfig struct {
	MaxConcurrency     int  `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" validate:"gte=1"`
	ReuseHomeLocations bool `yaml:"reuse_home_locations" envconfig:"REUSE_HOME_LOCATIONS"`
	IncludeIncidence   bool `yaml:"include_incidence" envconfig:"INCLUDE_INCIDENCE"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:       "data",
			ResultsDir:    "results",
			StandardDir:   "standardized",
			CellsFile:     "geo/cells.csv",
			DistancesFile: "geo/distances.csv",
			HomesFile:     "home_locations.csv",
		},
		Load: LoadConfig{
			Separator: ",",
			Header:    true,
			Datemask:  "2006-01-02 15:04:05",
			Seed:      1,
		},
		Runner: RunnerConfig{
			MaxConcurrency: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load merges defaults, an optional YAML file, and environment variables.
// Environment variables win over the file; both win over defaults.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
	}

	if err := envconfig.Process("CDR", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks structural constraints and date ordering
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	start, end, err := c.Period()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("end_date %s precedes start_date %s", c.Dates.EndDate, c.Dates.StartDate)
	}

	if (c.Dates.WindowStart == "") != (c.Dates.WindowEnd == "") {
		return fmt.Errorf("window_start and window_end must be set together")
	}
	if c.Runner.IncludeIncidence {
		if c.Dates.WindowStart == "" {
			return fmt.Errorf("incidence indicators need window_start and window_end")
		}
		if c.Paths.IncidenceFile == "" {
			return fmt.Errorf("incidence indicators need an incidence file")
		}
	}
	return nil
}

// Period returns the parsed main analysis period boundaries
func (c *Config) Period() (start, end time.Time, err error) {
	start, err = time.Parse(dateLayout, c.Dates.StartDate)
	if err != nil {
		return start, end, fmt.Errorf("invalid start_date %q: %w", c.Dates.StartDate, err)
	}
	end, err = time.Parse(dateLayout, c.Dates.EndDate)
	if err != nil {
		return start, end, fmt.Errorf("invalid end_date %q: %w", c.Dates.EndDate, err)
	}
	return start, end, nil
}

// WeeksPeriod returns the whole-weeks period, falling back to the main
// period when not configured separately
func (c *Config) WeeksPeriod() (start, end time.Time, err error) {
	if c.Dates.WeeksStartDate == "" && c.Dates.WeeksEndDate == "" {
		return c.Period()
	}
	start, err = time.Parse(dateLayout, c.Dates.WeeksStartDate)
	if err != nil {
		return start, end, fmt.Errorf("invalid weeks_start_date %q: %w", c.Dates.WeeksStartDate, err)
	}
	end, err = time.Parse(dateLayout, c.Dates.WeeksEndDate)
	if err != nil {
		return start, end, fmt.Errorf("invalid weeks_end_date %q: %w", c.Dates.WeeksEndDate, err)
	}
	return start, end, nil
}

// IncidenceWindow returns the incubation window boundaries
func (c *Config) IncidenceWindow() (start, end time.Time, err error) {
	start, err = time.Parse(dateLayout, c.Dates.WindowStart)
	if err != nil {
		return start, end, fmt.Errorf("invalid window_start %q: %w", c.Dates.WindowStart, err)
	}
	end, err = time.Parse(dateLayout, c.Dates.WindowEnd)
	if err != nil {
		return start, end, fmt.Errorf("invalid window_end %q: %w", c.Dates.WindowEnd, err)
	}
	return start, end, nil
}

// findConfigFile checks for a config file in common locations
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}
