package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" envconfig:"SERVER"`
	Logging       LoggingConfig       `yaml:"logging" envconfig:"LOGGING"`
	Paths         PathsConfig         `yaml:"paths" envconfig:"PATHS"`
	WebSocket     WebSocketConfig     `yaml:"websocket" envconfig:"WEBSOCKET"`
	Analysis      AnalysisConfig      `yaml:"analysis" envconfig:"ANALYSIS"`
	Visualization VisualizationConfig `yaml:"visualization" envconfig:"VISUALIZATION"`
	Registry      RegistryConfig      `yaml:"registry" envconfig:"REGISTRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port             int             `yaml:"port" envconfig:"PORT"`
	ReadTimeout      time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout     time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout      time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes   int             `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout  time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	OperationTimeout time.Duration   `yaml:"operation_timeout" envconfig:"OPERATION_TIMEOUT"`
	AllowedOrigins   []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	RateLimit        RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"true"`
}

// PathsConfig contains file system paths configuration. Relative entries are
// resolved against BaseDir, which defaults to the working directory.
type PathsConfig struct {
	BaseDir     string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir     string `yaml:"data_dir" envconfig:"DATA_DIR"`
	OutputDir   string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
	LogsDir     string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
	ProfilesDir string `yaml:"profiles_dir" envconfig:"PROFILES_DIR"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
}

// AnalysisConfig groups the tunable parameters of the analysis engines
type AnalysisConfig struct {
	Depth    DepthConfig    `yaml:"depth" envconfig:"DEPTH"`
	Position PositionConfig `yaml:"position" envconfig:"POSITION"`
	Ranges   RangesConfig   `yaml:"ranges" envconfig:"RANGES"`
}

// DepthConfig contains burial depth analysis parameters. The JSON tags match
// the profile file format, so the same struct round-trips through profiles.
type DepthConfig struct {
	TargetDepth     float64 `yaml:"target_depth" json:"targetDepth" envconfig:"TARGET_DEPTH"`
	MaxDepth        float64 `yaml:"max_depth" json:"maxDepth" envconfig:"MAX_DEPTH"`
	MinDepth        float64 `yaml:"min_depth" json:"minDepth" envconfig:"MIN_DEPTH"`
	SpikeThreshold  float64 `yaml:"spike_threshold" json:"spikeThreshold" envconfig:"SPIKE_THRESHOLD"`
	WindowSize      int     `yaml:"window_size" json:"windowSize" envconfig:"WINDOW_SIZE"`
	StdThreshold    float64 `yaml:"std_threshold" json:"stdThreshold" envconfig:"STD_THRESHOLD"`
	IgnoreAnomalies bool    `yaml:"ignore_anomalies" json:"ignoreAnomalies" envconfig:"IGNORE_ANOMALIES" default:"false"`
}

// PositionConfig contains position quality analysis parameters
type PositionConfig struct {
	KPJumpThreshold     float64 `yaml:"kp_jump_threshold" json:"kpJumpThreshold" envconfig:"KP_JUMP_THRESHOLD"`
	KPReversalThreshold float64 `yaml:"kp_reversal_threshold" json:"kpReversalThreshold" envconfig:"KP_REVERSAL_THRESHOLD"`
	DCCThreshold        float64 `yaml:"dcc_threshold" json:"dccThreshold" envconfig:"DCC_THRESHOLD"`
	MinSegmentLength    int     `yaml:"min_segment_length" json:"minSegmentLength" envconfig:"MIN_SEGMENT_LENGTH"`
	KPDistanceRatio     float64 `yaml:"kp_distance_ratio" json:"kpDistanceRatio" envconfig:"KP_DISTANCE_RATIO"`
	CoordinateSystem    string  `yaml:"coordinate_system" json:"coordinateSystem" envconfig:"COORDINATE_SYSTEM"`
}

// RangesConfig contains viewing range selection parameters
type RangesConfig struct {
	MinSectionSize int     `yaml:"min_section_size" envconfig:"MIN_SECTION_SIZE"`
	MinDeficit     float64 `yaml:"min_deficit" envconfig:"MIN_DEFICIT"`
	WindowSize     int     `yaml:"window_size" envconfig:"WINDOW_SIZE"`
	StdThreshold   float64 `yaml:"std_threshold" envconfig:"STD_THRESHOLD"`
	MaxRanges      int     `yaml:"max_ranges" envconfig:"MAX_RANGES"`
}

// VisualizationConfig contains chart generation options
type VisualizationConfig struct {
	UseSegmented     bool `yaml:"use_segmented" json:"useSegmented" envconfig:"USE_SEGMENTED" default:"true"`
	IncludeAnomalies bool `yaml:"include_anomalies" json:"includeAnomalies" envconfig:"INCLUDE_ANOMALIES" default:"true"`
	Snapshots        bool `yaml:"snapshots" json:"snapshots" envconfig:"SNAPSHOTS" default:"false"`
}

// RegistryConfig describes where cable identities come from: a CSV file, an
// inline list of groups, or both.
type RegistryConfig struct {
	File   string       `yaml:"file" envconfig:"FILE"`
	Groups []CableGroup `yaml:"groups"`
}

// CableGroup declares a batch of cable identifiers sharing one type
type CableGroup struct {
	Type        string   `yaml:"type"`
	Identifiers []string `yaml:"identifiers"`
}

// Load loads configuration from environment variables and config file.
// Precedence is environment, then file, then built-in defaults.
func Load() (*Config, error) {
	return load(getConfigFilePath())
}

// LoadFrom behaves like Load but reads the YAML from an explicit path
// instead of probing the default locations. The file must exist.
func LoadFrom(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return load(path)
}

func load(configFile string) (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process("CBA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// Load from config file if exists
	if _, err := os.Stat(configFile); configFile != "" && err == nil {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	// Backfill anything still unset from the defaults
	cfg = mergeConfigs(*Default(), cfg)

	// Resolve relative paths
	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges a lower-precedence config into a higher-precedence one:
// any field still at its zero value in high is taken from low. Boolean fields
// cannot distinguish unset from false, so they always ride the high side and
// carry their defaults in envconfig tags instead.
func mergeConfigs(low, high Config) Config {
	// Server
	if high.Server.Port == 0 {
		high.Server.Port = low.Server.Port
	}
	if high.Server.ReadTimeout == 0 {
		high.Server.ReadTimeout = low.Server.ReadTimeout
	}
	if high.Server.WriteTimeout == 0 {
		high.Server.WriteTimeout = low.Server.WriteTimeout
	}
	if high.Server.IdleTimeout == 0 {
		high.Server.IdleTimeout = low.Server.IdleTimeout
	}
	if high.Server.MaxHeaderBytes == 0 {
		high.Server.MaxHeaderBytes = low.Server.MaxHeaderBytes
	}
	if high.Server.ShutdownTimeout == 0 {
		high.Server.ShutdownTimeout = low.Server.ShutdownTimeout
	}
	if high.Server.OperationTimeout == 0 {
		high.Server.OperationTimeout = low.Server.OperationTimeout
	}
	if len(high.Server.AllowedOrigins) == 0 {
		high.Server.AllowedOrigins = low.Server.AllowedOrigins
	}
	if high.Server.RateLimit.RPS == 0 {
		high.Server.RateLimit.RPS = low.Server.RateLimit.RPS
	}
	if high.Server.RateLimit.Burst == 0 {
		high.Server.RateLimit.Burst = low.Server.RateLimit.Burst
	}

	// Logging
	if high.Logging.Level == "" {
		high.Logging.Level = low.Logging.Level
	}
	if high.Logging.Format == "" {
		high.Logging.Format = low.Logging.Format
	}
	if high.Logging.Output == "" {
		high.Logging.Output = low.Logging.Output
	}
	if high.Logging.FilePath == "" {
		high.Logging.FilePath = low.Logging.FilePath
	}

	// Paths
	if high.Paths.BaseDir == "" {
		high.Paths.BaseDir = low.Paths.BaseDir
	}
	if high.Paths.DataDir == "" {
		high.Paths.DataDir = low.Paths.DataDir
	}
	if high.Paths.OutputDir == "" {
		high.Paths.OutputDir = low.Paths.OutputDir
	}
	if high.Paths.LogsDir == "" {
		high.Paths.LogsDir = low.Paths.LogsDir
	}
	if high.Paths.ProfilesDir == "" {
		high.Paths.ProfilesDir = low.Paths.ProfilesDir
	}

	// WebSocket
	if high.WebSocket.ReadBufferSize == 0 {
		high.WebSocket.ReadBufferSize = low.WebSocket.ReadBufferSize
	}
	if high.WebSocket.WriteBufferSize == 0 {
		high.WebSocket.WriteBufferSize = low.WebSocket.WriteBufferSize
	}
	if high.WebSocket.PingPeriod == 0 {
		high.WebSocket.PingPeriod = low.WebSocket.PingPeriod
	}
	if high.WebSocket.PongWait == 0 {
		high.WebSocket.PongWait = low.WebSocket.PongWait
	}

	// Analysis: depth
	if high.Analysis.Depth.TargetDepth == 0 {
		high.Analysis.Depth.TargetDepth = low.Analysis.Depth.TargetDepth
	}
	if high.Analysis.Depth.MaxDepth == 0 {
		high.Analysis.Depth.MaxDepth = low.Analysis.Depth.MaxDepth
	}
	if high.Analysis.Depth.MinDepth == 0 {
		high.Analysis.Depth.MinDepth = low.Analysis.Depth.MinDepth
	}
	if high.Analysis.Depth.SpikeThreshold == 0 {
		high.Analysis.Depth.SpikeThreshold = low.Analysis.Depth.SpikeThreshold
	}
	if high.Analysis.Depth.WindowSize == 0 {
		high.Analysis.Depth.WindowSize = low.Analysis.Depth.WindowSize
	}
	if high.Analysis.Depth.StdThreshold == 0 {
		high.Analysis.Depth.StdThreshold = low.Analysis.Depth.StdThreshold
	}

	// Analysis: position
	if high.Analysis.Position.KPJumpThreshold == 0 {
		high.Analysis.Position.KPJumpThreshold = low.Analysis.Position.KPJumpThreshold
	}
	if high.Analysis.Position.KPReversalThreshold == 0 {
		high.Analysis.Position.KPReversalThreshold = low.Analysis.Position.KPReversalThreshold
	}
	if high.Analysis.Position.DCCThreshold == 0 {
		high.Analysis.Position.DCCThreshold = low.Analysis.Position.DCCThreshold
	}
	if high.Analysis.Position.MinSegmentLength == 0 {
		high.Analysis.Position.MinSegmentLength = low.Analysis.Position.MinSegmentLength
	}
	if high.Analysis.Position.KPDistanceRatio == 0 {
		high.Analysis.Position.KPDistanceRatio = low.Analysis.Position.KPDistanceRatio
	}
	if high.Analysis.Position.CoordinateSystem == "" {
		high.Analysis.Position.CoordinateSystem = low.Analysis.Position.CoordinateSystem
	}

	// Analysis: ranges
	if high.Analysis.Ranges.MinSectionSize == 0 {
		high.Analysis.Ranges.MinSectionSize = low.Analysis.Ranges.MinSectionSize
	}
	if high.Analysis.Ranges.MinDeficit == 0 {
		high.Analysis.Ranges.MinDeficit = low.Analysis.Ranges.MinDeficit
	}
	if high.Analysis.Ranges.WindowSize == 0 {
		high.Analysis.Ranges.WindowSize = low.Analysis.Ranges.WindowSize
	}
	if high.Analysis.Ranges.StdThreshold == 0 {
		high.Analysis.Ranges.StdThreshold = low.Analysis.Ranges.StdThreshold
	}
	if high.Analysis.Ranges.MaxRanges == 0 {
		high.Analysis.Ranges.MaxRanges = low.Analysis.Ranges.MaxRanges
	}

	// Registry
	if high.Registry.File == "" {
		high.Registry.File = low.Registry.File
	}
	if len(high.Registry.Groups) == 0 {
		high.Registry.Groups = low.Registry.Groups
	}

	return high
}

// resolvePaths pins BaseDir to an absolute directory so the Get* methods
// return stable paths regardless of later working directory changes.
func (c *Config) resolvePaths() error {
	if c.Paths.BaseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to determine working directory: %w", err)
		}
		c.Paths.BaseDir = wd
	}

	abs, err := filepath.Abs(c.Paths.BaseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base dir: %w", err)
	}
	c.Paths.BaseDir = abs

	return nil
}

// EnsureDirectories creates the data, output and logs directories if missing
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.GetDataDir(), c.GetOutputDir(), c.GetLogsDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetDataDir returns the resolved data directory path
func (c *Config) GetDataDir() string {
	return c.resolved(c.Paths.DataDir)
}

// GetOutputDir returns the resolved output directory path
func (c *Config) GetOutputDir() string {
	return c.resolved(c.Paths.OutputDir)
}

// GetLogsDir returns the resolved logs directory path
func (c *Config) GetLogsDir() string {
	return c.resolved(c.Paths.LogsDir)
}

// GetProfilesDir returns the resolved analysis profiles directory path
func (c *Config) GetProfilesDir() string {
	return c.resolved(c.Paths.ProfilesDir)
}

// GetLogFilePath returns the resolved log file path
func (c *Config) GetLogFilePath() string {
	return c.resolved(c.Logging.FilePath)
}

// GetRegistryFile returns the resolved cable registry CSV path
func (c *Config) GetRegistryFile() string {
	return c.resolved(c.Registry.File)
}

func (c *Config) resolved(path string) string {
	if path == "" || filepath.IsAbs(path) || c.Paths.BaseDir == "" {
		return path
	}
	return filepath.Join(c.Paths.BaseDir, path)
}

// Validate re-runs validation, for callers that mutate the config after Load
func (c *Config) Validate() error {
	return c.validate()
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if len(c.Server.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	d := c.Analysis.Depth
	if d.TargetDepth <= 0 {
		return fmt.Errorf("target depth must be positive")
	}
	if d.MaxDepth <= d.TargetDepth {
		return fmt.Errorf("max depth must exceed target depth")
	}
	if d.SpikeThreshold <= 0 {
		return fmt.Errorf("depth spike threshold must be positive")
	}
	if d.WindowSize < 3 {
		return fmt.Errorf("depth window size must be at least 3")
	}
	if d.StdThreshold <= 0 {
		return fmt.Errorf("depth std threshold must be positive")
	}

	p := c.Analysis.Position
	if p.KPJumpThreshold <= 0 {
		return fmt.Errorf("KP jump threshold must be positive")
	}
	if p.KPReversalThreshold <= 0 {
		return fmt.Errorf("KP reversal threshold must be positive")
	}
	if p.DCCThreshold <= 0 {
		return fmt.Errorf("DCC threshold must be positive")
	}
	if p.MinSegmentLength < 1 {
		return fmt.Errorf("minimum segment length must be at least 1")
	}

	r := c.Analysis.Ranges
	if r.MinSectionSize < 1 {
		return fmt.Errorf("range min section size must be at least 1")
	}
	if r.MinDeficit <= 0 {
		return fmt.Errorf("range min deficit must be positive")
	}
	if r.WindowSize < 2 {
		return fmt.Errorf("range window size must be at least 2")
	}
	if r.StdThreshold <= 0 {
		return fmt.Errorf("range std threshold must be positive")
	}
	if r.MaxRanges < 1 {
		return fmt.Errorf("max ranges must be at least 1")
	}

	// Structured log output stays machine-readable
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	if c.Logging.Output != "both" && c.Logging.Output != "file" && c.Logging.Output != "console" {
		c.Logging.Output = "both"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/cbatool.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	// CBA_CONFIG has no matching struct field, so envconfig never
	// consumes it; it is reserved for pointing at the config file.
	if path := os.Getenv("CBA_CONFIG"); path != "" {
		return path
	}

	// Check for config file in common locations
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
		"../../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             8080,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     15 * time.Second,
			IdleTimeout:      60 * time.Second,
			MaxHeaderBytes:   1 << 20, // 1MB
			ShutdownTimeout:  30 * time.Second,
			OperationTimeout: DefaultOperationTimeout,
			AllowedOrigins:   []string{"http://localhost:8080"},
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:       DefaultLogLevel,
			Format:      DefaultLogFormat,
			Output:      "both",
			FilePath:    "logs/cbatool.log",
			Development: true,
		},
		Paths: PathsConfig{
			DataDir:     DefaultDataDir,
			OutputDir:   DefaultOutputDir,
			LogsDir:     DefaultLogsDir,
			ProfilesDir: DefaultProfilesDir,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  WebSocketReadBufferSize,
			WriteBufferSize: WebSocketWriteBufferSize,
			PingPeriod:      WebSocketPingPeriod,
			PongWait:        WebSocketPongWait,
		},
		Analysis: AnalysisConfig{
			Depth: DepthConfig{
				TargetDepth:    1.5,
				MaxDepth:       3.0,
				MinDepth:       0.0,
				SpikeThreshold: 0.5,
				WindowSize:     5,
				StdThreshold:   3.0,
			},
			Position: PositionConfig{
				KPJumpThreshold:     0.1,
				KPReversalThreshold: 0.0001,
				DCCThreshold:        5.0,
				MinSegmentLength:    5,
				KPDistanceRatio:     0.01,
				CoordinateSystem:    "WGS84",
			},
			Ranges: RangesConfig{
				MinSectionSize: 5,
				MinDeficit:     0.1,
				WindowSize:     20,
				StdThreshold:   0.2,
				MaxRanges:      5,
			},
		},
		Visualization: VisualizationConfig{
			UseSegmented:     true,
			IncludeAnomalies: true,
		},
	}
}
