package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ValidGridSizes lists the grid layouts the kiosk can render. Page math in the
// tour scheduler assumes the configured grid size is one of these.
var ValidGridSizes = []int{4, 6, 8, 9, 16}

// StreamEndpoint identifies one NVR stream: the recorder address, the
// credentials, the camera channel and the main/sub stream selector. Endpoints
// are immutable per session and replaced wholesale on configuration save.
type StreamEndpoint struct {
	Host      string `json:"host"`      // NVR IP address or hostname
	Port      string `json:"port"`      // RTSP port, usually 554
	Username  string `json:"username"`  // RTSP username
	Password  string `json:"password"`  // RTSP password
	Channel   int    `json:"channel"`   // Camera channel, 0 = zero-channel overview feed
	SubStream bool   `json:"subStream"` // true = sub stream, false = main stream
}

// WithChannel returns a copy of the endpoint pointed at the given camera channel.
func (e StreamEndpoint) WithChannel(channel int) StreamEndpoint {
	e.Channel = channel
	return e
}

// Addr returns the host:port pair used for reachability probes.
func (e StreamEndpoint) Addr() string {
	return e.Host + ":" + e.Port
}

// TourConfig drives the multi-camera rotation: how many slots the grid has,
// how long each page stays up, and which camera channels participate.
// ActiveCameraIDs is kept sorted ascending and de-duplicated; the ordering
// determines page membership, so it must stay deterministic.
type TourConfig struct {
	GridSize        int           `json:"gridSize"`        // Slots per page, one of ValidGridSizes
	Interval        time.Duration `json:"interval"`        // Dwell time per page before rotating
	ActiveCameraIDs []int         `json:"activeCameraIds"` // Ordered camera channels in the tour
}

// Config holds all application configuration values for the NVR kiosk.
type Config struct {
	ListenAddr       string         `json:"listenAddr"`       // Bind address for the admin API
	AdminPassHash    string         `json:"adminPassHash"`    // bcrypt hash of the admin shared secret
	PingInterval     time.Duration  `json:"pingInterval"`     // Delay between watchdog cycles
	ProbeTimeout     time.Duration  `json:"probeTimeout"`     // Per-probe connect timeout
	SettleDelay      time.Duration  `json:"settleDelay"`      // Grace period after a network-recovery restart
	StreamRetryDelay time.Duration  `json:"streamRetryDelay"` // Countdown before retrying a dead stream
	NetworkCaching   int            `json:"networkCaching"`   // Player cache in ms (higher = smoother, more latency)
	PlayerCommand    string         `json:"playerCommand"`    // External player binary, e.g. cvlc
	PlayerArgs       []string       `json:"playerArgs"`       // Extra player arguments before the URL
	DatabasePath     string         `json:"databasePath"`     // SQLite path for persisted runtime config
	CacheDuration    time.Duration  `json:"cacheDuration"`    // TTL for admin API snapshot caching
	WorkerThreads    int            `json:"workerThreads"`    // Probe worker pool size
	Debug            bool           `json:"debug"`            // Enable debug logging
	ObfuscateUrls    bool           `json:"obfuscateUrls"`    // Obfuscate stream URLs in logs
	NameIncludeRegex string         `json:"nameIncludeRegex"` // Import filter: keep matching camera names
	NameExcludeRegex string         `json:"nameExcludeRegex"` // Import filter: drop matching camera names
	Endpoint         StreamEndpoint `json:"endpoint"`         // NVR connection defaults
	Tour             TourConfig     `json:"tour"`             // Grid rotation settings
}

// ConfigFile mirrors Config for JSON (un)marshaling. Duration fields are
// stored as strings (e.g. "5s") and parsed into time.Duration on load.
type ConfigFile struct {
	ListenAddr       string         `json:"listenAddr"`
	AdminPassHash    string         `json:"adminPassHash"`
	PingInterval     string         `json:"pingInterval"`     // Duration string (e.g. "5s")
	ProbeTimeout     string         `json:"probeTimeout"`     // Duration string (e.g. "1500ms")
	SettleDelay      string         `json:"settleDelay"`      // Duration string (e.g. "2s")
	StreamRetryDelay string         `json:"streamRetryDelay"` // Duration string (e.g. "5s")
	NetworkCaching   int            `json:"networkCaching"`
	PlayerCommand    string         `json:"playerCommand"`
	PlayerArgs       []string       `json:"playerArgs"`
	DatabasePath     string         `json:"databasePath"`
	CacheDuration    string         `json:"cacheDuration"` // Duration string (e.g. "2s")
	WorkerThreads    int            `json:"workerThreads"`
	Debug            bool           `json:"debug"`
	ObfuscateUrls    bool           `json:"obfuscateUrls"`
	NameIncludeRegex string         `json:"nameIncludeRegex"`
	NameExcludeRegex string         `json:"nameExcludeRegex"`
	Endpoint         StreamEndpoint `json:"endpoint"`
	Tour             TourConfigFile `json:"tour"`
}

// TourConfigFile is the on-disk form of TourConfig.
type TourConfigFile struct {
	GridSize        int    `json:"gridSize"`
	Interval        string `json:"interval"` // Duration string (e.g. "10s")
	ActiveCameraIDs []int  `json:"activeCameraIds"`
}

var (
	configPath  = "/settings/kiosk.json"
	configCache *Config      // Cached configuration instance (singleton)
	configMutex sync.RWMutex // Mutex for safe concurrent access to configCache
)

// LoadConfig loads the configuration from file or returns the cached instance.
// A missing or corrupt file is never fatal: the built-in defaults are
// substituted and the failure is logged.
func LoadConfig() *Config {
	configMutex.RLock()
	if configCache != nil {
		defer configMutex.RUnlock()
		return configCache
	}
	configMutex.RUnlock()

	configMutex.Lock()
	defer configMutex.Unlock()

	// Double-check under write lock
	if configCache != nil {
		return configCache
	}

	config, err := loadFromFile(configPath)
	if err != nil {
		log.Printf("Failed to load config from %s: %v", configPath, err)
		log.Printf("Falling back to default configuration...")
		config = getDefaultConfig()
	}

	// Ensure safe defaults for missing values
	validateAndSetDefaults(config)

	configCache = config

	if config.Debug {
		log.Printf("Configuration loaded:")
		log.Printf("  NVR endpoint: %s", config.Endpoint.Addr())
		log.Printf("  Grid size: %d", config.Tour.GridSize)
		log.Printf("  Tour interval: %s", config.Tour.Interval)
		log.Printf("  Active cameras: %d", len(config.Tour.ActiveCameraIDs))
		log.Printf("  Ping interval: %s", config.PingInterval)
	}

	return config
}

// ClearConfigCache resets the configCache to nil.
// Forces a reload on the next LoadConfig() call.
func ClearConfigCache() {
	configMutex.Lock()
	defer configMutex.Unlock()
	configCache = nil
}

// loadFromFile reads and parses the configuration from a JSON file.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return convertFromFile(&configFile)
}

// convertFromFile converts a ConfigFile to Config,
// parsing duration strings into time.Duration.
func convertFromFile(cf *ConfigFile) (*Config, error) {
	config := &Config{
		ListenAddr:       cf.ListenAddr,
		AdminPassHash:    cf.AdminPassHash,
		NetworkCaching:   cf.NetworkCaching,
		PlayerCommand:    cf.PlayerCommand,
		PlayerArgs:       cf.PlayerArgs,
		DatabasePath:     cf.DatabasePath,
		WorkerThreads:    cf.WorkerThreads,
		Debug:            cf.Debug,
		ObfuscateUrls:    cf.ObfuscateUrls,
		NameIncludeRegex: cf.NameIncludeRegex,
		NameExcludeRegex: cf.NameExcludeRegex,
		Endpoint:         cf.Endpoint,
		Tour: TourConfig{
			GridSize:        cf.Tour.GridSize,
			ActiveCameraIDs: cf.Tour.ActiveCameraIDs,
		},
	}

	var err error
	if config.PingInterval, err = time.ParseDuration(cf.PingInterval); err != nil {
		return nil, fmt.Errorf("invalid pingInterval: %w", err)
	}
	if config.ProbeTimeout, err = time.ParseDuration(cf.ProbeTimeout); err != nil {
		return nil, fmt.Errorf("invalid probeTimeout: %w", err)
	}
	if config.SettleDelay, err = time.ParseDuration(cf.SettleDelay); err != nil {
		return nil, fmt.Errorf("invalid settleDelay: %w", err)
	}
	if config.StreamRetryDelay, err = time.ParseDuration(cf.StreamRetryDelay); err != nil {
		return nil, fmt.Errorf("invalid streamRetryDelay: %w", err)
	}
	if config.CacheDuration, err = time.ParseDuration(cf.CacheDuration); err != nil {
		return nil, fmt.Errorf("invalid cacheDuration: %w", err)
	}
	if config.Tour.Interval, err = time.ParseDuration(cf.Tour.Interval); err != nil {
		return nil, fmt.Errorf("invalid tour interval: %w", err)
	}

	return config, nil
}

// getDefaultConfig returns a baseline configuration
// with sensible defaults when no file is present.
func getDefaultConfig() *Config {
	return &Config{
		ListenAddr:       ":8080",
		PingInterval:     5 * time.Second,        // Seconds between network checks
		ProbeTimeout:     1500 * time.Millisecond,
		SettleDelay:      2 * time.Second,        // Give the player time to initialize
		StreamRetryDelay: 5 * time.Second,
		NetworkCaching:   600,
		PlayerCommand:    "cvlc",
		DatabasePath:     "/settings/kiosk.db",
		CacheDuration:    2 * time.Second,
		WorkerThreads:    4,
		Endpoint: StreamEndpoint{
			Host:     "192.168.1.108",
			Port:     "554",
			Username: "admin",
			Password: "admin123",
		},
		Tour: TourConfig{
			GridSize: 4,
			Interval: 10 * time.Second,
		},
	}
}

// validateAndSetDefaults ensures all config values are valid,
// filling in defaults for missing/invalid ones.
func validateAndSetDefaults(config *Config) {
	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.AdminPassHash == "" {
		// The stock admin secret, hashed at startup so the comparison path
		// is identical for default and custom secrets.
		if hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost); err == nil {
			config.AdminPassHash = string(hash)
		}
	}
	if config.PingInterval <= 0 {
		config.PingInterval = 5 * time.Second
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 1500 * time.Millisecond
	}
	if config.SettleDelay <= 0 {
		config.SettleDelay = 2 * time.Second
	}
	if config.StreamRetryDelay <= 0 {
		config.StreamRetryDelay = 5 * time.Second
	}
	if config.NetworkCaching <= 0 {
		config.NetworkCaching = 600
	}
	if config.PlayerCommand == "" {
		config.PlayerCommand = "cvlc"
	}
	if config.DatabasePath == "" {
		config.DatabasePath = "/settings/kiosk.db"
	}
	if config.CacheDuration <= 0 {
		config.CacheDuration = 2 * time.Second
	}
	if config.WorkerThreads <= 0 {
		config.WorkerThreads = 4
	}
	if config.Endpoint.Host == "" {
		config.Endpoint.Host = "192.168.1.108"
	}
	if config.Endpoint.Port == "" {
		config.Endpoint.Port = "554"
	}
	if config.Endpoint.Username == "" {
		config.Endpoint.Username = "admin"
	}
	if config.Endpoint.Password == "" {
		config.Endpoint.Password = "admin123"
	}
	if !IsValidGridSize(config.Tour.GridSize) {
		config.Tour.GridSize = 4
	}
	if config.Tour.Interval <= 0 {
		config.Tour.Interval = 10 * time.Second
	}
	config.Tour.ActiveCameraIDs = NormalizeCameraIDs(config.Tour.ActiveCameraIDs)
}

// IsValidGridSize reports whether n is one of the supported grid layouts.
func IsValidGridSize(n int) bool {
	for _, size := range ValidGridSizes {
		if n == size {
			return true
		}
	}
	return false
}

// NormalizeCameraIDs returns the ids sorted ascending with duplicates and
// negative channels removed. Page membership is derived from this ordering,
// so every caller that mutates the camera list must go through here.
func NormalizeCameraIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id < 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// CreateExampleConfig creates an example config file on disk.
func CreateExampleConfig(path string) error {
	example := ConfigFile{
		ListenAddr:       ":8080",
		PingInterval:     "5s",
		ProbeTimeout:     "1500ms",
		SettleDelay:      "2s",
		StreamRetryDelay: "5s",
		NetworkCaching:   600,
		PlayerCommand:    "cvlc",
		PlayerArgs:       []string{"--no-audio", "--rtsp-tcp"},
		DatabasePath:     "/settings/kiosk.db",
		CacheDuration:    "2s",
		WorkerThreads:    4,
		Debug:            false,
		ObfuscateUrls:    true,
		Endpoint: StreamEndpoint{
			Host:     "192.168.1.108",
			Port:     "554",
			Username: "admin",
			Password: "admin123",
		},
		Tour: TourConfigFile{
			GridSize:        4,
			Interval:        "10s",
			ActiveCameraIDs: []int{1, 2, 3, 4, 5},
		},
	}

	data, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
