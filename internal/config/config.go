package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	SettingsBackend string // "file" | "redis" | "memory"
	SettingsFile    string // path to the yaml settings file (file backend)

	// Sources
	DefaultConnectTimeout time.Duration // connect timeout for sources that don't set one (default: 20s)
	ReadTimeout           time.Duration // max wait for a single frame (default: 10s)
	PausePoll             time.Duration // sleep between checks while paused (default: 10ms)
	EventQueue            int           // worker to dispatcher queue depth (default: 256)
	SnapshotDir           string        // where snapshots land when no path is given
	RetryInterval         time.Duration // auto retry of errored sources (0 = manual only)
	ResumeActive          bool          // restart sources that were active at last save
	MigrateOnStart        bool          // convert legacy flat settings before load
	DiscoveryTimeout      time.Duration // mDNS browse window (default: 3s)

	// Redis
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisProfile        string        // suffix of the settings hash key (empty = lookout:settings)
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict access to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	RateBurst    int      // snapshot/discovery burst per client
	RatePerMin   int      // snapshot/discovery sustained requests per minute per client
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("LOOKOUT_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("LOOKOUT_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("LOOKOUT_LOG_LEVEL", "info"),
		PrettyLog: mustBool("LOOKOUT_PRETTY_LOG", true),

		// Settings store
		SettingsBackend: strings.ToLower(getenv("LOOKOUT_SETTINGS_BACKEND", BackendFile)),
		SettingsFile:    getenv("LOOKOUT_SETTINGS_FILE", "./lookout.yaml"),

		// Sources
		DefaultConnectTimeout: mustDuration("LOOKOUT_DEFAULT_CONNECT_TIMEOUT", 20*time.Second),
		ReadTimeout:           mustDuration("LOOKOUT_READ_TIMEOUT", 10*time.Second),
		PausePoll:             mustDuration("LOOKOUT_PAUSE_POLL", 10*time.Millisecond),
		EventQueue:            getenvInt("LOOKOUT_EVENT_QUEUE", 256),
		SnapshotDir:           getenv("LOOKOUT_SNAPSHOT_DIR", "./snapshots"),
		RetryInterval:         mustDuration("LOOKOUT_RETRY_INTERVAL", 0),
		ResumeActive:          mustBool("LOOKOUT_RESUME_ACTIVE", false),
		MigrateOnStart:        mustBool("LOOKOUT_MIGRATE_ON_START", true),
		DiscoveryTimeout:      mustDuration("LOOKOUT_DISCOVERY_TIMEOUT", 3*time.Second),

		// Redis settings
		RedisUser:           getenv("LOOKOUT_REDIS_USERNAME", ""),
		RedisPassword:       getenv("LOOKOUT_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("LOOKOUT_REDIS_DB", 0),
		RedisProfile:        getenv("LOOKOUT_REDIS_PROFILE", ""),
		RedisDT:             mustDuration("LOOKOUT_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("LOOKOUT_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("LOOKOUT_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("LOOKOUT_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("LOOKOUT_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("LOOKOUT_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("LOOKOUT_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("LOOKOUT_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("LOOKOUT_REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("LOOKOUT_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("LOOKOUT_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("LOOKOUT_TRUST_PROXY", false),
		RateBurst:    getenvInt("LOOKOUT_RATE_BURST", 10),
		RatePerMin:   getenvInt("LOOKOUT_RATE_PER_MIN", 60),
	}

	switch cfg.SettingsBackend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		cfg.RedisAddr = requireEnv("LOOKOUT_REDIS_ADDR")
	default:
		panic(fmt.Sprintf("❌ FATAL: LOOKOUT_SETTINGS_BACKEND must be file, redis or memory, got %q", cfg.SettingsBackend))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
