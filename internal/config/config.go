package config

import (
	"os"
	"strconv"
)

type Config struct {
	Embedding  EmbeddingConfig
	Matcher    MatcherConfig
	Gallery    GalleryConfig
	Attendance AttendanceConfig
	Auth       AuthConfig
	Stream     StreamConfig
	Web        WebConfig
	Log        LogConfig
}

type EmbeddingConfig struct {
	URL string // face embedding service endpoint (defaults to http://localhost:8000)
	Dim int    // embedding dimensionality reported by the service (defaults to 128)
}

type MatcherConfig struct {
	Threshold float64 // maximum distance at which a query counts as a match
}

type GalleryConfig struct {
	ReferenceDir string // directory of enrolled reference images
	CachePath    string // serialized gallery artifact
}

type AttendanceConfig struct {
	DBPath string // sqlite attendance log
}

type AuthConfig struct {
	UsersFile string // YAML file with usernames, passwords and roles
}

type StreamConfig struct {
	URL string // MJPEG camera URL; empty disables the live pipeline
}

type WebConfig struct {
	Host          string
	Port          int
	SessionSecret string
}

type LogConfig struct {
	Env   string // prod for JSON logs, anything else for console
	Level string // debug, info, warn, error
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			URL: envString("EMBEDDING_URL", "http://localhost:8000"),
			Dim: envInt("EMBEDDING_DIM", 128),
		},
		Matcher: MatcherConfig{
			Threshold: envFloat("FACE_MATCH_THRESHOLD", 0.45),
		},
		Gallery: GalleryConfig{
			ReferenceDir: envString("REFERENCE_DIR", "reference"),
			CachePath:    envString("GALLERY_CACHE_PATH", "gallery.cache"),
		},
		Attendance: AttendanceConfig{
			DBPath: envString("ATTENDANCE_DB_PATH", "attendance.db"),
		},
		Auth: AuthConfig{
			UsersFile: envString("USERS_FILE", "users.yaml"),
		},
		Stream: StreamConfig{
			URL: os.Getenv("STREAM_URL"),
		},
		Web: WebConfig{
			Host:          envString("WEB_HOST", "0.0.0.0"),
			Port:          envInt("WEB_PORT", 8080),
			SessionSecret: os.Getenv("WEB_SESSION_SECRET"),
		},
		Log: LogConfig{
			Env:   envString("APP_ENV", "dev"),
			Level: os.Getenv("LOG_LEVEL"),
		},
	}
}
