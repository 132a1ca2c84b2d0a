package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// App holds the process settings read from the environment. Connection
// strings for Redis, Mongo and Postgres are read by their Init* functions.
type App struct {
	Port string

	StorageBackend string // file|redis|mongo|postgres|gcs
	DataDir        string
	GCSBucket      string
	GCSPrefix      string

	EventBus string // memory|redis

	GoogleProject  string
	GoogleLocation string
	GeminiModel    string

	OpenAIBaseURL   string
	OpenAIModel     string
	DeepSeekBaseURL string
	DeepSeekModel   string

	Dictation bool

	CORSOrigins     []string
	TitleWorkers    int
	PersistDebounce time.Duration
	ShutdownTimeout time.Duration
}

func LoadApp() App {
	return App{
		Port: getenv("PORT", "8080"),

		StorageBackend: strings.ToLower(getenv("STORAGE_BACKEND", "file")),
		DataDir:        getenv("DATA_DIR", "./data"),
		GCSBucket:      os.Getenv("GCS_BUCKET"),
		GCSPrefix:      getenv("GCS_PREFIX", "yoochat"),

		EventBus: strings.ToLower(getenv("EVENT_BUS", "memory")),

		GoogleProject:  os.Getenv("GOOGLE_CLOUD_PROJECT"),
		GoogleLocation: getenv("GOOGLE_CLOUD_LOCATION", "us-central1"),
		GeminiModel:    os.Getenv("GEMINI_MODEL"),

		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:     os.Getenv("OPENAI_MODEL"),
		DeepSeekBaseURL: os.Getenv("DEEPSEEK_BASE_URL"),
		DeepSeekModel:   os.Getenv("DEEPSEEK_MODEL"),

		Dictation: os.Getenv("DICTATION_ENABLED") == "true",

		CORSOrigins:     splitList(os.Getenv("CORS_ORIGINS")),
		TitleWorkers:    getenvInt("TITLE_WORKERS", 2),
		PersistDebounce: getenvDuration("PERSIST_DEBOUNCE", 250*time.Millisecond),
		ShutdownTimeout: getenvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d < 0 {
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
