package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"ai-consult-copilot/pkg/transcript"

	"github.com/joho/godotenv"
)

// ErrMissingJWTSecret is returned by Validate when a production deployment
// would run with authentication disabled.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set when GO_ENV=production")

type Config struct {
	App          AppConfig
	Capture      CaptureConfig
	ClinicAPI    ClinicAPIConfig
	Consultation ConsultationConfig
	Telemetry    TelemetryConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	WsLogFilePath      string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
}

func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

type CaptureConfig struct {
	FFmpegBinary    string
	InputFormat     string // avfoundation, dshow, pulse, alsa; empty picks the platform default
	Device          string
	SampleRate      int
	Channels        int
	SegmentDuration time.Duration
	ProbeTimeout    time.Duration
}

type ClinicAPIConfig struct {
	BaseURL      string
	Token        string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Timeout      time.Duration
}

type ConsultationConfig struct {
	SafetyInterval    time.Duration
	SafetyMinChars    int
	SafetyMaxChars    int
	SafetyTimeout     time.Duration
	UploadConcurrency int
	DrainTimeout      time.Duration
	SpeakerLabels     transcript.SpeakerLabels
}

type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			WsLogFilePath:      getEnv("WS_LOG_FILE_PATH", "logs/ws.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
		},
		Capture: CaptureConfig{
			FFmpegBinary:    getEnv("FFMPEG_BINARY", "ffmpeg"),
			InputFormat:     getEnv("CAPTURE_INPUT_FORMAT", ""),
			Device:          getEnv("CAPTURE_DEVICE", ""),
			SampleRate:      getEnvAsInt("CAPTURE_SAMPLE_RATE", 16000),
			Channels:        getEnvAsInt("CAPTURE_CHANNELS", 1),
			SegmentDuration: getEnvAsDuration("SEGMENT_DURATION", 3*time.Second),
			ProbeTimeout:    getEnvAsDuration("CAPTURE_PROBE_TIMEOUT", 2*time.Second),
		},
		ClinicAPI: ClinicAPIConfig{
			BaseURL:      getEnv("CLINIC_API_BASE_URL", "http://localhost:8000"),
			Token:        getEnv("CLINIC_API_TOKEN", ""),
			ClientID:     getEnv("CLINIC_API_CLIENT_ID", ""),
			ClientSecret: getEnv("CLINIC_API_CLIENT_SECRET", ""),
			TokenURL:     getEnv("CLINIC_API_TOKEN_URL", ""),
			Timeout:      getEnvAsDuration("CLINIC_API_TIMEOUT", 60*time.Second),
		},
		Consultation: ConsultationConfig{
			SafetyInterval:    getEnvAsDuration("SAFETY_INTERVAL", 10*time.Second),
			SafetyMinChars:    getEnvAsInt("SAFETY_MIN_CHARS", 10),
			SafetyMaxChars:    getEnvAsInt("SAFETY_MAX_CHARS", 10000),
			SafetyTimeout:     getEnvAsDuration("SAFETY_TIMEOUT", 60*time.Second),
			UploadConcurrency: getEnvAsInt("UPLOAD_CONCURRENCY", 4),
			DrainTimeout:      getEnvAsDuration("CONSULTATION_DRAIN_TIMEOUT", 10*time.Second),
			SpeakerLabels:     loadSpeakerLabels(),
		},
		Telemetry: TelemetryConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "ai-consult-copilot"),
		},
	}
}

// Validate rejects settings the server must not start with. An empty JWT
// secret turns authentication off, which is only allowed outside production.
func (c *Config) Validate() error {
	if c.App.IsProduction() && strings.TrimSpace(c.App.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

func loadSpeakerLabels() transcript.SpeakerLabels {
	labels := transcript.DefaultSpeakerLabels()
	if raw := getEnv("SPEAKER_LABELS", ""); raw != "" {
		parsed, err := transcript.ParseSpeakerLabels(raw)
		if err != nil {
			log.Printf("Warning: ignoring SPEAKER_LABELS: %v", err)
		} else {
			labels.Labels = parsed
		}
	}
	if name := strings.TrimSpace(getEnv("SPEAKER_DEFAULT_LABEL", "")); name != "" {
		labels.Default = name
	}
	return labels
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("10s") or a bare number of seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
