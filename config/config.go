package config

import (
	"errors"
	"io/fs"
	"log"
	"net"
	"os"
	"strconv"
	"strings"

	"contactus-backend/internal/domain"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	LogLevel           string
	DBUrl              string
	CORSAllowedOrigins []string
	// Model configuration
	SMTPServer         string // host or host:port
	SMTPPort           int    // used when SMTPServer carries no port
	SMTPUsername       string
	SMTPPassword       string
	SMTPTLSPolicy      string // opportunistic, mandatory, none
	SMTPSSL            bool
	SupportEmail       string
	ProjectDisplayName string
	BuildNumber        string
	ModelPropsFile     string
	ModelProperties    map[string]string
	// Host identity reported in the ticket email
	AppHostName    string
	AppHostAddress string
	// Transport selection
	EmailProvider      string // smtp or ses
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AttachmentBucket   string
	StorageProvider    string // aws or wasabi
	StorageEndpoint    string // overrides the provider endpoint
	// Redis/Upstash Configuration
	UpstashRedisURL      string
	UpstashRedisPassword string
	// Rate Limiting Configuration
	RateLimitWindowSeconds    int
	RateLimitContactThreshold int
	RateLimitGlobalThreshold  int
	CCRecipientDailyLimit     int
	// Attachment scanning
	ClamAVAddress string
	// Optional identity
	JWTSecret string
	JWKSURL   string
}

func LoadConfig() (*Config, error) {
	// Load .env file; missing file is fine outside local development
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "debug"),
		DBUrl:              getEnv("DATABASE_URL", ""),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		// Model configuration
		SMTPServer:         getEnv("SMTP_SERVER", "localhost"),
		SMTPPort:           getEnvInt("SMTP_PORT", 25),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		SMTPTLSPolicy:      strings.ToLower(getEnv("SMTP_TLS_POLICY", "opportunistic")),
		SMTPSSL:            getEnvBool("SMTP_SSL", false),
		SupportEmail:       getEnv("SUPPORT_EMAIL", ""),
		ProjectDisplayName: getEnv("PROJECT_DISPLAY_NAME", ""),
		BuildNumber:        getEnv("BUILD_NUMBER", "unknown"),
		ModelPropsFile:     getEnv("MODEL_PROPS_FILE", "model.prop"),
		AppHostName:        getEnv("APP_HOST_NAME", ""),
		AppHostAddress:     getEnv("APP_HOST_ADDRESS", ""),
		// Transport selection
		EmailProvider:      strings.ToLower(getEnv("EMAIL_PROVIDER", "smtp")),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AttachmentBucket:   getEnv("ATTACHMENT_BUCKET", ""),
		StorageProvider:    strings.ToLower(getEnv("STORAGE_PROVIDER", "aws")),
		StorageEndpoint:    getEnv("STORAGE_ENDPOINT", ""),
		// Redis/Upstash Configuration
		UpstashRedisURL:      getEnv("UPSTASH_REDIS_URL", ""),
		UpstashRedisPassword: getEnv("UPSTASH_REDIS_PASSWORD", ""),
		// Rate Limiting Configuration
		RateLimitWindowSeconds:    getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitContactThreshold: getEnvInt("RATE_LIMIT_CONTACT_THRESHOLD", 5),
		RateLimitGlobalThreshold:  getEnvInt("RATE_LIMIT_GLOBAL_THRESHOLD", 100),
		CCRecipientDailyLimit:     getEnvInt("CC_RECIPIENT_DAILY_LIMIT", 20),
		// Attachment scanning
		ClamAVAddress: getEnv("CLAMAV_ADDRESS", ""),
		// Optional identity
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWKSURL:   getEnv("JWKS_URL", ""),
	}

	props, err := LoadModelProperties(cfg.ModelPropsFile)
	if err != nil {
		return nil, err
	}
	// Environment wins over the properties file
	for _, key := range []string{domain.PropRedmineToEmail, domain.PropRedmineFromEmail} {
		if value, exists := os.LookupEnv(key); exists {
			props[key] = value
		}
	}
	cfg.ModelProperties = props

	resolveHostIdentity(cfg)

	if cfg.SupportEmail == "" {
		log.Println("WARNING: SUPPORT_EMAIL is missing. Contact submissions will fail.")
	}
	if props[domain.PropRedmineToEmail] == "" || props[domain.PropRedmineFromEmail] == "" {
		log.Println("WARNING: REDMINE_TO_EMAIL/REDMINE_FROM_EMAIL not configured. Contact submissions will fail.")
	}
	if cfg.UpstashRedisURL == "" {
		log.Println("WARNING: UPSTASH_REDIS_URL not configured. Rate limiting will use in-memory fallback.")
	}

	return cfg, nil
}

// LoadModelProperties reads a key=value properties file. A missing file yields an empty map.
func LoadModelProperties(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	props, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return props, nil
}

// ModelConfig projects the settings the contact submitter reads.
func (c *Config) ModelConfig() domain.ModelConfig {
	props := make(map[string]string, len(c.ModelProperties))
	for k, v := range c.ModelProperties {
		props[k] = v
	}
	return domain.ModelConfig{
		SMTPServer:   c.SMTPServer,
		SupportEmail: c.SupportEmail,
		DisplayName:  c.ProjectDisplayName,
		BuildNumber:  c.BuildNumber,
		Properties:   props,
	}
}

func resolveHostIdentity(cfg *Config) {
	if cfg.AppHostName == "" {
		if name, err := os.Hostname(); err == nil {
			cfg.AppHostName = name
		}
	}
	if cfg.AppHostAddress == "" && cfg.AppHostName != "" {
		if addrs, err := net.LookupHost(cfg.AppHostName); err == nil && len(addrs) > 0 {
			cfg.AppHostAddress = addrs[0]
		}
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt returns an integer environment variable or fallback if not set/invalid
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool returns a boolean environment variable or fallback if not set/invalid
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvList splits a comma separated variable, dropping blanks
func getEnvList(key, fallback string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, fallback), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
