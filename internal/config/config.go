package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// Storage backends
const (
	StorageR2       = "r2"
	StorageS3       = "s3"
	StorageGCS      = "gcs"
	StorageFirebase = "firebase"
	StorageMinIO    = "minio"
	StorageMemory   = "memory"
)

type Config struct {
	ServerPort string

	StoreDriver   string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	JWTSecret   string
	TokenMaxAge int // seconds

	StorageBackend string
	BucketName     string
	PublicBaseURL  string
	MaxUploadBytes int64

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string

	S3Region    string
	S3PublicACL bool

	GCSCredentialsFile      string
	FirebaseCredentialsFile string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool

	SMTPHost         string
	SMTPPort         int
	MailUser         string
	MailPassword     string
	PasswordResetURL string

	RedisURL string
}

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required for the postgres store")
	ErrMissingMongoURI    = errors.New("MONGO_URI is required for the mongo store")
	ErrMissingJWTSecret   = errors.New("JWT_SECRET is required")
)

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	cfg := &Config{
		ServerPort: envOr("SERVER_PORT", "8080"),

		StoreDriver:   strings.ToLower(envOr("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDatabase: envOr("MONGO_DATABASE", "postboard"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		TokenMaxAge: envInt("TOKEN_MAX_AGE", 365*24*60*60),

		StorageBackend: strings.ToLower(envOr("STORAGE_BACKEND", StorageR2)),
		BucketName:     os.Getenv("BUCKET_NAME"),
		PublicBaseURL:  strings.TrimSuffix(os.Getenv("PUBLIC_BASE_URL"), "/"),
		MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 10*1024*1024)),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),

		S3Region:    envOr("S3_REGION", "us-east-1"),
		S3PublicACL: envBool("S3_PUBLIC_ACL", false),

		GCSCredentialsFile:      os.Getenv("GCS_CREDENTIALS_FILE"),
		FirebaseCredentialsFile: os.Getenv("FIREBASE_CREDENTIALS_FILE"),

		MinIOEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinIOUseSSL:    envBool("MINIO_USE_SSL", false),

		SMTPHost:         envOr("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:         envInt("SMTP_PORT", 587),
		MailUser:         os.Getenv("EMAIL"),
		MailPassword:     os.Getenv("EMAIL_PASSWORD"),
		PasswordResetURL: os.Getenv("PASSWORD_RESET_URL"),

		RedisURL: os.Getenv("REDIS_URL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	case StoreDriverMongo:
		if c.MongoURI == "" {
			return ErrMissingMongoURI
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}

	switch c.StorageBackend {
	case StorageR2, StorageS3, StorageGCS, StorageFirebase, StorageMinIO, StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
