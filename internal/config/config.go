package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Version is reported by the health endpoint. Overridden at build time with
// -ldflags "-X carbon-scribe/credit-registry-backend/internal/config.Version=...".
var Version = "1.0.0"

// Config represents the application configuration
type Config struct {
	Environment string            `json:"environment" yaml:"environment"`
	Server      ServerConfig      `json:"server" yaml:"server"`
	Database    DatabaseConfig    `json:"database" yaml:"database"`
	AWS         AWSConfig         `json:"aws" yaml:"aws"`
	Storage     StorageConfig     `json:"storage" yaml:"storage"`
	Events      EventsConfig      `json:"events" yaml:"events"`
	Search      SearchConfig      `json:"search" yaml:"search"`
	Security    SecurityConfig    `json:"security" yaml:"security"`
	Workflow    WorkflowConfig    `json:"workflow" yaml:"workflow"`
	Marketplace MarketplaceConfig `json:"marketplace" yaml:"marketplace"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	// PublicURL prefixes links handed out to clients, e.g. certificate URLs.
	PublicURL string `json:"public_url" yaml:"public_url"`
}

// DatabaseConfig selects and configures the record store backend
type DatabaseConfig struct {
	Driver         string        `json:"driver" yaml:"driver"` // memory, postgres, mongo, dynamodb
	URL            string        `json:"url" yaml:"url"`
	Host           string        `json:"host" yaml:"host"`
	Port           int           `json:"port" yaml:"port"`
	User           string        `json:"user" yaml:"user"`
	Password       string        `json:"password" yaml:"password"`
	DBName         string        `json:"db_name" yaml:"db_name"`
	SSLMode        string        `json:"ssl_mode" yaml:"ssl_mode"`
	MaxConnections int           `json:"max_connections" yaml:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime" yaml:"max_lifetime"`
	LogSQL         bool          `json:"log_sql" yaml:"log_sql"`
	MongoURI       string        `json:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase  string        `json:"mongo_database" yaml:"mongo_database"`
	DynamoTable    string        `json:"dynamo_table" yaml:"dynamo_table"`
}

// AWSConfig is shared by the S3, DynamoDB, SNS and SES clients
type AWSConfig struct {
	Region          string `json:"region" yaml:"region"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

// StorageConfig configures where uploaded field data is kept
type StorageConfig struct {
	Driver        string `json:"driver" yaml:"driver"` // local, s3
	LocalPath     string `json:"local_path" yaml:"local_path"`
	Bucket        string `json:"bucket" yaml:"bucket"`
	Prefix        string `json:"prefix" yaml:"prefix"`
	MaxUploadSize int64  `json:"max_upload_size" yaml:"max_upload_size"`
	MaxFiles      int    `json:"max_files" yaml:"max_files"`
}

// EventsConfig enables the optional domain event sinks
type EventsConfig struct {
	SNSTopicARN   string `json:"sns_topic_arn" yaml:"sns_topic_arn"`
	NATSURL       string `json:"nats_url" yaml:"nats_url"`
	NATSSubject   string `json:"nats_subject" yaml:"nats_subject"`
	EmailFrom     string `json:"email_from" yaml:"email_from"`
	EmailEnabled  bool   `json:"email_enabled" yaml:"email_enabled"`
	WebSocketHub  bool   `json:"websocket_hub" yaml:"websocket_hub"`
	HubBufferSize int    `json:"hub_buffer_size" yaml:"hub_buffer_size"`
}

// SearchConfig points project search at Elasticsearch
type SearchConfig struct {
	Addresses []string `json:"addresses" yaml:"addresses"`
	Username  string   `json:"username" yaml:"username"`
	Password  string   `json:"password" yaml:"password"`
	Index     string   `json:"index" yaml:"index"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret         string   `json:"jwt_secret" yaml:"jwt_secret"`
	RequireAuth       bool     `json:"require_auth" yaml:"require_auth"`
	AllowedOrigins    []string `json:"allowed_origins" yaml:"allowed_origins"`
	RequestsPerSecond float64  `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int      `json:"burst" yaml:"burst"`
}

// WorkflowConfig
type WorkflowConfig struct {
	// StrictTransitions refuses reviewer decisions on submissions that
	// already reached a terminal state.
	StrictTransitions bool `json:"strict_transitions" yaml:"strict_transitions"`
}

// MarketplaceConfig
type MarketplaceConfig struct {
	DefaultCurrency string `json:"default_currency" yaml:"default_currency"`
	ExpirySchedule  string `json:"expiry_schedule" yaml:"expiry_schedule"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         "memory",
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "carbon_registry",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    5 * time.Minute,
			MongoDatabase:  "carbon_registry",
			DynamoTable:    "carbon-registry",
		},
		AWS: AWSConfig{Region: "us-east-1"},
		Storage: StorageConfig{
			Driver:        "local",
			LocalPath:     "uploads",
			Prefix:        "uploads",
			MaxUploadSize: 50 << 20,
			MaxFiles:      10,
		},
		Events: EventsConfig{
			NATSSubject:   "registry.events",
			WebSocketHub:  true,
			HubBufferSize: 256,
		},
		Search: SearchConfig{Index: "projects"},
		Security: SecurityConfig{
			AllowedOrigins:    []string{"*"},
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Workflow: WorkflowConfig{StrictTransitions: true},
		Marketplace: MarketplaceConfig{
			DefaultCurrency: "USD",
			ExpirySchedule:  "0 */5 * * * *",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig loads configuration from file and environment variables.
// A .env file in the working directory is read first when present.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := decode(configPath, data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func decode(path string, data []byte, config *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	default:
		return json.Unmarshal(data, config)
	}
}

func overrideWithEnv(config *Config) {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		config.Environment = env
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if url := os.Getenv("PUBLIC_URL"); url != "" {
		config.Server.PublicURL = url
	}

	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		config.Database.Driver = driver
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		config.Database.URL = url
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		config.Database.MongoURI = uri
	}
	if table := os.Getenv("DYNAMODB_TABLE"); table != "" {
		config.Database.DynamoTable = table
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		config.AWS.Region = region
	}
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		config.AWS.Endpoint = endpoint
	}

	if driver := os.Getenv("STORAGE_DRIVER"); driver != "" {
		config.Storage.Driver = driver
	}
	if path := os.Getenv("UPLOAD_DIR"); path != "" {
		config.Storage.LocalPath = path
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		config.Storage.Bucket = bucket
	}

	if arn := os.Getenv("SNS_TOPIC_ARN"); arn != "" {
		config.Events.SNSTopicARN = arn
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		config.Events.NATSURL = url
	}
	if from := os.Getenv("EMAIL_FROM"); from != "" {
		config.Events.EmailFrom = from
		config.Events.EmailEnabled = true
	}

	if addrs := os.Getenv("ELASTICSEARCH_URLS"); addrs != "" {
		config.Search.Addresses = strings.Split(addrs, ",")
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		config.Security.AllowedOrigins = strings.Split(origins, ",")
	}

	if strict := os.Getenv("WORKFLOW_STRICT_TRANSITIONS"); strict != "" {
		if b, err := strconv.ParseBool(strict); err == nil {
			config.Workflow.StrictTransitions = b
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "postgres", "mongo", "dynamodb":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Security.RequireAuth && c.Security.JWTSecret == "" {
		return errors.New("security.jwt_secret is required when require_auth is set")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BaseURL returns the public base URL, falling back to the listen address.
func (c *ServerConfig) BaseURL() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	return "http://" + c.GetServerAddr()
}
