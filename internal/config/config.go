package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout int
	Timeout     int
	Prefix      string
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
}

type EmailConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

type SMSConfig struct {
	BaseURL string
	APIKey  string
}

type JobsConfig struct {
	ReminderInterval   time.Duration
	EscalationInterval time.Duration
	MaintenanceHour    int
	ReportWeekday      time.Weekday
	ReportHour         int
}

type AppConfig struct {
	Port        string
	DocumentDir string
	PublicURL   string
	Postgres    PostgresConfig
	Redis       RedisConfig
	S3          S3Config
	Email       EmailConfig
	SMS         SMSConfig
	Jobs        JobsConfig
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int value %q: %v", s, err)
	}
	return i
}

func mustBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		log.Fatalf("invalid bool value %q: %v", s, err)
	}
	return b
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("invalid duration value %q: %v", s, err)
	}
	return d
}

func Load() AppConfig {
	return AppConfig{
		Port:        getenv("APP_PORT", "8020"),
		DocumentDir: getenv("DOCUMENT_DIR", "./documents"),
		PublicURL:   getenv("PUBLIC_URL", ""),
		Postgres: PostgresConfig{
			Host:     getenv("PG_HOST", "127.0.0.1"),
			Port:     mustAtoi(getenv("PG_PORT", "5432")),
			User:     getenv("PG_USER", "root"),
			Password: getenv("PG_PASSWORD", ""),
			DBName:   getenv("PG_DB", "collections"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:        getenv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    getenv("REDIS_PASSWORD", ""),
			DB:          mustAtoi(getenv("REDIS_DB", "0")),
			MaxRetries:  mustAtoi(getenv("REDIS_MAX_RETRIES", "5")),
			DialTimeout: mustAtoi(getenv("REDIS_DIAL_TIMEOUT", "10")),
			Timeout:     mustAtoi(getenv("REDIS_TIMEOUT", "5")),
			Prefix:      getenv("REDIS_PREFIX", "collections_engine_"),
		},
		S3: S3Config{
			Endpoint:        getenv("S3_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getenv("S3_ACCESS_KEY", "minio"),
			SecretAccessKey: getenv("S3_SECRET_KEY", "minio123"),
			Bucket:          getenv("S3_BUCKET", "collections"),
			Region:          getenv("S3_REGION", "us-east-1"),
			UseSSL:          mustBool(getenv("S3_USE_SSL", "false")),
			Prefix:          getenv("S3_PREFIX", ""),
		},
		Email: EmailConfig{
			Host:     getenv("SMTP_HOST", ""),
			Port:     getenv("SMTP_PORT", "587"),
			User:     getenv("SMTP_USER", ""),
			Password: getenv("SMTP_PASS", ""),
			From:     getenv("EMAIL_FROM", "collections@localhost"),
		},
		SMS: SMSConfig{
			BaseURL: getenv("SMS_BASE_URL", ""),
			APIKey:  getenv("SMS_API_KEY", ""),
		},
		Jobs: JobsConfig{
			ReminderInterval:   mustDuration(getenv("JOB_REMINDER_INTERVAL", "15m")),
			EscalationInterval: mustDuration(getenv("JOB_ESCALATION_INTERVAL", "1h")),
			MaintenanceHour:    mustAtoi(getenv("JOB_MAINTENANCE_HOUR", "2")),
			ReportWeekday:      time.Weekday(mustAtoi(getenv("JOB_REPORT_WEEKDAY", "1"))),
			ReportHour:         mustAtoi(getenv("JOB_REPORT_HOUR", "6")),
		},
	}
}
