package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        int
	DBPath      string
	MaxClients  int
	MaxUsers    int
	UploadDir   string
	ControlSock string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	FAQServiceURL string
	FAQTimeout    time.Duration
	FAQCacheTTL   time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:          8080,
		DBPath:        "chatd.db",
		MaxClients:    50,
		MaxUsers:      1000,
		UploadDir:     "uploads",
		ControlSock:   "/tmp/chatd.sock",
		ReadTimeout:   120 * time.Second,
		WriteTimeout:  30 * time.Second,
		FAQServiceURL: "http://127.0.0.1:5005/faq",
		FAQTimeout:    10 * time.Second,
		FAQCacheTTL:   5 * time.Minute,
	}

	if portStr := os.Getenv("CHATD_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Port = port
		}
	}

	if dbPath := os.Getenv("CHATD_DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	if limitStr := os.Getenv("CHATD_MAX_CLIENTS"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			cfg.MaxClients = limit
		}
	}

	if limitStr := os.Getenv("CHATD_MAX_USERS"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			cfg.MaxUsers = limit
		}
	}

	if dir := os.Getenv("CHATD_UPLOAD_DIR"); dir != "" {
		cfg.UploadDir = dir
	}

	if sock := os.Getenv("CHATD_CONTROL_SOCK"); sock != "" {
		cfg.ControlSock = sock
	}

	if timeoutStr := os.Getenv("CHATD_READ_TIMEOUT"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil {
			cfg.ReadTimeout = time.Duration(timeout) * time.Second
		}
	}

	if timeoutStr := os.Getenv("CHATD_WRITE_TIMEOUT"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil {
			cfg.WriteTimeout = time.Duration(timeout) * time.Second
		}
	}

	if url := os.Getenv("CHATD_FAQ_URL"); url != "" {
		cfg.FAQServiceURL = url
	}

	if timeoutStr := os.Getenv("CHATD_FAQ_TIMEOUT"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil {
			cfg.FAQTimeout = time.Duration(timeout) * time.Second
		}
	}

	return cfg
}
