// Package config loads and holds all veil configuration.
// Settings are read from defaults, then veil-config.json, then environment
// variables. A .env file in the working directory is loaded first (godotenv)
// so the same env names work in development and CI.
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the full veil configuration.
type Config struct {
	LogLevel string `json:"logLevel"`
	Workers  int    `json:"workers"`

	// Anonymization
	DateShiftDays  int     `json:"dateShiftDays"`  // max |offset| drawn per batch
	ScoreThreshold float64 `json:"scoreThreshold"` // minimum span confidence applied
	UseAIDetection bool    `json:"useAIDetection"`
	OllamaEndpoint string  `json:"ollamaEndpoint"`
	OllamaModel    string  `json:"ollamaModel"`
	DetectTimeout  int     `json:"detectTimeoutSeconds"`

	// Extraction
	ExtractTimeout    int    `json:"extractTimeoutSeconds"`
	PDFTextPath       string `json:"pdftotextPath"`
	RemoteExtractURL  string `json:"remoteExtractEndpoint"`
	RemoteExtractKey  string `json:"remoteExtractKey"`
	ExtractCachePath  string `json:"extractCachePath"`
	ExtractCacheItems int    `json:"extractCacheItems"`

	// Segmentation
	MinTokens  int `json:"minTokens"`
	MaxTokens  int `json:"maxTokens"`
	SplitLevel int `json:"splitLevel"`
}

// Load returns config with defaults overridden by veil-config.json and env vars.
func Load() *Config {
	_ = godotenv.Load() // .env is optional
	cfg := defaults()
	loadFile(cfg, "veil-config.json")
	loadEnv(cfg)
	return cfg
}

func defaults() *Config {
	return &Config{
		LogLevel:          "info",
		Workers:           4,
		DateShiftDays:     365,
		ScoreThreshold:    0.5,
		UseAIDetection:    false,
		OllamaEndpoint:    "http://localhost:11434",
		OllamaModel:       "qwen2.5:3b",
		DetectTimeout:     30,
		ExtractTimeout:    120,
		PDFTextPath:       "pdftotext",
		ExtractCacheItems: 1000,
		MinTokens:         10000,
		MaxTokens:         15000,
		SplitLevel:        2,
	}
}

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // file is optional
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		log.Printf("[CONFIG] Warning: could not parse %s: %v", path, err)
	} else {
		log.Printf("[CONFIG] Loaded %s", path)
	}
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("VEIL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("VEIL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("VEIL_DATE_SHIFT_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.DateShiftDays = n
		}
	}
	if v := os.Getenv("VEIL_SCORE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ScoreThreshold = f
		}
	}
	if v := os.Getenv("VEIL_USE_AI_DETECTION"); v != "" {
		cfg.UseAIDetection = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("OLLAMA_ENDPOINT"); v != "" {
		cfg.OllamaEndpoint = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.OllamaModel = v
	}
	if v := os.Getenv("VEIL_DETECT_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DetectTimeout = n
		}
	}
	if v := os.Getenv("VEIL_EXTRACT_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ExtractTimeout = n
		}
	}
	if v := os.Getenv("VEIL_PDFTOTEXT"); v != "" {
		cfg.PDFTextPath = v
	}
	if v := os.Getenv("VEIL_REMOTE_EXTRACT_ENDPOINT"); v != "" {
		cfg.RemoteExtractURL = v
	}
	if v := os.Getenv("VEIL_REMOTE_EXTRACT_KEY"); v != "" {
		cfg.RemoteExtractKey = v
	}
	if v := os.Getenv("VEIL_EXTRACT_CACHE"); v != "" {
		cfg.ExtractCachePath = v
	}
	if v := os.Getenv("VEIL_EXTRACT_CACHE_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ExtractCacheItems = n
		}
	}
	if v := os.Getenv("VEIL_MIN_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MinTokens = n
		}
	}
	if v := os.Getenv("VEIL_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxTokens = n
		}
	}
	if v := os.Getenv("VEIL_SPLIT_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 6 {
			cfg.SplitLevel = n
		}
	}
}
