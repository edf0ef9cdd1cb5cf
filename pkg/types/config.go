// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// EngineKind identifies the external tool that performs the PDF-to-DOCX
// transformation.
type EngineKind string

const (
	EngineContainer EngineKind = "container"
	EngineSoffice   EngineKind = "soffice"
	EngineRemote    EngineKind = "remote"
)

// RuntimeChoice selects the container runtime for EngineContainer.
type RuntimeChoice string

const (
	RuntimeAuto   RuntimeChoice = "auto"
	RuntimeDocker RuntimeChoice = "docker"
	RuntimePodman RuntimeChoice = "podman"
)

// EngineConfig holds settings for the conversion engine.
type EngineConfig struct {
	// Kind selects the engine: container, soffice, or remote (default container).
	Kind EngineKind `json:"kind" yaml:"kind" mapstructure:"kind"`

	// Runtime selects docker or podman for the container engine. "auto" tries
	// docker first and falls back to podman.
	Runtime RuntimeChoice `json:"runtime" yaml:"runtime" mapstructure:"runtime"`

	// Image is the container image that provides the pdf2docx CLI
	// (default "pdf2docx:latest").
	Image string `json:"image" yaml:"image" mapstructure:"image"`

	// SofficeBin is the LibreOffice binary name or path (default "soffice").
	SofficeBin string `json:"soffice_bin" yaml:"soffice_bin" mapstructure:"soffice_bin"`

	// RemoteURL is the base URL of a conversion service exposing
	// POST /convert/pdf-to-word.
	RemoteURL string `json:"remote_url,omitempty" yaml:"remote_url,omitempty" mapstructure:"remote_url"`

	// RemoteToken is an optional bearer token for the remote service.
	RemoteToken string `json:"-" yaml:"-" mapstructure:"remote_token"`

	// RemoteTimeout bounds a single remote HTTP exchange (default 5m).
	RemoteTimeout time.Duration `json:"remote_timeout" yaml:"remote_timeout" mapstructure:"remote_timeout"`

	// MaxRetries is the number of retries on 429/503 for the remote engine (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// LogFormat selects the log encoding.
type LogFormat string

const (
	LogConsole LogFormat = "console"
	LogJSON    LogFormat = "json"
)

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is console or json (default console).
	Format LogFormat `json:"format" yaml:"format" mapstructure:"format"`
}

// HistoryConfig holds settings for the conversion journal.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty disables the journal.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// ServeConfig holds settings for the HTTP conversion endpoint.
type ServeConfig struct {
	// Addr is the listen address (default ":5000").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// UploadDir holds uploaded PDFs and converted documents while a request
	// is in flight (default "uploads").
	UploadDir string `json:"upload_dir" yaml:"upload_dir" mapstructure:"upload_dir"`

	// MaxUploadBytes caps the request body size (default 10 MiB).
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`

	// AllowedOrigins lists CORS origins (default http://localhost:5173).
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" mapstructure:"allowed_origins"`

	// RateLimit is the number of requests per minute per client IP. Zero disables limiting.
	RateLimit int `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`

	// Token, when set, is required as a bearer token on conversion requests.
	Token string `json:"-" yaml:"-" mapstructure:"token"`
}

// Config groups all settings read by the CLI.
type Config struct {
	Engine  EngineConfig  `json:"engine" yaml:"engine" mapstructure:"engine"`
	Log     LogConfig     `json:"log" yaml:"log" mapstructure:"log"`
	History HistoryConfig `json:"history" yaml:"history" mapstructure:"history"`
	Serve   ServeConfig   `json:"serve" yaml:"serve" mapstructure:"serve"`
}
