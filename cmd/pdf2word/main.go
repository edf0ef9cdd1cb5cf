// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pdf2word CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf2word/internal/logging"
	"github.com/pdiddy/pdf2word/internal/secrets"
	"github.com/pdiddy/pdf2word/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is built from the log.* settings before any command runs.
var logger = zerolog.Nop()

// errReported marks failures that were already logged as the final line.
var errReported = errors.New("conversion failed")

// rootCmd converts a single PDF; serve, history, and version are subcommands.
var rootCmd = &cobra.Command{
	Use:   "pdf2word [flags] <input_pdf_path> <output_docx_path>",
	Short: "Convert a PDF document into a Word (.docx) document",
	Long: `pdf2word converts one PDF file into a DOCX file using an external
conversion engine: pdf2docx in a container (default), a local LibreOffice, or a
remote conversion service. The destination directory is created when missing.

Exit status is 0 when the DOCX was written and 1 otherwise.`,
	Args:          cobra.ExactArgs(2),
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Arguments are valid by now; failures from here on are not usage errors.
		cmd.SilenceUsage = true

		logger = logging.New(types.LogConfig{
			Level:  viper.GetString("log.level"),
			Format: types.LogFormat(viper.GetString("log.format")),
		}, cmd.ErrOrStderr())

		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug().Str("config", used).Msg("using config file")
		}

		s, err := secrets.Load(".secrets/", logger)
		if err != nil {
			return err
		}
		applySecrets(s)
		return nil
	},
	RunE: runConvert,
}

func init() {
	cobra.OnInitialize(initConfig)
	setDefaults()

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./pdf2word.yaml or ~/.config/pdf2word/config.yaml)")
	pf.String("engine", "container", "conversion engine: container, soffice, or remote")
	pf.String("runtime", "auto", "container runtime for the container engine: auto, docker, or podman")
	pf.String("image", "pdf2docx:latest", "container image providing the pdf2docx CLI")
	pf.String("soffice-bin", "soffice", "LibreOffice binary for the soffice engine")
	pf.String("remote-url", "", "base URL of the conversion service for the remote engine")
	pf.String("log-level", "info", "log level: debug, info, warn, or error")
	pf.String("log-format", "console", "log format: console or json")
	pf.String("history", "", "SQLite file journaling conversions (empty disables)")

	bindFlags(pf, map[string]string{
		"engine.kind":        "engine",
		"engine.runtime":     "runtime",
		"engine.image":       "image",
		"engine.soffice_bin": "soffice-bin",
		"engine.remote_url":  "remote-url",
		"log.level":          "log-level",
		"log.format":         "log-format",
		"history.path":       "history",
	})
}

func setDefaults() {
	viper.SetDefault("engine.kind", string(types.EngineContainer))
	viper.SetDefault("engine.runtime", string(types.RuntimeAuto))
	viper.SetDefault("engine.image", "pdf2docx:latest")
	viper.SetDefault("engine.soffice_bin", "soffice")
	viper.SetDefault("engine.remote_url", "")
	viper.SetDefault("engine.remote_token", "")
	viper.SetDefault("engine.remote_timeout", "5m")
	viper.SetDefault("engine.max_retries", 5)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", string(types.LogConsole))
	viper.SetDefault("serve.addr", ":5000")
	viper.SetDefault("serve.upload_dir", "uploads")
	viper.SetDefault("serve.max_upload_bytes", 10<<20)
	viper.SetDefault("serve.allowed_origins", []string{"http://localhost:5173"})
	viper.SetDefault("serve.rate_limit", 0)
	viper.SetDefault("serve.token", "")
	viper.SetDefault("history.path", "")
}

// bindFlags binds each config key to the named flag of fs.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", flag, err))
		}
	}
}

func initConfig() {
	// A missing .env is the common case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: reading .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pdf2word")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pdf2word"))
		}
	}

	viper.SetEnvPrefix("PDF2WORD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "warning: reading config:", err)
		}
	}
}

// applySecrets fills token settings from .secrets/ unless already configured.
func applySecrets(s map[string]string) {
	for name, key := range secrets.ConfigKeys {
		if v, ok := s[name]; ok && viper.GetString(key) == "" {
			viper.Set(key, v)
		}
	}
	if len(s) > 0 {
		logger.Debug().Strs("secrets", secrets.Names(s)).Msg("loaded secrets")
	}
}

// loadConfig decodes the merged flag, env, file, and default settings.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
