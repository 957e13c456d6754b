// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the legal-ingest CLI.
//
// The run command drives the whole pipeline; each stage is also exposed as
// its own subcommand so a single stage can be rerun after a failure.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/legal-ingest/internal/secrets"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is configured from --log-level before any command runs.
var logger = slog.Default()

var rootCmd = &cobra.Command{
	Use:   "legal-ingest",
	Short: "Incremental ingestion of Slovenian tax law into a vector index",
	Long: `legal-ingest discovers the reference catalog of the financial
administration, downloads every referenced document, converts it to text,
chunks and embeds it, and keeps a local vector index up to date.

Every stage persists its progress, so reruns only do the work that is
missing. Use "run --mode=update" for a full pass, or a stage subcommand to
rerun one stage.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		if err := setupLogger(level); err != nil {
			return err
		}
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}
		s, err := secrets.Load(".secrets", logger)
		if err != nil {
			return err
		}
		set, err := s.Export(secrets.EnvBindings)
		if err != nil {
			return err
		}
		if len(set) > 0 {
			logger.Debug("loaded secrets", "keys", s.Keys(), "env", set)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./legal-ingest.yaml or ~/.config/legal-ingest/legal-ingest.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("metrics-file", "", "write prometheus metrics to this file when the command ends")
}

func setupLogger(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("%w: invalid log level %q", types.ErrConfig, level)
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
	return nil
}

// envBindings maps config keys to the unprefixed environment variables the
// deployment sets. Every other key is read from LEGAL_INGEST_<KEY>.
var envBindings = map[string]string{
	"paths.root_url":           "ROOT_URL",
	"paths.metadata_dir":       "METADATA_DIR",
	"paths.raw_data_dir":       "RAW_DATA_DIR",
	"paths.converted_data_dir": "CONVERTED_DATA_DIR",
	"paths.chunks_data_dir":    "FILE_CHUNKS_DATA_DIR",
	"paths.vector_db_path":     "VECTOR_DB_PATH",
	"embed.model":              "EMBEDDING_MODEL",
	"embed.api_key":            "OPENAI_API_KEY",
	"embed.base_url":           "OPENAI_BASE_URL",
	"backup.bucket":            "BACKUP_BUCKET",
	"backup.prefix":            "BACKUP_PREFIX",
	"backup.credentials_file":  "GOOGLE_APPLICATION_CREDENTIALS",
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("legal-ingest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "legal-ingest"))
		}
	}

	setDefaults(types.DefaultConfig())

	viper.SetEnvPrefix("LEGAL_INGEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for key, env := range envBindings {
		_ = viper.BindEnv(key, env)
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setDefaults(d types.Config) {
	viper.SetDefault("paths.root_url", d.Paths.RootURL)
	viper.SetDefault("paths.metadata_dir", d.Paths.MetadataDir)
	viper.SetDefault("paths.raw_data_dir", d.Paths.RawDataDir)
	viper.SetDefault("paths.converted_data_dir", d.Paths.ConvertedDataDir)
	viper.SetDefault("paths.chunks_data_dir", d.Paths.ChunksDataDir)
	viper.SetDefault("paths.vector_db_path", d.Paths.VectorDBPath)

	viper.SetDefault("download.timeout", d.Download.Timeout)
	viper.SetDefault("download.user_agent", d.Download.UserAgent)
	viper.SetDefault("download.max_retries", d.Download.MaxRetries)
	viper.SetDefault("download.max_elapsed", d.Download.MaxElapsed)
	viper.SetDefault("download.workers", d.Download.Workers)
	viper.SetDefault("download.browser_workers", d.Download.BrowserWorkers)
	viper.SetDefault("download.render_timeout", d.Download.RenderTimeout)
	viper.SetDefault("download.stealth", d.Download.Stealth)
	viper.SetDefault("download.browser_url", d.Download.BrowserURL)

	viper.SetDefault("conversion.tools", string(d.Conversion.Tools))
	viper.SetDefault("conversion.pandoc_image", d.Conversion.PandocImage)
	viper.SetDefault("conversion.office_image", d.Conversion.OfficeImage)

	viper.SetDefault("chunk.max_tokens", d.Chunk.MaxTokens)
	viper.SetDefault("chunk.overlap", d.Chunk.Overlap)
	viper.SetDefault("chunk.overview", d.Chunk.Overview)

	viper.SetDefault("embed.model", d.Embed.Model)
	viper.SetDefault("embed.batch_size", d.Embed.BatchSize)
	viper.SetDefault("embed.max_attempts", d.Embed.MaxAttempts)
	viper.SetDefault("embed.workers", d.Embed.Workers)
	viper.SetDefault("embed.requests_per_second", d.Embed.RequestsPerSecond)

	viper.SetDefault("index.checkpoint_every", d.Index.CheckpointEvery)
}

// loadConfig assembles the configuration from defaults, the config file and
// the environment, in increasing precedence.
func loadConfig() types.Config {
	return types.Config{
		Paths: types.PathsConfig{
			RootURL:          viper.GetString("paths.root_url"),
			MetadataDir:      viper.GetString("paths.metadata_dir"),
			RawDataDir:       viper.GetString("paths.raw_data_dir"),
			ConvertedDataDir: viper.GetString("paths.converted_data_dir"),
			ChunksDataDir:    viper.GetString("paths.chunks_data_dir"),
			VectorDBPath:     viper.GetString("paths.vector_db_path"),
		},
		Download: types.DownloadConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("download.timeout"),
				UserAgent: viper.GetString("download.user_agent"),
			},
			MaxRetries:     viper.GetInt("download.max_retries"),
			MaxElapsed:     viper.GetDuration("download.max_elapsed"),
			Workers:        viper.GetInt("download.workers"),
			BrowserWorkers: viper.GetInt("download.browser_workers"),
			RenderTimeout:  viper.GetDuration("download.render_timeout"),
			Stealth:        viper.GetBool("download.stealth"),
			BrowserURL:     viper.GetString("download.browser_url"),
		},
		Conversion: types.ConversionConfig{
			Tools:       types.ToolMode(viper.GetString("conversion.tools")),
			PandocImage: viper.GetString("conversion.pandoc_image"),
			OfficeImage: viper.GetString("conversion.office_image"),
		},
		Chunk: types.ChunkConfig{
			MaxTokens: viper.GetInt("chunk.max_tokens"),
			Overlap:   viper.GetInt("chunk.overlap"),
			Overview:  viper.GetBool("chunk.overview"),
		},
		Embed: types.EmbedConfig{
			Model:             viper.GetString("embed.model"),
			APIKey:            viper.GetString("embed.api_key"),
			BaseURL:           viper.GetString("embed.base_url"),
			BatchSize:         viper.GetInt("embed.batch_size"),
			MaxAttempts:       viper.GetInt("embed.max_attempts"),
			Workers:           viper.GetInt("embed.workers"),
			RequestsPerSecond: viper.GetFloat64("embed.requests_per_second"),
		},
		Index: types.IndexConfig{
			CheckpointEvery: viper.GetInt("index.checkpoint_every"),
		},
		Backup: types.BackupConfig{
			Bucket:          viper.GetString("backup.bucket"),
			Prefix:          viper.GetString("backup.prefix"),
			CredentialsFile: viper.GetString("backup.credentials_file"),
		},
	}
}

// signalContext is cancelled on SIGINT or SIGTERM so every stage can stop
// after its current commit.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
