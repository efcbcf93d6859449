package config

import (
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const configFileName = "vbridge"

// Config holds the configuration options for the application.
type Config struct {
	MaxConcurrentTransfers int           `yaml:"maxConcurrentTransfers,omitempty"`
	TempDir                string        `yaml:"tempDir,omitempty"`
	HistoryPath            string        `yaml:"historyPath,omitempty"`
	LogPath                string        `yaml:"logPath,omitempty"`
	RequestTimeout         time.Duration `yaml:"requestTimeout,omitempty"`
	Drive                  *DriveConfig  `yaml:"drive,omitempty"`
	Graph                  *GraphConfig  `yaml:"graph,omitempty"`
}

// DriveConfig holds options for the download side.
type DriveConfig struct {
	DownloadEndpoint string `yaml:"downloadEndpoint,omitempty"`
	ConfirmEndpoint  string `yaml:"confirmEndpoint,omitempty"`
	ReadChunkSize    int    `yaml:"readChunkSize,omitempty"`
	MinContentLength int64  `yaml:"minContentLength,omitempty"`
}

// GraphConfig holds options for the upload side.
type GraphConfig struct {
	UploadEndpoint   string        `yaml:"uploadEndpoint,omitempty"`
	APIEndpoint      string        `yaml:"apiEndpoint,omitempty"`
	VideoURLTemplate string        `yaml:"videoUrlTemplate,omitempty"`
	MaxRetries       int           `yaml:"maxRetries,omitempty"`
	RetryDelay       time.Duration `yaml:"retryDelay,omitempty"`
}

// GetConfig reads the configuration file and returns a Config struct.
// If the configuration file does not exist, it returns the default configuration.
func GetConfig() (*Config, error) {
	configFilePath := filepath.Join(xdg.ConfigHome, configFileName)
	defaults := DefaultConfig()

	b, err := os.ReadFile(configFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &defaults, nil
		}

		return nil, err
	}

	if len(b) == 0 {
		return &defaults, nil
	}

	var cfg Config

	err = yaml.Unmarshal(b, &cfg)
	if err != nil {
		return nil, err
	}

	driveCfg := zeroOr(cfg.Drive, defaults.Drive)
	graphCfg := zeroOr(cfg.Graph, defaults.Graph)

	return &Config{
		MaxConcurrentTransfers: zeroOr(cfg.MaxConcurrentTransfers, defaults.MaxConcurrentTransfers),
		TempDir:                zeroOr(cfg.TempDir, defaults.TempDir),
		HistoryPath:            zeroOr(cfg.HistoryPath, defaults.HistoryPath),
		LogPath:                zeroOr(cfg.LogPath, defaults.LogPath),
		RequestTimeout:         zeroOr(cfg.RequestTimeout, defaults.RequestTimeout),
		Drive: &DriveConfig{
			DownloadEndpoint: zeroOr(driveCfg.DownloadEndpoint, defaults.Drive.DownloadEndpoint),
			ConfirmEndpoint:  zeroOr(driveCfg.ConfirmEndpoint, defaults.Drive.ConfirmEndpoint),
			ReadChunkSize:    zeroOr(driveCfg.ReadChunkSize, defaults.Drive.ReadChunkSize),
			MinContentLength: zeroOr(driveCfg.MinContentLength, defaults.Drive.MinContentLength),
		},
		Graph: &GraphConfig{
			UploadEndpoint:   zeroOr(graphCfg.UploadEndpoint, defaults.Graph.UploadEndpoint),
			APIEndpoint:      zeroOr(graphCfg.APIEndpoint, defaults.Graph.APIEndpoint),
			VideoURLTemplate: zeroOr(graphCfg.VideoURLTemplate, defaults.Graph.VideoURLTemplate),
			MaxRetries:       zeroOr(graphCfg.MaxRetries, defaults.Graph.MaxRetries),
			RetryDelay:       zeroOr(graphCfg.RetryDelay, defaults.Graph.RetryDelay),
		},
	}, nil
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrentTransfers: maxConcurrentTransfers,
		TempDir:                tempDir,
		HistoryPath:            historyPath,
		LogPath:                logPath,
		RequestTimeout:         requestTimeout,
		Drive: &DriveConfig{
			DownloadEndpoint: downloadEndpoint,
			ConfirmEndpoint:  confirmEndpoint,
			ReadChunkSize:    readChunkSize,
			MinContentLength: minContentLength,
		},
		Graph: &GraphConfig{
			UploadEndpoint:   uploadEndpoint,
			APIEndpoint:      apiEndpoint,
			VideoURLTemplate: videoURLTemplate,
			MaxRetries:       maxRetries,
			RetryDelay:       retryDelay,
		},
	}
}

// zeroOr returns def if v is the zero value for its type.
func zeroOr[T any](v, def T) T {
	if reflect.ValueOf(v).IsZero() {
		return def
	}

	return v
}
