package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

const (
	maxConcurrentTransfers = 3
	maxRetries             = 0
	retryDelay             = 2 * time.Second
	requestTimeout         = 0 * time.Second

	downloadEndpoint = "https://drive.google.com/uc"
	confirmEndpoint  = "https://drive.usercontent.google.com/download"
	readChunkSize    = 32 * 1024
	// Responses shorter than this are assumed to be an error or consent page
	// rather than media.
	minContentLength = 1_000_000

	uploadEndpoint   = "https://graph-video.facebook.com/v19.0"
	apiEndpoint      = "https://graph.facebook.com/v19.0"
	videoURLTemplate = "https://www.facebook.com/video.php?v=%s"
)

var (
	tempDir     = filepath.Join(os.TempDir(), configFileName)
	historyPath = filepath.Join(xdg.DataHome, configFileName, "history.db")
	logPath     = filepath.Join(xdg.DataHome, configFileName, "debug.log")
)
