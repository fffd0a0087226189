package hfdataset

import (
	"os"
	"path/filepath"
	"time"
)

// Default values and constants, following the conventions of the upstream hub
// client this package descends from.
const (
	DefaultEndpoint = "https://huggingface.co"
	DefaultRevision = "main"

	DefaultCacheDir = ".cache/huggingface/hub"

	DefaultRequestTimeout  = 10 * time.Second
	DefaultEtagTimeout     = 10 * time.Second
	DefaultDownloadTimeout = 10 * time.Minute

	DefaultMaxWorkers    = 8
	DefaultMaxRetries    = 5
	DefaultRetryInterval = 10 * time.Second
	DefaultBatchSize     = 1000

	RepoTypeDataset = "dataset"

	AuthorizationHeader = "Authorization"
	UserAgentHeader     = "User-Agent"
	LinkedEtagHeader    = "X-Linked-Etag"
	ErrorCodeHeader     = "x-error-code"

	UserAgent = "hfdatasets-go/1.0.0"
)

// Environment variables recognized by this package.
const (
	EnvHfToken      = "HF_TOKEN"
	EnvHfHome       = "HF_HOME"
	EnvCacheDir     = "DATASETS_CACHE_DIR"
	EnvHfHubCache   = "HF_HUB_CACHE"
	EnvDatasetsOff  = "DATASETS_OFFLINE"
	EnvProgressMode = "HF_PROGRESS_MODE"
)

// GetCacheDir returns the default cache root, checking environment
// variables before falling back to the user's home directory.
func GetCacheDir() string {
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		return dir
	}
	if dir := os.Getenv(EnvHfHubCache); dir != "" {
		return dir
	}
	if home := os.Getenv(EnvHfHome); home != "" {
		return filepath.Join(home, "hub")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DefaultCacheDir
	}
	return filepath.Join(homeDir, DefaultCacheDir)
}

// GetHfToken returns the bearer token from the environment, applying the
// "hf_" prefix rule: anything else is treated as no token.
func GetHfToken() string {
	tok := os.Getenv(EnvHfToken)
	if !isValidToken(tok) {
		return ""
	}
	return tok
}

func isValidToken(tok string) bool {
	return len(tok) > 3 && tok[:3] == "hf_"
}

// IsOfflineMode consults DATASETS_OFFLINE per .
func IsOfflineMode() bool {
	v := os.Getenv(EnvDatasetsOff)
	return v == "1" || v == "true"
}
