package hfdataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// InfoOptions selects authentication/endpoint overrides for the Info
// operations; it mirrors the subset of RemoteOptions relevant to a
// metadata-only fetch (no revision/subdir — the dataset-info endpoint is
// revision-independent).
type InfoOptions struct {
	AuthToken string
	CacheDir  string
	Offline   bool
	Endpoint  string
}

// infoToken resolves the bearer token for an Info call, applying the same
// "hf_" prefix rule GetHfToken uses: an option-supplied token that
// doesn't start with "hf_" is treated as absent, same as the environment.
func infoToken(cfg *Config, opts InfoOptions) string {
	if isValidToken(opts.AuthToken) {
		return opts.AuthToken
	}
	return cfg.Token
}

func infoEndpoint(cfg *Config, opts InfoOptions) string {
	if opts.Endpoint != "" {
		return opts.Endpoint
	}
	return cfg.Endpoint
}

// GetDatasetInfo fetches and parses the raw dataset-info JSON document
// at <endpoint>/api/datasets/<repo_id>.
func GetDatasetInfo(ctx context.Context, cfg *Config, repositoryID string, opts InfoOptions) (map[string]interface{}, error) {
	cache := NewCache(NewTransport())
	url := fmt.Sprintf("%s/api/datasets/%s", infoEndpoint(cfg, opts), repositoryID)

	path, err := cache.CachedDownload(ctx, url, CacheOptions{
		CacheDir:         effectiveInfoCacheDir(cfg, opts),
		CacheScope:       CacheScope(repositoryID),
		AuthToken:        infoToken(cfg, opts),
		Offline:          opts.Offline,
		DownloadMode:     ReuseIfExists,
		VerificationMode: BasicChecks,
	})
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewBadConfigError("dataset info", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewBadConfigError("dataset info", err)
	}
	return raw, nil
}

func effectiveInfoCacheDir(cfg *Config, opts InfoOptions) string {
	if opts.CacheDir != "" {
		return opts.CacheDir
	}
	return cfg.CacheDir
}

// cardDataset mirrors the `cardData.dataset_info` shape, which the hub
// serves as either a single object or an array of objects.
type cardDataset struct {
	ConfigName  string `json:"config_name"`
	Description string `json:"description"`
	Homepage    string `json:"homepage"`
	License     string `json:"license"`
	Citation    string `json:"citation"`
	Features    []struct {
		Name  string `json:"name"`
		Dtype string `json:"dtype"`
	} `json:"features"`
	Splits []struct {
		Name        string `json:"name"`
		NumExamples int64  `json:"num_examples"`
	} `json:"splits"`
}

// GetDatasetInfos parses cardData.dataset_info into a DatasetInfo sequence
//, accepting either a single object or an array, with missing
// fields reported as their zero value.
func GetDatasetInfos(ctx context.Context, cfg *Config, repositoryID string, opts InfoOptions) ([]DatasetInfo, error) {
	raw, err := GetDatasetInfo(ctx, cfg, repositoryID, opts)
	if err != nil {
		return nil, err
	}

	cardData, _ := raw["cardData"].(map[string]interface{})
	if cardData == nil {
		return nil, nil
	}

	datasetInfoField, ok := cardData["dataset_info"]
	if !ok {
		return nil, nil
	}

	entries, err := normalizeCardDatasetEntries(datasetInfoField)
	if err != nil {
		return nil, NewBadConfigError("cardData.dataset_info", err)
	}

	infos := make([]DatasetInfo, 0, len(entries))
	for _, e := range entries {
		info := DatasetInfo{
			ConfigName:  e.ConfigName,
			Description: e.Description,
			Homepage:    e.Homepage,
			License:     e.License,
			Citation:    e.Citation,
		}
		for _, f := range e.Features {
			info.Features = append(info.Features, Feature{Name: f.Name, Dtype: f.Dtype})
		}
		for _, s := range e.Splits {
			info.Splits = append(info.Splits, SplitInfo{Name: s.Name, NumExamples: s.NumExamples})
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// normalizeCardDatasetEntries accepts cardData.dataset_info as either a
// JSON object or a JSON array of objects, per .
func normalizeCardDatasetEntries(field interface{}) ([]cardDataset, error) {
	data, err := json.Marshal(field)
	if err != nil {
		return nil, err
	}

	var arr []cardDataset
	if err := json.Unmarshal(data, &arr); err == nil {
		return arr, nil
	}

	var single cardDataset
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	return []cardDataset{single}, nil
}

// GetDatasetSplitNames flattens splits[*].name across every parsed info,
// deduplicated in first-seen order.
func GetDatasetSplitNames(ctx context.Context, cfg *Config, repositoryID string, opts InfoOptions) ([]string, error) {
	infos, err := GetDatasetInfos(ctx, cfg, repositoryID, opts)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var names []string
	for _, info := range infos {
		for _, split := range info.Splits {
			if !seen[split.Name] {
				seen[split.Name] = true
				names = append(names, split.Name)
			}
		}
	}
	return names, nil
}

// GetDatasetConfigNames returns every config_name across the parsed infos,
// deduplicated in first-seen order.
func GetDatasetConfigNames(ctx context.Context, cfg *Config, repositoryID string, opts InfoOptions) ([]string, error) {
	infos, err := GetDatasetInfos(ctx, cfg, repositoryID, opts)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var names []string
	for _, info := range infos {
		if info.ConfigName == "" || seen[info.ConfigName] {
			continue
		}
		seen[info.ConfigName] = true
		names = append(names, info.ConfigName)
	}
	return names, nil
}
