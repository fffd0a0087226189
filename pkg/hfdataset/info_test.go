package hfdataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func infoTestServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"info-etag"`)
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))
}

func TestGetDatasetInfo_RawMap(t *testing.T) {
	server := infoTestServer(t, `{"id": "owner/name", "cardData": {"dataset_info": {"config_name": "default"}}}`)
	defer server.Close()

	cfg := testConfig(t)
	raw, err := GetDatasetInfo(context.Background(), cfg, "owner/name", InfoOptions{Endpoint: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "owner/name", raw["id"])
}

// TestGetDatasetInfos_SingleObject covers the cardData.dataset_info shape
// that is a single object rather than an array.
func TestGetDatasetInfos_SingleObject(t *testing.T) {
	server := infoTestServer(t, `{
		"cardData": {
			"dataset_info": {
				"config_name": "default",
				"splits": [{"name": "train", "num_examples": 10}, {"name": "test", "num_examples": 5}]
			}
		}
	}`)
	defer server.Close()

	cfg := testConfig(t)
	infos, err := GetDatasetInfos(context.Background(), cfg, "owner/name", InfoOptions{Endpoint: server.URL})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "default", infos[0].ConfigName)
	assert.Len(t, infos[0].Splits, 2)
}

// TestGetDatasetInfos_Array covers the array shape of cardData.dataset_info.
func TestGetDatasetInfos_Array(t *testing.T) {
	server := infoTestServer(t, `{
		"cardData": {
			"dataset_info": [
				{"config_name": "sst2", "splits": [{"name": "train", "num_examples": 7}]},
				{"config_name": "mnli", "splits": [{"name": "train", "num_examples": 3}, {"name": "validation", "num_examples": 1}]}
			]
		}
	}`)
	defer server.Close()

	cfg := testConfig(t)
	infos, err := GetDatasetInfos(context.Background(), cfg, "owner/name", InfoOptions{Endpoint: server.URL})
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "sst2", infos[0].ConfigName)
	assert.Equal(t, "mnli", infos[1].ConfigName)
}

func TestGetDatasetInfos_MissingCardData(t *testing.T) {
	server := infoTestServer(t, `{"id": "owner/name"}`)
	defer server.Close()

	cfg := testConfig(t)
	infos, err := GetDatasetInfos(context.Background(), cfg, "owner/name", InfoOptions{Endpoint: server.URL})
	require.NoError(t, err)
	assert.Nil(t, infos)
}

func TestGetDatasetSplitNames_Dedup(t *testing.T) {
	server := infoTestServer(t, `{
		"cardData": {
			"dataset_info": [
				{"config_name": "sst2", "splits": [{"name": "train"}, {"name": "validation"}]},
				{"config_name": "mnli", "splits": [{"name": "train"}, {"name": "test"}]}
			]
		}
	}`)
	defer server.Close()

	cfg := testConfig(t)
	names, err := GetDatasetSplitNames(context.Background(), cfg, "owner/name", InfoOptions{Endpoint: server.URL})
	require.NoError(t, err)
	assert.Equal(t, []string{"train", "validation", "test"}, names)
}

func TestGetDatasetConfigNames_Dedup(t *testing.T) {
	server := infoTestServer(t, `{
		"cardData": {
			"dataset_info": [
				{"config_name": "sst2"},
				{"config_name": "mnli"},
				{"config_name": "sst2"}
			]
		}
	}`)
	defer server.Close()

	cfg := testConfig(t)
	names, err := GetDatasetConfigNames(context.Background(), cfg, "owner/name", InfoOptions{Endpoint: server.URL})
	require.NoError(t, err)
	assert.Equal(t, []string{"sst2", "mnli"}, names)
}

func TestInfoToken_RejectsInvalidPrefix(t *testing.T) {
	cfg := testConfig(t)
	cfg.Token = "hf_fromconfig"
	assert.Equal(t, "hf_fromconfig", infoToken(cfg, InfoOptions{AuthToken: "not-a-valid-token"}))
	assert.Equal(t, "hf_override", infoToken(cfg, InfoOptions{AuthToken: "hf_override"}))
}
