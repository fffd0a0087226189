package hfdataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleListing() RepoListing {
	return RepoListing{
		"sst2/train.parquet":      `"a"`,
		"sst2/validation.parquet": `"b"`,
		"mnli/train-00000.csv":    `"c"`,
		"mnli/test.jsonl":         `"d"`,
		"README.md":               "",
	}
}

func TestByConfigAndSplit_ConfigOnly(t *testing.T) {
	out := ByConfigAndSplit(sampleListing(), "sst2", "")
	assert.Len(t, out, 2)
	_, ok := out["sst2/train.parquet"]
	assert.True(t, ok)
}

func TestByConfigAndSplit_SplitOnly(t *testing.T) {
	out := ByConfigAndSplit(sampleListing(), "", "train")
	assert.Len(t, out, 2)
	_, ok := out["mnli/train-00000.csv"]
	assert.True(t, ok)
}

func TestByConfigAndSplit_Both(t *testing.T) {
	out := ByConfigAndSplit(sampleListing(), "mnli", "train")
	assert.Len(t, out, 1)
	_, ok := out["mnli/train-00000.csv"]
	assert.True(t, ok)
}

func TestByConfigAndSplit_Neither(t *testing.T) {
	out := ByConfigAndSplit(sampleListing(), "", "")
	assert.Len(t, out, len(sampleListing()))
}

// TestByConfigAndSplit_Orthogonality checks that filtering by name=N alone
// and then by split=S alone equals filter(L, name=N, split=S).
func TestByConfigAndSplit_Orthogonality(t *testing.T) {
	l := sampleListing()
	composed := ByConfigAndSplit(ByConfigAndSplit(l, "sst2", ""), "", "train")
	direct := ByConfigAndSplit(l, "sst2", "train")
	assert.Equal(t, direct, composed)
}

func TestBasenameNoExt(t *testing.T) {
	assert.Equal(t, "train", basenameNoExt("a/b/train.csv"))
	assert.Equal(t, "train-00000", basenameNoExt("train-00000.parquet"))
}
