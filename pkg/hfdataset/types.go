package hfdataset

// DownloadMode selects how the Cache treats a pre-existing entry.
type DownloadMode int

const (
	// ReuseIfExists returns the cached entry when its etag is still valid.
	ReuseIfExists DownloadMode = iota
	// ForceRedownload discards any cached metadata before fetching.
	ForceRedownload
)

// VerificationMode selects how strictly the Cache checks a cached entry's
// content file before trusting it.
type VerificationMode int

const (
	// BasicChecks requires the content file named by the metadata's etag
	// to exist on disk.
	BasicChecks VerificationMode = iota
	// NoChecks trusts the metadata file without probing for the content file.
	NoChecks
)

// Handle is a repository reference: either a local directory or a remote
// hub repository. It is a sealed sum type — the only implementations are
// unexported and constructed via NewLocal / NewRemote, per the REDESIGN
// FLAGS note on tagged tuples as repository handles.
type Handle interface {
	isHandle()
}

// RemoteOptions carries the option bag recognized for a Remote handle.
// Unknown keys are rejected at normalization (Normalize), not here.
type RemoteOptions struct {
	Revision          string
	CacheDir          string
	Offline           bool
	AuthToken         string
	Subdir            string
	DownloadMode      DownloadMode
	VerificationMode  VerificationMode
	Etag              string
}

type remoteHandle struct {
	RepositoryID string
	Options      RemoteOptions
}

func (remoteHandle) isHandle() {}

type localHandle struct {
	Path string
}

func (localHandle) isHandle() {}

// NewRemote constructs a Remote handle. Revision defaults to "main" when
// left empty, matching DefaultRevision.
func NewRemote(repositoryID string, opts RemoteOptions) Handle {
	if opts.Revision == "" {
		opts.Revision = DefaultRevision
	}
	return remoteHandle{RepositoryID: repositoryID, Options: opts}
}

// NewLocal constructs a Local handle over a filesystem directory.
func NewLocal(path string) Handle {
	return localHandle{Path: path}
}

// RepoListing maps a filename (relative to the repository root, or to
// Subdir when set) to its etag. Local entries always carry an empty etag.
type RepoListing map[string]string

// Feature describes one column of a dataset split.
type Feature struct {
	Name  string `json:"name"`
	Dtype string `json:"dtype"`
}

// SplitInfo describes one named partition of a dataset.
type SplitInfo struct {
	Name        string `json:"name"`
	NumExamples int64  `json:"num_examples"`
}

// DatasetInfo is the immutable metadata record parsed from a dataset
// card's dataset_info field.
type DatasetInfo struct {
	ConfigName  string      `json:"config_name"`
	Features    []Feature   `json:"features"`
	Splits      []SplitInfo `json:"splits"`
	Description string      `json:"description"`
	Homepage    string      `json:"homepage"`
	License     string      `json:"license"`
	Citation    string      `json:"citation"`
}

// Row is a single decoded record, keyed by column name.
type Row map[string]interface{}
