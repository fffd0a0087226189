package hfdataset

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// LoadOptions selects what Load fetches and how.
type LoadOptions struct {
	ConfigName string
	Split      string
	Streaming  bool

	// BatchSize is the streaming page size; defaults to
	// DefaultBatchSize when zero.
	BatchSize int
	// NumProc bounds fetch/decode concurrency; defaults to 1.
	// cfg.MaxWorkers is not consulted.
	NumProc int
}

// LoadResult is the outcome of Load: either a fully materialized Table per
// matched file, or a single pull-based RowStream over them.
type LoadResult struct {
	Files  []string
	Tables map[string]Table
	Stream *RowStream
}

// buildRepository wires a Transport → Cache → Repository chain from a
// Config, mirroring how NewHubClient assembles its collaborators upstream.
func buildRepository(cfg *Config) *Repository {
	transport := NewTransport()
	cache := NewCache(transport)
	return NewRepositoryWithRetry(cache, cfg.Endpoint, cfg.MaxRetries, cfg.RetryInterval, cfg.Token)
}

// Load normalizes the handle, lists its files, applies the config/split
// filter, then either fetches every matched file eagerly (bounded by
// opts.NumProc) or constructs a lazy RowStream.
func Load(ctx context.Context, cfg *Config, h Handle, opts LoadOptions) (*LoadResult, error) {
	h, err := Normalize(h)
	if err != nil {
		return nil, err
	}

	repo := buildRepository(cfg)

	listing, err := repo.List(ctx, h)
	if err != nil {
		return nil, err
	}

	filtered := ByConfigAndSplit(listing, opts.ConfigName, opts.Split)

	files := make([]string, 0, len(filtered))
	for filename := range filtered {
		files = append(files, filename)
	}
	sort.Strings(files)

	if opts.Streaming {
		stream, err := NewRowStream(ctx, cfg, repo, h, filtered, files, opts.BatchSize)
		if err != nil {
			return nil, err
		}
		return &LoadResult{Files: files, Stream: stream}, nil
	}

	numProc := opts.NumProc
	if numProc <= 0 {
		numProc = 1
	}

	tables, err := fetchAndDecodeAll(ctx, cfg, repo, h, filtered, files, numProc)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Files: files, Tables: tables}, nil
}

// MustLoad is the strict variant: it panics on error instead of returning
// one, for call sites that treat a load failure as a programmer fault.
func MustLoad(ctx context.Context, cfg *Config, h Handle, opts LoadOptions) *LoadResult {
	result, err := Load(ctx, cfg, h, opts)
	if err != nil {
		panic(err)
	}
	return result
}

type fetchTask struct {
	index    int
	filename string
	etag     string
}

type fetchResult struct {
	index    int
	filename string
	workerID int
	table    Table
	err      error
}

// fetchAndDecodeAll downloads and decodes every file in files using up to
// numProc concurrent workers, cancelling outstanding work on the first
// error. Files with an extension outside csv/jsonl/parquet are dropped
// before fetching. A buffered task channel is drained by a fixed set of
// goroutines under a sync.WaitGroup, with results collected into an
// index-ordered slice rather than trusted to completion order.
func fetchAndDecodeAll(ctx context.Context, cfg *Config, repo *Repository, h Handle, listing RepoListing, files []string, numProc int) (map[string]Table, error) {
	selected := make([]string, 0, len(files))
	for _, f := range files {
		if supportedExtension(lowercaseExt(f)) {
			selected = append(selected, f)
		}
	}
	files = selected

	if len(files) == 0 {
		return map[string]Table{}, nil
	}

	workers := numProc
	if workers <= 0 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}

	taskChan := make(chan fetchTask, len(files))
	resultChan := make(chan fetchResult, len(files))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i, filename := range files {
		taskChan <- fetchTask{index: i, filename: filename, etag: listing[filename]}
	}
	close(taskChan)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go fetchWorker(ctx, cfg, repo, h, w, taskChan, resultChan, &wg)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	progress := newProgressReporter(cfg, "fetching dataset files", len(files), workers)
	results := make([]fetchResult, len(files))
	var firstErr error
	for res := range resultChan {
		results[res.index] = res
		progress.advance(res.workerID, res.filename, res.err)
		if res.err != nil && firstErr == nil {
			firstErr = res.err
			cancel()
		}
	}
	progress.finish()
	if firstErr != nil {
		return nil, firstErr
	}

	tables := make(map[string]Table, len(results))
	for _, res := range results {
		tables[res.filename] = res.table
	}
	return tables, nil
}

func fetchWorker(ctx context.Context, cfg *Config, repo *Repository, h Handle, workerID int, tasks <-chan fetchTask, results chan<- fetchResult, wg *sync.WaitGroup) {
	defer wg.Done()
	logger := cfg.Logger
	for task := range tasks {
		select {
		case <-ctx.Done():
			results <- fetchResult{index: task.index, filename: task.filename, workerID: workerID, err: ctx.Err()}
			continue
		default:
		}

		if logger != nil {
			logger.WithField("filename", task.filename).Debug("fetching dataset file")
		}

		path, err := repo.Download(ctx, h, task.filename, task.etag)
		if err != nil {
			if logger != nil {
				logger.WithField("filename", task.filename).WithError(err).Warn("fetching dataset file failed")
			}
			results <- fetchResult{index: task.index, filename: task.filename, workerID: workerID, err: err}
			continue
		}

		table, err := decodeByExtension(path)
		if err != nil && logger != nil {
			logger.WithField("filename", task.filename).WithError(err).Warn("decoding dataset file failed")
		}
		results <- fetchResult{index: task.index, filename: task.filename, workerID: workerID, table: table, err: err}
	}
}

// decodeByExtension dispatches a downloaded local path to the right
// tabular-engine reader by its file extension.
func decodeByExtension(path string) (Table, error) {
	switch lowercaseExt(path) {
	case "csv":
		return ReadCSV(path)
	case "jsonl":
		return ReadJSONL(path)
	case "parquet":
		return readParquetEager(path)
	default:
		return nil, NewDecodeError(path, fmt.Errorf("unsupported file extension"))
	}
}

// readParquetEager materializes a whole Parquet file into a Table by
// driving the same row-by-row reader OpenParquetLazy uses, just without
// ever stopping early.
func readParquetEager(path string) (Table, error) {
	lazy, err := OpenParquetLazy(path)
	if err != nil {
		return nil, err
	}
	defer lazy.Close()

	var rows []Row
	const batch = 1024
	offset := 0
	for {
		chunk, err := lazy.SliceLazy(offset, batch)
		if err != nil {
			return nil, err
		}
		rows = append(rows, chunk...)
		if len(chunk) < batch {
			break
		}
		offset += len(chunk)
	}
	return &eagerTable{rows: rows}, nil
}
