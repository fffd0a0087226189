package hfdataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/fraugster/parquet-go/floor"
)

// Table is a fully materialized, in-memory sequence of rows. Loader hands callers these directly; Streaming slices them
// internally.
type Table interface {
	Rows() []Row
}

type eagerTable struct {
	rows []Row
}

func (t *eagerTable) Rows() []Row { return t.rows }

// Slice returns up to length rows of t starting at offset.
func Slice(t Table, offset, length int) []Row {
	rows := t.Rows()
	if offset >= len(rows) {
		return nil
	}
	end := offset + length
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

// ToRows forces collection of a table into concrete row records.
func ToRows(t Table) []Row { return t.Rows() }

// LazyTable supports bounded-memory slicing without materializing the
// whole underlying file: only Parquet implements this for real;
// CSV/JSONL wrap an eagerTable and report their full row count immediately.
type LazyTable interface {
	// SliceLazy returns up to length rows starting at offset. It returns
	// fewer than length rows only when the source is exhausted.
	SliceLazy(offset, length int) ([]Row, error)
	Close() error
}

// ReadCSV decodes a local CSV file into a Table.
func ReadCSV(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewDecodeError(path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, NewDecodeError(path, err)
	}
	if len(records) == 0 {
		return &eagerTable{}, nil
	}

	header := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return &eagerTable{rows: rows}, nil
}

// ReadJSONL decodes a newline-delimited JSON file into a Table.
func ReadJSONL(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewDecodeError(path, err)
	}
	defer f.Close()

	var rows []Row
	dec := json.NewDecoder(bufio.NewReader(f))
	for dec.More() {
		var row Row
		if err := dec.Decode(&row); err != nil {
			return nil, NewDecodeError(path, err)
		}
		rows = append(rows, row)
	}
	return &eagerTable{rows: rows}, nil
}

// ReadCSVFromReader and ReadJSONLFromReader support the HTTP fallback
// path: formats other than Parquet have no range-based lazy
// reader, so a full GET is materialized into memory up front and then
// treated exactly like a local eager table for slicing purposes.
func ReadCSVFromReader(r io.Reader) (Table, error) {
	rd := csv.NewReader(r)
	records, err := rd.ReadAll()
	if err != nil {
		return nil, NewDecodeError("<http>", err)
	}
	if len(records) == 0 {
		return &eagerTable{}, nil
	}
	header := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return &eagerTable{rows: rows}, nil
}

func ReadJSONLFromReader(r io.Reader) (Table, error) {
	var rows []Row
	dec := json.NewDecoder(bufio.NewReader(r))
	for dec.More() {
		var row Row
		if err := dec.Decode(&row); err != nil {
			return nil, NewDecodeError("<http>", err)
		}
		rows = append(rows, row)
	}
	return &eagerTable{rows: rows}, nil
}

// parquetLazyTable wraps floor.Reader, skipping rows sequentially to
// implement offset/length slicing without ever holding the full decoded
// file in memory at once.
type parquetLazyTable struct {
	reader *floor.Reader
	cursor int
}

// OpenParquetLazy opens path (a local file) for row-by-row lazy reading
//.
func OpenParquetLazy(path string) (LazyTable, error) {
	r, err := floor.NewFileReader(path)
	if err != nil {
		return nil, NewDecodeError(path, err)
	}
	return &parquetLazyTable{reader: r}, nil
}

// OpenParquetLazyHTTP opens a remote Parquet file for lazy reading using
// HTTP range requests, so only the row groups actually sliced are ever
// pulled over the wire.
func OpenParquetLazyHTTP(url string, headers map[string]string, client *http.Client) (LazyTable, error) {
	rs, err := newHTTPRangeReader(url, headers, client)
	if err != nil {
		return nil, NewDecodeError(url, err)
	}
	r, err := floor.NewReader(rs)
	if err != nil {
		return nil, NewDecodeError(url, err)
	}
	return &parquetLazyTable{reader: r}, nil
}

func (p *parquetLazyTable) SliceLazy(offset, length int) ([]Row, error) {
	for p.cursor < offset {
		if !p.reader.Next() {
			return nil, nil
		}
		p.cursor++
	}

	rows := make([]Row, 0, length)
	for len(rows) < length {
		if !p.reader.Next() {
			break
		}
		p.cursor++
		row := Row{}
		if err := p.reader.Scan(&row); err != nil {
			return rows, NewDecodeError("<parquet>", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (p *parquetLazyTable) Close() error { return p.reader.Close() }

// eagerLazyTable adapts an already-materialized Table to LazyTable so
// Streaming can treat the CSV/JSONL HTTP fallback path uniformly
// with true lazy Parquet sources.
type eagerLazyTable struct {
	table Table
}

func newEagerLazyTable(t Table) LazyTable { return &eagerLazyTable{table: t} }

func (e *eagerLazyTable) SliceLazy(offset, length int) ([]Row, error) {
	return Slice(e.table, offset, length), nil
}

func (e *eagerLazyTable) Close() error { return nil }

// lowercaseExt returns the lowercased file extension without its dot, the
// basis for dispatching a file to its decoder.
func lowercaseExt(filename string) string {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

// supportedExtension reports whether ext is one of csv/jsonl/parquet.
func supportedExtension(ext string) bool {
	switch ext {
	case "csv", "jsonl", "parquet":
		return true
	default:
		return false
	}
}

// httpRangeReader implements io.ReadSeeker over HTTP Range requests so
// the Parquet footer/row-groups can be pulled on demand instead of
// downloading the whole object up front.
type httpRangeReader struct {
	url     string
	headers map[string]string
	client  *http.Client
	size    int64
	offset  int64
}

func newHTTPRangeReader(url string, headers map[string]string, client *http.Client) (*httpRangeReader, error) {
	if client == nil {
		client = defaultHTTPClient()
	}
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	size, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)

	return &httpRangeReader{url: url, headers: headers, client: client, size: size}, nil
}

func (h *httpRangeReader) Read(p []byte) (int, error) {
	if h.offset >= h.size && h.size > 0 {
		return 0, io.EOF
	}
	end := h.offset + int64(len(p)) - 1
	if h.size > 0 && end >= h.size {
		end = h.size - 1
	}

	req, err := http.NewRequest(http.MethodGet, h.url, nil)
	if err != nil {
		return 0, err
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", h.offset, end))

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.ReadFull(resp.Body, p[:end-h.offset+1])
	h.offset += int64(n)
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	return n, err
}

func (h *httpRangeReader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		h.offset = offset
	case io.SeekCurrent:
		h.offset += offset
	case io.SeekEnd:
		h.offset = h.size + offset
	}
	return h.offset, nil
}
