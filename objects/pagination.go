// Copyright (C) 2025 Stixview Authors.
// See LICENSE for copying information.

package objects

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// maxPageNumber guards against pathological offsets.
const maxPageNumber = 1 << 32

// Config holds the tunables for the objects service.
type Config struct {
	// DefaultPageSize is used when page_size is absent or unparseable.
	DefaultPageSize int64
	// MaxPageSize clamps caller-supplied page sizes.
	MaxPageSize int64
	// RelationshipsAlwaysLatest restricts relationship searches to latest
	// versions only. When false, non-latest relationships whose endpoint is
	// a cyber-observable are still admitted, since observables frequently
	// do not get a fresh latest relationship on every re-ingest.
	RelationshipsAlwaysLatest bool
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		DefaultPageSize:           50,
		MaxPageSize:               200,
		RelationshipsAlwaysLatest: true,
	}
}

// PageParams is a normalized page request.
type PageParams struct {
	Number int64
	Size   int64
}

// ParsePageParams normalizes raw page and page_size inputs. Invalid or
// non-positive values fall back to the defaults and the size is clamped to
// the configured maximum.
func (config Config) ParsePageParams(page, pageSize string) PageParams {
	return PageParams{
		Number: positiveInt(page, 1, 0),
		Size:   positiveInt(pageSize, config.DefaultPageSize, config.MaxPageSize),
	}
}

// positiveInt casts a string to a strictly positive integer, clamped to
// cutoff when cutoff is non-zero. Overflowing positive input saturates so
// the page-number guard still fires instead of silently resetting.
func positiveInt(s string, fallback, cutoff int64) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return fallback
	}
	if n <= 0 {
		return fallback
	}
	if cutoff > 0 && n > cutoff {
		return cutoff
	}
	return n
}

// OffsetAndCount converts the page request into a LIMIT offset and count.
// Page numbers of 2^32 and above are rejected.
func (p PageParams) OffsetAndCount() (offset, count int64, err error) {
	number := p.Number
	if number < 1 {
		number = 1
	}
	if number >= maxPageNumber {
		return 0, 0, ErrInvalidPage.New("invalid page `%d`", number)
	}
	return (number - 1) * p.Size, p.Size, nil
}

// Page is the paginated response envelope. PageResultsCount is the length of
// the returned slice; TotalResultsCount is the full match count before
// pagination. The result array is emitted under ResultKey.
type Page struct {
	PageSize          int64
	PageNumber        int64
	PageResultsCount  int
	TotalResultsCount int64
	ResultKey         string
	Results           []Object
}

// NewPage shapes a query result into a response envelope.
func NewPage(params PageParams, result Result, resultKey string) *Page {
	return &Page{
		PageSize:          params.Size,
		PageNumber:        params.Number,
		PageResultsCount:  len(result.Objects),
		TotalResultsCount: result.FullCount,
		ResultKey:         resultKey,
		Results:           result.Objects,
	}
}

// MarshalJSON implements json.Marshaler. The result key is dynamic, so the
// envelope is assembled by hand.
func (p *Page) MarshalJSON() ([]byte, error) {
	key := p.ResultKey
	if key == "" {
		key = "objects"
	}
	results := p.Results
	if results == nil {
		results = []Object{}
	}

	keyJSON, err := json.Marshal(key)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"page_size":%d,"page_number":%d,"page_results_count":%d,"total_results_count":%d,`,
		p.PageSize, p.PageNumber, p.PageResultsCount, p.TotalResultsCount)
	buf.Write(keyJSON)
	buf.WriteByte(':')
	buf.Write(resultsJSON)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
