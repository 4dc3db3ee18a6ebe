// Package batch scores request files through the engine.
package batch

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/saturn/internal/fetcher"
	"github.com/sells-group/saturn/internal/model"
)

// DelimiterFor picks the field delimiter from a file name: comma for .csv,
// tab for anything else.
func DelimiterFor(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ','
	}
	return '\t'
}

// ReadFile parses the request file at path.
func ReadFile(ctx context.Context, path string) ([]model.Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ParseRequests(ctx, f, DelimiterFor(path))
}

// ParseRequests reads rows of "brand_id adgroup_id svr [pacing]". A first
// row starting with brand_id is a header. Lines starting with # are skipped.
// An empty or negative svr asks for the default score; an empty pacing means
// no pacing signal.
func ParseRequests(ctx context.Context, r io.Reader, delim rune) ([]model.Request, error) {
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		Delimiter: delim,
		Comment:   '#',
		TrimSpace: true,
	})

	var (
		reqs []model.Request
		line int
		err  error
	)
	for row := range rowCh {
		line++
		if err != nil {
			continue
		}
		if line == 1 && len(row) > 0 && strings.EqualFold(row[0], "brand_id") {
			continue
		}
		var req model.Request
		req, err = parseRow(row)
		if err != nil {
			err = eris.Wrapf(err, "batch: row %d", line)
			continue
		}
		reqs = append(reqs, req)
	}
	if rerr := <-errCh; rerr != nil {
		return nil, eris.Wrap(rerr, "batch: read requests")
	}
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func parseRow(row []string) (model.Request, error) {
	if len(row) < 3 || len(row) > 4 {
		return model.Request{}, eris.Errorf("want 3 or 4 columns, got %d", len(row))
	}
	if row[1] == "" {
		return model.Request{}, eris.New("adgroup_id is required")
	}

	score := model.NoScore
	if row[2] != "" {
		v, err := parseFinite(row[2])
		if err != nil {
			return model.Request{}, eris.Wrap(err, "svr")
		}
		score = v
	}
	req := model.NewRequest(row[0], row[1], score)

	if len(row) == 4 && row[3] != "" {
		p, err := parseFinite(row[3])
		if err != nil {
			return model.Request{}, eris.Wrap(err, "pacing")
		}
		req = req.WithPacing(p)
	}
	return req, nil
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Errorf("invalid number %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, eris.Errorf("non-finite number %q", s)
	}
	return v, nil
}
