package bench

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/saturn/internal/fetcher"
)

// Dataset file layout inside a model directory.
const (
	DataDir     = "data_test"
	AdgroupFile = "adgroup_ids.txt"
	ScoreDir    = "user_extlba"
)

// Entity is one adgroup scored for every request.
type Entity struct {
	BrandID   string
	AdgroupID string
}

// Dataset holds per-entity observed scores. Scores[i][j] is the score of
// entity i in request j.
type Dataset struct {
	Entities []Entity
	Scores   [][]float64
}

// Requests is the number of requests in the dataset.
func (d *Dataset) Requests() int {
	if len(d.Scores) == 0 {
		return 0
	}
	return len(d.Scores[0])
}

// LoadDataset reads data_test/adgroup_ids.txt and one score file per adgroup
// from modelDir. Each adgroup line is "adgroup_id" or "brand_id<TAB>adgroup_id".
// Every score file must have the same number of rows.
func LoadDataset(ctx context.Context, modelDir string) (*Dataset, error) {
	root := filepath.Join(modelDir, DataDir)

	rows, err := readRows(ctx, filepath.Join(root, AdgroupFile))
	if err != nil {
		return nil, err
	}
	ds := &Dataset{}
	for i, row := range rows {
		switch len(row) {
		case 1:
			ds.Entities = append(ds.Entities, Entity{AdgroupID: row[0]})
		case 2:
			ds.Entities = append(ds.Entities, Entity{BrandID: row[0], AdgroupID: row[1]})
		default:
			return nil, eris.Errorf("bench: %s line %d: want 1 or 2 columns, got %d", AdgroupFile, i+1, len(row))
		}
	}
	if len(ds.Entities) == 0 {
		return nil, eris.Errorf("bench: %s lists no adgroups", AdgroupFile)
	}

	for _, e := range ds.Entities {
		path := filepath.Join(root, ScoreDir, e.AdgroupID+".txt")
		scoreRows, err := readRows(ctx, path)
		if err != nil {
			return nil, err
		}
		scores := make([]float64, len(scoreRows))
		for j, row := range scoreRows {
			scores[j], err = strconv.ParseFloat(row[0], 64)
			if err != nil {
				return nil, eris.Wrapf(err, "bench: %s line %d", path, j+1)
			}
		}
		if len(ds.Scores) > 0 && len(scores) != ds.Requests() {
			return nil, eris.Errorf("bench: %s has %d rows, want %d", path, len(scores), ds.Requests())
		}
		ds.Scores = append(ds.Scores, scores)
	}
	return ds, nil
}

func readRows(ctx context.Context, path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "bench: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	rowCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
		Delimiter: '\t',
		Comment:   '#',
		TrimSpace: true,
	})
	var rows [][]string
	for row := range rowCh {
		if len(row) == 1 && row[0] == "" {
			continue
		}
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrapf(err, "bench: read %s", path)
	}
	return rows, nil
}
