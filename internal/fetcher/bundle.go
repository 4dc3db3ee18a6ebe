package fetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BundleFile names one file of a model bundle.
type BundleFile struct {
	Name     string
	Optional bool
}

// BundleReport lists what FetchBundle wrote and skipped.
type BundleReport struct {
	Written map[string]int64 `json:"written"`
	Skipped []string         `json:"skipped,omitempty"`
}

// FetchBundle downloads every file from baseURL into dest. Files land under
// a temporary name and are renamed into place only once all required files
// have arrived. A missing optional file is skipped.
func FetchBundle(ctx context.Context, f Fetcher, baseURL, dest string, files []BundleFile) (*BundleReport, error) {
	if len(files) == 0 {
		return nil, eris.New("fetcher: empty bundle")
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, eris.Wrapf(err, "fetcher: create %s", dest)
	}
	base := strings.TrimRight(baseURL, "/")

	var (
		mu     sync.Mutex
		report = &BundleReport{Written: make(map[string]int64)}
		staged []string
	)
	cleanup := func() {
		for _, p := range staged {
			os.Remove(p) //nolint:errcheck
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, bf := range files {
		g.Go(func() error {
			tmp := filepath.Join(dest, bf.Name+".part")
			n, err := f.DownloadToFile(gctx, base+"/"+bf.Name, tmp)
			if errors.Is(err, ErrNotFound) && bf.Optional {
				os.Remove(tmp) //nolint:errcheck
				zap.L().Info("fetcher: optional file not found", zap.String("file", bf.Name))
				mu.Lock()
				report.Skipped = append(report.Skipped, bf.Name)
				mu.Unlock()
				return nil
			}
			mu.Lock()
			staged = append(staged, tmp)
			mu.Unlock()
			if err != nil {
				return eris.Wrapf(err, "fetcher: download %s", bf.Name)
			}
			mu.Lock()
			report.Written[bf.Name] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		cleanup()
		return nil, err
	}

	for _, bf := range files {
		if _, ok := report.Written[bf.Name]; !ok {
			continue
		}
		tmp := filepath.Join(dest, bf.Name+".part")
		if err := os.Rename(tmp, filepath.Join(dest, bf.Name)); err != nil {
			cleanup()
			return nil, eris.Wrapf(err, "fetcher: install %s", bf.Name)
		}
	}
	return report, nil
}
