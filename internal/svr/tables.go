package svr

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/saturn/internal/model"
)

// readTable calls fn for every non-blank line of a whitespace-separated
// table with exactly columns fields. Lines starting with '#' are skipped.
// A missing file is not an error; found reports whether it existed.
func readTable(path string, columns int, fn func(fields []string) error) (found bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, newError(KindConfig, eris.Wrapf(err, "svr: open table %s", path))
	}
	defer f.Close() //nolint:errcheck

	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != columns {
			return true, newError(KindConfig, eris.Errorf("svr: %s:%d: want %d columns, got %d", path, line, columns, len(fields)))
		}
		if err := fn(fields); err != nil {
			return true, newError(KindConfig, eris.Wrapf(err, "svr: %s:%d", path, line))
		}
	}
	if err := sc.Err(); err != nil {
		return true, newError(KindConfig, eris.Wrapf(err, "svr: scan table %s", path))
	}
	return true, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, s := range fields {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "column %d", i+1)
		}
		out[i] = v
	}
	return out, nil
}

// loadBrandDefaults reads "brand_id non_lba lba" rows.
func (s *Settings) loadBrandDefaults(path string) error {
	_, err := readTable(path, 3, func(fields []string) error {
		v, err := parseFloats(fields[1:])
		if err != nil {
			return err
		}
		s.BrandDefaults[fields[0]] = model.ScorePair{NonLBA: v[0], LBA: v[1]}
		return nil
	})
	return err
}

// loadCutoffs reads "adgroup_id cutoff" rows.
func (s *Settings) loadCutoffs(path string) error {
	_, err := readTable(path, 2, func(fields []string) error {
		v, err := parseFloats(fields[1:])
		if err != nil {
			return err
		}
		if !(v[0] >= 0 && v[0] <= 1) {
			return eris.Errorf("cutoff for %s must be within [0,1], got %v", fields[0], v[0])
		}
		s.AdgroupCutoff[fields[0]] = v[0]
		return nil
	})
	return err
}
