package fetcher

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_Basic(t *testing.T) {
	input := "brand_id,adgroup_id,svr\nB1,A1,0.01\nB2,A2,-1\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"brand_id", "adgroup_id", "svr"}, rows[0])
	assert.Equal(t, []string{"B1", "A1", "0.01"}, rows[1])
	assert.Equal(t, []string{"B2", "A2", "-1"}, rows[2])
}

func TestStreamCSV_TabDelimited(t *testing.T) {
	input := "B1\tA1\t0.01\t0.5\nB1\tA2\t0.02\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: '\t',
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"B1", "A1", "0.01", "0.5"}, rows[0])
	assert.Len(t, rows[1], 3, "variable field counts are allowed")
}

func TestStreamCSV_WithHeader(t *testing.T) {
	input := "brand_id,adgroup_id\nB1,A1\nB2,A2\n"
	headerCh := make(chan []string, 1)

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"B1", "A1"}, rows[0])

	header := <-headerCh
	assert.Equal(t, []string{"brand_id", "adgroup_id"}, header)
}

func TestStreamCSV_HasHeaderNoHeaderCh(t *testing.T) {
	input := "svr\n0.1\n0.2\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
	})

	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"0.1"}, {"0.2"}}, rows)
}

func TestStreamCSV_TrimSpaceAndComment(t *testing.T) {
	input := "# requests for smoke test\n B1 , A1 , 0.01 \n# trailing\n B2 , A2 , 0.02 \n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		TrimSpace: true,
		Comment:   '#',
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"B1", "A1", "0.01"}, rows[0])
	assert.Equal(t, []string{"B2", "A2", "0.02"}, rows[1])
}

func TestStreamCSV_Empty(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStreamCSV_LazyQuotes(t *testing.T) {
	input := "B1,\"A \"1\",0.01\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		LazyQuotes: true,
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "B1", rows[0][0])
}

// failingReader returns an error after reading failAt bytes.
type failingReader struct {
	data    string
	pos     int
	failAt  int
	failErr error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.pos >= r.failAt {
		return 0, r.failErr
	}
	n := copy(p, r.data[r.pos:])
	if r.pos+n >= r.failAt {
		n = r.failAt - r.pos
	}
	r.pos += n
	return n, nil
}

func TestStreamCSV_ReadError(t *testing.T) {
	r := &failingReader{data: "B1,A1,0.1\nB2,A2,0.2\n", failAt: 12, failErr: io.ErrUnexpectedEOF}

	rowCh, errCh := StreamCSV(context.Background(), r, CSVOptions{})
	_, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}

func TestStreamCSV_ContextCancellation(t *testing.T) {
	var sb strings.Builder
	for range 10000 {
		sb.WriteString("B1,A1,0.01\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rowCh, errCh := StreamCSV(ctx, strings.NewReader(sb.String()), CSVOptions{})

	<-rowCh
	cancel()
	for range rowCh { //nolint:revive // drain
	}

	var gotErr error
	for err := range errCh {
		if err != nil {
			gotErr = err
		}
	}
	// The goroutine may finish before noticing the cancel.
	if gotErr != nil {
		assert.Contains(t, gotErr.Error(), "context cancelled")
	}
}
