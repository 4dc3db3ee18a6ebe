package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/saturn/internal/model"
)

func sampleRows() []model.ScoredRequest {
	return []model.ScoredRequest{
		{
			Request: model.NewRequest("B1", "A1", 0.01).WithPacing(0.5),
			Result:  model.Result{Score: 0.01, Multiplier: 1.25, Status: model.StatusOK},
		},
		{
			Request: model.NewRequest("B1", "A2", -1),
			Result:  model.Result{Status: model.StatusError, Message: "model: no tag, \"A2\""},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"table", "csv", "xlsx"} {
		f, err := ParseFormat(s)
		require.NoError(t, err)
		assert.Equal(t, Format(s), f)
	}
	_, err := ParseFormat("json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "json"`)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatTable, sampleRows()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "BRAND"))
	assert.Contains(t, lines[1], "1.250000")
	assert.Contains(t, lines[1], "0.5")
	assert.Contains(t, lines[2], "error")
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleRows()))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, Columns, recs[0])
	assert.Equal(t, []string{"B1", "A1", "0.01", "0.5", "0.01", "1.25", "ok", ""}, recs[1])
	assert.Equal(t, "", recs[2][3], "no pacing renders empty")
	assert.Equal(t, `model: no tag, "A2"`, recs[2][7])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sampleRows()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "results", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "brand_id", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "A1", sheet.Rows[1].Cells[1].String())

	mult, err := sheet.Rows[1].Cells[5].Float()
	require.NoError(t, err)
	assert.InDelta(t, 1.25, mult, 1e-9)
	assert.Equal(t, "error", sheet.Rows[2].Cells[6].String())
}

func TestWriteUnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, Format("pdf"), nil)
	assert.Error(t, err)
}
