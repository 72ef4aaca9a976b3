package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSetRow_ReportsInvalidCoordinates(t *testing.T) {
	// GIVEN: a workbook with the export sheet
	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })
	_, err := f.NewSheet(exportSheet)
	require.NoError(t, err)

	// WHEN: writing to a row that cannot exist
	err = setRow(f, 0, []any{"emp-1"})

	// THEN: the failure surfaces instead of leaving a silently short sheet
	assert.Error(t, err)

	_, err = cell(0, 0)
	assert.Error(t, err)
}

func TestSetRow_WritesEveryValue(t *testing.T) {
	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })
	_, err := f.NewSheet(exportSheet)
	require.NoError(t, err)

	require.NoError(t, setRow(f, 2, []any{"emp-1", "Alice", 45}))

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"emp-1", "Alice", "45"}, rows[1])
}
