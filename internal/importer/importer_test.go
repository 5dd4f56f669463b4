package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/caretrack/directory-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "import.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSV_Import(t *testing.T) {
	st := newTestStore(t)
	path := writeCSV(t, "Full Name,Credentials,Email,NPI Number,License #,City,State\n"+
		"Jane Doe,LCSW,jane@example.com,1234567893,LCSW-12345,Austin,TX\n"+
		"Robert Smith,PhD,rob@example.com,,PSY-9876,Dallas,TX\n")

	res, err := CSV(context.Background(), st, path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 0, res.Skipped)

	all, err := st.ListTherapists(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)

	jane := all[0]
	assert.Equal(t, "Jane Doe", jane.FullName)
	assert.Equal(t, "LCSW", jane.Credentials)
	assert.Equal(t, "1234567893", jane.NPI)
	assert.Equal(t, "LCSW-12345", jane.LicenseNumber)
	assert.Equal(t, "Austin, TX", jane.Location, "city and state columns combine")
}

func TestCSV_SkipsRowsWithoutName(t *testing.T) {
	st := newTestStore(t)
	path := writeCSV(t, "Name,Email\n"+
		"Jane Doe,jane@example.com\n"+
		",orphan@example.com\n")

	res, err := CSV(context.Background(), st, path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.Skipped)
}

func TestCSV_NPIDigitsOnly(t *testing.T) {
	st := newTestStore(t)
	path := writeCSV(t, "Name,NPI\nJane Doe,1-234-567-893\n")

	_, err := CSV(context.Background(), st, path)
	require.NoError(t, err)

	all, err := st.ListTherapists(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "1234567893", all[0].NPI)
}

func TestCSV_UnknownColumnsIgnored(t *testing.T) {
	st := newTestStore(t)
	path := writeCSV(t, "Name,Favorite Color,Email\nJane Doe,teal,jane@example.com\n")

	res, err := CSV(context.Background(), st, path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	all, err := st.ListTherapists(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", all[0].Email)
}

func TestXLSX_Import(t *testing.T) {
	st := newTestStore(t)
	path := filepath.Join(t.TempDir(), "roster.xlsx")

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Roster")
	require.NoError(t, err)
	for _, row := range [][]string{
		{"Therapist Name", "NPI", "License Number"},
		{"Jane Doe", "1234567893", "LCSW-12345"},
		{"Robert Smith", "", ""},
	} {
		r := sheet.AddRow()
		for _, cell := range row {
			r.AddCell().SetString(cell)
		}
	}
	require.NoError(t, f.Save(path))

	res, err := XLSX(context.Background(), st, path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	all, err := st.ListTherapists(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "1234567893", all[0].NPI)
}

func TestFile_DispatchesOnExtension(t *testing.T) {
	st := newTestStore(t)
	path := writeCSV(t, "Name\nJane Doe\n")

	res, err := File(context.Background(), st, path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	_, err = File(context.Background(), st, "roster.pdf")
	assert.Error(t, err)
}
