// Package importer loads therapist rosters from CSV and XLSX files.
package importer

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caretrack/directory-cli/internal/model"
	"github.com/caretrack/directory-cli/internal/store"
)

// column identifies a therapist field a roster column maps to.
type column int

const (
	colIgnore column = iota
	colFullName
	colCredentials
	colEmail
	colNPI
	colLicense
	colLocation
)

// headerAliases maps normalized header names to therapist fields. Rosters
// come from several practice-management exports, so the mapping is loose.
var headerAliases = map[string]column{
	"name":           colFullName,
	"full name":      colFullName,
	"fullname":       colFullName,
	"therapist":      colFullName,
	"therapist name": colFullName,
	"provider":       colFullName,
	"provider name":  colFullName,
	"credentials":    colCredentials,
	"credential":     colCredentials,
	"degree":         colCredentials,
	"title":          colCredentials,
	"email":          colEmail,
	"email address":  colEmail,
	"npi":            colNPI,
	"npi number":     colNPI,
	"npi #":          colNPI,
	"license":        colLicense,
	"license number": colLicense,
	"license #":      colLicense,
	"license no":     colLicense,
	"location":       colLocation,
	"city":           colLocation,
	"city/state":     colLocation,
	"address":        colLocation,
	"state":          colLocation,
}

// Result summarizes an import run.
type Result struct {
	Imported int
	Skipped  int
}

// File imports a roster file, dispatching on extension.
func File(ctx context.Context, st store.Store, path string) (Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV(ctx, st, path)
	case ".xlsx":
		return XLSX(ctx, st, path)
	default:
		return Result{}, eris.Errorf("importer: unsupported file type %q", filepath.Ext(path))
	}
}

// CSV imports therapists from a CSV roster. The first row is treated as a
// header; unrecognized columns are ignored.
func CSV(ctx context.Context, st store.Store, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, eris.Wrap(err, "importer: open csv")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return Result{}, eris.Wrap(err, "importer: read csv header")
	}
	cols := mapHeader(header)

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, eris.Wrap(err, "importer: read csv row")
		}
		rows = append(rows, row)
	}

	return importRows(ctx, st, cols, rows, path)
}

// XLSX imports therapists from the first sheet of an XLSX roster.
func XLSX(ctx context.Context, st store.Store, path string) (Result, error) {
	header, rows, err := readSheet(path)
	if err != nil {
		return Result{}, err
	}
	return importRows(ctx, st, mapHeader(header), rows, path)
}

func importRows(ctx context.Context, st store.Store, cols []column, rows [][]string, path string) (Result, error) {
	var res Result
	for _, row := range rows {
		if ctx.Err() != nil {
			return res, eris.Wrap(ctx.Err(), "importer: cancelled")
		}

		t := rowToTherapist(cols, row)
		if t.FullName == "" {
			res.Skipped++
			continue
		}

		if _, err := st.UpsertTherapist(ctx, t); err != nil {
			return res, eris.Wrapf(err, "importer: upsert %q", t.FullName)
		}
		res.Imported++
	}

	zap.L().Info("roster import complete",
		zap.String("file", path),
		zap.Int("imported", res.Imported),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

func rowToTherapist(cols []column, row []string) model.Therapist {
	var t model.Therapist
	for i, cell := range row {
		if i >= len(cols) {
			break
		}
		val := strings.TrimSpace(cell)
		if val == "" {
			continue
		}
		switch cols[i] {
		case colFullName:
			t.FullName = val
		case colCredentials:
			t.Credentials = val
		case colEmail:
			t.Email = val
		case colNPI:
			t.NPI = digitsOnly(val)
		case colLicense:
			t.LicenseNumber = val
		case colLocation:
			// Combined City + State columns join with a comma.
			if t.Location == "" {
				t.Location = val
			} else {
				t.Location = t.Location + ", " + val
			}
		}
	}
	return t
}

func mapHeader(header []string) []column {
	cols := make([]column, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if c, ok := headerAliases[key]; ok {
			cols[i] = c
		}
	}
	return cols
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
