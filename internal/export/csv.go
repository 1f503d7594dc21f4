// Package export reads and writes the enriched museum CSV artifact.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/visitum/visitum-cli/internal/model"
)

var header = []string{"name", "city", "country", "visitors_count", "visitors_year", "population"}

// Write serializes enriched records as CSV. An absent population becomes an
// empty field, never a sentinel value.
func Write(w io.Writer, records []model.EnrichedRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, r := range records {
		pop := ""
		if r.Population != nil {
			pop = strconv.FormatInt(*r.Population, 10)
		}
		row := []string{
			r.Name,
			r.City,
			r.Country,
			strconv.FormatInt(r.VisitorsCount, 10),
			strconv.Itoa(r.VisitorsYear),
			pop,
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "export: write row for %s", r.Name)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush")
}

// WriteFile writes enriched records to a CSV file at path.
func WriteFile(path string, records []model.EnrichedRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	if err := Write(f, records); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "export: close %s", path)
	}

	zap.L().Info("export: wrote enriched csv",
		zap.String("path", path),
		zap.Int("records", len(records)),
	)
	return nil
}

// Read parses an enriched CSV produced by Write. Rows with malformed numeric
// fields are skipped with a warning rather than failing the whole import.
func Read(r io.Reader) ([]model.EnrichedRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	head, err := cr.Read()
	if err == io.EOF {
		return nil, eris.New("export: empty csv")
	}
	if err != nil {
		return nil, eris.Wrap(err, "export: read header")
	}
	for i, want := range header {
		if head[i] != want {
			return nil, eris.Errorf("export: unexpected header column %d: got %q, want %q", i, head[i], want)
		}
	}

	var out []model.EnrichedRecord
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, eris.Wrapf(err, "export: read line %d", line)
		}

		rec, err := parseRow(row)
		if err != nil {
			zap.L().Warn("export: skipping malformed row",
				zap.Int("line", line),
				zap.Error(err),
			)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadFile parses the enriched CSV at path.
func ReadFile(path string) ([]model.EnrichedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: open %s", path)
	}
	defer f.Close()
	return Read(f)
}

func parseRow(row []string) (model.EnrichedRecord, error) {
	visitors, err := strconv.ParseInt(row[3], 10, 64)
	if err != nil {
		return model.EnrichedRecord{}, eris.Wrapf(err, "export: visitors_count %q", row[3])
	}
	year, err := strconv.Atoi(row[4])
	if err != nil {
		return model.EnrichedRecord{}, eris.Wrapf(err, "export: visitors_year %q", row[4])
	}

	rec := model.EnrichedRecord{
		CleanedRecord: model.CleanedRecord{
			Name:          row[0],
			City:          row[1],
			Country:       row[2],
			VisitorsCount: visitors,
			VisitorsYear:  year,
		},
	}
	if row[5] != "" {
		pop, err := strconv.ParseInt(row[5], 10, 64)
		if err != nil {
			return model.EnrichedRecord{}, eris.Wrapf(err, "export: population %q", row[5])
		}
		rec.Population = &pop
	}
	return rec, nil
}
