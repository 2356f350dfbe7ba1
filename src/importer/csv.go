// src/importer/csv.go
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/username/folioimport/src/models"
)

// ReadTable parses a CSV stream into a RawTable. The first record is the
// header row (required); headers are trimmed but otherwise kept verbatim so
// the wizard can show them back to the operator. Short rows are padded with
// empty values, long rows truncated, so every row indexes cleanly by header.
func ReadTable(r io.Reader, source models.TableSource) (*models.RawTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headerRec, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV header: %v", ErrParsingFailed, err)
	}

	headers := make([]string, 0, len(headerRec))
	for _, h := range headerRec {
		headers = append(headers, strings.TrimSpace(h))
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV records: %v", ErrParsingFailed, err)
	}

	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}

	return &models.RawTable{Headers: headers, Rows: rows, Source: source}, nil
}
