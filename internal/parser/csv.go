package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/hntbot/biddocs/internal/doctree"
)

// csvBatchRows is how many data rows go into one node.
const csvBatchRows = 20

// CSVParser handles spreadsheet exports such as bills of quantities. Each
// row is rendered as "header: value" pairs so a chunk stays readable without
// the header row.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{Title: baseTitle(filename), Source: filename}
	if len(records) == 0 {
		return tree, nil
	}

	headers := records[0]
	rows := records[1:]
	for start := 0; start < len(rows); start += csvBatchRows {
		end := min(start+csvBatchRows, len(rows))

		var text strings.Builder
		for _, row := range rows[start:end] {
			pairs := make([]string, 0, len(row))
			for j, cell := range row {
				cell = strings.TrimSpace(cell)
				if cell == "" {
					continue
				}
				if j < len(headers) && headers[j] != "" {
					pairs = append(pairs, headers[j]+": "+cell)
				} else {
					pairs = append(pairs, cell)
				}
			}
			if len(pairs) > 0 {
				text.WriteString(strings.Join(pairs, ", "))
				text.WriteString("\n")
			}
		}
		if text.Len() == 0 {
			continue
		}

		// Row numbers are 1-based and count the header row.
		tree.Children = append(tree.Children, &doctree.DocNode{
			Title: fmt.Sprintf("Rows %d-%d", start+2, end+1),
			Text:  strings.TrimSpace(text.String()),
		})
	}
	return tree, nil
}
