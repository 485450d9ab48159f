package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const utf8BOM = "\ufeff"

var ErrEmptyReport = errors.New("relatório sem cabeçalho")

// Codec reads and writes the CSV encoding used by both the raw and the
// transformed reports.
type Codec struct {
	Comma rune
}

func NewCodec() *Codec {
	return &Codec{Comma: ','}
}

func (c *Codec) Decode(reader io.Reader) (*Table, error) {
	csvReader := csv.NewReader(reader)
	csvReader.Comma = c.Comma

	header, err := csvReader.Read()
	if err == io.EOF {
		return nil, ErrEmptyReport
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao ler cabeçalho: %w", err)
	}

	table := &Table{Columns: make([]Column, len(header))}
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		table.Columns[i] = Column{Name: strings.TrimSpace(name), Kind: KindText}
	}

	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("erro ao ler linha %d: %w", len(table.Rows)+2, err)
		}

		row := make(Row, len(record))
		for i, field := range record {
			row[i] = Text(field)
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

func (c *Codec) DecodeBytes(data []byte) (*Table, error) {
	return c.Decode(bytes.NewReader(data))
}

func (c *Codec) Encode(w io.Writer, table *Table) error {
	csvWriter := csv.NewWriter(w)
	csvWriter.Comma = c.Comma

	if err := csvWriter.Write(table.Header()); err != nil {
		return fmt.Errorf("erro ao escrever cabeçalho: %w", err)
	}

	record := make([]string, len(table.Columns))
	for i, row := range table.Rows {
		for j := range record {
			record[j] = cell(row, j).String()
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("erro ao escrever linha %d: %w", i+2, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func (c *Codec) EncodeBytes(table *Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf, table); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
