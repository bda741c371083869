package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"airbnbdash/internal/table"
)

// sheetSource reads one worksheet of an Excel workbook. excelize drops
// trailing empty cells, so short rows are padded by build.
type sheetSource struct {
	f    *excelize.File
	rows *excelize.Rows
}

func newSheetSource(data []byte, opt Options) (*sheetSource, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", table.ErrMalformed, err)
	}
	sheet := opt.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		_ = f.Close()
		return nil, table.ErrEmptyFile
	}
	rows, err := f.Rows(sheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: sheet %q: %v", table.ErrMalformed, sheet, err)
	}
	return &sheetSource{f: f, rows: rows}, nil
}

// Header returns the first non-blank row of the sheet.
func (s *sheetSource) Header() ([]string, error) {
	for {
		rec, err := s.Next()
		if errors.Is(err, io.EOF) {
			return nil, table.ErrEmptyFile
		}
		if err != nil {
			return nil, err
		}
		if !isBlank(rec) {
			return rec, nil
		}
	}
}

func (s *sheetSource) Next() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, fmt.Errorf("%w: %v", table.ErrMalformed, err)
		}
		return nil, io.EOF
	}
	rec, err := s.rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", table.ErrMalformed, err)
	}
	return rec, nil
}

func (s *sheetSource) Close() error {
	_ = s.rows.Close()
	return s.f.Close()
}
