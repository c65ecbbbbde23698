package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Column headers of the meetings dataset.
const (
	ColName        = "Nombre"
	ColEmail       = "Correo Electronico"
	ColPhone       = "Numero de Telefono"
	ColSalesRep    = "Vendedor asignado"
	ColMeetingDate = "Fecha de la Reunion"
	ColClosed      = "closed"
	ColTranscript  = "Transcripcion"
)

var requiredColumns = []string{ColName, ColEmail, ColSalesRep, ColMeetingDate, ColClosed, ColTranscript}

// Row is one dataset line with every cell trimmed. Line is 1-based and
// counts the header.
type Row struct {
	Line        int
	Name        string `col:"Nombre" validate:"required"`
	Email       string `col:"Correo Electronico" validate:"required,email"`
	Phone       string `col:"Numero de Telefono"`
	SalesRep    string `col:"Vendedor asignado" validate:"required"`
	MeetingDate string `col:"Fecha de la Reunion" validate:"required"`
	Closed      string `col:"closed" validate:"required"`
	Transcript  string `col:"Transcripcion" validate:"required"`
}

// Load reads a .csv or .xlsx file.
func Load(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f)
	case ".xlsx", ".xlsm":
		return ReadXLSX(f)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", filepath.Ext(path))
	}
}

func ReadCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var records [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		records = append(records, rec)
	}
	return fromTable(header, records)
}

// ReadXLSX reads the first sheet of a workbook.
func ReadXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("dataset is empty")
	}
	return fromTable(rows[0], rows[1:])
}

func fromTable(header []string, records [][]string) ([]Row, error) {
	idx := map[string]int{}
	for i, h := range header {
		key := headerKey(h)
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[headerKey(col)]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}

	cell := func(rec []string, col string) string {
		i, ok := idx[headerKey(col)]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	out := make([]Row, 0, len(records))
	for n, rec := range records {
		if blank(rec) {
			continue
		}
		out = append(out, Row{
			Line:        n + 2,
			Name:        cell(rec, ColName),
			Email:       cell(rec, ColEmail),
			Phone:       cell(rec, ColPhone),
			SalesRep:    cell(rec, ColSalesRep),
			MeetingDate: cell(rec, ColMeetingDate),
			Closed:      cell(rec, ColClosed),
			Transcript:  cell(rec, ColTranscript),
		})
	}
	return out, nil
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// headerKey matches headers regardless of case, accents, BOM and padding.
func headerKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	key, _, err := transform.String(stripMarks, h)
	if err != nil {
		key = h
	}
	return strings.ToLower(strings.TrimSpace(key))
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
