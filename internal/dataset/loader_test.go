package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sales-insights-go/internal/logger"
	"sales-insights-go/internal/metrics"
	"sales-insights-go/internal/types"
)

const sampleCSV = "\ufeffNombre,Correo Electrónico,Numero de Telefono,Vendedor asignado,Fecha de la Reunion,closed,Transcripcion\n" +
	"  Ana Pérez , ana@banco.cl ,+56 9 1111,Toro,2024-03-01,1,\"Somos un banco, con muchas consultas\"\n" +
	",,,,,,\n" +
	"Luis,luis@tienda.cl,,Puma,01/04/2024,0,Tienda online\n" +
	"Sin correo,,,Puma,2024-03-02,1,texto\n" +
	"Fecha mala,x@y.cl,,Puma,marzo,1,texto\n"

type recordingCreator struct {
	created []types.Client
	err     error
}

func (r *recordingCreator) CreateClient(_ context.Context, c types.Client) (types.Client, error) {
	if r.err != nil {
		return types.Client{}, r.err
	}
	c.ID = int64(len(r.created) + 1)
	r.created = append(r.created, c)
	return c, nil
}

func TestReadCSV(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "Ana Pérez", rows[0].Name)
	assert.Equal(t, "ana@banco.cl", rows[0].Email)
	assert.Equal(t, "Somos un banco, con muchas consultas", rows[0].Transcript)
	assert.Equal(t, 4, rows[1].Line)
	assert.Equal(t, "", rows[1].Phone)
}

func TestReadCSV_MissingColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("Nombre,closed\nAna,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Correo Electronico")
	assert.NotContains(t, err.Error(), ColPhone)

	_, err = ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestIngest_RejectsInvalidRows(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	creator := &recordingCreator{}
	m := metrics.Nop()
	sum, err := NewIngester(creator, m, logger.Discard()).Ingest(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, 4, sum.TotalRows)
	assert.Equal(t, 2, sum.Created)
	assert.Equal(t, 2, sum.Rejected)
	assert.Equal(t, []int64{1, 2}, sum.ClientIDs)
	assert.Equal(t, []Rejection{
		{Line: 5, Reason: "missing Correo Electronico"},
		{Line: 6, Reason: `invalid Fecha de la Reunion "marzo"`},
	}, sum.Rejections)

	ana := creator.created[0]
	assert.True(t, ana.Closed)
	require.NotNil(t, ana.Phone)
	assert.Equal(t, "+56 9 1111", *ana.Phone)
	assert.Equal(t, "2024-03-01", ana.MeetingDate.Format("2006-01-02"))

	luis := creator.created[1]
	assert.False(t, luis.Closed)
	assert.Nil(t, luis.Phone)
	assert.Equal(t, "2024-01-04", luis.MeetingDate.Format("2006-01-02"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IngestedRowsTotal.WithLabelValues("created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IngestedRowsTotal.WithLabelValues("rejected")))
}

func TestIngest_StopsOnStorageError(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	boom := errors.New("database is locked")
	sum, err := NewIngester(&recordingCreator{err: boom}, nil, logger.Discard()).Ingest(context.Background(), rows)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, sum.Created)
}

func TestIngest_RejectsBlankClosed(t *testing.T) {
	rows := []Row{
		{Line: 2, Name: "Ana", Email: "ana@banco.cl", SalesRep: "Toro", MeetingDate: "2024-03-01", Closed: "", Transcript: "hola"},
		{Line: 3, Name: "Luis", Email: "luis@banco.cl", SalesRep: "Toro", MeetingDate: "2024-03-01", Closed: "0", Transcript: "hola"},
	}
	creator := &recordingCreator{}
	sum, err := NewIngester(creator, nil, logger.Discard()).Ingest(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Created)
	assert.Equal(t, []Rejection{{Line: 2, Reason: "missing closed"}}, sum.Rejections)
	require.Len(t, creator.created, 1)
	assert.Equal(t, "Luis", creator.created[0].Name)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-02-01", "2024-02-01"},
		{"02/01/2024", "2024-02-01"},
		{"2/1/2024", "2024-02-01"},
		{"02-01-2024", "2024-02-01"},
		{"2024-02-01T10:00:00Z", "2024-02-01"},
		{"2024-02-01 10:00:00", "2024-02-01"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
		})
	}

	_, err := parseDate("13/01/2024")
	assert.Error(t, err)
}

func TestParseClosed(t *testing.T) {
	assert.True(t, parseClosed("1"))
	assert.True(t, parseClosed("1.0"))
	assert.False(t, parseClosed("0"))
	assert.False(t, parseClosed(""))
	assert.False(t, parseClosed("si"))
}

func TestLoad_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{
		ColName, ColEmail, ColPhone, ColSalesRep, ColMeetingDate, ColClosed, ColTranscript,
	}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{
		"Clínica Norte", "hola@clinica.cl", "", "Zorro", "2024-05-10", "1", "Somos una clínica dental",
	}))

	path := filepath.Join(t.TempDir(), "meetings.xlsx")
	require.NoError(t, f.SaveAs(path))

	rows, err := Load(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Clínica Norte", rows[0].Name)
	assert.Equal(t, "1", rows[0].Closed)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meetings.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
