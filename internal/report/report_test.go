package report

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-ocr/quill/internal/document"
	"github.com/quill-ocr/quill/internal/storage"
)

func textRegion(id, text string, ents ...document.NamedEntity) document.Region {
	return document.Region{ID: id, Type: "paragraph", ConcatenatedText: text, NamedEntities: ents}
}

func scanResult(id string, regions ...document.Region) document.Result {
	return document.Result{Scan: document.Scan{ID: id}, Regions: regions}
}

func testArchive() Archive {
	return Archive{Fond: "312", Opis: "4", Delo: "17"}
}

func TestBuild_Basic(t *testing.T) {
	opts := DefaultOptions()
	opts.Archive = testArchive()

	rep := Build([]document.Result{
		scanResult("scan_000", textRegion("r1", "Приходная книга за 1897 год")),
	}, opts)

	require.Len(t, rep.Header, len(DefaultFields))
	assert.Equal(t, "№ скана", rep.Header[0])
	assert.Equal(t, "Расшифрованный текст", rep.Header[4])

	require.Len(t, rep.Rows, 1)
	assert.Equal(t, []string{
		"1", "312", "4", "17",
		"Приходная книга за 1897 год", "", "", "",
	}, rep.Rows[0])
}

func TestBuild_PrefersCorrectedText(t *testing.T) {
	reg := textRegion("r1", "махине текст")
	reg.CorrectedText = "машинный текст"

	rep := Build([]document.Result{scanResult("scan_000", reg)}, DefaultOptions())
	require.Len(t, rep.Rows, 1)
	assert.Equal(t, "машинный текст", rep.Rows[0][4])
}

func TestBuild_EntityRows(t *testing.T) {
	reg := textRegion("r1", "Иванов Петр, село Кузьминки",
		document.NamedEntity{Type: "person", Value: "Иванов Петр"},
		document.NamedEntity{Type: "place", Value: "Кузьминки"},
		document.NamedEntity{Type: "person", Value: "Иванов Петр"},
		document.NamedEntity{Type: "person", Value: "Сидорова Анна"},
	)

	rep := Build([]document.Result{scanResult("scan_000", reg)}, DefaultOptions())
	require.Len(t, rep.Rows, 2, "one row per entity type")

	assert.Equal(t, "person", rep.Rows[0][5])
	assert.Equal(t, "Иванов Петр\nСидорова Анна", rep.Rows[0][6], "values deduplicated and joined")
	assert.Equal(t, "place", rep.Rows[1][5])
	assert.Equal(t, "Кузьминки", rep.Rows[1][6])

	// The region text repeats on every entity row.
	assert.Equal(t, rep.Rows[0][4], rep.Rows[1][4])
}

func TestBuild_EntityOrder(t *testing.T) {
	reg := textRegion("r1", "t",
		document.NamedEntity{Type: "person", Value: "a"},
		document.NamedEntity{Type: "date", Value: "1897"},
		document.NamedEntity{Type: "place", Value: "b"},
	)

	opts := DefaultOptions()
	opts.EntityOrder = []string{"place", "person"}
	rep := Build([]document.Result{scanResult("scan_000", reg)}, opts)

	require.Len(t, rep.Rows, 3)
	assert.Equal(t, "place", rep.Rows[0][5])
	assert.Equal(t, "person", rep.Rows[1][5])
	assert.Equal(t, "date", rep.Rows[2][5], "unlisted types follow in appearance order")
}

func TestBuild_NoDeduplicate(t *testing.T) {
	reg := textRegion("r1", "t",
		document.NamedEntity{Type: "person", Value: "a"},
		document.NamedEntity{Type: "person", Value: "a"},
	)

	opts := DefaultOptions()
	opts.Deduplicate = false
	opts.EntityJoiner = "; "
	rep := Build([]document.Result{scanResult("scan_000", reg)}, opts)

	require.Len(t, rep.Rows, 1)
	assert.Equal(t, "a; a", rep.Rows[0][6])
}

func TestBuild_EmptyScanKeepsNumbering(t *testing.T) {
	opts := DefaultOptions()
	opts.Archive = testArchive()

	rep := Build([]document.Result{
		scanResult("scan_000", textRegion("r1", "")),
		scanResult("scan_001", textRegion("r1", "текст")),
	}, opts)

	require.Len(t, rep.Rows, 2)
	assert.Equal(t, "1", rep.Rows[0][0])
	assert.Empty(t, rep.Rows[0][4])
	assert.Equal(t, "312", rep.Rows[0][1], "archive columns stay filled on empty rows")
	assert.Equal(t, "2", rep.Rows[1][0])
	assert.Equal(t, "текст", rep.Rows[1][4])
}

func TestBuild_FieldSelection(t *testing.T) {
	opts := DefaultOptions()
	opts.Fields = []string{FieldScanNo, FieldText, "bogus"}
	opts.Labels = map[string]string{FieldText: "Text"}

	rep := Build([]document.Result{
		scanResult("scan_000", textRegion("r1", "строка")),
	}, opts)

	assert.Equal(t, []string{"№ скана", "Text"}, rep.Header, "unknown fields are dropped")
	require.Len(t, rep.Rows, 1)
	assert.Equal(t, []string{"1", "строка"}, rep.Rows[0])
}

func TestBuildFromDir(t *testing.T) {
	dir := t.TempDir()

	first := scanResult("delo_000", textRegion("r1", "первый лист"))
	second := scanResult("delo_001", textRegion("r1", "второй лист"))
	require.NoError(t, storage.WriteResultFile(filepath.Join(dir, "delo_000_result.json"), first))
	require.NoError(t, storage.WriteResultFile(filepath.Join(dir, "delo_001_result.json"), second))

	// Non-result files in the directory are ignored.
	require.NoError(t, storage.WriteResultFile(filepath.Join(dir, "stray.json"), first))

	rep, err := BuildFromDir(dir, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, rep.Rows, 2)
	assert.Equal(t, "первый лист", rep.Rows[0][4])
	assert.Equal(t, "второй лист", rep.Rows[1][4])
}

func TestBuildFromDir_MissingDir(t *testing.T) {
	_, err := BuildFromDir(filepath.Join(t.TempDir(), "absent"), DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read results directory")
}

func TestWriteCSV(t *testing.T) {
	opts := DefaultOptions()
	opts.Archive = testArchive()
	rep := Build([]document.Result{
		scanResult("scan_000", textRegion("r1", "строка один",
			document.NamedEntity{Type: "person", Value: "Иванов"},
			document.NamedEntity{Type: "person", Value: "Петров"},
		)),
	}, opts)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteCSV(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, rep.Header, records[0])
	assert.Equal(t, "Иванов\nПетров", records[1][6], "multi-value cells survive CSV quoting")
}

func TestSaveCSV(t *testing.T) {
	rep := Build([]document.Result{
		scanResult("scan_000", textRegion("r1", "текст")),
	}, DefaultOptions())

	path := filepath.Join(t.TempDir(), "reports", "delo.csv")
	require.NoError(t, rep.SaveCSV(path))
	assert.FileExists(t, path)
}
