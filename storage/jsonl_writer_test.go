package storage_test

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"goofish-watcher/models"
	"goofish-watcher/storage"
)

func sampleRecord(id string) *models.PersistedRecord {
	return models.NewPersistedRecord(&models.Listing{
		ID:               id,
		Title:            "二手 Switch 主机",
		Price:            "1288",
		Link:             "https://www.goofish.com/item?id=" + id,
		Images:           []string{"https://img.example.com/" + id + ".jpg"},
		SellerNickname:   "seller-" + id,
		SellerType:       models.SellerIndividual,
		RegistrationDays: 400,
	}, "switch", "2025-01-02 03:04:05")
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestJSONLWriterAppendsOneLinePerRecord(t *testing.T) {
	dir := t.TempDir()

	w, err := storage.NewJSONLWriter(dir, "switch")
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleRecord("1")))
	require.NoError(t, w.Append(sampleRecord("2")))
	require.NoError(t, w.Close())

	lines := readLines(t, w.Path())
	require.Len(t, lines, 2)

	var rec models.PersistedRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	require.Equal(t, "1", rec.Product.ID)
	require.Equal(t, "switch", rec.Keyword)
	require.Equal(t, models.SellerIndividual, rec.Seller.Type)
	require.NotNil(t, rec.Seller.RegistrationDays)
	require.Equal(t, 400, *rec.Seller.RegistrationDays)
}

func TestJSONLWriterReopenAppends(t *testing.T) {
	dir := t.TempDir()

	w1, err := storage.NewJSONLWriter(dir, "switch")
	require.NoError(t, err)
	require.NoError(t, w1.Append(sampleRecord("1")))
	require.NoError(t, w1.Close())

	w2, err := storage.NewJSONLWriter(dir, "switch")
	require.NoError(t, err)
	require.NoError(t, w2.Append(sampleRecord("2")))
	require.NoError(t, w2.Close())

	lines := readLines(t, w2.Path())
	require.Len(t, lines, 2, "reopening the store must append, not truncate")
}

func TestSafeKeyword(t *testing.T) {
	require.Equal(t, "a_b", storage.SafeKeyword("a/b"))
	require.Equal(t, "相机", storage.SafeKeyword(" 相机 "))
	require.Equal(t, "_", storage.SafeKeyword(""))
}
