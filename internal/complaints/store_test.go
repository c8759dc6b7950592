package complaints

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibylhq/sibyl/internal/config"
)

const testCSV = `id,ward,type,status,description,date,latitude,longitude
c1,Ward 5,pothole,open,Large pothole on main road,2026-08-20,12.97,77.59
c2,Ward 5,water supply,resolved,Low pressure in mornings,2026-08-25,12.96,77.58
c3,Ward 7,pothole,open,Cracked pavement,2026-08-28,12.99,77.61
c4,5,street lighting,open,Lamp not working,2026-07-01,12.95,77.57
`

func writeTestCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "complaints.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestStore(t *testing.T, content string) *Store {
	t.Helper()
	store, err := NewStore(config.ComplaintsConfig{Path: writeTestCSV(t, content)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewStore_Load(t *testing.T) {
	store := newTestStore(t, testCSV)

	assert.True(t, store.Loaded())
	assert.Equal(t, 4, store.Count())
}

func TestNewStore_MissingFileStartsEmpty(t *testing.T) {
	store, err := NewStore(config.ComplaintsConfig{Path: filepath.Join(t.TempDir(), "absent.csv")})
	require.NoError(t, err, "a missing dataset is degraded service, not a startup failure")
	defer store.Close()

	assert.False(t, store.Loaded())
}

func TestStore_Filter(t *testing.T) {
	store := newTestStore(t, testCSV)

	tests := []struct {
		name     string
		ward     int
		since    time.Time
		expected int
	}{
		// ===== GOOD CASES =====
		{name: "no filter returns everything", ward: 0, expected: 4},
		{name: "ward filter", ward: 5, expected: 3},
		{name: "ward parsed from bare number column", ward: 7, expected: 1},
		{
			name:     "ward and date combined",
			ward:     5,
			since:    time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			expected: 2,
		},

		// ===== EDGE CASES =====
		{name: "unknown ward matches nothing", ward: 99, expected: 0},
		{
			name:     "future cutoff matches nothing",
			since:    time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, store.Filter(tt.ward, tt.since), tt.expected)
		})
	}
}

func TestSummarize(t *testing.T) {
	store := newTestStore(t, testCSV)
	sum := Summarize(store.Filter(0, time.Time{}))

	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 3, sum.Open)
	assert.Equal(t, 1, sum.Resolved)

	require.NotEmpty(t, sum.ByType)
	assert.Equal(t, TypeCount{Type: "pothole", Count: 2}, sum.ByType[0])
}

func TestSummarize_Empty(t *testing.T) {
	sum := Summarize(nil)
	assert.Zero(t, sum.Total)
	assert.Empty(t, sum.ByType)
}

func TestStore_Reload(t *testing.T) {
	path := writeTestCSV(t, testCSV)
	store, err := NewStore(config.ComplaintsConfig{Path: path})
	require.NoError(t, err)
	defer store.Close()

	extra := testCSV + "c5,Ward 7,pothole,open,Another one,2026-08-30,12.98,77.60\n"
	require.NoError(t, os.WriteFile(path, []byte(extra), 0o644))
	require.NoError(t, store.Reload())

	assert.Equal(t, 5, store.Count())
}

func TestParseCSV_SkipsBadRows(t *testing.T) {
	content := strings.Join([]string{
		"id,ward,type,status,description,date",
		"c1,Ward 5,pothole,open,ok,2026-08-20",
		"c2,Ward 5,pothole,open,bad date,not-a-date",
		"c3,Ward 6,water supply,resolved,ok,2026-08-21",
	}, "\n")

	store := newTestStore(t, content)
	assert.Equal(t, 2, store.Count(), "rows with unparseable dates are skipped, not fatal")
}

func TestParseCSV_HeaderOrderIrrelevant(t *testing.T) {
	content := strings.Join([]string{
		"date,status,id,type,ward",
		"2026-08-20,open,c1,pothole,Ward 3",
	}, "\n")

	store := newTestStore(t, content)
	records := store.Filter(3, time.Time{})
	require.Len(t, records, 1)
	assert.Equal(t, "pothole", records[0].Type)
	assert.True(t, records[0].Open())
}
