package registry

import (
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}

func TestUpsertAndGetDevice(t *testing.T) {
	store := openTestStore(t)

	rec := Record{
		UUID:            "RINCON_A",
		IP:              "192.168.1.5",
		Name:            "Kitchen",
		CoordinatorUUID: "RINCON_A",
		ModelName:       "Sonos One",
	}
	require.NoError(t, store.UpsertDevice(rec))

	got, err := store.GetDevice("RINCON_A")
	require.NoError(t, err)
	require.Equal(t, "192.168.1.5", got.IP)
	require.Equal(t, "Kitchen", got.Name)
	require.Equal(t, "Sonos One", got.ModelName)
	require.NotEmpty(t, got.FirstSeenAt)
	require.NotEmpty(t, got.LastSeenAt)
}

func TestGetDeviceNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetDevice("RINCON_MISSING")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertPreservesProbeFields(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.UpsertDevice(Record{
		UUID: "RINCON_A", IP: "192.168.1.5", Name: "Kitchen", CoordinatorUUID: "RINCON_A",
		ModelName: "Sonos One", SerialNumber: "00-11-22",
	}))

	// A later scan without description data must not blank out what an
	// earlier probe recorded.
	require.NoError(t, store.UpsertDevice(Record{
		UUID: "RINCON_A", IP: "192.168.1.9", Name: "Kitchen Moved", CoordinatorUUID: "RINCON_B",
	}))

	got, err := store.GetDevice("RINCON_A")
	require.NoError(t, err)
	require.Equal(t, "192.168.1.9", got.IP)
	require.Equal(t, "Kitchen Moved", got.Name)
	require.Equal(t, "RINCON_B", got.CoordinatorUUID)
	require.Equal(t, "Sonos One", got.ModelName)
	require.Equal(t, "00-11-22", got.SerialNumber)
}

func TestListDevicesOrderedByName(t *testing.T) {
	store := openTestStore(t)

	for _, rec := range []Record{
		{UUID: "RINCON_C", IP: "192.168.1.7", Name: "Study", CoordinatorUUID: "RINCON_C"},
		{UUID: "RINCON_A", IP: "192.168.1.5", Name: "Attic", CoordinatorUUID: "RINCON_A"},
		{UUID: "RINCON_B", IP: "192.168.1.6", Name: "Bedroom", CoordinatorUUID: "RINCON_B"},
	} {
		require.NoError(t, store.UpsertDevice(rec))
	}

	records, err := store.ListDevices()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "Attic", records[0].Name)
	require.Equal(t, "Bedroom", records[1].Name)
	require.Equal(t, "Study", records[2].Name)
}

func TestPruneNotSeenSince(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.UpsertDevice(Record{
		UUID: "RINCON_A", IP: "192.168.1.5", Name: "Kitchen", CoordinatorUUID: "RINCON_A",
	}))

	pruned, err := store.PruneNotSeenSince(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, pruned)

	pruned, err = store.PruneNotSeenSince(time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, pruned)

	_, err = store.GetDevice("RINCON_A")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRecordAndLastScan(t *testing.T) {
	store := openTestStore(t)

	_, err := store.LastScan()
	require.ErrorIs(t, err, ErrNotFound)

	started := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	first, err := store.RecordScan(started, started.Add(2*time.Second), 3, 2)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := store.RecordScan(started.Add(time.Minute), started.Add(time.Minute+time.Second), 4, 2)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	last, err := store.LastScan()
	require.NoError(t, err)
	require.Equal(t, second.ID, last.ID)
	require.Equal(t, 4, last.DeviceCount)
	require.Equal(t, 2, last.GroupCount)
	require.True(t, last.StartedAt.Equal(started.Add(time.Minute)))
}
