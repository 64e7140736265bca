package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stephencmorton/feather-sonos/internal/registry"
	"github.com/stephencmorton/feather-sonos/internal/topology"
)

func seededHub() *Hub {
	h := New(nil, nil, time.Second, nil)
	h.snapshot = &Snapshot{
		ScanID:  "scan-1",
		TakenAt: time.Now(),
		Groups: []topology.Group{{
			Coordinator: "RINCON_A",
			Members: map[string]topology.Device{
				"RINCON_A": {UUID: "RINCON_A", IP: "192.168.1.5", Name: "Kitchen"},
				"RINCON_B": {UUID: "RINCON_B", IP: "192.168.1.6", Name: "Hall"},
			},
		}},
	}
	return h
}

func TestSnapshotBeforeFirstScan(t *testing.T) {
	h := New(nil, nil, time.Second, nil)
	require.Nil(t, h.Snapshot())

	_, err := h.Controller("RINCON_A")
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestControllerFromSnapshot(t *testing.T) {
	h := seededHub()

	ctrl, err := h.Controller("RINCON_A")
	require.NoError(t, err)
	require.Equal(t, "RINCON_A", ctrl.UUID())
	require.Equal(t, "Kitchen", ctrl.Name())
	require.Len(t, ctrl.Peers(), 1)
	require.Equal(t, "RINCON_B", ctrl.Peers()[0].UUID)
}

func TestControllerUnknownGroup(t *testing.T) {
	h := seededHub()

	// Only coordinators address a group; a plain member UUID does not.
	_, err := h.Controller("RINCON_B")
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestSubscribeReceivesBroadcast(t *testing.T) {
	h := seededHub()

	ch, cancel := h.Subscribe()
	defer cancel()

	snap := *h.Snapshot()
	snap.ScanID = "scan-2"
	h.broadcast(snap)

	select {
	case got := <-ch:
		require.Equal(t, "scan-2", got.ScanID)
	case <-time.After(time.Second):
		t.Fatal("no snapshot received")
	}
}

func TestSubscribeCancelStopsDelivery(t *testing.T) {
	h := seededHub()

	ch, cancel := h.Subscribe()
	cancel()

	h.broadcast(Snapshot{ScanID: "scan-2"})
	select {
	case <-ch:
		t.Fatal("canceled subscriber still received a snapshot")
	default:
	}
}

func TestSlowSubscriberDoesNotBlockBroadcast(t *testing.T) {
	h := seededHub()

	_, cancel := h.Subscribe()
	defer cancel()

	// The channel buffer is finite; broadcast must never block once it
	// fills up.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 32; i++ {
			h.broadcast(Snapshot{ScanID: "flood"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}
}
