package capture

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whoisthere/whoisthere/internal/metrics"
	"github.com/whoisthere/whoisthere/internal/persist"
	"github.com/whoisthere/whoisthere/internal/stats"
)

// readResult scripts one ReadPacketData return.
type readResult struct {
	data []byte
	err  error
}

// fakeHandle replays a script, then keeps returning exhaustErr.
type fakeHandle struct {
	script     []readResult
	exhaustErr error
	pos        int
	closed     bool
}

func (f *fakeHandle) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	if f.pos >= len(f.script) {
		err := f.exhaustErr
		if err == nil {
			err = errors.New("script exhausted")
		}
		return nil, gopacket.CaptureInfo{}, err
	}
	r := f.script[f.pos]
	f.pos++
	return r.data, gopacket.CaptureInfo{}, r.err
}

func (f *fakeHandle) LinkType() layers.LinkType { return layers.LinkTypeEthernet }
func (f *fakeHandle) Close()                    { f.closed = true }

func v4Frame(src, dst [4]byte, totalLength uint16) []byte {
	frame := make([]byte, 34)
	binary.BigEndian.PutUint16(frame[12:14], 0x0800)
	ip := frame[14:]
	ip[0] = 0x45
	binary.BigEndian.PutUint16(ip[2:4], totalLength)
	ip[8] = 64
	ip[9] = 6
	copy(ip[12:16], src[:])
	copy(ip[16:20], dst[:])
	return frame
}

func v6Frame(src, dst [16]byte, payloadLength uint16) []byte {
	frame := make([]byte, 54)
	binary.BigEndian.PutUint16(frame[12:14], 0x86DD)
	ip := frame[14:]
	ip[0] = 0x60
	binary.BigEndian.PutUint16(ip[4:6], payloadLength)
	ip[6] = 6
	ip[7] = 64
	copy(ip[8:24], src[:])
	copy(ip[24:40], dst[:])
	return frame
}

func newLoopForTest(
	t *testing.T,
	handle Handle,
	statePath string,
	persistEvery time.Duration,
) (*Loop, *stats.Store) {
	t.Helper()
	store := stats.NewStore(nil)
	manager := persist.NewManager(zerolog.Nop(), statePath)
	m := metrics.New(prometheus.NewRegistry())
	return NewLoop(zerolog.Nop(), handle, store, manager, m, persistEvery), store
}

func TestLoopAggregatesScenario(t *testing.T) {
	a := [4]byte{10, 0, 0, 1}
	b := [4]byte{10, 0, 0, 2}
	c := [16]byte{0x20, 0x01, 0x0d, 0xb8, 15: 0x01}
	d := [16]byte{0x20, 0x01, 0x0d, 0xb8, 15: 0x02}

	boom := errors.New("device went away")
	handle := &fakeHandle{script: []readResult{
		{data: v4Frame(a, b, 100)},
		{data: v4Frame(a, b, 50)},
		{data: v6Frame(c, d, 60)},
		{err: boom},
	}}

	loop, store := newLoopForTest(t, handle, "", 0)
	err := loop.Run(context.Background())
	require.ErrorIs(t, err, boom)

	table := store.Snapshot()
	require.Len(t, table, 2)

	ab := stats.PairFrom4(a, b)
	cd := stats.PairFrom16(c, d)
	assert.Equal(t, "2", table[ab].TotalCount.String())
	assert.Equal(t, "150", table[ab].TotalLength.String())
	assert.Equal(t, "1", table[cd].TotalCount.String())
	assert.Equal(t, "60", table[cd].TotalLength.String())
}

func TestLoopDropsUnclassifiableFrames(t *testing.T) {
	a := [4]byte{10, 0, 0, 1}
	b := [4]byte{10, 0, 0, 2}

	stop := errors.New("stop")
	handle := &fakeHandle{script: []readResult{
		{data: nil},                     // zero-length
		{data: []byte{0x01, 0x02}},      // short ethernet
		{data: v4Frame(a, b, 40)[:20]},  // truncated ipv4 header
		{data: v4Frame(a, b, 40)},       // the only valid frame
		{err: stop},
	}}

	loop, store := newLoopForTest(t, handle, "", 0)
	err := loop.Run(context.Background())
	require.ErrorIs(t, err, stop)

	table := store.Snapshot()
	require.Len(t, table, 1)
	assert.Equal(t, "1", table[stats.PairFrom4(a, b)].TotalCount.String())
}

func TestLoopRetriesTimeoutsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	handle := &fakeHandle{
		script: []readResult{
			{err: ErrReadTimeout},
			{err: ErrReadTimeout},
		},
		// Keep timing out after the script so cancellation is the only
		// way out.
		exhaustErr: ErrReadTimeout,
	}

	// The loop must keep retrying timeouts and then exit cleanly on the
	// next iteration's context check, not surface the timeouts.
	done := make(chan error, 1)
	go func() {
		loop, _ := newLoopForTest(t, handle, "", 0)
		done <- loop.Run(ctx)
	}()
	time.AfterFunc(50*time.Millisecond, cancel)

	select {
	case err := <-done:
		// Either the clean cancellation path or the closed-handle path is
		// acceptable here; both must report no error after cancel.
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
}

func TestLoopPersistsEveryObservation(t *testing.T) {
	a := [4]byte{10, 0, 0, 1}
	b := [4]byte{10, 0, 0, 2}

	stop := errors.New("stop")
	handle := &fakeHandle{script: []readResult{
		{data: v4Frame(a, b, 100)},
		{data: v4Frame(a, b, 50)},
		{err: stop},
	}}

	path := filepath.Join(t.TempDir(), "state.json")
	loop, _ := newLoopForTest(t, handle, path, 0)
	require.ErrorIs(t, loop.Run(context.Background()), stop)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(
		t,
		`{"10.0.0.1 -> 10.0.0.2": {"total_length": 150, "total_count": 2}}`,
		string(data),
	)
}

func TestLoopBatchedPersistSkipsIntermediateSaves(t *testing.T) {
	a := [4]byte{10, 0, 0, 1}
	b := [4]byte{10, 0, 0, 2}

	stop := errors.New("stop")
	handle := &fakeHandle{script: []readResult{
		{data: v4Frame(a, b, 100)},
		{data: v4Frame(a, b, 50)},
		{err: stop},
	}}

	path := filepath.Join(t.TempDir(), "state.json")
	loop, _ := newLoopForTest(t, handle, path, time.Hour)
	require.ErrorIs(t, loop.Run(context.Background()), stop)

	// Inside the batching window nothing may be written yet.
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoopPersistFailureIsFatal(t *testing.T) {
	a := [4]byte{10, 0, 0, 1}
	b := [4]byte{10, 0, 0, 2}

	handle := &fakeHandle{script: []readResult{
		{data: v4Frame(a, b, 100)},
	}}

	// A state path whose parent directory does not exist forces the save
	// to fail on the very first observation.
	path := filepath.Join(t.TempDir(), "missing", "state.json")
	loop, _ := newLoopForTest(t, handle, path, 0)

	err := loop.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist observation")
}

func TestLoopValidJSONAfterEachSave(t *testing.T) {
	a := [4]byte{10, 0, 0, 1}
	b := [4]byte{10, 0, 0, 2}

	stop := errors.New("stop")
	handle := &fakeHandle{script: []readResult{
		{data: v4Frame(a, b, 100)},
		{err: stop},
	}}

	path := filepath.Join(t.TempDir(), "state.json")
	loop, _ := newLoopForTest(t, handle, path, 0)
	require.ErrorIs(t, loop.Run(context.Background()), stop)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}
