package inspector_test

import (
	"sync"
	"testing"
	"time"

	"github.com/relaytap/inspector"

	"github.com/stretchr/testify/require"
)

func requireBreakdownSums(t *testing.T, s inspector.DirectionStats) {
	t.Helper()
	var bytes, count uint64
	for _, ts := range s.MessageTypes {
		bytes += ts.TotalBytes
		count += ts.Count
	}
	require.Equal(t, s.TotalBytes, bytes)
	require.Equal(t, s.MessageCount, count)
}

func TestAccumulatorCountersAddUp(t *testing.T) {
	start := time.Now()
	acc := inspector.NewAccumulator(start)

	chunks := [][]byte{
		[]byte(`{"type":"input","seq":1}`),
		[]byte(`{"seq":2}`),
		[]byte("not json"),
		{},
		{0xff, 0x00, 0x13},
		[]byte(`{"type":"input","seq":3}`),
	}
	var total uint64
	for i, chunk := range chunks {
		total += uint64(len(chunk))
		acc.Record(inspector.ClientToServer, len(chunk), inspector.Classify(chunk).Label(), start.Add(time.Duration(i)*time.Millisecond))
	}

	s := acc.Snapshot(start.Add(time.Second)).Direction(inspector.ClientToServer)
	require.Equal(t, total, s.TotalBytes)
	require.Equal(t, uint64(len(chunks)), s.MessageCount)
	require.Equal(t, inspector.TypeStats{Count: 2, TotalBytes: 48}, s.MessageTypes["input"])
	require.Equal(t, inspector.TypeStats{Count: 1, TotalBytes: 9}, s.MessageTypes[inspector.UnknownLabel])
	require.Equal(t, inspector.TypeStats{Count: 3, TotalBytes: 11}, s.MessageTypes[inspector.BinaryLabel])
	requireBreakdownSums(t, s)

	other := acc.Snapshot(start.Add(time.Second)).Direction(inspector.ServerToClient)
	require.Zero(t, other.TotalBytes)
	require.Zero(t, other.MessageCount)
}

func TestAccumulatorScenario(t *testing.T) {
	start := time.Now()
	acc := inspector.NewAccumulator(start)
	for i := 0; i < 3; i++ {
		acc.Record(inspector.ClientToServer, 20, "input", start)
		acc.Record(inspector.ServerToClient, 21, "state", start)
	}
	snap := acc.Snapshot(start)
	up := snap.Direction(inspector.ClientToServer)
	require.Equal(t, uint64(3), up.MessageCount)
	require.Equal(t, uint64(60), up.TotalBytes)
	require.Equal(t, map[string]inspector.TypeStats{"input": {Count: 3, TotalBytes: 60}}, up.MessageTypes)
	down := snap.Direction(inspector.ServerToClient)
	require.Equal(t, uint64(3), down.MessageCount)
	require.Equal(t, uint64(63), down.TotalBytes)
	require.Equal(t, map[string]inspector.TypeStats{"state": {Count: 3, TotalBytes: 63}}, down.MessageTypes)
	require.Equal(t, uint64(123), snap.TotalBytes())
	require.Equal(t, uint64(6), snap.MessageCount())
}

func TestAccumulatorInterArrivalDelta(t *testing.T) {
	start := time.Now()
	acc := inspector.NewAccumulator(start)

	// the first chunk is measured from the start
	require.Equal(t, 5*time.Millisecond, acc.Record(inspector.ClientToServer, 1, "a", start.Add(5*time.Millisecond)))
	require.Equal(t, 10*time.Millisecond, acc.Record(inspector.ClientToServer, 1, "a", start.Add(15*time.Millisecond)))
	// directions are independent
	require.Equal(t, 20*time.Millisecond, acc.Record(inspector.ServerToClient, 1, "a", start.Add(20*time.Millisecond)))
	// clock going backwards never yields a negative delta
	require.Zero(t, acc.Record(inspector.ClientToServer, 1, "a", start))

	snap := acc.Snapshot(start.Add(time.Second))
	require.Equal(t, start, snap.Direction(inspector.ClientToServer).LastMessage)
	require.Equal(t, start.Add(20*time.Millisecond), snap.Direction(inspector.ServerToClient).LastMessage)
}

func TestAccumulatorConcurrentRecords(t *testing.T) {
	acc := inspector.NewAccumulator(time.Now())
	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dir := inspector.ClientToServer
			if i%2 == 1 {
				dir = inspector.ServerToClient
			}
			label := "even"
			if i%4 >= 2 {
				label = "odd"
			}
			for j := 0; j < perWorker; j++ {
				acc.Record(dir, 3, label, time.Now())
			}
		}(i)
	}
	wg.Wait()

	snap := acc.Snapshot(time.Now())
	for _, dir := range []inspector.Direction{inspector.ClientToServer, inspector.ServerToClient} {
		s := snap.Direction(dir)
		require.Equal(t, uint64(workers/2*perWorker), s.MessageCount)
		require.Equal(t, uint64(3*workers/2*perWorker), s.TotalBytes)
		requireBreakdownSums(t, s)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	start := time.Now()
	acc := inspector.NewAccumulator(start)
	acc.Record(inspector.ClientToServer, 10, "a", start)
	snap := acc.Snapshot(start)
	acc.Record(inspector.ClientToServer, 10, "a", start)

	require.Equal(t, uint64(10), snap.Direction(inspector.ClientToServer).TotalBytes)
	require.Equal(t, inspector.TypeStats{Count: 1, TotalBytes: 10}, snap.Direction(inspector.ClientToServer).MessageTypes["a"])
}

func TestEmptyDirectionIsZeroSafe(t *testing.T) {
	start := time.Now()
	snap := inspector.NewAccumulator(start).Snapshot(start)
	s := snap.Direction(inspector.ServerToClient)

	require.Zero(t, s.AverageBytes())
	require.Zero(t, s.Bandwidth(snap.Elapsed))
	require.Zero(t, snap.Bandwidth())
	require.Empty(t, s.Breakdown())

	// a direction with only zero-byte messages reports 0%, not NaN
	acc := inspector.NewAccumulator(start)
	acc.Record(inspector.ClientToServer, 0, inspector.BinaryLabel, start)
	rows := acc.Snapshot(start).Direction(inspector.ClientToServer).Breakdown()
	require.Len(t, rows, 1)
	require.Zero(t, rows[0].Percent)
	require.Equal(t, uint64(1), rows[0].Count)
}

func TestBreakdownOrderAndPercentages(t *testing.T) {
	start := time.Now()
	acc := inspector.NewAccumulator(start)
	acc.Record(inspector.ClientToServer, 10, "small", start)
	acc.Record(inspector.ClientToServer, 60, "large", start)
	acc.Record(inspector.ClientToServer, 15, "b-mid", start)
	acc.Record(inspector.ClientToServer, 15, "a-mid", start)

	snap := acc.Snapshot(start.Add(2 * time.Second))
	s := snap.Direction(inspector.ClientToServer)
	rows := s.Breakdown()
	require.Equal(t, []inspector.TypeBreakdown{
		{Label: "large", Count: 1, TotalBytes: 60, Percent: 60},
		{Label: "a-mid", Count: 1, TotalBytes: 15, Percent: 15},
		{Label: "b-mid", Count: 1, TotalBytes: 15, Percent: 15},
		{Label: "small", Count: 1, TotalBytes: 10, Percent: 10},
	}, rows)
	require.Equal(t, 25.0, s.AverageBytes())
	require.Equal(t, 50.0, s.Bandwidth(snap.Elapsed))
	require.Equal(t, 50.0, snap.Bandwidth())
}
