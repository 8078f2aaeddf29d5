// Package health keeps a rolling window of link-quality samples: how long
// each frame waited for its sync ACK, and how often the FPGA reported VRAM
// ready. The derived metrics feed the dynamic stall threshold.
package health

// windowSize is the capacity of both sample rings.
const windowSize = 128

// Window is a fixed-capacity rolling record of sync waits and VRAM readiness.
// Aggregates are recomputed on every write, so reads are plain field loads.
type Window struct {
	syncWait  [windowSize]float64
	syncIdx   int
	syncCount int

	ready      [windowSize]bool
	readyIdx   int
	readyCount int

	avgSyncWait float64
	p95SyncWait float64
	readyRate   float64

	sorted [windowSize]float64
}

func NewWindow() *Window {
	return &Window{}
}

// Record appends one sync-wait sample and one readiness sample, as observed
// for a submitted frame.
func (w *Window) Record(syncWaitMs float64, vramReady bool) {
	w.syncWait[w.syncIdx] = syncWaitMs
	w.syncIdx = (w.syncIdx + 1) % windowSize
	if w.syncCount < windowSize {
		w.syncCount++
	}

	w.recomputeSync()
	w.RecordReady(vramReady)
}

// RecordReady appends a readiness sample only, as observed on a tick that did
// not submit a frame.
func (w *Window) RecordReady(vramReady bool) {
	w.ready[w.readyIdx] = vramReady
	w.readyIdx = (w.readyIdx + 1) % windowSize
	if w.readyCount < windowSize {
		w.readyCount++
	}

	trues := 0
	for i := 0; i < w.readyCount; i++ {
		if w.ready[i] {
			trues++
		}
	}
	w.readyRate = float64(trues) / float64(w.readyCount)
}

func (w *Window) recomputeSync() {
	n := w.syncCount

	sum := 0.0
	for i := 0; i < n; i++ {
		sum += w.syncWait[i]
	}
	w.avgSyncWait = sum / float64(n)

	// Insertion sort into the scratch copy; n is at most 128.
	s := w.sorted[:n]
	copy(s, w.syncWait[:n])
	for i := 1; i < n; i++ {
		v := s[i]
		j := i - 1
		for j >= 0 && s[j] > v {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = v
	}

	idx := n * 95 / 100
	if idx > n-1 {
		idx = n - 1
	}
	w.p95SyncWait = s[idx]
}

// AvgSyncWaitMs is the mean sync wait over the recorded samples, 0 when empty.
func (w *Window) AvgSyncWaitMs() float64 {
	return w.avgSyncWait
}

// P95SyncWaitMs is the 95th-percentile sync wait, 0 when empty.
func (w *Window) P95SyncWaitMs() float64 {
	return w.p95SyncWait
}

// VRAMReadyRate is the fraction of readiness samples that were true, in
// [0, 1]. Zero when no samples have been recorded.
func (w *Window) VRAMReadyRate() float64 {
	return w.readyRate
}

// StallThresholdMs is the sync wait above which the link should be treated as
// stalled: at least three frame periods, stretched when the observed p95 says
// the link is already slow.
func (w *Window) StallThresholdMs(periodMs float64) float64 {
	t := 3 * periodMs
	if p := 2 * w.p95SyncWait; p > t {
		return p
	}
	return t
}
