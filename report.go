package main

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	CurrentResultFormatVersion = "0.2"
)

// latencies are recorded in microseconds, up to one minute
const (
	minLatency = 1
	maxLatency = 60 * 1000 * 1000
)

// recorder accumulates the outcome of every request made by the workers
type recorder struct {
	// the total time it took to run the functions, to measure average latency, in nanoseconds
	totalTime atomic.Uint64
	totalOps  atomic.Uint64
	errors    atomic.Uint64

	histogramMutex sync.Mutex
	histogram      *hdrhistogram.Histogram
}

func newRecorder() *recorder {
	return &recorder{histogram: hdrhistogram.New(minLatency, maxLatency, 3)}
}

func (r *recorder) record(took time.Duration, err error) {
	r.totalOps.Add(1)
	r.totalTime.Add(uint64(took))
	if err != nil {
		r.errors.Add(1)
	}
	r.histogramMutex.Lock()
	_ = r.histogram.RecordValue(took.Microseconds())
	r.histogramMutex.Unlock()
}

// avgLatency is the mean request latency in milliseconds
func (r *recorder) avgLatency() float64 {
	ops := r.totalOps.Load()
	if ops == 0 {
		return 0
	}
	return (float64(r.totalTime.Load()) / float64(ops)) / float64(time.Millisecond)
}

func (r *recorder) quantile(q float64) float64 {
	r.histogramMutex.Lock()
	defer r.histogramMutex.Unlock()
	return float64(r.histogram.ValueAtQuantile(q)) / 10e2
}

func (r *recorder) overallRates(took time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"overallOpsRate":   calculateRateMetrics(r.totalOps.Load(), 0, took),
		"overallErrorRate": calculateRateMetrics(r.errors.Load(), 0, took),
	}
}

func (r *recorder) overallQuantiles() map[string]interface{} {
	r.histogramMutex.Lock()
	defer r.histogramMutex.Unlock()
	_, all := generateQuantileMap(r.histogram)
	return map[string]interface{}{"allCommands": all}
}

func (r *recorder) totals() map[string]interface{} {
	return map[string]interface{}{
		"totalOps":    r.totalOps.Load(),
		"totalErrors": r.errors.Load(),
	}
}

// generateQuantileMap returns the latency quantiles of hist in milliseconds
func generateQuantileMap(hist *hdrhistogram.Histogram) (int64, map[string]float64) {
	ops := hist.TotalCount()
	mp := map[string]float64{"q0": 0, "q50": 0, "q95": 0, "q99": 0, "q999": 0, "q100": 0}
	if ops == 0 {
		return ops, mp
	}
	for name, q := range map[string]float64{"q0": 0, "q50": 50, "q95": 95, "q99": 99, "q999": 99.9, "q100": 100} {
		mp[name] = float64(hist.ValueAtQuantile(q)) / 10e2
	}
	return ops, mp
}

func calculateRateMetrics(current, prev uint64, took time.Duration) float64 {
	if took <= 0 {
		return 0
	}
	return float64(current-prev) / took.Seconds()
}

// report prints the progress of a run every period until done is closed
func report(w io.Writer, rec *recorder, period time.Duration, start, end time.Time, done <-chan struct{}) {
	prevTime := start
	prevTotalOps := uint64(0)
	totalDurationMs := float64(end.Sub(start).Milliseconds())

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	fmt.Fprintf(w, "%26s %7s %25s %25s %25s %15s\n", "Test time", " ", "Suggest Rate", "Client p50 with RTT(ms)", "Total Requests", "Errors")
	for {
		select {
		case <-done:
			fmt.Fprintln(w)
			return
		case now := <-ticker.C:
			took := now.Sub(prevTime)
			currentCount := rec.totalOps.Load()
			completionPercent := (totalDurationMs - float64(end.Sub(now).Milliseconds())) / totalDurationMs * 100.0
			completionPercentStr := fmt.Sprintf("[%3.1f%%]", completionPercent)

			opsRate := calculateRateMetrics(currentCount, prevTotalOps, took)
			fmt.Fprintf(w, "%25.0fs %7s %25.2f %25.3f %25d %15d\r", now.Sub(start).Seconds(), completionPercentStr,
				opsRate, rec.quantile(50.0), currentCount, rec.errors.Load())
			prevTotalOps = currentCount
			prevTime = now
		}
	}
}
