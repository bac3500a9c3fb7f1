package collector

import (
	"sync"
	"time"
)

// TimeSeriesRecorder records the last N successful delivery times.
type TimeSeriesRecorder struct {
	MaxRecordCount int
	records        []time.Time
	mu             *sync.Mutex
}

// NewTimeSeriesRecorder returns a new TimeSeriesRecorder.
func NewTimeSeriesRecorder(maxRecordCount int) *TimeSeriesRecorder {
	return &TimeSeriesRecorder{
		MaxRecordCount: maxRecordCount,
		records:        make([]time.Time, 0),
		mu:             &sync.Mutex{},
	}
}

// AddRecord adds a new record.
func (r *TimeSeriesRecorder) AddRecord(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Strip monotonic clock reading.
	// This will prevent time.Since from returning values that are not accurate (especially when the system is in sleep mode).
	t = t.Round(0)

	if len(r.records) >= r.MaxRecordCount {
		r.records = r.records[1:]
	}
	r.records = append(r.records, t)
}

// Restore replaces the records with ts, keeping the newest MaxRecordCount.
func (r *TimeSeriesRecorder) Restore(ts []time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(ts) > r.MaxRecordCount {
		ts = ts[len(ts)-r.MaxRecordCount:]
	}
	r.records = make([]time.Time, len(ts))
	copy(r.records, ts)
}

// GetRecords returns a copy of the records, oldest first.
func (r *TimeSeriesRecorder) GetRecords() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]time.Time, len(r.records))
	copy(out, r.records)
	return out
}

// GetRecordsString returns the records in RFC 3339 format.
func (r *TimeSeriesRecorder) GetRecordsString() []string {
	records := r.GetRecords()
	recordsString := make([]string, 0, len(records))
	for _, record := range records {
		recordsString = append(recordsString, record.Format(time.RFC3339))
	}
	return recordsString
}

// GetRecordsIn returns the number of continuous records in the last duration.
// Two adjacent records are continuous when they are less than interval+1s apart.
func (r *TimeSeriesRecorder) GetRecordsIn(last, interval time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	gap := interval + time.Second

	// The last record must be within the last interval.
	if len(r.records) > 0 && time.Since(r.records[len(r.records)-1]) >= gap {
		return 0
	}

	count := 0
	for i := len(r.records) - 1; i >= 0; i-- {
		record := r.records[i]
		if time.Since(record) > last {
			break
		}

		theRecordAfter := record
		if i+1 < len(r.records) {
			theRecordAfter = r.records[i+1]
		}

		if theRecordAfter.Sub(record) >= gap {
			break
		}
		count++
	}

	return count
}

// GetLastRecords returns the records within the last duration, newest first.
func (r *TimeSeriesRecorder) GetLastRecords(last time.Duration) []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []time.Time
	for i := len(r.records) - 1; i >= 0; i-- {
		record := r.records[i]
		if time.Since(record) > last {
			break
		}
		records = append(records, record)
	}

	return records
}

func formatRelativeTimes(times []time.Time) []string {
	var timesString []string
	for _, t := range times {
		timesString = append(timesString, time.Since(t).Round(time.Second).String())
	}
	return timesString
}
