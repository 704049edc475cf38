package model

import "time"

// RunSummary captures metrics from a single classification run.
type RunSummary struct {
	RunID            string
	InputPath        string
	InputSHA256      string
	OutputPath       string
	Product          string
	Variant          string
	RowsRead         int64
	RowsUnmapped     int64
	Entities         int64
	Matches          int64
	RowsStored       int64
	StoreSkipped     bool // an identical run was already stored
	Advisory         Advisory
	DurationRead     time.Duration
	DurationClassify time.Duration
	DurationWrite    time.Duration
	DurationStore    time.Duration
	DurationTotal    time.Duration
}
