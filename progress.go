package zipstream

// ProgressEvent represents a progress update during archive generation.
type ProgressEvent struct {
	// Stage identifies the current phase of generation.
	Stage ProgressStage

	// Path is the entry currently being written. Empty while finalizing.
	Path string

	// BytesDone is the number of content bytes emitted for the current entry.
	BytesDone uint64

	// BytesTotal is the content size of the current entry.
	BytesTotal uint64

	// FilesDone is the number of entries fully written.
	FilesDone int

	// FilesTotal is the number of entries in the archive.
	FilesTotal int

	// Percent is overall completion in [0, 100], measured against the sum of
	// all entry sizes. It never decreases within one generation and is 100
	// when every entry is empty.
	Percent float64
}

// ProgressStage identifies the current phase of generation.
type ProgressStage uint8

// Progress stages for archive generation.
const (
	// StageWriting indicates entry content is being emitted.
	StageWriting ProgressStage = iota

	// StageFinalizing indicates the central directory and end records were emitted.
	StageFinalizing
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageWriting:
		return "writing"
	case StageFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during generation.
// It is called on the goroutine consuming the generated sequence.
type ProgressFunc func(ProgressEvent)

// percent returns done/total as a percentage clamped to [0, 100].
func percent(done, total uint64) float64 {
	if total == 0 {
		return 100
	}
	p := float64(done) / float64(total) * 100
	return min(max(p, 0), 100)
}
