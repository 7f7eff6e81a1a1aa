package asar

// ProgressEvent represents a progress update during archive creation.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the file currently being processed.
	Path string

	// BytesDone is the number of bytes processed so far in this stage.
	BytesDone uint64

	// FilesDone is the number of files completed in this stage.
	FilesDone int

	// FilesTotal is the number of files in this stage.
	FilesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

const (
	// StageHashing indicates files are being read for their integrity records.
	StageHashing ProgressStage = iota

	// StageWriting indicates file bodies are being appended to the archive.
	StageWriting
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageHashing:
		return "hashing"
	case StageWriting:
		return "writing"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates.
// Implementations must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)
