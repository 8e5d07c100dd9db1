package hpak

// ProgressEvent represents a progress update while building an archive.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the entry currently being processed, if applicable.
	Path string

	// BytesDone is the number of archive bytes written so far.
	BytesDone uint64

	// FilesDone is the number of files completed.
	FilesDone int

	// FilesTotal is the total number of files.
	// Zero indicates the total is unknown (e.g., during enumeration).
	FilesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

// Progress stages for archive creation.
const (
	// StageEnumerating indicates the source directory is being walked.
	StageEnumerating ProgressStage = iota

	// StageCompressing indicates entries are being compressed into the spool.
	StageCompressing

	// StageWriting indicates blocks are being laid out in the archive.
	StageWriting
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageEnumerating:
		return "enumerating"
	case StageCompressing:
		return "compressing"
	case StageWriting:
		return "writing"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during operations.
// Calls are made from the goroutine driving the Writer.
type ProgressFunc func(ProgressEvent)
