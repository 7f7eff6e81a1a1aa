package asarpack

import "github.com/meigma/asarpack/asar"

// Re-export progress types from the asar package.
type (
	// ProgressEvent represents a progress update while an archive is built.
	ProgressEvent = asar.ProgressEvent

	// ProgressStage identifies the current phase of archive creation.
	ProgressStage = asar.ProgressStage

	// ProgressFunc receives progress updates.
	// Implementations must be safe for concurrent calls.
	ProgressFunc = asar.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageHashing indicates files are being read to build integrity records.
	StageHashing = asar.StageHashing

	// StageWriting indicates file bodies are being appended to the archive.
	StageWriting = asar.StageWriting
)
