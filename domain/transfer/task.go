package transfer

import (
	"fmt"

	"drive-media-compressor/domain/compression"
	"drive-media-compressor/domain/drive"

	"github.com/google/uuid"
)

// Status is a task's position in the pipeline
type Status string

const (
	StatusPending     Status = "pending"
	StatusCompressing Status = "compressing" // includes the download
	StatusUploading   Status = "uploading"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// transition is a from/to pair in the task state machine
type transition struct {
	From Status
	To   Status
}

// validTransitions only moves forward; a task never returns to an earlier status
var validTransitions = map[transition]bool{
	{StatusPending, StatusCompressing}:   true,
	{StatusPending, StatusError}:         true,
	{StatusCompressing, StatusUploading}: true,
	{StatusCompressing, StatusError}:     true,
	{StatusUploading, StatusCompleted}:   true,
	{StatusUploading, StatusError}:       true,
}

// ValidateTransition checks if a status transition is allowed
func ValidateTransition(from, to Status) error {
	if !validTransitions[transition{From: from, To: to}] {
		return fmt.Errorf("invalid task transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal reports whether no further transitions are possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Task tracks one file's progress through the pipeline
type Task struct {
	ID             string
	File           drive.File // the source file; for local uploads only name, type and size are set
	LocalPath      string     // set for local uploads
	Status         Status
	Strategy       compression.Strategy
	OriginalSize   int64
	CompressedSize *int64 // set once the task reaches uploading
	ErrorMessage   string
	Notice         string     // compression fallback shown to the user
	Result         drive.File // the uploaded file, set on completion
	DriveLink      string
}

// NewRemoteTask creates a pending task for a file already in Drive
func NewRemoteTask(file drive.File) *Task {
	return &Task{
		ID:           uuid.NewString(),
		File:         file,
		Status:       StatusPending,
		OriginalSize: file.Size,
	}
}

// NewLocalTask creates a pending task for a local file queued for upload
func NewLocalTask(path, name, mimeType string, size int64) *Task {
	return &Task{
		ID:        uuid.NewString(),
		LocalPath: path,
		File: drive.File{
			Name:      name,
			MimeType:  mimeType,
			Size:      size,
			SizeKnown: true,
		},
		Status:       StatusPending,
		OriginalSize: size,
	}
}

// IsLocal reports whether the task uploads a local file
func (t *Task) IsLocal() bool {
	return t.LocalPath != ""
}

// Advance moves the task to a new status if the transition is valid
func (t *Task) Advance(to Status) error {
	if err := ValidateTransition(t.Status, to); err != nil {
		return fmt.Errorf("task %s: %w", t.ID, err)
	}
	t.Status = to
	return nil
}

// StartCompressing marks the download and compression stage
func (t *Task) StartCompressing() error {
	return t.Advance(StatusCompressing)
}

// StartUploading records the size that will be uploaded
func (t *Task) StartUploading(compressedSize int64) error {
	if err := t.Advance(StatusUploading); err != nil {
		return err
	}
	t.CompressedSize = &compressedSize
	return nil
}

// Complete records the uploaded file
func (t *Task) Complete(result drive.File, link string) error {
	if err := t.Advance(StatusCompleted); err != nil {
		return err
	}
	t.Result = result
	t.DriveLink = link
	return nil
}

// Fail records a per-file failure
func (t *Task) Fail(message string) error {
	if err := t.Advance(StatusError); err != nil {
		return err
	}
	t.ErrorMessage = message
	return nil
}

// BytesSaved returns how much smaller the uploaded payload was, or 0
func (t *Task) BytesSaved() int64 {
	if t.Status != StatusCompleted || t.CompressedSize == nil {
		return 0
	}
	if *t.CompressedSize < t.OriginalSize {
		return t.OriginalSize - *t.CompressedSize
	}
	return 0
}

// Clone returns a deep copy safe to hand to readers
func (t *Task) Clone() Task {
	c := *t
	if t.CompressedSize != nil {
		size := *t.CompressedSize
		c.CompressedSize = &size
	}
	return c
}
