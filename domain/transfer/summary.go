package transfer

// Operation names the batch-level action
type Operation string

const (
	OperationReplace   Operation = "compress-and-replace"
	OperationUploadNew Operation = "compress-and-upload"
	OperationLocal     Operation = "upload-local"
)

// Failure is one file's reason for ending in error
type Failure struct {
	TaskID string
	Name   string
	Reason string
}

// Summary is the end-of-batch report
type Summary struct {
	Operation  Operation
	Succeeded  int
	Failed     int
	BytesSaved int64 // counts only files that actually got smaller
	Failures   []Failure
	Notices    []string
	Aborted    bool // remaining files were skipped after an auth failure
}

// Record folds a finished task into the summary
func (s *Summary) Record(t Task) {
	switch t.Status {
	case StatusCompleted:
		s.Succeeded++
		s.BytesSaved += t.BytesSaved()
	case StatusError:
		s.Failed++
		s.Failures = append(s.Failures, Failure{TaskID: t.ID, Name: t.File.Name, Reason: t.ErrorMessage})
	}
	if t.Notice != "" {
		s.Notices = append(s.Notices, t.Notice)
	}
}

// Total returns the number of files that reached a terminal status
func (s *Summary) Total() int {
	return s.Succeeded + s.Failed
}
