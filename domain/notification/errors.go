package notification

import "errors"

var (
	// ErrNoRecipients is returned when no To recipients are provided
	ErrNoRecipients = errors.New("at least one recipient is required")

	// ErrInvalidRecipient is returned when a recipient has no email address
	ErrInvalidRecipient = errors.New("recipient must have an email address")

	// ErrNoOperation is returned when the summary does not name its batch operation
	ErrNoOperation = errors.New("batch operation is required")

	// ErrEmptyBatch is returned when the summary covers no files
	ErrEmptyBatch = errors.New("summary covers no files")

	// ErrNoFinishTime is returned when the batch end time is missing
	ErrNoFinishTime = errors.New("batch finish time is required")

	// ErrRecipientNotFound is returned when a recipient lookup fails
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrAmbiguousRecipient is returned when multiple recipients match a query
	ErrAmbiguousRecipient = errors.New("multiple recipients match query")

	// ErrSendFailed is returned when the email fails to send
	ErrSendFailed = errors.New("failed to send email")
)
