package multipart

import (
	"encoding/json"
	"fmt"
)

// UploadResponse is the typed result of a multipart upload
type UploadResponse struct {
	ID          string `json:"id"`
	WebViewLink string `json:"webViewLink,omitempty"`
}

// apiErrorBody mirrors the error envelope Drive returns on failure
type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ResponseError carries the message surfaced from a failed upload response
type ResponseError struct {
	StatusCode int
	Message    string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("upload failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// DecodeUploadResponse parses the upload response body. A 2xx response must
// carry an id; anything else surfaces the API's error message.
func DecodeUploadResponse(statusCode int, body []byte) (*UploadResponse, error) {
	if statusCode >= 200 && statusCode < 300 {
		var resp UploadResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &ResponseError{StatusCode: statusCode, Message: "malformed upload response: " + err.Error()}
		}
		if resp.ID == "" {
			return nil, &ResponseError{StatusCode: statusCode, Message: "upload response did not include a file id"}
		}
		return &resp, nil
	}

	var apiErr apiErrorBody
	msg := "Unknown error during upload"
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}
	return nil, &ResponseError{StatusCode: statusCode, Message: msg}
}
