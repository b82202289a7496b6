// Package multipart encodes Drive multipart/related upload bodies.
//
// The body is assembled as raw bytes, so the payload is copied verbatim and
// never passes through a text encoding.
package multipart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	gomultipart "mime/multipart"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
)

// MetadataContentType is the content type of the JSON metadata part
const MetadataContentType = "application/json; charset=UTF-8"

// maxBoundaryAttempts bounds boundary regeneration on collision
const maxBoundaryAttempts = 8

// ErrBoundaryCollision is returned if no boundary absent from the payload was found
var ErrBoundaryCollision = errors.New("could not choose a boundary absent from the payload")

// Encode builds a multipart/related body with a JSON metadata part followed by
// the binary payload. It returns the body and the Content-Type header value.
func Encode(metadata any, payload []byte, payloadMimeType string) ([]byte, string, error) {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode upload metadata: %w", err)
	}
	if payloadMimeType == "" {
		payloadMimeType = "application/octet-stream"
	}

	boundary, err := chooseBoundary(payload, meta)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	buf.Grow(len(payload) + len(meta) + 512)

	w := gomultipart.NewWriter(&buf)
	if err := w.SetBoundary(boundary); err != nil {
		return nil, "", fmt.Errorf("invalid boundary: %w", err)
	}

	metaPart, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {MetadataContentType}})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create metadata part: %w", err)
	}
	if _, err := metaPart.Write(meta); err != nil {
		return nil, "", fmt.Errorf("failed to write metadata part: %w", err)
	}

	dataPart, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {payloadMimeType}})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create payload part: %w", err)
	}
	if _, err := dataPart.Write(payload); err != nil {
		return nil, "", fmt.Errorf("failed to write payload part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	contentType := mime.FormatMediaType("multipart/related", map[string]string{"boundary": boundary})
	return buf.Bytes(), contentType, nil
}

// chooseBoundary picks a random boundary that does not occur in any part
func chooseBoundary(parts ...[]byte) (string, error) {
	for i := 0; i < maxBoundaryAttempts; i++ {
		boundary := "drive-media-" + strings.ReplaceAll(uuid.NewString(), "-", "")
		collides := false
		for _, p := range parts {
			if bytes.Contains(p, []byte(boundary)) {
				collides = true
				break
			}
		}
		if !collides {
			return boundary, nil
		}
	}
	return "", ErrBoundaryCollision
}

// Part is one decoded part of a multipart/related body
type Part struct {
	ContentType string
	Data        []byte
}

// Decode parses a body produced by Encode. It returns the metadata JSON and
// the payload part.
func Decode(contentType string, body []byte) (meta Part, payload Part, err error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return Part{}, Part{}, fmt.Errorf("invalid content type: %w", err)
	}
	if mediaType != "multipart/related" {
		return Part{}, Part{}, fmt.Errorf("unexpected media type %q", mediaType)
	}

	r := gomultipart.NewReader(bytes.NewReader(body), params["boundary"])
	var parts []Part
	for {
		p, err := r.NextRawPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Part{}, Part{}, fmt.Errorf("failed to read part: %w", err)
		}
		data, err := io.ReadAll(p)
		if err != nil {
			return Part{}, Part{}, fmt.Errorf("failed to read part body: %w", err)
		}
		parts = append(parts, Part{ContentType: p.Header.Get("Content-Type"), Data: data})
	}

	if len(parts) != 2 {
		return Part{}, Part{}, fmt.Errorf("expected 2 parts, got %d", len(parts))
	}
	return parts[0], parts[1], nil
}
