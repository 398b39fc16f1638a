package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"Moxie/internal/core/content"
	"Moxie/internal/core/media"
	"Moxie/internal/core/views"
)

// MaxMutationBody bounds JSON mutation bodies. Base64 inflates media by 4/3,
// so this leaves room for a payload just under the media limit plus the body.
const MaxMutationBody = media.MaxPayloadBytes*4/3 + 64*1024

// ErrRequestTooLarge is returned when a body exceeds MaxMutationBody
var ErrRequestTooLarge = errors.New("request body too large")

// MediaInput is an attachment encoded for JSON transport
type MediaInput struct {
	Buffer   string `json:"buffer"`
	MimeType string `json:"mimetype"`
}

// OriginInput names the view a mutation was issued from
type OriginInput struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
}

// DecodeJSON reads a size-limited JSON body into v
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxMutationBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ErrRequestTooLarge
		}
		return err
	}
	return nil
}

// WriteDecodeError writes the response for a DecodeJSON failure
func WriteDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrRequestTooLarge) {
		WriteError(w, http.StatusRequestEntityTooLarge, "PayloadTooLarge",
			"Media must be smaller than 5MB")
		return
	}
	WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
}

// Upload decodes the attachment; nil input means no media
func (m *MediaInput) Upload() (*content.Upload, error) {
	if m == nil {
		return nil, nil
	}
	buffer := m.Buffer
	// Browsers' FileReader yields data URLs; accept them as is
	if i := strings.Index(buffer, ";base64,"); strings.HasPrefix(buffer, "data:") && i >= 0 {
		buffer = buffer[i+len(";base64,"):]
	}
	payload, err := base64.StdEncoding.DecodeString(buffer)
	if err != nil {
		return nil, &content.ValidationError{Field: "media", Message: "media buffer must be base64", Err: err}
	}
	return &content.Upload{Payload: payload, MimeType: m.MimeType}, nil
}

// Context parses the origin; an absent origin yields the zero Context
func (o *OriginInput) Context() (views.Context, error) {
	if o == nil || (o.Kind == "" && o.ID == "") {
		return views.Context{}, nil
	}
	return views.Parse(o.Kind, o.ID)
}
