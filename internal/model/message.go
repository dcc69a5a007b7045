package model

import (
	"strings"
	"time"
)

// Attachment is one raw file attached to an ingested email.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data,omitempty"`
}

// IsPDF reports whether the attachment is a PDF by content type or extension.
func (a Attachment) IsPDF() bool {
	if strings.EqualFold(a.ContentType, "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(a.Filename), ".pdf")
}

// IsImage reports whether the attachment is a raster image.
func (a Attachment) IsImage() bool {
	ct := strings.ToLower(a.ContentType)
	if strings.HasPrefix(ct, "image/") {
		return true
	}
	name := strings.ToLower(a.Filename)
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".tif", ".tiff"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// IngestedEmail is the immutable input to the processing pipeline.
type IngestedEmail struct {
	MessageID   string       `json:"message_id"`
	ReceivedAt  time.Time    `json:"received_at"`
	Subject     string       `json:"subject"`
	Sender      string       `json:"sender"`
	BodyText    string       `json:"body_text"`
	Attachments []Attachment `json:"attachments"`
}

// PDFs returns the PDF attachments in original order.
func (m IngestedEmail) PDFs() []Attachment {
	var out []Attachment
	for _, a := range m.Attachments {
		if a.IsPDF() {
			out = append(out, a)
		}
	}
	return out
}

// Images returns the image attachments in original order.
func (m IngestedEmail) Images() []Attachment {
	var out []Attachment
	for _, a := range m.Attachments {
		if a.IsImage() {
			out = append(out, a)
		}
	}
	return out
}
