// Package export renders telemetry history as downloadable documents.
package export

import (
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
)

const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

var ErrUnsupportedFormat = errors.New("invalid_format")

// History is the input for one export.
type History struct {
	DeviceID    string
	NodeID      string
	GeneratedAt time.Time
	Records     []domain.Record
}

// Document is a rendered export ready to be written to a response.
type Document struct {
	ContentType string
	Filename    string
	Body        []byte
}

// Render builds the document for format ("pdf" or "xlsx").
func Render(format string, h History) (*Document, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	var (
		body        []byte
		contentType string
		err         error
	)
	switch format {
	case FormatPDF:
		body, err = BuildHistoryPDF(h)
		contentType = "application/pdf"
	case FormatXLSX:
		body, err = BuildHistoryXLSX(h)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	return &Document{
		ContentType: contentType,
		Filename:    filename(h, format),
		Body:        body,
	}, nil
}

func filename(h History, ext string) string {
	ts := h.GeneratedAt.UTC().Format("20060102T150405Z")
	return sanitize(h.DeviceID) + "_" + sanitize(h.NodeID) + "_" + ts + "." + ext
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
