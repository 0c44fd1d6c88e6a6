package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
)

func sampleHistory() History {
	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	return History{
		DeviceID:    "DEV/01",
		NodeID:      "N1",
		GeneratedAt: ts.Add(time.Hour),
		Records: []domain.Record{
			{DeviceID: "DEV/01", NodeID: "N1", Current: 1.2, Voltage: 229.5, PowerFactor: 0.95, ApparentPower: 0.3, Source: "udp", Timestamp: ts},
			{DeviceID: "DEV/01", NodeID: "N1", Current: 1.1, Voltage: 230.1, PowerFactor: 0.96, ApparentPower: 0.28, Source: "http", Timestamp: ts.Add(-time.Minute),
				Diagnostics: datatypes.JSONMap{"rssi": -70}},
		},
	}
}

func TestRenderXLSX(t *testing.T) {
	doc, err := Render("XLSX", sampleHistory())
	require.NoError(t, err)
	assert.Equal(t, "DEV-01_N1_20240601T110000Z.xlsx", doc.Filename)

	f, err := excelize.OpenReader(bytes.NewReader(doc.Body))
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(recordsSheet, "C2")
	require.NoError(t, err)
	assert.Equal(t, "229.5", v)

	diag, err := f.GetCellValue(recordsSheet, "G3")
	require.NoError(t, err)
	assert.JSONEq(t, `{"rssi":-70}`, diag)

	device, err := f.GetCellValue(summarySheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "DEV/01", device)
}

func TestRenderPDF(t *testing.T) {
	doc, err := Render("pdf", sampleHistory())
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF")))
}

func TestRenderUnsupported(t *testing.T) {
	_, err := Render("csv", sampleHistory())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
