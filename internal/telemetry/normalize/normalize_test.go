package normalize

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validationFields(t *testing.T, err error) []string {
	t.Helper()
	var vErr *domain.ValidationError
	require.True(t, errors.As(err, &vErr), "expected validation error, got %v", err)
	return vErr.Fields()
}

func TestNamingConventionsNormalizeIdentically(t *testing.T) {
	camel := `{"deviceId":"D1","nodeId":"N1","current":1.5,"voltage":230,"powerFactor":0.9,"apparentPower":2}`
	pascal := `{"device":"D1","parent":"N1","Current":"1.5","Voltage":"230","PowerFactor":"0.9","ApparentPower":"2"}`

	a, err := Parse([]byte(camel))
	require.NoError(t, err)
	b, err := Parse([]byte(pascal))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, domain.Draft{
		DeviceID:      "D1",
		NodeID:        "N1",
		Current:       1.5,
		Voltage:       230,
		PowerFactor:   0.9,
		ApparentPower: 2,
	}, a)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		want       domain.Draft
		wantFields []string
		wantCode   string
	}{
		{
			name:    "camel wins over pascal, explicit zero counts",
			payload: `{"deviceId":"D1","nodeId":"N1","current":0,"Current":9,"voltage":1,"powerFactor":1,"apparentPower":1}`,
			want:    domain.Draft{DeviceID: "D1", NodeID: "N1", Current: 0, Voltage: 1, PowerFactor: 1, ApparentPower: 1},
		},
		{
			name:    "null camel falls back to pascal",
			payload: `{"deviceId":"D1","nodeId":"N1","current":null,"Current":4,"voltage":1,"powerFactor":1,"apparentPower":1}`,
			want:    domain.Draft{DeviceID: "D1", NodeID: "N1", Current: 4, Voltage: 1, PowerFactor: 1, ApparentPower: 1},
		},
		{
			name:    "blank deviceId falls back to device",
			payload: `{"deviceId":"  ","device":"D2","parent":"N2","current":1,"voltage":1,"powerFactor":1,"apparentPower":1}`,
			want:    domain.Draft{DeviceID: "D2", NodeID: "N2", Current: 1, Voltage: 1, PowerFactor: 1, ApparentPower: 1},
		},
		{
			name:    "numeric identifiers",
			payload: `{"deviceId":1001,"nodeId":7,"current":1,"voltage":1,"powerFactor":1,"apparentPower":1}`,
			want:    domain.Draft{DeviceID: "1001", NodeID: "7", Current: 1, Voltage: 1, PowerFactor: 1, ApparentPower: 1},
		},
		{
			name:       "missing voltage",
			payload:    `{"deviceId":"D1","nodeId":"N1","current":1,"powerFactor":1,"apparentPower":1}`,
			wantFields: []string{"voltage"},
			wantCode:   domain.CodeMissingField,
		},
		{
			name:       "all fields missing are listed together",
			payload:    `{"rssi":-70}`,
			wantFields: []string{"deviceId", "nodeId", "current", "voltage", "powerFactor", "apparentPower"},
			wantCode:   domain.CodeMissingField,
		},
		{
			name:       "unparseable numeric string",
			payload:    `{"deviceId":"D1","nodeId":"N1","current":"abc","voltage":1,"powerFactor":1,"apparentPower":1}`,
			wantFields: []string{"current"},
			wantCode:   domain.CodeInvalidNumber,
		},
		{
			name:       "non-finite numeric string",
			payload:    `{"deviceId":"D1","nodeId":"N1","current":1,"voltage":"NaN","powerFactor":1,"apparentPower":1}`,
			wantFields: []string{"voltage"},
			wantCode:   domain.CodeInvalidNumber,
		},
		{
			name:       "boolean measurement",
			payload:    `{"deviceId":"D1","nodeId":"N1","current":1,"voltage":1,"powerFactor":true,"apparentPower":1}`,
			wantFields: []string{"powerFactor"},
			wantCode:   domain.CodeInvalidNumber,
		},
		{
			name:       "object identifier",
			payload:    `{"deviceId":{"id":1},"nodeId":"N1","current":1,"voltage":1,"powerFactor":1,"apparentPower":1}`,
			wantFields: []string{"deviceId"},
			wantCode:   domain.CodeInvalidID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.payload))
			if tt.wantFields != nil {
				require.Error(t, err)
				assert.Equal(t, tt.wantFields, validationFields(t, err))
				var vErr *domain.ValidationError
				require.ErrorAs(t, err, &vErr)
				for _, fe := range vErr.Errors {
					assert.Equal(t, tt.wantCode, fe.Code)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiagnosticsKeepsUnknownKeysVerbatim(t *testing.T) {
	got, err := Parse([]byte(`{
		"device":"D1","parent":"N1",
		"current":1,"voltage":2,"powerFactor":0.5,"apparentPower":3,
		"rssi":-71,"hop":{"count":2},"fw":"1.0.3"
	}`))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"rssi": json.Number("-71"),
		"hop":  map[string]any{"count": json.Number("2")},
		"fw":   "1.0.3",
	}, got.Diagnostics)

	plain, err := Parse([]byte(`{"deviceId":"D1","nodeId":"N1","current":1,"voltage":2,"powerFactor":0.5,"apparentPower":3}`))
	require.NoError(t, err)
	assert.Nil(t, plain.Diagnostics)
}

func TestMeshParentStaysDiagnosticWhenNodeIDIsSent(t *testing.T) {
	got, err := Parse([]byte(`{
		"deviceId":"D1","nodeId":"N1","parent":"fd12::1","chip":"x",
		"current":1,"voltage":2,"powerFactor":0.5,"apparentPower":3
	}`))
	require.NoError(t, err)

	assert.Equal(t, "N1", got.NodeID)
	assert.Equal(t, map[string]any{
		"parent": "fd12::1",
		"chip":   "x",
	}, got.Diagnostics)

	t.Run("alias device kept when deviceId supplied the id", func(t *testing.T) {
		got, err := Parse([]byte(`{"deviceId":"D1","device":"gw-7","nodeId":"N1","current":1,"voltage":2,"powerFactor":0.5,"apparentPower":3}`))
		require.NoError(t, err)
		assert.Equal(t, "D1", got.DeviceID)
		assert.Equal(t, map[string]any{"device": "gw-7"}, got.Diagnostics)
	})
}

func TestDecodeRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{"", "   ", "not json", "[1,2]", `"str"`, `{"a":1} {"b":2}`, `{"a":`} {
		t.Run(raw, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			require.Error(t, err)
			var vErr *domain.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, domain.CodeMalformedPayload, vErr.Errors[0].Code)
		})
	}
}
