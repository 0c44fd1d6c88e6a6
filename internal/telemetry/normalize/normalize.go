// Package normalize turns loosely named meter payloads into canonical drafts.
//
// Producers disagree on naming: identifiers arrive as deviceId/device and
// nodeId/parent, measurements in camelCase or PascalCase, numbers as JSON
// numbers or numeric strings. Everything not recognised is kept verbatim as
// diagnostics.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
)

// Payload is a decoded JSON object with numbers kept as json.Number.
type Payload map[string]any

type measurement struct {
	field string
	alias string
	set   func(*domain.Draft, float64)
}

var (
	deviceKeys = []string{"deviceId", "device"}
	nodeKeys   = []string{"nodeId", "parent"}

	measurements = []measurement{
		{field: "current", alias: "Current", set: func(d *domain.Draft, v float64) { d.Current = v }},
		{field: "voltage", alias: "Voltage", set: func(d *domain.Draft, v float64) { d.Voltage = v }},
		{field: "powerFactor", alias: "PowerFactor", set: func(d *domain.Draft, v float64) { d.PowerFactor = v }},
		{field: "apparentPower", alias: "ApparentPower", set: func(d *domain.Draft, v float64) { d.ApparentPower = v }},
	}

	// device and parent are only reserved when they supplied the identifier;
	// parent is otherwise the Wi-SUN mesh parent and stays a diagnostic.
	reservedKeys = func() map[string]struct{} {
		keys := map[string]struct{}{
			deviceKeys[0]: {},
			nodeKeys[0]:   {},
		}
		for _, m := range measurements {
			keys[m.field] = struct{}{}
			keys[m.alias] = struct{}{}
		}
		return keys
	}()
)

// Decode parses raw as a single JSON object.
func Decode(raw []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, malformed("empty payload")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, malformed("payload is not valid JSON")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, malformed("unexpected data after JSON object")
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, malformed("payload must be a JSON object")
	}
	return Payload(obj), nil
}

// Normalize maps p onto the canonical field set. All missing and malformed
// fields are reported together in one *domain.ValidationError.
func Normalize(p Payload) (domain.Draft, error) {
	var (
		draft              domain.Draft
		errs               []domain.FieldError
		deviceKey, nodeKey string
	)

	draft.DeviceID, deviceKey, errs = identifier(p, "deviceId", deviceKeys, errs)
	if deviceKey == "" {
		errs = append(errs, missing("deviceId"))
	}
	draft.NodeID, nodeKey, errs = identifier(p, "nodeId", nodeKeys, errs)
	if nodeKey == "" {
		errs = append(errs, missing("nodeId"))
	}

	for _, m := range measurements {
		raw, ok := lookup(p, m.field, m.alias)
		if !ok {
			errs = append(errs, missing(m.field))
			continue
		}
		v, err := toFloat(raw)
		if err != nil {
			errs = append(errs, domain.FieldError{
				Field:   m.field,
				Code:    domain.CodeInvalidNumber,
				Message: fmt.Sprintf("%s must be a finite number", m.field),
			})
			continue
		}
		m.set(&draft, v)
	}

	if len(errs) > 0 {
		return domain.Draft{}, &domain.ValidationError{Errors: errs}
	}

	draft.Diagnostics = diagnostics(p, deviceKey, nodeKey)
	return draft, nil
}

// Parse is Decode followed by Normalize.
func Parse(raw []byte) (domain.Draft, error) {
	p, err := Decode(raw)
	if err != nil {
		return domain.Draft{}, err
	}
	return Normalize(p)
}

// identifier takes the first usable key in order and returns the key it used,
// or "" when none was usable. Blank strings and null fall through to the next
// key, matching producers that send "deviceId": "" next to a populated "device".
// A key holding a value of the wrong type counts as used.
func identifier(p Payload, field string, keys []string, errs []domain.FieldError) (string, string, []domain.FieldError) {
	for _, key := range keys {
		raw, ok := p[key]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s, key, errs
			}
		case json.Number:
			return v.String(), key, errs
		default:
			return "", key, append(errs, domain.FieldError{
				Field:   field,
				Code:    domain.CodeInvalidID,
				Message: fmt.Sprintf("%s must be a string or number", field),
			})
		}
	}
	return "", "", errs
}

// lookup prefers the camelCase key whenever it is present, including an
// explicit zero. JSON null counts as absent.
func lookup(p Payload, field, alias string) (any, bool) {
	if v, ok := p[field]; ok && v != nil {
		return v, true
	}
	if v, ok := p[alias]; ok && v != nil {
		return v, true
	}
	return nil, false
}

func toFloat(raw any) (float64, error) {
	var (
		f   float64
		err error
	)
	switch v := raw.(type) {
	case json.Number:
		f, err = strconv.ParseFloat(v.String(), 64)
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
	case float64:
		f = v
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("non-finite number")
	}
	return f, nil
}

func diagnostics(p Payload, used ...string) map[string]any {
	var bag map[string]any
	for k, v := range p {
		if _, reserved := reservedKeys[k]; reserved {
			continue
		}
		if slices.Contains(used, k) {
			continue
		}
		if bag == nil {
			bag = make(map[string]any)
		}
		bag[k] = v
	}
	return bag
}

func missing(field string) domain.FieldError {
	return domain.FieldError{
		Field:   field,
		Code:    domain.CodeMissingField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

func malformed(message string) error {
	return domain.NewValidationError("payload", domain.CodeMalformedPayload, message)
}
