package domain

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// MetadataKind discriminator stored under "kind" in notifications.metadata.
type MetadataKind string

const (
	MetadataIntervention MetadataKind = "intervention"
	MetadataStatusChange MetadataKind = "status_change"
	MetadataBuilding     MetadataKind = "building"
	MetadataLot          MetadataKind = "lot"
	MetadataContact      MetadataKind = "contact"
	MetadataGeneric      MetadataKind = "generic"
)

// NotificationMetadata is one of the typed shapes below. Fields nobody
// anticipated travel in Extra and are merged flat into the stored JSON.
type NotificationMetadata interface {
	Kind() MetadataKind
	extra() map[string]any
	setExtra(map[string]any)
}

type extraFields struct {
	Extra map[string]any `json:"-"`
}

func (e *extraFields) extra() map[string]any      { return e.Extra }
func (e *extraFields) setExtra(m map[string]any) { e.Extra = m }

type InterventionMetadata struct {
	InterventionID string  `json:"intervention_id"`
	Reference      string  `json:"reference,omitempty"`
	Status         string  `json:"status,omitempty"`
	Urgency        Urgency `json:"urgency,omitempty"`
	LotID          string  `json:"lot_id,omitempty"`
	BuildingID     string  `json:"building_id,omitempty"`
	Reason         string  `json:"reason,omitempty"`
	extraFields
}

func (*InterventionMetadata) Kind() MetadataKind { return MetadataIntervention }

type StatusChangeMetadata struct {
	InterventionID string `json:"intervention_id"`
	Reference      string `json:"reference,omitempty"`
	OldStatus      string `json:"old_status"`
	NewStatus      string `json:"new_status"`
	Reason         string `json:"reason,omitempty"`
	extraFields
}

func (*StatusChangeMetadata) Kind() MetadataKind { return MetadataStatusChange }

type BuildingMetadata struct {
	BuildingID   string `json:"building_id"`
	BuildingName string `json:"building_name,omitempty"`
	Action       string `json:"action"`
	Reason       string `json:"reason,omitempty"`
	extraFields
}

func (*BuildingMetadata) Kind() MetadataKind { return MetadataBuilding }

type LotMetadata struct {
	LotID      string `json:"lot_id"`
	Reference  string `json:"reference,omitempty"`
	BuildingID string `json:"building_id,omitempty"`
	Action     string `json:"action"`
	Reason     string `json:"reason,omitempty"`
	extraFields
}

func (*LotMetadata) Kind() MetadataKind { return MetadataLot }

type ContactMetadata struct {
	ContactID   string      `json:"contact_id"`
	ContactName string      `json:"contact_name,omitempty"`
	ContactType ContactType `json:"contact_type,omitempty"`
	Action      string      `json:"action"`
	Reason      string      `json:"reason,omitempty"`
	extraFields
}

func (*ContactMetadata) Kind() MetadataKind { return MetadataContact }

// GenericMetadata holds rows whose kind is missing or unknown.
type GenericMetadata struct {
	extraFields
}

func (*GenericMetadata) Kind() MetadataKind { return MetadataGeneric }

// WithExtra attaches a free-form field and returns m for chaining.
func WithExtra(m NotificationMetadata, key string, value any) NotificationMetadata {
	ex := m.extra()
	if ex == nil {
		ex = map[string]any{}
	}
	ex[key] = value
	m.setExtra(ex)
	return m
}

// EncodeMetadata flattens typed fields, extras and the kind discriminator.
// Typed fields win over extras with the same key.
func EncodeMetadata(m NotificationMetadata) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	flat, err := metadataToMap(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(flat)
}

func metadataToMap(m NotificationMetadata) (map[string]any, error) {
	flat := map[string]any{}
	for k, v := range m.extra() {
		flat[k] = v
	}
	typed, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(typed, &fields); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	for k, v := range fields {
		flat[k] = v
	}
	flat["kind"] = string(m.Kind())
	return flat, nil
}

// DecodeMetadata restores the typed shape from stored JSON; keys the shape
// does not declare are kept in Extra.
func DecodeMetadata(raw []byte) (NotificationMetadata, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var flat map[string]any
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	kind, _ := flat["kind"].(string)
	var m NotificationMetadata
	switch MetadataKind(kind) {
	case MetadataIntervention:
		m = &InterventionMetadata{}
	case MetadataStatusChange:
		m = &StatusChangeMetadata{}
	case MetadataBuilding:
		m = &BuildingMetadata{}
	case MetadataLot:
		m = &LotMetadata{}
	case MetadataContact:
		m = &ContactMetadata{}
	default:
		m = &GenericMetadata{}
	}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	knownKeys := jsonFieldNames(m)
	extra := map[string]any{}
	for k, v := range flat {
		if k == "kind" {
			continue
		}
		if _, ok := knownKeys[k]; ok {
			continue
		}
		extra[k] = v
	}
	if len(extra) > 0 {
		m.setExtra(extra)
	}
	return m, nil
}

func jsonFieldNames(m NotificationMetadata) map[string]struct{} {
	names := map[string]struct{}{}
	t := reflect.TypeOf(m)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous || !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		names[name] = struct{}{}
	}
	return names
}
