package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMetadata_FlattensExtraAndKind(t *testing.T) {
	m := WithExtra(&LotMetadata{LotID: "lot-1", Action: "updated", Reason: "lot_principal"}, "changed_fields", []string{"floor"})

	raw, err := EncodeMetadata(m)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(raw, &flat))
	assert.Equal(t, "lot", flat["kind"])
	assert.Equal(t, "lot-1", flat["lot_id"])
	assert.Equal(t, "lot_principal", flat["reason"])
	assert.Equal(t, []any{"floor"}, flat["changed_fields"])
}

func TestEncodeMetadata_TypedFieldWinsOverExtra(t *testing.T) {
	m := WithExtra(&BuildingMetadata{BuildingID: "b-1", Action: "deleted"}, "building_id", "spoofed")

	raw, err := EncodeMetadata(m)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"building_id":"b-1"`)
}

func TestDecodeMetadata_RestoresShapeAndUnknownFields(t *testing.T) {
	raw := []byte(`{"kind":"status_change","intervention_id":"i-1","old_status":"in_progress","new_status":"closed_by_tenant","comment":"done"}`)

	m, err := DecodeMetadata(raw)
	require.NoError(t, err)

	sc, ok := m.(*StatusChangeMetadata)
	require.True(t, ok)
	assert.Equal(t, "i-1", sc.InterventionID)
	assert.Equal(t, "closed_by_tenant", sc.NewStatus)
	assert.Equal(t, map[string]any{"comment": "done"}, sc.Extra)
}

func TestDecodeMetadata_UnknownKind(t *testing.T) {
	m, err := DecodeMetadata([]byte(`{"foo":1}`))
	require.NoError(t, err)
	assert.Equal(t, MetadataGeneric, m.Kind())
	assert.Equal(t, map[string]any{"foo": float64(1)}, m.(*GenericMetadata).Extra)

	m, err = DecodeMetadata(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = DecodeMetadata([]byte(`{`))
	assert.Error(t, err)
}

func TestPriorityBump(t *testing.T) {
	assert.Equal(t, PriorityHigh, PriorityNormal.Bump(1))
	assert.Equal(t, PriorityUrgent, PriorityHigh.Bump(5))
	assert.Equal(t, PriorityHigh, PriorityLow.AtLeast(PriorityHigh))
	assert.Equal(t, PriorityUrgent, PriorityUrgent.AtLeast(PriorityHigh))
}

func TestNotificationValidate(t *testing.T) {
	n := &Notification{UserID: "u1", Title: "t"}
	var verr *ValidationError
	require.ErrorAs(t, n.Validate(), &verr)
	assert.Equal(t, "team_id", verr.Field)

	n.TeamID = "t1"
	assert.NoError(t, n.Validate())
}
