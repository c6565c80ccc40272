package intent

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	holder := id.Holder("holder-1")

	tests := []struct {
		name   string
		intent Intent
	}{
		{"issue", NewIssue(holder, 100, id.NewNonce(), now)},
		{"accrue", NewAccrue(holder, 250, id.NewNonce(), now)},
		{"terminate", NewTerminate(holder, id.NewNonce(), now)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.intent.Encode()
			require.NoError(t, err)

			decoded, err := Decode(data)
			require.NoError(t, err)
			require.Equal(t, tt.intent, decoded)
		})
	}
}

func TestEncodeRejectsInvalidIntent(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		intent Intent
	}{
		{"zero amount issue", NewIssue("holder-1", 0, id.NewNonce(), now)},
		{"negative accrue", NewAccrue("holder-1", -5, id.NewNonce(), now)},
		{"empty holder", NewAccrue("", 10, id.NewNonce(), now)},
		{"malformed nonce", NewAccrue("holder-1", 10, id.Nonce("not-a-uuid"), now)},
		{"terminate with amount", Intent{Version: Version, Type: TypeTerminate, Nonce: id.NewNonce(), Holder: "holder-1", Amount: 7, SubmittedAt: now}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.intent.Encode()
			require.Error(t, err)
			require.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
		})
	}
}

func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	valid := NewAccrue("holder-1", 10, id.NewNonce(), time.Now())

	tests := []struct {
		name    string
		payload []byte
	}{
		{"not json", []byte("not json at all")},
		{"empty object", []byte(`{}`)},
		{"unknown type", mutate(t, valid, "type", "REVOKE")},
		{"future version", mutate(t, valid, "v", 2)},
		{"zero version", mutate(t, valid, "v", 0)},
		{"missing nonce", mutate(t, valid, "nonce", "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.payload)
			require.Error(t, err)
			require.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
		})
	}
}

// mutate re-serializes a valid intent with one field overridden.
func mutate(t *testing.T, i Intent, field string, value any) []byte {
	t.Helper()
	data, err := json.Marshal(i)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	m[field] = value
	out, err := json.Marshal(m)
	require.NoError(t, err)
	return out
}

func TestTypeIsValid(t *testing.T) {
	for _, typ := range []Type{TypeIssue, TypeAccrue, TypeTerminate} {
		require.True(t, typ.IsValid(), fmt.Sprintf("%s should be valid", typ))
	}
	require.False(t, Type("MINT").IsValid())
	require.False(t, Type("").IsValid())
}
