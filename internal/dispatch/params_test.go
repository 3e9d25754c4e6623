package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailwarm/internal/gmail"
)

func TestParams_Limit(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		want    int64
		wantErr bool
	}{
		{"absent", Params{}, DefaultLimit, false},
		{"null", Params{"limit": nil}, DefaultLimit, false},
		{"float", Params{"limit": float64(25)}, 25, false},
		{"int", Params{"limit": 3}, 3, false},
		{"json number", Params{"limit": json.Number("7")}, 7, false},
		{"json number fraction", Params{"limit": json.Number("7.5")}, 0, true},
		{"zero", Params{"limit": 0}, 0, true},
		{"string", Params{"limit": "5"}, 0, true},
		{"huge", Params{"limit": float64(1 << 40)}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.params.limit()
			if tt.wantErr {
				var invalid *InvalidParameterError
				require.ErrorAs(t, err, &invalid)
				assert.Equal(t, "limit", invalid.Name)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParams_Attachments(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		got, err := Params{}.attachments()
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("name alias and unpadded base64", func(t *testing.T) {
		got, err := Params{"attachments": []any{
			map[string]any{"name": "a.bin", "data": "AQI"},
			map[string]any{"filename": "b.txt", "name": "ignored.txt", "data": "aGk="},
			map[string]any{"path": "/tmp/report.pdf"},
		}}.attachments()
		require.NoError(t, err)
		assert.Equal(t, []gmail.OutgoingAttachment{
			{Filename: "a.bin", Data: []byte{1, 2}},
			{Filename: "b.txt", Data: []byte("hi")},
			{Path: "/tmp/report.pdf"},
		}, got)
	})

	t.Run("typed slice", func(t *testing.T) {
		got, err := Params{"attachments": []map[string]any{{"path": "x"}}}.attachments()
		require.NoError(t, err)
		require.Len(t, got, 1)
	})

	t.Run("invalid data", func(t *testing.T) {
		_, err := Params{"attachments": []any{map[string]any{"filename": "x", "data": "!!"}}}.attachments()
		assert.ErrorIs(t, err, gmail.ErrInvalidAttachment)
	})

	t.Run("non string field", func(t *testing.T) {
		_, err := Params{"attachments": []any{map[string]any{"path": 12.0}}}.attachments()
		var invalid *InvalidParameterError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "path", invalid.Name)
	})
}
