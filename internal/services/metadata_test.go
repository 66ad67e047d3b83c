package services_test

import (
	"testing"

	"market/internal/apperr"
	"market/internal/models"
	"market/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMetadata(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]any
		wantErr bool
	}{
		{name: "empty", raw: "", want: map[string]any{}},
		{name: "null", raw: "null", want: map[string]any{}},
		{name: "object", raw: `{"ref":"A1"}`, want: map[string]any{"ref": "A1"}},
		{name: "encoded string", raw: `"{\"ref\":\"A1\"}"`, want: map[string]any{"ref": "A1"}},
		{name: "array", raw: `[1,2]`, wantErr: true},
		{name: "broken", raw: `{"ref":`, wantErr: true},
		{name: "encoded garbage", raw: `"ref=A1"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := services.DecodeMetadata([]byte(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrInvalidMetadata)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckSensitiveData(t *testing.T) {
	meta := map[string]any{"card_number": "4111", "Exp_Year": "29", "brand": "visa"}

	err := services.CheckSensitiveData(models.MethodCard, meta)
	assert.ErrorIs(t, err, apperr.ErrForbiddenSensitiveData)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{"Exp_Year", "card_number"}, e.Fields)

	assert.NoError(t, services.CheckSensitiveData(models.MethodBankTransfer, meta))
	assert.NoError(t, services.CheckSensitiveData(models.MethodCard, map[string]any{"last4": "1111"}))
}
