package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrandListSchema_IsValidJSON(t *testing.T) {
	var v any
	require.NoError(t, json.Unmarshal(BrandListSchema(), &v))
}

func TestValidateBrandList(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"valid", `[{"name":"Nike","cashback":5},{"name":"Levi's","cashback":7.5}]`, false},
		{"empty array", `[]`, true},
		{"missing cashback", `[{"name":"Nike"}]`, true},
		{"negative cashback", `[{"name":"Nike","cashback":-1}]`, true},
		{"empty name", `[{"name":"","cashback":2}]`, true},
		{"not an array", `{"name":"Nike","cashback":5}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBrandList([]byte(tt.doc))
			if tt.wantErr {
				var verr *ValidationError
				assert.ErrorAs(t, err, &verr)
				assert.NotEmpty(t, verr.Errors)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBrandList_MalformedJSON(t *testing.T) {
	err := ValidateBrandList([]byte(`[{"name":`))
	require.Error(t, err)

	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
	assert.Contains(t, err.Error(), "brand_list")
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Errors: []FieldError{{Field: "0.name", Message: "is required"}}}
	assert.Contains(t, err.Error(), "1. 0.name: is required")
}
