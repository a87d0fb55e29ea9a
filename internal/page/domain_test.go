package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistrableLabel(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"www.levi.co.uk", "levi"},
		{"www.underarmour.com", "underarmour"},
		{"shop.nike.com", "nike"},
		{"nike.com", "nike"},
		{"NIKE.COM.", "nike"},
		{"store.example.com.au", "example"},
		{"www.amazon.co.jp:8080", "amazon"},
		{"co.uk", ""},
		{"com", ""},
		{"127.0.0.1", ""},
		{"[::1]", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, RegistrableLabel(tt.host))
		})
	}
}
