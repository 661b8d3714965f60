package store_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carnet-scolaire/carnet/internal/store"
)

func TestValidateLoginID(t *testing.T) {
	tests := []struct {
		login string
		ok    bool
	}{
		{"jdupont", true},
		{"jean.dupont@ecole.fr", true},
		{"prof-42_b", true},
		{"", false},
		{"jean dupont", false},
		{"x'; DROP TABLE admins; --", false},
		{strings.Repeat("a", 100), true},
		{strings.Repeat("a", 101), false},
	}
	for _, tt := range tests {
		err := store.ValidateLoginID(tt.login)
		if tt.ok {
			assert.NoError(t, err, tt.login)
		} else {
			assert.ErrorIs(t, err, store.ErrLoginInvalid, tt.login)
		}
	}
}
