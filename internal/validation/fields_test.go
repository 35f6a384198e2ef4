package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/shelfapp/shelf-server/internal/errors"
)

func ptr(s string) *string { return &s }

func TestValidateRequired(t *testing.T) {
	got, err := ValidateRequired("  9780441013593 ", "isbn")
	require.NoError(t, err)
	assert.Equal(t, "9780441013593", got)

	_, err = ValidateRequired("   ", "isbn")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	assert.Contains(t, err.Error(), "isbn")
}

func TestValidateLength(t *testing.T) {
	tests := []struct {
		name     string
		value    *string
		min, max int
		nullable bool
		want     *string
		wantErr  bool
	}{
		{"within bounds", ptr("Dune"), 1, 255, false, ptr("Dune"), false},
		{"trimmed", ptr("  Dune  "), 1, 255, false, ptr("Dune"), false},
		{"nil nullable", nil, 1, 255, true, nil, false},
		{"blank nullable", ptr("   "), 1, 255, true, nil, false},
		{"nil required", nil, 1, 255, false, nil, true},
		{"too long", ptr("abcdef"), 1, 5, false, nil, true},
		{"too short", ptr("ab"), 3, 5, true, nil, true},
		{"multibyte counted as runes", ptr("ééééé"), 1, 5, false, ptr("ééééé"), false},
		{"no upper bound", ptr("a long description"), 1, 0, false, ptr("a long description"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateLength(tt.value, "title", tt.min, tt.max, tt.nullable)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domainerrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateExactLength(t *testing.T) {
	got, err := ValidateExactLength(ptr("0441013597"), "isbn10", 10, true)
	require.NoError(t, err)
	assert.Equal(t, "0441013597", *got)

	_, err = ValidateExactLength(ptr("044101359"), "isbn10", 10, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly 10")

	got, err = ValidateExactLength(nil, "isbn10", 10, true)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestValidateDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"1965-08-01", time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC)},
		{"1965-08", time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC)},
		{"1965", time.Date(1965, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2020-01-02T03:04:05Z", time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"1577934245000", time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ValidateDate(ptr(tt.in), "publish_date", false)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(*got), "got %v", got)
		})
	}

	_, err := ValidateDate(ptr("next tuesday"), "publish_date", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish_date must be a date")

	got, err := ValidateDate(nil, "publish_date", true)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ValidateDate(nil, "publish_date", false)
	assert.Error(t, err)
}
