package photo

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestNewRatingRange(t *testing.T) {
	tests := []struct {
		name    string
		min     *float64
		max     *float64
		want    *RatingRange
		wantErr bool
	}{
		{name: "no bounds", want: nil},
		{name: "both bounds", min: ptr(2), max: ptr(4.5), want: &RatingRange{Min: 2, Max: 4.5}},
		{name: "only min defaults max to 5", min: ptr(3), want: &RatingRange{Min: 3, Max: 5}},
		{name: "only max defaults min to 1", max: ptr(2), want: &RatingRange{Min: 1, Max: 2}},
		{name: "equal bounds", min: ptr(4), max: ptr(4), want: &RatingRange{Min: 4, Max: 4}},
		{name: "min below scale", min: ptr(0.1), wantErr: true},
		{name: "max above scale", max: ptr(5.5), wantErr: true},
		{name: "min greater than max", min: ptr(4), max: ptr(2), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewRatingRange(tt.min, tt.max)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateTagName(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		wantErr bool
	}{
		{"simple", "sunset", false},
		{"keeps case", "Sunset", false},
		{"with spaces inside", "golden hour", false},
		{"max length", strings.Repeat("a", MaxTagNameLen), false},
		{"multibyte within limit", strings.Repeat("é", MaxTagNameLen), false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"too long", strings.Repeat("a", MaxTagNameLen+1), true},
		{"NUL byte", "a\x00b", true},
		{"invalid UTF-8", "sun\xffset", true},
		{"percent kept verbatim", "100%", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTagName(tt.tag)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateText(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr string
	}{
		{name: "plain", value: "golden hour"},
		{name: "empty", value: ""},
		{name: "multibyte", value: "été 🌅"},
		{name: "invalid UTF-8", value: "\xff\xfe", wantErr: "invalid UTF-8"},
		{name: "truncated rune", value: "caf\xc3", wantErr: "invalid UTF-8"},
		{name: "NUL", value: "sun\x00set", wantErr: "NUL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateText("keyword", tt.value)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateKeyword(t *testing.T) {
	assert.NoError(t, ValidateKeyword("sunset"))
	assert.ErrorIs(t, ValidateKeyword("  "), ErrValidation)
	assert.ErrorIs(t, ValidateKeyword("\xff"), ErrValidation)
	assert.ErrorIs(t, ValidateKeyword("sun\x00set"), ErrValidation)
}

func TestFreeTextValidatorsRejectMalformedBytes(t *testing.T) {
	assert.NoError(t, ValidateDescription("boats in the harbor"))
	assert.ErrorIs(t, ValidateDescription("boats\x00"), ErrValidation)
	assert.ErrorIs(t, ValidateDescription("\xc3("), ErrValidation)

	assert.ErrorIs(t, ValidateComment("nice\x00"), ErrValidation)
	assert.ErrorIs(t, ValidateComment("\xffnice"), ErrValidation)

	assert.ErrorIs(t, ValidateNewUser("ali\x00ce", "alice@example.com", ""), ErrValidation)
	assert.ErrorIs(t, ValidateNewUser("alice", "alice@example.com", "Al\xffice"), ErrValidation)
}

func TestValidateRatingValue(t *testing.T) {
	for v := MinRating; v <= MaxRating; v++ {
		assert.NoError(t, ValidateRatingValue(v))
	}
	assert.ErrorIs(t, ValidateRatingValue(0), ErrValidation)
	assert.ErrorIs(t, ValidateRatingValue(6), ErrValidation)
	assert.ErrorIs(t, ValidateRatingValue(-3), ErrValidation)
}

func TestPaginationNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Pagination
		want Pagination
	}{
		{"zero values get defaults", Pagination{}, Pagination{Limit: DefaultPageSize}},
		{"negative offset clamped", Pagination{Limit: 5, Offset: -2}, Pagination{Limit: 5}},
		{"oversized limit clamped", Pagination{Limit: 10000, Offset: 3}, Pagination{Limit: MaxPageSize, Offset: 3}},
		{"valid values kept", Pagination{Limit: 20, Offset: 40}, Pagination{Limit: 20, Offset: 40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.in
			p.Normalize()
			assert.Equal(t, tt.want, p)
		})
	}
}

func TestDedupeTagNames(t *testing.T) {
	got := DedupeTagNames([]string{"sea", "sky", "sea", "Sea", "sky"})
	assert.Equal(t, []string{"sea", "sky", "Sea"}, got)
	assert.Empty(t, DedupeTagNames(nil))
}

func TestRoundAverage(t *testing.T) {
	assert.Equal(t, 3.67, RoundAverage((2.0+4.0+5.0)/3.0))
	assert.Equal(t, 4.5, RoundAverage(4.5))
	assert.Equal(t, 1.0, RoundAverage(1))
}

func TestTransformOptionsValidate(t *testing.T) {
	opts := TransformOptions{Width: 200, Height: 100}
	require.NoError(t, opts.Validate(4000))
	assert.Equal(t, TransformFit, opts.Mode, "empty mode defaults to fit")

	bad := []TransformOptions{
		{Width: 0, Height: 100, Mode: TransformFit},
		{Width: 100, Height: -1, Mode: TransformFill},
		{Width: 5000, Height: 100, Mode: TransformFit},
		{Width: 100, Height: 100, Mode: "cartoonify"},
	}
	for _, o := range bad {
		assert.ErrorIs(t, o.Validate(4000), ErrValidation, "%+v", o)
	}
}

func TestValidateNewUser(t *testing.T) {
	assert.NoError(t, ValidateNewUser("alice", "alice@example.com", "Alice"))
	assert.ErrorIs(t, ValidateNewUser("al", "alice@example.com", ""), ErrValidation)
	assert.ErrorIs(t, ValidateNewUser("alice", "not-an-email", ""), ErrValidation)
	assert.ErrorIs(t, ValidateNewUser("alice", "alice@example.com", strings.Repeat("n", MaxNameLen+1)), ErrValidation)
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: photo 1", ErrNotFound), "not_found"},
		{fmt.Errorf("%w: twice", ErrAlreadyRated), "already_rated"},
		{ErrConflict, "conflict"},
		{ErrLimitExceeded, "limit_exceeded"},
		{ErrValidation, "validation_error"},
		{ErrInvalidState, "invalid_state"},
		{ErrForbidden, "forbidden"},
		{errors.New("boom"), "internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err))
	}
}

func TestUserHasRole(t *testing.T) {
	u := &User{Role: RoleModerator}
	assert.True(t, u.HasRole(RoleAdmin, RoleModerator))
	assert.False(t, u.HasRole(RoleAdmin))
	assert.True(t, RoleUser.Valid())
	assert.False(t, Role("owner").Valid())
}
