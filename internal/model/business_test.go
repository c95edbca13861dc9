package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusiness_Valid(t *testing.T) {
	assert.True(t, Business{Name: "Acme"}.Valid())
	assert.True(t, Business{Website: "acme.example.com"}.Valid())
	assert.False(t, Business{Address: "123 Main St"}.Valid())
	assert.False(t, Business{Name: "   "}.Valid())
}

func TestBusiness_SetReviews(t *testing.T) {
	var b Business
	b.SetReviews(4.666, 12)
	require.NotNil(t, b.ReviewCount)
	require.NotNil(t, b.AvgRating)
	assert.Equal(t, 12, *b.ReviewCount)
	assert.Equal(t, 4.67, *b.AvgRating)
}

func TestBusiness_SetReviews_ZeroRatingAbsent(t *testing.T) {
	var b Business
	b.SetReviews(0, 3)
	require.NotNil(t, b.ReviewCount)
	assert.Equal(t, 3, *b.ReviewCount)
	assert.Nil(t, b.AvgRating)
}

func TestBusiness_SetReviews_NegativeCountClamped(t *testing.T) {
	var b Business
	b.SetReviews(4.5, -1)
	require.NotNil(t, b.ReviewCount)
	assert.Equal(t, 0, *b.ReviewCount)
}

func TestScope_Key(t *testing.T) {
	assert.Equal(t, "nashville|handyman", Scope{City: "Nashville", Service: "Handyman"}.Key())
	assert.Equal(t, "nashville|handyman", Scope{City: " nashville ", Service: "handyman"}.Key())
}

func TestScope_String(t *testing.T) {
	assert.Equal(t, "Nashville/handyman", Scope{City: "Nashville", Service: "handyman"}.String())
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("Nashville/handyman")
	require.NoError(t, err)
	assert.Equal(t, Scope{City: "Nashville", Service: "handyman"}, s)

	s, err = ParseScope(" Franklin / gutter cleaning ")
	require.NoError(t, err)
	assert.Equal(t, Scope{City: "Franklin", Service: "gutter cleaning"}, s)
}

func TestParseScope_Invalid(t *testing.T) {
	for _, in := range []string{"", "Nashville", "/handyman", "Nashville/", " / "} {
		_, err := ParseScope(in)
		assert.Error(t, err, "input %q", in)
	}
}
