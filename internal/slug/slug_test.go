package slug

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello World!!", "hello-world"},
		{"hello-world", "hello-world"},
		{"  3D -- Cube  ", "3d-cube"},
		{"Café Crème", "cafe-creme"},
		{"Neon_Button v2.0", "neon-button-v2-0"},
		{"UPPER case", "upper-case"},
		{"!!!", ""},
		{"", ""},
		{"日本語", ""},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.title))
		})
	}
}

func TestSlugify_TruncatesLongTitles(t *testing.T) {
	got := Slugify(strings.Repeat("ab ", 200))

	assert.LessOrEqual(t, len(got), MaxBaseLength)
	assert.False(t, strings.HasSuffix(got, "-"), "truncated slug must not end with a hyphen")
}

// takenSet builds an ExistsFunc backed by a set of already-used slugs.
func takenSet(slugs ...string) ExistsFunc {
	set := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		set[s] = true
	}
	return func(_ context.Context, s string) (bool, error) {
		return set[s], nil
	}
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		taken []string
		want  string
	}{
		{"unused base", "hello-world", nil, "hello-world"},
		{"base taken", "hello-world", []string{"hello-world"}, "hello-world-1"},
		{"several taken", "cube", []string{"cube", "cube-1", "cube-2"}, "cube-3"},
		{"gap is not reused out of order", "cube", []string{"cube", "cube-2"}, "cube-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Allocate(context.Background(), tt.base, takenSet(tt.taken...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllocate_EmptyBase(t *testing.T) {
	_, err := Allocate(context.Background(), "", takenSet())
	assert.Error(t, err)
}

func TestAllocate_PropagatesLookupError(t *testing.T) {
	boom := errors.New("database is down")
	_, err := Allocate(context.Background(), "x", func(context.Context, string) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestAllocate_Exhausted(t *testing.T) {
	_, err := Allocate(context.Background(), "x", func(context.Context, string) (bool, error) {
		return true, nil
	})
	assert.ErrorIs(t, err, ErrExhausted)
}
