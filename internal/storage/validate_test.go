package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/tessera/internal/apperr"
)

func TestValidateName(t *testing.T) {
	cases := []struct {
		name string
		want error
	}{
		{"note.md", nil},
		{"dir/sub/note.md", nil},
		{"no-extension", nil},
		{"", apperr.ErrInvalidName},
		{"   ", apperr.ErrInvalidName},
		{".hidden", apperr.ErrInvalidName},
		{"dir/.secret/x.md", apperr.ErrInvalidName},
		{"../escape.md", apperr.ErrPathTraversal},
		{"a/../b.md", apperr.ErrPathTraversal},
		{`a\b.md`, apperr.ErrInvalidPath},
		{"/abs.md", apperr.ErrInvalidPath},
		{"C:/x.md", apperr.ErrInvalidPath},
		{"a//b.md", apperr.ErrInvalidPath},
		{strings.Repeat("x", 256), apperr.ErrInvalidName},
		{strings.Repeat("x", 255), nil},
	}
	for _, c := range cases {
		err := ValidateName(c.name)
		if c.want == nil {
			if err != nil {
				t.Errorf("ValidateName(%q) = %v, want nil", c.name, err)
			}
			continue
		}
		if !errors.Is(err, c.want) {
			t.Errorf("ValidateName(%q) = %v, want %v", c.name, err, c.want)
		}
		if !apperr.IsValidation(err) {
			t.Errorf("ValidateName(%q) error should classify as validation", c.name)
		}
	}
}
