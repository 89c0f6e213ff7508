package storage

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tessera/internal/apperr"
)

// MaxNameBytes bounds the length of a note identifier.
const MaxNameBytes = 255

// ValidateName checks that name is a usable note identifier: a slash
// separated path relative to the notes root that never escapes it and never
// addresses a hidden entry.
func ValidateName(name string) error {
	return validation.Validate(name,
		validation.By(notEmpty),
		validation.By(withinLength),
		validation.By(noBackslash),
		validation.By(relativeOnly),
		validation.By(noTraversal),
		validation.By(noHiddenSegments),
	)
}

func notEmpty(v any) error {
	if strings.TrimSpace(v.(string)) == "" {
		return fmt.Errorf("%w: name is required", apperr.ErrInvalidName)
	}
	return nil
}

func withinLength(v any) error {
	if len(v.(string)) > MaxNameBytes {
		return fmt.Errorf("%w: name exceeds %d bytes", apperr.ErrInvalidName, MaxNameBytes)
	}
	return nil
}

func noBackslash(v any) error {
	if strings.ContainsRune(v.(string), '\\') {
		return fmt.Errorf("%w: backslashes are not allowed", apperr.ErrInvalidPath)
	}
	return nil
}

func relativeOnly(v any) error {
	s := v.(string)
	if strings.HasPrefix(s, "/") || (len(s) > 1 && s[1] == ':') {
		return fmt.Errorf("%w: absolute paths are not allowed", apperr.ErrInvalidPath)
	}
	return nil
}

func noTraversal(v any) error {
	for seg := range strings.SplitSeq(v.(string), "/") {
		if seg == ".." {
			return fmt.Errorf("%w: parent directory segments are not allowed", apperr.ErrPathTraversal)
		}
	}
	return nil
}

func noHiddenSegments(v any) error {
	for seg := range strings.SplitSeq(v.(string), "/") {
		if seg == "" || seg == "." {
			return fmt.Errorf("%w: empty path segment", apperr.ErrInvalidPath)
		}
		if strings.HasPrefix(seg, ".") {
			return fmt.Errorf("%w: hidden entries are not allowed", apperr.ErrInvalidName)
		}
	}
	return nil
}
