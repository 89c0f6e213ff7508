package backup

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Kind names the operation a backup was taken for.
type Kind string

// Backup kinds.
const (
	KindRollback       Kind = "rollback"
	KindSaveFailure    Kind = "save-failure"
	KindRename         Kind = "rename"
	KindDelete         Kind = "delete"
	KindExternalChange Kind = "external-change"
)

var kinds = map[Kind]struct{}{
	KindRollback:       {},
	KindSaveFailure:    {},
	KindRename:         {},
	KindDelete:         {},
	KindExternalChange: {},
}

// ParseKind returns the Kind named by s.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	_, ok := kinds[k]
	return k, ok
}

// Name is the structured form of a backup file name:
// {Base}.{Kind}.{Timestamp}[.{Ext}].
type Name struct {
	Base      string
	Kind      Kind
	Timestamp int64
	Ext       string // without the dot; empty when the note has no extension
}

// NameFor builds the backup name of the note at rel (slash separated).
func NameFor(rel string, kind Kind, ts int64) Name {
	base := path.Base(rel)
	ext := path.Ext(base)
	if ext == base {
		ext = ""
	}
	return Name{
		Base:      strings.TrimSuffix(base, ext),
		Kind:      kind,
		Timestamp: ts,
		Ext:       strings.TrimPrefix(ext, "."),
	}
}

// String encodes n as a file name.
func (n Name) String() string {
	s := n.Base + "." + string(n.Kind) + "." + strconv.FormatInt(n.Timestamp, 10)
	if n.Ext != "" {
		s += "." + n.Ext
	}
	return s
}

// SameSeries reports whether o belongs to the same (base, kind) pruning group.
func (n Name) SameSeries(o Name) bool {
	return n.Base == o.Base && n.Kind == o.Kind
}

// ParseName decodes a file name produced by Name.String. The kind and
// timestamp are located from the right so that base names may contain dots.
func ParseName(s string) (Name, error) {
	parts := strings.Split(s, ".")
	for i := len(parts) - 2; i >= 1; i-- {
		if len(parts)-(i+2) > 1 {
			break
		}
		kind, ok := ParseKind(parts[i])
		if !ok {
			continue
		}
		ts, err := strconv.ParseInt(parts[i+1], 10, 64)
		if err != nil || ts < 0 || !isDigits(parts[i+1]) {
			continue
		}
		base := strings.Join(parts[:i], ".")
		if base == "" {
			break
		}
		n := Name{Base: base, Kind: kind, Timestamp: ts}
		if i+2 < len(parts) {
			n.Ext = parts[i+2]
			if n.Ext == "" {
				break
			}
		}
		return n, nil
	}
	return Name{}, fmt.Errorf("backup: malformed backup name %q", s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
