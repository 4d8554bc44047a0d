// Package naming derives stable file names from item metadata.
package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/veranemoloko/clip-downloader/internal/domain"
)

const (
	DefaultFormat     = "create_time id desc"
	DefaultSeparator  = "_"
	DefaultMaxLength  = 64
	DefaultDateLayout = "2006-01-02_15-04-05"
)

// Resolver builds names from a whitespace-separated list of fields:
// create_time, id, type, desc, nickname, mix_title.
type Resolver struct {
	fields     []string
	sep        string
	maxLen     int
	dateLayout string
}

func New(format, sep string, maxLen int, dateLayout string) *Resolver {
	fields := strings.Fields(format)
	if len(fields) == 0 {
		fields = strings.Fields(DefaultFormat)
	}

	hasID := false
	for _, f := range fields {
		if f == "id" {
			hasID = true
		}
	}
	// the id keeps names unique within a batch
	if !hasID {
		fields = append(fields, "id")
	}

	if sep == "" || strings.ContainsAny(sep, `/\`) {
		sep = DefaultSeparator
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	if dateLayout == "" {
		dateLayout = DefaultDateLayout
	}
	return &Resolver{fields: fields, sep: sep, maxLen: maxLen, dateLayout: dateLayout}
}

// MaxNameBytes bounds a base name so that it, plus an index suffix and extension,
// fits in a 255-byte file name.
const MaxNameBytes = 200

type field struct {
	value string
	free  bool
}

// NameFor returns the base file name of item. It depends only on the item's fields.
func (r *Resolver) NameFor(item domain.Item) string {
	parts := make([]field, 0, len(r.fields))
	for _, f := range r.fields {
		var v string
		free := false
		switch f {
		case "create_time":
			if !item.PublishTime.IsZero() {
				v = item.PublishTime.Format(r.dateLayout)
			}
		case "id":
			v = item.ID
		case "type":
			v = string(item.Type)
		case "desc":
			v, free = item.Title, true
		case "nickname":
			v, free = item.Nickname, true
		case "mix_title":
			v, free = item.MixTitle, true
		}
		v = Sanitize(v)
		if free {
			v = truncate(v, r.maxLen)
		}
		if v != "" {
			parts = append(parts, field{value: v, free: free})
		}
	}
	return r.fit(parts)
}

// fit joins parts, shortening free-text fields from the last one backwards until
// the name fits in MaxNameBytes.
func (r *Resolver) fit(parts []field) string {
	size := func() int {
		n := 0
		for i, p := range parts {
			if i > 0 {
				n += len(r.sep)
			}
			n += len(p.value)
		}
		return n
	}

	for i := len(parts) - 1; i >= 0 && size() > MaxNameBytes; i-- {
		if !parts[i].free {
			continue
		}
		parts[i].value = truncateBytes(parts[i].value, len(parts[i].value)-(size()-MaxNameBytes))
		if parts[i].value == "" {
			parts = append(parts[:i], parts[i+1:]...)
		}
	}

	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = p.value
	}
	return truncateBytes(strings.Join(out, r.sep), MaxNameBytes)
}

// Sanitize makes s safe as a single path segment.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, c := range s {
		switch {
		case strings.ContainsRune(`\/:*?"<>|`, c), unicode.IsControl(c):
			continue
		case unicode.IsSpace(c):
			if !space {
				b.WriteRune(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(c)
	}
	return strings.Trim(b.String(), " .")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:n]), " .")
}

// truncateBytes cuts s to at most n bytes on a rune boundary.
func truncateBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.TrimRight(s[:n], " .")
}
