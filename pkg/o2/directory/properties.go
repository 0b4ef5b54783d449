package directory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/common/model"
)

// ErrInvalidAttribute is returned when a property attribute name fails
// validation.
var ErrInvalidAttribute = errors.New("directory: invalid property attribute name")

// SetProperty stores attr=value (escaped string form) in the local
// offer of svcName and returns the resulting escaped property string
// (spec.md §4.C "Properties"). It sends nothing to peers itself.
// Attribute names are validated the same way a Prometheus label name
// is, since both are simple ensemble-wide attribute keys with no
// space for arbitrary payload structure.
func (d *Directory) SetProperty(svcName, attr, value string) (escaped string, err error) {
	if !model.LabelName(attr).IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAttribute, attr)
	}
	svc := d.services[svcName]
	if svc == nil {
		return "", ErrNoService
	}
	var self *Offerer
	for _, o := range svc.Offerers {
		if o.Process == d.self {
			self = o
			break
		}
	}
	if self == nil {
		return "", ErrNoService
	}

	props := parseProperties(self.Properties)
	props[attr] = value
	self.Properties = formatProperties(props)
	return self.Properties, nil
}

// GetProperty returns the value of attr from svcName's active
// provider's cached property set. Queries are always satisfied
// locally, never by a round-trip (spec.md §4.C "Queries are satisfied
// locally from the cached copy").
func (d *Directory) GetProperty(svcName, attr string) (string, bool) {
	svc := d.services[svcName]
	if svc == nil {
		return "", false
	}
	active := svc.Active()
	if active == nil {
		return "", false
	}
	props := parseProperties(active.Properties)
	v, ok := props[attr]
	return v, ok
}

// ApplyRemoteProperties overwrites the cached property set received in
// an /_o2/sv announcement for a peer offer.
func (d *Directory) ApplyRemoteProperties(svcName, process, escaped string) {
	svc := d.services[svcName]
	if svc == nil {
		return
	}
	for _, o := range svc.Offerers {
		if o.Process == process {
			o.Properties = escaped
			return
		}
	}
}

// escapeProperty applies the original's escaping rule: ':' and ';'
// (the property-string delimiters) are backslash-escaped.
func escapeProperty(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == ':' || r == ';' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unescapeProperty(s string) string {
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func parseProperties(escaped string) map[string]string {
	props := make(map[string]string)
	if escaped == "" {
		return props
	}
	for _, pair := range splitUnescaped(escaped, ';') {
		kv := splitUnescaped(pair, ':')
		if len(kv) != 2 {
			continue
		}
		props[unescapeProperty(kv[0])] = unescapeProperty(kv[1])
	}
	return props
}

func formatProperties(props map[string]string) string {
	var b strings.Builder
	first := true
	for k, v := range props {
		if !first {
			b.WriteByte(';')
		}
		first = false
		b.WriteString(escapeProperty(k))
		b.WriteByte(':')
		b.WriteString(escapeProperty(v))
	}
	return b.String()
}

// splitUnescaped splits s on sep, ignoring occurrences of sep preceded
// by an odd number of backslashes.
func splitUnescaped(s string, sep byte) []string {
	var parts []string
	var cur strings.Builder
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			cur.WriteByte(c)
			escaped = false
			continue
		}
		if c == '\\' {
			cur.WriteByte(c)
			escaped = true
			continue
		}
		if c == sep {
			parts = append(parts, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	parts = append(parts, cur.String())
	return parts
}
