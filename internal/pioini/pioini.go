// Package pioini is a small INI document model sufficient for platformio.ini:
// ordered sections and keys, comment lines kept in place, indented
// continuation lines folded into multi-line values.
package pioini

import (
	"bufio"
	"fmt"
	"strings"
)

// Entry is one line-level item of a section: either a key/value pair or a
// comment/blank line carried through verbatim.
type Entry struct {
	Key     string
	Value   string
	Comment string
	isKey   bool
}

// Section is a named group of entries. The unnamed section holds anything
// that precedes the first header.
type Section struct {
	Name    string
	Entries []Entry
}

// Document is a parsed INI file.
type Document struct {
	Sections []*Section
}

// Parse reads an INI document. Keys are case-insensitive and stored lower-case.
func Parse(data string) (*Document, error) {
	doc := &Document{Sections: []*Section{{Name: ""}}}
	cur := doc.Sections[0]
	var last *Entry

	sc := bufio.NewScanner(strings.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		trimmed := strings.TrimSpace(raw)

		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, ";") || strings.HasPrefix(trimmed, "#"):
			cur.Entries = append(cur.Entries, Entry{Comment: raw})
			last = nil
		case raw[0] == ' ' || raw[0] == '\t':
			if last == nil {
				return nil, fmt.Errorf("line %d: continuation without key", lineNo)
			}
			if last.Value == "" {
				last.Value = trimmed
			} else {
				last.Value += "\n" + trimmed
			}
		case strings.HasPrefix(trimmed, "["):
			end := strings.Index(trimmed, "]")
			if end < 0 {
				return nil, fmt.Errorf("line %d: unterminated section header", lineNo)
			}
			name := strings.TrimSpace(trimmed[1:end])
			cur = doc.section(name, true)
			last = nil
		default:
			key, value, ok := strings.Cut(trimmed, "=")
			if !ok {
				return nil, fmt.Errorf("line %d: expected key = value", lineNo)
			}
			cur.Entries = append(cur.Entries, Entry{
				Key:   strings.ToLower(strings.TrimSpace(key)),
				Value: strings.TrimSpace(value),
				isKey: true,
			})
			last = &cur.Entries[len(cur.Entries)-1]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *Document) section(name string, create bool) *Section {
	for _, s := range d.Sections {
		if s.Name == name {
			return s
		}
	}
	if !create {
		return nil
	}
	s := &Section{Name: name}
	d.Sections = append(d.Sections, s)
	return s
}

// Get returns the value of key in section.
func (d *Document) Get(section, key string) (string, bool) {
	s := d.section(section, false)
	if s == nil {
		return "", false
	}
	key = strings.ToLower(key)
	for _, e := range s.Entries {
		if e.isKey && e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Set assigns key in section, creating both as needed.
func (d *Document) Set(section, key, value string) {
	s := d.section(section, true)
	key = strings.ToLower(key)
	for i := range s.Entries {
		if s.Entries[i].isKey && s.Entries[i].Key == key {
			s.Entries[i].Value = value
			return
		}
	}
	s.Entries = append(s.Entries, Entry{Key: key, Value: value, isKey: true})
}

func (d *Document) each(fn func(section string, e Entry) bool) bool {
	for _, s := range d.Sections {
		for _, e := range s.Entries {
			if e.isKey && !fn(s.Name, e) {
				return false
			}
		}
	}
	return true
}

// Contains reports whether every key of patch is present in d with an equal value.
func (d *Document) Contains(patch *Document) bool {
	return patch.each(func(section string, e Entry) bool {
		v, ok := d.Get(section, e.Key)
		return ok && v == e.Value
	})
}

// Merge applies every key of patch onto d.
func (d *Document) Merge(patch *Document) {
	patch.each(func(section string, e Entry) bool {
		d.Set(section, e.Key, e.Value)
		return true
	})
}

// String renders the document. Multi-line values are written as indented
// continuation lines.
func (d *Document) String() string {
	var b strings.Builder
	for i, s := range d.Sections {
		if s.Name != "" {
			if i > 0 && b.Len() > 0 && !strings.HasSuffix(b.String(), "\n\n") {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "[%s]\n", s.Name)
		}
		for _, e := range s.Entries {
			if !e.isKey {
				b.WriteString(e.Comment)
				b.WriteString("\n")
				continue
			}
			lines := strings.Split(e.Value, "\n")
			fmt.Fprintf(&b, "%s = %s\n", e.Key, lines[0])
			for _, l := range lines[1:] {
				fmt.Fprintf(&b, "    %s\n", l)
			}
		}
	}
	return b.String()
}
