// Package frontmatter splits a markdown document into a typed header block
// and a body.
//
// Two header syntaxes are understood: YAML between "---" lines and TOML
// between "+++" lines. Headers that are not valid YAML (unquoted colons in
// titles are common in scraped data) are read line by line as "key: value"
// pairs.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrMalformed is returned when a document has no usable header block or a
// coerced field cannot be converted.
var ErrMalformed = errors.New("malformed front matter")

// Format identifies the header syntax a document was read from.
type Format int

const (
	YAML Format = iota
	TOML
	// Lines is the lenient "key: value" per line syntax. It is written back
	// as YAML.
	Lines
)

func (f Format) String() string {
	switch f {
	case YAML:
		return "yaml"
	case TOML:
		return "toml"
	case Lines:
		return "lines"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

const (
	yamlDelim = "---"
	tomlDelim = "+++"
)

// Document is a parsed front matter header plus the markdown body. Keys
// keeps header order so a rewrite does not shuffle fields.
type Document struct {
	Format Format
	Keys   []string
	Fields map[string]any
	Body   string
}

// New returns an empty YAML document.
func New() *Document {
	return &Document{Format: YAML, Fields: make(map[string]any)}
}

// Set assigns a field, appending the key when it is new.
func (d *Document) Set(key string, v any) {
	if _, ok := d.Fields[key]; !ok {
		d.Keys = append(d.Keys, key)
	}
	d.Fields[key] = v
}

// Parse splits doc into header and body. A document without an opening
// delimiter on its first line, or without a closing one, is ErrMalformed.
func Parse(doc []byte) (*Document, error) {
	text := strings.ReplaceAll(string(doc), "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")

	first, rest, _ := strings.Cut(text, "\n")
	delim := strings.TrimRight(first, " \t")
	if delim != yamlDelim && delim != tomlDelim {
		return nil, fmt.Errorf("%w: missing opening %q", ErrMalformed, yamlDelim)
	}

	header, body, ok := cutClosing(rest, delim)
	if !ok {
		return nil, fmt.Errorf("%w: missing closing %q", ErrMalformed, delim)
	}

	var (
		d   *Document
		err error
	)
	if delim == tomlDelim {
		d, err = parseTOML(header)
	} else {
		d, err = parseYAML(header)
		if err != nil {
			d, err = parseLines(header), nil
		}
	}
	if err != nil {
		return nil, err
	}
	d.Body = body

	if err := coerce(d); err != nil {
		return nil, err
	}
	return d, nil
}

// cutClosing finds the first line equal to delim.
func cutClosing(s, delim string) (header, body string, ok bool) {
	for i := 0; i < len(s); {
		j := strings.IndexByte(s[i:], '\n')
		var line string
		next := len(s)
		if j >= 0 {
			line = s[i : i+j]
			next = i + j + 1
		} else {
			line = s[i:]
		}
		if strings.TrimRight(line, " \t") == delim {
			return s[:i], s[next:], true
		}
		i = next
	}
	return "", "", false
}

func parseYAML(header string) (*Document, error) {
	d := New()
	if strings.TrimSpace(header) == "" {
		return d, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(header), &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return d, nil
	}
	m := root.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("front matter is a %v, not a mapping", m.Tag)
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		var v any
		if err := m.Content[i+1].Decode(&v); err != nil {
			return nil, err
		}
		d.Set(m.Content[i].Value, v)
	}
	return d, nil
}

func parseTOML(header string) (*Document, error) {
	fields := make(map[string]any)
	md, err := toml.Decode(header, &fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	d := &Document{Format: TOML, Fields: make(map[string]any)}
	for _, k := range md.Keys() {
		if len(k) != 1 {
			continue
		}
		d.Set(k[0], fields[k[0]])
	}
	return d, nil
}

var lineRe = regexp.MustCompile(`^\s*([A-Za-z_][\w-]*)\s*:\s*(.*)$`)

func parseLines(header string) *Document {
	d := New()
	d.Format = Lines
	for _, line := range strings.Split(header, "\n") {
		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		d.Set(m[1], unquote(strings.TrimSpace(m[2])))
	}
	return d
}

// unquote strips one layer of matching quotes.
func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// Marshal renders d with its own delimiter. Lines documents are written as
// YAML.
func Marshal(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	switch d.Format {
	case TOML:
		buf.WriteString(tomlDelim + "\n")
		if err := marshalTOML(&buf, d); err != nil {
			return nil, err
		}
		buf.WriteString(tomlDelim + "\n")
	default:
		buf.WriteString(yamlDelim + "\n")
		if err := marshalYAML(&buf, d); err != nil {
			return nil, err
		}
		buf.WriteString(yamlDelim + "\n")
	}
	buf.WriteString(d.Body)
	return buf.Bytes(), nil
}

func marshalYAML(buf *bytes.Buffer, d *Document) error {
	if len(d.Keys) == 0 {
		return nil
	}
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range d.Keys {
		var v yaml.Node
		if err := v.Encode(d.Fields[k]); err != nil {
			return fmt.Errorf("encoding %s: %w", k, err)
		}
		if k == "tags" {
			v.Style = yaml.FlowStyle
		}
		m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: k}, &v)
	}

	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encoding front matter: %w", err)
	}
	return enc.Close()
}

func marshalTOML(buf *bytes.Buffer, d *Document) error {
	// One key at a time keeps header order. Tables go last: any plain key
	// written after a [table] header would land inside it.
	var tables []string
	for _, k := range d.Keys {
		if _, ok := d.Fields[k].(map[string]any); ok {
			tables = append(tables, k)
			continue
		}
		if err := toml.NewEncoder(buf).Encode(map[string]any{k: d.Fields[k]}); err != nil {
			return fmt.Errorf("encoding %s: %w", k, err)
		}
	}
	for _, k := range tables {
		if err := toml.NewEncoder(buf).Encode(map[string]any{k: d.Fields[k]}); err != nil {
			return fmt.Errorf("encoding %s: %w", k, err)
		}
	}
	return nil
}
