package format

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// WriteEDN writes v as EDN. Values go through their JSON encoding first so
// json tags decide field names; those names become kebab-case keywords
// (dueDate -> :due-date). Map keys that are not identifiers, such as AE names
// in a color map, stay strings.
func WriteEDN(w io.Writer, v any, pretty bool) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return err
	}

	p := ednPrinter{pretty: pretty}
	p.value(x, 0)
	p.buf.WriteByte('\n')
	_, err = w.Write(p.buf.Bytes())
	return err
}

type ednPrinter struct {
	buf    bytes.Buffer
	pretty bool
}

func (p *ednPrinter) value(v any, depth int) {
	switch t := v.(type) {
	case nil:
		p.buf.WriteString("nil")
	case bool:
		p.buf.WriteString(strconv.FormatBool(t))
	case json.Number:
		p.buf.WriteString(t.String())
	case string:
		p.buf.WriteString(strconv.Quote(t))
	case []any:
		p.seq('[', ']', len(t), depth, func(i int) { p.value(t[i], depth+1) })
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		p.seq('{', '}', len(keys), depth, func(i int) {
			p.key(keys[i])
			p.buf.WriteByte(' ')
			p.value(t[keys[i]], depth+1)
		})
	}
}

// seq writes n elements between open and close, one per line when pretty.
func (p *ednPrinter) seq(open, close byte, n, depth int, elem func(int)) {
	p.buf.WriteByte(open)
	for i := 0; i < n; i++ {
		switch {
		case p.pretty:
			p.buf.WriteByte('\n')
			p.buf.WriteString(strings.Repeat("  ", depth+1))
		case i > 0:
			p.buf.WriteByte(' ')
		}
		elem(i)
	}
	if p.pretty && n > 0 {
		p.buf.WriteByte('\n')
		p.buf.WriteString(strings.Repeat("  ", depth))
	}
	p.buf.WriteByte(close)
}

func (p *ednPrinter) key(k string) {
	if kw, ok := keyword(k); ok {
		p.buf.WriteByte(':')
		p.buf.WriteString(kw)
		return
	}
	p.buf.WriteString(strconv.Quote(k))
}

// keyword converts a camelCase or snake_case JSON name to a kebab-case EDN
// keyword. It fails for names that do not start with a lowercase letter or
// contain anything besides letters, digits, '_' and '-'.
func keyword(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case i == 0 && !unicode.IsLower(r):
			return "", false
		case r == '_' || r == '-':
			b.WriteByte('-')
		case unicode.IsUpper(r):
			b.WriteByte('-')
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)):
			b.WriteRune(r)
		default:
			return "", false
		}
	}
	return b.String(), true
}
