package dom

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// ErrInvalidSelector is wrapped by every selector parse failure.
var ErrInvalidSelector = errors.New("dom: invalid selector")

// QuerySelectorAll returns the descendants of e matching a CSS selector, in
// document order.
//
// Supported syntax: type and universal selectors, #id, .class, attribute
// selectors ([a], [a=v], [a~=v], [a^=v], [a$=v], [a*=v], [a|=v]), descendant
// and child combinators, selector lists, and backslash escapes in names
// (so [\(role\)] matches an attribute literally named "(role)").
func (e *Element) QuerySelectorAll(selector string) ([]*Element, error) {
	expr, err := ToXPath(selector)
	if err != nil {
		return nil, err
	}

	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	nodes, err := htmlquery.QueryAll(e.node, expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSelector, selector, err)
	}

	out := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		if n == e.node || n.Type != html.ElementNode {
			continue
		}
		out = append(out, e.doc.wrap(n))
	}
	return out, nil
}

// QuerySelector returns the first match of selector below e, or nil.
func (e *Element) QuerySelector(selector string) (*Element, error) {
	matches, err := e.QuerySelectorAll(selector)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return matches[0], nil
}

// ToXPath translates a CSS selector into an XPath expression evaluated
// relative to the context node.
func ToXPath(selector string) (string, error) {
	groups, err := splitGroups(selector)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(groups))
	for _, group := range groups {
		p := &selectorParser{src: group, full: selector}
		xp, err := p.parseComplex()
		if err != nil {
			return "", err
		}
		parts = append(parts, xp)
	}
	return strings.Join(parts, " | "), nil
}

func splitGroups(selector string) ([]string, error) {
	var groups []string
	var quote rune
	depth := 0
	start := 0

	for i := 0; i < len(selector); i++ {
		ch := rune(selector[i])
		switch {
		case ch == '\\':
			i++
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '[':
			depth++
		case ch == ']':
			depth--
		case ch == ',' && depth == 0:
			groups = append(groups, selector[start:i])
			start = i + 1
		}
	}
	groups = append(groups, selector[start:])

	for i, g := range groups {
		groups[i] = strings.TrimSpace(g)
		if groups[i] == "" {
			return nil, fmt.Errorf("%w: %q: empty selector", ErrInvalidSelector, selector)
		}
	}
	return groups, nil
}

type selectorParser struct {
	src  string
	full string
	pos  int
}

func (p *selectorParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %q: %s", ErrInvalidSelector, p.full, fmt.Sprintf(format, args...))
}

func (p *selectorParser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *selectorParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *selectorParser) skipSpace() bool {
	skipped := false
	for !p.eof() && isSpace(p.peek()) {
		p.pos++
		skipped = true
	}
	return skipped
}

// parseComplex parses compound selectors joined by combinators.
func (p *selectorParser) parseComplex() (string, error) {
	var sb strings.Builder
	axis := ".//"

	p.skipSpace()
	if p.peek() == '>' {
		p.pos++
		p.skipSpace()
		axis = "./"
	}

	for {
		step, err := p.parseCompound()
		if err != nil {
			return "", err
		}
		sb.WriteString(axis)
		sb.WriteString(step)

		spaced := p.skipSpace()
		if p.eof() {
			return sb.String(), nil
		}
		switch p.peek() {
		case '>':
			p.pos++
			p.skipSpace()
			axis = "/"
		case '+', '~':
			return "", p.errorf("sibling combinators are not supported")
		default:
			if !spaced {
				return "", p.errorf("unexpected %q", p.peek())
			}
			axis = "//"
		}
	}
}

func (p *selectorParser) parseCompound() (string, error) {
	tag := "*"
	matched := false
	switch {
	case p.peek() == '*':
		p.pos++
		matched = true
	case isNameStart(p.peek()):
		name, err := p.parseName()
		if err != nil {
			return "", err
		}
		tag = strings.ToLower(name)
		matched = true
	}

	var preds []string
	for !p.eof() {
		var pred string
		var err error
		switch p.peek() {
		case '#':
			p.pos++
			var id string
			id, err = p.parseName()
			pred = "@id=" + xpathLiteral(id)
		case '.':
			p.pos++
			var class string
			class, err = p.parseName()
			pred = "contains(concat(' ', normalize-space(@class), ' '), " + xpathLiteral(" "+class+" ") + ")"
		case '[':
			p.pos++
			pred, err = p.parseAttribute()
		case ':':
			return "", p.errorf("pseudo-classes are not supported")
		default:
			if !matched {
				return "", p.errorf("unexpected %q", p.peek())
			}
			return compound(tag, preds), nil
		}
		if err != nil {
			return "", err
		}
		preds = append(preds, pred)
		matched = true
	}
	if !matched {
		return "", p.errorf("expected a selector")
	}
	return compound(tag, preds), nil
}

func compound(tag string, preds []string) string {
	if len(preds) == 0 {
		return tag
	}
	return tag + "[" + strings.Join(preds, " and ") + "]"
}

func (p *selectorParser) parseAttribute() (string, error) {
	p.skipSpace()
	name, err := p.parseName()
	if err != nil {
		return "", err
	}
	name = strings.ToLower(name)
	p.skipSpace()

	match := "@*[name()=" + xpathLiteral(name)
	if p.peek() == ']' {
		p.pos++
		return match + "]", nil
	}

	op := ""
	switch p.peek() {
	case '=':
		op = "="
		p.pos++
	case '~', '^', '$', '*', '|':
		if p.pos+1 < len(p.src) && p.src[p.pos+1] == '=' {
			op = p.src[p.pos : p.pos+2]
			p.pos += 2
		}
	}
	if op == "" {
		return "", p.errorf("bad attribute operator")
	}

	p.skipSpace()
	value, err := p.parseValue()
	if err != nil {
		return "", err
	}
	p.skipSpace()
	if p.peek() != ']' {
		return "", p.errorf("unterminated attribute selector")
	}
	p.pos++

	lit := xpathLiteral(value)
	var cond string
	switch op {
	case "=":
		cond = ".=" + lit
	case "~=":
		cond = "contains(concat(' ', normalize-space(.), ' '), " + xpathLiteral(" "+value+" ") + ")"
	case "^=":
		cond = "starts-with(., " + lit + ")"
	case "*=":
		cond = "contains(., " + lit + ")"
	case "$=":
		cond = "substring(., string-length(.) - string-length(" + lit + ") + 1)=" + lit
	case "|=":
		cond = "(.=" + lit + " or starts-with(., " + xpathLiteral(value+"-") + "))"
	}
	return match + " and " + cond + "]", nil
}

func (p *selectorParser) parseValue() (string, error) {
	q := p.peek()
	if q != '"' && q != '\'' {
		return p.parseName()
	}
	p.pos++

	var sb strings.Builder
	for !p.eof() {
		ch := p.src[p.pos]
		switch {
		case ch == '\\' && p.pos+1 < len(p.src):
			r, size := utf8.DecodeRuneInString(p.src[p.pos+1:])
			sb.WriteRune(r)
			p.pos += 1 + size
		case ch == q:
			p.pos++
			return sb.String(), nil
		default:
			sb.WriteByte(ch)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *selectorParser) parseName() (string, error) {
	var sb strings.Builder
	for !p.eof() {
		ch := p.src[p.pos]
		switch {
		case ch == '\\' && p.pos+1 < len(p.src):
			r, size := utf8.DecodeRuneInString(p.src[p.pos+1:])
			sb.WriteRune(r)
			p.pos += 1 + size
		case isNameChar(ch):
			sb.WriteByte(ch)
			p.pos++
		default:
			if sb.Len() == 0 {
				return "", p.errorf("expected a name at offset %d", p.pos)
			}
			return sb.String(), nil
		}
	}
	if sb.Len() == 0 {
		return "", p.errorf("expected a name")
	}
	return sb.String(), nil
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if part != "" {
			quoted = append(quoted, "'"+part+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}

func isNameStart(ch byte) bool {
	return ch == '\\' || ch == '_' || ch == '-' || ch >= 0x80 ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isNameChar(ch byte) bool {
	return isNameStart(ch) || (ch >= '0' && ch <= '9')
}
