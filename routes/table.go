package routes

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Route is one declared page.
type Route struct {
	Name     string
	Path     string // pattern: "/announcement/:id", "/profile/:id?"
	Requires Requirement
}

// Match is the result of resolving a concrete path.
type Match struct {
	Route  Route
	Path   string
	Params map[string]string
}

type segmentKind uint8

// Ordered by matching priority: a literal beats a parameter, which beats
// an optional parameter.
const (
	segOptional segmentKind = iota + 1
	segParam
	segLiteral
)

type segment struct {
	kind  segmentKind
	value string // literal text or parameter name
}

type compiled struct {
	route    Route
	segments []segment
}

// Table is an immutable set of routes with a designated landing route.
type Table struct {
	routes  []compiled
	byName  map[string]int
	landing string
}

// NewTable validates and compiles routes. landing must name one of them;
// denied navigations redirect there.
func NewTable(landing string, routes ...Route) (*Table, error) {
	t := &Table{
		routes:  make([]compiled, 0, len(routes)),
		byName:  make(map[string]int, len(routes)),
		landing: landing,
	}
	patterns := make(map[string]string, len(routes))

	for _, r := range routes {
		if strings.TrimSpace(r.Name) == "" {
			return nil, errors.New("route name cannot be empty")
		}
		if _, exists := t.byName[r.Name]; exists {
			return nil, fmt.Errorf("route %q declared twice", r.Name)
		}
		if r.Requires&^requirementMask != 0 {
			return nil, fmt.Errorf("route %q has unknown requirement bits", r.Name)
		}
		segs, err := compile(r.Path)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", r.Name, err)
		}
		key := shape(segs)
		if other, exists := patterns[key]; exists {
			return nil, fmt.Errorf("route %q shadows %q", r.Name, other)
		}
		patterns[key] = r.Name

		t.byName[r.Name] = len(t.routes)
		t.routes = append(t.routes, compiled{route: r, segments: segs})
	}

	if _, ok := t.byName[landing]; !ok {
		return nil, fmt.Errorf("landing route %q is not declared", landing)
	}
	if t.routes[t.byName[landing]].route.Requires != 0 {
		return nil, fmt.Errorf("landing route %q must be open", landing)
	}

	return t, nil
}

// MustNewTable is like [NewTable] but panics on error. Intended for
// package-level declarations.
func MustNewTable(landing string, routes ...Route) *Table {
	t, err := NewTable(landing, routes...)
	if err != nil {
		panic(err)
	}
	return t
}

func compile(pattern string) ([]segment, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("path %q must start with /", pattern)
	}
	parts := splitPath(pattern)
	segs := make([]segment, 0, len(parts))
	for i, p := range parts {
		switch {
		case strings.HasPrefix(p, ":") && strings.HasSuffix(p, "?"):
			name := p[1 : len(p)-1]
			if name == "" {
				return nil, fmt.Errorf("path %q has an unnamed parameter", pattern)
			}
			if i != len(parts)-1 {
				return nil, fmt.Errorf("path %q: optional parameter must be last", pattern)
			}
			segs = append(segs, segment{kind: segOptional, value: name})
		case strings.HasPrefix(p, ":"):
			if len(p) == 1 {
				return nil, fmt.Errorf("path %q has an unnamed parameter", pattern)
			}
			segs = append(segs, segment{kind: segParam, value: p[1:]})
		default:
			segs = append(segs, segment{kind: segLiteral, value: p})
		}
	}
	return segs, nil
}

// shape identifies patterns that would match exactly the same paths.
func shape(segs []segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteByte('/')
		switch s.kind {
		case segLiteral:
			b.WriteString(s.value)
		case segParam:
			b.WriteString(":")
		case segOptional:
			b.WriteString(":?")
		}
	}
	return b.String()
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Lookup returns the route declared under name.
func (t *Table) Lookup(name string) (Route, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Route{}, false
	}
	return t.routes[i].route, true
}

// Landing returns the landing route.
func (t *Table) Landing() Route {
	return t.routes[t.byName[t.landing]].route
}

// Routes returns the routes in declaration order.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	for i, c := range t.routes {
		out[i] = c.route
	}
	return out
}

// Match resolves a concrete path such as "/announcement/42?tab=map". Query
// and fragment are ignored. When several patterns match, the most specific
// one wins segment by segment, so "/announcement/create" resolves to the
// literal route rather than "/announcement/:id".
func (t *Table) Match(path string) (Match, bool) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		path = "/"
	}
	parts := splitPath(path)

	best := -1
	var bestParams map[string]string
	for i := range t.routes {
		params, ok := t.routes[i].match(parts)
		if !ok {
			continue
		}
		if best < 0 || moreSpecific(t.routes[i].segments, t.routes[best].segments) {
			best, bestParams = i, params
		}
	}
	if best < 0 {
		return Match{}, false
	}
	return Match{Route: t.routes[best].route, Path: path, Params: bestParams}, true
}

func (c *compiled) match(parts []string) (map[string]string, bool) {
	n := len(c.segments)
	switch {
	case len(parts) == n:
	case len(parts) == n-1 && n > 0 && c.segments[n-1].kind == segOptional:
	default:
		return nil, false
	}

	var params map[string]string
	for i, s := range c.segments {
		if i >= len(parts) {
			break
		}
		switch s.kind {
		case segLiteral:
			if parts[i] != s.value {
				return nil, false
			}
		default:
			v, err := url.PathUnescape(parts[i])
			if err != nil || v == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string, 1)
			}
			params[s.value] = v
		}
	}
	return params, true
}

// moreSpecific compares two matching patterns segment by segment.
func moreSpecific(a, b []segment) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i].kind != b[i].kind {
			return a[i].kind > b[i].kind
		}
	}
	return len(a) < len(b)
}

// Path builds the concrete path of the named route from params. Optional
// parameters may be omitted.
func (t *Table) Path(name string, params map[string]string) (string, error) {
	r, ok := t.Lookup(name)
	if !ok {
		return "", fmt.Errorf("route %q is not declared", name)
	}
	c := t.routes[t.byName[name]]

	var b strings.Builder
	for _, s := range c.segments {
		switch s.kind {
		case segLiteral:
			b.WriteByte('/')
			b.WriteString(s.value)
		case segParam, segOptional:
			v := params[s.value]
			if v == "" {
				if s.kind == segOptional {
					continue
				}
				return "", fmt.Errorf("route %q (%s) needs parameter %q", name, r.Path, s.value)
			}
			b.WriteByte('/')
			b.WriteString(url.PathEscape(v))
		}
	}
	if b.Len() == 0 {
		return "/", nil
	}
	return b.String(), nil
}
