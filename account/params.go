package account

import (
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/accountsim/market"
)

// Params is a named-parameter bag holding a closed set of value types:
// bool, int, float64, string, time.Time, []time.Time and market.Security.
// Anything else is rejected with ErrUnsupportedParamType.
type Params struct {
	m map[string]any
}

func newParams() *Params {
	return &Params{m: make(map[string]any)}
}

func (p *Params) Set(name string, value any) error {
	switch v := value.(type) {
	case bool, int, float64, string, time.Time, market.Security:
		p.m[name] = v
	case []time.Time:
		p.m[name] = append([]time.Time(nil), v...)
	default:
		return fmt.Errorf("param %q (%T): %w", name, value, ErrUnsupportedParamType)
	}
	return nil
}

func (p *Params) Get(name string) (any, error) {
	v, ok := p.m[name]
	if !ok {
		return nil, fmt.Errorf("param %q: %w", name, ErrUnknownParam)
	}
	return v, nil
}

func (p *Params) Have(name string) bool {
	_, ok := p.m[name]
	return ok
}

// Names returns the parameter names in sorted order.
func (p *Params) Names() []string {
	names := make([]string, 0, len(p.m))
	for k := range p.m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (p *Params) Bool(name string) (bool, error) {
	v, err := p.Get(name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("param %q is %T, want bool: %w", name, v, ErrUnsupportedParamType)
	}
	return b, nil
}

func (p *Params) Int(name string) (int, error) {
	v, err := p.Get(name)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("param %q is %T, want int: %w", name, v, ErrUnsupportedParamType)
	}
	return n, nil
}

func (p *Params) Float(name string) (float64, error) {
	v, err := p.Get(name)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("param %q is %T, want float64: %w", name, v, ErrUnsupportedParamType)
	}
	return f, nil
}

func (p *Params) String(name string) (string, error) {
	v, err := p.Get(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("param %q is %T, want string: %w", name, v, ErrUnsupportedParamType)
	}
	return s, nil
}

// boolOr reads a bool param, falling back to def when unset.
func (p *Params) boolOr(name string, def bool) bool {
	b, err := p.Bool(name)
	if err != nil {
		return def
	}
	return b
}

func (p *Params) clone() *Params {
	cp := newParams()
	for k, v := range p.m {
		if ts, ok := v.([]time.Time); ok {
			cp.m[k] = append([]time.Time(nil), ts...)
			continue
		}
		cp.m[k] = v
	}
	return cp
}

// asMap returns a deep copy of the underlying map for state snapshots.
func (p *Params) asMap() map[string]any {
	return p.clone().m
}
