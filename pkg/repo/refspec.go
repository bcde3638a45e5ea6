package repo

import (
	"strings"

	"github.com/gritvcs/grit/pkg/errs"
)

// Refspec maps remote ref names to local ones, e.g.
// "+refs/heads/*:refs/remotes/origin/*". The leading + marks a forced
// mapping; tracking refs are always written forced, so the flag is
// carried but only push cares.
type Refspec struct {
	Force bool
	Src   string
	Dst   string
}

// ParseRefspec validates and splits a refspec. A * wildcard must
// appear on both sides or neither.
func ParseRefspec(s string) (Refspec, error) {
	spec := Refspec{}
	if strings.HasPrefix(s, "+") {
		spec.Force = true
		s = s[1:]
	}
	src, dst, ok := strings.Cut(s, ":")
	if !ok || src == "" || dst == "" {
		return Refspec{}, errs.New(errs.KindCorrupt, "refspec %q: expected src:dst", s)
	}
	if strings.Count(src, "*") > 1 || strings.Count(dst, "*") > 1 {
		return Refspec{}, errs.New(errs.KindCorrupt, "refspec %q: at most one wildcard per side", s)
	}
	if (strings.Contains(src, "*")) != (strings.Contains(dst, "*")) {
		return Refspec{}, errs.New(errs.KindCorrupt, "refspec %q: wildcard must appear on both sides", s)
	}
	spec.Src, spec.Dst = src, dst
	return spec, nil
}

// Map translates a source ref name through the refspec. The second result
// reports whether the name matched.
func (rs Refspec) Map(name string) (string, bool) {
	if !strings.Contains(rs.Src, "*") {
		if name == rs.Src {
			return rs.Dst, true
		}
		return "", false
	}
	prefix, suffix, _ := strings.Cut(rs.Src, "*")
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return "", false
	}
	middle := name[len(prefix) : len(name)-len(suffix)]
	return strings.Replace(rs.Dst, "*", middle, 1), true
}

// MapAll applies the first matching spec from the list.
func MapAll(specs []Refspec, name string) (string, bool) {
	for _, rs := range specs {
		if dst, ok := rs.Map(name); ok {
			return dst, true
		}
	}
	return "", false
}

// ParseRefspecs parses a remote's configured fetch lines.
func ParseRefspecs(lines []string) ([]Refspec, error) {
	specs := make([]Refspec, 0, len(lines))
	for _, line := range lines {
		rs, err := ParseRefspec(line)
		if err != nil {
			return nil, err
		}
		specs = append(specs, rs)
	}
	return specs, nil
}
