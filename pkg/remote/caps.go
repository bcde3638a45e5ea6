// Package remote implements the smart HTTP transfer protocol: ref
// discovery, the upload-pack fetch exchange, and the receive-pack push
// exchange, all framed with pkt-lines.
package remote

import (
	"sort"
	"strings"
)

// Service names as they appear in the discovery query and the
// announcement frame.
const (
	ServiceUploadPack  = "git-upload-pack"
	ServiceReceivePack = "git-receive-pack"
)

// Capability names this client understands.
const (
	CapReportStatus = "report-status"
	CapSideBand64k  = "side-band-64k"
	CapSymref       = "symref"
	CapAgent        = "agent"
)

// agentString identifies this client in capability lists.
const agentString = "agent=grit/1"

// CapList is a parsed capability set. Values hold the parts after
// "=", in advertised order; a bare capability carries one empty
// value. A capability may legally repeat, symref in particular.
type CapList map[string][]string

// ParseCaps splits a space-separated capability string.
func ParseCaps(s string) CapList {
	caps := CapList{}
	for _, tok := range strings.Fields(s) {
		name, val, _ := strings.Cut(tok, "=")
		caps[name] = append(caps[name], val)
	}
	return caps
}

// Has reports whether name was advertised.
func (c CapList) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// SymrefTarget returns the target of the symref capability for the
// given ref, typically HEAD. Servers may advertise several.
func (c CapList) SymrefTarget(ref string) string {
	for _, v := range c[CapSymref] {
		from, to, found := strings.Cut(v, ":")
		if found && from == ref {
			return to
		}
	}
	return ""
}

func (c CapList) String() string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	var parts []string
	for _, name := range names {
		for _, v := range c[name] {
			if v != "" {
				parts = append(parts, name+"="+v)
			} else {
				parts = append(parts, name)
			}
		}
	}
	return strings.Join(parts, " ")
}
