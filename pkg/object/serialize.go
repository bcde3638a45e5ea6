package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gritvcs/grit/pkg/errs"
)

// treeSortKey yields the canonical tree ordering: directory names sort
// as if suffixed with "/", so "foo" the directory lands after "foo.txt".
func treeSortKey(e TreeEntry) string {
	if e.IsDir {
		return e.Name + "/"
	}
	return e.Name
}

// EncodeTree serializes entries in canonical order. Rows are
// "<mode> <name>\x00" followed by the 20 raw digest bytes; mode is
// octal without leading zeros.
func EncodeTree(entries []TreeEntry) ([]byte, error) {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return treeSortKey(sorted[i]) < treeSortKey(sorted[j])
	})

	var buf bytes.Buffer
	for _, e := range sorted {
		if e.Name == "" || strings.ContainsAny(e.Name, "/\x00") {
			return nil, errs.New(errs.KindIntegrity, "invalid tree entry name %q", e.Name)
		}
		raw, err := rawDigest(e.Hash)
		if err != nil {
			return nil, errs.Wrap(errs.KindIntegrity, err, "tree entry %q", e.Name)
		}
		fmt.Fprintf(&buf, "%o %s\x00", e.Mode, e.Name)
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}

// DecodeTree parses a canonical tree encoding.
func DecodeTree(data []byte) ([]TreeEntry, error) {
	var entries []TreeEntry
	rest := data
	for len(rest) > 0 {
		sp := bytes.IndexByte(rest, ' ')
		if sp < 0 {
			return nil, errs.New(errs.KindCorrupt, "tree row missing mode separator")
		}
		mode, err := strconv.ParseUint(string(rest[:sp]), 8, 32)
		if err != nil {
			return nil, errs.Wrap(errs.KindCorrupt, err, "tree row mode")
		}
		rest = rest[sp+1:]
		nul := bytes.IndexByte(rest, 0)
		if nul < 0 {
			return nil, errs.New(errs.KindCorrupt, "tree row missing name terminator")
		}
		name := string(rest[:nul])
		rest = rest[nul+1:]
		if len(rest) < 20 {
			return nil, errs.New(errs.KindCorrupt, "tree row truncated digest")
		}
		entries = append(entries, TreeEntry{
			Mode:  uint32(mode),
			Name:  name,
			Hash:  hashFromRaw(rest[:20]),
			IsDir: uint32(mode) == ModeDir,
		})
		rest = rest[20:]
	}
	return entries, nil
}

// formatSignature renders "Name <email> <unix> <zone>".
func formatSignature(s Signature) string {
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.When.Unix(), s.When.Format("-0700"))
}

func parseSignature(line string) (Signature, error) {
	lt := strings.IndexByte(line, '<')
	gt := strings.IndexByte(line, '>')
	if lt < 0 || gt < lt {
		return Signature{}, errs.New(errs.KindCorrupt, "malformed signature %q", line)
	}
	name := strings.TrimSpace(line[:lt])
	email := line[lt+1 : gt]
	fields := strings.Fields(line[gt+1:])
	if len(fields) != 2 {
		return Signature{}, errs.New(errs.KindCorrupt, "malformed signature timestamp in %q", line)
	}
	unix, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Signature{}, errs.Wrap(errs.KindCorrupt, err, "signature timestamp")
	}
	zone, err := time.Parse("-0700", fields[1])
	if err != nil {
		return Signature{}, errs.Wrap(errs.KindCorrupt, err, "signature zone")
	}
	return Signature{
		Name:  name,
		Email: email,
		When:  time.Unix(unix, 0).In(zone.Location()),
	}, nil
}

// EncodeCommit serializes a commit. Header order is tree, parents,
// author, committer, then gpgsig; continuation lines of a multiline
// signature are indented with a single space.
func EncodeCommit(c *Commit) ([]byte, error) {
	if c.Tree == "" {
		return nil, errs.New(errs.KindIntegrity, "commit without tree")
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.Tree)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s\n", formatSignature(c.Author))
	fmt.Fprintf(&buf, "committer %s\n", formatSignature(c.Committer))
	if c.GPGSig != "" {
		lines := strings.Split(strings.TrimRight(c.GPGSig, "\n"), "\n")
		fmt.Fprintf(&buf, "gpgsig %s\n", lines[0])
		for _, l := range lines[1:] {
			fmt.Fprintf(&buf, " %s\n", l)
		}
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes(), nil
}

// DecodeCommit parses a commit object. Unknown headers are preserved
// only insofar as decode-encode is not required to round-trip them;
// readers here only need tree, parents, identities, and the signature.
func DecodeCommit(data []byte) (*Commit, error) {
	head, msg, found := strings.Cut(string(data), "\n\n")
	if !found {
		return nil, errs.New(errs.KindCorrupt, "commit missing header terminator")
	}
	c := &Commit{Message: msg}
	lines := strings.Split(head, "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		key, val, _ := strings.Cut(line, " ")
		switch key {
		case "tree":
			h, err := ParseHash(val)
			if err != nil {
				return nil, errs.Wrap(errs.KindCorrupt, err, "commit tree header")
			}
			c.Tree = h
		case "parent":
			h, err := ParseHash(val)
			if err != nil {
				return nil, errs.Wrap(errs.KindCorrupt, err, "commit parent header")
			}
			c.Parents = append(c.Parents, h)
		case "author":
			sig, err := parseSignature(val)
			if err != nil {
				return nil, err
			}
			c.Author = sig
		case "committer":
			sig, err := parseSignature(val)
			if err != nil {
				return nil, err
			}
			c.Committer = sig
		case "gpgsig":
			sig := []string{val}
			for i+1 < len(lines) && strings.HasPrefix(lines[i+1], " ") {
				i++
				sig = append(sig, lines[i][1:])
			}
			c.GPGSig = strings.Join(sig, "\n")
		}
	}
	if c.Tree == "" {
		return nil, errs.New(errs.KindCorrupt, "commit missing tree header")
	}
	return c, nil
}

// DecodeTag extracts the target from a tag body. The body itself is
// carried verbatim; only the leading object header is interpreted.
func DecodeTag(data []byte) (*Tag, error) {
	first, _, _ := strings.Cut(string(data), "\n")
	val, ok := strings.CutPrefix(first, "object ")
	if !ok {
		return nil, errs.New(errs.KindCorrupt, "tag missing object header")
	}
	h, err := ParseHash(val)
	if err != nil {
		return nil, errs.Wrap(errs.KindCorrupt, err, "tag object header")
	}
	return &Tag{Target: h, Data: data}, nil
}
