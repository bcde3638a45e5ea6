// Package object implements the content-addressable object model: blob,
// tree, commit, and tag objects, their canonical encodings, the loose
// object store, and the pack stream codec used on the wire.
package object

import (
	"regexp"
	"time"

	"github.com/gritvcs/grit/pkg/errs"
)

// Type names an object kind. The name participates in the hashed
// envelope, so the values are fixed.
type Type string

const (
	TypeBlob   Type = "blob"
	TypeTree   Type = "tree"
	TypeCommit Type = "commit"
	TypeTag    Type = "tag"
)

// ValidType reports whether t is one of the four storable kinds.
func ValidType(t Type) bool {
	switch t {
	case TypeBlob, TypeTree, TypeCommit, TypeTag:
		return true
	}
	return false
}

// Hash is a lowercase 40-hex SHA-1 digest identifying an object.
type Hash string

// ZeroHash is the all-zeros id used on the wire to mean "no object",
// for example as the old side of a ref creation.
const ZeroHash Hash = "0000000000000000000000000000000000000000"

var hashRe = regexp.MustCompile(`^[0-9a-f]{40}$`)

// ParseHash validates a 40-hex id.
func ParseHash(s string) (Hash, error) {
	if !hashRe.MatchString(s) {
		return "", errs.New(errs.KindProtocol, "malformed object id %q", s)
	}
	return Hash(s), nil
}

// IsZero reports whether h is the zero id.
func (h Hash) IsZero() bool { return h == ZeroHash }

// Short returns the conventional 7-character abbreviation.
func (h Hash) Short() string {
	if len(h) < 7 {
		return string(h)
	}
	return string(h[:7])
}

// TreeEntry is one row of a tree object. Entries are kept sorted by the
// canonical tree order (directories compare as name+"/").
type TreeEntry struct {
	Mode  uint32
	Name  string
	Hash  Hash
	IsDir bool
}

// File modes as stored in tree entries.
const (
	ModeFile       uint32 = 0o100644
	ModeExecutable uint32 = 0o100755
	ModeSymlink    uint32 = 0o120000
	ModeDir        uint32 = 0o040000
)

// Signature identifies an author or committer with a timestamp.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Commit is the decoded form of a commit object.
type Commit struct {
	Tree      Hash
	Parents   []Hash
	Author    Signature
	Committer Signature
	// GPGSig holds the detached signature carried in the gpgsig
	// header, empty for unsigned commits.
	GPGSig  string
	Message string
}

// Tag is an annotated tag. Its body is stored verbatim; only the target
// header is interpreted so reachability can follow it.
type Tag struct {
	Target Hash
	Data   []byte
}
