package object

import (
	"github.com/gritvcs/grit/pkg/errs"
)

// Pack stream constants. The stream is "PACK", a big-endian version and
// entry count, the entries, and a SHA-1 trailer over everything before
// it.
const (
	packMagic   = "PACK"
	packVersion = 2
)

// On-wire entry type codes.
const (
	packTypeCommit   = 1
	packTypeTree     = 2
	packTypeBlob     = 3
	packTypeTag      = 4
	packTypeOfsDelta = 6
	packTypeRefDelta = 7
)

func packTypeOf(t Type) (byte, error) {
	switch t {
	case TypeCommit:
		return packTypeCommit, nil
	case TypeTree:
		return packTypeTree, nil
	case TypeBlob:
		return packTypeBlob, nil
	case TypeTag:
		return packTypeTag, nil
	}
	return 0, errs.New(errs.KindUnsupported, "cannot pack object type %q", t)
}

func typeOfPackCode(code byte) (Type, error) {
	switch code {
	case packTypeCommit:
		return TypeCommit, nil
	case packTypeTree:
		return TypeTree, nil
	case packTypeBlob:
		return TypeBlob, nil
	case packTypeTag:
		return TypeTag, nil
	case packTypeOfsDelta, packTypeRefDelta:
		return "", errs.New(errs.KindUnsupported, "delta-encoded pack entry (type %d)", code)
	}
	return "", errs.New(errs.KindProtocol, "unknown pack entry type %d", code)
}

// encodeEntryHeader emits the variable-length type+size header. The
// first byte carries the type in bits 6-4 and the low 4 size bits; each
// continuation byte carries 7 more size bits, low bits first.
func encodeEntryHeader(code byte, size uint64) []byte {
	b := byte(code<<4) | byte(size&0x0f)
	size >>= 4
	out := []byte{}
	for size > 0 {
		out = append(out, b|0x80)
		b = byte(size & 0x7f)
		size >>= 7
	}
	return append(out, b)
}
