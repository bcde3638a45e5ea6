package object

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/gritvcs/grit/pkg/errs"
)

// DecodePack parses a complete pack stream. The trailer digest is
// verified before any entry is inspected, so a corrupted stream yields
// nothing rather than a prefix of itself.
func DecodePack(data []byte) ([]StoredObject, error) {
	if len(data) < 12+sha1.Size {
		return nil, errs.New(errs.KindCorrupt, "pack stream truncated (%d bytes)", len(data))
	}
	body, trailer := data[:len(data)-sha1.Size], data[len(data)-sha1.Size:]
	sum := sha1.Sum(body)
	if !bytes.Equal(sum[:], trailer) {
		return nil, errs.New(errs.KindCorrupt, "pack trailer digest mismatch")
	}
	if string(body[:4]) != packMagic {
		return nil, errs.New(errs.KindCorrupt, "pack magic %q", body[:4])
	}
	if v := binary.BigEndian.Uint32(body[4:8]); v != packVersion {
		return nil, errs.New(errs.KindUnsupported, "pack version %d", v)
	}
	count := binary.BigEndian.Uint32(body[8:12])

	r := bytes.NewReader(body[12:])
	objs := make([]StoredObject, 0, count)
	for i := uint32(0); i < count; i++ {
		code, size, err := readEntryHeader(r)
		if err != nil {
			return nil, err
		}
		t, err := typeOfPackCode(code)
		if err != nil {
			return nil, err
		}
		// bytes.Reader is an io.ByteReader, so the flate decoder
		// consumes exactly the compressed bytes of this entry.
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, errs.Wrap(errs.KindCorrupt, err, "pack entry %d payload", i)
		}
		payload, err := io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, errs.Wrap(errs.KindCorrupt, err, "pack entry %d payload", i)
		}
		if uint64(len(payload)) != size {
			return nil, errs.New(errs.KindCorrupt, "pack entry %d: header size %d, payload %d", i, size, len(payload))
		}
		objs = append(objs, StoredObject{Hash: ComputeHash(t, payload), Type: t, Data: payload})
	}
	if r.Len() != 0 {
		return nil, errs.New(errs.KindCorrupt, "pack stream has %d trailing bytes", r.Len())
	}
	return objs, nil
}

func readEntryHeader(r *bytes.Reader) (code byte, size uint64, err error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, 0, errs.New(errs.KindCorrupt, "pack entry header truncated")
	}
	code = (b >> 4) & 0x07
	size = uint64(b & 0x0f)
	shift := uint(4)
	for b&0x80 != 0 {
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, errs.New(errs.KindCorrupt, "pack entry header truncated")
		}
		if shift > 57 {
			return 0, 0, errs.New(errs.KindCorrupt, "pack entry size overflow")
		}
		size |= uint64(b&0x7f) << shift
		shift += 7
	}
	return code, size, nil
}

// UnpackInto decodes a pack stream and stores every object. Decoding
// completes before the first store write, so a bad stream leaves the
// store untouched.
func UnpackInto(s *Store, data []byte) ([]Hash, error) {
	objs, err := DecodePack(data)
	if err != nil {
		return nil, err
	}
	hashes := make([]Hash, 0, len(objs))
	for _, o := range objs {
		h, err := s.Write(o.Type, o.Data)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}
