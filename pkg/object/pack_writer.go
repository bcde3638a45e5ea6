package object

import (
	"crypto/sha1"
	"encoding/binary"
	"hash"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/gritvcs/grit/pkg/errs"
)

// PackWriter emits a pack stream. Usage is WriteHeader, one WriteEntry
// per object, then Finish to append the trailer digest.
type PackWriter struct {
	w      io.Writer
	digest hash.Hash
	// tee duplicates every written byte into the trailer digest.
	tee     io.Writer
	started bool
	done    bool
}

// NewPackWriter wraps w.
func NewPackWriter(w io.Writer) *PackWriter {
	d := sha1.New()
	return &PackWriter{w: w, digest: d, tee: io.MultiWriter(w, d)}
}

// WriteHeader starts the stream with the magic, version, and the exact
// entry count that will follow.
func (pw *PackWriter) WriteHeader(count uint32) error {
	if pw.started {
		return errs.New(errs.KindIntegrity, "pack header written twice")
	}
	pw.started = true
	var hdr [12]byte
	copy(hdr[:4], packMagic)
	binary.BigEndian.PutUint32(hdr[4:8], packVersion)
	binary.BigEndian.PutUint32(hdr[8:12], count)
	_, err := pw.tee.Write(hdr[:])
	return errs.Wrap(errs.KindNetwork, err, "writing pack header")
}

// WriteEntry emits one full (non-delta) object.
func (pw *PackWriter) WriteEntry(t Type, data []byte) error {
	if !pw.started || pw.done {
		return errs.New(errs.KindIntegrity, "pack entry outside header/trailer window")
	}
	code, err := packTypeOf(t)
	if err != nil {
		return err
	}
	if _, err := pw.tee.Write(encodeEntryHeader(code, uint64(len(data)))); err != nil {
		return errs.Wrap(errs.KindNetwork, err, "writing pack entry header")
	}
	zw := zlib.NewWriter(pw.tee)
	if _, err := zw.Write(data); err != nil {
		return errs.Wrap(errs.KindNetwork, err, "compressing pack entry")
	}
	if err := zw.Close(); err != nil {
		return errs.Wrap(errs.KindNetwork, err, "flushing pack entry")
	}
	return nil
}

// Finish appends the SHA-1 of everything written so far.
func (pw *PackWriter) Finish() error {
	if pw.done {
		return errs.New(errs.KindIntegrity, "pack finished twice")
	}
	pw.done = true
	_, err := pw.w.Write(pw.digest.Sum(nil))
	return errs.Wrap(errs.KindNetwork, err, "writing pack trailer")
}

// EncodePack renders a complete pack stream for the given objects.
func EncodePack(w io.Writer, objs []StoredObject) error {
	pw := NewPackWriter(w)
	if err := pw.WriteHeader(uint32(len(objs))); err != nil {
		return err
	}
	for _, o := range objs {
		if err := pw.WriteEntry(o.Type, o.Data); err != nil {
			return err
		}
	}
	return pw.Finish()
}
