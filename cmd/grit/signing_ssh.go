package main

import (
	"bytes"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"

	"github.com/gritvcs/grit/pkg/errs"
)

// sshSigner signs commit payloads with an OpenSSH private key,
// producing the SSHSIG detached format that lands in the gpgsig
// header.
type sshSigner struct {
	signer ssh.Signer
}

func newSSHSigner(keyPath string) (*sshSigner, error) {
	if keyPath == "" {
		return nil, errs.New(errs.KindIntegrity, "no signing key configured; set signing_key in the settings file")
	}
	pem, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, errs.Wrap(errs.KindNotFound, err, "reading signing key %s", keyPath)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, errs.Wrap(errs.KindCorrupt, err, "parsing signing key %s", keyPath)
	}
	return &sshSigner{signer: signer}, nil
}

const sshsigNamespace = "git"

// SignCommit implements the SSHSIG signing scheme: the signature covers
// a wrapper around the SHA-512 of the payload, namespaced so a commit
// signature cannot be replayed as anything else.
func (s *sshSigner) SignCommit(payload []byte) (string, error) {
	digest := sha512.Sum512(payload)

	var signed bytes.Buffer
	signed.WriteString("SSHSIG")
	writeSSHString(&signed, []byte(sshsigNamespace))
	writeSSHString(&signed, nil) // reserved
	writeSSHString(&signed, []byte("sha512"))
	writeSSHString(&signed, digest[:])

	sig, err := s.signer.Sign(rand.Reader, signed.Bytes())
	if err != nil {
		return "", err
	}

	var blob bytes.Buffer
	blob.WriteString("SSHSIG")
	binary := s.signer.PublicKey().Marshal()
	writeUint32(&blob, 1) // version
	writeSSHString(&blob, binary)
	writeSSHString(&blob, []byte(sshsigNamespace))
	writeSSHString(&blob, nil)
	writeSSHString(&blob, []byte("sha512"))
	writeSSHString(&blob, ssh.Marshal(sig))

	return armorSSHSig(blob.Bytes()), nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	buf.Write([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

func writeSSHString(buf *bytes.Buffer, data []byte) {
	writeUint32(buf, uint32(len(data)))
	buf.Write(data)
}

// armorSSHSig wraps the binary blob in the PEM-like armor OpenSSH
// emits, 76 columns per line.
func armorSSHSig(blob []byte) string {
	enc := base64.StdEncoding.EncodeToString(blob)
	var out bytes.Buffer
	out.WriteString("-----BEGIN SSH SIGNATURE-----\n")
	for len(enc) > 0 {
		n := len(enc)
		if n > 76 {
			n = 76
		}
		fmt.Fprintf(&out, "%s\n", enc[:n])
		enc = enc[n:]
	}
	out.WriteString("-----END SSH SIGNATURE-----")
	return out.String()
}
