package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"

	"github.com/retrosync/retrosync/internal/syncerr"
)

// ChunkSize bounds the memory used while hashing.
const ChunkSize = 4096

// Fingerprint identifies file contents. It is computed fresh from the file bytes every time.
type Fingerprint struct {
	Hash string
	Size int64
}

// Of streams the file at path through SHA-256 in ChunkSize reads.
func Of(path string) (Fingerprint, error) {
	file, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, syncerr.LocalIO("open", path, err)
	}
	defer file.Close()

	fp, err := Sum(file)
	if err != nil {
		return Fingerprint{}, syncerr.LocalIO("read", path, err)
	}
	return fp, nil
}

// Sum fingerprints everything r yields. Read errors are returned as-is.
func Sum(r io.Reader) (Fingerprint, error) {
	h := sha256.New()
	buf := make([]byte, ChunkSize)
	var size int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			size += int64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Fingerprint{}, err
		}
	}

	return Fingerprint{
		Hash: hex.EncodeToString(h.Sum(nil)),
		Size: size,
	}, nil
}

// OfBytes fingerprints an in-memory copy.
func OfBytes(data []byte) Fingerprint {
	fp, _ := Sum(bytes.NewReader(data))
	return fp
}

// Matches fingerprints path and compares it against hash. An empty hash never matches.
func Matches(path string, hash string) (bool, Fingerprint, error) {
	fp, err := Of(path)
	if err != nil {
		return false, Fingerprint{}, err
	}
	return hash != "" && fp.Hash == hash, fp, nil
}
