package crypto

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/jaskrrish/Go-BB84/internal/qkd/quantum"
	"golang.org/x/crypto/sha3"
)

// Fingerprint identifies a key without revealing it: the SHA3-256 digest of
// the bit length followed by the packed bits, hex encoded. Including the
// length keeps keys that differ only in trailing zero bits apart.
func Fingerprint(bits []quantum.Bit) string {
	h := sha3.New256()
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(bits)))
	h.Write(n[:])
	h.Write(quantum.BitsToBytes(bits))
	return hex.EncodeToString(h.Sum(nil))
}
