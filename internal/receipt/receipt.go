// Package receipt seals a chain commitment so that a third party can check who
// produced it and under which rule set.
package receipt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/yourusername/headerproof/internal/consensus"
	"github.com/yourusername/headerproof/internal/crypto"
	"github.com/yourusername/headerproof/pkg/types"
)

const ruleSetName = "headerproof/v1"

var (
	ErrImageMismatch = errors.New("receipt produced under a different rule set")
	ErrBadSeal       = errors.New("receipt seal does not verify")
	ErrMalformed     = errors.New("malformed receipt")
	ErrWrongProver   = errors.New("receipt sealed by another prover")
)

// ImageID identifies the rule set a chain was validated under. Two validators
// with different baselines produce different image ids.
func ImageID(baselineTime uint32) chainhash.Hash {
	var buf bytes.Buffer

	buf.WriteString(ruleSetName)
	_ = binary.Write(&buf, binary.LittleEndian, consensus.SupportedVersion)
	buf.WriteByte(consensus.MedianTimeBlocks)
	buf.WriteByte(consensus.DriftMultiplier)
	_ = binary.Write(&buf, binary.LittleEndian, baselineTime)

	return crypto.DoubleHash(buf.Bytes())
}

// Receipt is the published result of a successful run
type Receipt struct {
	ImageID   chainhash.Hash
	Count     uint32
	Journal   types.Commitment
	ProverKey []byte
	Seal      []byte
}

// Seal builds a receipt for journal and signs it with key
func Seal(key *crypto.ProverKey, imageID chainhash.Hash, count uint32, journal types.Commitment) *Receipt {
	r := &Receipt{
		ImageID:   imageID,
		Count:     count,
		Journal:   journal,
		ProverKey: key.PublicKey(),
	}
	digest := r.Digest()
	r.Seal = key.Sign(digest[:])

	return r
}

// Digest is the message covered by the seal
func (r *Receipt) Digest() chainhash.Hash {
	buf := make([]byte, 0, chainhash.HashSize*2+4)
	buf = append(buf, r.ImageID[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, r.Count)
	buf = append(buf, r.Journal[:]...)

	return crypto.DoubleHash(buf)
}

// ProverAddress returns the address of the sealing key
func (r *Receipt) ProverAddress() string {
	return crypto.AddressFromPubKey(r.ProverKey)
}

// JournalString returns the commitment in block explorer order
func (r *Receipt) JournalString() string {
	return r.Journal.String()
}

// Verify checks that r was produced under imageID and that its seal is valid
func Verify(r *Receipt, imageID chainhash.Hash) error {
	if r.ImageID != imageID {
		return fmt.Errorf("%w: got %s, want %s", ErrImageMismatch, r.ImageID, imageID)
	}

	digest := r.Digest()
	if !crypto.VerifySignature(r.ProverKey, digest[:], r.Seal) {
		return ErrBadSeal
	}

	return nil
}

// VerifyFrom is Verify with the additional requirement that address sealed r
func VerifyFrom(r *Receipt, imageID chainhash.Hash, address string) error {
	if err := Verify(r, imageID); err != nil {
		return err
	}

	if !crypto.AddressMatchesPubKey(address, r.ProverKey) {
		return fmt.Errorf("%w: %s", ErrWrongProver, r.ProverAddress())
	}

	return nil
}

// MarshalBinary encodes the receipt as
// image id | count | journal | key length (1) | key | seal length (2) | seal
func (r *Receipt) MarshalBinary() ([]byte, error) {
	if len(r.ProverKey) > 0xff || len(r.Seal) > 0xffff {
		return nil, fmt.Errorf("%w: key or seal too long", ErrMalformed)
	}

	buf := make([]byte, 0, chainhash.HashSize*2+4+1+len(r.ProverKey)+2+len(r.Seal))
	buf = append(buf, r.ImageID[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, r.Count)
	buf = append(buf, r.Journal[:]...)
	buf = append(buf, byte(len(r.ProverKey)))
	buf = append(buf, r.ProverKey...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(r.Seal)))
	buf = append(buf, r.Seal...)

	return buf, nil
}

// UnmarshalBinary decodes a receipt written by MarshalBinary
func (r *Receipt) UnmarshalBinary(data []byte) error {
	rd := bytes.NewReader(data)

	if _, err := io.ReadFull(rd, r.ImageID[:]); err != nil {
		return fmt.Errorf("%w: truncated image id", ErrMalformed)
	}

	if err := binary.Read(rd, binary.LittleEndian, &r.Count); err != nil {
		return fmt.Errorf("%w: truncated count", ErrMalformed)
	}

	if _, err := io.ReadFull(rd, r.Journal[:]); err != nil {
		return fmt.Errorf("%w: truncated journal", ErrMalformed)
	}

	keyLen, err := rd.ReadByte()
	if err != nil {
		return fmt.Errorf("%w: truncated key", ErrMalformed)
	}

	r.ProverKey = make([]byte, keyLen)
	if _, err := io.ReadFull(rd, r.ProverKey); err != nil {
		return fmt.Errorf("%w: truncated key", ErrMalformed)
	}

	var sealLen uint16
	if err := binary.Read(rd, binary.LittleEndian, &sealLen); err != nil {
		return fmt.Errorf("%w: truncated seal length", ErrMalformed)
	}

	if rd.Len() != int(sealLen) {
		return fmt.Errorf("%w: seal is %d bytes, header says %d", ErrMalformed, rd.Len(), sealLen)
	}

	r.Seal = make([]byte, sealLen)
	_, _ = io.ReadFull(rd, r.Seal)

	return nil
}
