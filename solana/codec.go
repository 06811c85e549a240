package aireg_protocol

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// AccountDiscriminatorLen is the size of the account-type tag the programs
// write in front of every account. The client skips it when decoding.
const AccountDiscriminatorLen = 8

var (
	errTruncated     = errors.New("buffer truncated")
	errOptionFlag    = errors.New("option flag must be 0 or 1")
	errInvalidUTF8   = errors.New("string is not valid UTF-8")
	errStringTooLong = errors.New("string exceeds declared maximum")
	errTooManyItems  = errors.New("vector exceeds declared maximum")
	errUnknownStatus = errors.New("unknown status value")
	errTrailingBytes = errors.New("unexpected trailing bytes")
	errDiscriminant  = errors.New("unknown instruction discriminant")
)

// Encoding helpers. The wire format is Borsh: u32 LE length-prefixed strings,
// a one byte presence flag for options, raw 32 byte keys and LE integers.

func writeString(enc *bin.Encoder, s string) error {
	if err := enc.WriteUint32(uint32(len(s)), binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteBytes([]byte(s), false)
}

func writeOptionalString(enc *bin.Encoder, s *string) error {
	if s == nil {
		return enc.WriteUint8(0)
	}
	if err := enc.WriteUint8(1); err != nil {
		return err
	}
	return writeString(enc, *s)
}

func writeOptionalStatus(enc *bin.Encoder, s *Status) error {
	if s == nil {
		return enc.WriteUint8(0)
	}
	if err := enc.WriteUint8(1); err != nil {
		return err
	}
	return enc.WriteUint8(uint8(*s))
}

func writePublicKey(enc *bin.Encoder, key solana.PublicKey) error {
	return enc.WriteBytes(key[:], false)
}

// encodeWith runs marshal against a fresh Borsh encoder and returns the bytes.
func encodeWith(marshal func(*bin.Encoder) error) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := marshal(bin.NewBorshEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fieldReader decodes one layout strictly. Every failure is a *DecodeError
// naming the layout, the field and the byte offset where it happened.
type fieldReader struct {
	dec    *bin.Decoder
	layout string
	total  int
}

func newFieldReader(dec *bin.Decoder, layout string) *fieldReader {
	return &fieldReader{dec: dec, layout: layout, total: dec.Remaining()}
}

func (r *fieldReader) offset() int {
	return r.total - r.dec.Remaining()
}

func (r *fieldReader) fail(field string, err error) error {
	return &DecodeError{Layout: r.layout, Field: field, Offset: r.offset(), Err: err}
}

func (r *fieldReader) need(field string, n int) error {
	if r.dec.Remaining() < n {
		return r.fail(field, fmt.Errorf("%w: need %d bytes, have %d", errTruncated, n, r.dec.Remaining()))
	}
	return nil
}

func (r *fieldReader) skip(field string, n int) error {
	if err := r.need(field, n); err != nil {
		return err
	}
	if _, err := r.dec.ReadNBytes(n); err != nil {
		return r.fail(field, err)
	}
	return nil
}

func (r *fieldReader) u8(field string) (uint8, error) {
	if err := r.need(field, 1); err != nil {
		return 0, err
	}
	v, err := r.dec.ReadUint8()
	if err != nil {
		return 0, r.fail(field, err)
	}
	return v, nil
}

func (r *fieldReader) u32(field string) (uint32, error) {
	if err := r.need(field, 4); err != nil {
		return 0, err
	}
	v, err := r.dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return 0, r.fail(field, err)
	}
	return v, nil
}

func (r *fieldReader) u64(field string) (uint64, error) {
	if err := r.need(field, 8); err != nil {
		return 0, err
	}
	v, err := r.dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return 0, r.fail(field, err)
	}
	return v, nil
}

func (r *fieldReader) i64(field string) (int64, error) {
	if err := r.need(field, 8); err != nil {
		return 0, err
	}
	v, err := r.dec.ReadInt64(binary.LittleEndian)
	if err != nil {
		return 0, r.fail(field, err)
	}
	return v, nil
}

func (r *fieldReader) str(field string, max int) (string, error) {
	n, err := r.u32(field)
	if err != nil {
		return "", err
	}
	if int64(n) > int64(max) {
		return "", r.fail(field, fmt.Errorf("%w: %d > %d", errStringTooLong, n, max))
	}
	if err := r.need(field, int(n)); err != nil {
		return "", err
	}
	raw, err := r.dec.ReadNBytes(int(n))
	if err != nil {
		return "", r.fail(field, err)
	}
	if !utf8.Valid(raw) {
		return "", r.fail(field, errInvalidUTF8)
	}
	return string(raw), nil
}

func (r *fieldReader) present(field string) (bool, error) {
	flag, err := r.u8(field)
	if err != nil {
		return false, err
	}
	switch flag {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, r.fail(field, fmt.Errorf("%w: got %d", errOptionFlag, flag))
}

func (r *fieldReader) optionalStr(field string, max int) (*string, error) {
	ok, err := r.present(field)
	if err != nil || !ok {
		return nil, err
	}
	s, err := r.str(field, max)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *fieldReader) status(field string) (Status, error) {
	v, err := r.u8(field)
	if err != nil {
		return 0, err
	}
	s := Status(v)
	if !s.Valid() {
		return 0, r.fail(field, fmt.Errorf("%w: %d", errUnknownStatus, v))
	}
	return s, nil
}

func (r *fieldReader) optionalStatus(field string) (*Status, error) {
	ok, err := r.present(field)
	if err != nil || !ok {
		return nil, err
	}
	s, err := r.status(field)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *fieldReader) publicKey(field string) (solana.PublicKey, error) {
	if err := r.need(field, solana.PublicKeyLength); err != nil {
		return solana.PublicKey{}, err
	}
	raw, err := r.dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, r.fail(field, err)
	}
	return solana.PublicKeyFromBytes(raw), nil
}

// end rejects anything left in the buffer. Accounts are allocated with a
// fixed size larger than their content, so zero padding is accepted there.
func (r *fieldReader) end(allowZeroPadding bool) error {
	if r.dec.Remaining() == 0 {
		return nil
	}
	rest, err := r.dec.ReadNBytes(r.dec.Remaining())
	if err != nil {
		return r.fail("trailer", err)
	}
	if allowZeroPadding {
		for _, b := range rest {
			if b != 0 {
				return r.fail("trailer", errTrailingBytes)
			}
		}
		return nil
	}
	return r.fail("trailer", fmt.Errorf("%w: %d bytes", errTrailingBytes, len(rest)))
}

// AccountDiscriminator returns the account-type tag for an account struct name,
// the first 8 bytes of sha256("account:<Name>").
func AccountDiscriminator(name string) [AccountDiscriminatorLen]byte {
	var disc [AccountDiscriminatorLen]byte
	sum := sha256.Sum256([]byte("account:" + name))
	copy(disc[:], sum[:AccountDiscriminatorLen])
	return disc
}
