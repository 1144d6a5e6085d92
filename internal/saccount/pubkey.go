package saccount

import (
	"crypto/elliptic"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// PublicKeyFormat tags the external encoding a credential public key arrives
// in. Keys are decoded once at the boundary; everything past ParsePublicKey
// operates on the canonical form only.
type PublicKeyFormat uint8

const (
	// FormatRaw is an uncompressed P-256 point: X||Y (64 bytes), optionally
	// with a leading 0x04 marker byte.
	FormatRaw PublicKeyFormat = iota
	// FormatCose is a CBOR-encoded COSE_Key (EC2); only the -2/-3 coordinate
	// entries are consumed.
	FormatCose
	// FormatLegacyBase64 is base64 JSON {"x": hex, "y": hex}, produced by
	// older credential exports.
	FormatLegacyBase64
)

var ErrInvalidPublicKey = errors.New("invalid public key")

// PublicKey is the canonical in-process representation of a credential
// public key: an affine P-256 point.
type PublicKey struct {
	X *big.Int
	Y *big.Int
}

func ParsePublicKey(format PublicKeyFormat, data []byte) (*PublicKey, error) {
	var pk *PublicKey
	var err error
	switch format {
	case FormatRaw:
		pk, err = parseRawKey(data)
	case FormatCose:
		pk, err = parseCoseKey(data)
	case FormatLegacyBase64:
		pk, err = parseLegacyBase64Key(data)
	default:
		return nil, errors.Wrapf(ErrInvalidPublicKey, "unknown format %d", format)
	}
	if err != nil {
		return nil, err
	}
	if !elliptic.P256().IsOnCurve(pk.X, pk.Y) {
		return nil, errors.Wrap(ErrInvalidPublicKey, "point not on P-256")
	}
	return pk, nil
}

// Bytes returns the 64-byte X||Y encoding used for salt derivation and
// factory calldata. Stable across processes.
func (pk *PublicKey) Bytes() []byte {
	out := make([]byte, 64)
	pk.X.FillBytes(out[:32])
	pk.Y.FillBytes(out[32:])
	return out
}

// Owner maps the key to the 20-byte owner address the factory contract binds
// the account to.
func (pk *PublicKey) Owner() ethcommon.Address {
	return ethcommon.BytesToAddress(crypto.Keccak256(pk.Bytes())[12:])
}

func parseRawKey(data []byte) (*PublicKey, error) {
	if len(data) == 65 && data[0] == 0x04 {
		data = data[1:]
	}
	if len(data) != 64 {
		return nil, errors.Wrapf(ErrInvalidPublicKey, "raw key must be 64 or 65 bytes, got %d", len(data))
	}
	return &PublicKey{
		X: new(big.Int).SetBytes(data[:32]),
		Y: new(big.Int).SetBytes(data[32:]),
	}, nil
}

func parseLegacyBase64Key(data []byte) (*PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		if raw, err = base64.RawURLEncoding.DecodeString(string(data)); err != nil {
			return nil, errors.Wrap(ErrInvalidPublicKey, "legacy key is not base64")
		}
	}
	var point struct {
		X string `json:"x"`
		Y string `json:"y"`
	}
	if err := json.Unmarshal(raw, &point); err != nil {
		return nil, errors.Wrap(ErrInvalidPublicKey, "legacy key payload is not JSON")
	}
	x, err := hexutil.DecodeBig(point.X)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidPublicKey, "legacy key x: %s", err)
	}
	y, err := hexutil.DecodeBig(point.Y)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidPublicKey, "legacy key y: %s", err)
	}
	return &PublicKey{X: x, Y: y}, nil
}

// parseCoseKey walks a CBOR COSE_Key map and extracts the -2 (x) and -3 (y)
// byte strings. Signature verification against the key stays delegated to the
// signer capability; only the coordinates are needed here.
func parseCoseKey(data []byte) (*PublicKey, error) {
	d := &cborReader{buf: data}
	n, err := d.readMapHeader()
	if err != nil {
		return nil, errors.Wrap(ErrInvalidPublicKey, "cose key is not a CBOR map")
	}
	var x, y []byte
	for i := 0; i < n; i++ {
		label, err := d.readInt()
		if err != nil {
			return nil, errors.Wrap(ErrInvalidPublicKey, "cose key label")
		}
		switch label {
		case -2:
			if x, err = d.readBytes(); err != nil {
				return nil, errors.Wrap(ErrInvalidPublicKey, "cose key x coordinate")
			}
		case -3:
			if y, err = d.readBytes(); err != nil {
				return nil, errors.Wrap(ErrInvalidPublicKey, "cose key y coordinate")
			}
		default:
			if err := d.skipValue(); err != nil {
				return nil, errors.Wrap(ErrInvalidPublicKey, "cose key value")
			}
		}
	}
	if len(x) != 32 || len(y) != 32 {
		return nil, errors.Wrap(ErrInvalidPublicKey, "cose key missing 32-byte coordinates")
	}
	return &PublicKey{
		X: new(big.Int).SetBytes(x),
		Y: new(big.Int).SetBytes(y),
	}, nil
}

type cborReader struct {
	buf []byte
	pos int
}

func (d *cborReader) readHeader() (major byte, value uint64, err error) {
	if d.pos >= len(d.buf) {
		return 0, 0, errors.New("truncated")
	}
	b := d.buf[d.pos]
	d.pos++
	major = b >> 5
	info := b & 0x1f
	switch {
	case info < 24:
		return major, uint64(info), nil
	case info == 24:
		if d.pos+1 > len(d.buf) {
			return 0, 0, errors.New("truncated")
		}
		value = uint64(d.buf[d.pos])
		d.pos++
	case info == 25:
		if d.pos+2 > len(d.buf) {
			return 0, 0, errors.New("truncated")
		}
		value = uint64(binary.BigEndian.Uint16(d.buf[d.pos:]))
		d.pos += 2
	case info == 26:
		if d.pos+4 > len(d.buf) {
			return 0, 0, errors.New("truncated")
		}
		value = uint64(binary.BigEndian.Uint32(d.buf[d.pos:]))
		d.pos += 4
	default:
		return 0, 0, errors.New("unsupported CBOR length")
	}
	return major, value, nil
}

func (d *cborReader) readMapHeader() (int, error) {
	major, n, err := d.readHeader()
	if err != nil {
		return 0, err
	}
	if major != 5 {
		return 0, errors.New("not a map")
	}
	return int(n), nil
}

func (d *cborReader) readInt() (int64, error) {
	major, n, err := d.readHeader()
	if err != nil {
		return 0, err
	}
	switch major {
	case 0:
		return int64(n), nil
	case 1:
		return -1 - int64(n), nil
	}
	return 0, errors.New("not an integer")
}

func (d *cborReader) readBytes() ([]byte, error) {
	major, n, err := d.readHeader()
	if err != nil {
		return nil, err
	}
	if major != 2 {
		return nil, errors.New("not a byte string")
	}
	if d.pos+int(n) > len(d.buf) {
		return nil, errors.New("truncated")
	}
	out := d.buf[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return out, nil
}

func (d *cborReader) skipValue() error {
	major, n, err := d.readHeader()
	if err != nil {
		return err
	}
	switch major {
	case 0, 1, 7:
		return nil
	case 2, 3:
		if d.pos+int(n) > len(d.buf) {
			return errors.New("truncated")
		}
		d.pos += int(n)
		return nil
	case 4:
		for i := uint64(0); i < n; i++ {
			if err := d.skipValue(); err != nil {
				return err
			}
		}
		return nil
	case 5:
		for i := uint64(0); i < n*2; i++ {
			if err := d.skipValue(); err != nil {
				return err
			}
		}
		return nil
	}
	return errors.New("unsupported CBOR item")
}
