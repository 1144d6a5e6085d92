package saccount

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/axiomesh/axiom-aa-gateway/internal/chainstate"
)

const addressCacheSize = 1024

// DeriveSalt computes the per-account salt from the identity handle, the
// canonical public key bytes and the account index. Pure and stable across
// processes: the same inputs always produce the same salt.
func DeriveSalt(identityHandle string, pubKey *PublicKey, accountIndex uint64) *big.Int {
	var index [8]byte
	binary.BigEndian.PutUint64(index[:], accountIndex)
	return new(big.Int).SetBytes(crypto.Keccak256(
		[]byte(identityHandle),
		pubKey.Bytes(),
		index[:],
	))
}

// AddressDeriver computes the deterministic account address for a key and
// salt. The factory contract's own getAddress is the canonical computation;
// the local CREATE2 fallback must produce the same value, which makes it a
// correctness invariant rather than a best-effort estimate.
type AddressDeriver struct {
	factory ethcommon.Address
	reader  chainstate.Reader
	cache   *lru.Cache
	logger  logrus.FieldLogger
}

func NewAddressDeriver(factory ethcommon.Address, reader chainstate.Reader, logger logrus.FieldLogger) *AddressDeriver {
	cache, _ := lru.New(addressCacheSize)
	return &AddressDeriver{
		factory: factory,
		reader:  reader,
		cache:   cache,
		logger:  logger,
	}
}

// DeriveAddress resolves the account address for (pubKey, salt), preferring
// the factory's read-only getAddress and falling back to the local CREATE2
// computation when the chain is unreachable. Results are cached; derivation
// is pure so a cached value never goes stale.
func (d *AddressDeriver) DeriveAddress(ctx context.Context, pubKey *PublicKey, salt *big.Int) (ethcommon.Address, error) {
	if pubKey == nil || pubKey.X == nil || pubKey.Y == nil {
		return ethcommon.Address{}, errors.Wrap(ErrInvalidPublicKey, "derive address")
	}

	cacheKey := fmt.Sprintf("%x:%s", pubKey.Bytes(), salt.Text(16))
	if cached, ok := d.cache.Get(cacheKey); ok {
		return cached.(ethcommon.Address), nil
	}

	addr, err := d.factoryAddress(ctx, pubKey, salt)
	if err != nil {
		d.logger.WithFields(logrus.Fields{
			"factory": d.factory.Hex(),
			"err":     err,
		}).Warn("Factory getAddress unreachable, using local CREATE2 computation")
		addr = d.LocalAddress(pubKey, salt)
	}

	d.cache.Add(cacheKey, addr)
	return addr, nil
}

// Account derives the salt and address for an identity and wraps them in a
// SmartAccount.
func (d *AddressDeriver) Account(ctx context.Context, identity Identity, accountIndex uint64) (*SmartAccount, error) {
	if identity.PublicKey == nil {
		return nil, errors.Wrap(ErrInvalidPublicKey, "identity has no public key")
	}
	salt := DeriveSalt(identity.Handle, identity.PublicKey, accountIndex)
	addr, err := d.DeriveAddress(ctx, identity.PublicKey, salt)
	if err != nil {
		return nil, err
	}
	return &SmartAccount{
		Address:      addr,
		Identity:     identity,
		AccountIndex: accountIndex,
		Salt:         salt,
	}, nil
}

func (d *AddressDeriver) factoryAddress(ctx context.Context, pubKey *PublicKey, salt *big.Int) (ethcommon.Address, error) {
	ret, err := d.reader.CallContract(ctx, d.factory, PackGetAddress(pubKey.Owner(), salt))
	if err != nil {
		return ethcommon.Address{}, err
	}
	if len(ret) < 32 {
		return ethcommon.Address{}, errors.Errorf("factory getAddress returned %d bytes", len(ret))
	}
	return ethcommon.BytesToAddress(ret[12:32]), nil
}

// LocalAddress is the CREATE2-equivalent computation:
// keccak(0xff ‖ factory ‖ salt ‖ keccak(initCode))[12:].
func (d *AddressDeriver) LocalAddress(pubKey *PublicKey, salt *big.Int) ethcommon.Address {
	var saltBytes [32]byte
	salt.FillBytes(saltBytes[:])
	initCode := BuildInitCode(d.factory, pubKey, salt)
	return crypto.CreateAddress2(d.factory, saltBytes, crypto.Keccak256(initCode))
}
