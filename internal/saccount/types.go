package saccount

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Identity binds a user handle to the credential public key controlling the
// account. Immutable once an address is derived from it: a different key is
// a different account.
type Identity struct {
	Handle    string
	PublicKey *PublicKey
}

// SmartAccount is a derived contract account. Address, salt and index are
// authoritative local data; deployed state and nonce are chain observations
// tracked separately by chainstate.
type SmartAccount struct {
	Address      ethcommon.Address
	Identity     Identity
	AccountIndex uint64
	Salt         *big.Int
}
