package saccount

import "math/big"

// Conservative defaults used when bundler gas estimation is unavailable.
// Estimation failures are common and non-fatal; these values leave headroom
// for a smart-wallet execute call, signature verification and, when the
// account is not yet deployed, the factory deployment itself.
var (
	DefaultCallGasLimit         = big.NewInt(200_000)
	DefaultVerificationGasLimit = big.NewInt(1_000_000)
	DeployVerificationGasLimit  = big.NewInt(3_000_000)
	DefaultPreVerificationGas   = big.NewInt(50_000)

	// 2 gwei, used when the chain refuses to suggest a gas price.
	DefaultGasPrice = big.NewInt(2_000_000_000)
)
