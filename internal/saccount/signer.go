package saccount

import (
	"context"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// HumanInteractionTimeout bounds a signing ceremony. The signer is backed by
// a human-present credential, so every call may block until the user reacts.
const HumanInteractionTimeout = 60 * time.Second

var (
	// ErrUserCancelled means the human declined the ceremony. Never retried
	// silently; it must reach the caller as-is.
	ErrUserCancelled = errors.New("user cancelled signing")

	ErrCredentialNotFound = errors.New("credential not found")

	// ErrSecurityContextInvalid means the signer refused to operate in the
	// current context, e.g. a non-secure transport.
	ErrSecurityContextInvalid = errors.New("security context invalid")
)

// Signer produces a signature over an operation hash using a referenced
// credential. The pipeline only consumes this capability; producing and
// verifying signatures stays outside the core.
type Signer interface {
	Sign(ctx context.Context, hash ethcommon.Hash, credentialID string) ([]byte, error)
}
