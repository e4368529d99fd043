package tokengate

import "github.com/tokengate/tokengate/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors
var (
	SOL  = types.SOL
	USDC = types.USDC
	USD  = types.USD
	EUR  = types.EUR
	Zero = types.Zero
	Sum  = types.Sum
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
