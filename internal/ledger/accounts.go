package ledger

import (
	"fmt"

	"github.com/klingon-exchange/ledger-core/internal/config"
)

// AssetAccountID builds the account_id convention for an asset account:
// ASSET:VENUE:ASSET, e.g. "ASSET:BINANCE_FUTURES:USDT".
func AssetAccountID(venue config.LedgerVenue, asset string) string {
	return fmt.Sprintf("ASSET:%s:%s", venue, asset)
}

// Fixed system account ids. These must match config.SeedChartOfAccounts
// verbatim, since that seed runs before any of these constants are ever
// referenced by the entry builder.
const (
	AccountSuspense             = "EQUITY:SUSPENSE"
	AccountInitialCapital       = "EQUITY:INITIAL_CAPITAL"
	AccountOpeningAdjustment    = "EQUITY:OPENING_ADJUSTMENT"
	AccountAdjustment           = "EQUITY:ADJUSTMENT"
	AccountFeeTradingMaker      = "EXPENSE:FEE:TRADING:MAKER"
	AccountFeeTradingTaker      = "EXPENSE:FEE:TRADING:TAKER"
	AccountFeeFundingPaid       = "EXPENSE:FEE:FUNDING:PAID"
	AccountFeeWithdrawal        = "EXPENSE:FEE:WITHDRAWAL"
	AccountFeeNetwork           = "EXPENSE:FEE:NETWORK"
	AccountFeeDustConversion    = "EXPENSE:FEE:DUST_CONVERSION"
	AccountConversionLoss       = "EXPENSE:CONVERSION_LOSS"
	AccountConversionGain       = "INCOME:CONVERSION_GAIN"
	AccountIncomeFundingRecv    = "INCOME:FUNDING:RECEIVED"
	AccountIncomeRealizedPnL    = "INCOME:TRADING:REALIZED_PNL"
	AccountIncomeRebate         = "INCOME:REBATE"
)

// ExternalVenue is the synthetic venue used for the counterparty side of
// deposits, withdrawals, and internal transfers to the outside world.
const ExternalVenue config.LedgerVenue = config.LedgerVenueExternal
