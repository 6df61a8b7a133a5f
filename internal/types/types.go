package types

type TradeSide string

type TradeStatus string

type AssetClass string

type KYCStatus string

type AccountKind string

type LedgerEntryType string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

const (
	TradeStatusOpen    TradeStatus = "open"
	TradeStatusPending TradeStatus = "pending"
	TradeStatusClosed  TradeStatus = "closed"
)

const (
	AssetClassForex    AssetClass = "forex"
	AssetClassForexJPY AssetClass = "forex_jpy"
	AssetClassMetal    AssetClass = "metal"
	AssetClassCrypto   AssetClass = "crypto"
)

const (
	KYCStatusNone     KYCStatus = "none"
	KYCStatusPending  KYCStatus = "pending"
	KYCStatusApproved KYCStatus = "approved"
	KYCStatusRejected KYCStatus = "rejected"
)

const (
	AccountKindAvailable AccountKind = "available"
	AccountKindReserved  AccountKind = "reserved"
)

const (
	LedgerEntryTypeDeposit  LedgerEntryType = "deposit"
	LedgerEntryTypeWithdraw LedgerEntryType = "withdraw"
	LedgerEntryTypeTrade    LedgerEntryType = "trade"
	LedgerEntryTypeReserve  LedgerEntryType = "reserve"
	LedgerEntryTypeRelease  LedgerEntryType = "release"
	LedgerEntryTypeFaucet   LedgerEntryType = "faucet"
)
