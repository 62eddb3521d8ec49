package domain

// Canonical Polymarket contract addresses on Polygon, lowercased. The
// backtest uses these to keep only transfers that touch the platform and to
// classify relay-mediated rows.
const (
	ContractCTFExchange        = "0x4bfb41d5b3570defd03c39a9a4d8de6bd8b8982e"
	ContractNegRiskCTFExchange = "0xc5d563a36ae78145c45a50134d48a1215220f80a"
	ContractNegRiskAdapter     = "0xd91e80cf2e7be2e162c6513ced06f1dd0da35296"
	ContractFeeModule          = "0x56c79347e95530c01a2fc76e732f9566da16e113"
	ContractNegRiskFeeModule   = "0x78769d50be1763ed1ca0d5e878d93f05aabff29e"
	ContractRelayHub           = "0xd216153c06e857cd7f72665e0af1d7d82172f494"
	ContractConditionalTokens  = "0x4d97dcd97ec945f40cf65f87097ace5ea0476045"
)

// PlatformContracts maps each canonical contract address to a short name.
var PlatformContracts = map[string]string{
	ContractCTFExchange:        "CTFExchange",
	ContractNegRiskCTFExchange: "NegRiskCTFExchange",
	ContractNegRiskAdapter:     "NegRiskAdapter",
	ContractFeeModule:          "FeeModule",
	ContractNegRiskFeeModule:   "NegRiskFeeModule",
	ContractRelayHub:           "RelayHub",
	ContractConditionalTokens:  "ConditionalTokens",
}

// IsPlatformContract reports whether addr (any case, with or without 0x) is
// one of the canonical platform contracts.
func IsPlatformContract(addr string) bool {
	_, ok := PlatformContracts[NormalizeAddress(addr)]
	return ok
}
