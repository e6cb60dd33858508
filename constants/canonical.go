package constants

import (
	"strings"
)

// CanonicalKey identifies one of the ten financial figures every document resolves to.
type CanonicalKey string

const (
	OwnersCapital      CanonicalKey = "owners_capital"
	TotalLiabilities   CanonicalKey = "total_liabilities"
	PBIT               CanonicalKey = "pbit"
	Interest           CanonicalKey = "interest"
	AccountsPayable    CanonicalKey = "accounts_payable"
	Purchases          CanonicalKey = "purchases"
	AccountsReceivable CanonicalKey = "accounts_receivable"
	Turnover           CanonicalKey = "turnover"
	CurrentAssets      CanonicalKey = "current_assets"
	CurrentLiabilities CanonicalKey = "current_liabilities"
)

// canonicalOrder is closed and ordered; consumers iterate it, never a map.
var canonicalOrder = []CanonicalKey{
	OwnersCapital,
	TotalLiabilities,
	PBIT,
	Interest,
	AccountsPayable,
	Purchases,
	AccountsReceivable,
	Turnover,
	CurrentAssets,
	CurrentLiabilities,
}

var canonicalLabels = map[CanonicalKey]string{
	OwnersCapital:      "Owner's Capital",
	TotalLiabilities:   "Total Liabilities",
	PBIT:               "Profit Before Interest and Tax (PBIT)",
	Interest:           "Interest",
	AccountsPayable:    "Accounts Payable",
	Purchases:          "Purchases",
	AccountsReceivable: "Accounts Receivable",
	Turnover:           "Turnover",
	CurrentAssets:      "Current Assets",
	CurrentLiabilities: "Current Liabilities",
}

// synonymTable holds curated aliases, most specific first. Read-only.
var synonymTable = map[CanonicalKey][]string{
	OwnersCapital: {
		"owner's capital", "owners capital", "owners' capital", "proprietor's capital",
		"proprietors capital", "partners' capital", "partners capital", "capital account",
		"share capital", "shareholders' funds", "shareholders funds", "net worth",
		"owner's equity", "owners equity",
	},
	TotalLiabilities: {
		"total liabilities", "total outside liabilities", "total debts", "total borrowings and liabilities",
	},
	PBIT: {
		"profit before interest and tax", "profit before interest & tax", "profit before interest and taxes",
		"pbit", "earnings before interest and tax", "earnings before interest and taxes", "operating profit",
	},
	Interest: {
		"interest expense", "interest expenses", "interest paid", "interest on loan", "interest on loans",
		"interest on borrowings", "bank interest", "finance cost", "finance costs", "finance charges",
	},
	AccountsPayable: {
		"sundry creditors", "trade payables", "trade payable", "accounts payable", "account payable",
		"bills payable", "creditors",
	},
	Purchases: {
		"purchase of stock-in-trade", "purchases of stock-in-trade", "purchase of stock in trade",
		"purchases of stock in trade", "purchase of goods", "purchases of goods", "purchase accounts",
		"purchases",
	},
	AccountsReceivable: {
		"sundry debtors", "trade receivables", "trade receivable", "accounts receivable",
		"account receivable", "bills receivable", "debtors",
	},
	Turnover: {
		"revenue from operations", "turnover", "net sales", "gross sales", "sales revenue",
		"total revenue", "gross receipts", "sales",
	},
	CurrentAssets: {
		"total current assets", "current assets, loans and advances", "current assets",
	},
	CurrentLiabilities: {
		"total current liabilities", "current liabilities and provisions", "current liabilities",
	},
}

// CanonicalKeys returns the ten keys in their fixed order.
func CanonicalKeys() []CanonicalKey {
	out := make([]CanonicalKey, len(canonicalOrder))
	copy(out, canonicalOrder)
	return out
}

// Label returns the display label of a canonical key.
func (k CanonicalKey) Label() string {
	if l, ok := canonicalLabels[k]; ok {
		return l
	}
	return string(k)
}

// Synonyms returns the alias list for k; the returned slice is a copy.
func (k CanonicalKey) Synonyms() []string {
	src := synonymTable[k]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

func (k CanonicalKey) Valid() bool {
	_, ok := canonicalLabels[k]
	return ok
}

// ParseCanonicalKey accepts the key itself or its display label, case-insensitively.
func ParseCanonicalKey(input string) (CanonicalKey, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}
	for _, k := range canonicalOrder {
		if normalized == string(k) || normalized == strings.ToLower(canonicalLabels[k]) {
			return k, true
		}
	}
	return "", false
}
