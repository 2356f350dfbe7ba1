// src/importer/detect.go
package importer

import (
	"strings"

	"github.com/username/folioimport/src/models"
)

// BrokerID identifies a recognised export format. Empty means unknown and
// routes the import to the manual-mapping wizard.
type BrokerID string

const (
	BrokerUnknown   BrokerID = ""
	BrokerRobinhood BrokerID = "robinhood"
	BrokerSchwab    BrokerID = "schwab"
	BrokerFidelity  BrokerID = "fidelity"
	BrokerGeneric   BrokerID = "generic"
)

// brokerSignature lists the headers that must all be present for a format to
// match, and the built-in mapping used when it does.
type brokerSignature struct {
	id       BrokerID
	required []string
	mapping  models.ColumnMapping
}

// Order matters: the Robinhood signature carries the discriminating
// "trans code" column, so it is checked before the generic date/action/symbol
// shape that its exports would also satisfy.
var brokerSignatures = []brokerSignature{
	{
		id:       BrokerRobinhood,
		required: []string{"activity date", "trans code", "instrument"},
		mapping: models.ColumnMapping{
			models.FieldTicker:      "Instrument",
			models.FieldDate:        "Activity Date",
			models.FieldAction:      "Trans Code",
			models.FieldShares:      "Quantity",
			models.FieldPrice:       "Price",
			models.FieldTotalAmount: "Amount",
		},
	},
	{
		id:       BrokerFidelity,
		required: []string{"run date", "symbol", "quantity"},
		mapping: models.ColumnMapping{
			models.FieldTicker:      "Symbol",
			models.FieldDate:        "Run Date",
			models.FieldAction:      "Action",
			models.FieldShares:      "Quantity",
			models.FieldPrice:       "Price",
			models.FieldTotalAmount: "Amount",
		},
	},
	{
		id:       BrokerSchwab,
		required: []string{"symbol", "quantity", "price", "cost basis"},
		mapping: models.ColumnMapping{
			models.FieldTicker:      "Symbol",
			models.FieldShares:      "Quantity",
			models.FieldPrice:       "Price",
			models.FieldTotalAmount: "Cost Basis",
		},
	},
	{
		id:       BrokerGeneric,
		required: []string{"date", "action", "symbol"},
		mapping: models.ColumnMapping{
			models.FieldTicker:      "Symbol",
			models.FieldDate:        "Date",
			models.FieldAction:      "Action",
			models.FieldShares:      "Shares",
			models.FieldPrice:       "Price",
			models.FieldTotalAmount: "Amount",
		},
	},
}

// Detect inspects column headers and returns the broker whose required header
// set is fully present. Matching is case-insensitive on trimmed headers. An
// empty or unrecognised header list yields BrokerUnknown; it never panics.
func Detect(headers []string) BrokerID {
	id, _ := DetectWithMapping(headers)
	return id
}

// DetectWithMapping is Detect plus the broker's built-in column mapping,
// restricted to headers that actually exist in the table. Mapped-but-missing
// optional columns are simply dropped; the normalizer treats them as unmapped.
func DetectWithMapping(headers []string) (BrokerID, models.ColumnMapping) {
	if len(headers) == 0 {
		return BrokerUnknown, nil
	}

	present := make(map[string]string, len(headers))
	for _, h := range headers {
		norm := strings.ToLower(strings.TrimSpace(h))
		if norm == "" {
			continue
		}
		present[norm] = strings.TrimSpace(h)
	}
	if len(present) == 0 {
		return BrokerUnknown, nil
	}

	for _, sig := range brokerSignatures {
		if !hasAll(present, sig.required) {
			continue
		}
		mapping := make(models.ColumnMapping, len(sig.mapping))
		for field, header := range sig.mapping {
			if actual, ok := present[strings.ToLower(header)]; ok {
				mapping[field] = actual
			}
		}
		if !mapping.IsComplete() {
			// A signature match without a usable mapping is no match at all.
			continue
		}
		return sig.id, mapping
	}
	return BrokerUnknown, nil
}

func hasAll(present map[string]string, required []string) bool {
	for _, r := range required {
		if _, ok := present[r]; !ok {
			return false
		}
	}
	return true
}
