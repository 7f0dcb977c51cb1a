// Package model defines the core domain models used throughout the application.
package model

import "time"

// DocKey identifies one of the four trade documents describing a deal.
type DocKey string

// Document key constants.
const (
	DocProformaInvoice   DocKey = "DOC_PI"
	DocSalesContract     DocKey = "DOC_CONTRACT"
	DocCommercialInvoice DocKey = "DOC_COMMERCIAL_INVOICE"
	DocPackingList       DocKey = "DOC_PACKING_LIST"
)

// AllDocKeys returns every document key in canonical order.
func AllDocKeys() []DocKey {
	return []DocKey{
		DocProformaInvoice,
		DocSalesContract,
		DocCommercialInvoice,
		DocPackingList,
	}
}

// DisplayName returns the human-readable document name.
func (k DocKey) DisplayName() string {
	switch k {
	case DocProformaInvoice:
		return "Proforma Invoice"
	case DocSalesContract:
		return "Sales Contract"
	case DocCommercialInvoice:
		return "Commercial Invoice"
	case DocPackingList:
		return "Packing List"
	default:
		return string(k)
	}
}

// Stage represents how far a deal has progressed.
type Stage string

// Deal stage constants.
const (
	StageInquiry  Stage = "INQUIRY"
	StageQuote    Stage = "QUOTE"
	StageContract Stage = "CONTRACT"
	StageBulk     Stage = "BULK"
)

// RequiredDocs returns the documents a deal must carry at the given stage.
func RequiredDocs(stage Stage) []DocKey {
	switch stage {
	case StageInquiry:
		return nil
	case StageQuote:
		return []DocKey{DocProformaInvoice}
	case StageContract:
		return []DocKey{DocProformaInvoice, DocSalesContract}
	case StageBulk:
		return AllDocKeys()
	default:
		return nil
	}
}

// Party identifies the buyer side of a document.
type Party struct {
	CompanyName string `yaml:"companyName"`
	Contact     string `yaml:"contact"`
}

// LineItem is one ordered row of a document. Numeric fields are kept as the
// raw strings entered on the form; parsing happens at comparison time so a
// malformed value never makes a snapshot unloadable.
type LineItem struct {
	SKU         string `yaml:"sku"`
	Description string `yaml:"description"`
	Qty         string `yaml:"qty"`
	UnitPrice   string `yaml:"unitPrice"`
	Amount      string `yaml:"amount"`
}

// DocumentSnapshot is an immutable value object holding the comparable
// content of one document. Every mutation produces a new snapshot with an
// incremented version and refreshed timestamp.
type DocumentSnapshot struct {
	Buyer           Party      `yaml:"buyer"`
	Items           []LineItem `yaml:"items"`
	DeclaredTotal   string     `yaml:"declaredTotal"`
	Incoterms       string     `yaml:"incoterms"`
	PaymentTerms    string     `yaml:"paymentTerms"`
	PortOfLoading   string     `yaml:"portOfLoading"`
	PortOfDischarge string     `yaml:"portOfDischarge"`
	ValidUntil      string     `yaml:"validUntil"`
	Version         int        `yaml:"version"`
	LastModified    time.Time  `yaml:"lastModified"`
}

// Clone returns a deep copy of the snapshot.
func (s *DocumentSnapshot) Clone() *DocumentSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Items = make([]LineItem, len(s.Items))
	copy(out.Items, s.Items)
	return &out
}

// Bumped returns a copy with the version incremented and the timestamp set.
func (s *DocumentSnapshot) Bumped(now time.Time) *DocumentSnapshot {
	out := s.Clone()
	out.Version++
	out.LastModified = now
	return out
}
