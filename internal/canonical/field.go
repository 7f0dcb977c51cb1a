// Package canonical defines the document-type-independent field model: which
// values are comparable across trade documents, how they are addressed by
// path, and how raw form input is normalized before comparison.
package canonical

import "fmt"

// Group is the semantic group a field belongs to. The diff detector derives
// finding categories and severities from it.
type Group string

// Semantic groups.
const (
	GroupBuyer    Group = "buyer"
	GroupQty      Group = "qty"
	GroupPrice    Group = "price"
	GroupAmount   Group = "amount"
	GroupTotal    Group = "total"
	GroupTerms    Group = "terms"
	GroupPort     Group = "port"
	GroupValidity Group = "validity"
)

// Kind describes how a field's raw value is normalized.
type Kind string

// Value kinds.
const (
	KindText     Kind = "text"
	KindMoney    Kind = "money"
	KindQuantity Kind = "quantity"
)

// Field identifies a comparable quantity by its dotted/indexed path.
type Field struct {
	Path  string
	Group Group
	Kind  Kind
}

// DocumentFields returns the document-scoped canonical fields in a fixed
// order. Line-scoped fields are addressed through item alignment instead.
func DocumentFields() []Field {
	return []Field{
		{Path: "buyer.companyName", Group: GroupBuyer, Kind: KindText},
		{Path: "buyer.contact", Group: GroupBuyer, Kind: KindText},
		{Path: "totalAmount", Group: GroupTotal, Kind: KindMoney},
		{Path: "incoterms", Group: GroupTerms, Kind: KindText},
		{Path: "paymentTerms", Group: GroupTerms, Kind: KindText},
		{Path: "portOfLoading", Group: GroupPort, Kind: KindText},
		{Path: "portOfDischarge", Group: GroupPort, Kind: KindText},
		{Path: "validUntil", Group: GroupValidity, Kind: KindText},
	}
}

// LineField is the per-item portion of a line-scoped canonical field.
type LineField struct {
	Name  string
	Group Group
	Kind  Kind
}

// LineFields returns the comparable per-item fields in a fixed order.
func LineFields() []LineField {
	return []LineField{
		{Name: "qty", Group: GroupQty, Kind: KindQuantity},
		{Name: "unitPrice", Group: GroupPrice, Kind: KindMoney},
		{Name: "amount", Group: GroupAmount, Kind: KindMoney},
	}
}

// LinePath builds the canonical path for a line-scoped field instance.
func LinePath(row int, name string) string {
	return fmt.Sprintf("items[%d].%s", row, name)
}
