package canonical

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/lodret/concord/internal/model"
)

var linePathRe = regexp.MustCompile(`^items\[(\d+)\]\.(sku|qty|unitPrice|amount)$`)

// ExtractFields maps every canonical field present on the snapshot to its
// normalized value. Line-scoped fields use the snapshot's own item indices;
// cross-document alignment is a separate concern (AlignItems).
func ExtractFields(snap *model.DocumentSnapshot) map[Field]Value {
	out := make(map[Field]Value)
	if snap == nil {
		return out
	}
	for _, f := range DocumentFields() {
		raw, _ := GetValue(snap, f.Path)
		out[f] = Normalize(raw, f.Kind)
	}
	for i := range snap.Items {
		for _, lf := range LineFields() {
			f := Field{Path: LinePath(i, lf.Name), Group: lf.Group, Kind: lf.Kind}
			raw, _ := GetValue(snap, f.Path)
			out[f] = Normalize(raw, lf.Kind)
		}
	}
	return out
}

// GetValue reads the raw value at a canonical path. The second return is
// false when the path does not resolve on this snapshot.
func GetValue(snap *model.DocumentSnapshot, path string) (string, bool) {
	if snap == nil {
		return "", false
	}
	switch path {
	case "buyer.companyName":
		return snap.Buyer.CompanyName, true
	case "buyer.contact":
		return snap.Buyer.Contact, true
	case "totalAmount":
		return snap.DeclaredTotal, true
	case "incoterms":
		return snap.Incoterms, true
	case "paymentTerms":
		return snap.PaymentTerms, true
	case "portOfLoading":
		return snap.PortOfLoading, true
	case "portOfDischarge":
		return snap.PortOfDischarge, true
	case "validUntil":
		return snap.ValidUntil, true
	}
	m := linePathRe.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	idx, _ := strconv.Atoi(m[1])
	if idx >= len(snap.Items) {
		return "", false
	}
	item := snap.Items[idx]
	switch m[2] {
	case "sku":
		return item.SKU, true
	case "qty":
		return item.Qty, true
	case "unitPrice":
		return item.UnitPrice, true
	case "amount":
		return item.Amount, true
	}
	return "", false
}

// SetValue writes a raw value at a canonical path, mutating the snapshot in
// place. Callers are expected to operate on clones; version bookkeeping is
// the fix applier's job.
func SetValue(snap *model.DocumentSnapshot, path, value string) error {
	switch path {
	case "buyer.companyName":
		snap.Buyer.CompanyName = value
		return nil
	case "buyer.contact":
		snap.Buyer.Contact = value
		return nil
	case "totalAmount":
		snap.DeclaredTotal = value
		return nil
	case "incoterms":
		snap.Incoterms = value
		return nil
	case "paymentTerms":
		snap.PaymentTerms = value
		return nil
	case "portOfLoading":
		snap.PortOfLoading = value
		return nil
	case "portOfDischarge":
		snap.PortOfDischarge = value
		return nil
	case "validUntil":
		snap.ValidUntil = value
		return nil
	}
	m := linePathRe.FindStringSubmatch(path)
	if m == nil {
		return fmt.Errorf("unknown canonical path %q", path)
	}
	idx, _ := strconv.Atoi(m[1])
	if idx >= len(snap.Items) {
		return fmt.Errorf("item index out of range in path %q", path)
	}
	switch m[2] {
	case "qty":
		snap.Items[idx].Qty = value
	case "unitPrice":
		snap.Items[idx].UnitPrice = value
	case "amount":
		snap.Items[idx].Amount = value
	default:
		return fmt.Errorf("field %q is not writable", path)
	}
	return nil
}

// Alignment is one cross-document item row: the same logical line item
// located in each document that carries it.
type Alignment struct {
	Key   string
	SKU   string
	Index map[model.DocKey]int
}

// AlignItems matches line items across the documents of a set. Items align
// by identical sku when the sku is non-blank and unique within its document;
// a duplicate or blank sku collapses that item to positional alignment. A
// sku that only one document carries also falls back to position, so sets
// where some documents omit skus still compare line by line.
func AlignItems(set model.DocumentSet) []Alignment {
	docs := set.Present()

	type slot struct {
		doc model.DocKey
		idx int
		sku string // empty when positionally keyed
	}
	var slots []slot
	for _, doc := range docs {
		snap := set.Get(doc)
		counts := make(map[string]int)
		for _, item := range snap.Items {
			if item.SKU != "" {
				counts[item.SKU]++
			}
		}
		for i, item := range snap.Items {
			sku := item.SKU
			if counts[sku] != 1 {
				sku = ""
			}
			slots = append(slots, slot{doc: doc, idx: i, sku: sku})
		}
	}

	// First pass: count how many documents can join each sku row.
	skuDocs := make(map[string]int)
	for _, s := range slots {
		if s.sku != "" {
			skuDocs[s.sku]++
		}
	}

	// Second pass: build rows in order of first appearance. Sku rows with a
	// single member degrade to positional so mixed sets still align.
	rowFor := make(map[string]int)
	var rows []Alignment
	for _, s := range slots {
		key := s.sku
		sku := s.sku
		if sku == "" || skuDocs[sku] < 2 {
			key = fmt.Sprintf("#%d", s.idx)
			sku = ""
		}
		r, ok := rowFor[key]
		if !ok {
			r = len(rows)
			rowFor[key] = r
			rows = append(rows, Alignment{Key: key, SKU: sku, Index: make(map[model.DocKey]int)})
		}
		if _, taken := rows[r].Index[s.doc]; !taken {
			rows[r].Index[s.doc] = s.idx
		}
	}
	return rows
}
