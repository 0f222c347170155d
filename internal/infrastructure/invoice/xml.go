package invoice

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/synthexa/catalogmatch/internal/core/domain"
)

// nfeDocument covers the two shapes an NF-e arrives in: the signed
// procNFe envelope and a bare NFe. Only the item fields the matching
// pipeline needs are mapped.
type nfeDocument struct {
	XMLName xml.Name
	NFe     struct {
		InfNFe infNFe `xml:"infNFe"`
	} `xml:"NFe"`
	InfNFe infNFe `xml:"infNFe"`
}

type infNFe struct {
	Items []struct {
		Number string `xml:"nItem,attr"`
		Prod   struct {
			SupplierCode string `xml:"cProd"`
			Description  string `xml:"xProd"`
			Unit         string `xml:"uCom"`
		} `xml:"prod"`
	} `xml:"det"`
}

// ExtractItems parses an NF-e document and returns its product lines
// as analysis requests. The supplier's own product code rides along so
// the decision service can use it as the alternate code.
func ExtractItems(r io.Reader) ([]domain.BatchItem, error) {
	var doc nfeDocument
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse nfe xml: %w", err)
	}

	items := doc.NFe.InfNFe.Items
	if len(items) == 0 {
		items = doc.InfNFe.Items
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("nfe has no product lines")
	}

	out := make([]domain.BatchItem, 0, len(items))
	for _, item := range items {
		description := strings.TrimSpace(item.Prod.Description)
		if description == "" {
			continue
		}
		out = append(out, domain.BatchItem{
			Description:  description,
			SupplierCode: strings.TrimSpace(item.Prod.SupplierCode),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("nfe has no usable product lines")
	}
	return out, nil
}
