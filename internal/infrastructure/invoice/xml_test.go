package invoice

import (
	"strings"
	"testing"
)

const signedNFe = `<?xml version="1.0" encoding="UTF-8"?>
<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">
  <NFe>
    <infNFe Id="NFe35240112345678000199550010000000011000000010">
      <det nItem="1">
        <prod>
          <cProd>FORN-001</cProd>
          <xProd>CIMENTO CP II 50KG VOTORAN</xProd>
          <uCom>SC</uCom>
        </prod>
      </det>
      <det nItem="2">
        <prod>
          <cProd>FORN-002</cProd>
          <xProd>LUVA NITRILICA TAM M</xProd>
          <uCom>PAR</uCom>
        </prod>
      </det>
    </infNFe>
  </NFe>
</nfeProc>`

const bareNFe = `<NFe xmlns="http://www.portalfiscal.inf.br/nfe">
  <infNFe>
    <det nItem="1">
      <prod>
        <cProd>X1</cProd>
        <xProd> CERA LIQUIDA 750ML </xProd>
        <uCom>UN</uCom>
      </prod>
    </det>
  </infNFe>
</NFe>`

func TestExtractItemsFromSignedEnvelope(t *testing.T) {
	items, err := ExtractItems(strings.NewReader(signedNFe))
	if err != nil {
		t.Fatalf("ExtractItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].Description != "CIMENTO CP II 50KG VOTORAN" || items[0].SupplierCode != "FORN-001" {
		t.Errorf("first item = %+v", items[0])
	}
	if items[1].SupplierCode != "FORN-002" {
		t.Errorf("second item = %+v", items[1])
	}
}

func TestExtractItemsFromBareNFe(t *testing.T) {
	items, err := ExtractItems(strings.NewReader(bareNFe))
	if err != nil {
		t.Fatalf("ExtractItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len = %d, want 1", len(items))
	}
	if items[0].Description != "CERA LIQUIDA 750ML" {
		t.Errorf("description not trimmed: %q", items[0].Description)
	}
}

func TestExtractItemsRejectsEmptyDocument(t *testing.T) {
	if _, err := ExtractItems(strings.NewReader(`<NFe><infNFe></infNFe></NFe>`)); err == nil {
		t.Fatal("expected error for nfe without items")
	}
}

func TestExtractItemsRejectsMalformedXML(t *testing.T) {
	if _, err := ExtractItems(strings.NewReader(`not xml at all`)); err == nil {
		t.Fatal("expected error for malformed xml")
	}
}

func TestExtractItemsSkipsBlankDescriptions(t *testing.T) {
	doc := `<NFe><infNFe>
	  <det nItem="1"><prod><cProd>A</cProd><xProd>  </xProd></prod></det>
	  <det nItem="2"><prod><cProd>B</cProd><xProd>DETERGENTE NEUTRO</xProd></prod></det>
	</infNFe></NFe>`
	items, err := ExtractItems(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ExtractItems: %v", err)
	}
	if len(items) != 1 || items[0].SupplierCode != "B" {
		t.Errorf("items = %+v", items)
	}
}
