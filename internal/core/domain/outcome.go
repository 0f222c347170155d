package domain

import (
	"fmt"
	"time"
)

// RequiredAction is the closed set of actions the decision service can
// request. Values are the wire tags of the legacy JSON contract.
type RequiredAction string

const (
	ActionLinkOnly        RequiredAction = "apenas_vinculo"
	ActionRegisterAndLink RequiredAction = "cadastro_e_vinculo"
	ActionNone            RequiredAction = "nenhuma"
)

// GroupRef is the group reference shape the catalog write API expects.
type GroupRef struct {
	ID          int    `json:"id"`
	Code        int    `json:"codigo"`
	Default     int    `json:"padrao"`
	Identifier  string `json:"identificador"`
	Description string `json:"descricao"`
}

// UnitRef is the unit reference shape the catalog write API expects.
type UnitRef struct {
	ID      int    `json:"id"`
	Code    string `json:"codigo"`
	Default int    `json:"padrao"`
}

// NCMRef optionally links a tax classification.
type NCMRef struct {
	ID int `json:"id"`
}

// RegistrationData is the payload for creating a catalog product.
// Field names and defaults mirror the ERP contract exactly.
type RegistrationData struct {
	Default          int    `json:"padrao"`
	Description      string `json:"descricao"`
	DescriptionNFe   string `json:"descricaoNFe"`
	AlternateCode    string `json:"alternativo"`
	ItemDefinition   string `json:"definicaoItem"`
	Origin           string `json:"procedencia"`
	FiscalDefinition string `json:"definicaoFiscal"`

	ControlsStock    bool `json:"controlaEstoque"`
	ControlsSerial   bool `json:"controlaSerie"`
	ControlsBatches  bool `json:"controlaLotes"`
	ControlsExpiry   bool `json:"controlaDataValidade"`
	ExpiryCalcQty    int  `json:"quantidadeCalculoValidade"`
	Inactive         bool `json:"inativo"`
	Commissioned     bool `json:"comissionado"`
	GeneratesRequest int  `json:"geraSolicitacao"`

	PurchaseQuantity string `json:"quantidadeComprar"`
	ICMSDefinition   string `json:"definicaoIcms"`
	Generic          string `json:"generico"`

	Unit  *UnitRef  `json:"unidade,omitempty"`
	Group *GroupRef `json:"grupo,omitempty"`
	NCM   *NCMRef   `json:"ncm,omitempty"`
}

// NewRegistrationData builds a payload with the fixed ERP defaults:
// purchased stock-controlled item, no serial/batch/expiry tracking.
// The alternate code is mandatory for the API; when the supplier did
// not provide one, a timestamp-based code is generated.
func NewRegistrationData(description, alternateCode string) RegistrationData {
	if alternateCode == "" {
		alternateCode = fmt.Sprintf("AUTO-%d", time.Now().Unix())
	}
	return RegistrationData{
		Default:          1,
		Description:      description,
		DescriptionNFe:   description,
		AlternateCode:    alternateCode,
		ItemDefinition:   "IS",
		Origin:           "C",
		FiscalDefinition: "07",
		ControlsStock:    true,
		Commissioned:     true,
		GeneratesRequest: 3,
		PurchaseQuantity: "1",
		ICMSDefinition:   "N",
		Generic:          "N",
	}
}

// AnalysisOutcome is the complete decision record for one query. It is
// always returned fully populated; pipeline failures end up in Error
// with Action forced to ActionNone, never in a returned error.
type AnalysisOutcome struct {
	ID                  string            `json:"id"`
	SearchedDescription string            `json:"descricao_buscada"`
	SupplierCode        string            `json:"codigo_fornecedor,omitempty"`
	ProductFound        bool              `json:"produto_encontrado"`
	Similarity          int               `json:"similaridade"`
	Confidence          Confidence        `json:"confianca"`
	ProductMatch        *Candidate        `json:"produto_match,omitempty"`
	Action              RequiredAction    `json:"acao"`
	RegistrationData    *RegistrationData `json:"dados_cadastro,omitempty"`
	Justification       string            `json:"justificativa"`
	Registered          bool              `json:"cadastro_realizado"`
	Linked              bool              `json:"vinculo_realizado"`
	Error               string            `json:"erro,omitempty"`
	CreatedAt           time.Time         `json:"criado_em"`
}

// BatchItem is one entry of a batch analysis request, typically an
// invoice line.
type BatchItem struct {
	Description  string `json:"descricao"`
	SupplierCode string `json:"codigo_fornecedor,omitempty"`
}

// BatchSummary counts outcomes by requested action.
type BatchSummary struct {
	Total           int `json:"total"`
	LinkOnly        int `json:"apenas_vinculo"`
	RegisterAndLink int `json:"cadastro_e_vinculo"`
	Errors          int `json:"erros"`
}

// BatchResult bundles per-item outcomes with the summary counts.
type BatchResult struct {
	Summary BatchSummary      `json:"resumo"`
	Items   []AnalysisOutcome `json:"itens"`
}
