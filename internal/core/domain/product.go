package domain

// MatchMethod tells how a candidate was selected by the pre-filter.
type MatchMethod string

const (
	MethodExactCode MatchMethod = "codigo"
	MethodFuzzy     MatchMethod = "fuzzy"
)

// Confidence labels follow the wire contract of the AI providers.
type Confidence string

const (
	ConfidenceHigh   Confidence = "ALTA"
	ConfidenceMedium Confidence = "MEDIA"
	ConfidenceLow    Confidence = "BAIXA"
)

// CatalogProduct is one record of the catalog snapshot. The snapshot is
// loaded once per process and treated as immutable afterwards.
type CatalogProduct struct {
	Code        string `json:"codigo"`
	Description string `json:"descricao"`
	InternalID  int    `json:"id"`
	GroupID     int    `json:"grupo,omitempty"`
}

// Candidate is a catalog product projection carried through the two
// ranking stages. PreScore comes from the deterministic pre-filter;
// the AI fields are only set when the re-ranker answered for this code.
type Candidate struct {
	Code        string      `json:"codigo"`
	Description string      `json:"descricao"`
	InternalID  int         `json:"id"`
	GroupID     int         `json:"grupo,omitempty"`
	PreScore    int         `json:"score"`
	Method      MatchMethod `json:"metodo"`

	AIScore       int        `json:"score_ia,omitempty"`
	Confidence    Confidence `json:"confianca,omitempty"`
	Justification string     `json:"justificativa,omitempty"`
	ExactMatch    bool       `json:"match_exato,omitempty"`

	FinalScore int `json:"score_final"`
}

// AIAnalysis is the per-candidate output of a re-ranking provider.
// SuggestRegistration is a catalog-level flag the provider repeats on
// every entry of the batch.
type AIAnalysis struct {
	Code                string     `json:"codigo"`
	Score               int        `json:"score"`
	Confidence          Confidence `json:"confianca"`
	Justification       string     `json:"justificativa"`
	ExactMatch          bool       `json:"match_exato"`
	SuggestRegistration bool       `json:"sugestao_cadastro"`
}

// SearchMetrics records how a search was served.
type SearchMetrics struct {
	PrefilterCandidates int  `json:"candidatos_prefiltro"`
	AIUsed              bool `json:"ia_utilizada"`
}

// SearchResult is the ranked bundle returned by the hybrid search.
// BestMatch is only set when the top final score clears the match
// threshold; SuggestRegistration may be set independently of it.
type SearchResult struct {
	Query               string        `json:"query"`
	Results             []Candidate   `json:"resultados"`
	BestMatch           *Candidate    `json:"melhor_match,omitempty"`
	SuggestRegistration bool          `json:"sugestao_cadastro"`
	Metrics             SearchMetrics `json:"metricas"`
}

// Group is a catalog category group. Identifier encodes the base
// category ("1" materials, "2" services, "3" labor, "4" farm).
type Group struct {
	ID          int    `json:"id"`
	Code        int    `json:"codigo"`
	Description string `json:"descricao"`
	Identifier  string `json:"identificador"`
	Default     int    `json:"padrao"`
}

// Unit is a catalog unit of measure.
type Unit struct {
	ID          int    `json:"id"`
	Code        string `json:"codigo"`
	Description string `json:"descricao"`
	Default     int    `json:"padrao"`
}
