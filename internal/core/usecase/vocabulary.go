package usecase

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Vocabulary holds the curated term sets used by the type classifier.
// PrincipalTerms name physical product categories; SecondaryPrefixes
// are qualifiers (color, model, line) that disqualify the term that
// follows them.
type Vocabulary struct {
	PrincipalTerms    []string `yaml:"principal_terms"`
	SecondaryPrefixes []string `yaml:"secondary_prefixes"`
}

// DefaultVocabulary returns the built-in vocabulary for construction
// materials, cleaning supplies and consumables.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		PrincipalTerms: []string{
			"CERA", "SABAO", "DETERGENTE", "DESINFETANTE", "LIMPA", "LIMPADOR",
			"ALVEJANTE", "AMACIANTE", "SABONETE", "SHAMPOO", "ESPONJA", "PANO",
			"VASSOURA", "RODO", "BALDE", "ESCOVA", "LUVA", "SACO", "LIXO",
			"MASSA", "TINTA", "VERNIZ", "SELADOR", "PRIMER", "FUNDO", "ESMALTE",
			"TEXTURA", "REJUNTE", "ARGAMASSA", "CIMENTO", "CAL", "GESSO",
			"COLA", "SILICONE", "VEDANTE", "IMPERMEABILIZANTE",
			"TUBO", "CANO", "CONEXAO", "REGISTRO", "TORNEIRA", "VALVULA",
			"PAPEL", "CANETA", "LAPIS", "BORRACHA", "FITA", "TESOURA",
			"OLEO", "GRAXA", "LUBRIFICANTE",
		},
		SecondaryPrefixes: []string{
			"COR", "TIPO", "MODELO", "LINHA", "GIZ", "TONS", "TOM",
		},
	}
}

// LoadVocabulary reads a vocabulary override from a YAML file. An
// empty path returns the built-in default.
func LoadVocabulary(path string) (Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary file: %w", err)
	}
	var vocab Vocabulary
	if err := yaml.Unmarshal(raw, &vocab); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary yaml: %w", err)
	}
	if len(vocab.PrincipalTerms) == 0 {
		return Vocabulary{}, fmt.Errorf("vocabulary file %s has no principal_terms", path)
	}
	return vocab, nil
}

func toSet(terms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
	}
	return set
}
