package openai

import (
	"fmt"
	"strings"

	"github.com/synthexa/catalogmatch/internal/core/domain"
)

const rerankSystemPrompt = `Você é um especialista em matching de produtos para construção civil, EPIs, materiais e insumos.

Sua tarefa é analisar uma descrição de produto buscada e uma lista de candidatos, retornando um ranking preciso.

REGRAS CRÍTICAS DE EQUIVALÊNCIA:
1. FOQUE NO PRODUTO ESSENCIAL, IGNORE DETALHES:
   - Marcas (MARLUVAS, VONDER, TRAMONTINA) → IGNORAR na comparação
   - Certificados (C.A 13808, INMETRO) → IGNORAR
   - Códigos de modelo (50B26, XYZ123) → IGNORAR
   - Tamanhos/Numerações (N.42, TAM G, Nº 10) → IGNORAR (a menos que mude categoria)
   - Cores específicas → IGNORAR (a menos que seja essencial)

2. PRODUTOS EQUIVALENTES (DEVEM TER SCORE ALTO 80-95):
   - "BOTINA NOBUCK MARLUVAS C.A 13808 50B26 N.42" = "BOTINA DE COURO" = "BOTINA SEGURANÇA"
   - "LUVA NITRÍLICA DANNY TAMANHO M" = "LUVA DE PROTEÇÃO" = "LUVA SEGURANÇA"
   - "CAPACETE 3M H-700 BRANCO" = "CAPACETE DE SEGURANÇA" = "CAPACETE EPI"
   - "CIMENTO CP II 50KG VOTORAN" = "CIMENTO" = "CIMENTO PORTLAND"
   - "DISCO CORTE 7" BOSCH" = "DISCO DE CORTE" = "DISCO ESMERILHADEIRA"
   - "PARAFUSO SEXTAVADO GALV 3/8X1.1/2" = "PARAFUSO SEXTAVADO 3/8" = "PARAFUSO 3/8"
   - "FIO FLEXÍVEL 2,5MM VERMELHO 100M" = "FIO 2,5MM" = "CABO 2,5MM"

3. CATEGORIAS QUE DEVEM CASAR:
   - EPIs: botina/bota, luva, capacete, óculos, protetor auricular → mesmo tipo = equivalente
   - Fixadores: parafuso, prego, bucha → mesmo tipo/medida base = equivalente
   - Elétricos: fio, cabo, disjuntor → mesmo tipo/amperagem = equivalente
   - Construção: cimento, areia, tijolo, bloco → mesmo material = equivalente

4. MEDIDAS IMPORTANTES (afetam score):
   - Parafusos: 3/8 x 1" ≠ 1/4 x 2" (medidas diferentes = produtos diferentes)
   - Fios: 2,5mm ≠ 4mm (bitola diferente = produto diferente)
   - Volume: 5L ≈ 5LT, mas considere 18L se não houver 5L disponível

5. NUNCA CONFUNDIR CATEGORIAS DIFERENTES:
   - CERA ≠ TINTA (mesmo que tenha "cor giz de cera")
   - SABÃO ≠ DETERGENTE
   - BOTINA ≠ SAPATO SOCIAL

SCORES:
- 90-100: Match exato ou muito próximo (mesmo produto, pode variar marca/tamanho)
- 80-89: Equivalente funcional (mesmo tipo de produto, especificações similares)
- 70-79: Possível equivalente (mesmo categoria, especificações podem diferir)
- 50-69: Match parcial (relacionado mas pode não servir)
- 0-49: Não é o produto buscado

Responda SEMPRE em JSON com a estrutura:
{
  "analise": [
    {
      "codigo": "string",
      "score": 0-100,
      "confianca": "ALTA|MEDIA|BAIXA",
      "justificativa": "string curta",
      "match_exato": true|false
    }
  ],
  "sugestao_cadastro": true|false,
  "observacao": "string opcional"
}`

const classifierSystemPrompt = "Você é um especialista em classificação de produtos para construção civil e materiais. Responda sempre em JSON válido."

func buildRerankPrompt(query string, candidates []domain.Candidate, contextHint string) string {
	var lines []string
	for _, c := range candidates {
		lines = append(lines, fmt.Sprintf("- [%s] %s (score_pre: %d)", c.Code, c.Description, c.PreScore))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "PRODUTO BUSCADO: %q\n\nCANDIDATOS PRÉ-FILTRADOS:\n%s\n\nAnalise cada candidato e retorne o ranking ordenado por relevância.",
		query, strings.Join(lines, "\n"))
	if contextHint != "" {
		fmt.Fprintf(&b, "\n\nCONTEXTO ADICIONAL: %s", contextHint)
	}
	return b.String()
}

func buildGroupPrompt(description string, groups []domain.Group) string {
	var lines []string
	for _, g := range groups {
		lines = append(lines, fmt.Sprintf("- Código %d: %s (ID: %d, Identificador: %s)", g.Code, g.Description, g.ID, g.Identifier))
	}

	return fmt.Sprintf(`Analise a descrição do produto e determine qual grupo é mais adequado para classificá-lo.

DESCRIÇÃO DO PRODUTO:
%q

GRUPOS DISPONÍVEIS:
%s

REGRAS DE CLASSIFICAÇÃO:
1. Materiais de construção (cimento, areia, tijolo, etc.) → Grupos com identificador "1" (Materiais)
2. Serviços → Grupos com identificador "2" (Serviços)
3. Mão de obra → Grupos com identificador "3" (Mão de Obra)
4. Produtos agrícolas/fazenda → Grupos com identificador "4" (Fazenda)
5. Se não souber, use o grupo mais genérico de materiais

IMPORTANTE: Analise o produto e escolha o grupo mais específico possível.

Responda APENAS em JSON com a estrutura:
{
    "codigo_grupo": <número do código do grupo>,
    "justificativa": "<breve explicação da escolha>"
}`, description, strings.Join(lines, "\n"))
}

func buildUnitPrompt(description string, units []domain.Unit) string {
	var lines []string
	for _, u := range units {
		desc := u.Description
		if desc == "" {
			desc = u.Code
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", u.Code, desc))
	}

	return fmt.Sprintf(`Analise a descrição do produto e determine qual unidade de medida é mais adequada.

DESCRIÇÃO DO PRODUTO:
%q

UNIDADES DISPONÍVEIS:
%s

REGRAS DE CLASSIFICAÇÃO:
1. Produtos vendidos por peso (areia, brita, cimento a granel) → KG ou TON
2. Produtos em sacos (cimento, argamassa, cal) → SC (saco) ou UN
3. Produtos lineares (tubos, cabos, fios, barras) → M (metro) ou BR (barra)
4. Produtos de área (pisos, azulejos, telhas) → M2 (metro quadrado) ou UN
5. Produtos de volume (concreto, terra) → M3 (metro cúbico)
6. Líquidos (tintas, solventes, combustível) → L ou LT (litro) ou GL (galão)
7. Produtos contáveis individuais (parafusos, pregos, conexões) → UN (unidade) ou PCT/CX
8. Produtos em pares (luvas, botas) → PAR
9. Produtos em rolos (lonas, telas, fitas) → RL (rolo) ou M
10. Serviços → SV, H (hora), DIA (diária)
11. Se a descrição mencionar a unidade explicitamente, use essa
12. Na dúvida, use UN (unidade)

DICAS:
- "50KG" ou "SC 50KG" na descrição → SC ou KG
- "BARRA" ou "BR" na descrição → BR ou M
- "ROLO" na descrição → RL
- "LITRO" ou "L" na descrição → L ou LT
- "METRO" ou "M" na descrição → M
- "CAIXA" ou "CX" na descrição → CX
- "PACOTE" ou "PCT" na descrição → PCT

Responda APENAS em JSON com a estrutura:
{
    "codigo_unidade": "<código da unidade>",
    "justificativa": "<breve explicação da escolha>"
}`, description, strings.Join(lines, "\n"))
}
