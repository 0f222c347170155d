package usecase

import (
	"regexp"
	"sort"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/synthexa/catalogmatch/internal/core/domain"
)

const minCandidateScore = 30

var (
	rePunct   = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	reNonWord = regexp.MustCompile(`[^\p{L}\p{N}_]`)
)

// PreFilter is the deterministic candidate generator. It is built once
// per catalog snapshot: descriptions are normalized, each product is
// classified by type, and a type -> product index is assembled for
// fast candidate seeding.
type PreFilter struct {
	products  []domain.CatalogProduct
	codes     []string
	norm      []string
	types     []string
	typeIndex map[string][]int

	principal map[string]struct{}
	prefixes  map[string]struct{}
}

func NewPreFilter(products []domain.CatalogProduct, vocab Vocabulary) *PreFilter {
	f := &PreFilter{
		products:  products,
		codes:     make([]string, len(products)),
		norm:      make([]string, len(products)),
		types:     make([]string, len(products)),
		typeIndex: make(map[string][]int),
		principal: toSet(vocab.PrincipalTerms),
		prefixes:  toSet(vocab.SecondaryPrefixes),
	}

	for i, p := range products {
		f.codes[i] = strings.ToUpper(strings.TrimSpace(p.Code))
		f.norm[i] = normalizeDescription(p.Description)
		if t := f.classifyType(f.norm[i]); t != "" {
			f.types[i] = t
			f.typeIndex[t] = append(f.typeIndex[t], i)
		}
	}
	return f
}

// normalizeDescription upper-cases, strips punctuation to spaces and
// collapses whitespace.
func normalizeDescription(s string) string {
	out := strings.ToUpper(s)
	out = rePunct.ReplaceAllString(out, " ")
	return strings.Join(strings.Fields(out), " ")
}

// classifyType scans tokens left to right and returns the first
// principal term that is not disqualified by a secondary prefix. A
// term is disqualified when the previous token is a secondary prefix,
// or when the two previous tokens form "<prefix> DE" (so "TINTA COR
// GIZ DE CERA" is typed TINTA, never CERA).
func (f *PreFilter) classifyType(desc string) string {
	words := strings.Fields(desc)
	for i, w := range words {
		clean := reNonWord.ReplaceAllString(w, "")
		if _, ok := f.principal[clean]; !ok {
			continue
		}
		if i >= 1 {
			prev := reNonWord.ReplaceAllString(words[i-1], "")
			if _, secondary := f.prefixes[prev]; secondary {
				continue
			}
		}
		if i >= 2 && words[i-1] == "DE" {
			prev2 := reNonWord.ReplaceAllString(words[i-2], "")
			if _, secondary := f.prefixes[prev2]; secondary {
				continue
			}
		}
		return clean
	}
	return ""
}

// Filter returns up to limit candidates for the query, scored 0-100.
// An exact code match short-circuits everything else with score 100.
func (f *PreFilter) Filter(query string, limit int) []domain.Candidate {
	if limit <= 0 {
		limit = 20
	}
	queryNorm := strings.ToUpper(strings.TrimSpace(query))

	if exact := f.exactCodeMatches(queryNorm); len(exact) > 0 {
		return exact
	}

	queryType := f.classifyType(queryNorm)

	var indices []int
	seen := make(map[int]bool)
	if queryType != "" {
		for _, idx := range f.typeIndex[queryType] {
			indices = append(indices, idx)
			seen[idx] = true
		}
	}

	if len(indices) < limit {
		indices = f.expandBySubstring(queryNorm, indices, seen, limit)
	}

	type scored struct {
		idx   int
		score int
	}
	scores := make([]scored, 0, len(indices))
	for _, idx := range indices {
		scores = append(scores, scored{idx, f.score(queryNorm, idx, queryType)})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	out := make([]domain.Candidate, 0, limit)
	for _, s := range scores {
		if len(out) >= limit {
			break
		}
		if s.score < minCandidateScore {
			continue
		}
		out = append(out, f.candidate(s.idx, s.score, domain.MethodFuzzy))
	}
	return out
}

func (f *PreFilter) exactCodeMatches(queryNorm string) []domain.Candidate {
	var out []domain.Candidate
	for i, code := range f.codes {
		if code != "" && code == queryNorm {
			out = append(out, f.candidate(i, 100, domain.MethodExactCode))
		}
	}
	return out
}

// expandBySubstring widens the candidate set through substring
// containment over the first 3 query tokens longer than 2 runes,
// taking at most limit extras per token and stopping once the set
// reaches twice the limit.
func (f *PreFilter) expandBySubstring(queryNorm string, indices []int, seen map[int]bool, limit int) []int {
	var words []string
	for _, w := range strings.Fields(queryNorm) {
		if len([]rune(w)) > 2 {
			words = append(words, w)
		}
	}
	if len(words) > 3 {
		words = words[:3]
	}

	for _, w := range words {
		added := 0
		for idx := range f.products {
			if seen[idx] || !strings.Contains(f.norm[idx], w) {
				continue
			}
			indices = append(indices, idx)
			seen[idx] = true
			added++
			if added >= limit {
				break
			}
		}
		if len(indices) >= limit*2 {
			break
		}
	}
	return indices
}

// score blends three order-insensitive similarity ratios, then applies
// the type bonus: +30 for matching types, -50 for conflicting ones.
func (f *PreFilter) score(queryNorm string, idx int, queryType string) int {
	desc := f.norm[idx]
	base := 0.4*float64(fuzzy.TokenSortRatio(queryNorm, desc)) +
		0.3*float64(fuzzy.TokenSetRatio(queryNorm, desc)) +
		0.3*float64(fuzzy.PartialRatio(queryNorm, desc))

	if queryType != "" && f.types[idx] != "" {
		if f.types[idx] == queryType {
			base += 30
		} else {
			base -= 50
		}
	}

	if base > 100 {
		base = 100
	}
	if base < 0 {
		base = 0
	}
	return int(base)
}

func (f *PreFilter) candidate(idx, score int, method domain.MatchMethod) domain.Candidate {
	p := f.products[idx]
	return domain.Candidate{
		Code:        p.Code,
		Description: p.Description,
		InternalID:  p.InternalID,
		GroupID:     p.GroupID,
		PreScore:    score,
		Method:      method,
		FinalScore:  score,
	}
}
