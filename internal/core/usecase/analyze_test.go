package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/synthexa/catalogmatch/internal/core/domain"
	"github.com/synthexa/catalogmatch/internal/core/ports"
)

type fakeSearcher struct {
	result *domain.SearchResult
	err    error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int, useAI bool, contextHint string) (*domain.SearchResult, error) {
	return f.result, f.err
}

type fakeWriter struct {
	created *domain.CatalogProduct
	err     error
	got     *domain.RegistrationData
}

func (f *fakeWriter) CreateProduct(ctx context.Context, data domain.RegistrationData) (*domain.CatalogProduct, error) {
	f.got = &data
	return f.created, f.err
}

type fakeGroupReader struct {
	groups []domain.Group
	err    error
}

func (f *fakeGroupReader) ListGroups(ctx context.Context) ([]domain.Group, error) {
	return f.groups, f.err
}

type fakeUnitReader struct {
	units []domain.Unit
	err   error
}

func (f *fakeUnitReader) ListUnits(ctx context.Context) ([]domain.Unit, error) {
	return f.units, f.err
}

type fakeClassifier struct {
	groupCode int
	unitCode  string
	err       error
}

func (f *fakeClassifier) ClassifyGroup(ctx context.Context, description string, groups []domain.Group) (int, string, error) {
	return f.groupCode, "classificado", f.err
}

func (f *fakeClassifier) ClassifyUnit(ctx context.Context, description string, units []domain.Unit) (string, string, error) {
	return f.unitCode, "classificado", f.err
}

func testGroups() []domain.Group {
	return []domain.Group{
		{ID: 10, Code: 1, Description: "MATERIAIS DIVERSOS", Identifier: "1", Default: 1},
		{ID: 20, Code: 2, Description: "LIMPEZA", Identifier: "1", Default: 1},
	}
}

func testUnits() []domain.Unit {
	return []domain.Unit{
		{ID: 1, Code: "CX", Description: "CAIXA", Default: 1},
		{ID: 2, Code: "UN", Description: "UNIDADE", Default: 1},
		{ID: 3, Code: "KG", Description: "QUILOGRAMA", Default: 1},
	}
}

func matchResult(score int) *domain.SearchResult {
	match := domain.Candidate{
		Code:        "001",
		Description: "CERA LIQUIDA INCOLOR 750ML",
		InternalID:  1,
		PreScore:    score,
		FinalScore:  score,
		Confidence:  domain.ConfidenceHigh,
	}
	return &domain.SearchResult{
		Query:     "CERA LIQUIDA",
		Results:   []domain.Candidate{match},
		BestMatch: &match,
	}
}

func newTestAnalyzer(searcher ports.ProductSearcher, writer ports.CatalogWriter, classifier ports.CategoryClassifier) *AnalyzeProductUseCase {
	return NewAnalyzeProductUseCase(
		searcher, writer,
		&fakeGroupReader{groups: testGroups()},
		&fakeUnitReader{units: testUnits()},
		classifier,
		AnalyzeConfig{},
		nil,
	)
}

func TestAnalyzeHighScoreLinksOnly(t *testing.T) {
	uc := newTestAnalyzer(&fakeSearcher{result: matchResult(85)}, nil, nil)

	outcome := uc.Analyze(context.Background(), ports.AnalyzeRequest{Description: "CERA LIQUIDA"})
	if outcome.Action != domain.ActionLinkOnly {
		t.Errorf("action = %q, want %q", outcome.Action, domain.ActionLinkOnly)
	}
	if !outcome.ProductFound {
		t.Error("ProductFound = false for a best match")
	}
	if outcome.Similarity != 85 {
		t.Errorf("similarity = %d, want 85", outcome.Similarity)
	}
	if outcome.Confidence != domain.ConfidenceHigh {
		t.Errorf("confidence = %q, want ALTA", outcome.Confidence)
	}
	if outcome.RegistrationData != nil {
		t.Error("registration data prepared for a link-only outcome")
	}
	if !strings.Contains(outcome.Justification, "85%") {
		t.Errorf("justification = %q, want score mention", outcome.Justification)
	}
	if outcome.ID == "" || outcome.CreatedAt.IsZero() {
		t.Error("outcome missing identity fields")
	}
}

func TestAnalyzeMediumScoreRegistersAndLinks(t *testing.T) {
	// A 60% match beats the search threshold but not the 75%
	// registration bar, so a new product is still registered.
	uc := newTestAnalyzer(&fakeSearcher{result: matchResult(60)}, nil, &fakeClassifier{groupCode: 2, unitCode: "UN"})

	outcome := uc.Analyze(context.Background(), ports.AnalyzeRequest{Description: "cera liquida especial"})
	if outcome.Action != domain.ActionRegisterAndLink {
		t.Fatalf("action = %q, want %q", outcome.Action, domain.ActionRegisterAndLink)
	}
	if !outcome.ProductFound || outcome.ProductMatch == nil {
		t.Error("best match must be kept on a register-and-link outcome")
	}
	if !strings.Contains(outcome.Justification, "abaixo de 75%") {
		t.Errorf("justification = %q", outcome.Justification)
	}

	data := outcome.RegistrationData
	if data == nil {
		t.Fatal("registration data not prepared")
	}
	if data.Description != "CERA LIQUIDA ESPECIAL" {
		t.Errorf("description = %q, want upper-cased input", data.Description)
	}
	if data.Group == nil || data.Group.Code != 2 {
		t.Errorf("group = %+v, want code 2", data.Group)
	}
	if data.Unit == nil || data.Unit.Code != "UN" {
		t.Errorf("unit = %+v, want UN", data.Unit)
	}
	if data.Default != 1 || data.ItemDefinition != "IS" || data.Origin != "C" || data.FiscalDefinition != "07" {
		t.Errorf("fixed defaults wrong: %+v", data)
	}
	if !data.ControlsStock || !data.Commissioned || data.GeneratesRequest != 3 {
		t.Errorf("stock defaults wrong: %+v", data)
	}
}

func TestAnalyzeNoCandidates(t *testing.T) {
	searcher := &fakeSearcher{result: &domain.SearchResult{
		Query:               "PRODUTO INEXISTENTE",
		Results:             []domain.Candidate{},
		SuggestRegistration: true,
	}}
	uc := newTestAnalyzer(searcher, nil, nil)

	outcome := uc.Analyze(context.Background(), ports.AnalyzeRequest{Description: "PRODUTO INEXISTENTE"})
	if outcome.Action != domain.ActionRegisterAndLink {
		t.Errorf("action = %q, want %q", outcome.Action, domain.ActionRegisterAndLink)
	}
	if outcome.ProductFound {
		t.Error("ProductFound = true with no candidates")
	}
	if outcome.Justification != "Produto não encontrado na base de dados" {
		t.Errorf("justification = %q", outcome.Justification)
	}
	if outcome.RegistrationData == nil {
		t.Error("registration data not prepared")
	}
}

func TestAnalyzeWeakResultsWithoutBestMatch(t *testing.T) {
	top := domain.Candidate{Code: "004", Description: "DETERGENTE NEUTRO 500ML", FinalScore: 55}
	searcher := &fakeSearcher{result: &domain.SearchResult{
		Results: []domain.Candidate{top},
	}}
	uc := newTestAnalyzer(searcher, nil, nil)

	outcome := uc.Analyze(context.Background(), ports.AnalyzeRequest{Description: "DETERGENTE"})
	if outcome.Action != domain.ActionRegisterAndLink {
		t.Errorf("action = %q, want register and link", outcome.Action)
	}
	if outcome.ProductFound {
		t.Error("ProductFound = true for a sub-threshold result")
	}
	if outcome.ProductMatch == nil || outcome.ProductMatch.Code != "004" {
		t.Errorf("top raw result not recorded: %+v", outcome.ProductMatch)
	}
	if outcome.Similarity != 55 {
		t.Errorf("similarity = %d, want 55", outcome.Similarity)
	}
}

func TestAnalyzeSearchErrorNeverPropagates(t *testing.T) {
	uc := newTestAnalyzer(&fakeSearcher{err: errors.New("index unavailable")}, nil, nil)

	outcome := uc.Analyze(context.Background(), ports.AnalyzeRequest{Description: "CERA"})
	if outcome.Error == "" {
		t.Error("search failure not recorded in outcome")
	}
	if outcome.Action != domain.ActionNone {
		t.Errorf("action = %q, want %q", outcome.Action, domain.ActionNone)
	}
}

type panickingSearcher struct{}

func (panickingSearcher) Search(ctx context.Context, query string, limit int, useAI bool, contextHint string) (*domain.SearchResult, error) {
	panic("boom")
}

func TestAnalyzeRecoversFromPanic(t *testing.T) {
	uc := newTestAnalyzer(panickingSearcher{}, nil, nil)

	outcome := uc.Analyze(context.Background(), ports.AnalyzeRequest{Description: "CERA"})
	if !strings.Contains(outcome.Error, "boom") {
		t.Errorf("panic not captured: %q", outcome.Error)
	}
	if outcome.Action != domain.ActionNone {
		t.Errorf("action = %q, want %q", outcome.Action, domain.ActionNone)
	}
}

func TestAnalyzeAutoRegisterSuccess(t *testing.T) {
	writer := &fakeWriter{created: &domain.CatalogProduct{
		Code: "999", Description: "CERA NOVA", InternalID: 999,
	}}
	searcher := &fakeSearcher{result: &domain.SearchResult{SuggestRegistration: true, Results: []domain.Candidate{}}}
	uc := newTestAnalyzer(searcher, writer, &fakeClassifier{groupCode: 1, unitCode: "UN"})

	outcome := uc.Analyze(context.Background(), ports.AnalyzeRequest{
		Description:  "cera nova",
		SupplierCode: "FORN-7",
		AutoRegister: true,
	})
	if !outcome.Registered {
		t.Fatal("Registered = false after successful creation")
	}
	if outcome.ProductMatch == nil || outcome.ProductMatch.Code != "999" {
		t.Errorf("created product not projected: %+v", outcome.ProductMatch)
	}
	if !strings.HasSuffix(outcome.Justification, " | Cadastro realizado com sucesso") {
		t.Errorf("justification = %q", outcome.Justification)
	}
	if writer.got == nil || writer.got.AlternateCode != "FORN-7" {
		t.Errorf("supplier code not used as alternate code: %+v", writer.got)
	}
}

func TestAnalyzeAutoRegisterFailure(t *testing.T) {
	writer := &fakeWriter{err: errors.New("HTTP 500")}
	searcher := &fakeSearcher{result: &domain.SearchResult{SuggestRegistration: true, Results: []domain.Candidate{}}}
	uc := newTestAnalyzer(searcher, writer, nil)

	outcome := uc.Analyze(context.Background(), ports.AnalyzeRequest{Description: "CERA NOVA", AutoRegister: true})
	if outcome.Registered {
		t.Error("Registered = true after creation failure")
	}
	if !strings.Contains(outcome.Error, "Erro no cadastro") {
		t.Errorf("error = %q", outcome.Error)
	}
	if outcome.Action != domain.ActionRegisterAndLink {
		t.Errorf("action = %q, a failed registration keeps the requested action", outcome.Action)
	}
}

func TestAnalyzeClassifierFallbacks(t *testing.T) {
	searcher := &fakeSearcher{result: &domain.SearchResult{SuggestRegistration: true, Results: []domain.Candidate{}}}
	uc := newTestAnalyzer(searcher, nil, &fakeClassifier{err: errors.New("model offline")})

	outcome := uc.Analyze(context.Background(), ports.AnalyzeRequest{Description: "CERA NOVA"})
	data := outcome.RegistrationData
	if data == nil {
		t.Fatal("registration data not prepared")
	}
	if data.Group == nil || data.Group.Code != 1 {
		t.Errorf("group fallback = %+v, want first group", data.Group)
	}
	if data.Unit == nil || data.Unit.Code != "UN" {
		t.Errorf("unit fallback = %+v, want UN", data.Unit)
	}
}

func TestAnalyzeClassifierUnknownCodesFallBack(t *testing.T) {
	searcher := &fakeSearcher{result: &domain.SearchResult{SuggestRegistration: true, Results: []domain.Candidate{}}}
	uc := newTestAnalyzer(searcher, nil, &fakeClassifier{groupCode: 42, unitCode: "XX"})

	outcome := uc.Analyze(context.Background(), ports.AnalyzeRequest{Description: "CERA NOVA"})
	data := outcome.RegistrationData
	if data.Group == nil || data.Group.Code != 1 {
		t.Errorf("unknown group code accepted: %+v", data.Group)
	}
	if data.Unit == nil || data.Unit.Code != "UN" {
		t.Errorf("unknown unit code accepted: %+v", data.Unit)
	}
}

func TestAnalyzeReaderFailuresLeaveRefsNil(t *testing.T) {
	searcher := &fakeSearcher{result: &domain.SearchResult{SuggestRegistration: true, Results: []domain.Candidate{}}}
	uc := NewAnalyzeProductUseCase(
		searcher, nil,
		&fakeGroupReader{err: errors.New("unavailable")},
		&fakeUnitReader{err: errors.New("unavailable")},
		nil,
		AnalyzeConfig{},
		nil,
	)

	outcome := uc.Analyze(context.Background(), ports.AnalyzeRequest{Description: "CERA NOVA"})
	data := outcome.RegistrationData
	if data == nil {
		t.Fatal("registration data not prepared")
	}
	if data.Group != nil || data.Unit != nil {
		t.Errorf("refs set despite reader failures: group=%+v unit=%+v", data.Group, data.Unit)
	}
	if outcome.Error != "" {
		t.Errorf("reader failures must not fail the outcome: %q", outcome.Error)
	}
}

func TestAnalyzeBatchSummarizes(t *testing.T) {
	results := map[string]*domain.SearchResult{
		"CERA LIQUIDA": matchResult(90),
		"CERA NOVA":    {SuggestRegistration: true, Results: []domain.Candidate{}},
	}
	searcher := &routingSearcher{results: results}
	uc := newTestAnalyzer(searcher, nil, nil)

	batch := uc.AnalyzeBatch(context.Background(), []domain.BatchItem{
		{Description: "CERA LIQUIDA"},
		{Description: "CERA NOVA"},
		{Description: "QUEBRA"},
	}, false)

	if batch.Summary.Total != 3 {
		t.Errorf("total = %d, want 3", batch.Summary.Total)
	}
	if batch.Summary.LinkOnly != 1 {
		t.Errorf("link only = %d, want 1", batch.Summary.LinkOnly)
	}
	if batch.Summary.RegisterAndLink != 1 {
		t.Errorf("register and link = %d, want 1", batch.Summary.RegisterAndLink)
	}
	if batch.Summary.Errors != 1 {
		t.Errorf("errors = %d, want 1", batch.Summary.Errors)
	}
	if len(batch.Items) != 3 {
		t.Errorf("items = %d, want 3", len(batch.Items))
	}
}

type routingSearcher struct {
	results map[string]*domain.SearchResult
}

func (r *routingSearcher) Search(ctx context.Context, query string, limit int, useAI bool, contextHint string) (*domain.SearchResult, error) {
	res, ok := r.results[query]
	if !ok {
		return nil, errors.New("backend unavailable")
	}
	return res, nil
}
