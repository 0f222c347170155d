package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synthexa/catalogmatch/internal/core/domain"
	"github.com/synthexa/catalogmatch/internal/core/ports"
)

// AnalyzeConfig tunes the decision policy.
type AnalyzeConfig struct {
	// RegisterThreshold: a match below it still triggers registration.
	// Stricter than the search layer's match threshold on purpose.
	RegisterThreshold int
	// SearchLimit is the result window requested from the searcher.
	SearchLimit int
	// GroupListLimit bounds the group list sent to the classifier.
	GroupListLimit int
}

func (c AnalyzeConfig) normalize() AnalyzeConfig {
	out := c
	if out.RegisterThreshold <= 0 {
		out.RegisterThreshold = 75
	}
	if out.SearchLimit <= 0 {
		out.SearchLimit = 5
	}
	if out.GroupListLimit <= 0 {
		out.GroupListLimit = 100
	}
	return out
}

// AnalyzeProductUseCase is the classification decision service. It
// turns a hybrid search result into a structured action, classifies
// group and unit for registrations, and optionally creates the
// catalog record. Analyze never returns an error: every failure is
// recorded inside the outcome.
type AnalyzeProductUseCase struct {
	searcher   ports.ProductSearcher
	writer     ports.CatalogWriter
	groups     ports.GroupReader
	units      ports.UnitReader
	classifier ports.CategoryClassifier
	cfg        AnalyzeConfig
	logger     *slog.Logger

	groupsOnce  sync.Once
	groupsCache []domain.Group
	unitsOnce   sync.Once
	unitsCache  []domain.Unit
}

func NewAnalyzeProductUseCase(
	searcher ports.ProductSearcher,
	writer ports.CatalogWriter,
	groups ports.GroupReader,
	units ports.UnitReader,
	classifier ports.CategoryClassifier,
	cfg AnalyzeConfig,
	logger *slog.Logger,
) *AnalyzeProductUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeProductUseCase{
		searcher:   searcher,
		writer:     writer,
		groups:     groups,
		units:      units,
		classifier: classifier,
		cfg:        cfg.normalize(),
		logger:     logger,
	}
}

// Analyze implements ports.ProductAnalyzer.
func (uc *AnalyzeProductUseCase) Analyze(ctx context.Context, req ports.AnalyzeRequest) (outcome domain.AnalysisOutcome) {
	outcome = domain.AnalysisOutcome{
		ID:                  uuid.NewString(),
		SearchedDescription: req.Description,
		SupplierCode:        req.SupplierCode,
		Confidence:          domain.ConfidenceLow,
		Action:              domain.ActionNone,
		CreatedAt:           time.Now().UTC(),
	}

	// The caller always receives a completed outcome, even when a
	// collaborator misbehaves badly enough to panic.
	defer func() {
		if r := recover(); r != nil {
			outcome.Error = fmt.Sprintf("panic: %v", r)
			outcome.Action = domain.ActionNone
		}
	}()

	if err := uc.decide(ctx, req, &outcome); err != nil {
		outcome.Error = err.Error()
		outcome.Action = domain.ActionNone
		return outcome
	}

	if outcome.Action == domain.ActionRegisterAndLink {
		uc.prepareRegistration(ctx, req, &outcome)
	}
	if req.AutoRegister && outcome.Action == domain.ActionRegisterAndLink {
		uc.register(ctx, &outcome)
	}
	return outcome
}

func (uc *AnalyzeProductUseCase) decide(ctx context.Context, req ports.AnalyzeRequest, outcome *domain.AnalysisOutcome) error {
	search, err := uc.searcher.Search(ctx, req.Description, uc.cfg.SearchLimit, true, req.ContextHint)
	if err != nil {
		return fmt.Errorf("hybrid search: %w", err)
	}

	switch {
	case search.BestMatch != nil:
		match := *search.BestMatch
		outcome.ProductFound = true
		outcome.ProductMatch = &match
		outcome.Similarity = match.FinalScore
		if match.Confidence != "" {
			outcome.Confidence = match.Confidence
		} else {
			outcome.Confidence = domain.ConfidenceMedium
		}
		uc.applyRegisterSplit(outcome, match.FinalScore)

	case search.SuggestRegistration || len(search.Results) == 0:
		outcome.ProductFound = false
		outcome.Action = domain.ActionRegisterAndLink
		outcome.Justification = "Produto não encontrado na base de dados"

	default:
		// Results exist but none cleared the match threshold: the
		// register split still applies to the top raw result.
		top := search.Results[0]
		outcome.ProductMatch = &top
		outcome.Similarity = top.FinalScore
		uc.applyRegisterSplit(outcome, top.FinalScore)
	}
	return nil
}

func (uc *AnalyzeProductUseCase) applyRegisterSplit(outcome *domain.AnalysisOutcome, score int) {
	if score < uc.cfg.RegisterThreshold {
		outcome.Action = domain.ActionRegisterAndLink
		outcome.Justification = fmt.Sprintf(
			"Score %d%% abaixo de %d%% - cadastrando novo produto", score, uc.cfg.RegisterThreshold)
		return
	}
	outcome.Action = domain.ActionLinkOnly
	outcome.Justification = fmt.Sprintf(
		"Match encontrado com score %d%% (≥%d%%)", score, uc.cfg.RegisterThreshold)
}

func (uc *AnalyzeProductUseCase) prepareRegistration(ctx context.Context, req ports.AnalyzeRequest, outcome *domain.AnalysisOutcome) {
	description := strings.ToUpper(strings.TrimSpace(req.Description))
	data := domain.NewRegistrationData(description, req.SupplierCode)
	data.Group = uc.classifyGroup(ctx, req)
	data.Unit = uc.classifyUnit(ctx, req)
	outcome.RegistrationData = &data
}

func (uc *AnalyzeProductUseCase) register(ctx context.Context, outcome *domain.AnalysisOutcome) {
	if uc.writer == nil {
		outcome.Error = "Erro no cadastro: catalog writer não configurado"
		return
	}
	created, err := uc.writer.CreateProduct(ctx, *outcome.RegistrationData)
	if err != nil {
		outcome.Error = fmt.Sprintf("Erro no cadastro: %v", err)
		outcome.Registered = false
		return
	}
	outcome.Registered = true
	outcome.ProductMatch = &domain.Candidate{
		Code:        created.Code,
		Description: created.Description,
		InternalID:  created.InternalID,
		GroupID:     created.GroupID,
	}
	outcome.Justification += " | Cadastro realizado com sucesso"
}

// classifyGroup picks the category group for a new registration. The
// AI choice is validated against the available groups; anything that
// fails degrades to the first available group.
func (uc *AnalyzeProductUseCase) classifyGroup(ctx context.Context, req ports.AnalyzeRequest) *domain.GroupRef {
	groups := uc.loadGroups(ctx)
	if len(groups) == 0 {
		return nil
	}
	if uc.classifier == nil {
		return groupRef(groups[0])
	}

	limited := groups
	if len(limited) > uc.cfg.GroupListLimit {
		limited = limited[:uc.cfg.GroupListLimit]
	}
	code, justification, err := uc.classifier.ClassifyGroup(ctx, req.Description, limited)
	if err != nil {
		uc.logf(req.Debug, "classificação de grupo indisponível, usando padrão", "error", err)
		return groupRef(groups[0])
	}
	for _, g := range groups {
		if g.Code == code {
			uc.logf(req.Debug, "grupo classificado", "codigo", code, "descricao", g.Description, "justificativa", justification)
			return groupRef(g)
		}
	}
	uc.logf(req.Debug, "grupo sugerido não existe, usando padrão", "codigo", code)
	return groupRef(groups[0])
}

// classifyUnit picks the unit of measure, defaulting to the unit
// literally named UN/UND/UNID/UNIDADE, then to the first available.
func (uc *AnalyzeProductUseCase) classifyUnit(ctx context.Context, req ports.AnalyzeRequest) *domain.UnitRef {
	units := uc.loadUnits(ctx)
	if len(units) == 0 {
		return nil
	}
	if uc.classifier == nil {
		return defaultUnitRef(units)
	}

	code, justification, err := uc.classifier.ClassifyUnit(ctx, req.Description, units)
	if err != nil {
		uc.logf(req.Debug, "classificação de unidade indisponível, usando padrão", "error", err)
		return defaultUnitRef(units)
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, u := range units {
		if strings.ToUpper(u.Code) == code {
			uc.logf(req.Debug, "unidade classificada", "codigo", code, "justificativa", justification)
			return unitRef(u)
		}
	}
	uc.logf(req.Debug, "unidade sugerida não existe, usando padrão", "codigo", code)
	return defaultUnitRef(units)
}

func (uc *AnalyzeProductUseCase) loadGroups(ctx context.Context) []domain.Group {
	uc.groupsOnce.Do(func() {
		if uc.groups == nil {
			return
		}
		groups, err := uc.groups.ListGroups(ctx)
		if err != nil {
			uc.logger.Warn("lista de grupos indisponível", "error", err)
			return
		}
		uc.groupsCache = groups
	})
	return uc.groupsCache
}

func (uc *AnalyzeProductUseCase) loadUnits(ctx context.Context) []domain.Unit {
	uc.unitsOnce.Do(func() {
		if uc.units == nil {
			return
		}
		units, err := uc.units.ListUnits(ctx)
		if err != nil {
			uc.logger.Warn("lista de unidades indisponível", "error", err)
			return
		}
		uc.unitsCache = units
	})
	return uc.unitsCache
}

func (uc *AnalyzeProductUseCase) logf(debug bool, msg string, args ...any) {
	if debug {
		uc.logger.Info(msg, args...)
		return
	}
	uc.logger.Debug(msg, args...)
}

// AnalyzeBatch implements ports.ProductAnalyzer. Items are processed
// strictly in order, one at a time.
func (uc *AnalyzeProductUseCase) AnalyzeBatch(ctx context.Context, items []domain.BatchItem, autoRegister bool) domain.BatchResult {
	result := domain.BatchResult{
		Items: make([]domain.AnalysisOutcome, 0, len(items)),
	}
	for _, item := range items {
		outcome := uc.Analyze(ctx, ports.AnalyzeRequest{
			Description:  item.Description,
			SupplierCode: item.SupplierCode,
			AutoRegister: autoRegister,
		})
		result.Items = append(result.Items, outcome)

		result.Summary.Total++
		switch outcome.Action {
		case domain.ActionLinkOnly:
			result.Summary.LinkOnly++
		case domain.ActionRegisterAndLink:
			result.Summary.RegisterAndLink++
		}
		if outcome.Error != "" {
			result.Summary.Errors++
		}
	}
	return result
}

func groupRef(g domain.Group) *domain.GroupRef {
	def := g.Default
	if def == 0 {
		def = 1
	}
	return &domain.GroupRef{
		ID:          g.ID,
		Code:        g.Code,
		Default:     def,
		Identifier:  g.Identifier,
		Description: g.Description,
	}
}

func unitRef(u domain.Unit) *domain.UnitRef {
	def := u.Default
	if def == 0 {
		def = 1
	}
	return &domain.UnitRef{ID: u.ID, Code: u.Code, Default: def}
}

func defaultUnitRef(units []domain.Unit) *domain.UnitRef {
	for _, u := range units {
		desc := strings.ToUpper(strings.TrimSpace(u.Description))
		code := strings.ToUpper(strings.TrimSpace(u.Code))
		switch desc {
		case "UN", "UND", "UNID", "UNIDADE":
			return unitRef(u)
		}
		switch code {
		case "UN", "UND", "UNID":
			return unitRef(u)
		}
	}
	return unitRef(units[0])
}
