package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Candidate — кандидат-поставщик, найденный поиском или из справочника.
type Candidate struct {
	Name            string  `json:"name"`
	Website         string  `json:"website,omitempty"`
	Phone           string  `json:"phone,omitempty"`
	Email           string  `json:"email,omitempty"`
	City            string  `json:"city,omitempty"`
	Snippet         string  `json:"snippet,omitempty"`
	Rating          float64 `json:"rating"`
	SearchRelevance float64 `json:"searchRelevance"`
}

// Requirement — что закупаем по позиции.
type Requirement struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
}

// SupplierAnalysis — оценка одного кандидата.
type SupplierAnalysis struct {
	Name           string   `json:"name"`
	RelevanceScore int      `json:"relevanceScore"`
	Reasons        []string `json:"reasons,omitempty"`
	Pros           []string `json:"pros,omitempty"`
	Cons           []string `json:"cons,omitempty"`
	Recommendation string   `json:"recommendation"`
}

// Рекомендации по итогам оценки.
const (
	RecommendationStrong   = "RECOMMENDED"
	RecommendationPossible = "POSSIBLE"
	RecommendationWeak     = "NOT_RECOMMENDED"
)

// Нижняя граница балла, когда кандидатов мало и модель не вызывается.
const scoreFloor = 50

// Ranker оценивает кандидатов; при сбое модели всегда есть
// детерминированный запасной порядок.
type Ranker struct {
	completer Completer
	logger    *zap.SugaredLogger
}

func NewRanker(completer Completer, logger *zap.SugaredLogger) *Ranker {
	return &Ranker{completer: completer, logger: logger}
}

const rankingSystemPrompt = `Ты — закупщик. Оцени кандидатов-поставщиков по рубрике:
релевантность запросу 40%, локальность 25%, рейтинг 20%, достижимость контактов 15%.
Ответ — строго JSON-массив объектов вида
{"name": string, "relevanceScore": int 0-100, "reasons": [string], "pros": [string], "cons": [string], "recommendation": "RECOMMENDED"|"POSSIBLE"|"NOT_RECOMMENDED"}.
Никакого текста вне массива.`

// RankSuppliers возвращает до topN кандидатов по убыванию оценки.
// При числе кандидатов не больше topN модель не вызывается — все
// возвращаются с нижней границей балла (лишний внешний вызов ради
// тривиального решения не нужен). Любая ошибка модели или разбора
// приводит к детерминированному порядку по rating + searchRelevance.
func (r *Ranker) RankSuppliers(ctx context.Context, req Requirement, candidates []Candidate, topN int) []SupplierAnalysis {
	if len(candidates) == 0 {
		return nil
	}
	if topN <= 0 {
		topN = len(candidates)
	}

	if len(candidates) <= topN {
		out := make([]SupplierAnalysis, 0, len(candidates))
		for _, c := range candidates {
			out = append(out, SupplierAnalysis{
				Name:           c.Name,
				RelevanceScore: scoreFloor,
				Recommendation: RecommendationPossible,
				Reasons:        []string{"кандидатов мало, оценка моделью не проводилась"},
			})
		}
		return out
	}

	analyses, err := r.rankWithModel(ctx, req, candidates)
	if err != nil {
		r.logger.Warnw("supplier ranking fell back to deterministic order", "error", err)
		return fallbackRanking(candidates, topN)
	}

	sort.SliceStable(analyses, func(i, j int) bool {
		return analyses[i].RelevanceScore > analyses[j].RelevanceScore
	})
	if len(analyses) > topN {
		analyses = analyses[:topN]
	}
	return analyses
}

func (r *Ranker) rankWithModel(ctx context.Context, req Requirement, candidates []Candidate) ([]SupplierAnalysis, error) {
	payload, err := json.Marshal(struct {
		Requirement Requirement `json:"requirement"`
		Candidates  []Candidate `json:"candidates"`
	}{req, candidates})
	if err != nil {
		return nil, err
	}

	resp, err := r.completer.Complete(ctx, rankingSystemPrompt, string(payload))
	if err != nil {
		return nil, err
	}

	analyses, err := ParseAnalysisArray(resp)
	if err != nil {
		return nil, err
	}
	if len(analyses) == 0 {
		return nil, fmt.Errorf("model returned empty array")
	}
	return analyses, nil
}

// ParseAnalysisArray разбирает ответ модели. Модели заворачивают JSON в
// блоки кода и обрезают длинный вывод, поэтому разбор защитный: срезаются
// ограждения, массив вычленяется по скобкам, а обрезанный хвост
// отбрасывается до последнего целого элемента.
func ParseAnalysisArray(resp string) ([]SupplierAnalysis, error) {
	s := strings.TrimSpace(resp)

	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		if strings.HasPrefix(s, "json") {
			s = s[4:]
		}
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}

	start := strings.Index(s, "[")
	if start == -1 {
		return nil, fmt.Errorf("no JSON array in response")
	}
	s = s[start:]

	var analyses []SupplierAnalysis
	if end := strings.LastIndex(s, "]"); end != -1 {
		if err := json.Unmarshal([]byte(s[:end+1]), &analyses); err == nil {
			return analyses, nil
		}
	}

	// Вывод оборван: обрезать до последнего завершённого элемента.
	last := strings.LastIndex(s, "}")
	if last == -1 {
		return nil, fmt.Errorf("no complete element in truncated response")
	}
	repaired := s[:last+1] + "]"
	if err := json.Unmarshal([]byte(repaired), &analyses); err != nil {
		return nil, fmt.Errorf("unmarshal repaired array: %w", err)
	}
	return analyses, nil
}

// fallbackRanking — детерминированный порядок по rating + searchRelevance.
func fallbackRanking(candidates []Candidate, topN int) []SupplierAnalysis {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rating+sorted[i].SearchRelevance > sorted[j].Rating+sorted[j].SearchRelevance
	})
	if len(sorted) > topN {
		sorted = sorted[:topN]
	}

	out := make([]SupplierAnalysis, 0, len(sorted))
	for _, c := range sorted {
		score := int(c.Rating*10 + c.SearchRelevance)
		if score > 100 {
			score = 100
		}
		if score < 0 {
			score = 0
		}
		rec := RecommendationWeak
		switch {
		case score >= 70:
			rec = RecommendationStrong
		case score >= 40:
			rec = RecommendationPossible
		}
		out = append(out, SupplierAnalysis{
			Name:           c.Name,
			RelevanceScore: score,
			Recommendation: rec,
			Reasons:        []string{"запасной порядок: rating + searchRelevance"},
		})
	}
	return out
}
