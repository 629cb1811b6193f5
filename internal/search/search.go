// Package search объединяет несколько поисковых провайдеров в один
// сервис подбора кандидатов-поставщиков.
package search

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result — нормализованный ответ любого провайдера.
type Result struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Snippet     string   `json:"snippet"`
	CompanyName string   `json:"companyName"`
	Price       *float64 `json:"price,omitempty"`
	Source      string   `json:"source"`
}

// Provider — один источник результатов.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]Result, error)
}

// Service опрашивает всех провайдеров параллельно с общим дедлайном;
// отказ отдельного провайдера логируется и не валит весь поиск.
type Service struct {
	providers []Provider
	timeout   time.Duration
	logger    *zap.SugaredLogger
}

func NewService(providers []Provider, timeout time.Duration, logger *zap.SugaredLogger) *Service {
	return &Service{providers: providers, timeout: timeout, logger: logger}
}

// Search возвращает объединённые результаты без дублей (по хосту или
// названию компании), в стабильном порядке: сперва с ценой, затем по
// источнику и заголовку.
func (s *Service) Search(ctx context.Context, query string) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var mu sync.Mutex
	var all []Result

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range s.providers {
		g.Go(func() error {
			results, err := p.Search(gctx, query)
			if err != nil {
				s.logger.Warnw("search provider failed", "provider", p.Name(), "error", err)
				return nil
			}
			mu.Lock()
			all = append(all, results...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return dedupe(all), nil
}

func dedupe(results []Result) []Result {
	seen := make(map[string]struct{}, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		key := hostOf(r.URL)
		if key == "" {
			key = strings.ToLower(strings.TrimSpace(r.CompanyName))
		}
		if key == "" {
			key = strings.ToLower(r.Title)
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if (out[i].Price != nil) != (out[j].Price != nil) {
			return out[i].Price != nil
		}
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Title < out[j].Title
	})
	return out
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
