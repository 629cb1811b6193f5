package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Таймауты внешних вызовов фиксированные: пользовательской отмены нет,
// запрос либо успевает, либо обработчик возвращает ошибку.
const providerTimeout = 30 * time.Second

func getJSON(ctx context.Context, client *http.Client, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(raw))
	}
	return json.Unmarshal(raw, out)
}

func truncateBody(raw []byte) string {
	s := string(raw)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// WebProvider — универсальный веб-поиск.
type WebProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewWebProvider(baseURL, apiKey string) *WebProvider {
	return &WebProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: providerTimeout},
	}
}

func (p *WebProvider) Name() string { return "web" }

func (p *WebProvider) Search(ctx context.Context, query string) ([]Result, error) {
	var parsed struct {
		Results []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"results"`
	}
	u := fmt.Sprintf("%s/search?q=%s&api_key=%s",
		p.baseURL, url.QueryEscape(query), url.QueryEscape(p.apiKey))
	if err := getJSON(ctx, p.httpClient, u, &parsed); err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}

	out := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		out = append(out, Result{
			Title:       r.Title,
			URL:         r.Link,
			Snippet:     r.Snippet,
			CompanyName: companyFromTitle(r.Title),
			Source:      p.Name(),
		})
	}
	return out, nil
}

// RegionalProvider — региональный поиск (вторичный источник).
type RegionalProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewRegionalProvider(baseURL, apiKey string) *RegionalProvider {
	return &RegionalProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: providerTimeout},
	}
}

func (p *RegionalProvider) Name() string { return "regional" }

func (p *RegionalProvider) Search(ctx context.Context, query string) ([]Result, error) {
	var parsed struct {
		Items []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Text    string `json:"text"`
			Company string `json:"company"`
		} `json:"items"`
	}
	u := fmt.Sprintf("%s/v1/search?query=%s&key=%s",
		p.baseURL, url.QueryEscape(query), url.QueryEscape(p.apiKey))
	if err := getJSON(ctx, p.httpClient, u, &parsed); err != nil {
		return nil, fmt.Errorf("regional search: %w", err)
	}

	out := make([]Result, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		company := it.Company
		if company == "" {
			company = companyFromTitle(it.Name)
		}
		out = append(out, Result{
			Title:       it.Name,
			URL:         it.URL,
			Snippet:     it.Text,
			CompanyName: company,
			Source:      p.Name(),
		})
	}
	return out, nil
}

// AggregatorProvider — платный агрегатор поставщиков, умеет отдавать цену.
type AggregatorProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewAggregatorProvider(baseURL, apiKey string) *AggregatorProvider {
	return &AggregatorProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: providerTimeout},
	}
}

func (p *AggregatorProvider) Name() string { return "aggregator" }

func (p *AggregatorProvider) Search(ctx context.Context, query string) ([]Result, error) {
	var parsed struct {
		Offers []struct {
			Title   string   `json:"title"`
			URL     string   `json:"url"`
			Company string   `json:"company"`
			Price   *float64 `json:"price"`
			Snippet string   `json:"description"`
		} `json:"offers"`
	}
	u := fmt.Sprintf("%s/api/offers?q=%s&token=%s",
		p.baseURL, url.QueryEscape(query), url.QueryEscape(p.apiKey))
	if err := getJSON(ctx, p.httpClient, u, &parsed); err != nil {
		return nil, fmt.Errorf("aggregator search: %w", err)
	}

	out := make([]Result, 0, len(parsed.Offers))
	for _, o := range parsed.Offers {
		out = append(out, Result{
			Title:       o.Title,
			URL:         o.URL,
			Snippet:     o.Snippet,
			CompanyName: o.Company,
			Price:       o.Price,
			Source:      p.Name(),
		})
	}
	return out, nil
}

// companyFromTitle срезает от заголовка хвост после разделителя:
// "ТОО Альфа — кабель оптом" -> "ТОО Альфа".
func companyFromTitle(title string) string {
	for _, sep := range []string{" — ", " - ", " | ", " :: "} {
		if i := strings.Index(title, sep); i > 0 {
			return strings.TrimSpace(title[:i])
		}
	}
	return strings.TrimSpace(title)
}
