package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"newsinsight/internal/domain"
)

const (
	newsAPISortBy         = "publishedAt"
	newsAPIStatusOK       = "ok"
	defaultNewsAPIBase    = "https://newsapi.org/v2"
	defaultNewsAPIPage    = 10
	defaultNewsAPITimeout = 30 * time.Second
)

// NewsAPIClient queries the /everything endpoint of newsapi.org.
type NewsAPIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"source"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"publishedAt"`
		Content     string    `json:"content"`
	} `json:"articles"`
}

// NewsAPIError is a non-ok reply from the provider.
type NewsAPIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *NewsAPIError) Error() string {
	return fmt.Sprintf("newsapi returned status %d (code = %s): %s", e.StatusCode, e.Code, e.Message)
}

func NewNewsAPIClient(apiKey string, baseURL string, timeout time.Duration) *NewsAPIClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultNewsAPIBase
	}
	if timeout <= 0 {
		timeout = defaultNewsAPITimeout
	}

	return &NewsAPIClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *NewsAPIClient) Name() string {
	return "newsapi"
}

func (c *NewsAPIClient) Search(ctx context.Context, q Query) ([]domain.RawArticle, error) {
	search := BuildSearchQuery(q.Terms())
	if search == "" {
		return nil, nil
	}

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = defaultNewsAPIPage
	}

	params := url.Values{}
	params.Set("q", search)
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("sortBy", newsAPISortBy)
	if q.Language != "" {
		params.Set("language", q.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var apiResp newsAPIResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&apiResp)

	if resp.StatusCode != http.StatusOK || apiResp.Status != newsAPIStatusOK {
		return nil, &NewsAPIError{
			StatusCode: resp.StatusCode,
			Code:       apiResp.Code,
			Message:    apiResp.Message,
		}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}

	articles := make([]domain.RawArticle, 0, len(apiResp.Articles))
	for _, a := range apiResp.Articles {
		articles = append(articles, domain.RawArticle{
			Title:       a.Title,
			URL:         a.URL,
			SourceName:  a.Source.Name,
			PublishedAt: a.PublishedAt,
			Content:     a.Content,
			Description: a.Description,
		})
	}

	return articles, nil
}

// IsRateLimited reports whether err is the provider's rate-limit reply.
func IsRateLimited(err error) bool {
	var apiErr *NewsAPIError
	return errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusTooManyRequests || apiErr.Code == "rateLimited")
}
