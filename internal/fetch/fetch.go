// Package fetch retrieves papers from the arXiv Atom API.
package fetch

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/hyperjump/proozl/internal/models"
)

const (
	DefaultBaseURL    = "http://export.arxiv.org/api/query"
	DefaultTimeout    = 3 * time.Second
	DefaultMaxResults = 60
)

// SortOrder is an arXiv sortBy value.
type SortOrder string

const (
	SortRelevance   SortOrder = "relevance"
	SortLastUpdated SortOrder = "lastUpdatedDate"
	SortSubmitted   SortOrder = "submittedDate"
)

// Params selects one page of search results.
type Params struct {
	Query      string
	Start      int
	MaxResults int
	SortBy     SortOrder
}

// Fetcher returns the papers matching p. Transport failures and non-success responses
// yield an empty slice rather than an error.
type Fetcher interface {
	Fetch(ctx context.Context, p Params) []models.Document
}

// ArxivClient implements Fetcher against the arXiv query API.
type ArxivClient struct {
	baseURL string
	parser  *gofeed.Parser
	logger  *zap.Logger
}

// ClientOption configures an ArxivClient.
type ClientOption func(*ArxivClient)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *ArxivClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *ArxivClient) {
		if d > 0 {
			c.parser.Client = &http.Client{Timeout: d}
		}
	}
}

// WithLogger sets the logger used for failed requests.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *ArxivClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewArxivClient creates a client with the default endpoint and a 3s timeout.
func NewArxivClient(opts ...ClientOption) *ArxivClient {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: DefaultTimeout}
	c := &ArxivClient{
		baseURL: DefaultBaseURL,
		parser:  parser,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch queries arXiv and converts the Atom entries into Documents.
func (c *ArxivClient) Fetch(ctx context.Context, p Params) []models.Document {
	feedURL := c.queryURL(p)
	feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		c.logger.Warn("arxiv fetch failed",
			zap.String("query", p.Query),
			zap.Int("start", p.Start),
			zap.Error(err))
		return []models.Document{}
	}

	docs := make([]models.Document, 0, len(feed.Items))
	for _, item := range feed.Items {
		docs = append(docs, toDocument(item))
	}
	return docs
}

func (c *ArxivClient) queryURL(p Params) string {
	maxResults := p.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	sortBy := p.SortBy
	if sortBy == "" {
		sortBy = SortLastUpdated
	}
	v := url.Values{}
	v.Set("search_query", p.Query)
	v.Set("start", strconv.Itoa(p.Start))
	v.Set("max_results", strconv.Itoa(maxResults))
	v.Set("sortBy", string(sortBy))
	return c.baseURL + "?" + v.Encode()
}

func toDocument(item *gofeed.Item) models.Document {
	abstract := item.Description
	if abstract == "" {
		abstract = item.Content
	}
	authors := make([]string, 0, len(item.Authors))
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			authors = append(authors, a.Name)
		}
	}
	return models.Document{
		Title:    collapse(item.Title),
		Link:     item.Link,
		Abstract: collapse(abstract),
		Authors:  authors,
	}
}

// collapse folds the hard line wraps arXiv puts in titles and summaries.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
