package jobsearch

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const (
	apiURL          = "https://www.googleapis.com/customsearch/v1"
	contentType     = "application/json"
	contentEncoding = "gzip, deflate, br"
	userAgent       = "career-compass (https://github.com/compass-dev/career-compass)"

	// Custom Search caps num at 10 per request.
	maxPerRequest = 10
)

// Client queries the Google Custom Search JSON API for job postings.
type Client struct {
	apiKey     string
	engineID   string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	MaxResults int
}

func New(logger *zap.Logger, apiKey, engineID string, maxResults int) *Client {
	if maxResults <= 0 || maxResults > maxPerRequest {
		maxResults = maxPerRequest
	}

	return &Client{
		apiKey:   apiKey,
		engineID: engineID,
		APIURL:   apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:     logger,
		UserAgent:  userAgent,
		MaxResults: maxResults,
	}
}

type searchItem struct {
	Title   string `json:"title" mapstructure:"title"`
	Snippet string `json:"snippet" mapstructure:"snippet"`
	Link    string `json:"link" mapstructure:"link"`
	Pagemap struct {
		Metatags []map[string]string `json:"metatags" mapstructure:"metatags"`
	} `json:"pagemap" mapstructure:"pagemap"`
}

// Search runs one query against the Custom Search API and maps the raw items
// into postings. All failures are wrapped in ErrSearchUnavailable so callers
// can skip the query without aborting the session.
func (c *Client) Search(ctx context.Context, query, location string) (*Postings, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("cx", c.engineID)
	q.Set("q", buildQueryText(query, location))
	q.Set("num", strconv.Itoa(c.MaxResults))

	var response struct {
		Items []map[string]any `json:"items"`
	}

	if err := c.getJSON(ctx, c.APIURL, q, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}

	var items []*searchItem
	cfg := &mapstructure.DecoderConfig{
		Result:  &items,
		TagName: "mapstructure",
	}
	decoder, _ := mapstructure.NewDecoder(cfg)
	if err := decoder.Decode(response.Items); err != nil {
		return nil, fmt.Errorf("%w: decode items: %v", ErrSearchUnavailable, err)
	}

	postings := &Postings{}
	for _, item := range items {
		postings.Append(item.toPosting(query))
	}

	c.logger.Debug("custom search completed",
		zap.String("query", query),
		zap.Int("results", postings.Len()),
	)

	return postings, nil
}

func buildQueryText(query, location string) string {
	parts := []string{query}
	if !strings.Contains(strings.ToLower(query), "job") {
		parts = append(parts, "job")
	}
	if location != "" && !strings.Contains(strings.ToLower(query), strings.ToLower(location)) {
		parts = append(parts, location)
	}
	return strings.Join(parts, " ")
}

var applicantsPattern = regexp.MustCompile(`(\d+)\+?\s+applicants?`)

func (s *searchItem) toPosting(sourceQuery string) *Posting {
	title := s.Title
	company := ""

	// Result titles are commonly "Role - Company" or "Role | Company".
	for _, sep := range []string{" - ", " | ", " – "} {
		if idx := strings.LastIndex(title, sep); idx > 0 {
			company = strings.TrimSpace(title[idx+len(sep):])
			title = strings.TrimSpace(title[:idx])
			break
		}
	}

	for _, tags := range s.Pagemap.Metatags {
		if name := strings.TrimSpace(tags["og:site_name"]); name != "" {
			company = name
			break
		}
	}

	applicants := 0
	if m := applicantsPattern.FindStringSubmatch(strings.ToLower(s.Snippet)); m != nil {
		applicants, _ = strconv.Atoi(m[1])
	}

	return &Posting{
		Title:          title,
		Company:        company,
		Description:    s.Snippet,
		ApplicantCount: applicants,
		SourceQuery:    sourceQuery,
	}
}

func (c *Client) getJSON(ctx context.Context, rawURL string, q url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)
	req.URL.RawQuery = q.Encode()

	c.logger.Debug("make request", zap.String("url", req.URL.Redacted()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	if target == nil {
		return nil
	}

	return json.Unmarshal(data, target)
}
