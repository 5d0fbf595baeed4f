// Package europepmc harvests open access full text from the Europe PMC REST API.
package europepmc

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"pmcharvest/pkg/config"
	"pmcharvest/pkg/logger"
	"pmcharvest/pkg/remote"
	"pmcharvest/pkg/search"
	"pmcharvest/pkg/window"
)

// Name identifies the provider in logs, metrics and directory names
const Name = config.ProviderEuropePMC

// BeginCursor starts a fresh cursorMark pagination
const BeginCursor = "*"

// Provider pages through rest/search with cursorMark and fetches fullTextXML
type Provider struct {
	client      *remote.Client
	baseURL     string
	pageSize    int
	topicFilter string
	logger      logger.Logger
}

// New creates a Europe PMC provider
func New(client *remote.Client, cfg config.EuropePMCConfig, log logger.Logger) *Provider {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Provider{
		client:      client,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		pageSize:    cfg.PageSize,
		topicFilter: cfg.TopicFilter,
		logger:      log.WithField("provider", Name),
	}
}

func (p *Provider) Name() string        { return Name }
func (p *Provider) Style() search.Style { return search.Cursor }
func (p *Provider) Begin() string       { return BeginCursor }

// BuildQuery restricts the topic filter to open access articles first published in w
func (p *Provider) BuildQuery(w window.TimeWindow) search.Query {
	term := fmt.Sprintf("%s AND (FIRST_PDATE:[%s TO %s]) AND (OPEN_ACCESS:Y)",
		p.topicFilter,
		w.FirstDay().Format("2006-01-02"),
		w.LastDay().Format("2006-01-02"),
	)
	return search.Query{Window: w, Term: term}
}

// Count asks for the hit count only
func (p *Provider) Count(ctx context.Context, q search.Query) (int, search.Query, error) {
	params := url.Values{
		"query":      {q.Term},
		"resultType": {"idlist"},
		"format":     {"json"},
		"pageSize":   {"1"},
	}

	var resp searchResponse
	if err := p.client.GetJSON(ctx, p.baseURL+"/search", params, &resp); err != nil {
		return 0, q, fmt.Errorf("count %s: %w", q.Window, err)
	}
	return resp.HitCount, q, nil
}

// Page fetches one page of core results starting at cursor
func (p *Provider) Page(ctx context.Context, q search.Query, cursor string) (search.Page, error) {
	params := url.Values{
		"query":      {q.Term},
		"resultType": {"core"},
		"cursorMark": {cursor},
		"pageSize":   {strconv.Itoa(p.pageSize)},
		"format":     {"json"},
	}

	var resp searchResponse
	if err := p.client.GetJSON(ctx, p.baseURL+"/search", params, &resp); err != nil {
		return search.Page{}, fmt.Errorf("page %s at cursor %s: %w", q.Window, cursor, err)
	}

	page := search.Page{
		Records: make([]search.Record, 0, len(resp.ResultList.Result)),
		Next:    resp.NextCursorMark,
	}
	for _, art := range resp.ResultList.Result {
		page.Records = append(page.Records, search.Record{
			ID:       art.PMCID,
			Title:    art.Title,
			Abstract: art.AbstractText,
		})
	}

	p.logger.DebugWithFields("page fetched", map[string]interface{}{
		"window":  q.Window.String(),
		"cursor":  cursor,
		"records": len(page.Records),
		"next":    page.Next,
	})
	return page, nil
}

// FetchDocument downloads the JATS full text of a PMC article
func (p *Provider) FetchDocument(ctx context.Context, id string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/%s/fullTextXML", p.baseURL, url.PathEscape(id))
	return p.client.Get(ctx, endpoint, nil)
}
