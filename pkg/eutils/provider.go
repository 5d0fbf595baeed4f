// Package eutils harvests PMC articles through the NCBI E-utilities:
// esearch over PubMed with a history session, elink from PubMed to PMC in
// batches, and efetch for each PMC document.
package eutils

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"pmcharvest/pkg/config"
	errs "pmcharvest/pkg/errors"
	"pmcharvest/pkg/logger"
	"pmcharvest/pkg/remote"
	"pmcharvest/pkg/search"
	"pmcharvest/pkg/window"
)

// Name identifies the provider in logs, metrics and directory names
const Name = config.ProviderEUtils

// Session keys set by Count
const (
	sessionWebEnv   = "WebEnv"
	sessionQueryKey = "query_key"
	sessionCount    = "count"
)

// Provider enumerates a window's PMC identifiers via esearch + elink
type Provider struct {
	client      *remote.Client
	baseURL     string
	email       string
	apiKey      string
	topicFilter string
	batchSize   int
	logger      logger.Logger
}

// New creates an E-utilities provider
func New(client *remote.Client, cfg config.EUtilsConfig, log logger.Logger) *Provider {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Provider{
		client:      client,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		email:       cfg.Email,
		apiKey:      cfg.APIKey,
		topicFilter: cfg.TopicFilter,
		batchSize:   cfg.LinkBatchSize,
		logger:      log.WithField("provider", Name),
	}
}

func (p *Provider) Name() string        { return Name }
func (p *Provider) Style() search.Style { return search.Enumerate }

// Begin is the retstart offset of the first link batch
func (p *Provider) Begin() string { return "0" }

// BuildQuery restricts the topic filter to the publication dates of w
func (p *Provider) BuildQuery(w window.TimeWindow) search.Query {
	term := fmt.Sprintf(`%s AND ("%s"[PDAT] : "%s"[PDAT])`,
		p.topicFilter,
		w.FirstDay().Format("2006/01/02"),
		w.LastDay().Format("2006/01/02"),
	)
	return search.Query{Window: w, Term: term}
}

func (p *Provider) params(extra url.Values) url.Values {
	if p.email != "" {
		extra.Set("email", p.email)
	}
	if p.apiKey != "" {
		extra.Set("api_key", p.apiKey)
	}
	return extra
}

// Count runs esearch with usehistory and returns the query carrying the session
func (p *Provider) Count(ctx context.Context, q search.Query) (int, search.Query, error) {
	params := p.params(url.Values{
		"db":         {"pubmed"},
		"term":       {q.Term},
		"usehistory": {"y"},
		"retmode":    {"json"},
		"retmax":     {"0"},
	})

	var resp esearchResponse
	if err := p.client.GetJSON(ctx, p.baseURL+"/esearch.fcgi", params, &resp); err != nil {
		return 0, q, fmt.Errorf("esearch %s: %w", q.Window, err)
	}

	count, err := strconv.Atoi(strings.TrimSpace(resp.Result.Count))
	if err != nil {
		return 0, q, fmt.Errorf("esearch %s: %w", q.Window,
			errs.New(errs.ErrorTypeParsing, 200, "invalid count %q", resp.Result.Count))
	}
	if count > 0 && (resp.Result.WebEnv == "" || resp.Result.QueryKey == "") {
		return 0, q, fmt.Errorf("esearch %s: %w", q.Window,
			errs.New(errs.ErrorTypeParsing, 200, "history session missing from response"))
	}

	q.Session = map[string]string{
		sessionWebEnv:   resp.Result.WebEnv,
		sessionQueryKey: resp.Result.QueryKey,
		sessionCount:    strconv.Itoa(count),
	}
	return count, q, nil
}

// Page links one batch of PubMed hits, starting at offset cursor, to PMC identifiers
func (p *Provider) Page(ctx context.Context, q search.Query, cursor string) (search.Page, error) {
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return search.Page{}, errs.New(errs.ErrorTypePermanent, 0, "invalid batch offset %q", cursor)
	}
	total, err := strconv.Atoi(q.Session[sessionCount])
	if err != nil {
		return search.Page{}, errs.New(errs.ErrorTypePermanent, 0, "query has no esearch session")
	}
	if offset >= total {
		return search.Page{}, nil
	}

	params := p.params(url.Values{
		"dbfrom":    {"pubmed"},
		"db":        {"pmc"},
		"linkname":  {"pubmed_pmc"},
		"query_key": {q.Session[sessionQueryKey]},
		"WebEnv":    {q.Session[sessionWebEnv]},
		"retstart":  {strconv.Itoa(offset)},
		"retmax":    {strconv.Itoa(p.batchSize)},
		"retmode":   {"json"},
	})

	var resp elinkResponse
	if err := p.client.GetJSON(ctx, p.baseURL+"/elink.fcgi", params, &resp); err != nil {
		return search.Page{}, fmt.Errorf("elink %s at offset %d: %w", q.Window, offset, err)
	}

	var page search.Page
	for _, set := range resp.LinkSets {
		for _, db := range set.LinkSetDBs {
			for _, link := range db.Links {
				if link != "" {
					page.Records = append(page.Records, search.Record{ID: string(link)})
				}
			}
		}
	}
	if next := offset + p.batchSize; next < total {
		page.Next = strconv.Itoa(next)
	}

	p.logger.DebugWithFields("link batch fetched", map[string]interface{}{
		"window": q.Window.String(),
		"offset": offset,
		"links":  len(page.Records),
	})
	return page, nil
}

// FetchDocument retrieves the PMC XML for one identifier via efetch
func (p *Provider) FetchDocument(ctx context.Context, id string) ([]byte, error) {
	params := p.params(url.Values{
		"db":      {"pmc"},
		"id":      {id},
		"retmode": {"xml"},
	})
	return p.client.Get(ctx, p.baseURL+"/efetch.fcgi", params)
}
