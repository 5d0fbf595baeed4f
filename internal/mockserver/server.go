// Package mockserver emulates the Europe PMC and NCBI E-utilities endpoints for tests.
package mockserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"pmcharvest/pkg/window"
)

// Paths served, relative to the server URL
const (
	EuropePMCSearchPath = "/europepmc/search"
	ESearchPath         = "/eutils/esearch.fcgi"
	ELinkPath           = "/eutils/elink.fcgi"
	EFetchPath          = "/eutils/efetch.fcgi"
)

var (
	firstPDate = regexp.MustCompile(`FIRST_PDATE:\[(\d{4})-(\d{2})-01`)
	pubDate    = regexp.MustCompile(`"(\d{4})/(\d{2})/01"\[PDAT\]`)
	fullText   = regexp.MustCompile(`^/europepmc/([^/]+)/fullTextXML$`)
)

// Article is one record known to the mock services
type Article struct {
	ID       string
	Title    string
	Abstract string
	// Body overrides the generated document
	Body []byte
}

// Document returns the XML served for a, padded past every size threshold
func (a Article) Document() []byte {
	if a.Body != nil {
		return a.Body
	}
	return []byte(fmt.Sprintf("<article id=%q><front><title>%s</title></front><body>%s</body></article>",
		a.ID, a.Title, strings.Repeat("lorem ipsum ", 120)))
}

// Server is an httptest server with per-window fixtures and fault injection
type Server struct {
	server *httptest.Server

	mu       sync.Mutex
	europe   map[window.TimeWindow][]Article
	stalled  map[window.TimeWindow]bool
	links    map[window.TimeWindow][]string
	docs     map[string]Article
	faults   map[string][]int
	requests map[string]int
	total    int32
}

// New starts a mock server; call Close when done
func New() *Server {
	s := &Server{
		europe:   make(map[window.TimeWindow][]Article),
		stalled:  make(map[window.TimeWindow]bool),
		links:    make(map[window.TimeWindow][]string),
		docs:     make(map[string]Article),
		faults:   make(map[string][]int),
		requests: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(EuropePMCSearchPath, s.handleEuropeSearch)
	mux.HandleFunc("/europepmc/", s.handleFullText)
	mux.HandleFunc(ESearchPath, s.handleESearch)
	mux.HandleFunc(ELinkPath, s.handleELink)
	mux.HandleFunc(EFetchPath, s.handleEFetch)

	s.server = httptest.NewServer(s.intercept(mux))
	return s
}

// Close shuts down the server
func (s *Server) Close() {
	s.server.Close()
}

// EuropePMCURL is the base URL for the Europe PMC provider
func (s *Server) EuropePMCURL() string {
	return s.server.URL + "/europepmc"
}

// EUtilsURL is the base URL for the E-utilities provider
func (s *Server) EUtilsURL() string {
	return s.server.URL + "/eutils"
}

// AddEuropePMC registers search hits for w, in result order
func (s *Server) AddEuropePMC(w window.TimeWindow, articles ...Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.europe[w] = append(s.europe[w], articles...)
	for _, a := range articles {
		if a.ID != "" {
			s.docs[a.ID] = a
		}
	}
}

// StallEuropePMC makes the last non-empty page of w repeat the cursor it was
// given instead of pointing at an empty final page
func (s *Server) StallEuropePMC(w window.TimeWindow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stalled[w] = true
}

// AddEUtils registers PubMed hits for w. Each entry is the PMC id the hit links
// to; repeats model several PubMed records linking to one PMC article.
func (s *Server) AddEUtils(w window.TimeWindow, articles ...Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range articles {
		s.links[w] = append(s.links[w], a.ID)
		s.docs[a.ID] = a
	}
}

// Fail queues status codes returned, in order, by the next requests to path.
// path is either a request path or "/europepmc/fullText" for every full text request.
func (s *Server) Fail(path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[path] = append(s.faults[path], statuses...)
}

// Requests counts requests received for path
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// TotalRequests counts every request received
func (s *Server) TotalRequests() int {
	return int(atomic.LoadInt32(&s.total))
}

func faultKey(path string) string {
	if fullText.MatchString(path) {
		return "/europepmc/fullText"
	}
	return path
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.total, 1)
		key := faultKey(r.URL.Path)

		s.mu.Lock()
		s.requests[key]++
		var status int
		if queued := s.faults[key]; len(queued) > 0 {
			status, s.faults[key] = queued[0], queued[1:]
		}
		s.mu.Unlock()

		if status != 0 && status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(http.StatusText(status)))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func windowFrom(re *regexp.Regexp, term string) (window.TimeWindow, bool) {
	m := re.FindStringSubmatch(term)
	if m == nil {
		return window.TimeWindow{}, false
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	return window.New(y, mo), true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Europe PMC cursors are "c<offset>"; the final page repeats the cursor it was given
func (s *Server) handleEuropeSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	win, ok := windowFrom(firstPDate, q.Get("query"))
	if !ok {
		http.Error(w, "missing FIRST_PDATE range", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	hits := append([]Article(nil), s.europe[win]...)
	stalled := s.stalled[win]
	s.mu.Unlock()

	if q.Get("resultType") == "idlist" {
		writeJSON(w, map[string]interface{}{"hitCount": len(hits)})
		return
	}

	cursor := q.Get("cursorMark")
	offset := 0
	if cursor != "*" {
		n, err := strconv.Atoi(strings.TrimPrefix(cursor, "c"))
		if err != nil {
			http.Error(w, "bad cursorMark", http.StatusBadRequest)
			return
		}
		offset = n
	}
	size, _ := strconv.Atoi(q.Get("pageSize"))
	if size <= 0 {
		size = 25
	}

	end := min(offset+size, len(hits))
	offset = min(offset, end)
	results := make([]map[string]string, 0, end-offset)
	for _, a := range hits[offset:end] {
		row := map[string]string{"title": a.Title, "abstractText": a.Abstract}
		if a.ID != "" {
			row["pmcid"] = a.ID
		}
		results = append(results, row)
	}

	next := cursor
	if end > offset && !(stalled && end == len(hits)) {
		next = "c" + strconv.Itoa(end)
	}
	writeJSON(w, map[string]interface{}{
		"hitCount":       len(hits),
		"nextCursorMark": next,
		"resultList":     map[string]interface{}{"result": results},
	})
}

func (s *Server) handleFullText(w http.ResponseWriter, r *http.Request) {
	m := fullText.FindStringSubmatch(r.URL.Path)
	if m == nil {
		http.NotFound(w, r)
		return
	}
	s.serveDocument(w, r, m[1])
}

func (s *Server) serveDocument(w http.ResponseWriter, r *http.Request, id string) {
	s.mu.Lock()
	a, ok := s.docs[id]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(a.Document())
}

func (s *Server) handleESearch(w http.ResponseWriter, r *http.Request) {
	win, ok := windowFrom(pubDate, r.URL.Query().Get("term"))
	if !ok {
		http.Error(w, "missing PDAT range", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	count := len(s.links[win])
	s.mu.Unlock()

	writeJSON(w, map[string]interface{}{
		"esearchresult": map[string]string{
			"count":    strconv.Itoa(count),
			"webenv":   "MCID_" + win.String(),
			"querykey": "1",
		},
	})
}

func (s *Server) handleELink(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	win, err := window.Parse(strings.TrimPrefix(q.Get("WebEnv"), "MCID_"))
	if err != nil || q.Get("query_key") != "1" {
		http.Error(w, "unknown history session", http.StatusBadRequest)
		return
	}
	start, _ := strconv.Atoi(q.Get("retstart"))
	size, _ := strconv.Atoi(q.Get("retmax"))

	s.mu.Lock()
	all := append([]string(nil), s.links[win]...)
	s.mu.Unlock()

	end := min(start+size, len(all))
	start = min(start, end)
	writeJSON(w, map[string]interface{}{
		"linksets": []interface{}{
			map[string]interface{}{
				"linksetdbs": []interface{}{
					map[string]interface{}{"linkname": "pubmed_pmc", "links": all[start:end]},
				},
			},
		},
	})
}

func (s *Server) handleEFetch(w http.ResponseWriter, r *http.Request) {
	s.serveDocument(w, r, r.URL.Query().Get("id"))
}
