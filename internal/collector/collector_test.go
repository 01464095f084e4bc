package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jihyekim/newsharvest/internal/config"
	"github.com/jihyekim/newsharvest/internal/fetcher"
	"github.com/jihyekim/newsharvest/internal/normalize"
	"github.com/jihyekim/newsharvest/internal/resolver"
	"github.com/jihyekim/newsharvest/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDeps(t *testing.T) Deps {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Collection.RequestDelay = 0
	cfg.Collection.APIDelay = 0
	cfg.Collection.MaxRetries = 0
	cfg.Collection.RetryDelay = time.Millisecond

	client, err := fetcher.New(cfg, testLogger())
	if err != nil {
		t.Fatalf("fetcher.New: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return Deps{
		Config:     cfg,
		Client:     client,
		Normalizer: normalize.New(cfg.Normalizer.TrackingParams),
		Logger:     testLogger(),
	}
}

func htmlDescriptor(key, endpoint string) types.Descriptor {
	return types.Descriptor{
		Key:         key,
		DisplayName: key,
		Kind:        types.KindHTML,
		Endpoint:    endpoint,
		Enabled:     true,
		Extra: map[string]any{
			"item":  "ul.list li",
			"title": "a",
			"date":  ".date",
		},
	}
}

func listingPage(rows ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><ul class=\"list\">")
	for _, row := range rows {
		b.WriteString(row)
	}
	b.WriteString("</ul></body></html>")
	return b.String()
}

func listingRow(href, title, date string) string {
	return fmt.Sprintf(`<li><a href=%q>%s</a><span class="date">%s</span></li>`, href, title, date)
}

func TestHTMLCollectorPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, listingPage(
				listingRow("/news/1", "첫번째 기사", "2026-08-20"),
				listingRow("/news/2", "두번째 기사", "2026-08-19"),
			))
		case "2":
			fmt.Fprint(w, listingPage(
				listingRow("/news/3", "세번째 기사", "2026-08-18"),
			))
		default:
			fmt.Fprint(w, listingPage())
		}
	}))
	defer srv.Close()

	c := NewHTML(testDeps(t))
	src := htmlDescriptor("foodnews", srv.URL+"/list?page={page}")
	req := &types.CollectionRequest{Mode: types.ModeScrape, Limit: 2}

	result := c.Collect(context.Background(), src, req)
	if result.Failed() {
		t.Fatalf("structural error: %v", result.Structural)
	}
	if result.PagesVisited != 2 {
		t.Errorf("pages visited = %d, want 2", result.PagesVisited)
	}
	if len(result.Articles) != 3 {
		t.Fatalf("articles = %d, want 3", len(result.Articles))
	}
	if got := result.Articles[0].Link; got != srv.URL+"/news/1" {
		t.Errorf("link = %q", got)
	}
	if result.Articles[0].PublishedAt == nil {
		t.Error("published date not parsed")
	}
	if result.Articles[0].SourceKey != "foodnews" {
		t.Errorf("source key = %q", result.Articles[0].SourceKey)
	}
}

func TestHTMLCollectorStopsOnEmptyPages(t *testing.T) {
	var pagesServed atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed.Add(1)
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, listingPage(listingRow("/news/1", "기사", "2026-08-20")))
			return
		}
		fmt.Fprint(w, listingPage())
	}))
	defer srv.Close()

	c := NewHTML(testDeps(t))
	src := htmlDescriptor("foodnews", srv.URL+"/list?page={page}")
	// No limit, no page count: pagination runs until the empty-page guard.
	result := c.Collect(context.Background(), src, &types.CollectionRequest{Mode: types.ModeScrape})

	if len(result.Articles) != 1 {
		t.Fatalf("articles = %d, want 1", len(result.Articles))
	}
	if result.PagesVisited != 3 {
		t.Errorf("pages visited = %d, want 3 (one full, two empty)", result.PagesVisited)
	}
}

func TestHTMLCollectorFirstPageFailureIsStructural(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTML(testDeps(t))
	src := htmlDescriptor("foodnews", srv.URL+"/list?page={page}")
	result := c.Collect(context.Background(), src, &types.CollectionRequest{Mode: types.ModeScrape, Limit: 1})

	if !result.Failed() {
		t.Fatal("expected structural failure")
	}
	var srcErr *types.SourceError
	if !errors.As(result.Structural, &srcErr) {
		t.Fatalf("structural = %T, want *types.SourceError", result.Structural)
	}
	if types.IsFatal(result.Structural) {
		t.Error("source failure must not be fatal")
	}
}

func TestHTMLCollectorRowWithoutLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingPage(
			`<li><span>링크 없는 행</span></li>`,
			listingRow("/news/1", "정상 기사", "2026-08-20"),
		))
	}))
	defer srv.Close()

	c := NewHTML(testDeps(t))
	src := htmlDescriptor("foodnews", srv.URL+"/list?page={page}")
	result := c.Collect(context.Background(), src, &types.CollectionRequest{Mode: types.ModeScrape, Limit: 1})

	if len(result.Articles) != 1 {
		t.Fatalf("articles = %d, want 1", len(result.Articles))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("item errors = %d, want 1", len(result.Errors))
	}
	if !errors.Is(result.Errors[0], types.ErrLinkNotFound) {
		t.Errorf("item error = %v, want ErrLinkNotFound", result.Errors[0])
	}
}

func TestHTMLCollectorBodyFetchBestEffort(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingPage(
			listingRow("/news/ok", "본문 있는 기사", "2026-08-20"),
			listingRow("/news/broken", "본문 없는 기사", "2026-08-19"),
		))
	})
	mux.HandleFunc("/news/ok", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><article>본문 내용입니다.</article></body></html>`)
	})
	mux.HandleFunc("/news/broken", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewHTML(testDeps(t))
	src := htmlDescriptor("foodnews", srv.URL+"/list")
	result := c.Collect(context.Background(), src, &types.CollectionRequest{
		Mode: types.ModeScrape, Limit: 1, IncludeContent: true,
	})

	if len(result.Articles) != 2 {
		t.Fatalf("articles = %d, want 2 (broken body keeps its row)", len(result.Articles))
	}
	if got := result.Articles[0].BodyText; got != "본문 내용입니다." {
		t.Errorf("body = %q", got)
	}
	if result.Articles[1].BodyText != "" {
		t.Errorf("broken article body = %q, want empty", result.Articles[1].BodyText)
	}
	if len(result.Errors) != 1 {
		t.Errorf("item errors = %d, want 1", len(result.Errors))
	}
}

func rssFeed(n int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>보도자료</title>`)
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<item><title>공지 %d</title><link>https://mohw.go.kr/board/%d</link><description>&lt;b&gt;내용&lt;/b&gt; %d</description><pubDate>%s</pubDate></item>`,
			i, i, i, base.Add(time.Duration(i)*time.Hour).Format(time.RFC1123Z))
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func TestFeedCollectorLimitNewestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFeed(50))
	}))
	defer srv.Close()

	c := NewFeed(testDeps(t))
	src := types.Descriptor{Key: "mohw", DisplayName: "보건복지부", Kind: types.KindFeed, Endpoint: srv.URL, Enabled: true}
	result := c.Collect(context.Background(), src, &types.CollectionRequest{Mode: types.ModeFeed, Limit: 5})

	if result.Failed() {
		t.Fatalf("structural error: %v", result.Structural)
	}
	if len(result.Articles) != 5 {
		t.Fatalf("articles = %d, want 5", len(result.Articles))
	}
	// Item 49 has the latest pubDate.
	if got := result.Articles[0].Link; got != "https://mohw.go.kr/board/49" {
		t.Errorf("first link = %q, want newest entry", got)
	}
	if got := result.Articles[0].Summary; got != "내용 49" {
		t.Errorf("summary = %q, want markup stripped", got)
	}
}

func TestFeedCollectorEmptyFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>빈 피드</title></channel></rss>`)
	}))
	defer srv.Close()

	c := NewFeed(testDeps(t))
	src := types.Descriptor{Key: "mohw", Kind: types.KindFeed, Endpoint: srv.URL, Enabled: true}
	result := c.Collect(context.Background(), src, &types.CollectionRequest{Mode: types.ModeFeed})

	if !errors.Is(result.Structural, types.ErrEmptyFeed) {
		t.Fatalf("structural = %v, want ErrEmptyFeed", result.Structural)
	}
	if types.IsFatal(result.Structural) {
		t.Error("empty feed must not be fatal")
	}
}

func keywordDescriptor() types.Descriptor {
	return types.Descriptor{
		Key:         "food",
		DisplayName: "식품",
		Kind:        types.KindKeyword,
		Enabled:     true,
		Extra:       map[string]any{"keywords": []string{"식품안전"}},
	}
}

func TestKeywordCollectorMissingCredentials(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		fmt.Fprint(w, `{"total":0,"items":[]}`)
	}))
	defer srv.Close()

	deps := testDeps(t)
	deps.Config.Keyword.BaseURL = srv.URL
	deps.Config.Keyword.ClientID = ""
	deps.Config.Keyword.ClientSecret = ""

	c := NewKeyword(deps)
	result := c.Collect(context.Background(), keywordDescriptor(), &types.CollectionRequest{Mode: types.ModeKeyword})

	var credErr *types.CredentialError
	if !errors.As(result.Structural, &credErr) {
		t.Fatalf("structural = %v, want *types.CredentialError", result.Structural)
	}
	if !types.IsFatal(result.Structural) {
		t.Error("credential error must be fatal")
	}
	if requests.Load() != 0 {
		t.Errorf("API requests = %d, want 0 (fail before any request)", requests.Load())
	}
}

func TestKeywordCollectorSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Naver-Client-Id") != "id" || r.Header.Get("X-Naver-Client-Secret") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		now := time.Now()
		fmt.Fprintf(w, `{"total":3,"start":1,"display":3,"items":[
			{"title":"<b>식품안전</b> 기준 강화","originallink":"https://paper.example.com/a1","link":"https://news.naver.com/a1","description":"요약 <b>하나</b>","pubDate":%q},
			{"title":"두번째","originallink":"","link":"https://news.naver.com/a2","description":"요약 둘","pubDate":%q},
			{"title":"오래된 기사","originallink":"https://paper.example.com/a3","link":"https://news.naver.com/a3","description":"요약 셋","pubDate":%q}
		]}`,
			now.Format(time.RFC1123Z),
			now.Add(-time.Hour).Format(time.RFC1123Z),
			now.AddDate(0, 0, -30).Format(time.RFC1123Z))
	}))
	defer srv.Close()

	deps := testDeps(t)
	deps.Config.Keyword.BaseURL = srv.URL
	deps.Config.Keyword.ClientID = "id"
	deps.Config.Keyword.ClientSecret = "secret"
	deps.Config.Keyword.DaysFilter = 7
	deps.Config.Keyword.PageSize = 10

	c := NewKeyword(deps)
	result := c.Collect(context.Background(), keywordDescriptor(), &types.CollectionRequest{Mode: types.ModeKeyword, Limit: 10})

	if result.Failed() {
		t.Fatalf("structural error: %v", result.Structural)
	}
	// The 30-day-old third item falls outside the recency window.
	if len(result.Articles) != 2 {
		t.Fatalf("articles = %d, want 2", len(result.Articles))
	}
	first := result.Articles[0]
	if first.Title != "식품안전 기준 강화" {
		t.Errorf("title = %q, want highlight markup stripped", first.Title)
	}
	if first.Link != "https://paper.example.com/a1" {
		t.Errorf("link = %q, want publisher URL preferred", first.Link)
	}
	if first.OriginalLink != "https://news.naver.com/a1" {
		t.Errorf("original link = %q, want aggregator copy kept", first.OriginalLink)
	}
	if first.Keyword != "식품안전" {
		t.Errorf("keyword = %q", first.Keyword)
	}
	second := result.Articles[1]
	if second.Link != "https://news.naver.com/a2" {
		t.Errorf("second link = %q, want aggregator fallback", second.Link)
	}
}

func TestKeywordCollectorRejectedCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	deps := testDeps(t)
	deps.Config.Keyword.BaseURL = srv.URL
	deps.Config.Keyword.ClientID = "bad"
	deps.Config.Keyword.ClientSecret = "bad"

	c := NewKeyword(deps)
	result := c.Collect(context.Background(), keywordDescriptor(), &types.CollectionRequest{Mode: types.ModeKeyword})

	var credErr *types.CredentialError
	if !errors.As(result.Structural, &credErr) {
		t.Fatalf("structural = %v, want *types.CredentialError", result.Structural)
	}
}

// fakeProvider scripts the rendered browser for document-mode tests.
type fakeProvider struct {
	session  *scriptedSession
	sessions atomic.Int64
}

func (p *fakeProvider) NewSession(_ context.Context) (resolver.Session, error) {
	p.sessions.Add(1)
	return p.session, nil
}

func (p *fakeProvider) Close() error { return nil }

type scriptedSession struct {
	pages  map[string]string
	frames map[string]string
	texts  map[string]string
	url    string
}

func (s *scriptedSession) Open(_ context.Context, url string) error {
	s.url = url
	return nil
}

func (s *scriptedSession) HTML() (string, error) { return s.pages[s.url], nil }

func (s *scriptedSession) FindFrame(match func(string) bool) (string, bool, error) {
	if src, ok := s.frames[s.url]; ok && match(src) {
		return src, true, nil
	}
	return "", false, nil
}

func (s *scriptedSession) WaitReady(context.Context, time.Duration) error { return nil }

func (s *scriptedSession) ExtractText(context.Context) (string, error) { return s.texts[s.url], nil }

func (s *scriptedSession) Close() error { return nil }

func TestDocumentCollector(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/board", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingPage(
			listingRow("/view?id=1", "고시 제2026-1호", "2026-08-20"),
			listingRow("/view?id=2", "첨부 없는 게시글", "2026-08-19"),
		))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	preview := srv.URL + "/docviewer/skin/doc.html?fn=n1.hwpx"
	session := &scriptedSession{
		pages: map[string]string{
			srv.URL + "/view?id=1": fmt.Sprintf(`<html><body><iframe src=%q></iframe></body></html>`, preview),
			srv.URL + "/view?id=2": `<html><body><p>첨부파일이 없습니다.</p></body></html>`,
		},
		texts: map[string]string{preview: "고시 본문 전체 내용"},
	}
	provider := &fakeProvider{session: session}

	deps := testDeps(t)
	deps.NewProvider = func(config.BrowserConfig, *slog.Logger) (resolver.Provider, error) {
		return provider, nil
	}

	src := htmlDescriptor("kca", srv.URL+"/board")
	src.Kind = types.KindDocument

	c := NewDocument(deps)
	result := c.Collect(context.Background(), src, &types.CollectionRequest{
		Mode: types.ModeDocument, Limit: 1, IncludeContent: true, Headless: true,
	})

	if result.Failed() {
		t.Fatalf("structural error: %v", result.Structural)
	}
	if len(result.Articles) != 1 {
		t.Fatalf("articles = %d, want 1", len(result.Articles))
	}
	if got := result.Articles[0].BodyText; got != "고시 본문 전체 내용" {
		t.Errorf("body = %q", got)
	}
	if got := result.Articles[0].Raw["previewUrl"]; got != preview {
		t.Errorf("previewUrl = %v", got)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("item errors = %d, want 1", len(result.Errors))
	}
	if !errors.Is(result.Errors[0], types.ErrLinkNotFound) {
		t.Errorf("item error = %v, want ErrLinkNotFound", result.Errors[0])
	}
	if got := provider.sessions.Load(); got != 1 {
		t.Errorf("sessions opened = %d, want 1 (run scope)", got)
	}
}

func TestDocumentCollectorExtractionFailureKeepsArticle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/board", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingPage(listingRow("/view?id=1", "본문이 비는 고시", "2026-08-20")))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	preview := srv.URL + "/docviewer/skin/doc.html?fn=empty.hwpx"
	// No entry in texts: the viewer renders but yields an empty body.
	session := &scriptedSession{
		pages: map[string]string{
			srv.URL + "/view?id=1": fmt.Sprintf(`<html><body><iframe src=%q></iframe></body></html>`, preview),
		},
	}

	deps := testDeps(t)
	deps.NewProvider = func(config.BrowserConfig, *slog.Logger) (resolver.Provider, error) {
		return &fakeProvider{session: session}, nil
	}

	src := htmlDescriptor("kca", srv.URL+"/board")
	src.Kind = types.KindDocument

	c := NewDocument(deps)
	result := c.Collect(context.Background(), src, &types.CollectionRequest{
		Mode: types.ModeDocument, Limit: 1, IncludeContent: true, Headless: true,
	})

	if len(result.Articles) != 1 {
		t.Fatalf("articles = %d, want 1 (extraction failure keeps the article)", len(result.Articles))
	}
	if result.Articles[0].BodyText != "" {
		t.Errorf("body = %q, want empty", result.Articles[0].BodyText)
	}
	if len(result.Errors) != 1 || !errors.Is(result.Errors[0], types.ErrExtraction) {
		t.Fatalf("item errors = %v, want one ErrExtraction", result.Errors)
	}
}

func TestDocumentCollectorPreviewOnly(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/board", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingPage(listingRow("/view?id=1", "고시", "2026-08-20")))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	preview := srv.URL + "/docviewer/skin/doc.html?fn=n1.hwpx"
	session := &scriptedSession{
		pages: map[string]string{
			srv.URL + "/view?id=1": fmt.Sprintf(`<html><body><iframe src=%q></iframe></body></html>`, preview),
		},
	}

	deps := testDeps(t)
	deps.NewProvider = func(config.BrowserConfig, *slog.Logger) (resolver.Provider, error) {
		return &fakeProvider{session: session}, nil
	}

	src := htmlDescriptor("kca", srv.URL+"/board")
	src.Kind = types.KindDocument

	c := NewDocument(deps)
	result := c.Collect(context.Background(), src, &types.CollectionRequest{
		Mode: types.ModeDocument, Limit: 1, IncludeContent: false, Headless: true,
	})

	if len(result.Articles) != 1 {
		t.Fatalf("articles = %d, want 1", len(result.Articles))
	}
	article := result.Articles[0]
	if article.BodyText != "" {
		t.Errorf("body = %q, want empty without content", article.BodyText)
	}
	if article.Raw["previewUrl"] != preview {
		t.Errorf("previewUrl = %v", article.Raw["previewUrl"])
	}
	if _, ok := article.Raw["viewerFrameUrl"]; ok {
		t.Error("viewer frame recorded despite preview-only resolution")
	}
}
