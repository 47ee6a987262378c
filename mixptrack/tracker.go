// Package mixptrack binds declarative data-mixp-* attributes on web pages
// to analytics calls. Each attached page gets a session: a document, a
// sink, an identity and a ledger of bound elements, rescanned on a fixed
// cadence so that content inserted after load is picked up.
//
// Pages are reached either over plain HTTP (static HTML parsed in memory)
// or through a live Chrome tab, in which case the page's own mixpanel
// object can receive the calls.
package mixptrack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/mixptrack/mixptrack/internal/attrs"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/binder"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/browser"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/config"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/dom"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/fetcher"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/htmldoc"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/journal"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/scan"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/sink"
)

// ErrUnknownPage is returned for operations on a page id with no session.
var ErrUnknownPage = errors.New("mixptrack: unknown page")

// ErrAlreadyAttached is returned when attaching a page id twice.
var ErrAlreadyAttached = errors.New("mixptrack: page already attached")

// Tracker is the top-level orchestrator. It owns the browser, the
// configured sinks and one session per attached page.
type Tracker struct {
	cfg      *config.Config
	mgr      *browser.Manager
	fetch    *fetcher.Fetcher
	sinks    []sink.Sink
	inPage   bool
	sanitize *attrs.Sanitizer
	journal  *journal.Store

	startMu  sync.Mutex // serialises browser launch
	mu       sync.Mutex
	sessions map[string]*pageSession
	recycled []config.PageConfig
	base     context.Context
	logger   *slog.Logger
}

type pageSession struct {
	cfg    config.PageConfig
	mode   string
	binder *binder.Binder
	tab    *browser.Tab
	page   sink.Sink // in-page sink, closed with the session
	cancel context.CancelFunc
	done   chan struct{}
}

// SessionInfo describes an attached page.
type SessionInfo struct {
	binder.Stats
	URL  string `json:"url,omitempty"`
	Mode string `json:"mode"`
}

// New creates a Tracker. sinks receive the calls of every page. Browser
// pages additionally dispatch to the page's own mixpanel object when the
// configuration lists a "page" sink or when no sink is given at all.
func New(cfg *Config, logger *slog.Logger, sinks ...Sink) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	inPage := len(sinks) == 0
	for _, sc := range cfg.Sinks {
		if sc.Type == "page" {
			inPage = true
		}
	}

	fopts := []fetcher.Option{fetcher.WithLogger(logger)}
	if cfg.HTTP.AllowPrivate {
		fopts = append(fopts, fetcher.WithURLValidator(nil))
	}

	t := &Tracker{
		cfg:   cfg,
		fetch: fetcher.New(fopts...),
		mgr: browser.NewManager(browser.Config{
			RemoteURL:        cfg.Browser.Remote,
			MemoryLimit:      cfg.Browser.MemoryLimit,
			RecycleInterval:  cfg.Browser.RecycleInterval,
			ResourceBlocking: cfg.Browser.ResourceBlocking,
			Stealth:          cfg.Browser.Stealth,
			NavTimeout:       cfg.Browser.NavTimeout,
			Logger:           logger,
		}),
		sinks:    sinks,
		inPage:   inPage,
		sessions: make(map[string]*pageSession),
		base:     context.Background(),
		logger:   logger,
	}
	if cfg.Payload.Sanitize {
		t.sanitize = attrs.NewSanitizer()
	}
	return t
}

// SetJournal makes j queryable through Recent and the HTTP API. It does
// not add j as a sink; pass j.Sink() to New for that.
func (t *Tracker) SetJournal(j *Journal) {
	t.mu.Lock()
	t.journal = j
	t.mu.Unlock()
}

// Start launches the browser when a configured page needs one and
// attaches every configured page. Sessions live until ctx is cancelled or
// Stop is called.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	t.base = ctx
	t.mu.Unlock()

	if t.cfg.NeedsBrowser() {
		if err := t.startBrowser(ctx); err != nil {
			return err
		}
	}

	for _, pc := range t.cfg.Pages {
		if err := t.AttachPage(ctx, pc); err != nil {
			t.logger.Error("mixptrack: failed to attach page",
				"id", pc.ID, "url", pc.URL, "error", err)
		}
	}
	return nil
}

func (t *Tracker) startBrowser(ctx context.Context) error {
	t.startMu.Lock()
	defer t.startMu.Unlock()
	if t.mgr.Browser() != nil {
		return nil
	}
	if _, err := t.mgr.Start(ctx); err != nil {
		return fmt.Errorf("mixptrack: start browser: %w", err)
	}
	t.mgr.SetRecycleCallback(&browser.RecycleCallback{
		BeforeRecycle: t.endBrowserSessions,
		AfterRecycle:  func(*rod.Browser) { t.reopenBrowserSessions() },
	})
	return nil
}

// AttachPage loads a page and starts its session. A page whose analytics
// backend is unavailable is left alone: no session, no error.
func (t *Tracker) AttachPage(ctx context.Context, pc PageConfig) error {
	if pc.ID == "" {
		pc.ID = pc.URL
	}
	if pc.Mode == "" {
		pc.Mode = ModeAuto
	}
	if err := t.reserve(pc.ID); err != nil {
		return err
	}

	mode := pc.Mode
	var fetched *fetcher.Result
	if mode == ModeStatic || mode == ModeAuto {
		res, err := t.fetch.Fetch(ctx, pc.URL)
		switch {
		case err != nil && mode == ModeStatic:
			return fmt.Errorf("mixptrack: fetch %s: %w", pc.URL, err)
		case err != nil:
			t.logger.Warn("mixptrack: auto fetch failed, using browser",
				"url", pc.URL, "error", err)
			mode = ModeBrowser
		case mode == ModeAuto && !res.Sufficient:
			t.logger.Info("mixptrack: static HTML insufficient, using browser", "url", pc.URL)
			mode = ModeBrowser
		default:
			mode = ModeStatic
			fetched = res
		}
	}

	if mode == ModeStatic {
		doc, err := htmldoc.Parse(fetched.HTML, htmldoc.WithReferrer(pc.Referrer))
		if err != nil {
			return fmt.Errorf("mixptrack: parse %s: %w", pc.URL, err)
		}
		return t.startSession(ctx, pc, ModeStatic, doc, nil, nil)
	}

	if err := t.startBrowser(ctx); err != nil {
		return err
	}
	tab, err := browser.OpenTab(ctx, t.mgr, pc.URL, pc.ID)
	if err != nil {
		return fmt.Errorf("mixptrack: open tab: %w", err)
	}
	var page sink.Sink
	if t.inPage {
		page = sink.NewPage(tab.Page)
	}
	return t.startSession(ctx, pc, ModeBrowser, tab.Document(), tab, page)
}

// AttachHTML starts a session over raw HTML, as if it had been fetched
// from an URL with the given referrer.
func (t *Tracker) AttachHTML(ctx context.Context, id string, raw []byte, referrer string) error {
	if err := t.reserve(id); err != nil {
		return err
	}
	doc, err := htmldoc.Parse(raw, htmldoc.WithReferrer(referrer))
	if err != nil {
		return fmt.Errorf("mixptrack: parse %s: %w", id, err)
	}
	return t.startSession(ctx, config.PageConfig{ID: id, Mode: ModeStatic, Referrer: referrer},
		ModeStatic, doc, nil, nil)
}

// AttachDocument starts a session over a caller-provided document. extra,
// when non-nil, receives this page's calls alongside the Tracker's sinks
// and is closed when the session ends or when no session starts.
func (t *Tracker) AttachDocument(ctx context.Context, id string, doc Document, extra Sink) error {
	if err := t.reserve(id); err != nil {
		if extra != nil {
			extra.Close()
		}
		return err
	}
	return t.startSession(ctx, config.PageConfig{ID: id, Mode: "document"}, "document", doc, nil, extra)
}

func (t *Tracker) reserve(id string) error {
	if id == "" {
		return fmt.Errorf("mixptrack: page id is required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[id]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyAttached, id)
	}
	return nil
}

func (t *Tracker) startSession(ctx context.Context, pc config.PageConfig, mode string,
	doc dom.Document, tab *browser.Tab, page sink.Sink) error {

	// release frees the page's own resources when no session starts.
	release := func() {
		if page != nil {
			page.Close()
		}
		if tab != nil {
			tab.Close()
		}
	}

	members := slices.Clone(t.sinks)
	if page != nil {
		members = append(members, page)
	}
	if len(members) == 0 {
		release()
		return fmt.Errorf("mixptrack: page %q has no sink", pc.ID)
	}
	var s sink.Sink = members[0]
	if len(members) > 1 {
		s = sink.NewRouter(t.logger, members...)
	}

	if !sink.Available(ctx, s) {
		t.logger.Debug("mixptrack: analytics unavailable, page left unbound", "id", pc.ID)
		release()
		return nil
	}

	session := attrs.NewSession()
	readerOpts := []attrs.Option{attrs.WithLogger(t.logger)}
	if t.sanitize != nil {
		readerOpts = append(readerOpts, attrs.WithSanitizer(t.sanitize))
	}
	b := binder.New(binder.Config{
		PageID:   pc.ID,
		Document: doc,
		Sink:     s,
		Session:  session,
		Reader:   attrs.NewReader(session, readerOpts...),
		Referrer: t.cfg.Payload.Referrer,
		Logger:   t.logger,
	})

	t.mu.Lock()
	if _, ok := t.sessions[pc.ID]; ok {
		t.mu.Unlock()
		release()
		return fmt.Errorf("%w: %q", ErrAlreadyAttached, pc.ID)
	}
	runCtx, cancel := context.WithCancel(t.base)
	ps := &pageSession{
		cfg:    pc,
		mode:   mode,
		binder: b,
		tab:    tab,
		page:   page,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	t.sessions[pc.ID] = ps
	t.mu.Unlock()

	loop := scan.New(b, scan.Config{
		Interval: t.cfg.Scan.Interval,
		Settle:   t.cfg.Scan.Settle,
		Logger:   t.logger,
	})
	go func() {
		defer close(ps.done)
		loop.Run(runCtx)
	}()

	t.logger.Info("mixptrack: page attached", "id", pc.ID, "url", pc.URL, "mode", mode)
	return nil
}

// Detach ends a page session.
func (t *Tracker) Detach(id string) error {
	t.mu.Lock()
	ps, ok := t.sessions[id]
	delete(t.sessions, id)
	t.mu.Unlock()
	if !ok {
		return ErrUnknownPage
	}
	ps.stop()
	return nil
}

func (ps *pageSession) stop() {
	ps.cancel()
	<-ps.done
	if ps.page != nil {
		ps.page.Close()
	}
	if ps.tab != nil {
		ps.tab.Close()
	}
}

// Scan runs one pass on a page immediately and returns how many elements
// it bound.
func (t *Tracker) Scan(ctx context.Context, id string) (int, error) {
	ps, err := t.session(id)
	if err != nil {
		return 0, err
	}
	return ps.binder.Pass(ctx), nil
}

// Send fires the data-mixp-send elements of a page named name.
func (t *Tracker) Send(ctx context.Context, id, name string) (int, error) {
	ps, err := t.session(id)
	if err != nil {
		return 0, err
	}
	return ps.binder.SendNamed(ctx, name)
}

// Sessions lists attached pages ordered by id.
func (t *Tracker) Sessions() []SessionInfo {
	t.mu.Lock()
	list := make([]*pageSession, 0, len(t.sessions))
	for _, ps := range t.sessions {
		list = append(list, ps)
	}
	t.mu.Unlock()

	out := make([]SessionInfo, 0, len(list))
	for _, ps := range list {
		out = append(out, SessionInfo{Stats: ps.binder.Stats(), URL: ps.cfg.URL, Mode: ps.mode})
	}
	slices.SortFunc(out, func(a, b SessionInfo) int { return strings.Compare(a.PageID, b.PageID) })
	return out
}

// Recent returns journaled calls, newest first. pageID "" means all pages.
func (t *Tracker) Recent(ctx context.Context, pageID string, limit int) ([]Call, error) {
	t.mu.Lock()
	j := t.journal
	t.mu.Unlock()
	if j == nil {
		return nil, fmt.Errorf("mixptrack: no journal configured")
	}
	return j.Recent(ctx, pageID, limit)
}

// Stop ends every session, closes the sinks and the browser.
func (t *Tracker) Stop() {
	t.mu.Lock()
	sessions := t.sessions
	t.sessions = make(map[string]*pageSession)
	t.mu.Unlock()

	for id, ps := range sessions {
		ps.stop()
		t.logger.Info("mixptrack: page detached", "id", id)
	}
	for _, s := range t.sinks {
		if err := s.Close(); err != nil {
			t.logger.Warn("mixptrack: close sink", "error", err)
		}
	}
	t.mgr.Close()
}

func (t *Tracker) session(id string) (*pageSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ps, ok := t.sessions[id]
	if !ok {
		return nil, ErrUnknownPage
	}
	return ps, nil
}

// endBrowserSessions runs before Chrome is recycled. Tabs die with the
// process, so their sessions end and are reopened afterwards as new
// sessions with a fresh identity and ledger.
func (t *Tracker) endBrowserSessions() {
	t.mu.Lock()
	var ended []*pageSession
	for id, ps := range t.sessions {
		if ps.tab == nil {
			continue
		}
		ended = append(ended, ps)
		t.recycled = append(t.recycled, ps.cfg)
		delete(t.sessions, id)
	}
	t.mu.Unlock()

	for _, ps := range ended {
		ps.stop()
	}
}

func (t *Tracker) reopenBrowserSessions() {
	t.mu.Lock()
	pages := t.recycled
	t.recycled = nil
	ctx := t.base
	t.mu.Unlock()

	for _, pc := range pages {
		// The page already needed a browser; skip auto detection.
		pc.Mode = ModeBrowser
		if err := t.AttachPage(ctx, pc); err != nil {
			t.logger.Error("mixptrack: reopen page failed", "id", pc.ID, "url", pc.URL, "error", err)
		}
	}
}
