package walk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/babelcloud/navwalk/internal/browserapi"
	"github.com/babelcloud/navwalk/pkg/logger"
)

// ErrFieldMissing is returned in strict mode when a response lacks the field a
// step reads
var ErrFieldMissing = errors.New("response field missing")

const notAvailable = "N/A"

// Config describes one walkthrough.
type Config struct {
	Endpoint         string
	SessionID        string
	Headless         bool
	URLs             []string
	Script           string
	ScreenshotFormat string
	ScreenshotDir    string
	HTMLFormat       string
	HTMLPreview      int
	Strict           bool
	StartSettle      time.Duration
	NavigateSettle   time.Duration
	StartHint        string
}

// NewSessionID derives a session id from the current time
func NewSessionID(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = "test-navigate"
	}
	return fmt.Sprintf("%s-%d", prefix, now.Unix())
}

// Runner executes the walkthrough against an API.
type Runner struct {
	api     API
	cfg     Config
	wait    WaitStrategy
	printer *Printer
	logger  *logger.Logger
	now     func() time.Time
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithPrinter sets the progress printer
func WithPrinter(p *Printer) RunnerOption {
	return func(r *Runner) { r.printer = p }
}

// WithWaitStrategy sets how settle waits are performed
func WithWaitStrategy(w WaitStrategy) RunnerOption {
	return func(r *Runner) { r.wait = w }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner validates cfg and returns a Runner
func NewRunner(api API, cfg Config, opts ...RunnerOption) (*Runner, error) {
	if api == nil {
		return nil, fmt.Errorf("api client is required")
	}
	if cfg.SessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("at least one navigation URL is required")
	}
	for _, u := range cfg.URLs {
		parsed, err := url.Parse(u)
		if err != nil || parsed.Host == "" {
			return nil, fmt.Errorf("invalid navigation URL: %q", u)
		}
	}
	switch cfg.HTMLFormat {
	case "":
		cfg.HTMLFormat = "html"
	case "html", "markdown":
	default:
		return nil, fmt.Errorf("unsupported html format: %s", cfg.HTMLFormat)
	}
	if cfg.ScreenshotFormat == "" {
		cfg.ScreenshotFormat = "png"
	}
	if cfg.HTMLPreview < 0 {
		cfg.HTMLPreview = 0
	}

	r := &Runner{
		api:     api,
		cfg:     cfg,
		wait:    FixedDelay{},
		printer: NewPrinter(nil),
		logger:  logger.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run performs the walkthrough. The report is always returned; err is set when
// the walkthrough did not complete.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	began := r.now()
	report := &Report{
		SessionID: r.cfg.SessionID,
		Endpoint:  r.cfg.Endpoint,
		StartedAt: began,
	}

	r.printer.Banner("HTTP API navigation walkthrough")
	r.logger.Debug("Session %s, wait strategy %s", r.cfg.SessionID, r.wait.Name())

	st := &stepper{runner: r, report: report}

	st.next("Start browser")
	r.printer.Request(http.MethodPost, r.requestURL(browserapi.PathStart, false))
	startBegan := time.Now()

	cleanedUp, err := WithSession(ctx, r.api, r.cfg.SessionID, r.cfg.Headless,
		func(resp *browserapi.Response, err error) error {
			st.record("start", http.MethodPost, browserapi.PathStart, time.Since(startBegan), resp, "", err)
			r.printer.Response("Browser started", resp)
			if err != nil {
				return err
			}
			r.logger.Debug("Waiting for browser to settle")
			return st.failLast(r.wait.Wait(ctx, r.cfg.StartSettle, pageResponds(r.api, r.cfg.SessionID)))
		},
		func(s *Session) error {
			return st.walk(ctx, s)
		})

	report.Elapsed = time.Since(began).Round(time.Millisecond).String()
	report.CleanedUp = cleanedUp

	switch {
	case err == nil:
		report.Outcome = OutcomePassed
		r.printer.Done()
	case browserapi.IsConnectionError(err):
		report.Outcome = OutcomeUnreachable
		report.Error = err.Error()
		hint := "Make sure the HTTP server is running"
		if r.cfg.StartHint != "" {
			hint += ": " + r.cfg.StartHint
		}
		r.printer.Failure("Error: cannot connect to the server", hint)
		r.logger.Debug("Connection failure: %v", err)
	default:
		report.Outcome = OutcomeFailed
		report.Error = err.Error()
		r.printer.Failure(fmt.Sprintf("Walkthrough failed: %v", err), "")
		if cleanedUp {
			r.logger.Info("Sent best-effort stop for session %s", r.cfg.SessionID)
		}
	}
	return report, err
}

func (r *Runner) requestURL(path string, withSession bool) string {
	if withSession {
		query := url.Values{}
		query.Set("sessionId", r.cfg.SessionID)
		return r.cfg.Endpoint + path + "?" + query.Encode()
	}
	return r.cfg.Endpoint + path
}

// field reads name from resp, falling back to N/A unless strict
func (r *Runner) field(resp *browserapi.Response, name string) (string, error) {
	if v, ok := resp.Field(name); ok {
		return v, nil
	}
	if r.cfg.Strict {
		return "", fmt.Errorf("%w: %q", ErrFieldMissing, name)
	}
	return notAvailable, nil
}

// stepper numbers the steps and records them in the report
type stepper struct {
	runner    *Runner
	report    *Report
	n         int
	lastTitle string
}

func (st *stepper) next(description string) {
	st.n++
	st.runner.printer.Step(st.n, description)
}

func (st *stepper) record(name, method, path string, d time.Duration, resp *browserapi.Response, value string, err error) {
	res := StepResult{
		Number:   st.n,
		Name:     name,
		Method:   method,
		Path:     path,
		Duration: d,
		Value:    value,
	}
	if resp != nil {
		res.StatusCode = resp.StatusCode
	}
	if err != nil {
		res.Error = err.Error()
	}
	st.report.add(res)
}

// setValue attaches the value read by the most recent step
func (st *stepper) setValue(value string) {
	if len(st.report.Steps) > 0 {
		st.report.Steps[len(st.report.Steps)-1].Value = value
	}
}

func (st *stepper) failLast(err error) error {
	if len(st.report.Steps) > 0 && err != nil {
		st.report.Steps[len(st.report.Steps)-1].Error = err.Error()
	}
	return err
}

func (st *stepper) walk(ctx context.Context, s *Session) error {
	r := st.runner
	last := len(r.cfg.URLs) - 1

	for i, target := range r.cfg.URLs {
		if err := st.navigate(ctx, s, target); err != nil {
			return err
		}
		if i == last {
			if err := st.readURL(ctx, s); err != nil {
				return err
			}
		}
		if err := st.readTitle(ctx, s); err != nil {
			return err
		}
	}

	if err := st.screenshot(ctx, s); err != nil {
		return err
	}
	if err := st.readHTML(ctx, s); err != nil {
		return err
	}
	if err := st.execute(ctx, s); err != nil {
		return err
	}
	return st.stop(ctx, s)
}

func (st *stepper) navigate(ctx context.Context, s *Session, target string) error {
	r := st.runner
	st.next("Navigate to " + displayHost(target))
	r.printer.Request(http.MethodPost, r.requestURL(browserapi.PathNavigate, false))

	began := time.Now()
	resp, err := r.api.Navigate(ctx, browserapi.NavigateParams{SessionID: s.ID(), URL: target})
	st.record("navigate", http.MethodPost, browserapi.PathNavigate, time.Since(began), resp, target, err)
	r.printer.Response("Navigated to "+displayHost(target), resp)
	if err != nil {
		return err
	}

	r.logger.Debug("Waiting for %s to settle", target)
	return st.failLast(r.wait.Wait(ctx, r.cfg.NavigateSettle, pageAt(r.api, s.ID(), target)))
}

func (st *stepper) readTitle(ctx context.Context, s *Session) error {
	r := st.runner
	st.next("Get page title")
	r.printer.Request(http.MethodGet, r.requestURL(browserapi.PathTitle, true))

	began := time.Now()
	resp, err := r.api.Title(ctx, s.ID())
	st.record("title", http.MethodGet, browserapi.PathTitle, time.Since(began), resp, "", err)
	r.printer.Response("Page title", resp)
	if err != nil {
		return err
	}
	if !resp.IsJSON() {
		return nil
	}

	title, err := r.field(resp, "title")
	if err != nil {
		return st.failLast(err)
	}
	st.setValue(title)
	st.lastTitle = title
	r.printer.Value("📄", "Title", title)
	return nil
}

func (st *stepper) readURL(ctx context.Context, s *Session) error {
	r := st.runner
	st.next("Get page URL")
	r.printer.Request(http.MethodGet, r.requestURL(browserapi.PathURL, true))

	began := time.Now()
	resp, err := r.api.URL(ctx, s.ID())
	st.record("url", http.MethodGet, browserapi.PathURL, time.Since(began), resp, "", err)
	r.printer.Response("Current page URL", resp)
	if err != nil {
		return err
	}
	if !resp.IsJSON() {
		return nil
	}

	current, err := r.field(resp, "url")
	if err != nil {
		return st.failLast(err)
	}
	st.setValue(current)
	r.printer.Value("🔗", "URL", current)
	return nil
}

func (st *stepper) screenshot(ctx context.Context, s *Session) error {
	r := st.runner
	st.next("Take screenshot")
	r.printer.Request(http.MethodPost, r.requestURL(browserapi.PathScreenshot, false))

	began := time.Now()
	resp, err := r.api.Screenshot(ctx, browserapi.ScreenshotParams{SessionID: s.ID(), Format: r.cfg.ScreenshotFormat})
	st.record("screenshot", http.MethodPost, browserapi.PathScreenshot, time.Since(began), resp, "", err)
	if err != nil {
		r.printer.Response("Screenshot", resp)
		return err
	}
	r.printer.Binary("Screenshot taken", resp)

	artifact, err := WriteScreenshot(r.cfg.ScreenshotDir, s.ID(), r.cfg.ScreenshotFormat, resp.Body)
	if err != nil {
		return st.failLast(err)
	}
	st.report.Screenshot = artifact
	st.setValue(artifact.Path)
	r.printer.Value("💾", "Screenshot saved to", artifact.Path)
	if !artifact.matchesFormat(r.cfg.ScreenshotFormat) {
		r.printer.Warn("screenshot content is %s, requested %s", artifact.MIME, r.cfg.ScreenshotFormat)
	}
	return nil
}

func (st *stepper) readHTML(ctx context.Context, s *Session) error {
	r := st.runner
	st.next("Get page HTML")
	r.printer.Request(http.MethodGet, r.requestURL(browserapi.PathHTML, true))

	began := time.Now()
	resp, err := r.api.HTML(ctx, s.ID())
	st.record("html", http.MethodGet, browserapi.PathHTML, time.Since(began), resp, "", err)
	r.printer.Response("Page HTML", resp)
	if err != nil {
		return err
	}
	if !resp.IsJSON() {
		return nil
	}

	html, ok := resp.Field("html")
	if !ok {
		if r.cfg.Strict {
			return st.failLast(fmt.Errorf("%w: %q", ErrFieldMissing, "html"))
		}
		html = ""
	}
	size := len([]rune(html))
	st.setValue(fmt.Sprintf("%d characters", size))
	r.printer.Value("📄", "HTML size", fmt.Sprintf("%d characters", size))

	preview := html
	label := fmt.Sprintf("HTML first %d characters", r.cfg.HTMLPreview)
	if r.cfg.HTMLFormat == "markdown" && html != "" {
		converted, err := md.NewConverter("", true, nil).ConvertString(html)
		if err != nil {
			r.logger.Warn("Failed to convert HTML to Markdown: %v", err)
		} else {
			preview = converted
			label = fmt.Sprintf("Markdown first %d characters", r.cfg.HTMLPreview)
		}
	}
	r.printer.Value("📄", label, truncate(preview, r.cfg.HTMLPreview)+"...")

	if docTitle := documentTitle(html); docTitle != "" {
		r.printer.Value("📄", "Document title", docTitle)
		if st.lastTitle != "" && st.lastTitle != notAvailable && docTitle != st.lastTitle {
			r.printer.Warn("document title %q differs from reported title %q", docTitle, st.lastTitle)
		}
	}
	return nil
}

func (st *stepper) execute(ctx context.Context, s *Session) error {
	r := st.runner
	st.next("Execute JavaScript")
	r.printer.Request(http.MethodPost, r.requestURL(browserapi.PathExecute, false))

	began := time.Now()
	resp, err := r.api.Execute(ctx, browserapi.ExecuteParams{SessionID: s.ID(), Script: r.cfg.Script})
	st.record("execute", http.MethodPost, browserapi.PathExecute, time.Since(began), resp, "", err)
	r.printer.Response("Execution result", resp)
	if err != nil {
		return err
	}
	if !resp.IsJSON() {
		return nil
	}

	result, err := r.field(resp, "result")
	if err != nil {
		return st.failLast(err)
	}
	st.setValue(result)
	r.printer.Value("🔧", "Result", result)
	return nil
}

func (st *stepper) stop(ctx context.Context, s *Session) error {
	r := st.runner
	st.next("Stop browser")
	r.printer.Request(http.MethodPost, r.requestURL(browserapi.PathStop, false))

	began := time.Now()
	resp, err := s.Release(ctx)
	st.record("stop", http.MethodPost, browserapi.PathStop, time.Since(began), resp, "", err)
	r.printer.Response("Browser stopped", resp)
	return err
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func documentTitle(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func displayHost(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return target
	}
	return u.Host
}
