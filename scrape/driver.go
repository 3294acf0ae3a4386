package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/guidescope/guidescope/extract"
	"github.com/guidescope/guidescope/scrape/internal/browser"
)

// Selector data for the target page. Ordered lists are priority chains:
// the first hit wins. All of it is best-effort against markup that changes
// without notice — extraction degrades to the text matchers when a chain
// comes up empty.
var (
	nameSelectors = []string{
		`h1`,
		`[role="heading"][aria-level="1"]`,
	}

	statsTriggerSelectors = []string{
		`button[jsaction*="stats"]`,
		`button[aria-label*="point"]`,
	}

	consentSignatures = []string{
		"before you continue",
		"uses cookies and data",
	}
)

const (
	consentHost      = "consent.google"
	triggerKeyword   = "point"
	panelSelector    = `div[role="dialog"]`
	selectorProbe    = 800 * time.Millisecond
	interactiveProbe = `button, [role="button"]`
)

// DriverConfig configures the production attempter and the browser manager
// underneath it.
type DriverConfig struct {
	// Bin overrides browser binary discovery.
	Bin string

	// IdleShutdown is how long the browser outlives its last session.
	IdleShutdown time.Duration

	// Mapping overrides the stats-panel label table.
	Mapping extract.Mapping

	Logger *slog.Logger
}

// Driver is the production Attempter: one full scrape attempt against one
// candidate URL inside an isolated browser session.
type Driver struct {
	mgr     *browser.Manager
	mapping extract.Mapping
	logger  *slog.Logger
}

// NewDriver creates a Driver and the browser manager it owns. The browser
// itself is not launched until the first attempt needs it.
func NewDriver(cfg DriverConfig) *Driver {
	if cfg.Mapping == nil {
		cfg.Mapping = extract.DefaultMapping()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	mgr := browser.NewManager(browser.Config{
		Bin:          cfg.Bin,
		IdleShutdown: cfg.IdleShutdown,
		Logger:       cfg.Logger,
	})
	return &Driver{mgr: mgr, mapping: cfg.Mapping, logger: cfg.Logger}
}

// Check reports fatal environment problems without launching anything.
func (d *Driver) Check() error {
	_, err := d.mgr.BinaryPath()
	return err
}

// BinaryPath exposes browser-binary discovery for the diagnostics boundary.
func (d *Driver) BinaryPath() (string, error) {
	return d.mgr.BinaryPath()
}

// Close tears down the browser manager.
func (d *Driver) Close() {
	d.mgr.Close()
}

// Attempt performs the full single-candidate sequence: navigate, consent
// check, display name, stats-panel reveal, dual extraction, merge, and the
// one settle-and-re-read pass for late hydration. The session is closed on
// every exit path before the idle timer re-arms.
func (d *Driver) Attempt(ctx context.Context, candidate string, b Budget) (*extract.Record, error) {
	sess, err := d.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	page := sess.Page

	// Navigate waiting for initial markup only. Full network idle never
	// arrives here: the page keeps background connections open.
	navCtx, navCancel := context.WithTimeout(ctx, b.Nav)
	err = page.Context(navCtx).Navigate(candidate)
	if err != nil {
		navCancel()
		return nil, fmt.Errorf("%w: navigate %s: %v", ErrNavigationTimeout, candidate, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		d.logger.Debug("scrape: load wait expired, continuing", "url", candidate, "error", err)
	}
	navCancel()

	body := d.bodyText(ctx, page)
	if body == "" {
		return nil, fmt.Errorf("%w: %s rendered no text", ErrNavigationTimeout, candidate)
	}
	if d.hitConsentWall(page, body) {
		return nil, fmt.Errorf("%w: %s", ErrConsentWall, candidate)
	}

	name := d.displayName(ctx, page, body)

	rows := d.revealStats(ctx, page, b)
	rec := d.extractOnce(rows, body)

	// All zeroes usually mean the page had not hydrated yet. Settle once,
	// re-read, and accept whatever comes back — a genuine all-zero profile
	// is a valid low-confidence result.
	if rec.AllCountsZero() {
		if err := sleepCtx(ctx, b.Settle); err != nil {
			return nil, err
		}
		body = d.bodyText(ctx, page)
		rows = d.panelRows(ctx, page, b.Nudge)
		rec = d.extractOnce(rows, body)
	}

	if name != "" && rec.Name == nil {
		rec.Name = &name
	}
	return &rec, nil
}

func (d *Driver) extractOnce(rows []extract.Row, body string) extract.Record {
	structured := extract.Counts(rows, d.mapping)
	text := extract.FromText(body)
	return extract.Merge(structured, text)
}

// bodyText reads the page's visible text, falling back to flattening the
// rendered markup when script evaluation is unavailable.
func (d *Driver) bodyText(ctx context.Context, page *rod.Page) string {
	res, err := page.Context(ctx).Eval(`() => document.body ? document.body.innerText : ""`)
	if err == nil {
		if t := res.Value.Str(); strings.TrimSpace(t) != "" {
			return t
		}
	}
	htmlStr, err := page.Context(ctx).HTML()
	if err != nil {
		return ""
	}
	return extract.VisibleText([]byte(htmlStr))
}

// hitConsentWall detects the consent interstitial by redirect host or by a
// fixed text signature in the rendered body.
func (d *Driver) hitConsentWall(page *rod.Page, body string) bool {
	if info, err := page.Info(); err == nil && strings.Contains(info.URL, consentHost) {
		return true
	}
	lower := strings.ToLower(body)
	for _, sig := range consentSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// displayName walks the heading selector chain, then falls back to the
// heuristic scan of the visible text.
func (d *Driver) displayName(ctx context.Context, page *rod.Page, body string) string {
	for _, sel := range nameSelectors {
		el, err := page.Context(ctx).Timeout(selectorProbe).Element(sel)
		if err != nil {
			continue
		}
		txt, err := el.Text()
		if err != nil {
			continue
		}
		if txt = strings.TrimSpace(txt); txt != "" {
			return txt
		}
	}
	return extract.GuessName(body)
}

// revealStats activates the stats panel trigger and waits for its rows:
// bounded wait, scroll nudge, shorter re-wait. A hidden panel is not fatal;
// the caller proceeds with text extraction alone.
func (d *Driver) revealStats(ctx context.Context, page *rod.Page, b Budget) []extract.Row {
	trigger := d.findTrigger(ctx, page)
	if trigger == nil {
		d.logger.Debug("scrape: no stats trigger found")
	} else if err := trigger.Click(proto.InputMouseButtonLeft, 1); err != nil {
		d.logger.Debug("scrape: stats trigger click failed", "error", err)
	}

	rows := d.panelRows(ctx, page, b.Panel)
	if rows == nil {
		if err := page.Mouse.Scroll(0, 600, 5); err != nil {
			d.logger.Debug("scrape: scroll nudge failed", "error", err)
		}
		rows = d.panelRows(ctx, page, b.Nudge)
	}
	return rows
}

// findTrigger walks the trigger selector chain, then scans visible
// interactive elements for the label keyword.
func (d *Driver) findTrigger(ctx context.Context, page *rod.Page) *rod.Element {
	for _, sel := range statsTriggerSelectors {
		el, err := page.Context(ctx).Timeout(selectorProbe).Element(sel)
		if err == nil {
			return el
		}
	}

	els, err := page.Context(ctx).Timeout(selectorProbe).Elements(interactiveProbe)
	if err != nil {
		return nil
	}
	for _, el := range els {
		txt, err := el.Text()
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(txt), triggerKeyword) {
			return el
		}
	}
	return nil
}

// panelRows waits for the panel dialog and serializes its rows as
// label/value pairs. Returns nil when the panel never appears.
func (d *Driver) panelRows(ctx context.Context, page *rod.Page, wait time.Duration) []extract.Row {
	dlgCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	dlg, err := page.Context(dlgCtx).Element(panelSelector)
	if err != nil {
		return nil
	}

	res, err := dlg.Eval(`function () {
		const out = [];
		const rows = this.querySelectorAll('li, [role="listitem"], [role="row"]');
		for (const row of rows) {
			const kids = row.children;
			if (kids.length < 2) continue;
			out.push({
				label: kids[0].textContent.trim(),
				value: kids[kids.length - 1].textContent.trim(),
			});
		}
		return JSON.stringify(out);
	}`)
	if err != nil {
		d.logger.Debug("scrape: panel row eval failed", "error", err)
		return nil
	}

	rows, err := decodePanelRows(res.Value.Str())
	if err != nil {
		d.logger.Debug("scrape: panel row decode failed", "error", err)
		return nil
	}
	return rows
}

// decodePanelRows parses the serialized label/value pairs. Zero rows decode
// to nil: a dialog whose rows have not hydrated counts as not found, so the
// caller's scroll nudge and re-wait still fire.
func decodePanelRows(raw string) ([]extract.Row, error) {
	var rows []extract.Row
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
