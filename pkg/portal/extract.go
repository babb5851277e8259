package portal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kwittgruber/parceltrace/pkg/browser"
)

// searchControlPrimary targets the overview's search control by its id.
var searchControlPrimary = []Strategy{
	css("by id", "#search"),
	css("button by id", "button#search"),
	css("input by id", "input#search"),
	xpath("any by id", `//*[@id="search"]`),
}

// searchControlFallback is the broader second tier, down to localized
// button text.
var searchControlFallback = []Strategy{
	css("submit button", `button[type="submit"]`),
	css("submit input", `input[type="submit"]`),
	css("search-button class", ".search-button"),
	css("btn-search class", ".btn-search"),
	xpath("button text Search", `//button[contains(text(),"Search")]`),
	xpath("button text Suchen", `//button[contains(text(),"Suchen")]`),
	xpath("input value Search", `//input[@value="Search"]`),
	xpath("input value Suchen", `//input[@value="Suchen"]`),
}

// rowAnchorCascade discovers the anchors that open a shipment's detail
// view, in descending specificity. The overview is an Angular app; the
// click handler attribute is the only semi-stable marker.
var rowAnchorCascade = []Strategy{
	css("exact openDetail handler", `a[ng-click="openDetail(parcel.tuNo, '')"]`),
	css("handler contains openDetail", `a[ng-click*="openDetail"]`),
	css("handler contains parcel.tuNo", `a[ng-click*="parcel.tuNo"]`),
	css("binding class with openDetail", `a.ng-binding[ng-click*="openDetail"]`),
	css("binding class with parcel handler", `a[class*="ng-binding"][ng-click*="parcel"]`),
}

// anyClickHandler is the last-resort row discovery: every element exposing
// a click handler, filtered by tracking-number shape.
var anyClickHandler = browser.ByCSS("[ng-click], [onclick]")

// Row-scoped cell cascades, relative to the tr ancestor.
var statusCellCascade = []browser.Query{
	browser.ByXPath(`.//td[contains(@id, "status")]`),
	browser.ByXPath(`.//td[contains(@class, "parcel-status")]`),
	browser.ByXPath(`.//td[contains(@class, "ng-binding") and contains(@class, "bold")]`),
	browser.ByXPath(`.//td[@ng-show and contains(@ng-show, "status")]`),
}

var recipientCellCascade = []browser.Query{
	browser.ByXPath(`.//td[contains(@id, "consigneeName")]//p[contains(@class, "truncate-ellipsis")]`),
	browser.ByXPath(`.//td[contains(@id, "consigneeName")]//p[@title]`),
	browser.ByXPath(`.//td[contains(@id, "consigneeName")]//p`),
	browser.ByXPath(`.//p[contains(@class, "truncate-ellipsis") and contains(@class, "ng-binding") and contains(@class, "mb-0")]`),
	browser.ByXPath(`.//p[contains(@class, "truncate-ellipsis") and contains(@class, "ng-binding")]`),
	browser.ByXPath(`.//p[@ng-attr-title and contains(@class, "truncate-ellipsis")]`),
	browser.ByXPath(`.//p[@title and contains(@class, "truncate-ellipsis")]`),
}

var dateCellCascade = []browser.Query{
	browser.ByXPath(`.//td[contains(@id, "date")]//span[contains(@class, "ng-binding")]`),
	browser.ByXPath(`.//td[contains(@id, "date")]//span`),
	browser.ByXPath(`.//td[contains(@id, "date")]`),
	browser.ByXPath(`.//span[contains(@class, "ng-binding") and string-length(text()) <= 10 and contains(text(), ".")]`),
	browser.ByXPath(`.//td[contains(@ng-show, "date")]//span`),
}

// LoadShipments navigates to the shipment overview, triggers the search
// and extracts a deduplicated list of shipment summaries. A single row's
// failure never aborts the batch; a missing search control does.
func (e *Engine) LoadShipments(ctx context.Context) ([]ShipmentSummary, error) {
	if !e.session.State().authenticated() {
		e.report(StepFailed, "Nicht angemeldet", 0)
		return nil, stepErr(StepNavigating, ErrNotAuthenticated)
	}
	page, err := e.session.Page()
	if err != nil {
		e.report(StepFailed, "Keine Browser-Sitzung", 0)
		return nil, stepErr(StepNavigating, err)
	}

	e.report(StepNavigating, "Navigation zur Sendungsübersicht...", 10)
	e.session.To(StateNavigating)

	if err := page.Navigate(ctx, e.cfg.OverviewURL); err != nil {
		e.fail(ctx, "Sendungsübersicht nicht erreichbar")
		return nil, stepErr(StepNavigating, fmt.Errorf("%w: %v", ErrNavigationTimeout, err))
	}
	if err := page.Sleep(ctx, e.cfg.SettlePage); err != nil {
		e.fail(ctx, "Sitzung abgebrochen")
		return nil, stepErr(StepNavigating, err)
	}

	e.report(StepLoading, "Suche wird ausgelöst...", 30)
	e.session.To(StateSearching)

	if err := e.triggerSearch(ctx, page); err != nil {
		e.fail(ctx, "Search-Button konnte nicht gefunden werden")
		return nil, err
	}

	e.report(StepProcessing, "Sendungsdaten werden verarbeitet...", 50)
	e.session.To(StateExtracting)

	shipments, err := e.scrapeShipments(ctx, page)
	if err != nil {
		e.fail(ctx, "Extraktion fehlgeschlagen")
		return nil, err
	}

	e.session.To(StateIdle)
	e.report(StepComplete, fmt.Sprintf("%d Sendungen erfolgreich geladen", len(shipments)), 100)
	return shipments, nil
}

// triggerSearch resolves the search control through both cascade tiers and
// clicks it. Exhausting both tiers is extraction-fatal; an empty result
// must never be returned silently.
func (e *Engine) triggerSearch(ctx context.Context, page browser.Page) error {
	control, err := ResolveFirst(ctx, page, searchControlPrimary, e.cfg.ElementTimeout, e.log)
	if err != nil {
		e.log.Warn("search control not found by id, trying alternatives")
		control, err = ResolveFirst(ctx, page, searchControlFallback, e.cfg.ElementTimeout, e.log)
	}
	if err != nil {
		return stepErr(StepSearching, err)
	}

	if err := control.Click(ctx); err != nil {
		return stepErr(StepSearching, fmt.Errorf("%w: %v", ErrSessionUnavailable, err))
	}
	if err := page.Sleep(ctx, e.cfg.SettleResults); err != nil {
		return stepErr(StepSearching, err)
	}
	return nil
}

// scrapeShipments walks the candidate tracking-number anchors and extracts
// one summary per unique tracking number.
func (e *Engine) scrapeShipments(ctx context.Context, page browser.Page) ([]ShipmentSummary, error) {
	candidates, strategy, err := ResolveAll(ctx, page, rowAnchorCascade, e.log)
	if err != nil {
		// Secondary discovery: anything with a click handler whose own text
		// looks like a tracking number.
		e.log.Info("no specific detail anchors found, scanning all click handlers")
		candidates, err = e.clickHandlerFallback(ctx, page)
		if err != nil {
			return nil, stepErr(StepProcessing, err)
		}
		strategy = Strategy{Name: "any click handler"}
	}
	e.log.Info("row candidates discovered",
		zap.String("strategy", strategy.Name), zap.Int("count", len(candidates)))

	shipments := make([]ShipmentSummary, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))

	for i, anchor := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, stepErr(StepProcessing, err)
		}

		text, err := anchor.Text(ctx)
		if err != nil {
			e.log.Debug("candidate anchor not accessible", zap.Error(err))
			continue
		}
		trackingNumber := strings.TrimSpace(text)
		if !IsValidTrackingNumber(trackingNumber) || seen[trackingNumber] {
			continue
		}
		seen[trackingNumber] = true

		// Weighted 50-90% of the overall operation.
		progress := 50 + i*40/len(candidates)
		e.report(StepProcessing,
			fmt.Sprintf("Verarbeite Sendung %d/%d: %s", i+1, len(candidates), trackingNumber),
			progress)

		summary := e.extractRow(ctx, anchor, trackingNumber)
		shipments = append(shipments, summary)
		e.log.Debug("shipment extracted",
			zap.String("tracking_number", summary.TrackingNumber),
			zap.String("status", summary.Status),
			zap.String("customer", summary.CustomerName))
	}

	e.log.Info("unique shipments extracted", zap.Int("count", len(shipments)))
	return shipments, nil
}

// clickHandlerFallback scans every element exposing a click handler and
// keeps those whose text is a valid tracking number.
func (e *Engine) clickHandlerFallback(ctx context.Context, page browser.Page) ([]browser.Element, error) {
	elements, err := page.FindAll(ctx, anyClickHandler)
	if err != nil {
		return nil, err
	}
	var candidates []browser.Element
	for _, el := range elements {
		text, err := el.Text(ctx)
		if err != nil {
			continue
		}
		if IsValidTrackingNumber(strings.TrimSpace(text)) {
			candidates = append(candidates, el)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrControlNotFound
	}
	return candidates, nil
}

// extractRow builds the summary for one candidate anchor. Any field that
// cannot be resolved keeps its documented default; nothing here aborts
// the batch.
func (e *Engine) extractRow(ctx context.Context, anchor browser.Element, trackingNumber string) ShipmentSummary {
	summary := ShipmentSummary{
		TrackingNumber: trackingNumber,
		CustomerName:   Unknown,
		Status:         Unknown,
	}

	row, ok := e.rowAncestor(ctx, anchor)
	if !ok {
		e.log.Debug("no table row ancestor", zap.String("tracking_number", trackingNumber))
		return summary
	}

	if status, ok := e.firstCellText(ctx, row, statusCellCascade); ok {
		summary.Status = status
	}
	if name, ok := e.recipientName(ctx, row, trackingNumber); ok {
		summary.CustomerName = name
	}
	if date, ok := e.lastUpdate(ctx, row, trackingNumber); ok {
		summary.LastUpdate = &date
		summary.IsOverdue = e.now().Sub(date) > e.cfg.OverdueAfter
	}
	return summary
}

// rowAncestor walks up from the anchor a bounded number of parent levels
// and returns the first tr ancestor.
func (e *Engine) rowAncestor(ctx context.Context, el browser.Element) (browser.Element, bool) {
	current := el
	for i := 0; i < e.cfg.MaxParentHops; i++ {
		parent, ok, err := current.Parent(ctx)
		if err != nil || !ok {
			return nil, false
		}
		if parent.TagName() == "tr" {
			return parent, true
		}
		current = parent
	}
	return nil, false
}

// firstCellText returns the first non-empty text found by the cascade,
// scoped to the row.
func (e *Engine) firstCellText(ctx context.Context, row browser.Element, cascade []browser.Query) (string, bool) {
	for _, q := range cascade {
		cells, err := row.FindAll(ctx, q)
		if err != nil {
			continue
		}
		for _, cell := range cells {
			text, err := cell.Text(ctx)
			if err != nil {
				continue
			}
			if text = strings.TrimSpace(text); text != "" {
				return text, true
			}
		}
	}
	return "", false
}

// recipientName resolves the consignee, preferring an element's title
// attributes over its own text.
func (e *Engine) recipientName(ctx context.Context, row browser.Element, trackingNumber string) (string, bool) {
	for _, q := range recipientCellCascade {
		cells, err := row.FindAll(ctx, q)
		if err != nil {
			continue
		}
		for _, cell := range cells {
			candidate := ""
			if title, ok, err := cell.Attribute(ctx, "title"); err == nil && ok && strings.TrimSpace(title) != "" {
				candidate = strings.TrimSpace(title)
			} else if ngTitle, ok, err := cell.Attribute(ctx, "ng-attr-title"); err == nil && ok && strings.TrimSpace(ngTitle) != "" {
				candidate = strings.TrimSpace(ngTitle)
			} else if text, err := cell.Text(ctx); err == nil {
				candidate = strings.TrimSpace(text)
			}
			if LooksLikeRecipientName(candidate, trackingNumber) {
				return candidate, true
			}
		}
	}
	return "", false
}

// lastUpdate resolves the row's date cell into a calendar date.
func (e *Engine) lastUpdate(ctx context.Context, row browser.Element, trackingNumber string) (date time.Time, found bool) {
	for _, q := range dateCellCascade {
		cells, err := row.FindAll(ctx, q)
		if err != nil {
			continue
		}
		for _, cell := range cells {
			text, err := cell.Text(ctx)
			if err != nil {
				continue
			}
			text = strings.TrimSpace(text)
			if text == trackingNumber || IsValidTrackingNumber(text) {
				continue
			}
			if d, ok := ParseGermanShortDate(text); ok {
				return d, true
			}
		}
	}
	return time.Time{}, false
}
