package portal

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kwittgruber/parceltrace/pkg/browser"
)

// trackingNumberCascade locates the tracking-number input on the public
// tracking view.
var trackingNumberCascade = []Strategy{
	css("by id", "#txtTrackingNumber"),
	css("name contains tracking", `input[name*="racking"]`),
	css("text input", `input[type="text"]`),
}

// trackingSearchCascade locates the search button of the tracking view.
var trackingSearchCascade = []Strategy{
	css("by id", "#btnSearch"),
	css("submit button", `button[type="submit"]`),
	css("submit input", `input[type="submit"]`),
}

// Event-row cells, scoped to one tr of the details table.
var (
	eventDateCell        = browser.ByXPath(`.//*[contains(@class, "event-date")]`)
	eventTimeCell        = browser.ByXPath(`.//*[contains(@class, "event-time")]`)
	eventDescriptionCell = browser.ByXPath(`.//*[contains(@class, "event-description")]`)
	eventLocationCell    = browser.ByXPath(`.//*[contains(@class, "event-location")]`)
)

// TrackShipment looks up a single shipment on the tracking view and reads
// its status line plus the ordered event history from the details table.
// Malformed event rows are skipped individually.
func (e *Engine) TrackShipment(ctx context.Context, trackingNumber string) (*TrackingResult, error) {
	page, err := e.session.Page()
	if err != nil {
		e.report(StepFailed, "Keine Browser-Sitzung", 0)
		return nil, stepErr(StepNavigating, err)
	}

	e.report(StepNavigating, "Navigation zur Tracking-Seite...", 20)
	e.session.To(StateNavigating)

	if err := page.Navigate(ctx, e.cfg.TrackingURL); err != nil {
		e.fail(ctx, "Tracking-Seite nicht erreichbar")
		return nil, stepErr(StepNavigating, fmt.Errorf("%w: %v", ErrNavigationTimeout, err))
	}

	input, err := ResolveFirst(ctx, page, trackingNumberCascade, e.cfg.ElementTimeout, e.log)
	if err != nil {
		e.fail(ctx, "Tracking-Formular nicht gefunden")
		return nil, stepErr(StepNavigating, err)
	}

	e.report(StepSearching, "Sendung wird gesucht...", 40)
	e.session.To(StateSearching)

	if err := input.Clear(ctx); err == nil {
		err = input.Type(ctx, trackingNumber)
	}
	if err != nil {
		e.fail(ctx, "Eingabe fehlgeschlagen")
		return nil, stepErr(StepSearching, fmt.Errorf("%w: %v", ErrSessionUnavailable, err))
	}

	button, err := ResolveFirst(ctx, page, trackingSearchCascade, e.cfg.ElementTimeout, e.log)
	if err != nil {
		e.fail(ctx, "Such-Button nicht gefunden")
		return nil, stepErr(StepSearching, err)
	}
	if err := button.Click(ctx); err != nil {
		e.fail(ctx, "Suche fehlgeschlagen")
		return nil, stepErr(StepSearching, fmt.Errorf("%w: %v", ErrSessionUnavailable, err))
	}

	e.report(StepSearching, "Suchergebnisse werden geladen...", 60)

	if _, ok, err := page.Find(ctx, browser.ByCSS(".tracking-results-table"), e.cfg.SettleResults); err != nil || !ok {
		e.fail(ctx, "Keine Suchergebnisse")
		if err == nil {
			err = ErrNavigationTimeout
		}
		return nil, stepErr(StepSearching, err)
	}

	e.report(StepExtracting, "Daten werden extrahiert...", 80)
	e.session.To(StateExtracting)

	result := &TrackingResult{TrackingNumber: trackingNumber}
	result.Status = e.columnText(ctx, page, "td.status-column")
	result.Location = e.columnText(ctx, page, "td.location-column")
	if d, ok := ParseGermanShortDate(e.columnText(ctx, page, "td.date-column")); ok {
		result.LastUpdate = &d
	}

	events, err := e.readEventHistory(ctx, page)
	if err != nil {
		e.fail(ctx, "Sendungsverlauf nicht lesbar")
		return nil, err
	}
	result.Events = events

	e.session.To(StateIdle)
	e.report(StepComplete, "Tracking erfolgreich abgeschlossen", 100)
	return result, nil
}

// columnText reads a fixed results-table column, empty when absent.
func (e *Engine) columnText(ctx context.Context, page browser.Page, sel string) string {
	elements, err := page.FindAll(ctx, browser.ByCSS(sel))
	if err != nil || len(elements) == 0 {
		return ""
	}
	text, err := elements[0].Text(ctx)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// readEventHistory follows the details link and reads the ordered event
// rows. Rows missing their date or description are dropped, not fatal.
func (e *Engine) readEventHistory(ctx context.Context, page browser.Page) ([]TrackingEvent, error) {
	details, ok, err := page.Find(ctx, browser.ByCSS("a.details-link"), e.cfg.ElementTimeout)
	if err != nil || !ok {
		if err == nil {
			err = ErrControlNotFound
		}
		return nil, stepErr(StepExtracting, err)
	}
	if err := details.Click(ctx); err != nil {
		return nil, stepErr(StepExtracting, fmt.Errorf("%w: %v", ErrSessionUnavailable, err))
	}

	if _, ok, err := page.Find(ctx, browser.ByCSS(".tracking-events-table"), e.cfg.SettleResults); err != nil || !ok {
		if err == nil {
			err = ErrNavigationTimeout
		}
		return nil, stepErr(StepExtracting, err)
	}

	rows, err := page.FindAll(ctx, browser.ByCSS("tr.event-row"))
	if err != nil {
		return nil, stepErr(StepExtracting, err)
	}

	events := make([]TrackingEvent, 0, len(rows))
	for _, row := range rows {
		event := TrackingEvent{
			Date:        e.scopedText(ctx, row, eventDateCell),
			Time:        e.scopedText(ctx, row, eventTimeCell),
			Description: e.scopedText(ctx, row, eventDescriptionCell),
			Location:    e.scopedText(ctx, row, eventLocationCell),
		}
		if event.Date == "" || event.Description == "" {
			e.log.Debug("skipping malformed event row")
			continue
		}
		events = append(events, event)
	}
	e.log.Info("tracking events extracted", zap.Int("count", len(events)))
	return events, nil
}

func (e *Engine) scopedText(ctx context.Context, row browser.Element, q browser.Query) string {
	cells, err := row.FindAll(ctx, q)
	if err != nil || len(cells) == 0 {
		return ""
	}
	text, err := cells[0].Text(ctx)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
