package portal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const anchorSelector = `a[ng-click="openDetail(parcel.tuNo, '')"]`

// shipmentRow builds a detail anchor sitting inside a full table row with
// status, recipient and date cells.
func shipmentRow(trackingNumber, status, recipient, date string) *fakeElement {
	anchor := newFakeElement("a", trackingNumber)
	cell := newFakeElement("td", trackingNumber)
	row := newFakeElement("tr", "")

	anchor.parent = cell
	cell.parent = row

	if status != "" {
		row.withChild(`.//td[contains(@id, "status")]`, newFakeElement("td", status))
	}
	if recipient != "" {
		row.withChild(
			`.//td[contains(@id, "consigneeName")]//p[contains(@class, "truncate-ellipsis")]`,
			newFakeElement("p", recipient))
	}
	if date != "" {
		row.withChild(
			`.//td[contains(@id, "date")]//span[contains(@class, "ng-binding")]`,
			newFakeElement("span", date))
	}
	return anchor
}

// overviewPage builds an authenticated overview with a search control and
// the given detail anchors.
func overviewPage(anchors ...*fakeElement) *fakePage {
	page := newFakePage()
	page.addElement("#search", newFakeElement("button", "Suchen"))
	page.addElement(anchorSelector, anchors...)
	return page
}

// authenticatedEngine wires an engine whose session already holds the page
// in a logged-in state.
func authenticatedEngine(t *testing.T, page *fakePage, rec *progressRecorder) *Engine {
	t.Helper()
	opts := []Option{}
	if rec != nil {
		opts = append(opts, WithProgress(rec.fn()))
	}
	e := NewEngine(&fakeFactory{page: page}, testConfig(), zap.NewNop(), opts...)
	_, err := e.session.Open(context.Background())
	require.NoError(t, err)
	e.session.To(StateAuthenticated)
	return e
}

func TestLoadShipmentsRequiresAuthentication(t *testing.T) {
	e := NewEngine(&fakeFactory{page: newFakePage()}, testConfig(), zap.NewNop())

	_, err := e.LoadShipments(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestLoadShipmentsExtractsRows(t *testing.T) {
	page := overviewPage(
		shipmentRow("12345678901", "Zugestellt", "Maria Huber", "05.01.24"),
		shipmentRow("98765432109", "In Zustellung", "Müller GmbH", "18.01.24"),
	)
	rec := &progressRecorder{}
	e := authenticatedEngine(t, page, rec)
	e.now = func() time.Time { return time.Date(2024, 1, 20, 12, 0, 0, 0, time.Local) }

	shipments, err := e.LoadShipments(context.Background())
	require.NoError(t, err)
	require.Len(t, shipments, 2)

	first := shipments[0]
	assert.Equal(t, "12345678901", first.TrackingNumber)
	assert.Equal(t, "Zugestellt", first.Status)
	assert.Equal(t, "Maria Huber", first.CustomerName)
	require.NotNil(t, first.LastUpdate)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.Local), *first.LastUpdate)
	assert.True(t, first.IsOverdue, "15 days without update is overdue")

	second := shipments[1]
	assert.False(t, second.IsOverdue, "2 days without update is not overdue")

	assert.Equal(t, StateIdle, e.State())
	step, progress := rec.last()
	assert.Equal(t, StepComplete, step)
	assert.Equal(t, 100, progress)
}

func TestLoadShipmentsOverdueBoundary(t *testing.T) {
	// Updated exactly seven days ago: not overdue. One second past: overdue.
	page := overviewPage(shipmentRow("12345678901", "Unterwegs", "Maria Huber", "13.01.24"))
	e := authenticatedEngine(t, page, nil)

	e.now = func() time.Time { return time.Date(2024, 1, 20, 0, 0, 0, 0, time.Local) }
	shipments, err := e.LoadShipments(context.Background())
	require.NoError(t, err)
	require.Len(t, shipments, 1)
	assert.False(t, shipments[0].IsOverdue)

	page2 := overviewPage(shipmentRow("12345678901", "Unterwegs", "Maria Huber", "13.01.24"))
	e2 := authenticatedEngine(t, page2, nil)
	e2.now = func() time.Time { return time.Date(2024, 1, 20, 0, 0, 1, 0, time.Local) }
	shipments, err = e2.LoadShipments(context.Background())
	require.NoError(t, err)
	require.Len(t, shipments, 1)
	assert.True(t, shipments[0].IsOverdue)
}

func TestLoadShipmentsDeduplicatesTrackingNumbers(t *testing.T) {
	page := overviewPage(
		shipmentRow("12345678901", "Zugestellt", "Maria Huber", "05.01.24"),
		shipmentRow("12345678901", "Zugestellt", "Maria Huber", "05.01.24"),
		shipmentRow("98765432109", "Unterwegs", "Müller GmbH", "06.01.24"),
	)
	e := authenticatedEngine(t, page, nil)

	shipments, err := e.LoadShipments(context.Background())
	require.NoError(t, err)
	require.Len(t, shipments, 2)
	assert.Equal(t, "12345678901", shipments[0].TrackingNumber)
	assert.Equal(t, "98765432109", shipments[1].TrackingNumber)
}

func TestLoadShipmentsSkipsInvalidTrackingNumbers(t *testing.T) {
	page := overviewPage(
		shipmentRow("00000000000", "Zugestellt", "Maria Huber", "05.01.24"),
		shipmentRow("Details", "", "", ""),
		shipmentRow("12345678901", "Zugestellt", "Maria Huber", "05.01.24"),
	)
	e := authenticatedEngine(t, page, nil)

	shipments, err := e.LoadShipments(context.Background())
	require.NoError(t, err)
	require.Len(t, shipments, 1)
	assert.Equal(t, "12345678901", shipments[0].TrackingNumber)
}

func TestLoadShipmentsDefaultsForUnresolvedFields(t *testing.T) {
	page := overviewPage(shipmentRow("12345678901", "", "", ""))
	e := authenticatedEngine(t, page, nil)

	shipments, err := e.LoadShipments(context.Background())
	require.NoError(t, err)
	require.Len(t, shipments, 1)

	sh := shipments[0]
	assert.Equal(t, Unknown, sh.Status)
	assert.Equal(t, Unknown, sh.CustomerName)
	assert.Nil(t, sh.LastUpdate)
	assert.False(t, sh.IsOverdue)
}

func TestLoadShipmentsAnchorWithoutRowKeepsDefaults(t *testing.T) {
	// Anchor with no tr ancestor within the hop budget.
	anchor := newFakeElement("a", "12345678901")
	page := newFakePage()
	page.addElement("#search", newFakeElement("button", "Suchen"))
	page.addElement(anchorSelector, anchor)
	e := authenticatedEngine(t, page, nil)

	shipments, err := e.LoadShipments(context.Background())
	require.NoError(t, err)
	require.Len(t, shipments, 1)
	assert.Equal(t, Unknown, shipments[0].Status)
	assert.Equal(t, Unknown, shipments[0].CustomerName)
}

func TestLoadShipmentsMissingSearchControlIsFatal(t *testing.T) {
	// Neither the id-based nor any fallback search control exists.
	page := newFakePage()
	page.addElement(anchorSelector, shipmentRow("12345678901", "Zugestellt", "Maria Huber", "05.01.24"))
	rec := &progressRecorder{}
	e := authenticatedEngine(t, page, rec)

	_, err := e.LoadShipments(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrControlNotFound)

	var stepError *StepError
	require.ErrorAs(t, err, &stepError)
	assert.Equal(t, StepSearching, stepError.Step)

	assert.Equal(t, StateClosed, e.State(), "an empty result must never be returned silently")
	step, progress := rec.last()
	assert.Equal(t, StepFailed, step)
	assert.Equal(t, 0, progress)
}

func TestLoadShipmentsClickHandlerFallback(t *testing.T) {
	// No openDetail anchors at all; discovery falls back to generic click
	// handlers and keeps only tracking-number shaped ones.
	trackingEl := shipmentRow("12345678901", "Zugestellt", "Maria Huber", "05.01.24")
	noise := newFakeElement("span", "Einstellungen")

	page := newFakePage()
	page.addElement("#search", newFakeElement("button", "Suchen"))
	page.addElement("[ng-click], [onclick]", noise, trackingEl)
	e := authenticatedEngine(t, page, nil)

	shipments, err := e.LoadShipments(context.Background())
	require.NoError(t, err)
	require.Len(t, shipments, 1)
	assert.Equal(t, "12345678901", shipments[0].TrackingNumber)
}

func TestLoadShipmentsNoRowsAnywhereIsFatal(t *testing.T) {
	page := newFakePage()
	page.addElement("#search", newFakeElement("button", "Suchen"))
	e := authenticatedEngine(t, page, nil)

	_, err := e.LoadShipments(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrControlNotFound)
	assert.Equal(t, StateClosed, e.State())
}

func TestExtractRowPrefersTitleAttributeForRecipient(t *testing.T) {
	anchor := newFakeElement("a", "12345678901")
	cell := newFakeElement("td", "")
	row := newFakeElement("tr", "")
	anchor.parent = cell
	cell.parent = row

	p := newFakeElement("p", "abgeschnittener Na...").withAttr("title", "Langer Empfängername")
	row.withChild(`.//td[contains(@id, "consigneeName")]//p[contains(@class, "truncate-ellipsis")]`, p)

	e := NewEngine(&fakeFactory{page: newFakePage()}, testConfig(), zap.NewNop())
	summary := e.extractRow(context.Background(), anchor, "12345678901")
	assert.Equal(t, "Langer Empfängername", summary.CustomerName)
}

func TestLastUpdateSkipsTrackingNumberTexts(t *testing.T) {
	anchor := newFakeElement("a", "12345678901")
	cell := newFakeElement("td", "")
	row := newFakeElement("tr", "")
	anchor.parent = cell
	cell.parent = row

	// The generic span cascade can surface the tracking number itself; it
	// must be skipped in favor of the actual date.
	row.withChild(`.//td[contains(@id, "date")]//span[contains(@class, "ng-binding")]`,
		newFakeElement("span", "12345678901"),
		newFakeElement("span", "07.03.24"))

	e := NewEngine(&fakeFactory{page: newFakePage()}, testConfig(), zap.NewNop())
	summary := e.extractRow(context.Background(), anchor, "12345678901")
	require.NotNil(t, summary.LastUpdate)
	assert.Equal(t, time.Date(2024, 3, 7, 0, 0, 0, 0, time.Local), *summary.LastUpdate)
}
