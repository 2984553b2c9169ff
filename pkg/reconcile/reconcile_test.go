// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package reconcile

import (
	"math/rand"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/n0ot/rtcdash/pkg/telemetry"
)

type fakeCell struct {
	text   string
	writes int
}

func (c *fakeCell) SetText(text string) {
	c.text = text
	c.writes++
}

type fakeRow struct {
	port, clientID *fakeCell
	frame          telemetry.Frame
	frames         int
	cells          map[CellTag]*fakeCell
}

func (r *fakeRow) SetFrame(f telemetry.Frame) {
	r.frame = f
	r.frames++
}

func (r *fakeRow) Cell(tag CellTag) (Cell, bool) {
	c, ok := r.cells[tag]
	if !ok {
		return nil, false
	}
	return c, true
}

type fakeRenderer struct {
	rows    []*fakeRow
	removed []*fakeRow
	// dropTags are left out of every created row.
	dropTags []CellTag
}

func (f *fakeRenderer) CreateRow(clientID, bitrate, state, port string) Row {
	row := &fakeRow{
		port:     &fakeCell{text: port},
		clientID: &fakeCell{text: clientID},
		cells: map[CellTag]*fakeCell{
			TagBitrate: {text: bitrate},
			TagState:   {text: state},
		},
	}
	for _, tag := range f.dropTags {
		delete(row.cells, tag)
	}
	f.rows = append(f.rows, row)
	return row
}

type removingRenderer struct {
	fakeRenderer
}

func (f *removingRenderer) RemoveRow(row Row) {
	for i, r := range f.rows {
		if r == row {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			f.removed = append(f.removed, r)
			return
		}
	}
}

func newTestReconciler(renderer Renderer) (*Reconciler, *logtest.Hook) {
	log, hook := logtest.NewNullLogger()
	log.Level = logrus.DebugLevel
	return New(renderer, log), hook
}

func record(id string, bps, state, port string) telemetry.Record {
	return telemetry.Record{
		ClientID:           id,
		Video:              telemetry.Frame("frame-" + id + "-" + bps),
		Bps:                telemetry.Number(bps),
		ICEConnectionState: state,
		PortNum:            telemetry.Number(port),
	}
}

func TestScenarioFirstSighting(t *testing.T) {
	renderer := &fakeRenderer{}
	rec, _ := newTestReconciler(renderer)

	rec.Reconcile(record("c1", "500000", "connected", "5000"))

	if len(renderer.rows) != 1 {
		t.Fatalf("Wanted 1 row, got %d", len(renderer.rows))
	}
	row := renderer.rows[0]
	if row.port.text != "5000" || row.clientID.text != "c1" {
		t.Errorf("Wanted port 5000 and id c1, got %q and %q", row.port.text, row.clientID.text)
	}
	if got := row.cells[TagBitrate].text; got != "500000" {
		t.Errorf("Wanted bitrate 500000, got %q", got)
	}
	if got := row.cells[TagState].text; got != "connected" {
		t.Errorf("Wanted state connected, got %q", got)
	}
	if row.frame != "frame-c1-500000" || row.frames != 1 {
		t.Errorf("Wanted the frame set once, got %q (%d times)", row.frame, row.frames)
	}
	if rec.Len() != 1 {
		t.Errorf("Wanted Len 1, got %d", rec.Len())
	}
}

func TestScenarioUpdateInPlace(t *testing.T) {
	renderer := &fakeRenderer{}
	rec, _ := newTestReconciler(renderer)

	rec.Reconcile(record("c1", "500000", "connected", "5000"))
	rec.Reconcile(record("c1", "750000", "connected", "5000"))

	if len(renderer.rows) != 1 {
		t.Fatalf("Wanted 1 row, got %d", len(renderer.rows))
	}
	row := renderer.rows[0]
	if got := row.cells[TagBitrate].text; got != "750000" {
		t.Errorf("Wanted bitrate 750000, got %q", got)
	}
	if row.port.text != "5000" || row.clientID.text != "c1" {
		t.Errorf("Port and id changed: %q, %q", row.port.text, row.clientID.text)
	}
	if row.frame != "frame-c1-750000" || row.frames != 2 {
		t.Errorf("Wanted the second frame, got %q (%d frames)", row.frame, row.frames)
	}
}

func TestPortAndIDAreCreateOnce(t *testing.T) {
	renderer := &fakeRenderer{}
	rec, _ := newTestReconciler(renderer)

	rec.Reconcile(record("c1", "1", "checking", "5000"))
	rec.Reconcile(record("c1", "2", "connected", "6000"))

	row := renderer.rows[0]
	if row.port.text != "5000" || row.port.writes != 0 {
		t.Errorf("Wanted port to stay 5000 and never be rewritten, got %q (%d writes)", row.port.text, row.port.writes)
	}
	if row.cells[TagState].text != "connected" {
		t.Errorf("Wanted state connected, got %q", row.cells[TagState].text)
	}
}

func TestIdempotentReconcile(t *testing.T) {
	renderer := &fakeRenderer{}
	rec, _ := newTestReconciler(renderer)

	rec.Reconcile(record("c1", "1", "new", "5000"))
	r := record("c1", "2", "connected", "5000")
	rec.Reconcile(r)
	rec.Reconcile(r)

	if len(renderer.rows) != 1 {
		t.Fatalf("Wanted 1 row, got %d", len(renderer.rows))
	}
	if got := renderer.rows[0].cells[TagBitrate].text; got != "2" {
		t.Errorf("Wanted bitrate 2, got %q", got)
	}
}

func TestScenarioTwoClientsIndependent(t *testing.T) {
	renderer := &fakeRenderer{}
	rec, _ := newTestReconciler(renderer)

	rec.ReconcileAll(telemetry.NewSnapshot(
		record("c1", "100", "connected", "5000"),
		record("c2", "200", "checking", "5001"),
	))
	if len(renderer.rows) != 2 {
		t.Fatalf("Wanted 2 rows, got %d", len(renderer.rows))
	}

	rec.Reconcile(record("c2", "300", "failed", "5001"))

	c1, c2 := renderer.rows[0], renderer.rows[1]
	if c1.clientID.text != "c1" || c2.clientID.text != "c2" {
		t.Fatalf("Rows out of order: %q, %q", c1.clientID.text, c2.clientID.text)
	}
	if c1.cells[TagBitrate].text != "100" || c1.cells[TagState].text != "connected" || c1.frames != 1 {
		t.Errorf("c1 changed when c2 was updated: %+v", c1.cells)
	}
	if c2.cells[TagBitrate].text != "300" || c2.cells[TagState].text != "failed" {
		t.Errorf("c2 not updated: bps %q, state %q", c2.cells[TagBitrate].text, c2.cells[TagState].text)
	}
	if wanted := []string{"c1", "c2"}; !reflect.DeepEqual(wanted, rec.ClientIDs()) {
		t.Errorf("Wanted ids %v, got %v", wanted, rec.ClientIDs())
	}
}

func TestRowCountEqualsDistinctClientsSeen(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	renderer := &fakeRenderer{}
	rec, _ := newTestReconciler(renderer)
	seen := make(map[string]bool)

	prev := 0
	for poll := 0; poll < 200; poll++ {
		var records []telemetry.Record
		for i := rnd.Intn(5); i > 0; i-- {
			id := "c" + strconv.Itoa(rnd.Intn(12))
			seen[id] = true
			records = append(records, record(id, strconv.Itoa(rnd.Intn(1e6)), "connected", "5000"))
		}
		rec.ReconcileAll(telemetry.NewSnapshot(records...))

		if rec.Len() != len(seen) || len(renderer.rows) != len(seen) {
			t.Fatalf("Poll %d: wanted %d rows, reconciler has %d, renderer has %d", poll, len(seen), rec.Len(), len(renderer.rows))
		}
		if rec.Len() < prev {
			t.Fatalf("Poll %d: row count decreased from %d to %d", poll, prev, rec.Len())
		}
		prev = rec.Len()
	}
}

func TestMissingCellAbandonsCall(t *testing.T) {
	renderer := &fakeRenderer{dropTags: []CellTag{TagState}}
	rec, hook := newTestReconciler(renderer)

	rec.Reconcile(record("c1", "1", "connected", "5000"))
	rec.Reconcile(record("c1", "2", "connected", "5000"))

	if len(renderer.rows) != 1 {
		t.Fatalf("Wanted 1 row, got %d", len(renderer.rows))
	}
	row := renderer.rows[0]
	if row.frame != "frame-c1-2" {
		t.Errorf("Wanted the frame update to stand, got %q", row.frame)
	}
	if bps := row.cells[TagBitrate]; bps.writes != 0 {
		t.Errorf("Wanted no bitrate writes after a consistency failure, got %d", bps.writes)
	}

	var errs []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			errs = append(errs, e)
		}
	}
	if len(errs) != 2 {
		t.Fatalf("Wanted 2 logged errors, got %d", len(errs))
	}
	cerr, ok := errs[0].Data["error"].(*RowConsistencyError)
	if !ok {
		t.Fatalf("Wanted a RowConsistencyError, got %T", errs[0].Data["error"])
	}
	if cerr.ClientID != "c1" || !reflect.DeepEqual([]CellTag{TagState}, cerr.Missing) {
		t.Errorf("Unexpected error: %+v", cerr)
	}
}

func TestSweepRemovesStaleRows(t *testing.T) {
	renderer := &removingRenderer{}
	rec, _ := newTestReconciler(renderer)
	now := time.Unix(1700000000, 0)
	rec.Now = func() time.Time { return now }
	rec.StaleAfter = 10 * time.Second

	rec.Reconcile(record("c1", "1", "connected", "5000"))
	rec.Reconcile(record("c2", "1", "connected", "5001"))
	now = now.Add(8 * time.Second)
	rec.Reconcile(record("c2", "2", "connected", "5001"))
	now = now.Add(5 * time.Second)

	removed := rec.Sweep(now)
	if !reflect.DeepEqual([]string{"c1"}, removed) {
		t.Fatalf("Wanted c1 removed, got %v", removed)
	}
	if rec.Len() != 1 || len(renderer.rows) != 1 || renderer.rows[0].clientID.text != "c2" {
		t.Errorf("Wanted only c2 left, got %v", rec.ClientIDs())
	}

	// A returning client gets a fresh row.
	rec.Reconcile(record("c1", "3", "connected", "7000"))
	if rec.Len() != 2 || renderer.rows[1].port.text != "7000" {
		t.Errorf("Wanted a new row for c1 on port 7000, got %v", rec.ClientIDs())
	}
}

func TestSweepDisabled(t *testing.T) {
	renderer := &removingRenderer{}
	rec, _ := newTestReconciler(renderer)
	rec.Reconcile(record("c1", "1", "connected", "5000"))

	if removed := rec.Sweep(time.Now().Add(time.Hour)); removed != nil {
		t.Errorf("Wanted nothing removed without StaleAfter, got %v", removed)
	}

	plain := &fakeRenderer{}
	rec, _ = newTestReconciler(plain)
	rec.StaleAfter = time.Second
	rec.Reconcile(record("c1", "1", "connected", "5000"))
	if removed := rec.Sweep(time.Now().Add(time.Hour)); removed != nil {
		t.Errorf("Wanted nothing removed from a renderer that cannot remove rows, got %v", removed)
	}
}
