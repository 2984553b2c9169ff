// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package table

import (
	"reflect"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/n0ot/rtcdash/pkg/reconcile"
	"github.com/n0ot/rtcdash/pkg/telemetry"
)

func record(id, bps, state, port string, frame telemetry.Frame) telemetry.Record {
	return telemetry.Record{
		ClientID:           id,
		Video:              frame,
		Bps:                telemetry.Number(bps),
		ICEConnectionState: state,
		PortNum:            telemetry.Number(port),
	}
}

func TestTableThroughReconciler(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	tbl := New()
	rec := reconcile.New(tbl, log)

	rec.ReconcileAll(telemetry.NewSnapshot(
		record("c1", "500000", "connected", "5000", "AAAA"),
		record("c2", "100", "checking", "5001", ""),
	))
	rec.Reconcile(record("c1", "750000", "failed", "6000", "BBBB"))

	wanted := []RowView{
		{Port: "5000", ClientID: "c1", Bitrate: "750000", State: "failed", Health: "down", Video: telemetry.DataURIPrefix + "BBBB", Frame: "BBBB"},
		{Port: "5001", ClientID: "c2", Bitrate: "100", State: "checking", Health: "pending"},
	}
	if got := tbl.Rows(); !reflect.DeepEqual(wanted, got) {
		t.Errorf("Wanted rows\n%+v\ngot\n%+v", wanted, got)
	}

	if row, ok := tbl.Row("c2"); !ok || row.Port != "5001" {
		t.Errorf("Wanted c2 on port 5001, got %+v (found: %v)", row, ok)
	}
	if _, ok := tbl.Row("c3"); ok {
		t.Errorf("Found a row for an unknown client")
	}
}

func TestRemoveRow(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	tbl := New()
	rec := reconcile.New(tbl, log)
	now := time.Unix(1700000000, 0)
	rec.Now = func() time.Time { return now }
	rec.StaleAfter = time.Minute

	rec.Reconcile(record("c1", "1", "connected", "5000", ""))
	now = now.Add(30 * time.Second)
	rec.Reconcile(record("c2", "1", "connected", "5001", ""))
	now = now.Add(45 * time.Second)

	if removed := rec.Sweep(now); !reflect.DeepEqual([]string{"c1"}, removed) {
		t.Fatalf("Wanted c1 removed, got %v", removed)
	}
	rows := tbl.Rows()
	if len(rows) != 1 || rows[0].ClientID != "c2" {
		t.Errorf("Wanted only c2 left, got %+v", rows)
	}
}

func TestSubscribeCoalescesChanges(t *testing.T) {
	tbl := New()
	changes, stop := tbl.Subscribe()
	defer stop()

	r := tbl.CreateRow("c1", "1", "new", "5000")
	r.SetFrame("AAAA")
	c, _ := r.Cell(reconcile.TagBitrate)
	c.SetText("2")

	select {
	case <-changes:
	default:
		t.Fatalf("Wanted a change notification")
	}
	select {
	case <-changes:
		t.Errorf("Wanted changes coalesced into one notification")
	default:
	}

	if tbl.Version() != 3 {
		t.Errorf("Wanted version 3, got %d", tbl.Version())
	}

	// Rewriting the same text is not a change.
	c.SetText("2")
	select {
	case <-changes:
		t.Errorf("Wanted no notification for an unchanged cell")
	default:
	}

	stop()
	c.SetText("3")
	select {
	case <-changes:
		t.Errorf("Wanted no notification after unsubscribing")
	default:
	}
}

func TestConcurrentReaders(t *testing.T) {
	tbl := New()
	var wg sync.WaitGroup
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					tbl.Rows()
				}
			}
		}()
	}

	log, _ := logtest.NewNullLogger()
	rec := reconcile.New(tbl, log)
	for i := 0; i < 100; i++ {
		rec.Reconcile(record("c1", "1", "connected", "5000", "AAAA"))
		rec.Reconcile(record("c2", "2", "connected", "5001", "BBBB"))
	}
	close(done)
	wg.Wait()

	if tbl.Len() != 2 {
		t.Errorf("Wanted 2 rows, got %d", tbl.Len())
	}
}
