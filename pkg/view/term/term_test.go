// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package term

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/errors"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/n0ot/rtcdash/pkg/poller"
	"github.com/n0ot/rtcdash/pkg/reconcile"
	"github.com/n0ot/rtcdash/pkg/telemetry"
)

func newTestView() *View {
	return newView("http://127.0.0.1:9999/stats", func(f func()) { f() })
}

func rowText(v *View, r int) []string {
	var texts []string
	for col := 0; col < numColumns; col++ {
		texts = append(texts, v.table.GetCell(r, col).Text)
	}
	return texts
}

func record(id, bps, state, port string) telemetry.Record {
	return telemetry.Record{
		ClientID:           id,
		Bps:                telemetry.Number(bps),
		ICEConnectionState: state,
		PortNum:            telemetry.Number(port),
	}
}

func TestViewThroughReconciler(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	v := newTestView()
	rec := reconcile.New(v, log)

	rec.Reconcile(record("c1", "500000", "checking", "5000"))
	rec.Reconcile(record("c2", "n/a", "new", "5001"))
	rec.Reconcile(record("c1", "800000", "connected", "6000"))

	if got := v.table.GetRowCount(); got != 3 {
		t.Fatalf("Wanted a header and 2 rows, got %d rows", got)
	}
	if wanted, got := []string{"Port", "Client", "Video", "Bitrate", "State"}, rowText(v, 0); !reflect.DeepEqual(wanted, got) {
		t.Errorf("Wanted headers %v, got %v", wanted, got)
	}
	if wanted, got := []string{"5000", "c1", "no frame", "800000 (100.0 KB/s)", "connected"}, rowText(v, 1); !reflect.DeepEqual(wanted, got) {
		t.Errorf("Wanted %v, got %v", wanted, got)
	}
	if wanted, got := []string{"5001", "c2", "no frame", "n/a", "new"}, rowText(v, 2); !reflect.DeepEqual(wanted, got) {
		t.Errorf("Wanted %v, got %v", wanted, got)
	}
}

func TestViewFrameDescription(t *testing.T) {
	v := newTestView()
	r := v.CreateRow("c1", "1", "connected", "5000")
	r.SetFrame("not base64!")
	if got := v.table.GetCell(1, colVideo).Text; got != "invalid frame" {
		t.Errorf("Wanted invalid frame, got %q", got)
	}
}

func TestViewRemoveRow(t *testing.T) {
	v := newTestView()
	first := v.CreateRow("c1", "1", "connected", "5000")
	v.CreateRow("c2", "2", "connected", "5001")
	third := v.CreateRow("c3", "3", "connected", "5002")

	v.RemoveRow(first)
	if got := v.table.GetRowCount(); got != 3 {
		t.Fatalf("Wanted a header and 2 rows, got %d rows", got)
	}
	if got := v.table.GetCell(1, colClient).Text; got != "c2" {
		t.Errorf("Wanted c2 first, got %q", got)
	}

	// Rows keep their cells after others are removed.
	c, _ := third.Cell(reconcile.TagState)
	c.SetText("failed")
	if got := v.table.GetCell(2, colState).Text; got != "failed" {
		t.Errorf("Wanted c3's state updated, got %q", got)
	}
}

func TestViewEscapesText(t *testing.T) {
	v := newTestView()
	v.CreateRow("[red]c1", "[x]", "connected", "5000")
	if got := v.table.GetCell(1, colClient).Text; got != "[red[]c1" {
		t.Errorf("Wanted the id escaped, got %q", got)
	}
}

func TestViewStatusLine(t *testing.T) {
	v := newTestView()
	v.ObservePass(poller.Pass{Applied: 2, Duration: 15 * time.Millisecond})
	if got := v.status.GetText(true); !strings.Contains(got, "2 clients, 15ms") {
		t.Errorf("Wanted the pass summarized, got %q", got)
	}

	v.ObservePass(poller.Pass{Err: errors.New("Fetch http://127.0.0.1:9999/stats: connection refused")})
	if got := v.status.GetText(true); !strings.Contains(got, "connection refused") {
		t.Errorf("Wanted the error shown, got %q", got)
	}
}

func TestHealthColor(t *testing.T) {
	tests := map[string]tcell.Color{
		"connected":    tcell.ColorGreen,
		"completed":    tcell.ColorGreen,
		"checking":     tcell.ColorYellow,
		"new":          tcell.ColorYellow,
		"failed":       tcell.ColorRed,
		"disconnected": tcell.ColorRed,
		"bogus":        tcell.ColorGray,
	}
	for state, wanted := range tests {
		if got := healthColor(telemetry.HealthOf(telemetry.ParseICEState(state))); got != wanted {
			t.Errorf("%s: wanted %v, got %v", state, wanted, got)
		}
	}
}

func TestFormatBitrate(t *testing.T) {
	tests := []struct {
		in, wanted string
	}{
		{"500000", "500000 (62.5 KB/s)"},
		{"123.5", "123.5 (0.0 KB/s)"},
		{"", ""},
		{"fast", "fast"},
	}
	for _, tt := range tests {
		if got := formatBitrate(tt.in); got != tt.wanted {
			t.Errorf("%q: wanted %q, got %q", tt.in, tt.wanted, got)
		}
	}
}
