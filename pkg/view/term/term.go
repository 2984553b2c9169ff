// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

// Package term draws the dashboard's rows in a terminal.
package term

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/n0ot/rtcdash/pkg/poller"
	"github.com/n0ot/rtcdash/pkg/reconcile"
	"github.com/n0ot/rtcdash/pkg/telemetry"
)

// Columns of the table, left to right.
const (
	colPort = iota
	colClient
	colVideo
	colBitrate
	colState
	numColumns
)

var headers = [numColumns]string{"Port", "Client", "Video", "Bitrate", "State"}

// View is a reconcile.Renderer backed by a tview table.
// Rows may be created and changed from any goroutine;
// every change to the screen is queued onto the application's event loop.
type View struct {
	app    *tview.Application
	table  *tview.Table
	status *tview.TextView
	root   *tview.Flex
	source string

	// queue runs f on the goroutine that owns the widgets.
	queue func(f func())

	// rows is only touched by functions passed to queue.
	rows []*row
}

type row struct {
	view  *View
	cells [numColumns]*tview.TableCell
}

type cell struct {
	row *row
	col int
}

// New creates a View drawing on app. Call Run to start it.
func New(app *tview.Application, source string) *View {
	v := newView(source, func(f func()) { app.QueueUpdateDraw(f) })
	v.app = app
	app.SetRoot(v.root, true)
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || (event.Key() == tcell.KeyRune && event.Rune() == 'q') {
			app.Stop()
			return nil
		}
		return event
	})
	return v
}

func newView(source string, queue func(f func())) *View {
	v := &View{
		table:  tview.NewTable(),
		status: tview.NewTextView(),
		source: source,
		queue:  queue,
	}

	v.table.SetFixed(1, 0)
	v.table.SetSelectable(true, false)
	v.table.SetBorder(true)
	v.table.SetTitle(" rtcdash ")
	for col, h := range headers {
		v.table.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetExpansion(expansion(col)))
	}

	v.status.SetDynamicColors(true)
	v.status.SetText(fmt.Sprintf("%s  [gray]waiting for the first poll; q to quit", tview.Escape(source)))

	v.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.table, 0, 1, true).
		AddItem(v.status, 1, 0, false)
	return v
}

// Run shows the view until the user quits.
func (v *View) Run() error {
	return v.app.Run()
}

// Stop closes the view.
func (v *View) Stop() {
	v.app.Stop()
}

// CreateRow appends a row for a new client.
func (v *View) CreateRow(clientID, bitrate, state, port string) reconcile.Row {
	r := &row{view: v}
	r.cells[colPort] = tview.NewTableCell(tview.Escape(port)).SetAlign(tview.AlignRight)
	r.cells[colClient] = tview.NewTableCell(tview.Escape(clientID)).SetExpansion(expansion(colClient))
	r.cells[colVideo] = tview.NewTableCell(telemetry.Frame("").Describe()).SetExpansion(expansion(colVideo))
	r.cells[colBitrate] = tview.NewTableCell("").SetAlign(tview.AlignRight)
	r.cells[colState] = tview.NewTableCell("")
	setBitrate(r.cells[colBitrate], bitrate)
	setState(r.cells[colState], state)

	v.queue(func() {
		v.rows = append(v.rows, r)
		idx := len(v.rows)
		for col, c := range r.cells {
			v.table.SetCell(idx, col, c)
		}
	})
	return r
}

// RemoveRow takes a row created by this view off the screen.
func (v *View) RemoveRow(rr reconcile.Row) {
	r, ok := rr.(*row)
	if !ok {
		return
	}
	v.queue(func() {
		for i, existing := range v.rows {
			if existing == r {
				v.rows = append(v.rows[:i], v.rows[i+1:]...)
				v.table.RemoveRow(i + 1)
				return
			}
		}
	})
}

// ObservePass shows the outcome of a poll in the status line.
// It is meant to be a poller.Poller's OnPass.
func (v *View) ObservePass(pass poller.Pass) {
	now := time.Now().Format("15:04:05")
	var text string
	if pass.Err != nil {
		text = fmt.Sprintf("%s  [red]%s  %s", tview.Escape(v.source), now, tview.Escape(pass.Err.Error()))
	} else {
		text = fmt.Sprintf("%s  [green]%s  %d clients, %s", tview.Escape(v.source), now, pass.Applied, pass.Duration.Round(time.Millisecond))
	}
	v.queue(func() {
		v.status.SetText(text)
	})
}

func (r *row) SetFrame(f telemetry.Frame) {
	desc := f.Describe()
	r.view.queue(func() {
		r.cells[colVideo].SetText(desc)
	})
}

func (r *row) Cell(tag reconcile.CellTag) (reconcile.Cell, bool) {
	switch tag {
	case reconcile.TagBitrate:
		return cell{row: r, col: colBitrate}, true
	case reconcile.TagState:
		return cell{row: r, col: colState}, true
	default:
		return nil, false
	}
}

func (c cell) SetText(text string) {
	tc := c.row.cells[c.col]
	c.row.view.queue(func() {
		switch c.col {
		case colBitrate:
			setBitrate(tc, text)
		case colState:
			setState(tc, text)
		}
	})
}

func expansion(col int) int {
	switch col {
	case colClient, colVideo:
		return 2
	default:
		return 1
	}
}

// setBitrate shows the bitrate as reported, with its rate in kilobytes per second when it is a number.
func setBitrate(tc *tview.TableCell, bps string) {
	tc.SetText(formatBitrate(bps))
}

func formatBitrate(bps string) string {
	f, err := strconv.ParseFloat(bps, 64)
	if err != nil {
		return tview.Escape(bps)
	}
	return fmt.Sprintf("%s (%.1f KB/s)", bps, f/8000)
}

func setState(tc *tview.TableCell, state string) {
	tc.SetText(tview.Escape(state))
	tc.SetTextColor(healthColor(telemetry.HealthOf(telemetry.ParseICEState(state))))
}

func healthColor(h telemetry.Health) tcell.Color {
	switch h {
	case telemetry.HealthUp:
		return tcell.ColorGreen
	case telemetry.HealthPending:
		return tcell.ColorYellow
	case telemetry.HealthDown:
		return tcell.ColorRed
	default:
		return tcell.ColorGray
	}
}
