// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

// Package table keeps the dashboard's rows in memory, for views that read them from other goroutines.
package table

import (
	"sync"

	"github.com/n0ot/rtcdash/pkg/reconcile"
	"github.com/n0ot/rtcdash/pkg/telemetry"
)

// RowView is a copy of one row, safe to hold after the table changes.
type RowView struct {
	Port     string `json:"port"`
	ClientID string `json:"client_id"`
	Bitrate  string `json:"bps"`
	State    string `json:"state"`
	Health   string `json:"health"`

	// Video is the latest frame as a data URI, or empty if there is none.
	Video string `json:"video,omitempty"`

	// Frame is the latest frame as received.
	Frame telemetry.Frame `json:"-"`
}

// Table is a reconcile.Renderer that stores rows in memory.
// It is safe for concurrent use: one goroutine reconciles while others read.
type Table struct {
	lock    sync.RWMutex
	rows    []*row
	version uint64

	subsLock sync.Mutex
	subs     map[chan struct{}]struct{}
}

// New creates an empty Table.
func New() *Table {
	return &Table{subs: make(map[chan struct{}]struct{})}
}

type row struct {
	table    *Table
	port     string
	clientID string
	frame    telemetry.Frame
	cells    map[reconcile.CellTag]*cell
}

type cell struct {
	row  *row
	text string
}

// CreateRow appends a row for a new client.
func (t *Table) CreateRow(clientID, bitrate, state, port string) reconcile.Row {
	r := &row{
		table:    t,
		port:     port,
		clientID: clientID,
	}
	r.cells = map[reconcile.CellTag]*cell{
		reconcile.TagBitrate: {row: r, text: bitrate},
		reconcile.TagState:   {row: r, text: state},
	}

	t.lock.Lock()
	t.rows = append(t.rows, r)
	t.version++
	t.lock.Unlock()
	t.notify()
	return r
}

// RemoveRow takes a row created by this table off of it.
func (t *Table) RemoveRow(rr reconcile.Row) {
	r, ok := rr.(*row)
	if !ok {
		return
	}

	t.lock.Lock()
	removed := false
	for i, existing := range t.rows {
		if existing == r {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			t.version++
			removed = true
			break
		}
	}
	t.lock.Unlock()
	if removed {
		t.notify()
	}
}

func (r *row) SetFrame(f telemetry.Frame) {
	r.table.lock.Lock()
	r.frame = f
	r.table.version++
	r.table.lock.Unlock()
	r.table.notify()
}

func (r *row) Cell(tag reconcile.CellTag) (reconcile.Cell, bool) {
	c, ok := r.cells[tag]
	if !ok {
		return nil, false
	}
	return c, true
}

func (c *cell) SetText(text string) {
	t := c.row.table
	t.lock.Lock()
	if c.text == text {
		t.lock.Unlock()
		return
	}
	c.text = text
	t.version++
	t.lock.Unlock()
	t.notify()
}

// Len gets the number of rows.
func (t *Table) Len() int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return len(t.rows)
}

// Version is incremented on every change to the table.
func (t *Table) Version() uint64 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.version
}

// Rows copies every row, in the order they were created.
func (t *Table) Rows() []RowView {
	t.lock.RLock()
	defer t.lock.RUnlock()

	views := make([]RowView, 0, len(t.rows))
	for _, r := range t.rows {
		views = append(views, r.view())
	}
	return views
}

// Row copies the row of the given client.
func (t *Table) Row(clientID string) (RowView, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	for _, r := range t.rows {
		if r.clientID == clientID {
			return r.view(), true
		}
	}
	return RowView{}, false
}

// view must be called with the table's lock held.
func (r *row) view() RowView {
	v := RowView{
		Port:     r.port,
		ClientID: r.clientID,
		Bitrate:  r.cells[reconcile.TagBitrate].text,
		State:    r.cells[reconcile.TagState].text,
		Frame:    r.frame,
	}
	v.Health = telemetry.HealthOf(telemetry.ParseICEState(v.State)).String()
	if r.frame != "" {
		v.Video = r.frame.DataURI()
	}
	return v
}

// Subscribe returns a channel that receives a value after the table changes,
// and a function that stops the subscription.
// Changes made while a value is pending are coalesced into it.
func (t *Table) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	t.subsLock.Lock()
	t.subs[ch] = struct{}{}
	t.subsLock.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.subsLock.Lock()
			delete(t.subs, ch)
			t.subsLock.Unlock()
		})
	}
}

func (t *Table) notify() {
	t.subsLock.Lock()
	defer t.subsLock.Unlock()
	for ch := range t.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
