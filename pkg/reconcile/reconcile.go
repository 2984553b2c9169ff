// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

// Package reconcile maps telemetry records onto rendered rows, one row per client.
package reconcile

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/n0ot/rtcdash/pkg/telemetry"
)

// RowConsistencyError is logged when a row lacks a cell it was created with.
type RowConsistencyError struct {
	ClientID string
	Missing  []CellTag
}

func (e *RowConsistencyError) Error() string {
	return fmt.Sprintf("Row for %s is missing cells %v", e.ClientID, e.Missing)
}

type entry struct {
	row      Row
	lastSeen time.Time
}

// Reconciler owns the association between client IDs and their rows.
// A Reconciler is not safe for concurrent use; every call must come from the same goroutine.
type Reconciler struct {
	renderer Renderer
	log      *logrus.Logger
	rows     map[string]*entry
	order    []string // client IDs in creation order

	// StaleAfter, if nonzero, lets Sweep remove rows not seen for this long.
	// It has no effect unless the renderer is a RowRemover.
	StaleAfter time.Duration

	// Now is used to stamp sightings. Defaults to time.Now.
	Now func() time.Time
}

// New creates a Reconciler drawing on renderer.
func New(renderer Renderer, log *logrus.Logger) *Reconciler {
	return &Reconciler{
		renderer: renderer,
		log:      log,
		rows:     make(map[string]*entry),
		Now:      time.Now,
	}
}

// Reconcile applies one record: it creates the client's row on first sighting,
// then sets the frame and rewrites the bitrate and state cells.
func (r *Reconciler) Reconcile(rec telemetry.Record) {
	if err := r.reconcile(rec); err != nil {
		r.log.WithFields(logrus.Fields{
			"client_id": rec.ClientID,
			"error":     err,
		}).Error("Bitrate or state cell not found in the client's row")
	}
}

func (r *Reconciler) reconcile(rec telemetry.Record) error {
	bitrate := rec.Bps.String()
	state := rec.ICEConnectionState

	e, ok := r.rows[rec.ClientID]
	if !ok {
		row := r.renderer.CreateRow(rec.ClientID, bitrate, state, rec.PortNum.String())
		e = &entry{row: row}
		r.rows[rec.ClientID] = e
		r.order = append(r.order, rec.ClientID)
		r.log.WithFields(logrus.Fields{
			"client_id": rec.ClientID,
			"port":      rec.PortNum.String(),
		}).Debug("New client")
	}
	e.lastSeen = r.Now()

	e.row.SetFrame(rec.Video)

	bpsCell, bpsOK := e.row.Cell(TagBitrate)
	stateCell, stateOK := e.row.Cell(TagState)
	if !bpsOK || !stateOK {
		err := &RowConsistencyError{ClientID: rec.ClientID}
		if !bpsOK {
			err.Missing = append(err.Missing, TagBitrate)
		}
		if !stateOK {
			err.Missing = append(err.Missing, TagState)
		}
		return err
	}

	bpsCell.SetText(bitrate)
	stateCell.SetText(state)
	return nil
}

// ReconcileAll applies every record of snap in wire order, and returns how many were applied.
func (r *Reconciler) ReconcileAll(snap telemetry.Snapshot) int {
	records := snap.Records()
	for _, rec := range records {
		r.Reconcile(rec)
	}
	return len(records)
}

// Len gets the number of rows.
func (r *Reconciler) Len() int {
	return len(r.rows)
}

// ClientIDs gets the IDs of every client with a row, in the order their rows were created.
func (r *Reconciler) ClientIDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Sweep removes the rows of clients not seen within StaleAfter of now,
// and returns their IDs. A removed client gets a new row if it is seen again.
func (r *Reconciler) Sweep(now time.Time) []string {
	if r.StaleAfter <= 0 {
		return nil
	}
	remover, ok := r.renderer.(RowRemover)
	if !ok {
		return nil
	}

	var removed []string
	kept := r.order[:0]
	for _, id := range r.order {
		e := r.rows[id]
		if now.Sub(e.lastSeen) < r.StaleAfter {
			kept = append(kept, id)
			continue
		}
		remover.RemoveRow(e.row)
		delete(r.rows, id)
		removed = append(removed, id)
		r.log.WithFields(logrus.Fields{
			"client_id": id,
			"last_seen": e.lastSeen,
		}).Info("Removed stale client")
	}
	r.order = kept
	return removed
}
