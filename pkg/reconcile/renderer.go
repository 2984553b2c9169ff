// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package reconcile

import "github.com/n0ot/rtcdash/pkg/telemetry"

// CellTag names a cell that is rewritten on every sighting of a client.
type CellTag string

const (
	TagBitrate CellTag = "bps"
	TagState   CellTag = "state"
)

// A Renderer is the surface rows are drawn on.
type Renderer interface {
	// CreateRow appends a row with the columns port, client, video, bitrate and state,
	// and returns it so the caller can set its first frame.
	// The port and client cells are never rewritten afterwards.
	CreateRow(clientID, bitrate, state, port string) Row
}

// A Row is one client's rendered counterpart.
type Row interface {
	// SetFrame replaces the row's image with f.
	SetFrame(f telemetry.Frame)

	// Cell finds a tagged cell within this row.
	Cell(tag CellTag) (Cell, bool)
}

// A Cell displays text.
type Cell interface {
	SetText(text string)
}

// A RowRemover can take rows back off its surface.
// Renderers that are not RowRemovers never lose rows.
type RowRemover interface {
	RemoveRow(row Row)
}
