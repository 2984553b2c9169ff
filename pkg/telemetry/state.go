// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package telemetry

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

// Health buckets ICE connection states for display.
type Health int

const (
	HealthUnknown Health = iota
	HealthPending        // new, checking
	HealthUp             // connected, completed
	HealthDown           // disconnected, failed, closed
)

func (h Health) String() string {
	switch h {
	case HealthPending:
		return "pending"
	case HealthUp:
		return "up"
	case HealthDown:
		return "down"
	default:
		return "unknown"
	}
}

// ICEState classifies the raw connection state reported for the client.
func (rec Record) ICEState() webrtc.ICEConnectionState {
	return ParseICEState(rec.ICEConnectionState)
}

// ParseICEState maps a state string such as "connected" onto pion's ICE vocabulary.
func ParseICEState(raw string) webrtc.ICEConnectionState {
	return webrtc.NewICEConnectionState(strings.ToLower(strings.TrimSpace(raw)))
}

// HealthOf buckets an ICE connection state.
func HealthOf(state webrtc.ICEConnectionState) Health {
	switch state {
	case webrtc.ICEConnectionStateNew, webrtc.ICEConnectionStateChecking:
		return HealthPending
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		return HealthUp
	case webrtc.ICEConnectionStateDisconnected, webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateClosed:
		return HealthDown
	default:
		return HealthUnknown
	}
}
