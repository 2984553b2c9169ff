// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package telemetry

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"

	"github.com/pkg/errors"
)

// DataURIPrefix turns a base64 JPEG payload into something an <img> can display.
const DataURIPrefix = "data:image/jpeg;base64,"

// A Frame is the latest video frame of a client: a base64 encoded JPEG.
type Frame string

// Bytes decodes the frame into JPEG bytes.
func (f Frame) Bytes() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(string(f))
	if err != nil {
		return nil, errors.Wrap(err, "Decode frame")
	}
	return b, nil
}

// DataURI gets the frame as a data URI.
func (f Frame) DataURI() string {
	return DataURIPrefix + string(f)
}

// Describe summarizes the frame for surfaces that cannot show images.
// Only the JPEG header is decoded.
func (f Frame) Describe() string {
	if f == "" {
		return "no frame"
	}
	b, err := f.Bytes()
	if err != nil {
		return "invalid frame"
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return fmt.Sprintf("not a JPEG (%s)", formatSize(len(b)))
	}
	return fmt.Sprintf("%dx%d JPEG, %s", cfg.Width, cfg.Height, formatSize(len(b)))
}

func formatSize(n int) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	return fmt.Sprintf("%.1f KB", float64(n)/1024)
}
