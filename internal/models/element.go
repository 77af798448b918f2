package models

import (
	"fmt"
	"strings"
	"time"
)

// Point is a pixel position. For map clicks it is an offset from the
// top-left corner of the map container, not a page coordinate.
type Point struct {
	X float64 `json:"x" toml:"x"`
	Y float64 `json:"y" toml:"y"`
}

// Rect is an element's bounding box in CSS pixels, relative to the viewport
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the middle of the box
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// ElementState is a snapshot of the first element matched by a locator.
// Count is the total number of matches; the remaining fields describe match zero.
type ElementState struct {
	Count    int    `json:"count"`
	Visible  bool   `json:"visible"`
	Enabled  bool   `json:"enabled"`
	Editable bool   `json:"editable"`
	Checked  bool   `json:"checked"`
	Covered  bool   `json:"covered"` // another element receives clicks at the centre point
	Text     string `json:"text"`
	Value    string `json:"value"`
	Tag      string `json:"tag"`
	Box      Rect   `json:"box"`
}

// Found reports whether the locator matched anything
func (s ElementState) Found() bool {
	return s.Count > 0
}

func (s ElementState) String() string {
	if s.Count == 0 {
		return "no matching element"
	}
	text := strings.TrimSpace(s.Text)
	if len(text) > 60 {
		text = text[:57] + "..."
	}
	return fmt.Sprintf("count=%d visible=%t enabled=%t text=%q", s.Count, s.Visible, s.Enabled, text)
}

// ConsoleMessage is one browser console entry captured during a run
type ConsoleMessage struct {
	Type string    `json:"type"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}
