package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/mapcheck/internal/interfaces"
	"github.com/ternarybob/mapcheck/internal/locator"
	"github.com/ternarybob/mapcheck/internal/models"
)

// ShapeKind names a drawable feature type
type ShapeKind string

const (
	ShapePolygon ShapeKind = "polygon"
	ShapeLine    ShapeKind = "line"
	ShapeMarker  ShapeKind = "marker"
)

// completionPolicy is the editor's drawing gesture for one shape kind:
// which toolbar button starts it, how many points it needs and which
// extra clicks finish it.
type completionPolicy struct {
	tool      locator.Locator
	minPoints int
	maxPoints int // 0 means unbounded
	finish    func(points []models.Point) []models.Point
}

var completionPolicies = map[ShapeKind]completionPolicy{
	// closes by revisiting the first vertex
	ShapePolygon: {
		tool:      locator.DrawPolygonTool,
		minPoints: 3,
		finish:    func(p []models.Point) []models.Point { return []models.Point{p[0]} },
	},
	// finishes on a doubled final click
	ShapeLine: {
		tool:      locator.DrawPolylineTool,
		minPoints: 2,
		finish:    func(p []models.Point) []models.Point { return []models.Point{p[len(p)-1]} },
	},
	ShapeMarker: {
		tool:      locator.DrawMarkerTool,
		minPoints: 1,
		maxPoints: 1,
	},
}

// ParseShapeKind accepts polygon, line (or polyline) and marker
func ParseShapeKind(s string) (ShapeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "polygon":
		return ShapePolygon, nil
	case "line", "polyline":
		return ShapeLine, nil
	case "marker", "point":
		return ShapeMarker, nil
	}
	return "", fmt.Errorf("unknown shape kind %q (want polygon, line or marker)", s)
}

// ClickSequence returns every map click needed to draw kind through points,
// terminating gesture included. points must not contain the terminator.
func ClickSequence(kind ShapeKind, points []models.Point) ([]models.Point, error) {
	policy, ok := completionPolicies[kind]
	if !ok {
		return nil, fmt.Errorf("unknown shape kind %q", kind)
	}
	if len(points) < policy.minPoints {
		return nil, fmt.Errorf("%s needs at least %d points, got %d", kind, policy.minPoints, len(points))
	}
	if policy.maxPoints > 0 && len(points) > policy.maxPoints {
		return nil, fmt.Errorf("%s takes at most %d points, got %d", kind, policy.maxPoints, len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i] == points[i-1] {
			return nil, fmt.Errorf("%s point %d repeats point %d; the finishing click is added automatically", kind, i+1, i)
		}
	}
	if kind == ShapePolygon && points[len(points)-1] == points[0] {
		return nil, fmt.Errorf("polygon ends on its first point; the closing click is added automatically")
	}

	seq := make([]models.Point, 0, len(points)+1)
	seq = append(seq, points...)
	if policy.finish != nil {
		seq = append(seq, policy.finish(points)...)
	}
	return seq, nil
}

// DrawShape activates the draw tool for kind and clicks the map at each
// point (offsets from the map container's top-left corner), then applies
// the terminating gesture. Each call draws a new feature.
func (a *Actions) DrawShape(ctx context.Context, page interfaces.Page, kind ShapeKind, points []models.Point) error {
	seq, err := ClickSequence(kind, points)
	if err != nil {
		return err
	}
	policy := completionPolicies[kind]

	startTime := time.Now()
	if err := a.Click(ctx, page, policy.tool); err != nil {
		return fmt.Errorf("activate %s tool: %w", kind, err)
	}
	for i, p := range seq {
		if err := a.ClickAt(ctx, page, locator.MapContainer, p); err != nil {
			return fmt.Errorf("draw %s click %d of %d: %w", kind, i+1, len(seq), err)
		}
	}

	a.logger.Debug().
		Str("shape", string(kind)).
		Int("points", len(points)).
		Int("clicks", len(seq)).
		Dur("elapsed", time.Since(startTime)).
		Msg("Shape drawn")
	return nil
}
