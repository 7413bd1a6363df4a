package planner

import "github.com/star/mosaicplanner/internal/settings"

// Patch is a partial settings update. Nil fields are left unchanged.
type Patch struct {
	Enabled        *bool    `json:"enabled,omitempty"`
	PanelsX        *int     `json:"panels_x,omitempty"`
	PanelsY        *int     `json:"panels_y,omitempty"`
	RotationDeg    *float64 `json:"rotation_deg,omitempty"`
	OverlapPercent *float64 `json:"overlap_percent,omitempty"`
	LineColor      *string  `json:"line_color,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (pt Patch) Empty() bool {
	return pt.Enabled == nil && pt.PanelsX == nil && pt.PanelsY == nil &&
		pt.RotationDeg == nil && pt.OverlapPercent == nil && pt.LineColor == nil
}

// Apply runs each field of pt through its setter and returns the fields that
// actually changed. The color is checked first so a bad patch changes nothing.
func (p *Planner) Apply(pt Patch) ([]Field, error) {
	if pt.LineColor != nil && !settings.ValidColor(*pt.LineColor) {
		return nil, ErrInvalidColor
	}

	var changed []Field
	track := func(f Field, ok bool) {
		if ok {
			changed = append(changed, f)
		}
	}

	if pt.PanelsX != nil {
		track(FieldPanelsX, p.SetPanelsX(*pt.PanelsX))
	}
	if pt.PanelsY != nil {
		track(FieldPanelsY, p.SetPanelsY(*pt.PanelsY))
	}
	if pt.RotationDeg != nil {
		track(FieldRotation, p.SetRotation(*pt.RotationDeg))
	}
	if pt.OverlapPercent != nil {
		track(FieldOverlap, p.SetOverlap(*pt.OverlapPercent))
	}
	if pt.LineColor != nil {
		ok, _ := p.SetLineColor(*pt.LineColor)
		track(FieldLineColor, ok)
	}
	if pt.Enabled != nil {
		track(FieldEnabled, p.SetEnabled(*pt.Enabled))
	}
	return changed, nil
}
