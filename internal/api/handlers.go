package api

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/star/mosaicplanner/internal/equipment"
	"github.com/star/mosaicplanner/internal/httputil"
	"github.com/star/mosaicplanner/internal/mosaic"
	"github.com/star/mosaicplanner/internal/planner"
	"github.com/star/mosaicplanner/internal/projection"
	"github.com/star/mosaicplanner/internal/transform"
)

// outlineTimeout bounds outline generation for one request.
const outlineTimeout = 5 * time.Second

// Viewport limits for the outlines endpoint.
const (
	maxViewportPx = 8192
	maxViewFOVDeg = 170
)

type fovPayload struct {
	XDeg            float64 `json:"x_deg"`
	YDeg            float64 `json:"y_deg"`
	ChipRotationDeg float64 `json:"chip_rotation_deg"`
}

type equipmentResponse struct {
	Catalog   *equipment.Catalog  `json:"catalog"`
	Selection equipment.Selection `json:"selection"`
	FOV       *fovPayload         `json:"fov"`
	Frame     string              `json:"frame"`
}

func buildEquipmentResponse(p *planner.Planner) equipmentResponse {
	resp := equipmentResponse{
		Catalog:   p.Catalog(),
		Selection: p.Selection(),
		Frame:     p.Frame().String(),
	}
	if fov, ok := p.FOV(); ok {
		resp.FOV = &fovPayload{XDeg: fov.XDeg, YDeg: fov.YDeg, ChipRotationDeg: fov.ChipRotationDeg}
	}
	return resp
}

// equipmentHandler returns the catalog, the selection and the resolved field
// of view (null when nothing usable is selected).
// GET /api/v1/equipment
func equipmentHandler(p *planner.Planner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, buildEquipmentResponse(p))
	}
}

// selectionHandler changes the selected equipment.
// PUT /api/v1/equipment/selection {"ccd":0,"telescope":1,"lens":-1}
func selectionHandler(logger *slog.Logger, p *planner.Planner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sel equipment.Selection
		if err := httputil.DecodeJSON(w, r, &sel); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if sel.Lens < equipment.NoLens {
			sel.Lens = equipment.NoLens
		}
		if p.SetSelection(sel) {
			logger.Info("equipment selection changed",
				"ccd", sel.CCD,
				"telescope", sel.Telescope,
				"lens", sel.Lens,
			)
		}
		httputil.WriteJSON(w, http.StatusOK, buildEquipmentResponse(p))
	}
}

type configResponse struct {
	Enabled   bool          `json:"enabled"`
	Config    mosaic.Config `json:"config"`
	LineColor string        `json:"line_color"`
	Changed   []string      `json:"changed,omitempty"`
}

func buildConfigResponse(p *planner.Planner) configResponse {
	s := p.Settings()
	return configResponse{
		Enabled:   s.Enabled,
		Config:    s.Mosaic,
		LineColor: s.LineColor,
	}
}

// configGetHandler returns the mosaic settings.
// GET /api/v1/mosaic/config
func configGetHandler(p *planner.Planner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, buildConfigResponse(p))
	}
}

// configPutHandler applies a partial settings update. Values are clamped the
// same way the setters clamp them; the response reports the stored values.
// PUT /api/v1/mosaic/config {"panels_x":4,"rotation_deg":30}
func configPutHandler(logger *slog.Logger, p *planner.Planner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch planner.Patch
		if err := httputil.DecodeJSON(w, r, &patch); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if patch.Empty() {
			httputil.WriteError(w, http.StatusBadRequest, "no settings in request")
			return
		}

		changed, err := p.Apply(patch)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		resp := buildConfigResponse(p)
		for _, f := range changed {
			resp.Changed = append(resp.Changed, string(f))
		}
		logger.Debug("mosaic config updated", "changed", resp.Changed)
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

// observerDefaults supplies the site and clock used when a request does not
// name them.
type observerDefaults struct {
	site transform.Site
	now  func() time.Time
}

// layoutRequest is an equatorial target seen from a site at an instant.
type layoutRequest struct {
	target transform.Direction
	site   transform.Site
	at     time.Time
}

func floatQuery(r *http.Request, name string, def, min, max float64) (float64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || f < min || f > max {
		return 0, false
	}
	return f, true
}

// parseLayout reads the required ra/dec (degrees) and the optional observer
// lat, lon and RFC 3339 time t.
func parseLayout(r *http.Request, obs observerDefaults) (layoutRequest, error) {
	q := r.URL.Query()
	if q.Get("ra") == "" || q.Get("dec") == "" {
		return layoutRequest{}, errors.New("ra and dec are required")
	}
	ra, ok := floatQuery(r, "ra", 0, 0, 360)
	if !ok {
		return layoutRequest{}, errors.New("invalid ra parameter, must be 0-360")
	}
	dec, ok := floatQuery(r, "dec", 0, -90, 90)
	if !ok {
		return layoutRequest{}, errors.New("invalid dec parameter, must be -90-90")
	}
	lat, ok := floatQuery(r, "lat", transform.RadToDeg(obs.site.LatRad), -90, 90)
	if !ok {
		return layoutRequest{}, errors.New("invalid lat parameter, must be -90-90")
	}
	lon, ok := floatQuery(r, "lon", transform.RadToDeg(obs.site.LonRad), -180, 360)
	if !ok {
		return layoutRequest{}, errors.New("invalid lon parameter, must be -180-360")
	}
	at := obs.now()
	if v := q.Get("t"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return layoutRequest{}, errors.New("invalid t parameter, must be RFC 3339")
		}
		at = parsed
	}
	return layoutRequest{
		target: transform.DirectionFromSpherical(transform.FrameEquatorial,
			transform.DegToRad(ra), transform.DegToRad(dec)),
		site: transform.NewSite(lat, lon),
		at:   at,
	}, nil
}

type panelPayload struct {
	I              int        `json:"i"`
	J              int        `json:"j"`
	RADeg          float64    `json:"ra_deg"`
	DecDeg         float64    `json:"dec_deg"`
	AzDeg          float64    `json:"az_deg"`
	AltDeg         float64    `json:"alt_deg"`
	OrientationDeg float64    `json:"orientation_deg"`
	Vec            [3]float64 `json:"vec"` // in the layout frame
}

type panelsResponse struct {
	Frame  string         `json:"frame"`
	T      string         `json:"t"`
	Count  int            `json:"count"`
	Panels []panelPayload `json:"panels"`
}

// panelsHandler lays out the mosaic around an equatorial target in the
// frame of the selected mount. Positions are reported in both frames, taken
// from the panel vectors. The list is empty while mosaic mode is off or no
// equipment is selected.
// GET /api/v1/mosaic/panels?ra=83.8&dec=-5.4&lat=48.1&lon=11.6&t=2026-03-20T22:00:00Z
func panelsHandler(p *planner.Planner, obs observerDefaults) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseLayout(r, obs)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		center := p.ViewCenter(req.target, req.site, req.at)
		panels := p.Panels(center)
		out := make([]panelPayload, len(panels))
		for k, pn := range panels {
			ra, dec := transform.Convert(pn.Center, transform.FrameEquatorial, req.site, req.at).Spherical()
			hz := transform.Convert(pn.Center, transform.FrameHorizontal, req.site, req.at).Vec
			out[k] = panelPayload{
				I:              pn.IndexX,
				J:              pn.IndexY,
				RADeg:          transform.RadToDeg(ra),
				DecDeg:         transform.RadToDeg(dec),
				AzDeg:          transform.RadToDeg(transform.CompassAzimuth(hz)),
				AltDeg:         transform.RadToDeg(transform.Altitude(hz)),
				OrientationDeg: transform.RadToDeg(pn.Orientation),
				Vec:            [3]float64{pn.Center.Vec.X, pn.Center.Vec.Y, pn.Center.Vec.Z},
			}
		}
		httputil.WriteJSON(w, http.StatusOK, panelsResponse{
			Frame:  center.Frame.String(),
			T:      req.at.UTC().Format(time.RFC3339),
			Count:  len(out),
			Panels: out,
		})
	}
}

type outlinePayload struct {
	I int `json:"i"`
	J int `json:"j"`
	// Points are screen pixels; null marks a point the projection cannot show.
	Points []*[2]float64 `json:"points"`
}

type outlinesResponse struct {
	Frame      string           `json:"frame"`
	T          string           `json:"t"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	Projection string           `json:"projection"`
	Scale      float64          `json:"scale"`
	LineColor  string           `json:"line_color"`
	Outlines   []outlinePayload `json:"outlines"`
}

func intParam(r *http.Request, name string, def, min, max int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return 0, false
	}
	return n, true
}

// outlinesHandler projects the outline of every panel into a viewport
// centered on the target. An alt-az mount gets an alt-az viewport, so roll 0
// keeps the zenith up.
// GET /api/v1/mosaic/outlines?ra=83.8&dec=-5.4&width=1024&height=768&fov=10&roll=0&projection=gnomonic
func outlinesHandler(logger *slog.Logger, p *planner.Planner, obs observerDefaults) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseLayout(r, obs)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		width, ok := intParam(r, "width", 1024, 1, maxViewportPx)
		if !ok {
			httputil.WriteError(w, http.StatusBadRequest, "invalid width parameter, must be 1-8192")
			return
		}
		height, ok := intParam(r, "height", 768, 1, maxViewportPx)
		if !ok {
			httputil.WriteError(w, http.StatusBadRequest, "invalid height parameter, must be 1-8192")
			return
		}
		fovDeg, ok := floatQuery(r, "fov", 10, 0, maxViewFOVDeg)
		if !ok || fovDeg == 0 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid fov parameter, must be in (0, 170]")
			return
		}
		rollDeg, ok := floatQuery(r, "roll", 0, -360, 360)
		if !ok {
			httputil.WriteError(w, http.StatusBadRequest, "invalid roll parameter, must be -360-360")
			return
		}
		kind, err := projection.ParseKind(r.URL.Query().Get("projection"))
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		center := p.ViewCenter(req.target, req.site, req.at)
		scale := projection.ScaleForFOV(kind, fovDeg, width)
		proj := projection.New(kind, projection.View{
			Center: center,
			Roll:   transform.DegToRad(rollDeg),
			Scale:  scale,
			Width:  width,
			Height: height,
		})

		panels := p.Panels(center)

		ctx, cancel := context.WithTimeout(r.Context(), outlineTimeout)
		defer cancel()
		outlines, err := p.Outlines(ctx, panels, proj.Project)
		if err != nil {
			logger.Warn("outline generation failed", "error", err, "panels", len(panels))
			httputil.WriteError(w, http.StatusServiceUnavailable, "outline generation did not finish")
			return
		}

		resp := outlinesResponse{
			Frame:      center.Frame.String(),
			T:          req.at.UTC().Format(time.RFC3339),
			Width:      width,
			Height:     height,
			Projection: kind.String(),
			Scale:      scale,
			LineColor:  p.Settings().LineColor,
			Outlines:   make([]outlinePayload, len(outlines)),
		}
		for k, pts := range outlines {
			payload := outlinePayload{
				I:      panels[k].IndexX,
				J:      panels[k].IndexY,
				Points: make([]*[2]float64, len(pts)),
			}
			for n, pt := range pts {
				if projection.IsBehind(pt) {
					continue
				}
				payload.Points[n] = &[2]float64{pt.X, pt.Y}
			}
			resp.Outlines[k] = payload
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}
