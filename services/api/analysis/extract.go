package analysis

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/dataset"
)

// ErrNotFound is returned when a requested variable, district or species is
// not part of the dataset domain.
var ErrNotFound = errors.New("not found")

// DefaultSpecies is used when a request names no species.
const DefaultSpecies = "p_fal"

// Window is a closed date interval.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DefaultWindow covers 2010-01-01 through 2024-05-01.
func DefaultWindow() Window {
	return Window{
		Start: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (w Window) IsZero() bool { return w.Start.IsZero() && w.End.IsZero() }

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ShiftOrder selects whether the lag is applied before or after windowing.
type ShiftOrder string

const (
	// ShiftThenWindow shifts the full series, then cuts the window. Values
	// from before the window start can shift into it.
	ShiftThenWindow ShiftOrder = "shift_then_window"
	// WindowThenShift cuts the window first; the shift leaves nulls at the
	// window edge.
	WindowThenShift ShiftOrder = "window_then_shift"
)

// ParseShiftOrder accepts the two order names, empty meaning ShiftThenWindow.
func ParseShiftOrder(s string) (ShiftOrder, error) {
	switch ShiftOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", ShiftThenWindow:
		return ShiftThenWindow, nil
	case WindowThenShift:
		return WindowThenShift, nil
	}
	return "", fmt.Errorf("unknown shift order %q", s)
}

// Request selects one series.
type Request struct {
	Variable string
	District string
	Species  string
	Lag      int
	Window   Window
	Order    ShiftOrder
}

// Series is a positionally aligned driver / response pair on a shared
// timestamp axis.
type Series struct {
	Timestamps []time.Time
	Driver     []*float64
	Response   []*float64
	DataTypes  []string
}

func (s Series) Len() int { return len(s.Timestamps) }

// Extract filters the dataset to one (district, variable, species) slice,
// restricts it to the window and lag-shifts the response.
func Extract(ds *dataset.Dataset, req Request) (Series, error) {
	if req.Species == "" {
		req.Species = DefaultSpecies
	}
	if req.Window.IsZero() {
		req.Window = DefaultWindow()
	}
	if req.Order == "" {
		req.Order = ShiftThenWindow
	}

	if !ds.HasVariable(req.Variable) {
		return Series{}, fmt.Errorf("variable %q: %w", req.Variable, ErrNotFound)
	}
	if !ds.HasDistrict(req.District) {
		return Series{}, fmt.Errorf("district %q: %w", req.District, ErrNotFound)
	}
	if !ds.HasSpecies(req.Species) {
		return Series{}, fmt.Errorf("species %q: %w", req.Species, ErrNotFound)
	}

	obs := ds.Series(req.District, req.Variable, req.Species)
	if req.Order == WindowThenShift {
		obs = within(obs, req.Window)
	}

	response := make([]*float64, len(obs))
	for i, o := range obs {
		response[i] = o.Response
	}
	response = Shift(response, req.Lag)

	out := Series{
		Timestamps: make([]time.Time, 0, len(obs)),
		Driver:     make([]*float64, 0, len(obs)),
		Response:   make([]*float64, 0, len(obs)),
		DataTypes:  make([]string, 0, len(obs)),
	}
	for i, o := range obs {
		if !req.Window.Contains(o.Time) {
			continue
		}
		out.Timestamps = append(out.Timestamps, o.Time)
		out.Driver = append(out.Driver, o.Driver)
		out.Response = append(out.Response, response[i])
		out.DataTypes = append(out.DataTypes, o.DataType)
	}
	return out, nil
}

func within(obs []dataset.Observation, w Window) []dataset.Observation {
	out := make([]dataset.Observation, 0, len(obs))
	for _, o := range obs {
		if w.Contains(o.Time) {
			out = append(out, o)
		}
	}
	return out
}
