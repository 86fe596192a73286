package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// TimelineSpan is a single presence interval on a lane.
type TimelineSpan struct {
	Start time.Time
	End   time.Time
}

// TimelineBand is a shaded vertical band across all lanes, used to
// highlight windows of sustained chat activity.
type TimelineBand struct {
	Start time.Time
	End   time.Time
}

// TimelineLane is one student's row on the timeline.
type TimelineLane struct {
	Name   string
	Absent bool
	Spans  []TimelineSpan
	// Marks are question timestamps the student did not respond to.
	Marks []time.Time
}

// TimelineInput carries everything needed to draw a meeting timeline.
type TimelineInput struct {
	Title         string
	Start         time.Time
	End           time.Time
	GraceDeadline time.Time
	Lanes         []TimelineLane
	Bands         []TimelineBand
}

// TimelineExporter renders a per-student attendance timeline as a PDF.
type TimelineExporter struct{}

// NewTimelineExporter constructs a timeline exporter.
func NewTimelineExporter() *TimelineExporter {
	return &TimelineExporter{}
}

const (
	pageWidth    = 297.0 // A4 landscape, mm
	pageHeight   = 210.0
	marginLeft   = 50.0
	marginRight  = 12.0
	marginTop    = 22.0
	marginBottom = 18.0
	laneGap      = 2.0
)

// Render draws one lane per input lane, ordered as given, between the
// meeting start and end. Lanes whose student is marked absent are
// labelled in red; presence spans are clipped to the plotted range.
func (e *TimelineExporter) Render(in TimelineInput) ([]byte, error) {
	if !in.End.After(in.Start) {
		return nil, fmt.Errorf("timeline requires end after start")
	}
	if len(in.Lanes) == 0 {
		return nil, fmt.Errorf("timeline requires at least one lane")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.AddPage()

	if in.Title != "" {
		pdf.SetFont("Arial", "B", 13)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 8, in.Title, "", 1, "C", false, 0, "")
	}

	plotW := pageWidth - marginLeft - marginRight
	plotH := pageHeight - marginTop - marginBottom - 10
	plotTop := marginTop + 10.0
	total := in.End.Sub(in.Start)

	xAt := func(t time.Time) float64 {
		frac := float64(t.Sub(in.Start)) / float64(total)
		if frac < 0 {
			frac = 0
		}
		if frac > 1 {
			frac = 1
		}
		return marginLeft + frac*plotW
	}

	laneH := (plotH - laneGap*float64(len(in.Lanes))) / float64(len(in.Lanes))
	if laneH > 10 {
		laneH = 10
	}
	yAt := func(lane int) float64 {
		return plotTop + float64(lane)*(laneH+laneGap)
	}

	// Question bands first so everything else draws on top of them.
	pdf.SetFillColor(214, 231, 248)
	for _, band := range in.Bands {
		x0, x1 := xAt(band.Start), xAt(band.End)
		if x1 <= x0 {
			x1 = x0 + 0.4
		}
		pdf.Rect(x0, plotTop, x1-x0, plotH, "F")
	}

	for i, lane := range in.Lanes {
		y := yAt(i)

		pdf.SetFont("Arial", "", 8)
		if lane.Absent {
			pdf.SetTextColor(200, 30, 30)
		} else {
			pdf.SetTextColor(60, 60, 60)
		}
		pdf.Text(6, y+laneH*0.7, truncateLabel(lane.Name, 28))

		if lane.Absent {
			pdf.SetFillColor(222, 120, 120)
		} else {
			pdf.SetFillColor(150, 150, 150)
		}
		for _, span := range lane.Spans {
			if !span.End.After(in.Start) || !in.End.After(span.Start) {
				continue
			}
			x0, x1 := xAt(span.Start), xAt(span.End)
			if x1-x0 < 0.4 {
				x1 = x0 + 0.4
			}
			pdf.Rect(x0, y+laneH*0.25, x1-x0, laneH*0.5, "F")
		}

		pdf.SetFillColor(200, 30, 30)
		for _, mark := range lane.Marks {
			pdf.Circle(xAt(mark), y+laneH*0.5, 0.9, "F")
		}
	}

	// Meeting boundaries and the lateness cutoff.
	pdf.SetLineWidth(0.35)
	pdf.SetDrawColor(0, 0, 0)
	pdf.Line(xAt(in.Start), plotTop, xAt(in.Start), plotTop+plotH)
	pdf.Line(xAt(in.End), plotTop, xAt(in.End), plotTop+plotH)
	if in.GraceDeadline.After(in.Start) && in.End.After(in.GraceDeadline) {
		pdf.SetDrawColor(235, 140, 0)
		pdf.Line(xAt(in.GraceDeadline), plotTop, xAt(in.GraceDeadline), plotTop+plotH)
	}

	// Time axis labels every 15 minutes.
	pdf.SetFont("Arial", "", 7)
	pdf.SetTextColor(80, 80, 80)
	pdf.SetDrawColor(170, 170, 170)
	pdf.SetLineWidth(0.1)
	for tick := in.Start.Truncate(15 * time.Minute); !tick.After(in.End); tick = tick.Add(15 * time.Minute) {
		if tick.Before(in.Start) {
			continue
		}
		x := xAt(tick)
		pdf.Line(x, plotTop+plotH, x, plotTop+plotH+1.5)
		pdf.Text(x-4, plotTop+plotH+5, tick.Format("15:04"))
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render timeline pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func truncateLabel(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "~"
}
