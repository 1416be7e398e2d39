package sim

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ternarybob/smoke/internal/models"
)

const (
	shotWidth  = 960
	shotHeight = 600
	lineHeight = 15
	marginLeft = 8
)

var (
	colorBackground = color.RGBA{0x1e, 0x1e, 0x1e, 0xff}
	colorText       = color.RGBA{0xd4, 0xd4, 0xd4, 0xff}
	colorDim        = color.RGBA{0x85, 0x85, 0x85, 0xff}
	colorWarning    = color.RGBA{0xcc, 0xa7, 0x00, 0xff}
	colorError      = color.RGBA{0xf4, 0x87, 0x71, 0xff}
	colorAccent     = color.RGBA{0x37, 0x94, 0xff, 0xff}
)

type shotLine struct {
	text  string
	color color.Color
}

// screenshot draws a text rendition of the visible workbench as a PNG
func (a *App) screenshot() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, shotWidth, shotHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: colorBackground}, image.Point{}, draw.Src)

	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	for i, line := range a.visibleLines() {
		y := (i + 1) * lineHeight
		if y > shotHeight-4 {
			break
		}
		drawer.Src = image.NewUniform(line.color)
		drawer.Dot = fixed.P(marginLeft, y)
		drawer.DrawString(line.text)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode sim screenshot: %w", err)
	}
	return buf.Bytes(), nil
}

func (a *App) visibleLines() []shotLine {
	if !a.ready {
		return []shotLine{{"Loading...", colorDim}}
	}

	lines := []shotLine{{"Smoke Editor", colorAccent}}

	if q := a.quickOpen; q != nil {
		prefix := "> "
		if q.mode == modeOutline {
			prefix = "> @"
		}
		lines = append(lines, shotLine{prefix + q.query, colorAccent})
		if q.rowsReady {
			for i, row := range a.quickOpenRows() {
				marker := "  "
				if i == q.selected {
					marker = "* "
				}
				lines = append(lines, shotLine{marker + row.label + "  " + row.description, colorText})
			}
		}
		lines = append(lines, shotLine{"", colorText})
	}

	if b, ok := a.buffers[a.active]; ok {
		lines = append(lines, shotLine{"[" + a.active + "]", colorDim})
		severityByLine := map[int]models.ProblemSeverity{}
		for _, d := range a.diagnostics[a.active] {
			if severityByLine[d.line] != models.SeverityError {
				severityByLine[d.line] = d.severity
			}
		}
		for i, text := range b.lines() {
			c := color.Color(colorText)
			switch severityByLine[i+1] {
			case models.SeverityWarning:
				c = colorWarning
			case models.SeverityError:
				c = colorError
			}
			lines = append(lines, shotLine{fmt.Sprintf("%3d  %s", i+1, text), c})
		}
	}

	if a.problems {
		lines = append(lines, shotLine{"", colorText}, shotLine{"PROBLEMS", colorAccent})
		for _, p := range a.order {
			for _, d := range a.diagnostics[p] {
				c := colorWarning
				if d.severity == models.SeverityError {
					c = colorError
				}
				lines = append(lines, shotLine{fmt.Sprintf("%s %s  %s [%d, %d]", d.severity, p, d.message, d.line, d.col), c})
			}
		}
	}

	return lines
}
