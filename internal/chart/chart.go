// Package chart renders the dashboard's AQI charts as PNG images.
package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/lox/airwatch/internal/aqi"
)

const (
	Width  = 960
	Height = 360

	marginLeft   = 56
	marginRight  = 20
	marginTop    = 36
	marginBottom = 44
)

var (
	background = color.RGBA{0xff, 0xff, 0xff, 0xff}
	axisColor  = color.RGBA{0x55, 0x55, 0x55, 0xff}
	gridColor  = color.RGBA{0xe5, 0xe5, 0xe5, 0xff}
	lineColor  = color.RGBA{0x1f, 0x4e, 0x79, 0xff}
	textColor  = color.RGBA{0x22, 0x22, 0x22, 0xff}
)

var (
	face     font.Face
	faceOnce sync.Once
	faceErr  error
)

func loadFace() (font.Face, error) {
	faceOnce.Do(func() {
		f, err := opentype.Parse(goregular.TTF)
		if err != nil {
			faceErr = fmt.Errorf("parse font: %w", err)
			return
		}
		face, err = opentype.NewFace(f, &opentype.FaceOptions{
			Size:    13,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			faceErr = fmt.Errorf("create face: %w", err)
		}
	})
	return face, faceErr
}

type TrendPoint struct {
	Date time.Time
	AQI  float64
}

type Bar struct {
	Label string
	Value float64
	Color color.Color
}

type canvas struct {
	img  *image.RGBA
	face font.Face
}

func newCanvas() (*canvas, error) {
	f, err := loadFace()
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	return &canvas{img: img, face: f}, nil
}

func (c *canvas) encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.img); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *canvas) text(s string, x, y int, col color.Color) {
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: c.face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(s)
}

func (c *canvas) textWidth(s string) int {
	return font.MeasureString(c.face, s).Round()
}

func (c *canvas) rect(r image.Rectangle, col color.Color) {
	draw.Draw(c.img, r, image.NewUniform(col), image.Point{}, draw.Over)
}

// polyline strokes the path through pts with the given width.
func (c *canvas) polyline(pts [][2]float64, width float64, col color.Color) {
	if len(pts) == 0 {
		return
	}
	r := vector.NewRasterizer(Width, Height)
	half := width / 2
	if len(pts) == 1 {
		x, y := pts[0][0], pts[0][1]
		r.MoveTo(float32(x-half-1), float32(y-half-1))
		r.LineTo(float32(x+half+1), float32(y-half-1))
		r.LineTo(float32(x+half+1), float32(y+half+1))
		r.LineTo(float32(x-half-1), float32(y+half+1))
		r.ClosePath()
	}
	for i := 1; i < len(pts); i++ {
		x0, y0 := pts[i-1][0], pts[i-1][1]
		x1, y1 := pts[i][0], pts[i][1]
		dx, dy := x1-x0, y1-y0
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*half, dx/l*half
		r.MoveTo(float32(x0+nx), float32(y0+ny))
		r.LineTo(float32(x1+nx), float32(y1+ny))
		r.LineTo(float32(x1-nx), float32(y1-ny))
		r.LineTo(float32(x0-nx), float32(y0-ny))
		r.ClosePath()
	}
	r.Draw(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{})
}

func (c *canvas) title(s string) {
	c.text(s, marginLeft, 22, textColor)
}

func (c *canvas) empty(msg string) {
	w := c.textWidth(msg)
	c.text(msg, (Width-w)/2, Height/2, axisColor)
}

func plotRect() image.Rectangle {
	return image.Rect(marginLeft, marginTop, Width-marginRight, Height-marginBottom)
}

// Trend draws AQI over time on top of the category bands.
func Trend(points []TrendPoint, title string) ([]byte, error) {
	c, err := newCanvas()
	if err != nil {
		return nil, err
	}
	c.title(title)
	if len(points) == 0 {
		c.empty("No data for the selected filters")
		return c.encode()
	}

	lo, hi := points[0].AQI, points[0].AQI
	for _, p := range points {
		lo = math.Min(lo, p.AQI)
		hi = math.Max(hi, p.AQI)
	}
	lo = math.Min(0, lo)
	hi = math.Max(hi*1.1, 50)

	pr := plotRect()
	yOf := func(v float64) float64 {
		return float64(pr.Max.Y) - (v-lo)/(hi-lo)*float64(pr.Dy())
	}

	prev := lo
	for i, upper := range append(aqi.Bounds(), math.Inf(1)) {
		c0 := aqi.Categories[i].RGBA()
		band := color.NRGBA{c0.R, c0.G, c0.B, 0x28}
		top := math.Max(yOf(math.Min(upper, hi)), float64(pr.Min.Y))
		bottom := math.Min(yOf(prev), float64(pr.Max.Y))
		if bottom > top {
			c.rect(image.Rect(pr.Min.X, int(top), pr.Max.X, int(bottom)), band)
		}
		if upper >= hi {
			break
		}
		prev = upper
	}

	c.yAxis(pr, lo, hi, yOf)

	first, last := points[0].Date, points[len(points)-1].Date
	span := last.Sub(first).Hours()
	xOf := func(t time.Time) float64 {
		if span == 0 {
			return float64(pr.Min.X+pr.Max.X) / 2
		}
		return float64(pr.Min.X) + t.Sub(first).Hours()/span*float64(pr.Dx())
	}

	pts := make([][2]float64, len(points))
	for i, p := range points {
		pts[i] = [2]float64{xOf(p.Date), yOf(p.AQI)}
	}
	c.polyline(pts, 2, lineColor)

	c.text(first.Format("2006-01-02"), pr.Min.X, pr.Max.Y+20, textColor)
	if span > 0 {
		s := last.Format("2006-01-02")
		c.text(s, pr.Max.X-c.textWidth(s), pr.Max.Y+20, textColor)
	}
	c.text("date", (pr.Min.X+pr.Max.X)/2-c.textWidth("date")/2, Height-8, axisColor)

	return c.encode()
}

// Bars draws one vertical bar per entry, labelled underneath.
func Bars(bars []Bar, title string) ([]byte, error) {
	c, err := newCanvas()
	if err != nil {
		return nil, err
	}
	c.title(title)
	if len(bars) == 0 {
		c.empty("No data for the selected filters")
		return c.encode()
	}

	hi := 1.0
	for _, b := range bars {
		hi = math.Max(hi, b.Value)
	}
	hi *= 1.15

	pr := plotRect()
	yOf := func(v float64) float64 {
		return float64(pr.Max.Y) - v/hi*float64(pr.Dy())
	}
	c.yAxis(pr, 0, hi, yOf)

	slot := pr.Dx() / len(bars)
	barW := slot * 3 / 5
	for i, b := range bars {
		x0 := pr.Min.X + i*slot + (slot-barW)/2
		top := int(yOf(b.Value))
		c.rect(image.Rect(x0, top, x0+barW, pr.Max.Y), b.Color)

		v := fmt.Sprintf("%.0f", b.Value)
		c.text(v, x0+barW/2-c.textWidth(v)/2, top-4, textColor)
		c.text(b.Label, x0+barW/2-c.textWidth(b.Label)/2, pr.Max.Y+20, textColor)
	}
	return c.encode()
}

func (c *canvas) yAxis(pr image.Rectangle, lo, hi float64, yOf func(float64) float64) {
	step := niceStep(hi - lo)
	for v := math.Ceil(lo/step) * step; v <= hi; v += step {
		y := int(yOf(v))
		c.rect(image.Rect(pr.Min.X, y, pr.Max.X, y+1), gridColor)
		label := fmt.Sprintf("%.0f", v)
		c.text(label, pr.Min.X-6-c.textWidth(label), y+4, textColor)
	}
	c.rect(image.Rect(pr.Min.X, pr.Min.Y, pr.Min.X+1, pr.Max.Y), axisColor)
	c.rect(image.Rect(pr.Min.X, pr.Max.Y, pr.Max.X, pr.Max.Y+1), axisColor)
}

// niceStep picks a 1/2/5 x 10^n tick step giving roughly five ticks.
func niceStep(span float64) float64 {
	if span <= 0 {
		return 1
	}
	raw := span / 5
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch r := raw / mag; {
	case r < 1.5:
		return mag
	case r < 3.5:
		return 2 * mag
	case r < 7.5:
		return 5 * mag
	default:
		return 10 * mag
	}
}
