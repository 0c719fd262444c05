package ui

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
)

// IconState selects the tray icon variant.
type IconState int

const (
	IconDisconnected IconState = iota
	IconConnecting
	IconConnected
	IconError
)

// IconConfig defines the configuration for icon generation.
type IconConfig struct {
	Size        int
	FillColor   color.RGBA
	BorderColor color.RGBA
	AccentColor color.RGBA
	SymbolColor color.RGBA
	Symbol      IconState
}

// IconConfigFor returns the palette of state.
func IconConfigFor(state IconState) IconConfig {
	white := color.RGBA{255, 255, 255, 255}
	cfg := IconConfig{Size: 32, SymbolColor: white, Symbol: state}
	switch state {
	case IconConnected:
		cfg.FillColor = color.RGBA{56, 142, 60, 255}
		cfg.BorderColor = color.RGBA{76, 175, 80, 255}
		cfg.AccentColor = color.RGBA{200, 230, 201, 255}
	case IconConnecting:
		cfg.FillColor = color.RGBA{245, 124, 0, 255}
		cfg.BorderColor = color.RGBA{255, 167, 38, 255}
		cfg.AccentColor = color.RGBA{255, 224, 178, 255}
	case IconError:
		cfg.FillColor = color.RGBA{198, 40, 40, 255}
		cfg.BorderColor = color.RGBA{229, 57, 53, 255}
		cfg.AccentColor = color.RGBA{255, 205, 210, 255}
	default:
		cfg.FillColor = color.RGBA{117, 117, 117, 255}
		cfg.BorderColor = color.RGBA{158, 158, 158, 255}
		cfg.AccentColor = color.RGBA{189, 189, 189, 255}
	}
	return cfg
}

// IconGenerator draws shield shaped tray icons.
type IconGenerator struct {
	config IconConfig
}

// NewIconGenerator creates a new icon generator with the given config.
func NewIconGenerator(config IconConfig) *IconGenerator {
	return &IconGenerator{config: config}
}

// Image draws the icon.
func (g *IconGenerator) Image() *image.RGBA {
	size := g.config.Size
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	g.drawShield(img)
	switch g.config.Symbol {
	case IconConnected:
		g.drawCheckmark(img)
	case IconConnecting:
		g.drawDots(img)
	case IconError:
		g.drawCross(img)
	default:
		g.drawLock(img)
	}
	return img
}

// PNG encodes the icon as PNG.
func (g *IconGenerator) PNG() []byte {
	var buf bytes.Buffer
	png.Encode(&buf, g.Image())
	return buf.Bytes()
}

// ICO encodes the icon as a single image ICO file with a PNG payload,
// the format the Windows notification area expects.
func (g *IconGenerator) ICO() []byte {
	return encodeICO(g.PNG(), g.config.Size)
}

func encodeICO(pngData []byte, size int) []byte {
	const headerSize, entrySize = 6, 16
	var buf bytes.Buffer

	// ICONDIR
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // reserved
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // type: icon
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // image count

	// ICONDIRENTRY; a dimension of 0 means 256.
	dim := byte(size)
	if size >= 256 {
		dim = 0
	}
	buf.WriteByte(dim)
	buf.WriteByte(dim)
	buf.WriteByte(0)                                    // palette
	buf.WriteByte(0)                                    // reserved
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // color planes
	binary.Write(&buf, binary.LittleEndian, uint16(32)) // bits per pixel
	binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	binary.Write(&buf, binary.LittleEndian, uint32(headerSize+entrySize))

	buf.Write(pngData)
	return buf.Bytes()
}

// scale maps a coordinate of the 22px design grid onto the icon size.
func (g *IconGenerator) scale(v int) int {
	return v * g.config.Size / 22
}

func (g *IconGenerator) set(img *image.RGBA, x, y int, c color.RGBA) {
	s := g.config.Size
	x0, y0 := g.scale(x), g.scale(y)
	x1, y1 := g.scale(x+1), g.scale(y+1)
	for py := y0; py < y1 && py < s; py++ {
		for px := x0; px < x1 && px < s; px++ {
			img.Set(px, py, c)
		}
	}
}

func (g *IconGenerator) drawShield(img *image.RGBA) {
	size := g.config.Size
	centerX := float64(size) / 2
	topY := float64(size) / 22
	bottomY := float64(size) - 2*topY
	shieldWidth := float64(size) - 4*topY

	inShield := func(x, y float64) bool {
		relY := (y - topY) / (bottomY - topY)
		if relY < 0 || relY > 1 {
			return false
		}
		var halfWidth float64
		if relY < 0.5 {
			halfWidth = shieldWidth/2 - relY*0.5
		} else {
			progress := (relY - 0.5) * 2
			halfWidth = (shieldWidth/2 - 0.25) * (1 - progress*progress)
		}
		return x >= centerX-halfWidth && x <= centerX+halfWidth
	}

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			fx, fy := float64(x)+0.5, float64(y)+0.5
			if !inShield(fx, fy) {
				continue
			}
			border := !inShield(fx-1, fy) || !inShield(fx+1, fy) ||
				!inShield(fx, fy-1) || !inShield(fx, fy+1)
			switch {
			case border:
				img.Set(x, y, g.config.BorderColor)
			case float64(y)/float64(size) < 0.3:
				img.Set(x, y, g.config.AccentColor)
			default:
				img.Set(x, y, g.config.FillColor)
			}
		}
	}
}

func (g *IconGenerator) drawCheckmark(img *image.RGBA) {
	points := [][2]int{
		{6, 11}, {7, 11}, {7, 12}, {8, 12}, {8, 13}, {9, 13},
		{9, 12}, {10, 12}, {10, 11}, {11, 11}, {11, 10}, {12, 10},
		{12, 9}, {13, 9}, {13, 8}, {14, 8},
	}
	for _, p := range points {
		g.set(img, p[0], p[1], g.config.SymbolColor)
	}
}

func (g *IconGenerator) drawCross(img *image.RGBA) {
	for i := 0; i <= 6; i++ {
		g.set(img, 8+i, 7+i, g.config.SymbolColor)
		g.set(img, 14-i, 7+i, g.config.SymbolColor)
	}
}

func (g *IconGenerator) drawDots(img *image.RGBA) {
	for _, x := range []int{7, 10, 13} {
		g.set(img, x, 11, g.config.SymbolColor)
		g.set(img, x+1, 11, g.config.SymbolColor)
	}
}

func (g *IconGenerator) drawLock(img *image.RGBA) {
	c := g.config.SymbolColor
	for y := 10; y <= 15; y++ {
		for x := 8; x <= 14; x++ {
			if y == 10 || y == 15 || x == 8 || x == 14 {
				g.set(img, x, y, c)
			}
		}
	}
	for y := 6; y <= 8; y++ {
		g.set(img, 9, y, c)
		g.set(img, 13, y, c)
	}
	for x := 9; x <= 13; x++ {
		g.set(img, x, 6, c)
	}
}

// TrayIcon returns the icon bytes for state in the format systray expects
// on this platform.
func TrayIcon(state IconState) []byte {
	gen := NewIconGenerator(IconConfigFor(state))
	if runtime.GOOS == "windows" {
		return gen.ICO()
	}
	return gen.PNG()
}
