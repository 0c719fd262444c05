package ui

import (
	"bytes"
	"encoding/binary"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIconGenerator_PNG(t *testing.T) {
	for _, state := range []IconState{IconDisconnected, IconConnecting, IconConnected, IconError} {
		data := NewIconGenerator(IconConfigFor(state)).PNG()

		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 32, img.Bounds().Dx())
		assert.Equal(t, 32, img.Bounds().Dy())
	}
}

func TestIconGenerator_ICO(t *testing.T) {
	gen := NewIconGenerator(IconConfigFor(IconConnected))
	pngData := gen.PNG()
	ico := gen.ICO()

	require.Len(t, ico, 22+len(pngData))
	assert.Equal(t, uint16(0), binary.LittleEndian.Uint16(ico[0:2]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(ico[2:4]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(ico[4:6]))
	assert.Equal(t, byte(32), ico[6])
	assert.Equal(t, byte(32), ico[7])
	assert.Equal(t, uint32(len(pngData)), binary.LittleEndian.Uint32(ico[14:18]))
	assert.Equal(t, uint32(22), binary.LittleEndian.Uint32(ico[18:22]))
	assert.Equal(t, pngData, ico[22:])
}

func TestEncodeICO_LargeSize(t *testing.T) {
	ico := encodeICO([]byte{1, 2, 3}, 256)
	assert.Equal(t, byte(0), ico[6])
	assert.Equal(t, byte(0), ico[7])
}

func TestIconConfigFor_DistinctPalettes(t *testing.T) {
	connected := IconConfigFor(IconConnected)
	disconnected := IconConfigFor(IconDisconnected)
	failed := IconConfigFor(IconError)

	assert.NotEqual(t, connected.FillColor, disconnected.FillColor)
	assert.NotEqual(t, connected.FillColor, failed.FillColor)
	assert.Equal(t, IconError, failed.Symbol)
}

func TestTrayIcon(t *testing.T) {
	assert.NotEmpty(t, TrayIcon(IconDisconnected))
}
