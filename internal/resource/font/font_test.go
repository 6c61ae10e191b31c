package font

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/Faultbox/ceforge/internal/resource"
	"github.com/Faultbox/ceforge/internal/resource/binfmt"
)

func TestPackGlyphs(t *testing.T) {
	pos, err := PackGlyphs([]int{100, 100, 100, 100, 100}, 20, 512, 10)
	require.NoError(t, err)
	assert.Equal(t, []image.Point{
		image.Pt(0, 0), image.Pt(110, 0), image.Pt(220, 0), image.Pt(330, 0),
		image.Pt(0, 30),
	}, pos)
}

func TestPackGlyphsFull(t *testing.T) {
	_, err := PackGlyphs([]int{400, 400}, 300, 512, 10)
	assert.ErrorIs(t, err, ErrAtlasFull)

	_, err = PackGlyphs([]int{600}, 10, 512, 10)
	assert.ErrorIs(t, err, ErrAtlasFull)
}

func compileGoRegular(t *testing.T) *Font {
	t.Helper()
	entries, err := NewCompiler().Compile(context.Background(), goregular.TTF, resource.CompilerContext{
		SourceFilename: "/src/fonts/Go-Regular.ttf",
		Log:            zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Go-Regular.font", entries[0].Filename)

	f, err := Decode(entries[0].Data)
	require.NoError(t, err)
	return f
}

func TestCompile(t *testing.T) {
	f := compileGoRegular(t)

	assert.Equal(t, DefaultAtlas, f.Width)
	assert.Equal(t, DefaultAtlas, f.Height)
	assert.Len(t, f.Pixels, 4*DefaultAtlas*DefaultAtlas)
	require.Len(t, f.Glyphs, len([]rune(GlyphSet)))

	for i, r := range []rune(GlyphSet) {
		g := f.Glyphs[i]
		assert.Equal(t, int32(r), g.Code)
		assert.Greater(t, g.Height, int32(0))
		assert.Equal(t, f.Glyphs[0].Height, g.Height)
		assert.GreaterOrEqual(t, g.UMin, float32(0))
		assert.LessOrEqual(t, g.UMax, float32(1))
		assert.LessOrEqual(t, g.VMax, float32(1))
		assert.LessOrEqual(t, g.UMin, g.UMax)
		assert.Less(t, g.VMin, g.VMax)
	}
}

func TestCompileRasterizesGlyphs(t *testing.T) {
	f := compileGoRegular(t)

	// 'A' is the first cell; some of its texels must be covered and all
	// texels are white.
	a := f.Glyphs[0]
	x1 := int(a.UMax * float32(f.Width))
	y1 := int(a.VMax * float32(f.Height))
	covered := false
	for y := 0; y < y1; y++ {
		for x := 0; x < x1; x++ {
			o := 4 * (y*f.Width + x)
			if f.Pixels[o+3] > 0 {
				covered = true
			}
		}
	}
	assert.True(t, covered)
	for i := 0; i < len(f.Pixels); i += 4 {
		require.Equal(t, []byte{255, 255, 255}, f.Pixels[i:i+3])
	}
}

func TestCompileMalformed(t *testing.T) {
	_, err := NewCompiler().Compile(context.Background(), []byte("not a font"), resource.CompilerContext{SourceFilename: "x.ttf"})
	assert.ErrorIs(t, err, resource.ErrMalformedSource)
}

func TestCompileAtlasTooSmall(t *testing.T) {
	c := NewCompiler()
	c.Atlas = 64
	_, err := c.Compile(context.Background(), goregular.TTF, resource.CompilerContext{SourceFilename: "x.ttf"})
	assert.ErrorIs(t, err, ErrAtlasFull)
}

func TestEncodeDecode(t *testing.T) {
	f := &Font{
		Glyphs: []Glyph{{Code: 'A', Width: 10, Height: 12, BearingLeft: 1, BearingRight: 2, UMin: 0, VMin: 0, UMax: 0.5, VMax: 0.75}},
		Width:  2,
		Height: 2,
		Pixels: make([]byte, 16),
	}
	got, err := Decode(Encode(f))
	require.NoError(t, err)
	assert.Equal(t, f, got)

	data := Encode(f)
	_, err = Decode(data[:len(data)-4])
	assert.ErrorIs(t, err, binfmt.ErrTruncated)

	_, err = Decode([]byte("MESH\x01\x00\x00\x00"))
	assert.ErrorIs(t, err, binfmt.ErrInvalidMagic)
}
