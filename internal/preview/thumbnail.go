package preview

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Thumbnail renders the image at path as w x h terminal cells using upper
// half blocks, two pixel rows per cell row. Sampling is nearest-neighbour.
func Thumbnail(path string, w, h int) (string, error) {
	if w <= 0 || h <= 0 {
		return "", fmt.Errorf("thumbnail: invalid size %dx%d", w, h)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return renderBlocks(img, w, h), nil
}

func renderBlocks(img image.Image, w, h int) string {
	b := img.Bounds()
	sample := func(col, py int) lipgloss.Color {
		x := b.Min.X + col*b.Dx()/w
		y := b.Min.Y + py*b.Dy()/(h*2)
		r, g, bl, _ := img.At(x, y).RGBA()
		return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, bl>>8))
	}
	lines := make([]string, 0, h)
	for row := 0; row < h; row++ {
		var sb strings.Builder
		for col := 0; col < w; col++ {
			st := lipgloss.NewStyle().
				Foreground(sample(col, row*2)).
				Background(sample(col, row*2+1))
			sb.WriteString(st.Render("▀"))
		}
		lines = append(lines, sb.String())
	}
	return strings.Join(lines, "\n")
}
