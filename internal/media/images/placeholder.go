package images

import (
	"bytes"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
)

const (
	placeholderWidth  = 200
	placeholderHeight = 300
)

// placeholder renders the default cover once: a neutral grey 2:3 panel with
// a darker spine band.
var placeholder = sync.OnceValue(func() []byte {
	img := imaging.New(placeholderWidth, placeholderHeight, color.NRGBA{R: 0xd9, G: 0xd9, B: 0xd9, A: 0xff})
	spine := imaging.New(placeholderWidth/10, placeholderHeight, color.NRGBA{R: 0xa6, G: 0xa6, B: 0xa6, A: 0xff})
	img = imaging.Paste(img, spine, image.Pt(0, 0))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		panic("images: encode placeholder: " + err.Error())
	}
	return buf.Bytes()
})

// Placeholder returns the JPEG served for books without a stored cover.
// Callers must not modify the returned slice.
func Placeholder() []byte {
	return placeholder()
}
