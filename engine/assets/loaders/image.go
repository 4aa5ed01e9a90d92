package loaders

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spaghettifunk/anima-frames/engine/renderer/metadata"
	"golang.org/x/image/draw"

	// load image formats beyond the standard library
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageLoader decodes png, jpeg, bmp, tiff and webp files into tightly
// packed RGBA8 pixels.
type ImageLoader struct{}

func (il *ImageLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	var flip bool
	if p, ok := params.(*metadata.ImageResourceParams); ok && p != nil {
		flip = p.FlipY
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	data, err := DecodeImage(f, flip)
	if err != nil {
		return nil, errors.Wrapf(err, "image %s", path)
	}

	return &metadata.Resource{
		Name:     resourceName(path),
		FullPath: path,
		DataSize: uint64(info.Size()),
		Data:     data,
	}, nil
}

func (il *ImageLoader) Unload(res *metadata.Resource) error {
	res.Data = nil
	return nil
}

// DecodeImage decodes any registered format and converts it to RGBA8.
func DecodeImage(r io.Reader, flipY bool) (*metadata.ImageResourceData, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, errors.New("image has no pixels")
	}

	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)
	if flipY {
		flipRows(rgba)
	}

	return &metadata.ImageResourceData{
		ChannelCount: 4,
		Width:        uint32(bounds.Dx()),
		Height:       uint32(bounds.Dy()),
		Pixels:       rgba.Pix,
	}, nil
}

func flipRows(img *image.RGBA) {
	h := img.Bounds().Dy()
	row := make([]byte, img.Stride)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*img.Stride : (y+1)*img.Stride]
		bottom := img.Pix[(h-1-y)*img.Stride : (h-y)*img.Stride]
		copy(row, top)
		copy(top, bottom)
		copy(bottom, row)
	}
}
