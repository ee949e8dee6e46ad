package watermark

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp"

	"comicdl/internal/config"
	"comicdl/internal/fileutil"
)

const (
	inputPlaceholder  = "{input}"
	outputPlaceholder = "{output}"
	jpegQuality       = 95
)

var commandContext = exec.CommandContext

// Transform writes the cleaned version of src to dst.
type Transform interface {
	Apply(ctx context.Context, src, dst string) error
}

// TransformFunc adapts a function to Transform.
type TransformFunc func(ctx context.Context, src, dst string) error

// Apply calls f.
func (f TransformFunc) Apply(ctx context.Context, src, dst string) error {
	return f(ctx, src, dst)
}

// OutputNamer is implemented by transforms that change an image's format and
// therefore its file name.
type OutputNamer interface {
	OutputName(src string) string
}

// NewTransform picks the transform configured in [watermark].
func NewTransform(cfg config.Watermark) Transform {
	if len(cfg.Command) > 0 {
		return CommandTransform{Args: cfg.Command}
	}
	return CropTransform{BottomPx: cfg.CropBottomPx}
}

// CropTransform removes BottomPx rows from the bottom of every image. With
// BottomPx <= 0 images are copied unchanged. Cropped WebP and GIF pages are
// written as PNG. AVIF pages have no decoder and fail with an error.
type CropTransform struct {
	BottomPx int
}

// OutputName maps .webp and .gif sources to .png when cropping re-encodes
// them.
func (c CropTransform) OutputName(src string) string {
	ext := strings.ToLower(filepath.Ext(src))
	if c.BottomPx > 0 && (ext == ".webp" || ext == ".gif") {
		return strings.TrimSuffix(src, filepath.Ext(src)) + ".png"
	}
	return src
}

// Apply crops src into dst.
func (c CropTransform) Apply(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.BottomPx <= 0 {
		return fileutil.CopyFile(src, dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	img, format, err := image.Decode(in)
	_ = in.Close()
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dy() <= c.BottomPx {
		return fmt.Errorf("image height %d not taller than crop of %d px", bounds.Dy(), c.BottomPx)
	}
	rect := image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y-c.BottomPx)
	cropped := cropImage(img, rect)

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	switch format {
	case "jpeg":
		err = jpeg.Encode(out, cropped, &jpeg.Options{Quality: jpegQuality})
	default:
		err = png.Encode(out, cropped)
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	return nil
}

func cropImage(img image.Image, rect image.Rectangle) image.Image {
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(rect)
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

// CommandTransform runs an external tool once per image. Args is the full
// command line; {input} and {output} are replaced with the image paths.
type CommandTransform struct {
	Args []string
}

// Apply runs the configured command.
func (c CommandTransform) Apply(ctx context.Context, src, dst string) error {
	if len(c.Args) == 0 {
		return fmt.Errorf("watermark command not configured")
	}
	args := make([]string, len(c.Args))
	for i, arg := range c.Args {
		arg = strings.ReplaceAll(arg, inputPlaceholder, src)
		args[i] = strings.ReplaceAll(arg, outputPlaceholder, dst)
	}
	cmd := commandContext(ctx, args[0], args[1:]...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			return fmt.Errorf("%s: %w", filepath.Base(args[0]), err)
		}
		return fmt.Errorf("%s: %w: %s", filepath.Base(args[0]), err, detail)
	}
	if info, statErr := os.Stat(dst); statErr != nil || info.Size() == 0 {
		return fmt.Errorf("%s produced no output", filepath.Base(args[0]))
	}
	return nil
}
