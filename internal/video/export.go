package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/icza/mjpeg"

	"earth-timelapse/internal/render"
)

// ErrEncoderMissing indicates the external video encoder is not installed.
// It is a non-fatal condition: the GIF is still produced.
var ErrEncoderMissing = errors.New("video encoder not found")

// encodeTimeout bounds a single external encoder invocation.
const encodeTimeout = 5 * time.Minute

// Options configures the exporter.
type Options struct {
	FPS        int
	Quality    int    // JPEG quality for the AVI fallback, 0-100
	FFmpegPath string // probed from the system when empty
}

// Exporter encodes an ordered frame sequence into output files. Frame order
// is never changed: frames go out exactly as they come in.
type Exporter struct {
	fps        int
	quality    int
	ffmpegPath string
}

// NewExporter creates an exporter, probing for ffmpeg unless a path is
// supplied.
func NewExporter(opts Options) *Exporter {
	fps := opts.FPS
	if fps < 1 {
		fps = 10
	}
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = 90
	}

	path := opts.FFmpegPath
	if path == "" {
		if found, ok := CheckFFmpeg(); ok {
			path = found
		}
	}
	return &Exporter{fps: fps, quality: quality, ffmpegPath: path}
}

// HasFFmpeg reports whether the external encoder is available.
func (e *Exporter) HasFFmpeg() bool {
	return e.ffmpegPath != ""
}

// CheckFFmpeg looks for ffmpeg on the PATH and in common install locations.
func CheckFFmpeg() (string, bool) {
	names := []string{"ffmpeg"}
	if runtime.GOOS == "windows" {
		names = []string{"ffmpeg.exe", "ffmpeg"}
	}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}

	var commonPaths []string
	switch runtime.GOOS {
	case "darwin":
		commonPaths = []string{
			"/usr/local/bin/ffmpeg",
			"/opt/homebrew/bin/ffmpeg",
			"/opt/local/bin/ffmpeg",
		}
	case "linux":
		commonPaths = []string{
			"/usr/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
		}
	case "windows":
		commonPaths = []string{
			"C:\\ffmpeg\\bin\\ffmpeg.exe",
			"C:\\Program Files\\ffmpeg\\bin\\ffmpeg.exe",
		}
	}
	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}

	return "", false
}

// ExportGIF writes the frames as an infinitely looping animated GIF.
func (e *Exporter) ExportGIF(frames []render.Frame, outputPath string) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to export")
	}

	delay := 100 / e.fps // hundredths of a second per frame
	if delay < 1 {
		delay = 1
	}

	palettedImages := make([]*image.Paletted, 0, len(frames))
	delays := make([]int, 0, len(frames))

	for i, frame := range frames {
		bounds := frame.Image.Bounds()
		palettedImg := image.NewPaletted(bounds, palette.Plan9)

		// Floyd-Steinberg dithering for better gradients
		draw.FloydSteinberg.Draw(palettedImg, bounds, frame.Image, image.Point{})

		palettedImages = append(palettedImages, palettedImg)
		delays = append(delays, delay)
		log.Printf("[Encoder] Quantized frame %d/%d (%s)", i+1, len(frames), frame.Interval.Label)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	first := frames[0].Image.Bounds()
	return gif.EncodeAll(f, &gif.GIF{
		Image:     palettedImages,
		Delay:     delays,
		LoopCount: 0, // loop forever
		Config: image.Config{
			ColorModel: palettedImages[0].ColorModel(),
			Width:      first.Dx(),
			Height:     first.Dy(),
		},
	})
}

// ExportMP4 encodes the frames as H.264 MP4 via the external ffmpeg binary.
// Returns ErrEncoderMissing when ffmpeg is not available.
func (e *Exporter) ExportMP4(ctx context.Context, frames []render.Frame, outputPath string) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to export")
	}
	if e.ffmpegPath == "" {
		return ErrEncoderMissing
	}

	tempDir, err := os.MkdirTemp("", "timelapse_frames_*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	for i, frame := range frames {
		framePath := filepath.Join(tempDir, fmt.Sprintf("frame_%05d.png", i))
		f, err := os.Create(framePath)
		if err != nil {
			return fmt.Errorf("failed to create frame file: %w", err)
		}
		if err := png.Encode(f, frame.Image); err != nil {
			f.Close()
			return fmt.Errorf("failed to encode frame %d: %w", i, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write frame %d: %w", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, encodeTimeout)
	defer cancel()

	inputPattern := filepath.Join(tempDir, "frame_%05d.png")
	args := []string{
		"-y",
		"-framerate", fmt.Sprintf("%d", e.fps),
		"-i", inputPattern,
		"-c:v", "libx264",
		"-preset", "medium",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		outputPath,
	}

	log.Printf("[Encoder] Running ffmpeg with %d frames at %d fps", len(frames), e.fps)

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("ffmpeg timed out after %s", encodeTimeout)
		}
		return fmt.Errorf("ffmpeg encoding failed: %w\nstderr: %s", err, stderr.String())
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("output file not created: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("output file is empty")
	}
	return nil
}

// ExportAVI encodes the frames as a Motion JPEG AVI. This needs no external
// encoder and plays nearly everywhere, at the cost of size.
func (e *Exporter) ExportAVI(frames []render.Frame, outputPath string) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to export")
	}

	bounds := frames[0].Image.Bounds()
	writer, err := mjpeg.New(outputPath, int32(bounds.Dx()), int32(bounds.Dy()), int32(e.fps))
	if err != nil {
		return fmt.Errorf("failed to create video writer: %w", err)
	}
	defer writer.Close()

	for i, frame := range frames {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: e.quality}); err != nil {
			return fmt.Errorf("failed to encode frame %d as JPEG: %w", i, err)
		}
		if err := writer.AddFrame(buf.Bytes()); err != nil {
			return fmt.Errorf("failed to add frame %d: %w", i, err)
		}
	}
	return nil
}
