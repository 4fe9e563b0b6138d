package frame

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"maps"
	"strings"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// FFmpegSource reads frames from a camera device or video file through an
// ffmpeg rawvideo pipe. ffmpeg does the scaling, so frames arrive at canvas
// size.
type FFmpegSource struct {
	Input   string        // device or file, e.g. /dev/video0
	Format  string        // demuxer, e.g. v4l2, avfoundation, dshow; empty to autodetect
	Options ffmpeg.KwArgs // extra input options, e.g. framerate, video_size
}

func (s *FFmpegSource) inputArgs() ffmpeg.KwArgs {
	args := ffmpeg.KwArgs{}
	maps.Copy(args, s.Options)
	if s.Format != "" {
		args["f"] = s.Format
	}
	return args
}

func (s *FFmpegSource) Open(ctx context.Context, width, height int) (Stream, error) {
	if s.Input == "" {
		return nil, fmt.Errorf("no ffmpeg input given")
	}

	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	logger := slog.Default().With("input", s.Input)

	cmd := ffmpeg.Input(s.Input, s.inputArgs()).
		Output("pipe:1", ffmpeg.KwArgs{
			"format":  "rawvideo",
			"pix_fmt": "rgba",
			"vf":      fmt.Sprintf("scale=%d:%d", width, height),
		}).
		WithOutput(pw).
		WithErrorOutput(&logWriter{logger: logger})
	cmd.Context = ctx

	st := &ffmpegStream{
		r:      pr,
		cancel: cancel,
		size:   width * height * 4,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(st.done)
		err := cmd.Run()
		if err != nil && ctx.Err() == nil {
			logger.Error("ffmpeg stopped", "error", err)
			pw.CloseWithError(fmt.Errorf("ffmpeg: %w", err))
			return
		}
		pw.Close()
	}()

	logger.Info("camera stream opened", "width", width, "height", height)
	return st, nil
}

type ffmpegStream struct {
	r      *io.PipeReader
	cancel context.CancelFunc
	size   int
	done   chan struct{}
	once   sync.Once
}

func (s *ffmpegStream) ReadFrame(dst *image.RGBA) error {
	b := dst.Bounds()
	if b.Dx()*b.Dy()*4 != s.size {
		return fmt.Errorf("frame is %v, stream produces %d bytes", b.Size(), s.size)
	}

	rowLen := b.Dx() * 4
	if dst.Stride == rowLen {
		_, err := io.ReadFull(s.r, dst.Pix[dst.PixOffset(b.Min.X, b.Min.Y):][:s.size])
		return streamErr(err)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := dst.PixOffset(b.Min.X, y)
		if _, err := io.ReadFull(s.r, dst.Pix[off:off+rowLen]); err != nil {
			return streamErr(err)
		}
	}
	return nil
}

func streamErr(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return err
}

func (s *ffmpegStream) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.r.Close()
		<-s.done
	})
	return nil
}

// logWriter forwards ffmpeg's stderr to the debug log.
type logWriter struct {
	logger *slog.Logger
}

func (w *logWriter) Write(b []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		if line != "" {
			w.logger.Debug("ffmpeg", "line", line)
		}
	}
	return len(b), nil
}

type probeResult struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Aspect asks ffprobe for the width/height ratio of the first video stream.
func (s *FFmpegSource) Aspect() (float64, error) {
	out, err := ffmpeg.Probe(s.Input, s.inputArgs())
	if err != nil {
		return 0, fmt.Errorf("ffprobe error: %w", err)
	}

	var probe probeResult
	if err := json.Unmarshal([]byte(out), &probe); err != nil {
		return 0, fmt.Errorf("could not read ffprobe output: %w", err)
	}

	for _, stream := range probe.Streams {
		if stream.CodecType == "video" && stream.Width > 0 && stream.Height > 0 {
			return float64(stream.Width) / float64(stream.Height), nil
		}
	}
	return 0, fmt.Errorf("no video stream found in %q", s.Input)
}
