package compose

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"shortforge/internal/config"
	"shortforge/internal/media/ffprobe"
	"shortforge/internal/services"
)

// Request describes a single render: normalized inputs living in a job's
// staging directory and the destination for the finished file.
type Request struct {
	WorkDir         string
	ClipPaths       []string
	NarrationPath   string
	MusicPath       string
	SubtitlePath    string
	OutputPath      string
	DurationSeconds float64
}

// Result reports the finished render.
type Result struct {
	OutputPath      string
	DurationSeconds float64
}

// Engine drives ffmpeg to assemble the final video.
type Engine struct {
	cfg         config.Compose
	clipRuntime float64
	ffmpeg      string
	probe       string
	runner      CommandRunner
	inspect     func(ctx context.Context, binary, path string) (ffprobe.Result, error)
}

// NewEngine constructs a composition engine. A nil runner gets the os/exec
// implementation.
func NewEngine(cfg *config.Config, runner CommandRunner) *Engine {
	if runner == nil {
		runner = NewExecRunner()
	}
	return &Engine{
		cfg:         cfg.Compose,
		clipRuntime: cfg.BRoll.ClipSeconds,
		ffmpeg:      cfg.FFmpegBinary(),
		probe:       cfg.FFprobeBinary(),
		runner:      runner,
		inspect:     ffprobe.Inspect,
	}
}

// Compose renders the request into a single MP4. Clips are normalized to the
// output frame, looped until they cover the narration, captioned, and mixed
// with the narration and optional music track. Render failures are not
// retried; a failed render is reported as a composition error.
func (e *Engine) Compose(ctx context.Context, req Request) (*Result, error) {
	if req.DurationSeconds <= 0 {
		return nil, services.Wrap(services.ErrComposition, "compose", "render", "narration duration is zero", nil)
	}
	if strings.TrimSpace(req.NarrationPath) == "" {
		return nil, services.Wrap(services.ErrComposition, "compose", "render", "narration path is empty", nil)
	}

	if e.cfg.EncodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.EncodeTimeout)*time.Second)
		defer cancel()
	}

	videoSource, err := e.prepareVideoSource(ctx, req)
	if err != nil {
		return nil, err
	}

	staged, err := e.renderFinal(ctx, req, videoSource)
	if err != nil {
		return nil, err
	}

	duration, err := e.verify(ctx, req, staged)
	if err != nil {
		return nil, err
	}

	if err := publish(staged, req.OutputPath); err != nil {
		return nil, services.Wrap(services.ErrComposition, "compose", "publish", "move output into library", err)
	}
	return &Result{OutputPath: req.OutputPath, DurationSeconds: duration}, nil
}

// prepareVideoSource normalizes each clip and stitches them into a silent
// video track covering the narration. With no clips it renders a black
// background instead so a job without footage still produces a video.
func (e *Engine) prepareVideoSource(ctx context.Context, req Request) (string, error) {
	if len(req.ClipPaths) == 0 {
		return e.renderBlackSource(ctx, req)
	}

	segments := make([]string, 0, len(req.ClipPaths))
	for i, clipPath := range req.ClipPaths {
		segment := filepath.Join(req.WorkDir, fmt.Sprintf("segment-%02d.mp4", i))
		args := []string{
			"-y", "-hide_banner", "-loglevel", "error",
			"-i", clipPath,
			"-t", formatFloat(e.clipSeconds()),
			"-vf", e.frameFilter(),
			"-an",
			"-c:v", "libx264", "-preset", "fast", "-crf", strconv.Itoa(e.cfg.CRF),
			segment,
		}
		if output, err := e.runner.Run(ctx, e.ffmpeg, args...); err != nil {
			return "", composeError("normalize clip", output, err)
		}
		segments = append(segments, segment)
	}

	listPath := filepath.Join(req.WorkDir, "segments.txt")
	if err := writeConcatList(listPath, segments, e.clipSeconds(), req.DurationSeconds); err != nil {
		return "", err
	}

	stitched := filepath.Join(req.WorkDir, "video-source.mp4")
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		stitched,
	}
	if output, err := e.runner.Run(ctx, e.ffmpeg, args...); err != nil {
		return "", composeError("stitch segments", output, err)
	}
	return stitched, nil
}

func (e *Engine) renderBlackSource(ctx context.Context, req Request) (string, error) {
	source := filepath.Join(req.WorkDir, "video-source.mp4")
	spec := fmt.Sprintf("color=c=black:s=%dx%d:r=%d:d=%s",
		e.cfg.Width, e.cfg.Height, e.cfg.FPS, formatFloat(req.DurationSeconds))
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", spec,
		"-c:v", "libx264", "-preset", "fast", "-crf", strconv.Itoa(e.cfg.CRF),
		source,
	}
	if output, err := e.runner.Run(ctx, e.ffmpeg, args...); err != nil {
		return "", composeError("render black background", output, err)
	}
	return source, nil
}

// renderFinal encodes into the job's staging directory. The file reaches the
// library only after verification, so a failed encode never leaves a partial
// output behind.
func (e *Engine) renderFinal(ctx context.Context, req Request, videoSource string) (string, error) {
	staged := filepath.Join(req.WorkDir, "final.mp4")
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", videoSource,
		"-i", req.NarrationPath,
	}
	hasMusic := strings.TrimSpace(req.MusicPath) != ""
	if hasMusic {
		args = append(args, "-stream_loop", "-1", "-i", req.MusicPath)
	}

	videoFilter := fmt.Sprintf("fps=%d", e.cfg.FPS)
	if strings.TrimSpace(req.SubtitlePath) != "" {
		videoFilter += ",ass=" + filterEscape(req.SubtitlePath)
	}

	if hasMusic {
		filter := fmt.Sprintf(
			"[0:v]%s[vout];[1:a]volume=1.0[nar];[2:a]volume=%s[mus];[nar][mus]amix=inputs=2:duration=first:dropout_transition=2[aout]",
			videoFilter, formatFloat(e.cfg.MusicVolume))
		args = append(args,
			"-filter_complex", filter,
			"-map", "[vout]", "-map", "[aout]",
		)
	} else {
		args = append(args,
			"-filter_complex", fmt.Sprintf("[0:v]%s[vout]", videoFilter),
			"-map", "[vout]", "-map", "1:a",
		)
	}

	args = append(args,
		"-t", formatFloat(req.DurationSeconds),
		"-c:v", "libx264", "-preset", e.cfg.Preset, "-crf", strconv.Itoa(e.cfg.CRF),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", e.cfg.AudioBitrate,
		"-movflags", "+faststart",
		staged,
	)

	if output, err := e.runner.Run(ctx, e.ffmpeg, args...); err != nil {
		return "", composeError("render final video", output, err)
	}
	return staged, nil
}

// verify probes the staged render and rejects outputs shorter than the
// configured floor or materially shorter than the narration.
func (e *Engine) verify(ctx context.Context, req Request, path string) (float64, error) {
	probed, err := e.inspect(ctx, e.probe, path)
	if err != nil {
		return 0, services.Wrap(services.ErrComposition, "compose", "verify", "probe output", err)
	}
	duration := probed.DurationSeconds()
	if duration < e.cfg.MinOutputSeconds {
		detail := fmt.Sprintf("output runs %.2fs, below the %.2fs floor", duration, e.cfg.MinOutputSeconds)
		return 0, services.Wrap(services.ErrComposition, "compose", "verify", detail, nil)
	}
	if duration < req.DurationSeconds-1.0 {
		detail := fmt.Sprintf("output runs %.2fs but narration runs %.2fs", duration, req.DurationSeconds)
		return 0, services.Wrap(services.ErrComposition, "compose", "verify", detail, nil)
	}
	return duration, nil
}

// publish moves a verified render into the library, copying through a temp
// file when rename crosses a filesystem boundary.
func publish(staged, outputPath string) error {
	if err := os.Rename(staged, outputPath); err == nil {
		return nil
	}

	src, err := os.Open(staged)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp := outputPath + ".part"
	dst, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	_ = os.Remove(staged)
	return nil
}

func (e *Engine) clipSeconds() float64 {
	if e.clipRuntime <= 0 {
		return 2.5
	}
	return e.clipRuntime
}

// frameFilter fills the vertical frame: scale up to cover, center-crop the
// overflow, then lock the frame rate.
func (e *Engine) frameFilter() string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,fps=%d",
		e.cfg.Width, e.cfg.Height, e.cfg.Width, e.cfg.Height, e.cfg.FPS)
}

// writeConcatList emits a concat-demuxer list repeating the segments until
// their combined runtime covers the target duration.
func writeConcatList(path string, segments []string, clipSeconds, targetSeconds float64) error {
	if len(segments) == 0 {
		return services.Wrap(services.ErrComposition, "compose", "stitch segments", "no segments to concatenate", nil)
	}
	repeats := int(math.Ceil(targetSeconds / (clipSeconds * float64(len(segments)))))
	if repeats < 1 {
		repeats = 1
	}

	var b strings.Builder
	for r := 0; r < repeats; r++ {
		for _, segment := range segments {
			fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(segment, "'", `'\''`))
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return nil
}

// filterEscape quotes a path for use inside an ffmpeg filter argument.
func filterEscape(path string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`)
	return "'" + replacer.Replace(path) + "'"
}

func composeError(operation string, output []byte, err error) error {
	message := strings.TrimSpace(string(output))
	if len(message) > 400 {
		message = message[len(message)-400:]
	}
	return services.Wrap(services.ErrComposition, "compose", operation, message, err)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
