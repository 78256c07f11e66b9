package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	apperrors "github.com/splatpipe/splatpipe/internal/errors"
	"github.com/splatpipe/splatpipe/internal/fsutil"
	"github.com/splatpipe/splatpipe/internal/ply"
	"github.com/splatpipe/splatpipe/internal/poll"
	"github.com/splatpipe/splatpipe/internal/runner"
)

func (p *Pipeline) foreignNamespace() Namespace {
	if p.bridge.Foreign() {
		return NamespaceForeign
	}
	return NamespaceLocal
}

func (p *Pipeline) awaitInput(ctx context.Context, _ StageFile) (StageFile, error) {
	dir := p.cfg.Config.Input.WatchDir
	p.runLog.Info("waiting for image", "dir", dir)

	entry, err := p.poller.Await(ctx, poll.NewDirLister(dir), ImageSuffixes)
	if err != nil {
		return StageFile{}, err
	}
	return StageFile{Namespace: NamespaceLocal, Path: entry.Path}, nil
}

func (p *Pipeline) relocate(_ context.Context, in StageFile) (StageFile, error) {
	c := p.cfg.Config
	dst := c.TargetPath()
	if err := os.MkdirAll(c.Reconstruction.InputDir, 0o755); err != nil {
		return StageFile{}, apperrors.NewIOError("mkdir", c.Reconstruction.InputDir, err)
	}

	same := fsutil.SameFile(in.Path, dst)
	resized, err := p.writeTarget(in.Path, dst, same)
	if err != nil {
		return StageFile{}, err
	}

	if !same {
		if err := fsutil.ForceRemove(in.Path); err != nil {
			return StageFile{}, apperrors.NewIOError("remove", in.Path, err)
		}
	}
	p.runLog.Info("image relocated", "from", in.Path, "to", dst, "resized", resized)
	return StageFile{Namespace: NamespaceLocal, Path: dst}, nil
}

// writeTarget puts the image at dst, downscaling it when input.max_dimension
// is set and exceeded. It reports whether the image was resized.
func (p *Pipeline) writeTarget(src, dst string, same bool) (bool, error) {
	maxDim := p.cfg.Config.Input.MaxDimension
	if maxDim > 0 {
		img, err := imaging.Open(src, imaging.AutoOrientation(true))
		if err != nil {
			return false, apperrors.NewIOError("decode", src, err)
		}
		if exceeds(img.Bounds(), maxDim) {
			fitted := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
			if err := imaging.Save(fitted, dst); err != nil {
				return false, apperrors.NewIOError("encode", dst, err)
			}
			return true, nil
		}
	}

	if same {
		return false, nil
	}
	if err := fsutil.CopyFile(src, dst); err != nil {
		return false, apperrors.NewIOError("copy", src, err)
	}
	return false, nil
}

func exceeds(b image.Rectangle, maxDim int) bool {
	return b.Dx() > maxDim || b.Dy() > maxDim
}

// Invocation builds the reconstruction command from configuration.
func (p *Pipeline) Invocation() runner.Invocation {
	rc := p.cfg.Config.Reconstruction
	vars := map[string]string{
		"input":         p.bridge.Arg(p.cfg.Config.TargetPath()),
		"output_dir":    p.cfg.Config.Foreign.OutputDir,
		"script":        rc.Script,
		"workdir":       rc.Workdir,
		"conda_profile": rc.CondaProfile,
		"conda_env":     rc.CondaEnv,
	}

	activation := rc.Activation
	if activation == "" {
		activation = runner.DefaultActivationTemplate(rc.Workdir, rc.CondaProfile, rc.CondaEnv)
	}
	return runner.Invocation{
		Activation: runner.ExpandTemplate(activation, vars),
		Argv:       runner.ExpandArgs(rc.Command, vars),
	}
}

func (p *Pipeline) reconstruct(ctx context.Context, in StageFile) (StageFile, error) {
	if err := p.cfg.Runner.Run(ctx, p.Invocation()); err != nil {
		return StageFile{}, err
	}
	return StageFile{Namespace: p.foreignNamespace(), Path: p.cfg.Config.Foreign.OutputDir}, nil
}

func (p *Pipeline) awaitOutput(ctx context.Context, in StageFile) (StageFile, error) {
	p.runLog.Info("waiting for reconstruction output", "dir", in.Path, "namespace", string(in.Namespace))

	entry, err := p.poller.Await(ctx, p.bridge.Lister(in.Path), OutputSuffixes)
	if err != nil {
		return StageFile{}, err
	}
	return StageFile{Namespace: in.Namespace, Path: entry.Path}, nil
}

func (p *Pipeline) bridgeBack(ctx context.Context, in StageFile) (StageFile, error) {
	local, err := p.bridge.BringToLocal(ctx, in.Path, p.cfg.Config.Assets.ReconstructionDir)
	if err != nil {
		return StageFile{}, err
	}
	return StageFile{Namespace: NamespaceLocal, Path: local}, nil
}

func (p *Pipeline) transcode(_ context.Context, in StageFile) (StageFile, error) {
	if ext := strings.ToLower(filepath.Ext(in.Path)); ext != ".ply" {
		return StageFile{}, apperrors.NewSchemaInvariantError(
			fmt.Sprintf("cannot transcode %s output", ext), apperrors.ErrUnsupportedFormat,
		).WithExpected(".ply").WithActual(ext)
	}

	c := p.cfg.Config
	out := c.TranscodedPath()
	m := ply.DefaultMigration()
	m.Anchor = c.Transcode.Anchor
	m.ExpectedStride = c.Transcode.ExpectedStride

	res, err := ply.MigrateFile(in.Path, out, m)
	if err != nil {
		return StageFile{}, err
	}
	if !fsutil.Exists(out) {
		return StageFile{}, apperrors.NewIOError("verify", out, apperrors.ErrOutputMissing)
	}

	p.vertices = res.Vertices
	if p.pcfg.recorder != nil {
		p.pcfg.recorder.SetVertices(res.Vertices)
	}
	p.runLog.Info("point cloud transcoded",
		"vertices", res.Vertices,
		"input_stride", res.InputStride,
		"output_stride", res.OutputStride,
		"added_fields", len(res.AddedFields),
	)
	return StageFile{Namespace: NamespaceLocal, Path: out}, nil
}

func (p *Pipeline) signal(_ context.Context, _ StageFile) (StageFile, error) {
	c := p.cfg.Config
	if err := os.MkdirAll(c.Assets.RenderDir, 0o755); err != nil {
		return StageFile{}, apperrors.NewIOError("mkdir", c.Assets.RenderDir, err)
	}
	path := c.SignalPath()
	if err := fsutil.WriteFileAtomic(path, []byte(c.Signal.Content), 0o644); err != nil {
		return StageFile{}, apperrors.NewIOError("write", path, err)
	}
	return StageFile{Namespace: NamespaceLocal, Path: path}, nil
}
