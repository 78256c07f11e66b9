package bridge

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	apperrors "github.com/splatpipe/splatpipe/internal/errors"
	"github.com/splatpipe/splatpipe/internal/fsutil"
	"github.com/splatpipe/splatpipe/internal/logging"
	"github.com/splatpipe/splatpipe/internal/poll"
	"github.com/splatpipe/splatpipe/internal/runner"
)

// Bridge crosses the boundary between the host and the foreign environment.
type Bridge struct {
	runner *runner.Runner
	logger *logging.Logger
}

// New creates a Bridge that reaches the foreign environment through r.
func New(r *runner.Runner, logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Bridge{runner: r, logger: logger}
}

// Foreign reports whether commands cross into WSL.
func (b *Bridge) Foreign() bool {
	return b.runner.Environment().WSL
}

// Arg returns the form of a host path to pass to foreign commands.
func (b *Bridge) Arg(localPath string) string {
	if !b.Foreign() {
		return localPath
	}
	return ForeignArg(localPath)
}

// ToLocalPath resolves a foreign path to the host path that exposes it.
// A failed or silent translation is an *errors.ExternalProcessError.
func (b *Bridge) ToLocalPath(ctx context.Context, foreignPath string) (string, error) {
	if !b.Foreign() {
		return foreignPath, nil
	}

	out, err := b.runner.Output(ctx, "wslpath", "-w", foreignPath)
	if err != nil {
		return "", err
	}
	// wslpath prints one line; CRLF endings are already trimmed
	local := strings.TrimSpace(out)
	if local == "" {
		return "", apperrors.NewExternalProcessError("wslpath returned no path", apperrors.ErrEmptyOutput).
			WithCommand("wslpath -w " + foreignPath)
	}
	return local, nil
}

// BringToLocal moves foreignPath into localDestDir, keeping its base name,
// and returns the new host path. An existing file at the destination is
// replaced. The source no longer exists afterwards.
func (b *Bridge) BringToLocal(ctx context.Context, foreignPath, localDestDir string) (string, error) {
	src, err := b.ToLocalPath(ctx, foreignPath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(localDestDir, 0755); err != nil {
		return "", apperrors.NewIOError("mkdir", localDestDir, err)
	}

	dst := filepath.Join(localDestDir, baseName(src))
	// Output already written into the asset folder stays where it is;
	// removing dst first would delete the only copy.
	if fsutil.SameFile(src, dst) {
		b.logger.Info("file already in place, source kept", "path", dst)
		return dst, nil
	}

	if fsutil.Exists(dst) {
		b.logger.Debug("replacing existing file", "path", dst)
		if err := fsutil.ForceRemove(dst); err != nil {
			return "", apperrors.NewIOError("remove", dst, err)
		}
	}

	if err := fsutil.MoveFile(src, dst); err != nil {
		return "", apperrors.NewIOError("move", src, err)
	}

	b.logger.Info("moved file", "from", src, "to", dst)
	return dst, nil
}

// Lister returns a poll.Lister for a directory in the foreign namespace.
func (b *Bridge) Lister(dir string) poll.Lister {
	if !b.Foreign() {
		return poll.NewDirLister(dir)
	}
	return &ForeignLister{runner: b.runner, dir: dir}
}

// baseName handles both host separators, since wslpath returns Windows
// paths even when the caller runs elsewhere.
func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// ForeignLister lists a directory inside the foreign environment with ls -1.
type ForeignLister struct {
	runner *runner.Runner
	dir    string
}

// Dir returns the foreign directory.
func (l *ForeignLister) Dir() string {
	return l.dir
}

// List runs ls -1 in the foreign environment. A non-zero exit (typically a
// directory that does not exist yet) is an empty listing; a command that
// cannot be started is an error. Sizes are not reported.
func (l *ForeignLister) List(ctx context.Context) ([]poll.Entry, error) {
	out, err := l.runner.Output(ctx, "ls", "-1", l.dir)
	if err != nil {
		if _, exited := runner.ExitCodeOf(err); exited && ctx.Err() == nil {
			return nil, nil
		}
		return nil, err
	}

	var entries []poll.Entry
	for _, line := range strings.Split(out, "\n") {
		name := strings.TrimRight(line, "\r")
		if name == "" {
			continue
		}
		entries = append(entries, poll.Entry{
			Name: name,
			Path: path.Join(l.dir, name),
			Size: -1,
		})
	}
	return entries, nil
}
