package assets

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Files the bundle builder writes itself; never copied from the template.
var generatedFiles = map[string]bool{
	"pass.json":     true,
	"manifest.json": true,
	"signature":     true,
}

// Workspace is a directory one regeneration owns until Release.
type Workspace struct {
	Dir     string
	release func() error
}

// Release gives the directory up. It must be called exactly once.
func (w *Workspace) Release() error {
	return w.release()
}

// Allocator hands out workspaces seeded with the pass template.
type Allocator interface {
	Acquire(ctx context.Context, serial string) (*Workspace, error)
}

// PrivateAllocator gives every regeneration its own temporary directory,
// removed on Release. No two requests ever share files.
type PrivateAllocator struct {
	templateDir string
	root        string
}

// NewPrivateAllocator creates workspaces under root, seeded from templateDir.
func NewPrivateAllocator(templateDir, root string) *PrivateAllocator {
	return &PrivateAllocator{templateDir: templateDir, root: root}
}

// Acquire creates a fresh workspace.
func (a *PrivateAllocator) Acquire(_ context.Context, serial string) (*Workspace, error) {
	dir, err := os.MkdirTemp(a.root, "pass-"+safeName(serial)+"-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	if err := copyTemplate(a.templateDir, dir); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	return &Workspace{
		Dir:     dir,
		release: func() error { return os.RemoveAll(dir) },
	}, nil
}

// SharedAllocator hands out one fixed directory, serialized through a
// KeyedMutex keyed by the directory path. The directory is reset from the
// template on every Acquire so no images from a previous holder survive.
type SharedAllocator struct {
	templateDir string
	dir         string
	locks       *KeyedMutex
}

// NewSharedAllocator creates an allocator over dir.
func NewSharedAllocator(templateDir, dir string, locks *KeyedMutex) *SharedAllocator {
	return &SharedAllocator{templateDir: templateDir, dir: dir, locks: locks}
}

// Acquire waits for the shared directory and resets it.
func (a *SharedAllocator) Acquire(ctx context.Context, _ string) (*Workspace, error) {
	unlock, err := a.locks.Lock(ctx, a.dir)
	if err != nil {
		return nil, fmt.Errorf("wait for shared workspace: %w", err)
	}

	if err := reset(a.templateDir, a.dir); err != nil {
		unlock()
		return nil, err
	}

	return &Workspace{
		Dir: a.dir,
		release: func() error {
			unlock()
			return nil
		},
	}, nil
}

func reset(templateDir, dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear shared workspace: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create shared workspace: %w", err)
	}
	return copyTemplate(templateDir, dir)
}

func copyTemplate(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() || generatedFiles[entry.Name()] {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return fmt.Errorf("copy template file %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // template path from config
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640) //nolint:gosec // inside workspace
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
