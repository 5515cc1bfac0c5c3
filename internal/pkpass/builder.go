package pkpass

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // the manifest format mandates SHA-1
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Signer produces a detached signature over the manifest.
type Signer interface {
	Sign(manifest []byte) ([]byte, error)
}

// Builder assembles bundles from a workspace directory.
type Builder struct {
	signer Signer
}

// NewBuilder creates a Builder that signs with signer.
func NewBuilder(signer Signer) *Builder {
	return &Builder{signer: signer}
}

// Build renders p as pass.json, adds every regular file in dir and returns
// the signed archive.
func (b *Builder) Build(ctx context.Context, p *Pass, dir string) ([]byte, error) {
	passJSON, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode pass.json: %w", err)
	}

	files, err := readDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	files["pass.json"] = passJSON

	manifest := make(map[string]string, len(files))
	for name, data := range files {
		sum := sha1.Sum(data) //nolint:gosec // manifest format
		manifest[name] = hex.EncodeToString(sum[:])
	}
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	signature, err := b.signer.Sign(manifestJSON)
	if err != nil {
		return nil, fmt.Errorf("sign manifest: %w", err)
	}

	files["manifest.json"] = manifestJSON
	files["signature"] = signature

	return archive(files)
}

func readDir(ctx context.Context, dir string) (map[string][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read workspace: %w", err)
	}

	files := make(map[string][]byte, len(entries)+3)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name)) //nolint:gosec // inside workspace
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		files[name] = data
	}
	return files, nil
}

func archive(files map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("zip %s: %w", name, err)
		}
		if _, err := w.Write(files[name]); err != nil {
			return nil, fmt.Errorf("zip %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}
