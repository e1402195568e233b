// Package gallery holds the enrolled set of named face embeddings and
// rebuilds it from a directory of reference images.
package gallery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/embedding"
)

// Gallery is the enrolled matching reference: parallel slices of embeddings
// and identity names, index-aligned (Embeddings[i] belongs to Names[i]).
type Gallery struct {
	Embeddings [][]float32
	Names      []string
}

// Len returns the number of enrolled identities.
func (g *Gallery) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Names)
}

// Dim returns the embedding dimensionality, or 0 for an empty gallery.
func (g *Gallery) Dim() int {
	if g.Len() == 0 {
		return 0
	}
	return len(g.Embeddings[0])
}

// imageExtensions lists file extensions considered reference images.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// ReferenceImages lists the reference image file names in dir,
// in directory enumeration order.
func ReferenceImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading reference directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

// Build rebuilds the gallery from scratch by scanning the reference
// directory. Each image is assumed to contain a single enrolled subject:
// only the first detected face is taken, and images with no detectable
// face are skipped with a warning. The identity name is the file name
// with its extension stripped; a later file with the same name replaces
// the earlier entry.
//
// progress (optional) is called once per scanned file.
func Build(ctx context.Context, dir string, ex embedding.Extractor, log *zap.Logger, progress func()) (*Gallery, error) {
	files, err := ReferenceImages(dir)
	if err != nil {
		return nil, err
	}

	g := &Gallery{}
	index := make(map[string]int) // name -> position, one embedding per identity

	for _, file := range files {
		if progress != nil {
			progress()
		}

		data, err := os.ReadFile(filepath.Join(dir, file)) //nolint:gosec // file names come from ReadDir
		if err != nil {
			return nil, fmt.Errorf("reading reference image %s: %w", file, err)
		}

		faces, err := ex.DetectFaces(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("detecting faces in %s: %w", file, err)
		}
		if len(faces) == 0 {
			log.Warn("no face detected in reference image, skipping",
				zap.String("file", file))
			continue
		}
		if len(faces) > 1 {
			log.Warn("multiple faces in reference image, enrolling first detection only",
				zap.String("file", file),
				zap.Int("faces", len(faces)))
		}

		emb := faces[0].Embedding
		if g.Dim() != 0 && len(emb) != g.Dim() {
			return nil, fmt.Errorf("embedding for %s has dimension %d, gallery has %d",
				file, len(emb), g.Dim())
		}

		name := strings.TrimSuffix(file, filepath.Ext(file))
		if pos, ok := index[name]; ok {
			g.Embeddings[pos] = emb
			continue
		}
		index[name] = len(g.Names)
		g.Embeddings = append(g.Embeddings, emb)
		g.Names = append(g.Names, name)
	}

	return g, nil
}
