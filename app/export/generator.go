package export

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adamjohnlea/discogs-helper/app/cfg"
	"github.com/adamjohnlea/discogs-helper/app/database"
)

//go:embed templates/*.html
var templateFS embed.FS

// Generator renders the static HTML snapshot of a collection. The output is
// self-contained: referenced cover images are copied next to the page.
type Generator struct {
	tmpl      *template.Template
	exportDir string
	coversDir string
}

type pageData struct {
	Site        SiteConfig
	Releases    []database.Release
	GeneratedAt time.Time
	Version     string
}

func NewGenerator(exportDir, coversDir string) (*Generator, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse export templates: %w", err)
	}

	return &Generator{
		tmpl:      tmpl,
		exportDir: exportDir,
		coversDir: coversDir,
	}, nil
}

// Run writes index.html and the referenced covers into the export directory
// and returns the path of the generated page.
func (g *Generator) Run(site SiteConfig, releases []database.Release) (string, error) {
	if err := os.MkdirAll(g.exportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	indexPath := filepath.Join(g.exportDir, "index.html")
	f, err := os.Create(indexPath)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer f.Close()

	data := pageData{
		Site:        site,
		Releases:    releases,
		GeneratedAt: time.Now().In(time.Local),
		Version:     cfg.Get().Version,
	}

	if err := g.tmpl.ExecuteTemplate(f, "collection.html", data); err != nil {
		return "", fmt.Errorf("failed to render snapshot: %w", err)
	}

	g.copyCovers(releases)

	slog.Info("Collection snapshot generated", "path", indexPath, "releases", len(releases))
	return indexPath, nil
}

func (g *Generator) copyCovers(releases []database.Release) {
	outDir := filepath.Join(g.exportDir, "covers")

	for _, release := range releases {
		if release.CoverPath == "" {
			continue
		}
		if err := copyFile(filepath.Join(g.coversDir, release.CoverPath),
			filepath.Join(outDir, release.CoverPath)); err != nil {
			slog.Warn("Failed to copy cover into snapshot",
				"cover", release.CoverPath, "error", err)
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
