package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/skillroute/internal/rules"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

var (
	// ErrSourceInaccessible indicates the skills root cannot be read.
	ErrSourceInaccessible = errors.New("skill source root is inaccessible")
	// ErrSourceNotFound indicates a source identifier has no backing file.
	ErrSourceNotFound = errors.New("skill source not found")
)

// skillFileName is the document name inside a directory-based source.
const skillFileName = "SKILL.md"

// maxSourceSize is the largest source document accepted (1 MiB).
const maxSourceSize = 1 << 20

// DefaultPatterns are the discovery globs relative to the skills root.
var DefaultPatterns = []string{"*/" + skillFileName, "*.md"}

// Source is one backing document under the skills root.
type Source struct {
	// ID is the directory name, or the file stem for a root-level file.
	ID string
	// Path is the absolute file path.
	Path string
}

// Warning records a source that was skipped.
type Warning struct {
	SourceID string
	Path     string
	Err      error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.Path, w.Err)
}

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	// Root is the skills directory.
	Root string
	// Patterns are doublestar globs relative to Root. Defaults to DefaultPatterns.
	Patterns []string
	// Parser parses documents. Defaults to MarkdownParser.
	Parser Parser
	// Rules feed the capability index. Defaults to rules.Default().
	Rules *rules.Tables
	// Concurrency bounds parallel file ingestion. Defaults to 8.
	Concurrency int
	// Logger receives skip warnings. Nil discards.
	Logger *slog.Logger
}

// Loader discovers and ingests skill sources.
type Loader struct {
	opts    LoaderOptions
	indexer *Indexer
	logger  *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(opts LoaderOptions) *Loader {
	if len(opts.Patterns) == 0 {
		opts.Patterns = DefaultPatterns
	}
	if opts.Parser == nil {
		opts.Parser = MarkdownParser{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{
		opts:    opts,
		indexer: NewIndexer(opts.Rules),
		logger:  logger,
	}
}

// Root returns the skills root directory.
func (l *Loader) Root() string {
	return l.opts.Root
}

// Discover lists the sources under the root, sorted by path.
func (l *Loader) Discover() ([]Source, error) {
	info, err := os.Stat(l.opts.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceInaccessible, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSourceInaccessible, l.opts.Root)
	}

	fsys := os.DirFS(l.opts.Root)
	seen := make(map[string]bool)
	var sources []Source
	for _, pattern := range l.opts.Patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, m := range matches {
			id := SourceID(m)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			sources = append(sources, Source{ID: id, Path: filepath.Join(l.opts.Root, filepath.FromSlash(m))})
		}
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Path < sources[j].Path
	})
	return sources, nil
}

// LoadAll ingests every discovered source. Malformed sources are skipped and
// returned as warnings; duplicate skill names keep the first source in path
// order. The only error is an inaccessible root or a cancelled context.
func (l *Loader) LoadAll(ctx context.Context) ([]*models.Skill, []Warning, error) {
	sources, err := l.Discover()
	if err != nil {
		return nil, nil, err
	}

	skills := make([]*models.Skill, len(sources))
	errs := make([]error, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			skills[i], errs[i] = l.loadSource(src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var (
		out      []*models.Skill
		warnings []Warning
		names    = make(map[string]string)
	)
	for i, src := range sources {
		if errs[i] != nil {
			warnings = append(warnings, l.warn(src, errs[i]))
			continue
		}
		s := skills[i]
		if prev, dup := names[s.Name]; dup {
			warnings = append(warnings, l.warn(src, fmt.Errorf("duplicate skill name %q (already loaded from %s)", s.Name, prev)))
			continue
		}
		names[s.Name] = src.Path
		out = append(out, s)
	}

	l.logger.Debug("skills loaded", "root", l.opts.Root, "loaded", len(out), "skipped", len(warnings))
	return out, warnings, nil
}

// Load ingests a single source by identifier. It returns ErrSourceNotFound
// when the source has no backing file.
func (l *Loader) Load(id string) (*models.Skill, error) {
	src, ok := l.Resolve(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	return l.loadSource(src)
}

// Resolve finds the backing file for a source identifier.
func (l *Loader) Resolve(id string) (Source, bool) {
	candidates := []string{
		filepath.Join(l.opts.Root, id, skillFileName),
		filepath.Join(l.opts.Root, id+".md"),
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return Source{ID: id, Path: p}, true
		}
	}
	return Source{}, false
}

// Hash returns the content hash of a source file.
func (l *Loader) Hash(src Source) (uint64, error) {
	data, err := readSource(src.Path)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}

func (l *Loader) loadSource(src Source) (*models.Skill, error) {
	data, err := readSource(src.Path)
	if err != nil {
		return nil, err
	}
	rec, err := l.opts.Parser.Parse(data)
	if err != nil {
		return nil, err
	}
	return l.indexer.Build(rec, src, xxhash.Sum64(data)), nil
}

func (l *Loader) warn(src Source, err error) Warning {
	l.logger.Warn("skipping skill source", "source", src.ID, "path", src.Path, "error", err)
	return Warning{SourceID: src.ID, Path: src.Path, Err: err}
}

func readSource(p string) ([]byte, error) {
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, p)
		}
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	if info.Size() > maxSourceSize {
		return nil, fmt.Errorf("source %s too large (%d bytes, max %d)", p, info.Size(), maxSourceSize)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

// SourceID maps a slash-separated path relative to the skills root to its
// source identifier: the first path segment, or the stem of a root-level
// markdown file. It returns "" for paths that cannot back a skill.
func SourceID(rel string) string {
	rel = path.Clean(filepath.ToSlash(rel))
	if rel == "." || rel == "" || strings.HasPrefix(rel, "../") || rel == ".." {
		return ""
	}
	first, rest, nested := strings.Cut(rel, "/")
	if strings.HasPrefix(first, ".") {
		return ""
	}
	if nested && rest != "" {
		return first
	}
	if strings.HasSuffix(strings.ToLower(first), ".md") {
		return strings.TrimSuffix(first, path.Ext(first))
	}
	return first
}
