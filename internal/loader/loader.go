// Package loader bundles a JavaScript or TypeScript module with its relative
// imports and installs its exports into an evaluator scope.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/maypok86/otter"
	"go.uber.org/zap"

	"github.com/mvp-joe/jsdoctest/internal/evaluator"
)

// GlobalName is the global the bundle assigns its export namespace to.
const GlobalName = "__jsdoctest_exports"

const defaultCacheSize = 256

// Module is a bundled, compiled module ready to be installed into scopes.
type Module struct {
	// Path is the absolute path of the entry file.
	Path string

	// Inputs lists every file the bundle was built from, entry included.
	Inputs []string

	// Imports maps each input to the inputs it imports directly.
	Imports map[string][]string

	program *goja.Program
	stamp   time.Time
}

// Install runs the bundle inside scope and copies every enumerable export
// onto the scope's global object.
func (m *Module) Install(scope *evaluator.Scope) error {
	return scope.Run(func(vm *goja.Runtime) error {
		if _, err := vm.RunProgram(m.program); err != nil {
			return fmt.Errorf("failed to run module %s: %w", m.Path, err)
		}

		exports := vm.Get(GlobalName)
		if exports == nil || goja.IsUndefined(exports) || goja.IsNull(exports) {
			return nil
		}
		ns := exports.ToObject(vm)
		global := vm.GlobalObject()
		for _, key := range ns.Keys() {
			if err := global.Set(key, ns.Get(key)); err != nil {
				return fmt.Errorf("failed to install export %s: %w", key, err)
			}
		}
		return nil
	})
}

// Loader builds modules and caches them until one of their inputs changes.
type Loader struct {
	cache  otter.Cache[string, *Module]
	logger *zap.Logger
}

// New creates a Loader. A nil logger disables logging.
func New(logger *zap.Logger) (*Loader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := otter.MustBuilder[string, *Module](defaultCacheSize).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create module cache: %w", err)
	}
	return &Loader{cache: cache, logger: logger}, nil
}

// Load returns the module for ref, which is a filesystem path or a file URL.
func (l *Loader) Load(ctx context.Context, ref string) (*Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := PathFromRef(ref)
	if err != nil {
		return nil, err
	}

	if cached, ok := l.cache.Get(path); ok {
		if stamp, err := newestModTime(cached.Inputs); err == nil && stamp.Equal(cached.stamp) {
			return cached, nil
		}
		l.logger.Debug("module changed, rebuilding", zap.String("path", path))
	}

	mod, err := build(path)
	if err != nil {
		return nil, err
	}
	l.cache.Set(path, mod)
	l.logger.Debug("module built", zap.String("path", path), zap.Int("inputs", len(mod.Inputs)))
	return mod, nil
}

// Invalidate drops path from the cache.
func (l *Loader) Invalidate(path string) {
	l.cache.Delete(path)
}

// Close releases the cache.
func (l *Loader) Close() {
	l.cache.Close()
}

func build(path string) (*Module, error) {
	dir := filepath.Dir(path)
	result := api.Build(api.BuildOptions{
		EntryPoints:   []string{path},
		AbsWorkingDir: dir,
		Bundle:        true,
		Format:        api.FormatIIFE,
		GlobalName:    GlobalName,
		Target:        api.ES2017,
		Metafile:      true,
		Write:         false,
		LogLevel:      api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, &BuildError{Path: path, Messages: messages(result.Errors)}
	}
	if len(result.OutputFiles) == 0 {
		return nil, fmt.Errorf("failed to bundle %s: no output", path)
	}

	program, err := goja.Compile(path, string(result.OutputFiles[0].Contents), false)
	if err != nil {
		return nil, fmt.Errorf("failed to compile bundle for %s: %w", path, err)
	}

	inputs, imports, err := parseMetafile(dir, result.Metafile)
	if err != nil {
		return nil, err
	}
	stamp, err := newestModTime(inputs)
	if err != nil {
		return nil, err
	}

	return &Module{
		Path:    path,
		Inputs:  inputs,
		Imports: imports,
		program: program,
		stamp:   stamp,
	}, nil
}

type metafile struct {
	Inputs map[string]struct {
		Imports []struct {
			Path     string `json:"path"`
			External bool   `json:"external"`
		} `json:"imports"`
	} `json:"inputs"`
}

func parseMetafile(dir, raw string) ([]string, map[string][]string, error) {
	var meta metafile
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, nil, fmt.Errorf("failed to parse bundle metafile: %w", err)
	}

	abs := func(p string) (string, bool) {
		// Virtual inputs live in a namespace, e.g. "<runtime>" or "ns:path".
		if strings.HasPrefix(p, "<") || strings.Contains(p, ":") && !filepath.IsAbs(p) {
			return "", false
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		return filepath.Clean(p), true
	}

	inputs := make([]string, 0, len(meta.Inputs))
	imports := make(map[string][]string, len(meta.Inputs))
	for name, input := range meta.Inputs {
		from, ok := abs(name)
		if !ok {
			continue
		}
		inputs = append(inputs, from)
		for _, imp := range input.Imports {
			if imp.External {
				continue
			}
			if to, ok := abs(imp.Path); ok {
				imports[from] = append(imports[from], to)
			}
		}
	}
	sort.Strings(inputs)
	return inputs, imports, nil
}

func newestModTime(paths []string) (time.Time, error) {
	var newest time.Time
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	return newest, nil
}

// PathFromRef turns a filesystem path or file URL into an absolute path.
func PathFromRef(ref string) (string, error) {
	if strings.HasPrefix(ref, "file:") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("failed to parse module url %q: %w", ref, err)
		}
		ref = u.Path
	}
	path, err := filepath.Abs(ref)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", ref, err)
	}
	return path, nil
}

// URLFromPath returns the file URL of an absolute path.
func URLFromPath(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
