// Package loader reads a project directory of .twl block files and .lua
// authoring files, builds the declaration model, and runs every load-time
// check, reporting all findings together.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nathoo/ifkit/engine/diag"
	"github.com/nathoo/ifkit/engine/model"
	"github.com/nathoo/ifkit/loader/dsl"
	"github.com/nathoo/ifkit/types"
)

// Options tunes a load.
type Options struct {
	Logger *zap.Logger
	// Parallelism bounds concurrent parsing and resolution. Zero means
	// unbounded.
	Parallelism int
	// Strict turns warnings into errors.
	Strict bool
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Project is a loaded, fully checked project.
type Project struct {
	Dir      string
	Files    []string
	Decls    []types.TypeDecl
	Model    *model.Model
	Scenario types.ScenarioDecl
	Warnings []string
}

// collector accumulates Lua definitions during file execution.
type collector struct {
	file      string
	types     []rawType
	instances []rawInstance
	facts     []rawAtom
}

// where returns the position of the Lua call currently executing.
func (c *collector) where(L *lua.LState) types.Pos {
	return parseWhere(L.Where(1), c.file)
}

// Load reads all .twl and .lua files from dir, compiles them into type
// declarations, and runs the full check pipeline. Syntax errors in one file
// do not stop the others from loading; every diagnostic is returned in a
// single *LoadError. The Lua VM is discarded after loading.
func Load(dir string, opts Options) (*Project, error) {
	log := opts.logger()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading project directory %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	files := sortedSourceFiles(names)
	if len(files) == 0 {
		return nil, fmt.Errorf("no .twl or .lua files found in %s", dir)
	}

	var twl, luaFiles []string
	for _, f := range files {
		if filepath.Ext(f) == ".twl" {
			twl = append(twl, filepath.Join(dir, f))
		} else {
			luaFiles = append(luaFiles, filepath.Join(dir, f))
		}
	}

	var (
		decls []types.TypeDecl
		scen  types.ScenarioDecl
		ds    []diag.Diagnostic
	)

	parsed, err := parseFiles(twl, opts.Parallelism)
	if err != nil {
		return nil, err
	}
	for i, r := range parsed {
		if r.err != nil {
			ds = append(ds, syntaxDiagnostics(twl[i], r.err)...)
			continue
		}
		log.Debug("parsed block file",
			zap.String("file", twl[i]),
			zap.Int("types", len(r.file.Types)),
			zap.Int("instances", len(r.file.Scenario.Instances)))
		decls = append(decls, r.file.Types...)
		scen.Instances = append(scen.Instances, r.file.Scenario.Instances...)
		scen.Facts = append(scen.Facts, r.file.Scenario.Facts...)
	}

	if len(luaFiles) > 0 {
		ld, ls, lds := runLua(luaFiles, log)
		decls = append(decls, ld...)
		scen.Instances = append(scen.Instances, ls.Instances...)
		scen.Facts = append(scen.Facts, ls.Facts...)
		ds = append(ds, lds...)
	}

	p, err := Compile(context.Background(), decls, scen, opts)
	if p != nil {
		p.Dir = dir
		p.Files = files
	}
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.Diagnostics = diag.Sort(append(ds, le.Diagnostics...))
			return nil, le
		}
		return nil, err
	}
	if len(ds) > 0 {
		return nil, &LoadError{Diagnostics: diag.Sort(ds), Warnings: p.Warnings}
	}

	log.Info("project loaded",
		zap.String("dir", dir),
		zap.Int("files", len(files)),
		zap.Int("types", len(p.Model.Types())-1),
		zap.Int("instances", len(p.Scenario.Instances)),
		zap.Int("facts", len(p.Scenario.Facts)))
	return p, nil
}

// Compile builds and checks a project from declarations produced by any
// front end.
func Compile(ctx context.Context, decls []types.TypeDecl, scen types.ScenarioDecl, opts Options) (*Project, error) {
	log := opts.logger()
	le := &LoadError{}

	m, err := model.Build(decls)
	le.add(err)
	if err := checkModel(ctx, m, opts); err != nil {
		if diag.Diagnostics(err) == nil {
			return nil, err
		}
		le.add(err)
	}
	le.Diagnostics = append(le.Diagnostics, validateScenario(m, scen)...)
	le.Warnings = warnings(m, scen)

	for _, w := range le.Warnings {
		log.Warn("load warning", zap.String("warning", w))
	}
	if opts.Strict {
		for _, w := range le.Warnings {
			le.Diagnostics = append(le.Diagnostics, diag.Diagnostic{Kind: ErrStrict, Detail: w})
		}
	}

	p := &Project{Decls: decls, Model: m, Scenario: scen, Warnings: le.Warnings}
	if len(le.Diagnostics) > 0 {
		le.Diagnostics = diag.Sort(le.Diagnostics)
		return p, le
	}
	return p, nil
}

type parseResult struct {
	file *dsl.File
	err  error
}

// parseFiles parses block files concurrently. Results keep file order.
func parseFiles(paths []string, parallelism int) ([]parseResult, error) {
	out := make([]parseResult, len(paths))
	var g errgroup.Group
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, path := range paths {
		g.Go(func() error {
			src, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			f, err := dsl.Parse(path, src)
			out[i] = parseResult{file: f, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// runLua executes the Lua files in one sandboxed VM and compiles what they
// declared. A file that raises an error is reported and skipped.
func runLua(paths []string, log *zap.Logger) ([]types.TypeDecl, types.ScenarioDecl, []diag.Diagnostic) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	openSafeLibs(L)
	sandbox(L)

	coll := &collector{}
	registerAPI(L, coll)

	var ds []diag.Diagnostic
	for _, path := range paths {
		coll.file = path
		before := len(coll.types)
		if err := L.DoFile(path); err != nil {
			ds = append(ds, diag.Diagnostic{
				Kind:   diag.ErrSyntax,
				Pos:    types.Pos{File: path},
				Detail: err.Error(),
			})
			continue
		}
		log.Debug("executed lua file", zap.String("file", path), zap.Int("types", len(coll.types)-before))
	}

	decls, scen, cds := compile(coll)
	return decls, scen, append(ds, cds...)
}

func syntaxDiagnostics(path string, err error) []diag.Diagnostic {
	if ds := diag.Diagnostics(err); ds != nil {
		return ds
	}
	return []diag.Diagnostic{{Kind: diag.ErrSyntax, Pos: types.Pos{File: path}, Detail: err.Error()}}
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	// Base library (print, type, tostring, tonumber, pairs, ipairs, etc.)
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes globals that reach the filesystem or break determinism.
func sandbox(L *lua.LState) {
	for _, name := range []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	} {
		L.SetGlobal(name, lua.LNil)
	}
	if tbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		tbl.RawSetString("randomseed", lua.LNil)
		tbl.RawSetString("random", lua.LNil)
	}
}
