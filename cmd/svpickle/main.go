// Command svpickle prunes and renames SystemVerilog sources into a single
// self-contained output file.
//
// Sources come from a YAML manifest (svpickle.yml), from positional
// arguments, or both. With --top only units reachable from the named tops
// are kept; with --prefix/--suffix every surviving declaration and all its
// reference sites are renamed consistently.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/svtools/svpickle/internal/analysis"
	"github.com/svtools/svpickle/internal/cache"
	"github.com/svtools/svpickle/internal/config"
	"github.com/svtools/svpickle/internal/lexer"
	"github.com/svtools/svpickle/internal/parser"
	"github.com/svtools/svpickle/internal/rewrite"
	"github.com/svtools/svpickle/internal/session"
	"github.com/svtools/svpickle/internal/syntax"
)

var version = "0.2.0"

var verbose bool

func main() {
	app := &cli.App{
		Name:                   "svpickle",
		Usage:                  "prune and rename SystemVerilog sources into one pickled file",
		Version:                version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Manifest file path",
				Value:   "svpickle.yml",
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Aliases:     []string{"v"},
				Usage:       "Print progress to stderr",
				Destination: &verbose,
			},
		},
		Commands: []*cli.Command{
			pickleCommand(),
			graphCommand(),
			dumpCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		fmt.Fprintf(os.Stderr, "\x1b[1;31merror:\x1b[0m %v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(1)
}

func logf(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// loadManifest loads the manifest named by --config. A missing file is an
// error only when the flag was given explicitly; otherwise an empty manifest
// rooted at the working directory is used and all inputs come from flags
// and arguments.
func loadManifest(c *cli.Context) (*config.Manifest, error) {
	path := c.String("config")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !c.IsSet("config") {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, err
			}
			return &config.Manifest{Dir: cwd}, nil
		}
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return config.Load(path)
}

// buildSession parses every manifest source group plus any positional
// arguments as one extra group. CLI -I and -D apply to every group.
func buildSession(c *cli.Context, m *config.Manifest) (*session.Session, error) {
	extraIncludes := c.StringSlice("include-dir")
	extraDefines := c.StringSlice("define")

	sess := session.New()
	for _, g := range m.Sources {
		files, err := m.ResolveFiles(g)
		if err != nil {
			return nil, err
		}
		includes := append(m.IncludeDirsAbs(g), extraIncludes...)
		defines := append(append([]string{}, g.Defines...), extraDefines...)
		logf("parsing %d files", len(files))
		if err := sess.AddGroup(files, includes, defines); err != nil {
			return nil, err
		}
	}

	if args := c.Args().Slice(); len(args) > 0 {
		logf("parsing %d files", len(args))
		if err := sess.AddGroup(args, extraIncludes, extraDefines); err != nil {
			return nil, err
		}
	}

	if sess.UnitCount() == 0 {
		return nil, fmt.Errorf("no source files given (manifest sources empty and no arguments)")
	}
	return sess, nil
}

// keptIndices prunes the session to units reachable from the tops, or keeps
// everything when no top is named.
func keptIndices(sess *session.Session, tops []string) ([]int, error) {
	if len(tops) == 0 {
		kept := make([]int, sess.UnitCount())
		for i := range kept {
			kept[i] = i
		}
		return kept, nil
	}
	return analysis.Reachable(sess.Metadatas(), tops)
}

func pickleCommand() *cli.Command {
	return &cli.Command{
		Name:      "pickle",
		Usage:     "Concatenate sources, pruned and renamed, into one file",
		ArgsUsage: "[files...]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "include-dir",
				Aliases: []string{"I"},
				Usage:   "Add an include search directory",
			},
			&cli.StringSliceFlag{
				Name:    "define",
				Aliases: []string{"D"},
				Usage:   "Define a preprocessor macro (NAME or NAME=value)",
			},
			&cli.StringSliceFlag{
				Name:    "top",
				Aliases: []string{"t"},
				Usage:   "Keep only units reachable from this module (repeatable)",
			},
			&cli.StringFlag{
				Name:    "prefix",
				Aliases: []string{"P"},
				Usage:   "Prepend to every surviving declaration name",
			},
			&cli.StringFlag{
				Name:    "suffix",
				Aliases: []string{"S"},
				Usage:   "Append to every surviving declaration name",
			},
			&cli.StringSliceFlag{
				Name:  "exclude-rename",
				Usage: "Never rename this declaration (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "strip-comments",
				Usage: "Drop comments from the output",
			},
			&cli.BoolFlag{
				Name:  "squash-newlines",
				Usage: "Collapse blank-line runs in the output",
			},
			&cli.BoolFlag{
				Name:  "expand-macros",
				Usage: "Expand object-like macro usages in the output",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file (default: manifest output, else stdout)",
			},
		},
		Action: runPickle,
	}
}

func runPickle(c *cli.Context) error {
	m, err := loadManifest(c)
	if err != nil {
		return err
	}

	tops := m.Tops
	if t := c.StringSlice("top"); len(t) > 0 {
		tops = t
	}
	prefix := m.Prefix
	if c.IsSet("prefix") {
		prefix = c.String("prefix")
	}
	suffix := m.Suffix
	if c.IsSet("suffix") {
		suffix = c.String("suffix")
	}
	excludes := append(append([]string{}, m.ExcludeRename...), c.StringSlice("exclude-rename")...)

	sess, err := buildSession(c, m)
	if err != nil {
		return err
	}

	kept, err := keptIndices(sess, tops)
	if err != nil {
		return err
	}
	logf("keeping %d of %d units", len(kept), sess.UnitCount())

	rw := rewrite.New()
	rw.SetPrefix(prefix)
	rw.SetSuffix(suffix)
	rw.SetExcludes(excludes)
	for _, i := range kept {
		rw.RegisterDeclarations(sess.UnitAt(i).Tree)
	}

	opts := syntax.PrintOptions{
		IncludeDirectives: true,
		ExpandIncludes:    true,
		ExpandMacros:      c.Bool("expand-macros") || m.ExpandMacros,
		SquashNewlines:    c.Bool("squash-newlines") || m.SquashNewlines,
		IncludeComments:   !(c.Bool("strip-comments") || m.StripComments),
	}

	out, closeOut, err := openOutput(c, m)
	if err != nil {
		return err
	}
	defer closeOut()

	for _, i := range kept {
		unit := sess.UnitAt(i)
		t := rw.Rewrite(unit.Tree)
		text := syntax.Print(t, opts)
		if _, err := io.WriteString(out, text); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		if !strings.HasSuffix(text, "\n") {
			if _, err := io.WriteString(out, "\n"); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
		}
	}

	logf("renamed %d declarations and %d references",
		rw.RenamedDeclarations(), rw.RenamedReferences())
	return nil
}

func openOutput(c *cli.Context, m *config.Manifest) (io.Writer, func(), error) {
	path := c.String("output")
	if path == "" && m.Output != "" {
		path = m.Output
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.Dir, path)
		}
	}
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func graphCommand() *cli.Command {
	return &cli.Command{
		Name:      "graph",
		Usage:     "Print the unit dependency graph",
		ArgsUsage: "[files...]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "include-dir",
				Aliases: []string{"I"},
				Usage:   "Add an include search directory",
			},
			&cli.StringSliceFlag{
				Name:    "define",
				Aliases: []string{"D"},
				Usage:   "Define a preprocessor macro (NAME or NAME=value)",
			},
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "Metadata cache directory",
				Value: ".svpickle",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Reparse everything, ignoring the metadata cache",
			},
		},
		Action: runGraph,
	}
}

// runGraph prints one line per unit: its path, declared names, and the
// units it depends on. Metadata comes from the cache when the file content
// hash still matches, so repeated graph runs skip unchanged files.
func runGraph(c *cli.Context) error {
	m, err := loadManifest(c)
	if err != nil {
		return err
	}

	type graphFile struct {
		path     string
		includes []string
		defines  []string
	}
	var all []graphFile
	extraIncludes := c.StringSlice("include-dir")
	extraDefines := c.StringSlice("define")
	for _, g := range m.Sources {
		files, err := m.ResolveFiles(g)
		if err != nil {
			return err
		}
		includes := append(m.IncludeDirsAbs(g), extraIncludes...)
		defines := append(append([]string{}, g.Defines...), extraDefines...)
		for _, f := range files {
			all = append(all, graphFile{f, includes, defines})
		}
	}
	for _, f := range c.Args().Slice() {
		all = append(all, graphFile{f, extraIncludes, extraDefines})
	}
	if len(all) == 0 {
		return fmt.Errorf("no source files given (manifest sources empty and no arguments)")
	}

	var cc *cache.Cache
	if !c.Bool("no-cache") {
		cc = cache.New(c.String("cache-dir"))
		if err := cc.Load(); err != nil {
			return err
		}
	}

	metas := make([]syntax.Metadata, len(all))
	for i, f := range all {
		md, err := unitMetadata(cc, f.path, f.includes, f.defines)
		if err != nil {
			return err
		}
		metas[i] = md
	}
	if cc != nil {
		if err := cc.Save(); err != nil {
			return err
		}
	}

	idx := analysis.BuildIndex(metas)
	graph := analysis.BuildGraph(metas, idx)

	for i, deps := range graph {
		fmt.Printf("%s [%s]\n", all[i].path, strings.Join(metas[i].Declared, ", "))
		for _, dep := range deps {
			fmt.Printf("  -> %s\n", all[dep].path)
		}
	}
	return nil
}

func unitMetadata(cc *cache.Cache, path string, includes, defines []string) (syntax.Metadata, error) {
	opts := lexer.Options{IncludeDirs: includes, Defines: defines}

	if cc == nil {
		t, err := parser.ParseFile(path, opts)
		if err != nil {
			return syntax.Metadata{}, fmt.Errorf("parse %s: %w", path, err)
		}
		return t.Metadata, nil
	}

	hash, err := cache.HashFile(path)
	if err != nil {
		return syntax.Metadata{}, err
	}
	if md, ok, err := cc.Get(path, hash); err != nil {
		return syntax.Metadata{}, err
	} else if ok {
		logf("cache hit: %s", path)
		return md, nil
	}

	logf("parsing %s", path)
	t, err := parser.ParseFile(path, opts)
	if err != nil {
		return syntax.Metadata{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cc.Put(path, hash, t.Metadata); err != nil {
		return syntax.Metadata{}, err
	}
	return t.Metadata, nil
}

func dumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "Print the parse tree of one file as JSON",
		ArgsUsage: "file",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "include-dir",
				Aliases: []string{"I"},
				Usage:   "Add an include search directory",
			},
			&cli.StringSliceFlag{
				Name:    "define",
				Aliases: []string{"D"},
				Usage:   "Define a preprocessor macro (NAME or NAME=value)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("dump takes exactly one file")
			}
			path := c.Args().First()
			t, err := parser.ParseFile(path, lexer.Options{
				IncludeDirs: c.StringSlice("include-dir"),
				Defines:     c.StringSlice("define"),
			})
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			out, err := syntax.DebugJSON(t)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}
