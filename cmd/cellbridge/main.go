// cellbridge CLI - runs Lua scripts against the native call bridge
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/cellbridge/bridge"
	"github.com/chazu/cellbridge/config"
	"github.com/chazu/cellbridge/corelib"
	"github.com/chazu/cellbridge/luabind"
	"github.com/chazu/cellbridge/native"
	"github.com/chazu/cellbridge/preprocess"
	"github.com/chazu/cellbridge/trace"
	"github.com/chazu/cellbridge/vm"
)

var log = commonlog.GetLogger("cellbridge.cli")

func main() {
	configPath := flag.String("config", "", "Configuration file (default: search upwards for cellbridge.toml/yaml)")
	verbosity := flag.Int("v", -1, "Log verbosity (overrides configuration)")
	logPath := flag.String("log", "", "Log file (default: stderr)")
	preprocessOnly := flag.Bool("preprocess", false, "Print the preprocessed form of the given files and exit")
	syntax := flag.String("syntax", "lua", "Source syntax for -preprocess: lua or js")
	manifestPath := flag.String("natives", "", "Write the CBOR binding manifest to this file and exit")
	traceCalls := flag.Bool("trace", false, "Record native calls in the trace database")
	recent := flag.String("recent", "", "Print the most recent traced calls of this native and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cellbridge [options] [script.lua]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a Lua script with the core natives bound. Without a script the\n")
		fmt.Fprintf(os.Stderr, "configured main script is run.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  cellbridge main.lua                 # Run a script\n")
		fmt.Fprintf(os.Stderr, "  cellbridge -trace main.lua          # Run and record native calls\n")
		fmt.Fprintf(os.Stderr, "  cellbridge -recent floatadd         # Show recorded floatadd calls\n")
		fmt.Fprintf(os.Stderr, "  cellbridge -preprocess a.lua b.lua  # Show rewritten float literals\n")
		fmt.Fprintf(os.Stderr, "  cellbridge -natives natives.cbor    # Dump the binding manifest\n")
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fail(err)
	}
	if *traceCalls {
		cfg.Trace.Enabled = true
		if cfg.Trace.Path == "" {
			cfg.Trace.Path = filepath.Join(".cellbridge", "trace.db")
		}
	}

	v := cfg.Log.Verbosity
	if *verbosity >= 0 {
		v = *verbosity
	}
	lp := cfg.Log.Path
	if *logPath != "" {
		lp = *logPath
	}
	if lp != "" {
		commonlog.Configure(v, &lp)
	} else {
		commonlog.Configure(v, nil)
	}

	switch {
	case *preprocessOnly:
		err = preprocessFiles(*syntax, flag.Args())
	case *manifestPath != "":
		err = writeManifest(cfg, *manifestPath)
	case *recent != "":
		err = printRecent(cfg, *recent)
	default:
		script := cfg.MainScript()
		if flag.NArg() > 0 {
			script = flag.Arg(0)
		}
		err = runScript(cfg, script)
	}
	if err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}

// preprocessFiles transforms every file concurrently and prints the results
// in argument order.
func preprocessFiles(syntax string, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no files to preprocess")
	}
	sx, err := preprocess.ParseSyntax(syntax)
	if err != nil {
		return err
	}

	tr := preprocess.NewFor(sx)
	out := make([]string, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", path, err)
			}
			out[i] = tr.Transform(string(data))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, path := range paths {
		if len(paths) > 1 {
			fmt.Printf("-- %s\n", path)
		}
		fmt.Print(out[i])
	}
	return nil
}

func coreTable() *vm.NativeTable {
	table := vm.NewNativeTable()
	corelib.Register(table)
	return table
}

func writeManifest(cfg *config.Config, path string) error {
	reg := native.NewRegistry(cfg.Natives.FloatReturn)
	reg.Generate(coreTable())
	data, err := native.MarshalManifest(reg.Manifest())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	log.Infof("wrote %d bindings to %s", reg.Len(), path)
	return nil
}

func printRecent(cfg *config.Config, name string) error {
	path := cfg.TracePath()
	if path == "" {
		path = filepath.Join(".cellbridge", "trace.db")
	}
	store, err := trace.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.Recent(name, 20)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		hooked := ""
		if rec.Hooked {
			hooked = " (hooked)"
		}
		fmt.Printf("%s %s%v = %d%s [%s]\n",
			rec.Start.Format("15:04:05.000"), rec.Name, rec.Args, rec.Result, hooked, rec.Duration)
	}
	return nil
}

func runScript(cfg *config.Config, script string) error {
	opts := []bridge.Option{bridge.WithConfig(cfg)}
	if cfg.Trace.Enabled {
		store, err := trace.Open(cfg.TracePath())
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, bridge.WithTracer(store))
	}

	rt, err := luabind.NewRuntime(opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	bindings := rt.Bridge.GenerateBindings(coreTable())
	log.Debugf("bound %d natives", len(bindings))

	return rt.DoFile(script)
}
