package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/klauspost/compress/zstd"

	"voxelforge.dev/internal/bcf"
	"voxelforge.dev/internal/csm"
	"voxelforge.dev/internal/cube"
	"voxelforge.dev/internal/store"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "convert":
			convertCmd(os.Args[2:])
			return
		case "info":
			infoCmd(os.Args[2:])
			return
		case "trace":
			traceCmd(os.Args[2:])
			return
		case "put":
			putCmd(os.Args[2:])
			return
		case "get":
			getCmd(os.Args[2:])
			return
		case "ls":
			lsCmd(os.Args[2:])
			return
		case "rm":
			rmCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: bcf <convert|info|trace|put|get|ls|rm> [flags]")
	os.Exit(2)
}

func convertCmd(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	in := fs.String("in", "", "input file (.csm, .bcf, .bcf.zst)")
	out := fs.String("out", "", "output file (.csm, .bcf, .bcf.zst)")
	_ = fs.Parse(args)

	if *in == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "missing -in or -out")
		os.Exit(2)
	}

	root, err := readModel(*in)
	if err != nil {
		fatal("read %s: %v", *in, err)
	}
	if err := writeModel(*out, root); err != nil {
		fatal("write %s: %v", *out, err)
	}
}

func infoCmd(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	in := fs.String("in", "", "input file (.bcf, .bcf.zst)")
	_ = fs.Parse(args)

	if *in == "" {
		fmt.Fprintln(os.Stderr, "missing -in")
		os.Exit(2)
	}
	data, err := readRaw(*in)
	if err != nil {
		fatal("read %s: %v", *in, err)
	}
	header, err := bcf.NewReader(data).ReadHeader()
	if err != nil {
		fatal("header: %v", err)
	}
	root, err := bcf.Unmarshal(data)
	if err != nil {
		fatal("parse: %v", err)
	}

	fmt.Printf("version:     %d\n", header.Version)
	fmt.Printf("root offset: %d\n", header.RootOffset)
	fmt.Printf("size:        %d bytes\n", len(data))
	fmt.Printf("max depth:   %d\n", root.MaxDepth())
	total, leaves := root.CountNodes()
	fmt.Printf("nodes:       %d (%d leaves)\n", total, leaves)
	fmt.Printf("materials:   %v\n", root.Materials())
}

func traceCmd(args []string) {
	fs := flag.NewFlagSet("trace", flag.ExitOnError)
	in := fs.String("in", "", "input file (.bcf, .bcf.zst)")
	dataDir := fs.String("data", "./data", "store data directory (used with -name)")
	name := fs.String("name", "", "stored asset name (alternative to -in)")
	originArg := fs.String("origin", "", "ray origin x,y,z in root space")
	dirArg := fs.String("dir", "", "ray direction x,y,z")
	maxDepth := fs.Int("max_depth", 0, "trace depth limit (default server limit)")
	maxSteps := fs.Int("max_steps", 0, "trace step limit (default server limit)")
	_ = fs.Parse(args)

	if (*in == "") == (*name == "") || *originArg == "" || *dirArg == "" {
		fmt.Fprintln(os.Stderr, "need exactly one of -in/-name, plus -origin and -dir")
		os.Exit(2)
	}
	origin, err := parseVec(*originArg)
	if err != nil {
		fatal("bad -origin: %v", err)
	}
	dir, err := parseVec(*dirArg)
	if err != nil {
		fatal("bad -dir: %v", err)
	}

	var data []byte
	if *name != "" {
		st := openStore(*dataDir)
		defer st.Close()
		data, err = st.Get(*name)
		if err != nil {
			fatal("get %s: %v", *name, err)
		}
	} else {
		data, err = readRaw(*in)
		if err != nil {
			fatal("read %s: %v", *in, err)
		}
	}

	lim := cube.DefaultTraceLimits()
	if *maxDepth > 0 {
		lim.MaxDepth = *maxDepth
	}
	if *maxSteps > 0 {
		lim.MaxSteps = *maxSteps
	}

	hit, ok := bcf.RaycastLimits(data, origin, dir, lim)
	if !ok {
		fmt.Println("miss")
		return
	}
	world := hit.World()
	fmt.Printf("hit value=%d depth=%d cell=(%d,%d,%d) normal=%s\n",
		hit.Value, hit.Coord.Depth, hit.Coord.Pos.X, hit.Coord.Pos.Y, hit.Coord.Pos.Z, hit.Normal)
	fmt.Printf("world=(%.6f,%.6f,%.6f)\n", world.X, world.Y, world.Z)
}

func putCmd(args []string) {
	fs := flag.NewFlagSet("put", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "store data directory")
	name := fs.String("name", "", "asset name (default: input basename)")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: bcf put [flags] <file>")
		os.Exit(2)
	}
	in := fs.Arg(0)
	root, err := readModel(in)
	if err != nil {
		fatal("read %s: %v", in, err)
	}
	assetName := *name
	if assetName == "" {
		assetName = strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	}

	st := openStore(*dataDir)
	defer st.Close()

	info, err := st.Put(assetName, bcf.Marshal(root))
	if err != nil {
		fatal("put %s: %v", assetName, err)
	}
	fmt.Printf("%s  raw=%d compressed=%d depth=%d\n",
		info.Name, info.RawSize, info.CompressedSize, info.MaxDepth)
}

func getCmd(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "store data directory")
	out := fs.String("out", "", "output file (default: <name>.bcf)")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: bcf get [flags] <name>")
		os.Exit(2)
	}
	name := fs.Arg(0)

	st := openStore(*dataDir)
	defer st.Close()

	data, err := st.Get(name)
	if err != nil {
		fatal("get %s: %v", name, err)
	}
	dest := *out
	if dest == "" {
		dest = name + ".bcf"
	}
	root, err := bcf.Unmarshal(data)
	if err != nil {
		fatal("parse %s: %v", name, err)
	}
	if err := writeModel(dest, root); err != nil {
		fatal("write %s: %v", dest, err)
	}
}

func lsCmd(args []string) {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "store data directory")
	_ = fs.Parse(args)

	st := openStore(*dataDir)
	defer st.Close()

	assets, err := st.List()
	if err != nil {
		fatal("list: %v", err)
	}
	for _, a := range assets {
		fmt.Printf("%-24s raw=%-8d compressed=%-8d depth=%-2d %s\n",
			a.Name, a.RawSize, a.CompressedSize, a.MaxDepth, a.CreatedAt)
	}
}

func rmCmd(args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "store data directory")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: bcf rm [flags] <name>")
		os.Exit(2)
	}
	name := fs.Arg(0)

	st := openStore(*dataDir)
	defer st.Close()

	if err := st.Delete(name); err != nil {
		fatal("rm %s: %v", name, err)
	}
}

// readModel loads a cube from any supported file format.
func readModel(path string) (*cube.Cube, error) {
	if strings.HasSuffix(path, ".csm") {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return csm.Parse(string(b))
	}
	data, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	return bcf.Unmarshal(data)
}

func writeModel(path string, root *cube.Cube) error {
	if strings.HasSuffix(path, ".csm") {
		return os.WriteFile(path, []byte(csm.Format(root)+"\n"), 0o644)
	}
	data := bcf.Marshal(root)
	if strings.HasSuffix(path, ".zst") {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return err
		}
		defer enc.Close()
		data = enc.EncodeAll(data, nil)
	}
	return os.WriteFile(path, data, 0o644)
}

// readRaw returns BCF bytes, transparently decompressing .zst files.
func readRaw(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(b, nil)
	}
	return b, nil
}

func openStore(dir string) *store.Store {
	st, err := store.Open(dir)
	if err != nil {
		fatal("open store: %v", err)
	}
	return st
}

func parseVec(s string) (r3.Vector, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return r3.Vector{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var out [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return r3.Vector{}, err
		}
		out[i] = v
	}
	return r3.Vector{X: out[0], Y: out[1], Z: out[2]}, nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
