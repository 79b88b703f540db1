package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/codec"
	_ "github.com/wippyai/docmap/codec/jsoncodec"
	_ "github.com/wippyai/docmap/codec/msgpackcodec"
	_ "github.com/wippyai/docmap/codec/protocodec"
	_ "github.com/wippyai/docmap/codec/yamlcodec"
	"github.com/wippyai/docmap/codec/zstdcodec"
	"github.com/wippyai/docmap/store/natsstore"
)

type outputMode int

const (
	modeConvert outputMode = iota
	modeDump
	modeKeys
	modeInteractive
)

type source struct {
	collection string
	id         string
}

func main() {
	var (
		configFile  = flag.String("config", "", "YAML config file")
		in          = flag.String("in", "", "Input file (default stdin)")
		out         = flag.String("out", "", "Output file (default stdout)")
		from        = flag.String("from", "", "Input codec (default from extension, else json)")
		to          = flag.String("to", "", "Output codec (default from extension, else the input codec)")
		compress    = flag.Bool("zstd", false, "Compress the output with zstd")
		dump        = flag.Bool("dump", false, "Dump the decoded document structure")
		keys        = flag.Bool("keys", false, "List key paths with value kinds")
		interactive = flag.Bool("i", false, "Interactive browser with TUI")
		natsURL     = flag.String("nats", "", "Read from a natsstore server at this URL")
		collection  = flag.String("collection", "", "Collection to read with -nats")
		id          = flag.String("id", "", "Document id to read with -nats")
		verbose     = flag.Bool("v", false, "Development logging to stderr")
	)
	flag.Parse()

	cfg := &Config{}
	if *configFile != "" {
		loaded, err := LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// flags given explicitly win over the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "in":
			cfg.Input = *in
		case "out":
			cfg.Output = *out
		case "from":
			cfg.From = *from
		case "to":
			cfg.To = *to
		case "zstd":
			cfg.Compress = *compress
		case "nats":
			cfg.NATS.URL = *natsURL
		}
	})
	cfg.applyDefaults()

	if cfg.NATS.URL != "" && (*collection == "" || *id == "") {
		fmt.Fprintln(os.Stderr, "Usage: docmap [-in file] [-from codec] [-to codec] [-zstd] [-out file]")
		fmt.Fprintln(os.Stderr, "       docmap -nats <url> -collection <name> -id <id> [-dump|-keys|-i]")
		fmt.Fprintln(os.Stderr, "       docmap -config <file.yaml>")
		os.Exit(1)
	}

	log := zap.NewNop()
	if *verbose {
		dev, err := zap.NewDevelopment()
		if err == nil {
			log = dev
		}
	}
	defer log.Sync() //nolint:errcheck
	natsstore.SetLogger(log.Named("natsstore"))

	mode := modeConvert
	switch {
	case *interactive:
		mode = modeInteractive
	case *dump:
		mode = modeDump
	case *keys:
		mode = modeKeys
	}

	src := source{collection: *collection, id: *id}
	if err := run(context.Background(), cfg, src, mode, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, src source, mode outputMode, log *zap.Logger) error {
	doc, name, err := load(ctx, cfg, src, log)
	if err != nil {
		return err
	}
	log.Debug("document loaded", zap.String("source", name), zap.Int("keys", doc.Len()))

	if mode == modeInteractive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("interactive mode needs a terminal")
		}
		return runInteractive(name, doc)
	}

	w, closeOut, err := openOutput(cfg.Output)
	if err != nil {
		return err
	}
	defer closeOut()

	switch mode {
	case modeDump:
		dumper := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableMethods: true}
		dumper.Fdump(w, doc.Elements())
		return nil
	case modeKeys:
		return writeKeys(w, doc)
	}

	c, err := outputCodec(cfg)
	if err != nil {
		return err
	}
	if zc, ok := c.(*zstdcodec.Codec); ok {
		defer zc.Close()
	}
	data, err := c.Encode(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.Name(), err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	log.Debug("document written", zap.String("codec", c.Name()), zap.Int("bytes", len(data)))
	return nil
}

func load(ctx context.Context, cfg *Config, src source, log *zap.Logger) (*docmap.Document, string, error) {
	if cfg.NATS.URL != "" {
		return loadRemote(ctx, cfg, src)
	}

	var (
		data []byte
		err  error
		name = cfg.Input
	)
	if name == "" || name == "-" {
		name = "stdin"
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, "", fmt.Errorf("read input: %w", err)
	}

	c, err := codec.Lookup(cfg.From)
	if err != nil {
		return nil, "", err
	}
	if zstdcodec.IsCompressed(data) {
		log.Debug("input is zstd compressed")
		zc := zstdcodec.New(c)
		defer zc.Close()
		c = zc
	}

	doc, err := c.Decode(data)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", c.Name(), err)
	}
	return doc, name, nil
}

func loadRemote(ctx context.Context, cfg *Config, src source) (*docmap.Document, string, error) {
	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("docmap"))
	if err != nil {
		return nil, "", fmt.Errorf("connect: %w", err)
	}
	defer nc.Close()

	st := natsstore.New(nc,
		natsstore.WithSubjectPrefix(cfg.NATS.SubjectPrefix),
		natsstore.WithTimeout(cfg.NATS.Timeout))
	defer st.Close()

	doc, err := st.Collection(src.collection).Find(ctx, src.id)
	if err != nil {
		return nil, "", fmt.Errorf("find %s/%s: %w", src.collection, src.id, err)
	}
	return doc, src.collection + "/" + src.id, nil
}

func outputCodec(cfg *Config) (codec.Codec, error) {
	c, err := codec.Lookup(cfg.To)
	if err != nil {
		return nil, err
	}
	if cfg.Compress {
		return zstdcodec.New(c), nil
	}
	return c, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, func() { f.Close() }, nil
}
