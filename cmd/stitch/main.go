package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/BigSchema/stitch/internal/engine"
	"github.com/BigSchema/stitch/internal/eventbus"
	"github.com/BigSchema/stitch/internal/httpexec"
	"github.com/BigSchema/stitch/internal/language"
	"github.com/BigSchema/stitch/internal/otel"
	"github.com/BigSchema/stitch/internal/result"
	"github.com/BigSchema/stitch/internal/server"
	"github.com/BigSchema/stitch/internal/superschema"
)

const rootUsage = `stitch — federated GraphQL gateway & tools

USAGE:
  stitch <command> [flags]

COMMANDS:
  serve            Run the HTTP gateway over a set of subschemas
  compile-sdl      Merge subschema SDLs into a single super-schema SDL
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -subschema <Name=URL>       Subschema GraphQL endpoint. Repeatable; at least one required
  -schema <Name=file>         SDL file for a subschema. Repeatable; one per subschema
  -server.addr <addr>         HTTP listen address (default: :8080)
  -server.pretty              Pretty-print JSON responses
  -server.timeout <duration>  Per-request timeout, e.g. 10s (default: 10s)
  -otel.endpoint <addr>       OTLP collector endpoint
  -otel.service <name>        OpenTelemetry service name (default: stitch)
`

const compileSDLUsage = `compile-sdl FLAGS:
  -schema <Name=file>  SDL file for a subschema. Repeatable; at least one required
  -out <file>          Write merged SDL to file (default: stdout)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("stitch", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs)
	case "compile-sdl":
		return cmdCompileSDL(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Print(serveUsage)
	case "compile-sdl":
		fmt.Print(compileSDLUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

// pairFlag collects repeatable Name=Value mappings.
type pairFlag struct {
	m     map[string]string
	order []string
}

func (p *pairFlag) String() string { return "" }

func (p *pairFlag) Set(v string) error {
	parts := strings.SplitN(v, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid mapping %q", v)
	}
	name := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	if name == "" || value == "" {
		return fmt.Errorf("invalid mapping %q", v)
	}
	if p.m == nil {
		p.m = map[string]string{}
	}
	if _, dup := p.m[name]; !dup {
		p.order = append(p.order, name)
	}
	p.m[name] = value
	return nil
}

func loadSubschemas(endpoints, schemas pairFlag) ([]*superschema.Subschema, error) {
	if len(endpoints.order) == 0 {
		return nil, fmt.Errorf("at least one -subschema mapping is required")
	}
	var subschemas []*superschema.Subschema
	for _, name := range endpoints.order {
		url := endpoints.m[name]
		file, ok := schemas.m[name]
		if !ok {
			return nil, fmt.Errorf("no -schema mapping for subschema %q", name)
		}
		sdl, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read schema for %q: %w", name, err)
		}
		sch, err := language.LoadSchema(file, string(sdl))
		if err != nil {
			return nil, fmt.Errorf("load schema for %q: %w", name, err)
		}
		subschemas = append(subschemas, &superschema.Subschema{
			Name:     name,
			Schema:   sch,
			Executor: httpexec.NewExecutor(name, url),
		})
	}
	return subschemas, nil
}

func cmdServe(args []string) error {
	addr := ":8080"
	pretty := false
	timeout := 10 * time.Second
	otelEndpoint := ""
	otelService := "stitch"
	var endpoints, schemas pairFlag

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.Var(&endpoints, "subschema", "Subschema GraphQL endpoint (Name=URL)")
	fs.Var(&schemas, "schema", "SDL file for a subschema (Name=file)")
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "server.timeout", timeout, "Per-request timeout")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	subschemas, err := loadSubschemas(endpoints, schemas)
	if err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	ss, err := superschema.New(subschemas...)
	if err != nil {
		return fmt.Errorf("build super-schema: %w", err)
	}

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	var sopts []server.Option
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if timeout > 0 {
		sopts = append(sopts, server.WithTimeout(timeout))
	}
	h, err := server.New(engine.New(ss), sopts...)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)

	log.Printf("stitched GraphQL gateway listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func cmdCompileSDL(args []string) error {
	outFile := ""
	var schemas pairFlag
	fs := flag.NewFlagSet("compile-sdl", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.Var(&schemas, "schema", "SDL file for a subschema (Name=file)")
	fs.StringVar(&outFile, "out", outFile, "Write merged SDL to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, compileSDLUsage)
		return err
	}
	if len(schemas.order) == 0 {
		fmt.Fprint(os.Stderr, compileSDLUsage)
		return fmt.Errorf("at least one -schema mapping is required")
	}

	var subschemas []*superschema.Subschema
	for _, name := range schemas.order {
		sdl, err := os.ReadFile(schemas.m[name])
		if err != nil {
			return fmt.Errorf("read schema for %q: %w", name, err)
		}
		sch, err := language.LoadSchema(schemas.m[name], string(sdl))
		if err != nil {
			return fmt.Errorf("load schema for %q: %w", name, err)
		}
		subschemas = append(subschemas, &superschema.Subschema{
			Name:     name,
			Schema:   sch,
			Executor: unreachableExecutor(name),
		})
	}
	ss, err := superschema.New(subschemas...)
	if err != nil {
		return fmt.Errorf("build super-schema: %w", err)
	}

	sdl := language.FormatSchema(ss.Schema)
	if outFile == "" {
		fmt.Print(sdl)
		return nil
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}

// unreachableExecutor satisfies the subschema contract for offline schema
// compilation; it is never invoked.
func unreachableExecutor(name string) superschema.ExecutorFunc {
	return func(context.Context, superschema.Request) (*result.Result, error) {
		return nil, fmt.Errorf("subschema %q has no executor configured", name)
	}
}
