package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"funcsmith/internal/capability"
	"funcsmith/internal/config"
	"funcsmith/internal/dispatch"
	"funcsmith/internal/logger"
	"funcsmith/internal/oracle"
	anthropicoracle "funcsmith/internal/oracle/anthropic"
	openaioracle "funcsmith/internal/oracle/openai"
	"funcsmith/internal/store"
)

var log = logger.Named("cli")

func main() {
	logger.Configure()

	var (
		configPath = flag.String("config", "", "config file path (default ~/.funcsmith/config.toml)")
		provider   = flag.String("provider", "", "oracle provider: openai, anthropic or stub")
		model      = flag.String("model", "", "oracle model override")
		storePath  = flag.String("store", "", "function store path override")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	// The log file location comes from the config, so it can only be opened
	// after Load. SetupFile falls back to DefaultLogPath for an empty path.
	if logFile, _, err := logger.SetupFile(cfg.LogPath); err != nil {
		logger.Warnf("failed to initialize log file: %v", err)
	} else {
		defer logFile.Close()
	}
	if *provider != "" {
		cfg.Provider = *provider
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *storePath != "" {
		cfg.StorePath = *storePath
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer rt.Close()

	ctx := context.Background()
	args := flag.Args()
	if len(args) == 0 {
		runREPL(ctx, rt)
		return
	}
	out, err := runCommand(ctx, rt, args[0], args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render(err.Error()))
		os.Exit(1)
	}
	fmt.Println(out)
}

// runtime holds everything built once at process start; components receive
// it by reference instead of reaching for globals.
type runtime struct {
	cfg        config.Config
	store      store.Store
	dispatcher *dispatch.Dispatcher
	registry   *capability.Registry
}

func newRuntime(cfg config.Config) (*runtime, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	client, err := buildOracle(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	registry := demoCapabilities()
	d := dispatch.New(dispatch.Options{
		Store:       st,
		Oracle:      client,
		Registry:    registry,
		MaxRepairs:  cfg.MaxRepairs,
		ExecTimeout: time.Duration(cfg.ExecTimeoutSeconds) * time.Second,
	})
	return &runtime{cfg: cfg, store: st, dispatcher: d, registry: registry}, nil
}

func (rt *runtime) Close() {
	if err := rt.store.Close(); err != nil {
		log.Warnf("closing store: %v", err)
	}
}

func openStore(cfg config.Config) (store.Store, error) {
	path := cfg.StorePath
	switch strings.ToLower(cfg.StoreDriver) {
	case "", "file":
		if path == "" {
			p, err := store.DefaultPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return store.NewFileStore(path)
	case "sqlite":
		if path == "" {
			p, err := store.DefaultPath()
			if err != nil {
				return nil, err
			}
			path = strings.TrimSuffix(p, ".json") + ".db"
		}
		return store.NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func buildOracle(cfg config.Config) (oracle.Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return openaioracle.New(openaioracle.Options{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	case "anthropic":
		return anthropicoracle.New(anthropicoracle.Options{
			Token:   cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	case "", "stub":
		log.Info("no oracle provider configured, using offline stub")
		return oracle.StubClient{}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func runCommand(ctx context.Context, rt *runtime, cmd string, args []string) (string, error) {
	switch cmd {
	case "define":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: funcsmith define '<json args>'")
		}
		params, err := parseJSONObject(args[0])
		if err != nil {
			return "", err
		}
		return rt.dispatcher.Dispatch(ctx, dispatch.Request{Name: dispatch.DefineFunctionTool, Params: params}), nil
	case "invoke":
		if len(args) < 1 || len(args) > 2 {
			return "", fmt.Errorf("usage: funcsmith invoke <name> ['<json params>']")
		}
		params := map[string]any{}
		if len(args) == 2 {
			p, err := parseJSONObject(args[1])
			if err != nil {
				return "", err
			}
			params = p
		}
		return rt.dispatcher.Dispatch(ctx, dispatch.Request{Name: args[0], Params: params}), nil
	case "list":
		return listFunctions(ctx, rt)
	case "clear":
		if err := rt.store.Clear(ctx); err != nil {
			return "", err
		}
		return okStyle.Render("store cleared"), nil
	case "config":
		return runConfigCommand(rt, args)
	default:
		return "", fmt.Errorf("unknown command %q (define, invoke, list, clear, config)", cmd)
	}
}

// runConfigCommand shows the effective configuration, or persists a single
// field back to the config file. Persisted changes take effect on the next
// start; the running pipeline keeps its wiring.
func runConfigCommand(rt *runtime, args []string) (string, error) {
	if len(args) == 0 {
		return renderConfig(rt.cfg), nil
	}
	if args[0] != "set" || len(args) != 3 {
		return "", fmt.Errorf("usage: funcsmith config [set <key> <value>]")
	}
	cfg := rt.cfg
	if err := setConfigField(&cfg, args[1], args[2]); err != nil {
		return "", err
	}
	if err := config.Save(cfg); err != nil {
		return "", err
	}
	rt.cfg = cfg
	return okStyle.Render(fmt.Sprintf("saved %s (takes effect on next start)", args[1])), nil
}

func setConfigField(cfg *config.Config, key, value string) error {
	switch key {
	case "provider":
		cfg.Provider = value
	case "model":
		cfg.Model = value
	case "api_key":
		cfg.APIKey = value
	case "base_url":
		cfg.BaseURL = value
	case "store_driver":
		cfg.StoreDriver = value
	case "store_path":
		cfg.StorePath = value
	case "log_path":
		cfg.LogPath = value
	case "max_repairs":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("max_repairs wants a non-negative integer, got %q", value)
		}
		cfg.MaxRepairs = n
	case "exec_timeout_seconds":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("exec_timeout_seconds wants a positive integer, got %q", value)
		}
		cfg.ExecTimeoutSeconds = n
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

func renderConfig(cfg config.Config) string {
	mask := func(s string) string {
		if s == "" {
			return dimStyle.Render("(unset)")
		}
		return "****"
	}
	show := func(s string) string {
		if s == "" {
			return dimStyle.Render("(default)")
		}
		return s
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "provider             %s\n", show(cfg.Provider))
	fmt.Fprintf(&sb, "model                %s\n", show(cfg.Model))
	fmt.Fprintf(&sb, "api_key              %s\n", mask(cfg.APIKey))
	fmt.Fprintf(&sb, "base_url             %s\n", show(cfg.BaseURL))
	fmt.Fprintf(&sb, "store_driver         %s\n", show(cfg.StoreDriver))
	fmt.Fprintf(&sb, "store_path           %s\n", show(cfg.StorePath))
	fmt.Fprintf(&sb, "log_path             %s\n", show(cfg.LogPath))
	fmt.Fprintf(&sb, "max_repairs          %d\n", cfg.MaxRepairs)
	fmt.Fprintf(&sb, "exec_timeout_seconds %d", cfg.ExecTimeoutSeconds)
	return sb.String()
}

func listFunctions(ctx context.Context, rt *runtime) (string, error) {
	defs, err := rt.store.List(ctx)
	if err != nil {
		return "", err
	}
	if len(defs) == 0 {
		return dimStyle.Render("(no functions defined)"), nil
	}
	var sb strings.Builder
	for _, def := range defs {
		name := nameStyle.Render(def.Name)
		if def.IsInternal {
			name += dimStyle.Render(" [internal]")
		}
		fmt.Fprintf(&sb, "%s  %s\n", name, def.Description)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func parseJSONObject(raw string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("argument is not a JSON object: %w", err)
	}
	return out, nil
}
