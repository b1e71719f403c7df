package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/orderline-io/orderline/internal/agent"
	"github.com/orderline-io/orderline/internal/config"
	"github.com/orderline-io/orderline/internal/menu"
	"github.com/orderline-io/orderline/internal/provider"
	"github.com/orderline-io/orderline/internal/session"
	"github.com/orderline-io/orderline/internal/store"
	"github.com/orderline-io/orderline/pkg/protocol"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "chat":
		cmdChat(os.Args[2:])
	case "health":
		cmdHealth()
	case "sessions":
		cmdSessions()
	case "calls":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: orderlinectl calls <list|show>")
			os.Exit(1)
		}
		switch os.Args[2] {
		case "list":
			cmdCallsList(os.Args[3:])
		case "show":
			if len(os.Args) < 4 {
				fmt.Fprintln(os.Stderr, "usage: orderlinectl calls show <call_sid>")
				os.Exit(1)
			}
			cmdCallsShow(os.Args[3])
		default:
			fmt.Fprintf(os.Stderr, "unknown calls subcommand: %s\n", os.Args[2])
			os.Exit(1)
		}
	case "menu":
		cmdMenu()
	case "config":
		if len(os.Args) < 4 || os.Args[2] != "validate" {
			fmt.Fprintln(os.Stderr, "usage: orderlinectl config validate <path>")
			os.Exit(1)
		}
		cmdConfigValidate(os.Args[3])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// --- chat command: run the order pipeline locally, no telephony ---

func cmdChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	provType := fs.String("provider", envOr("ORDERLINE_PROVIDER", "openai"), "Provider type: openai or anthropic")
	model := fs.String("model", envOr("ORDERLINE_MODEL", ""), "LLM model name")
	apiKey := fs.String("api-key", "", "API key (or set OPENAI_API_KEY / ANTHROPIC_API_KEY)")
	baseURL := fs.String("base-url", envOr("ORDERLINE_BASE_URL", ""), "Override API base URL")
	restaurant := fs.String("restaurant", envOr("ORDERLINE_RESTAURANT_NAME", "Otto's Burgers"), "Restaurant name")
	menuFile := fs.String("menu-file", envOr("ORDERLINE_MENU_FILE", ""), "YAML menu file (omit for built-in menu)")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	if *apiKey == "" {
		switch *provType {
		case "anthropic":
			*apiKey = os.Getenv("ANTHROPIC_API_KEY")
		default:
			*apiKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "error: API key required (--api-key, OPENAI_API_KEY, or ANTHROPIC_API_KEY)")
		os.Exit(1)
	}

	logLevel := slog.LevelWarn
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	var prov provider.Provider
	switch *provType {
	case "anthropic":
		if *model == "" {
			*model = "claude-sonnet-4-20250514"
		}
		opts := []provider.AnthropicOption{provider.WithAnthropicModel(*model)}
		if *baseURL != "" {
			opts = append(opts, provider.WithAnthropicBaseURL(*baseURL))
		}
		prov = provider.NewAnthropic(*apiKey, opts...)
	default:
		if *model == "" {
			*model = "gpt-4o-mini"
		}
		opts := []provider.OpenAIOption{provider.WithModel(*model)}
		if *baseURL != "" {
			opts = append(opts, provider.WithBaseURL(*baseURL))
		}
		prov = provider.NewOpenAI(*apiKey, opts...)
	}

	var menus menu.Provider
	if *menuFile != "" {
		fp, err := menu.NewFileProvider(*menuFile, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		menus = fp
	} else {
		menus = &menu.StaticProvider{Menu: menu.Default()}
	}

	voiceAgent := agent.New(prov, *restaurant)
	voiceAgent.Logger = logger
	manager := session.NewManager(voiceAgent, menus, store.NewMemoryStore(), nil, session.Config{}, logger)

	ctx := context.Background()
	callID := fmt.Sprintf("local-%d", time.Now().Unix())

	greeting, err := manager.StartCall(ctx, callID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("agent: %s\n", greeting)
	fmt.Println("(you are the caller; type 'quit' to hang up)")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			manager.EndCall(ctx, callID, protocol.ReasonHangup)
			fmt.Println("(hung up)")
			return
		}

		outcome, err := manager.HandleTurn(ctx, callID, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		fmt.Printf("agent: %s\n", outcome.AssistantText)
		if outcome.Terminal {
			return
		}
	}
}

// --- API client commands ---

func cmdHealth() {
	body, err := apiGet("/api/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(body))
}

func cmdSessions() {
	body, err := apiGet("/api/sessions")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var sessions []map[string]any
	json.Unmarshal(body, &sessions)
	if len(sessions) == 0 {
		fmt.Println("no active sessions")
		return
	}
	for _, s := range sessions {
		fmt.Printf("%-36s %-18s turns=%v items=%v\n", s["call_id"], s["stage"], s["turn_count"], s["items"])
	}
}

func cmdCallsList(args []string) {
	fs := flag.NewFlagSet("calls list", flag.ExitOnError)
	status := fs.String("status", "", "Filter by status (completed|failed)")
	limit := fs.Int("limit", 50, "Max results")
	fs.Parse(args)

	query := fmt.Sprintf("?limit=%d", *limit)
	if *status != "" {
		query += "&status=" + *status
	}

	body, err := apiGet("/api/calls" + query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var calls []map[string]any
	json.Unmarshal(body, &calls)
	for _, c := range calls {
		fmt.Printf("%-36s %-10s %-10s %s\n", c["call_id"], c["status"], c["reason"], c["ended_at"])
	}
}

func cmdCallsShow(id string) {
	body, err := apiGet("/api/calls/" + id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(body))
}

func cmdMenu() {
	body, err := apiGet("/api/menu")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(body))
}

func cmdConfigValidate(path string) {
	if _, err := config.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("config is valid")
}

// --- Helpers ---

func apiGet(path string) ([]byte, error) {
	base := envOr("ORDERLINE_API_URL", "http://localhost:8080")
	url := base + path

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	if key := os.Getenv("ORDERLINE_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func prettyJSON(data []byte) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	return string(out)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printUsage() {
	fmt.Println("orderlinectl - phone order daemon CLI")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  chat                 Take an order interactively, no telephony")
	fmt.Println("  health               Check daemon health")
	fmt.Println("  sessions             List live call sessions")
	fmt.Println("  calls list           List persisted calls (--status, --limit)")
	fmt.Println("  calls show <sid>     Show one call with transcript and order")
	fmt.Println("  menu                 Show the current menu")
	fmt.Println("  config validate <p>  Validate config file")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  ORDERLINE_API_URL    Daemon URL (default: http://localhost:8080)")
	fmt.Println("  ORDERLINE_API_KEY    API key for authentication")
	fmt.Println("  ORDERLINE_PROVIDER   Provider type: openai (default) or anthropic")
	fmt.Println("  OPENAI_API_KEY       API key for OpenAI provider")
	fmt.Println("  ANTHROPIC_API_KEY    API key for Anthropic provider")
}
