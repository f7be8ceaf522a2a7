package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/yukinko0825/recipe-site/pkg/config"
)

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// startServer is a variable to allow mocking in tests
var startServer = runServer

// Run is the entrypoint for testing
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		// Default to server
		return startServer(stdout, stderr)
	}

	switch args[1] {
	case "serve", "server":
		return startServer(stdout, stderr)
	case "list":
		return runListCmd(args[2:], stdout, stderr)
	case "show":
		return runShowCmd(args[2:], stdout, stderr)
	case "save":
		return runSaveCmd(args[2:], stdout, stderr)
	case "delete":
		return runDeleteCmd(args[2:], stdout, stderr)
	case "migrate":
		return runMigrateCmd(stdout, stderr)
	case "hash-passphrase":
		return runHashPassphraseCmd(args[2:], stdout, stderr)
	case "health":
		return runHealthCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		if strings.HasPrefix(args[1], "-") {
			return startServer(stdout, stderr)
		}
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sRecipe Site %s%s\n", ColorBold+ColorBlue, "v1.0.0", ColorReset)
	fmt.Fprintf(w, "%sRecipes and steps for the dried-foods catalog.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  recipesite <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "SERVER")
	printCommand(w, "serve", "Run the HTTP server (default)")
	printCommand(w, "health", "Check server health (HTTP, --url)")
	printCommand(w, "migrate", "Create or update the database schema")

	printSection(w, "CATALOG")
	printCommand(w, "list", "List recipes, newest first (--q, --json)")
	printCommand(w, "show", "Show a recipe and its steps (--id, --json)")
	printCommand(w, "save", "Create or update a recipe from YAML (--file, --id)")
	printCommand(w, "delete", "Delete a recipe and its steps (--id, --yes)")

	printSection(w, "OPERATOR")
	printCommand(w, "hash-passphrase", "Hash a passphrase for OPERATOR_PASSPHRASE_HASH")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-16s%s %s\n", ColorGreen, name, ColorReset, desc)
}

func runHealthCmd(args []string, out, errOut io.Writer) int {
	cmd := flag.NewFlagSet("health", flag.ContinueOnError)
	cmd.SetOutput(errOut)

	var url string
	cmd.StringVar(&url, "url", "", "Health endpoint (default http://localhost:$PORT/health)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if url == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(errOut, "Health check failed: %v\n", err)
			return 1
		}
		url = "http://localhost:" + cfg.Port + "/health"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(errOut, "Health check failed: %v\n", err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(errOut, "Health check failed: status %d\n", resp.StatusCode)
		return 1
	}

	fmt.Fprintln(out, "OK")
	return 0
}
