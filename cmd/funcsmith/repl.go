package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	nameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

const replHelp = `commands:
  define '<json args>'          synthesize and store a new function
  invoke <name> ['<json>']      run a stored function
  list                          show stored functions
  clear                         remove all non-internal functions
  config [set <key> <value>]    show or persist configuration
  help                          show this help
  exit                          quit`

func runREPL(ctx context.Context, rt *runtime) {
	banner := fmt.Sprintf("(provider: %s, %d capabilities, type \"help\" for commands)",
		providerLabel(rt), rt.registry.Len())
	fmt.Printf("%s %s\n", promptStyle.Render("funcsmith"), dimStyle.Render(banner))

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print(promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch line {
		case "exit", "quit":
			return
		case "help":
			fmt.Println(replHelp)
			continue
		}

		cmd, args := splitCommand(line)
		out, err := runCommand(ctx, rt, cmd, args)
		if err != nil {
			fmt.Println(errStyle.Render(err.Error()))
			continue
		}
		fmt.Println(out)
	}
}

func providerLabel(rt *runtime) string {
	if rt.cfg.Provider == "" {
		return "stub"
	}
	return rt.cfg.Provider
}

// splitCommand splits a REPL line into command and arguments, honoring
// single-quoted JSON payloads.
func splitCommand(line string) (string, []string) {
	fields := splitQuoted(line)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

func splitQuoted(line string) []string {
	var (
		fields  []string
		current strings.Builder
		quoted  bool
	)
	flush := func() {
		if current.Len() > 0 {
			fields = append(fields, current.String())
			current.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '\'':
			quoted = !quoted
		case r == ' ' && !quoted:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return fields
}
