package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/crosswire/fetch"
	"github.com/crosswire/fetch/fasthttpx"
	"github.com/crosswire/fetch/fetchjs"
	"github.com/crosswire/fetch/nativecurl"
	"github.com/crosswire/fetch/nethttp"
)

var (
	okStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#98FB98"))

	errStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))
)

type headerFlags []string

func (h *headerFlags) String() string { return strings.Join(*h, ", ") }
func (h *headerFlags) Set(v string) error {
	*h = append(*h, v)
	return nil
}

func main() {
	var (
		backendName = flag.String("backend", "net", "Transport backend: net, fast, curl, js")
		methodName  = flag.String("method", "GET", "HTTP method: GET, POST, PUT, DELETE")
		body        = flag.String("data", "", "Request body (POST/PUT only)")
		verbose     = flag.Bool("v", false, "Enable debug logging")
		headers     headerFlags
	)
	flag.Var(&headers, "H", "Request header as 'Name: Value' (repeatable)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: fetchget [flags] URL\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	url := flag.Arg(0)

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			fetch.SetLogger(logger)
			defer logger.Sync()
		}
	}

	method, err := parseMethod(*methodName)
	if err != nil {
		fatal(err)
	}

	h := fetch.Headers{}
	for _, line := range headers {
		name, value, found := strings.Cut(line, ": ")
		if !found {
			fatal(fmt.Errorf("bad header %q, want 'Name: Value'", line))
		}
		h[name] = value
	}

	var be fetch.Backend
	switch *backendName {
	case "net":
		be = nethttp.New()
	case "fast":
		be = fasthttpx.New()
	case "curl":
		be = nativecurl.New()
	case "js":
		be = fetchjs.New()
	default:
		fatal(fmt.Errorf("unknown backend %q", *backendName))
	}
	defer be.Close()

	req := fetch.NewRequest(url, h, []byte(*body))
	resp, err := be.Request(context.Background(), method, req)
	if err != nil {
		fatal(err)
	}

	style := okStyle
	if resp.Status >= 400 || resp.Status == fetch.StatusNoResponse {
		style = errStyle
	}
	fmt.Println(style.Render(fmt.Sprintf("%s %s -> %d", method, url, resp.Status)))
	for name, value := range resp.Headers {
		fmt.Println(headerStyle.Render(name+": ") + value)
	}
	if len(resp.Body) > 0 {
		fmt.Println()
		os.Stdout.Write(resp.Body)
		fmt.Println()
	}
}

func parseMethod(s string) (fetch.Method, error) {
	switch strings.ToUpper(s) {
	case "GET":
		return fetch.MethodGet, nil
	case "POST":
		return fetch.MethodPost, nil
	case "PUT":
		return fetch.MethodPut, nil
	case "DELETE":
		return fetch.MethodDelete, nil
	}
	return 0, fmt.Errorf("unknown method %q", s)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, errStyle.Render("error: ")+err.Error())
	os.Exit(1)
}
