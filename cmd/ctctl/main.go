package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/SpaceTimerAPI-Admin/christmastech/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "health":
		cmdHealth()
	case "tickets":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: ctctl tickets <list|show|create|status|comment>")
			os.Exit(1)
		}
		switch os.Args[2] {
		case "list":
			cmdTicketsList(os.Args[3:])
		case "show":
			if len(os.Args) < 4 {
				fmt.Fprintln(os.Stderr, "usage: ctctl tickets show <id>")
				os.Exit(1)
			}
			cmdTicketsShow(os.Args[3])
		case "create":
			cmdTicketsCreate(os.Args[3:])
		case "status":
			if len(os.Args) < 5 {
				fmt.Fprintln(os.Stderr, "usage: ctctl tickets status <id> <open|fixed>")
				os.Exit(1)
			}
			cmdTicketsStatus(os.Args[3], os.Args[4], os.Args[5:])
		case "comment":
			if len(os.Args) < 5 {
				fmt.Fprintln(os.Stderr, "usage: ctctl tickets comment <id> <body>")
				os.Exit(1)
			}
			cmdTicketsComment(os.Args[3], os.Args[4], os.Args[5:])
		default:
			fmt.Fprintf(os.Stderr, "unknown tickets subcommand: %s\n", os.Args[2])
			os.Exit(1)
		}
	case "backfill":
		cmdBackfill(os.Args[2:])
	case "report":
		cmdReport()
	case "config":
		if len(os.Args) < 4 || os.Args[2] != "validate" {
			fmt.Fprintln(os.Stderr, "usage: ctctl config validate <path>")
			os.Exit(1)
		}
		cmdConfigValidate(os.Args[3])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// --- Commands ---

func cmdHealth() {
	body, err := apiGet("/api/health")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(body))
}

func cmdTicketsList(args []string) {
	fs := flag.NewFlagSet("tickets list", flag.ExitOnError)
	status := fs.String("status", "", "Filter by status (open|fixed)")
	limit := fs.Int("limit", 50, "Max results")
	fs.Parse(args)

	query := fmt.Sprintf("?limit=%d", *limit)
	if *status != "" {
		query += "&status=" + *status
	}

	body, err := apiGet("/api/tickets" + query)
	if err != nil {
		fatal(err)
	}
	var tickets []map[string]any
	json.Unmarshal(body, &tickets)
	for _, t := range tickets {
		id := int64(0)
		if f, ok := t["id"].(float64); ok {
			id = int64(f)
		}
		fmt.Printf("#%-6d %-6s %-30s %s\n", id, t["status"], t["location_friendly"], t["tech_name"])
	}
}

func cmdTicketsShow(id string) {
	body, err := apiGet("/api/tickets/" + id)
	if err != nil {
		fatal(err)
	}
	fmt.Println(prettyJSON(body))
}

func cmdTicketsCreate(args []string) {
	fs := flag.NewFlagSet("tickets create", flag.ExitOnError)
	tech := fs.String("tech", "", "Technician name")
	location := fs.String("location", "", "Friendly location")
	desc := fs.String("desc", "", "Description")
	lat := fs.Float64("lat", 0, "Latitude")
	lon := fs.Float64("lon", 0, "Longitude")
	photoURL := fs.String("photo-url", "", "Photo URL")
	dryRun := fs.Bool("dry-run", false, "Probe for duplicates without creating")
	force := fs.Bool("force", false, "Create even when a duplicate is nearby")
	fs.Parse(args)

	payload := map[string]any{
		"tech_name":         *tech,
		"location_friendly": *location,
		"description":       *desc,
		"photo_url":         *photoURL,
		"dry_run":           *dryRun,
		"force_create":      *force,
	}
	var latSet, lonSet bool
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lat":
			latSet = true
		case "lon":
			lonSet = true
		}
	})
	if latSet && lonSet {
		payload["lat"] = *lat
		payload["lon"] = *lon
	}

	body, status, err := apiPost("/api/tickets", payload, nil)
	if err != nil {
		fatal(err)
	}
	if status == http.StatusConflict {
		fmt.Println("duplicate detected:")
	}
	fmt.Println(prettyJSON(body))
}

func cmdTicketsStatus(id, status string, args []string) {
	fs := flag.NewFlagSet("tickets status", flag.ExitOnError)
	actor := fs.String("actor", "", "Who is making the change")
	fs.Parse(args)

	body, _, err := apiPost("/api/tickets/"+id+"/status", map[string]string{
		"status": status,
		"actor":  *actor,
	}, nil)
	if err != nil {
		fatal(err)
	}
	fmt.Println(prettyJSON(body))
}

func cmdTicketsComment(id, commentBody string, args []string) {
	fs := flag.NewFlagSet("tickets comment", flag.ExitOnError)
	author := fs.String("author", "", "Comment author")
	fs.Parse(args)

	body, _, err := apiPost("/api/tickets/"+id+"/comments", map[string]string{
		"author": *author,
		"body":   commentBody,
	}, nil)
	if err != nil {
		fatal(err)
	}
	fmt.Println(prettyJSON(body))
}

func cmdBackfill(args []string) {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Report matches without writing")
	fs.Parse(args)

	path := "/api/backfill"
	if *dryRun {
		path += "?dry_run=1"
	}
	headers := map[string]string{}
	if secret := os.Getenv("CT_BACKFILL_SECRET"); secret != "" {
		headers["X-Backfill-Secret"] = secret
	}

	body, _, err := apiPost(path, nil, headers)
	if err != nil {
		fatal(err)
	}
	fmt.Println(prettyJSON(body))
}

func cmdReport() {
	body, _, err := apiPost("/api/report", nil, nil)
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(body))
}

func cmdConfigValidate(path string) {
	_, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("config is valid")
}

// --- Helpers ---

func apiGet(path string) ([]byte, error) {
	req, err := http.NewRequest("GET", baseURL()+path, nil)
	if err != nil {
		return nil, err
	}
	body, _, err := doRequest(req)
	return body, err
}

func apiPost(path string, payload any, headers map[string]string) ([]byte, int, error) {
	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return nil, 0, err
		}
	}
	req, err := http.NewRequest("POST", baseURL()+path, &buf)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return doRequest(req)
}

func doRequest(req *http.Request) ([]byte, int, error) {
	if key := os.Getenv("CT_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	// 409 carries the duplicate payload; everything else 400+ is an error.
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusConflict {
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, resp.StatusCode, nil
}

func baseURL() string {
	if v := os.Getenv("CT_API_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func prettyJSON(data []byte) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	return string(out)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Println("ctctl — christmastech management CLI")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  health                      Check daemon health")
	fmt.Println("  tickets list                List tickets (--status, --limit)")
	fmt.Println("  tickets show <id>           Show ticket with comments and photos")
	fmt.Println("  tickets create              Create a ticket (--tech, --location, --desc, --lat, --lon, --photo-url, --dry-run, --force)")
	fmt.Println("  tickets status <id> <s>     Set ticket status to open or fixed (--actor)")
	fmt.Println("  tickets comment <id> <body> Add a comment (--author)")
	fmt.Println("  backfill                    Reconcile orphaned photos (--dry-run)")
	fmt.Println("  report                      Send the daily report now")
	fmt.Println("  config validate <path>      Validate config file")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  CT_API_URL          Daemon URL (default: http://localhost:8080)")
	fmt.Println("  CT_API_KEY          API key for authentication")
	fmt.Println("  CT_BACKFILL_SECRET  Shared secret for the backfill trigger")
}
