// Command scrumkit is a CLI client for the ScrumKit service.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "scrumkit")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "scrumkit")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.Create(tokenPath())
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// ---- api client ----

type apiClient struct {
	base   string
	bearer string
	http   *http.Client
}

func newAPIClient(base, bearer string) *apiClient {
	return &apiClient{
		base:   strings.TrimRight(base, "/"),
		bearer: bearer,
		http:   &http.Client{Timeout: 15 * time.Second},
	}
}

// call issues one JSON request and decodes the JSON response into out.
func (c *apiClient) call(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// assetKind maps the CLI's asset argument onto API path segments.
func assetKind(arg string) (string, error) {
	switch arg {
	case "retro", "retrospective":
		return "retrospectives", nil
	case "poker", "poker-session":
		return "poker-sessions", nil
	default:
		return "", fmt.Errorf("unknown asset kind %q (want retro or poker)", arg)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: scrumkit [-addr URL] <command> [args]

commands:
  register  -email E -name N -password P
  login     -email E -password P
  create    <retro|poker> -title T
  get       <retro|poker> <slug>
  list      <retro|poker>
  delete    <retro|poker> <slug>
  restore   <retro|poker> <slug>
  item add  -board ID -column C -text TEXT [-author NAME]
  item list -board ID
  vote      -board ID -subject ID -value V
  reveal    -board ID -subject ID
  stats     -board ID -subject ID [-tolerance F]
`)
	os.Exit(2)
}

func main() {
	addr := flag.String("addr", envOr("SCRUMKIT_ADDR", "http://localhost:8080"), "server base URL")
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bearer, _ := loadToken()
	api := newAPIClient(*addr, bearer)

	var err error
	switch args[0] {
	case "register":
		err = cmdRegister(ctx, api, args[1:])
	case "login":
		err = cmdLogin(ctx, api, args[1:])
	case "create":
		err = cmdCreate(ctx, api, args[1:])
	case "get":
		err = cmdGet(ctx, api, args[1:])
	case "list":
		err = cmdList(ctx, api, args[1:])
	case "delete":
		err = cmdDelete(ctx, api, args[1:])
	case "restore":
		err = cmdRestore(ctx, api, args[1:])
	case "item":
		err = cmdItem(ctx, api, args[1:])
	case "vote":
		err = cmdVote(ctx, api, args[1:])
	case "reveal":
		err = cmdReveal(ctx, api, args[1:])
	case "stats":
		err = cmdStats(ctx, api, args[1:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func cmdRegister(ctx context.Context, api *apiClient, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "email")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "password")
	_ = fs.Parse(args)
	var out struct {
		UserID string `json:"userId"`
	}
	if err := api.call(ctx, http.MethodPost, "/api/auth/register",
		map[string]string{"email": *email, "name": *name, "password": *password}, &out); err != nil {
		return err
	}
	fmt.Println("registered:", out.UserID)
	return nil
}

func cmdLogin(ctx context.Context, api *apiClient, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "email")
	password := fs.String("password", "", "password")
	_ = fs.Parse(args)

	// the token also arrives as a cookie; the CLI keeps it in a file instead
	var out struct {
		ExpiresAt time.Time `json:"expiresAt"`
		User      struct {
			Name string `json:"name"`
		} `json:"user"`
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, api.base+"/api/auth/login",
		bytes.NewReader(mustJSON(map[string]string{"email": *email, "password": *password})))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := api.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	token := ""
	for _, ck := range resp.Cookies() {
		if ck.Name == "scrumkit_access" {
			token = ck.Value
		}
	}
	if token == "" {
		return errors.New("no access cookie in response")
	}
	if err := saveToken(token, out.ExpiresAt); err != nil {
		return err
	}
	fmt.Println("logged in as", out.User.Name)
	return nil
}

func cmdCreate(ctx context.Context, api *apiClient, args []string) error {
	if len(args) < 1 {
		usage()
	}
	kind, err := assetKind(args[0])
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	title := fs.String("title", "", "title")
	_ = fs.Parse(args[1:])
	var out map[string]any
	if err := api.call(ctx, http.MethodPost, "/api/"+kind, map[string]string{"title": *title}, &out); err != nil {
		return err
	}
	return printJSON(out)
}

func cmdGet(ctx context.Context, api *apiClient, args []string) error {
	if len(args) < 2 {
		usage()
	}
	kind, err := assetKind(args[0])
	if err != nil {
		return err
	}
	var out map[string]any
	if err := api.call(ctx, http.MethodGet, "/api/"+kind+"/"+args[1], nil, &out); err != nil {
		return err
	}
	return printJSON(out)
}

func cmdList(ctx context.Context, api *apiClient, args []string) error {
	if len(args) < 1 {
		usage()
	}
	kind, err := assetKind(args[0])
	if err != nil {
		return err
	}
	var out map[string]any
	if err := api.call(ctx, http.MethodGet, "/api/"+kind, nil, &out); err != nil {
		return err
	}
	return printJSON(out)
}

func cmdDelete(ctx context.Context, api *apiClient, args []string) error {
	if len(args) < 2 {
		usage()
	}
	kind, err := assetKind(args[0])
	if err != nil {
		return err
	}
	var out struct {
		UndoUntil time.Time `json:"undoUntil"`
	}
	if err := api.call(ctx, http.MethodDelete, "/api/"+kind+"/"+args[1], nil, &out); err != nil {
		return err
	}
	fmt.Printf("scheduled; restore with `scrumkit restore %s %s` before %s\n",
		args[0], args[1], out.UndoUntil.Format(time.RFC3339))
	return nil
}

func cmdRestore(ctx context.Context, api *apiClient, args []string) error {
	if len(args) < 2 {
		usage()
	}
	kind, err := assetKind(args[0])
	if err != nil {
		return err
	}
	var out map[string]any
	if err := api.call(ctx, http.MethodPost, "/api/"+kind+"/"+args[1]+"/restore", nil, &out); err != nil {
		return err
	}
	return printJSON(out)
}

func cmdItem(ctx context.Context, api *apiClient, args []string) error {
	if len(args) < 1 {
		usage()
	}
	switch args[0] {
	case "add":
		fs := flag.NewFlagSet("item add", flag.ExitOnError)
		board := fs.String("board", "", "board ID")
		column := fs.String("column", "", "column")
		text := fs.String("text", "", "text")
		author := fs.String("author", "", "author name")
		_ = fs.Parse(args[1:])
		var out map[string]any
		if err := api.call(ctx, http.MethodPost, "/api/boards/"+*board+"/items",
			map[string]string{"column": *column, "text": *text, "authorName": *author}, &out); err != nil {
			return err
		}
		return printJSON(out)
	case "list":
		fs := flag.NewFlagSet("item list", flag.ExitOnError)
		board := fs.String("board", "", "board ID")
		_ = fs.Parse(args[1:])
		var out map[string]any
		if err := api.call(ctx, http.MethodGet, "/api/boards/"+*board+"/items", nil, &out); err != nil {
			return err
		}
		return printJSON(out)
	default:
		usage()
		return nil
	}
}

func cmdVote(ctx context.Context, api *apiClient, args []string) error {
	fs := flag.NewFlagSet("vote", flag.ExitOnError)
	board := fs.String("board", "", "board ID")
	subject := fs.String("subject", "", "subject ID")
	value := fs.String("value", "", "vote value")
	_ = fs.Parse(args)
	var out map[string]any
	if err := api.call(ctx, http.MethodPost,
		"/api/boards/"+*board+"/subjects/"+*subject+"/votes",
		map[string]string{"value": *value}, &out); err != nil {
		return err
	}
	return printJSON(out)
}

func cmdReveal(ctx context.Context, api *apiClient, args []string) error {
	fs := flag.NewFlagSet("reveal", flag.ExitOnError)
	board := fs.String("board", "", "board ID")
	subject := fs.String("subject", "", "subject ID")
	_ = fs.Parse(args)
	return api.call(ctx, http.MethodPost,
		"/api/boards/"+*board+"/subjects/"+*subject+"/reveal", nil, nil)
}

func cmdStats(ctx context.Context, api *apiClient, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	board := fs.String("board", "", "board ID")
	subject := fs.String("subject", "", "subject ID")
	tolerance := fs.String("tolerance", "", "consensus tolerance")
	_ = fs.Parse(args)
	path := "/api/boards/" + *board + "/subjects/" + *subject + "/stats"
	if *tolerance != "" {
		path += "?tolerance=" + *tolerance
	}
	var out map[string]any
	if err := api.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return err
	}
	return printJSON(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
