package capabilities

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // get_time must resolve zones on hosts without a zoneinfo database

	"github.com/fast-ish/mcp-server-template/schema"
	"github.com/fast-ish/mcp-server-template/server"
)

// timeLayout renders like "Monday, January 02, 2006 at 03:04:05 PM UTC".
const timeLayout = "Monday, January 02, 2006 at 03:04:05 PM MST"

// EchoArgs are the arguments of the echo tool.
type EchoArgs struct {
	Message string `json:"message" jsonschema:"required,description=Message to echo back"`
}

// GetTimeArgs are the arguments of the get_time tool.
type GetTimeArgs struct {
	Timezone string `json:"timezone" jsonschema:"description=Timezone (e.g. 'UTC' or 'America/New_York'),default=UTC"`
}

// FetchURLArgs are the arguments of the fetch_url tool.
type FetchURLArgs struct {
	URL string `json:"url" jsonschema:"required,description=URL to fetch"`
}

func registerTools(srv *server.Server, opts Options) error {
	if err := srv.Tool("echo").
		Description("Echo back a message (example tool)").
		Handler(server.TypedTool(Echo)); err != nil {
		return err
	}

	clock := time.Now
	if err := srv.Tool("get_time").
		Description("Get the current date and time").
		Handler(server.TypedTool(func(ctx context.Context, in GetTimeArgs) (*server.ToolResult, error) {
			return GetTime(clock(), in), nil
		})); err != nil {
		return err
	}

	if opts.EnableHTTP {
		f := NewFetcher(opts.HTTPClient, opts.FetchTimeout, opts.FetchMaxChars)
		if err := srv.Tool("fetch_url").
			Description("Fetch content from a URL").
			Handler(server.TypedTool(f.Fetch)); err != nil {
			return err
		}
	}
	return nil
}

// Echo returns the message prefixed with "Echo: ".
func Echo(_ context.Context, in EchoArgs) (*server.ToolResult, error) {
	return server.TextResult("Echo: " + in.Message), nil
}

// GetTime formats now in the requested zone. Unknown zones fall back to UTC.
func GetTime(now time.Time, in GetTimeArgs) *server.ToolResult {
	loc, err := time.LoadLocation(in.Timezone)
	if err != nil || in.Timezone == "" {
		loc = time.UTC
	}
	return server.TextResult(now.In(loc).Format(timeLayout))
}

// Fetcher implements the fetch_url tool.
type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxChars int
}

// NewFetcher returns a Fetcher. A nil client uses a default client.
func NewFetcher(client *http.Client, timeout time.Duration, maxChars int) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if maxChars <= 0 {
		maxChars = DefaultFetchMaxChars
	}
	return &Fetcher{client: client, timeout: timeout, maxChars: maxChars}
}

// Fetch retrieves in.URL and returns at most maxChars characters of the
// body. Network failures and timeouts are reported as tool output with
// IsError set, not as protocol errors.
func (f *Fetcher) Fetch(ctx context.Context, in FetchURLArgs) (*server.ToolResult, error) {
	u, err := url.Parse(in.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &schema.ValidationError{
			Path:    "url",
			Kind:    schema.KindType,
			Message: "must be an absolute http or https URL",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	text, err := f.get(ctx, u.String())
	if err != nil {
		return server.ErrorResult("Error fetching URL: " + stripCredentials(err.Error(), u)), nil
	}
	return server.TextResult(text), nil
}

func (f *Fetcher) get(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// A UTF-8 character is at most 4 bytes.
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(f.maxChars)*4))
	if err != nil {
		return "", err
	}
	return truncateRunes(string(body), f.maxChars), nil
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// stripCredentials removes any user:password from u as it appears in msg.
func stripCredentials(msg string, u *url.URL) string {
	if u.User == nil {
		return msg
	}
	clean := *u
	clean.User = nil
	msg = strings.ReplaceAll(msg, u.String(), clean.String())
	return strings.ReplaceAll(msg, u.Redacted(), clean.String())
}
