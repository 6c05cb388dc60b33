package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/tool"
	"github.com/m-mizutani/hippo/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	serpAPIBaseURL = "https://serpapi.com"
	maxOrganic     = 5
	noResult       = "No good search result found"
)

type serpResponse struct {
	Error     string `json:"error"`
	AnswerBox *struct {
		Answer                  string   `json:"answer"`
		Snippet                 string   `json:"snippet"`
		SnippetHighlightedWords []string `json:"snippet_highlighted_words"`
	} `json:"answer_box"`
	KnowledgeGraph *struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"knowledge_graph"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

type search struct {
	apiKey     string
	baseURL    string
	rpm        int64
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Option func(*search)

// WithBaseURL replaces the SerpAPI endpoint
func WithBaseURL(u string) Option {
	return func(x *search) { x.baseURL = strings.TrimRight(u, "/") }
}

// WithAPIKey sets the API key without going through the command line
func WithAPIKey(key string) Option {
	return func(x *search) { x.apiKey = key }
}

// New creates a web search tool backed by SerpAPI
func New(opts ...Option) *search {
	x := &search{
		baseURL: serpAPIBaseURL,
		rpm:     30,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

func (x *search) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "serpapi-api-key",
			Sources:     cli.EnvVars("SERPAPI_API_KEY", "HIPPO_SERPAPI_API_KEY"),
			Usage:       "SerpAPI key for the web search tool",
			Destination: &x.apiKey,
		},
		&cli.IntFlag{
			Name:        "serpapi-rpm",
			Sources:     cli.EnvVars("HIPPO_SERPAPI_RPM"),
			Usage:       "Maximum search requests per minute (0 for no limit)",
			Value:       30,
			Destination: &x.rpm,
		},
	}
}

// Init enables the tool only when an API key is given
func (x *search) Init(ctx context.Context, client *tool.Client) (bool, error) {
	if x.apiKey == "" {
		return false, nil
	}

	x.httpClient = &http.Client{Timeout: 30 * time.Second}
	if client != nil && client.HTTPClient != nil {
		x.httpClient = client.HTTPClient
	}

	limit := rate.Inf
	if x.rpm > 0 {
		limit = rate.Limit(float64(x.rpm) / 60.0)
	}
	x.limiter = rate.NewLimiter(limit, 1)

	return true, nil
}

func (x *search) Prompt(ctx context.Context) string {
	return `Use the web_search tool to find current facts on the web. Its results include links that the web_browser tool can read for more detail.`
}

func (x *search) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "web_search",
				Description: "Search the web with Google. Returns a direct answer when one is available and the top results with links.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"query": {
							Type:        genai.TypeString,
							Description: "Search query",
						},
					},
					Required: []string{"query"},
				},
			},
		},
	}
}

func (x *search) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	query, _ := fc.Args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, goerr.New("query parameter is required")
	}

	result, err := x.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	return &genai.FunctionResponse{
		Name:     fc.Name,
		Response: map[string]any{"result": result},
	}, nil
}

// Search queries SerpAPI and renders the response as plain text
func (x *search) Search(ctx context.Context, query string) (string, error) {
	if err := x.limiter.Wait(ctx); err != nil {
		return "", goerr.Wrap(err, "search rate limit wait aborted")
	}

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", x.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create request")
	}

	logging.From(ctx).Debug("web search", "query", query)
	resp, err := x.httpClient.Do(req)
	if err != nil {
		// the request URL carries the API key
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return "", goerr.Wrap(err, "failed to send request", goerr.V("query", query))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", goerr.New("SerpAPI returned error",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)))
	}

	var result serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", goerr.Wrap(err, "failed to decode response")
	}
	if result.Error != "" {
		return "", goerr.New("SerpAPI returned error", goerr.V("error", result.Error))
	}

	return render(&result), nil
}

func render(r *serpResponse) string {
	var b strings.Builder

	if answer := directAnswer(r); answer != "" {
		fmt.Fprintf(&b, "Answer: %s\n", answer)
	}

	for i, o := range r.OrganicResults {
		if i >= maxOrganic {
			break
		}
		if i == 0 {
			b.WriteString("Results:\n")
		}
		fmt.Fprintf(&b, "- [%s](%s): %s\n", o.Title, o.Link, o.Snippet)
	}

	if b.Len() == 0 {
		return noResult
	}
	return strings.TrimSpace(b.String())
}

func directAnswer(r *serpResponse) string {
	if ab := r.AnswerBox; ab != nil {
		switch {
		case ab.Answer != "":
			return ab.Answer
		case ab.Snippet != "":
			return ab.Snippet
		case len(ab.SnippetHighlightedWords) > 0:
			return ab.SnippetHighlightedWords[0]
		}
	}
	if kg := r.KnowledgeGraph; kg != nil && kg.Description != "" {
		return kg.Description
	}
	return ""
}
