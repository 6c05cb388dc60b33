package browser

import (
	"bytes"
	"context"
	_ "embed"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/inbucket/html2text"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/adapter"
	"github.com/m-mizutani/hippo/pkg/tool"
	"github.com/m-mizutani/hippo/pkg/utils/logging"
	"github.com/m-mizutani/hippo/pkg/utils/textsplit"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pkoukk/tiktoken-go"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

//go:embed prompt/browse.md
var browsePromptRaw string

var browsePromptTmpl = template.Must(template.New("browse").Parse(browsePromptRaw))

const (
	maxResponseSize = 1 << 20
	userAgent       = "Mozilla/5.0 (compatible; hippo/0.1; +https://github.com/m-mizutani/hippo)"
	chunkSize       = 2000
	chunkOverlap    = 200
	chunkK          = 4
)

type browser struct {
	timeout   time.Duration
	maxTokens int64
	cacheTTL  time.Duration

	httpClient *http.Client
	llm        adapter.Completer
	ranker     tool.ChunkRanker
	splitter   *textsplit.Splitter
	policy     *bluemonday.Policy
	cache      *expirable.LRU[string, string]

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
}

type Option func(*browser)

// WithTimeout bounds one page fetch, on top of the timeout of the shared HTTP client
func WithTimeout(d time.Duration) Option {
	return func(x *browser) {
		x.timeout = d
	}
}

// New creates a web browser tool. It fetches a page, reduces it to text, and
// answers a question about it with the language model.
func New(opts ...Option) *browser {
	x := &browser{
		timeout:  15 * time.Second,
		cacheTTL: 10 * time.Minute,
		policy:   newPagePolicy(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

func newPagePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "div", "span", "section", "article", "main",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "dl", "dt", "dd",
		"table", "thead", "tbody", "tr", "th", "td",
		"pre", "code", "blockquote", "b", "strong", "i", "em")
	p.AllowAttrs("href").OnElements("a")
	p.RequireParseableURLs(true)
	p.AllowURLSchemes("http", "https")
	return p
}

func (x *browser) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:        "browser-timeout",
			Usage:       "Timeout of one page fetch by the web browser tool (0 for no limit)",
			Sources:     cli.EnvVars("HIPPO_BROWSER_TIMEOUT"),
			Value:       15 * time.Second,
			Destination: &x.timeout,
		},
		&cli.IntFlag{
			Name:        "browser-max-tokens",
			Usage:       "Token budget of page text sent to the model (0 for no limit)",
			Sources:     cli.EnvVars("HIPPO_BROWSER_MAX_TOKENS"),
			Value:       6000,
			Destination: &x.maxTokens,
		},
		&cli.DurationFlag{
			Name:        "browser-cache-ttl",
			Usage:       "How long fetched pages are cached",
			Sources:     cli.EnvVars("HIPPO_BROWSER_CACHE_TTL"),
			Value:       10 * time.Minute,
			Destination: &x.cacheTTL,
		},
	}
}

// Init requires a language model to read pages with
func (x *browser) Init(ctx context.Context, client *tool.Client) (bool, error) {
	if client == nil || client.LLM == nil {
		return false, nil
	}

	x.llm = client.LLM
	x.ranker = client.Ranker
	x.httpClient = client.HTTPClient
	if x.httpClient == nil {
		x.httpClient = &http.Client{}
	}

	splitter, err := textsplit.New(
		textsplit.WithChunkSize(chunkSize),
		textsplit.WithChunkOverlap(chunkOverlap),
	)
	if err != nil {
		return false, err
	}
	x.splitter = splitter
	x.cache = expirable.NewLRU[string, string](64, nil, x.cacheTTL)

	return true, nil
}

func (x *browser) Prompt(ctx context.Context) string {
	return `Use the web_browser tool to read a web page. Pass the page URL and, if you need something specific, what you are looking for on that page.`
}

func (x *browser) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "web_browser",
				Description: "Read a web page and return a summary, or the information asked for, taken from the page text.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"url": {
							Type:        genai.TypeString,
							Description: "Absolute http or https URL of the page",
						},
						"question": {
							Type:        genai.TypeString,
							Description: "What to find on the page. Empty for a summary.",
						},
					},
					Required: []string{"url"},
				},
			},
		},
	}
}

func (x *browser) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	rawURL, _ := fc.Args["url"].(string)
	question, _ := fc.Args["question"].(string)

	answer, err := x.Browse(ctx, rawURL, question)
	if err != nil {
		return nil, err
	}

	return &genai.FunctionResponse{
		Name:     fc.Name,
		Response: map[string]any{"result": answer},
	}, nil
}

// Browse reads the page and asks the model about its most relevant chunks
func (x *browser) Browse(ctx context.Context, rawURL, question string) (string, error) {
	text, err := x.fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}

	chunks := x.splitter.Split(text)
	if len(chunks) == 0 {
		return "", goerr.New("page has no text", goerr.V("url", rawURL))
	}

	question = strings.TrimSpace(question)
	var selected []string
	if question == "" || x.ranker == nil {
		selected = chunks[:min(chunkK, len(chunks))]
	} else {
		selected, err = x.ranker.TopK(ctx, question, chunks, chunkK)
		if err != nil {
			return "", goerr.Wrap(err, "failed to select page chunks", goerr.V("url", rawURL))
		}
	}

	selected, err = x.truncate(selected)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := browsePromptTmpl.Execute(&buf, map[string]any{
		"Chunks":   selected,
		"Question": question,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to render browse prompt")
	}

	answer, err := x.llm.Complete(ctx, &adapter.CompletionRequest{
		Prompt:      buf.String(),
		Temperature: 0,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to read page with model", goerr.V("url", rawURL))
	}
	return answer, nil
}

func (x *browser) fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", goerr.New("url must be an absolute http or https URL", goerr.V("url", rawURL))
	}
	key := u.String()

	if text, ok := x.cache.Get(key); ok {
		logging.From(ctx).Debug("browser cache hit", "url", key)
		return text, nil
	}

	if x.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create request", goerr.V("url", key))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to fetch page", goerr.V("url", key))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", goerr.New("page returned error status",
			goerr.V("url", key),
			goerr.V("status", resp.StatusCode),
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", goerr.Wrap(err, "failed to read page", goerr.V("url", key))
	}

	text := string(body)
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		sanitized := x.policy.SanitizeBytes(body)
		text, err = html2text.FromReader(bytes.NewReader(sanitized), html2text.Options{
			PrettyTables: true,
		})
		if err != nil {
			return "", goerr.Wrap(err, "failed to convert page to text", goerr.V("url", key))
		}
	}

	text = strings.TrimSpace(text)
	x.cache.Add(key, text)
	return text, nil
}

// truncate keeps the chunks within maxTokens cl100k tokens when a budget is set
func (x *browser) truncate(chunks []string) ([]string, error) {
	if x.maxTokens <= 0 {
		return chunks, nil
	}

	x.encOnce.Do(func() {
		x.enc, x.encErr = tiktoken.GetEncoding("cl100k_base")
	})
	if x.encErr != nil {
		return nil, goerr.Wrap(x.encErr, "failed to load tokenizer")
	}

	remaining := int(x.maxTokens)
	var kept []string
	for _, c := range chunks {
		tokens := x.enc.Encode(c, nil, nil)
		if len(tokens) <= remaining {
			kept = append(kept, c)
			remaining -= len(tokens)
			continue
		}
		if remaining > 0 {
			kept = append(kept, x.enc.Decode(tokens[:remaining]))
		}
		break
	}
	return kept, nil
}
