package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	serperResultCount = 5
	maxSearchSnippets = 3
	maxNewsArticles   = 3
)

var errSerperNotConfigured = errors.New("serper api key not configured")

type webSearchParameters struct {
	Query string `json:"query" jsonschema_description:"The search query"`
}

type newsParameters struct {
	Topic string `json:"topic" jsonschema_description:"The news topic to search for (e.g., \"technology\", \"sports\", \"politics\", \"Tesla\")"`
}

type searchResults struct {
	AnswerBox *struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answerBox"`
	KnowledgeGraph *struct {
		Description string `json:"description"`
	} `json:"knowledgeGraph"`
	Organic []struct {
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

type newsResults struct {
	News []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Source  string `json:"source"`
		Date    string `json:"date"`
	} `json:"news"`
}

func (t *Toolbox) webSearch(ctx context.Context, p webSearchParameters) (string, error) {
	ctx, span := tracer.Start(ctx, "web search")
	defer span.End()
	span.SetAttributes(attribute.String("search.query", p.Query))

	var results searchResults
	if err := t.serper(ctx, "/search", p.Query, &results); err != nil {
		if errors.Is(err, errSerperNotConfigured) {
			return "Search is not configured. Please add SERPER_API_KEY.", nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("web search failed", "error", err)
		return "Sorry, the search failed. Please try again.", nil
	}

	var snippets []string
	if results.AnswerBox != nil {
		if results.AnswerBox.Answer != "" {
			snippets = append(snippets, results.AnswerBox.Answer)
		} else if results.AnswerBox.Snippet != "" {
			snippets = append(snippets, results.AnswerBox.Snippet)
		}
	}
	if results.KnowledgeGraph != nil && results.KnowledgeGraph.Description != "" {
		snippets = append(snippets, results.KnowledgeGraph.Description)
	}
	for i, result := range results.Organic {
		if i == maxSearchSnippets {
			break
		}
		if result.Snippet != "" {
			snippets = append(snippets, result.Snippet)
		}
	}

	if len(snippets) == 0 {
		return fmt.Sprintf("I searched for %q but couldn't find relevant results.", p.Query), nil
	}
	if len(snippets) > maxSearchSnippets {
		snippets = snippets[:maxSearchSnippets]
	}
	return strings.Join(snippets, " | "), nil
}

func (t *Toolbox) news(ctx context.Context, p newsParameters) (string, error) {
	ctx, span := tracer.Start(ctx, "news search")
	defer span.End()
	span.SetAttributes(attribute.String("news.topic", p.Topic))

	var results newsResults
	if err := t.serper(ctx, "/news", p.Topic, &results); err != nil {
		if errors.Is(err, errSerperNotConfigured) {
			return "News search is not configured. Please add SERPER_API_KEY.", nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("news search failed", "error", err)
		return fmt.Sprintf("Sorry, couldn't fetch news for %q. Please try again.", p.Topic), nil
	}
	if len(results.News) == 0 {
		return fmt.Sprintf("No recent news found for %q.", p.Topic), nil
	}

	var articles []string
	for i, article := range results.News {
		if i == maxNewsArticles {
			break
		}
		var b strings.Builder
		b.WriteString(article.Title)
		if article.Snippet != "" {
			b.WriteString(": " + article.Snippet)
		}
		source := article.Source
		if source == "" {
			source = "Unknown"
		}
		if article.Date != "" {
			source += ", " + article.Date
		}
		fmt.Fprintf(&b, " (%s)", source)
		articles = append(articles, b.String())
	}
	return fmt.Sprintf("Latest news on %s: %s", p.Topic, strings.Join(articles, " || ")), nil
}

func (t *Toolbox) serper(ctx context.Context, path, query string, out any) error {
	if t.serperAPIKey == "" {
		return errSerperNotConfigured
	}

	body, err := json.Marshal(struct {
		Query string `json:"q"`
		Num   int    `json:"num"`
	}{Query: query, Num: serperResultCount})
	if err != nil {
		return fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(t.serperURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", t.serperAPIKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error unmarshalling JSON: %w", err)
	}
	return nil
}
