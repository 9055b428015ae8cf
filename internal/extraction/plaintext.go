package extraction

import (
	"context"
	"fmt"
	"net/http"
)

// PlainText is the trivial passthrough strategy for files whose declared
// type is already textual.
type PlainText struct {
	httpClient *http.Client
}

func NewPlainText() *PlainText {
	return &PlainText{httpClient: defaultHTTPClient()}
}

func (p *PlainText) Name() string { return "plain-text" }

func (p *PlainText) Extract(ctx context.Context, src Source) (any, error) {
	if !src.IsPlainText() {
		return nil, fmt.Errorf("plain-text only handles textual types, got %q", src.MIMEType)
	}
	data, err := fetchBytes(ctx, p.httpClient, src.URL)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
