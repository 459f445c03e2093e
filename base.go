package keynotify

import (
	"context"
	"net/http"
)

const pathBase = "/base"

// BaseItem is one entry of the base data list.
type BaseItem struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// BaseList is the /base response. The endpoint answers without an envelope.
type BaseList struct {
	Items []BaseItem `json:"items"`
	Total int        `json:"total"`
}

// FetchBaseList loads the base data list. params become query parameters.
func (c *Client) FetchBaseList(ctx context.Context, params map[string]any) (*BaseList, error) {
	var out BaseList
	if err := c.Send(ctx, http.MethodGet, pathBase, Request{Query: params}, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []BaseItem{}
	}
	return &out, nil
}
