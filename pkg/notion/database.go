package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll fetches all pages from a Notion database, handling pagination.
// Rate limiting is enforced by the Client. Uses prefetch: page N+1 is
// requested in a goroutine while page N is being consumed, which roughly
// halves effective latency for multi-page results.
func QueryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page

	req := &notionapi.DatabaseQueryRequest{}
	if filter != nil {
		req.Filter = filter.Filter
		req.Sorts = filter.Sorts
		req.PageSize = filter.PageSize
	}

	type prefetchResult struct {
		resp *notionapi.DatabaseQueryResponse
		err  error
	}
	var prefetchCh <-chan prefetchResult

	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "notion: query all cancelled")
		}

		var resp *notionapi.DatabaseQueryResponse
		var err error

		if prefetchCh != nil {
			result := <-prefetchCh
			resp, err = result.resp, result.err
		} else {
			resp, err = c.QueryDatabase(ctx, dbID, req)
		}

		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}

		all = append(all, resp.Results...)

		if !resp.HasMore {
			break
		}

		nextReq := &notionapi.DatabaseQueryRequest{
			StartCursor: resp.NextCursor,
		}
		if filter != nil {
			nextReq.Filter = filter.Filter
			nextReq.Sorts = filter.Sorts
			nextReq.PageSize = filter.PageSize
		}

		ch := make(chan prefetchResult, 1)
		prefetchCh = ch
		go func() {
			r, e := c.QueryDatabase(ctx, dbID, nextReq)
			ch <- prefetchResult{resp: r, err: e}
		}()
	}

	return all, nil
}

// QueryByReference fetches the pages whose rich_text reference property
// equals ref. With one page per delivery point this returns zero or one
// page; duplicates mean the database was edited by hand.
func QueryByReference(ctx context.Context, c Client, dbID, property, ref string) ([]notionapi.Page, error) {
	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: property,
			RichText: &notionapi.TextFilterCondition{
				Equals: ref,
			},
		},
	}
	pages, err := QueryAll(ctx, c, dbID, filter)
	if err != nil {
		return nil, eris.Wrapf(err, "notion: query by reference %s", ref)
	}
	return pages, nil
}

// IndexByProperty maps the plain-text value of the given property to the
// page ID for every page in the database. One paginated scan up front is
// far cheaper than a per-record query at 3 req/s; pages with an empty
// property value are skipped, and the first page wins on duplicates.
func IndexByProperty(ctx context.Context, c Client, dbID, property string) (map[string]string, error) {
	pages, err := QueryAll(ctx, c, dbID, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "notion: index database %s", dbID)
	}

	index := make(map[string]string, len(pages))
	for _, page := range pages {
		val := PlainText(page.Properties[property])
		if val == "" {
			continue
		}
		if _, exists := index[val]; exists {
			continue
		}
		index[val] = string(page.ID)
	}
	return index, nil
}
