package anthropic

import (
	"context"

	"github.com/rotisserie/eris"
)

// BuildCachedSystemBlocks wraps a system prompt in a single block carrying a
// 1-hour cache breakpoint. Batch submissions reuse the same system prompt for
// every document, so one warm cache entry serves the whole batch.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: "1h"},
		},
	}
}

// PrimerRequest fires one sequential message to warm the prompt cache before
// a batch is submitted. The response itself is usable but callers may discard
// everything except its token usage.
func PrimerRequest(ctx context.Context, client Client, req MessageRequest) (*MessageResponse, error) {
	resp, err := client.CreateMessage(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: primer request")
	}
	return resp, nil
}
