package ai

import (
	"context"
	"fmt"
	"strings"

	gUtil "github.com/caselens/backend/internal/util"
)

// IndexedQuote is one evidence text submitted for extraction together with
// its job-wide index, so graph evidence references stay stable across
// batches.
type IndexedQuote struct {
	Index int
	Text  string
}

// ExtractedEntity is one entity the oracle found in a quote.
type ExtractedEntity struct {
	Name string `json:"name" jsonschema_description:"The entity name exactly as it appears in the quote."`
	Type string `json:"type" jsonschema_description:"Entity type such as person, organization, award, publication, event, location, role, or other."`
}

// ExtractedRelation is one directed relation between two entities of the
// same quote.
type ExtractedRelation struct {
	From string `json:"from" jsonschema_description:"Name of the source entity."`
	To   string `json:"to" jsonschema_description:"Name of the target entity."`
	Type string `json:"type" jsonschema_description:"Short snake_case relation type, e.g. received_award."`
}

// QuoteExtraction is the oracle's extraction result for one quote.
type QuoteExtraction struct {
	QuoteIdx  int                 `json:"quote_idx" jsonschema_description:"The index of the quote from the listing."`
	Entities  []ExtractedEntity   `json:"entities" jsonschema_description:"All named entities in the quote."`
	Relations []ExtractedRelation `json:"relations" jsonschema_description:"Relations whose both endpoints appear in this quote's entity list."`
}

// ExtractionResponse is the oracle's answer to one extraction batch.
type ExtractionResponse struct {
	Items []QuoteExtraction `json:"items" jsonschema_description:"One extraction result per submitted quote index."`
}

// BuildExtractionPrompt renders one batch of indexed quotes into the
// extraction prompt.
func BuildExtractionPrompt(quotes []IndexedQuote) string {
	var data strings.Builder
	data.WriteString("Quotes:\n")
	for _, q := range quotes {
		fmt.Fprintf(&data, "Quote %d: %q\n", q.Index, TruncateText(q.Text, quotePreviewLength))
	}
	return fmt.Sprintf(ExtractionPrompt, data.String())
}

// CallExtractionAI asks the oracle to extract entities and relations from
// a batch of quotes. Results whose index does not match a submitted quote
// are dropped at this boundary.
func CallExtractionAI(
	ctx context.Context,
	quotes []IndexedQuote,
	oracle OracleClient,
	maxRetries int,
) (*ExtractionResponse, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if oracle == nil {
		return nil, fmt.Errorf("oracle client is nil")
	}
	if len(quotes) == 0 {
		return &ExtractionResponse{Items: []QuoteExtraction{}}, nil
	}

	submitted := make(map[int]struct{}, len(quotes))
	for _, q := range quotes {
		submitted[q.Index] = struct{}{}
	}

	prompt := BuildExtractionPrompt(quotes)

	var res ExtractionResponse
	err := gUtil.RetryErrWithContext(ctx, maxRetries, func(ctx context.Context) error {
		res = ExtractionResponse{}
		return oracle.GenerateCompletionWithFormat(
			ctx, "extract_relationships", "Extract entities and relations from evidence quotes.", prompt, &res,
			WithModel(oracle.ExtractionModel()),
		)
	})
	if err != nil {
		return nil, err
	}

	valid := make([]QuoteExtraction, 0, len(res.Items))
	for _, item := range res.Items {
		if _, ok := submitted[item.QuoteIdx]; !ok {
			continue
		}
		valid = append(valid, item)
	}
	res.Items = valid

	return &res, nil
}
