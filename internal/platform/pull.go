package platform

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pixel-backend/internal/types"
)

// Page is one slice of a paginated resource connection.
type Page struct {
	Nodes       []json.RawMessage
	EndCursor   string
	HasNextPage bool
}

type connectionData struct {
	Edges []struct {
		Node json.RawMessage `json:"node"`
	} `json:"edges"`
	PageInfo struct {
		HasNextPage bool   `json:"hasNextPage"`
		EndCursor   string `json:"endCursor"`
	} `json:"pageInfo"`
}

// FetchPage fetches one page of a resource connection starting after the
// given cursor (empty cursor starts from the beginning).
func (c *Client) FetchPage(ctx context.Context, resource types.ResourceType, first int, after string) (*Page, error) {
	query, ok := connectionQueries[resource]
	if !ok {
		return nil, fmt.Errorf("no query defined for resource %q", resource)
	}

	variables := map[string]interface{}{"first": first}
	if after != "" {
		variables["after"] = after
	}

	var data map[string]connectionData
	if err := c.execute(ctx, query, variables, &data); err != nil {
		return nil, err
	}

	conn, ok := data[string(resource)]
	if !ok {
		return nil, fmt.Errorf("platform response missing %q connection", resource)
	}

	page := &Page{
		Nodes:       make([]json.RawMessage, 0, len(conn.Edges)),
		EndCursor:   conn.PageInfo.EndCursor,
		HasNextPage: conn.PageInfo.HasNextPage,
	}
	for _, edge := range conn.Edges {
		page.Nodes = append(page.Nodes, edge.Node)
	}
	return page, nil
}

// FetchAll fetches every record of a resource type. Cursor mode walks the
// paginated connection; bulk mode delegates to the platform's bulk operation
// machinery. In both modes the upstream order of records is preserved.
func (c *Client) FetchAll(ctx context.Context, resource types.ResourceType, mode types.PullMode, batchSize int) ([]json.RawMessage, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	switch mode {
	case types.PullModeBulk:
		return c.fetchBulk(ctx, resource)
	default:
		return c.fetchPaged(ctx, resource, batchSize)
	}
}

func (c *Client) fetchPaged(ctx context.Context, resource types.ResourceType, batchSize int) ([]json.RawMessage, error) {
	var all []json.RawMessage
	cursor := ""

	for {
		page, err := c.FetchPage(ctx, resource, batchSize, cursor)
		if err != nil {
			return nil, err
		}
		if len(page.Nodes) == 0 {
			break
		}

		all = append(all, page.Nodes...)

		if !page.HasNextPage {
			break
		}
		cursor = page.EndCursor
	}

	return all, nil
}

type bulkOperation struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ErrorCode   string `json:"errorCode"`
	ObjectCount string `json:"objectCount"`
	URL         string `json:"url"`
}

func (c *Client) fetchBulk(ctx context.Context, resource types.ResourceType) ([]json.RawMessage, error) {
	query, ok := bulkQueries[resource]
	if !ok {
		return nil, fmt.Errorf("no bulk query defined for resource %q", resource)
	}

	var submitResp struct {
		BulkOperationRunQuery struct {
			BulkOperation bulkOperation `json:"bulkOperation"`
			UserErrors    []userError   `json:"userErrors"`
		} `json:"bulkOperationRunQuery"`
	}
	if err := c.execute(ctx, bulkRunMutation, map[string]interface{}{"query": query}, &submitResp); err != nil {
		return nil, err
	}
	if errs := submitResp.BulkOperationRunQuery.UserErrors; len(errs) > 0 {
		return nil, fmt.Errorf("bulk operation rejected: %s", errs[0].Message)
	}

	opID := submitResp.BulkOperationRunQuery.BulkOperation.ID
	if opID == "" {
		return nil, fmt.Errorf("platform did not return a bulk operation id")
	}

	op, err := c.waitForBulkOperation(ctx, opID)
	if err != nil {
		return nil, err
	}

	// An empty url means the query matched zero objects.
	if op.URL == "" {
		return nil, nil
	}

	body, err := c.download(ctx, op.URL)
	if err != nil {
		return nil, err
	}
	defer body.Close() // nolint:errcheck

	// Bulk results arrive as JSONL, one record per line, in query order.
	var nodes []json.RawMessage
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		node := make(json.RawMessage, len(line))
		copy(node, line)
		nodes = append(nodes, node)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bulk result: %w", err)
	}

	return nodes, nil
}

func (c *Client) waitForBulkOperation(ctx context.Context, opID string) (*bulkOperation, error) {
	ticker := time.NewTicker(c.bulkPollInterval)
	defer ticker.Stop()

	for {
		var statusResp struct {
			Node bulkOperation `json:"node"`
		}
		if err := c.execute(ctx, bulkStatusQuery, map[string]interface{}{"id": opID}, &statusResp); err != nil {
			return nil, err
		}

		switch statusResp.Node.Status {
		case "COMPLETED":
			return &statusResp.Node, nil
		case "FAILED", "CANCELED", "EXPIRED":
			return nil, fmt.Errorf("bulk operation %s: %s (%s)", opID, statusResp.Node.Status, statusResp.Node.ErrorCode)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
