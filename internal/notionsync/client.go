package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/finance-ingest/internal/retry"
)

// NotionClient implements NotionService with the Notion SDK. Every call is
// retried on transient network failures.
type NotionClient struct {
	client *notionapi.Client
	policy retry.Policy
}

// NewNotionClient creates a new NotionClient with the provided API token.
func NewNotionClient(token string, policy retry.Policy) *NotionClient {
	return &NotionClient{
		client: notionapi.NewClient(notionapi.Token(token)),
		policy: policy,
	}
}

// CreatePage creates a new page in a Notion database with the given properties.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}

	var page *notionapi.Page
	err := retry.Do(ctx, "notion create page", n.policy, func(ctx context.Context) error {
		var err error
		page, err = n.client.Page.Create(ctx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}
	return page, nil
}

// UpdatePage updates an existing Notion page with the given properties.
func (n *NotionClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageUpdateRequest{
		Properties: properties,
	}

	var page *notionapi.Page
	err := retry.Do(ctx, "notion update page", n.policy, func(ctx context.Context) error {
		var err error
		page, err = n.client.Page.Update(ctx, notionapi.PageID(pageID), req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("UpdatePage: %w", err)
	}
	return page, nil
}

// QueryDatabase queries a Notion database with the given filter.
func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	var resp *notionapi.DatabaseQueryResponse
	err := retry.Do(ctx, "notion query database", n.policy, func(ctx context.Context) error {
		var err error
		resp, err = n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: %w", err)
	}
	return resp, nil
}

// DeletePage archives a Notion page by setting its archived property to true.
func (n *NotionClient) DeletePage(ctx context.Context, pageID string) error {
	req := &notionapi.PageUpdateRequest{
		Archived: true,
	}

	err := retry.Do(ctx, "notion archive page", n.policy, func(ctx context.Context) error {
		_, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), req)
		return err
	})
	if err != nil {
		return fmt.Errorf("DeletePage: %w", err)
	}
	return nil
}

var _ NotionService = (*NotionClient)(nil)
