package audience_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/audiencer/audiencer/internal/audience"
	"github.com/audiencer/audiencer/internal/instrumentation"
)

// getStringArg extracts a string argument, returning "" when absent or of
// the wrong type.
func getStringArg(args map[string]interface{}, key string) string {
	value, _ := args[key].(string)
	return value
}

// getPageArg extracts the optional page number argument.
func getPageArg(args map[string]interface{}) int {
	if page, ok := args["page"].(float64); ok && page > 0 {
		return int(page)
	}
	return 0
}

// getFieldsArg extracts the optional custom fields object.
func getFieldsArg(args map[string]interface{}) map[string]string {
	raw, ok := args["fields"].(map[string]interface{})
	if !ok {
		return nil
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	return fields
}

func jsonResult(v any) *mcp.CallToolResult {
	result, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(result))
}

// RegisterAudienceTools registers all audience-related tools with the MCP
// server. Write tools are skipped in read-only mode. Handlers record
// invocation metrics when a recorder is provided.
func RegisterAudienceTools(s *mcpserver.MCPServer, client *audience.Client, readOnly bool, metrics *instrumentation.Metrics) error {
	if client == nil {
		return fmt.Errorf("audience client is required")
	}

	ts := toolServer{s: s, metrics: metrics}
	registerSubscriberTools(ts, client, readOnly)
	registerSegmentTools(ts, client, readOnly)
	return nil
}

func registerSubscriberTools(s toolServer, client *audience.Client, readOnly bool) {
	listTool := mcp.NewTool("audience_list_subscribers",
		mcp.WithDescription("List subscribers in the audience (paginated)"),
		mcp.WithNumber("page",
			mcp.Description("Page number, starting at 1 (default: first page)"),
		),
	)
	s.AddTool(listTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		list, err := client.ListSubscribers(ctx, getPageArg(args))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list subscribers: %v", err)), nil
		}
		return jsonResult(list), nil
	})

	getTool := mcp.NewTool("audience_get_subscriber",
		mcp.WithDescription("Get details of a specific subscriber"),
		mcp.WithString("subscriberId",
			mcp.Required(),
			mcp.Description("The ID of the subscriber to retrieve"),
		),
	)
	s.AddTool(getTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		subscriberID := getStringArg(args, "subscriberId")
		if subscriberID == "" {
			return mcp.NewToolResultError("subscriberId is required"), nil
		}

		sub, err := client.GetSubscriber(ctx, subscriberID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get subscriber: %v", err)), nil
		}
		return jsonResult(sub), nil
	})

	if readOnly {
		return
	}

	createTool := mcp.NewTool("audience_create_subscriber",
		mcp.WithDescription("Add a new subscriber to the audience"),
		mcp.WithString("email",
			mcp.Required(),
			mcp.Description("The subscriber's email address"),
		),
		mcp.WithString("name",
			mcp.Description("The subscriber's display name"),
		),
		mcp.WithObject("fields",
			mcp.Description("Custom fields as string key-value pairs"),
		),
	)
	s.AddTool(createTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		email := getStringArg(args, "email")
		if email == "" {
			return mcp.NewToolResultError("email is required"), nil
		}

		sub, err := client.CreateSubscriber(ctx, &audience.CreateSubscriberRequest{
			Email:  email,
			Name:   getStringArg(args, "name"),
			Fields: getFieldsArg(args),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to create subscriber: %v", err)), nil
		}
		return jsonResult(sub), nil
	})

	updateTool := mcp.NewTool("audience_update_subscriber",
		mcp.WithDescription("Update a subscriber's name, status, or custom fields"),
		mcp.WithString("subscriberId",
			mcp.Required(),
			mcp.Description("The ID of the subscriber to update"),
		),
		mcp.WithString("name",
			mcp.Description("New display name"),
		),
		mcp.WithString("status",
			mcp.Description("New status: active, unsubscribed, or bounced"),
		),
		mcp.WithObject("fields",
			mcp.Description("Custom fields to set (string key-value pairs)"),
		),
	)
	s.AddTool(updateTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		subscriberID := getStringArg(args, "subscriberId")
		if subscriberID == "" {
			return mcp.NewToolResultError("subscriberId is required"), nil
		}

		sub, err := client.UpdateSubscriber(ctx, subscriberID, &audience.UpdateSubscriberRequest{
			Name:   getStringArg(args, "name"),
			Status: getStringArg(args, "status"),
			Fields: getFieldsArg(args),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to update subscriber: %v", err)), nil
		}
		return jsonResult(sub), nil
	})

	deleteTool := mcp.NewTool("audience_delete_subscriber",
		mcp.WithDescription("Remove a subscriber from the audience"),
		mcp.WithString("subscriberId",
			mcp.Required(),
			mcp.Description("The ID of the subscriber to delete"),
		),
	)
	s.AddTool(deleteTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		subscriberID := getStringArg(args, "subscriberId")
		if subscriberID == "" {
			return mcp.NewToolResultError("subscriberId is required"), nil
		}

		if err := client.DeleteSubscriber(ctx, subscriberID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to delete subscriber: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Subscriber %s deleted", subscriberID)), nil
	})
}

func registerSegmentTools(s toolServer, client *audience.Client, readOnly bool) {
	listTool := mcp.NewTool("audience_list_segments",
		mcp.WithDescription("List all segments"),
	)
	s.AddTool(listTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := client.ListSegments(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list segments: %v", err)), nil
		}
		return jsonResult(list), nil
	})

	getTool := mcp.NewTool("audience_get_segment",
		mcp.WithDescription("Get details of a specific segment"),
		mcp.WithString("segmentId",
			mcp.Required(),
			mcp.Description("The ID of the segment to retrieve"),
		),
	)
	s.AddTool(getTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		segmentID := getStringArg(args, "segmentId")
		if segmentID == "" {
			return mcp.NewToolResultError("segmentId is required"), nil
		}

		seg, err := client.GetSegment(ctx, segmentID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get segment: %v", err)), nil
		}
		return jsonResult(seg), nil
	})

	membersTool := mcp.NewTool("audience_list_segment_members",
		mcp.WithDescription("List subscribers in a segment (paginated)"),
		mcp.WithString("segmentId",
			mcp.Required(),
			mcp.Description("The ID of the segment"),
		),
		mcp.WithNumber("page",
			mcp.Description("Page number, starting at 1 (default: first page)"),
		),
	)
	s.AddTool(membersTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		segmentID := getStringArg(args, "segmentId")
		if segmentID == "" {
			return mcp.NewToolResultError("segmentId is required"), nil
		}

		list, err := client.ListSegmentMembers(ctx, segmentID, getPageArg(args))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list segment members: %v", err)), nil
		}
		return jsonResult(list), nil
	})

	if readOnly {
		return
	}

	createTool := mcp.NewTool("audience_create_segment",
		mcp.WithDescription("Create a new segment"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("The segment name"),
		),
		mcp.WithString("description",
			mcp.Description("Optional segment description"),
		),
	)
	s.AddTool(createTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		name := getStringArg(args, "name")
		if name == "" {
			return mcp.NewToolResultError("name is required"), nil
		}

		seg, err := client.CreateSegment(ctx, &audience.CreateSegmentRequest{
			Name:        name,
			Description: getStringArg(args, "description"),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to create segment: %v", err)), nil
		}
		return jsonResult(seg), nil
	})

	deleteTool := mcp.NewTool("audience_delete_segment",
		mcp.WithDescription("Delete a segment (its subscribers are kept)"),
		mcp.WithString("segmentId",
			mcp.Required(),
			mcp.Description("The ID of the segment to delete"),
		),
	)
	s.AddTool(deleteTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		segmentID := getStringArg(args, "segmentId")
		if segmentID == "" {
			return mcp.NewToolResultError("segmentId is required"), nil
		}

		if err := client.DeleteSegment(ctx, segmentID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to delete segment: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Segment %s deleted", segmentID)), nil
	})

	addTool := mcp.NewTool("audience_add_to_segment",
		mcp.WithDescription("Add a subscriber to a segment"),
		mcp.WithString("segmentId",
			mcp.Required(),
			mcp.Description("The ID of the segment"),
		),
		mcp.WithString("subscriberId",
			mcp.Required(),
			mcp.Description("The ID of the subscriber to add"),
		),
	)
	s.AddTool(addTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		segmentID := getStringArg(args, "segmentId")
		subscriberID := getStringArg(args, "subscriberId")
		if segmentID == "" || subscriberID == "" {
			return mcp.NewToolResultError("segmentId and subscriberId are required"), nil
		}

		if err := client.AddToSegment(ctx, segmentID, subscriberID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to add subscriber to segment: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Subscriber %s added to segment %s", subscriberID, segmentID)), nil
	})

	removeTool := mcp.NewTool("audience_remove_from_segment",
		mcp.WithDescription("Remove a subscriber from a segment"),
		mcp.WithString("segmentId",
			mcp.Required(),
			mcp.Description("The ID of the segment"),
		),
		mcp.WithString("subscriberId",
			mcp.Required(),
			mcp.Description("The ID of the subscriber to remove"),
		),
	)
	s.AddTool(removeTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		segmentID := getStringArg(args, "segmentId")
		subscriberID := getStringArg(args, "subscriberId")
		if segmentID == "" || subscriberID == "" {
			return mcp.NewToolResultError("segmentId and subscriberId are required"), nil
		}

		if err := client.RemoveFromSegment(ctx, segmentID, subscriberID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to remove subscriber from segment: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Subscriber %s removed from segment %s", subscriberID, segmentID)), nil
	})
}
