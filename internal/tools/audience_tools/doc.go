// Package audience_tools provides MCP tools for managing the email
// marketing audience.
//
// This package implements MCP (Model Context Protocol) tools that wrap the
// audience API client, exposing subscriber and segment management to AI
// assistants.
//
// # Available Tools
//
// Subscriber Management:
//   - audience_list_subscribers: List subscribers (paginated)
//   - audience_get_subscriber: Get details of a specific subscriber
//   - audience_create_subscriber: Add a new subscriber
//   - audience_update_subscriber: Update a subscriber's name, status, or fields
//   - audience_delete_subscriber: Remove a subscriber
//
// Segment Management:
//   - audience_list_segments: List all segments
//   - audience_get_segment: Get details of a specific segment
//   - audience_create_segment: Create a new segment
//   - audience_delete_segment: Delete a segment
//   - audience_list_segment_members: List subscribers in a segment
//   - audience_add_to_segment: Add a subscriber to a segment
//   - audience_remove_from_segment: Remove a subscriber from a segment
//
// Write tools are omitted when the server runs in read-only mode.
//
// # Authentication
//
// The MCP endpoint sits behind the bearer-token middleware; by the time a
// tool handler runs, the request already carries an authenticated
// principal.
package audience_tools
