// Package models defines the domain models shared by the stores and services.
//
// # Models
//
//   - User: a registered account, referenced by ID everywhere else
//   - Group, Membership, Member: named groups and the users × groups relation
//     carrying the approved and admin flags
//   - Post: a group post; only what message cascades need
//   - Conversation, ConversationSummary: direct-message threads with flat membership
//   - Message: a text or image message sent to exactly one conversation or post
//
// # Design Principles
//
//  1. Relationships are ID strings, never pointers between models.
//  2. Partial updates use explicit value objects (GroupUpdate, ConversationUpdate,
//     MessageUpdate) whose nil fields leave the column untouched.
//  3. Timestamps are Unix seconds, as stored.
package models
