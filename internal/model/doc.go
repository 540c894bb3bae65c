// Package model defines the owner-scoped records tracked by goalcoach.
//
// # Overview
//
// Three record kinds are stored locally and mirrored to the cloud:
//
//   - Goal: a titled goal with a category, progress (0-100) and an optional
//     deadline, completion time and cover image.
//   - JournalEntry: free-text reflection, optionally linked to a goal and
//     rated for confidence (0-10).
//   - Place: a saved location with optional city and state.
//
// Every record carries the id of the user that owns it. Records are only
// visible through a repository while their owner is the active identity.
//
// # Kinds
//
// Kind describes a record type to the generic storage, mirror and repository
// layers: its collection name and how to read its id and owner.
//
//	kind := model.GoalKind
//	fmt.Println(kind.Name, kind.ID(goal), kind.Owner(goal))
//
// # Design Principles
//
//   - Flat records, last-write-wins by id
//   - Optional values are pointers (times, confidence) or empty strings
//   - Timestamps are UTC with millisecond precision so they survive the
//     local store round trip unchanged
package model
