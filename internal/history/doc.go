// Package history provides the ordered edit log behind a document.
//
// The log holds every edit performed, in causal order, and a cursor that
// separates done edits from undone ones:
//
//	[ A  B  C | D  E ]
//	          ^ DoneCount() == 3
//
// Performing a new edit while the cursor is not at the end discards the
// undone suffix. Undo never passes the sticky floor (the position after
// the last sticky edit) unless forced.
//
// # Selection coalescing
//
// A pure selection change is folded into the entry before the cursor
// instead of being appended, so selection changes never show up as their
// own history entries:
//
//	h.Apply(ctx, showPoint, true)  // [ShowPoint]
//	h.Apply(ctx, selectAll, true)  // [Compound{ShowPoint, SelectAll}]
//
// # Blocks and breakpoints
//
// BeginBlock and EndBlock entries bracket edits that undo and redo
// traverse as a unit. Breakpoints are pinned positions used by
// UndoToBreakpoint and RedoToBreakpoint.
//
// # Replay
//
// Load fills the log with deferred entries that keep their serialized
// element. An entry is decoded through the factory the first time it is
// redone; entries never redone are written back exactly as read.
// Synchronize splices in snapshot captures, replays up to the saved
// cursor and restores the sticky floor.
package history
