package mcpserver

// OrganizeContract describes for LLM consumers how raido routes, merges,
// and reverts content.
const OrganizeContract = `# Raido Organization Contract

How one organize pass behaves, and what its results mean.

## Routing

- Content is classified against the current file tree (see ` + "`" + `get_file_tree` + "`" + `).
- Destinations are always files, never folders. Paths are slash-delimited
  folder-title chains ending in a file title, e.g. ` + "`" + `/Projects/Roadmap` + "`" + `.
- Content relevant to several destinations may be duplicated into each.
- Missing folders and files along a destination path are created on demand.
- When classification fails entirely, content lands in the configured
  default destination (usually ` + "`" + `/Inbox` + "`" + `) instead of being lost.

## Merging

- Only the destination's *today section* is rewritten: the contiguous run of
  blocks last touched on the current calendar date. Everything below that
  boundary is carried over untouched.
- If merging fails, the new content is appended after the existing content.
  Content is never dropped.

## History and revert

- Every mutation records a before/after snapshot, one live item per file
  (the latest mutation wins). The log is bounded in count and age.
- ` + "`" + `revert_change` + "`" + ` on a *created* item deletes the file; on an *updated*
  item it restores the prior content and records the revert itself, so a
  revert can be reverted.

## Result shape

` + "```" + `json
{
  "created": [{"id": "...", "title": "Roadmap", "path": "/Projects/Roadmap"}],
  "updated": [{"id": "...", "title": "Inbox", "path": "/Inbox"}]
}
` + "```" + `

Failed destinations are excluded from the report; the pass is a partial
success, not all-or-nothing.
`
