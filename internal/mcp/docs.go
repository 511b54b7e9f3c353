package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `marginalia is a collaborative code-annotation workbench: Projects hold Files, Files carry line Annotations, Annotations carry Replies.

Core concepts:
- Snapshot: the whole document of one project (files, contents, annotations with replies, session blob). load_project returns one; save_project takes one.
- Save reconciles: rows in the snapshot are upserted, rows missing from it are deleted. Always save a snapshot derived from a recent load.
- Files whose content was never loaded are left untouched, never deleted.
- Fingerprint: get_project_state returns a digest of the shared content. Poll it to learn whether someone else changed the project.

Typical workflow:
1) list_projects, then load_project.
2) Edit the snapshot (add files, annotate lines, reply).
3) save_project with the whole snapshot. Check the report's failures; a partial save still succeeded. A changed name is applied only when you own the project; rename_project does the same directly.
4) Poll get_project_state; reload when the fingerprint moves and the writer is not you.

Sharing:
- create_invite_link (owner only) then share the path; join_project accepts the token, path or URL. Joining twice is harmless.
- delete_project gives every member a private copy before trashing. restore_project undoes it; purge_project and empty_trash are final.

Docs:
- marginalia://docs/index
- marginalia://docs/sync
- marginalia://docs/sharing
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "marginalia://docs/index",
		Name:        "docs_index",
		Title:       "marginalia docs index",
		Description: "Entry point: tools by task and where to read more.",
		Content: `# marginalia: Agent Docs Index

## Tools by task

- Browse: ` + "`list_projects`" + `, ` + "`list_trash`" + `
- Read: ` + "`load_project`" + `, ` + "`get_project_state`" + `
- Write: ` + "`create_project`" + `, ` + "`rename_project`" + `, ` + "`save_project`" + `
- Share: ` + "`create_invite_link`" + `, ` + "`join_project`" + `
- Remove: ` + "`delete_project`" + `, ` + "`restore_project`" + `, ` + "`purge_project`" + `, ` + "`empty_trash`" + `

## Read on demand

- ` + "`marginalia://docs/sync`" + ` covers saving, orphan deletion and change polling.
- ` + "`marginalia://docs/sharing`" + ` covers roles, invites and what members keep when a project is deleted.

## Errors

Tool errors carry a code: NOT_AUTHENTICATED, SESSION_EXPIRED, NOT_AUTHORIZED, INVITE_INVALID, PROJECT_NOT_FOUND, INVALID_INPUT.
SESSION_EXPIRED means sign in again; nothing was written.
`,
	},
	{
		URI:         "marginalia://docs/sync",
		Name:        "docs_sync",
		Title:       "Saving and sync",
		Description: "How save_project reconciles snapshots and how to detect remote changes.",
		Content: `# Saving and sync

## save_project

1. The project row (session blob) and every file, annotation and reply in the snapshot are written together.
2. Only after all writes finish does the server read back the stored ids and delete the ones the snapshot no longer mentions.
3. The save succeeds iff the project row was written. Other failures are listed under ` + "`failures`" + ` and are retried by your next save.

Annotations pointing at a file that is not in the snapshot are dropped. Files listed without loaded content are skipped and kept.

## Detecting remote changes

- ` + "`get_project_state`" + ` returns ` + "`fingerprint`" + ` and ` + "`writer`" + `.
- Keep the fingerprint of the document you hold. A different fingerprint written by a different writer is a remote change.
- Right after your own save the fingerprint moves too; ignore changes whose writer is yours.
- Reloading discards unsaved local edits.
`,
	},
	{
		URI:         "marginalia://docs/sharing",
		Name:        "docs_sharing",
		Title:       "Sharing and deletion",
		Description: "Roles, invites and member copies on delete.",
		Content: `# Sharing and deletion

## Roles

- owner: everything, including invites, delete and purge.
- editor: read and save.
- viewer: read only.

## Invites

Links expire (default seven days). Joining is idempotent; the owner following their own link changes nothing.

## Deleting a shared project

Every member receives a full private copy named "<project> - from <owner>" before the original goes to the owner's trash.
A member whose copy failed is reported; the delete still proceeds. Members lose access to the original immediately.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
