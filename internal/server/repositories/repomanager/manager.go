package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/taskforge/internal/dbx"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/attachments"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/comments"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/history"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/notifications"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/participations"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/projects"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/tags"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/tasks"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/tasktags"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/users"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/versions"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// path works on *sql.DB and inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Projects(db dbx.DBTX) projects.Repository
	Participations(db dbx.DBTX) participations.Repository
	Versions(db dbx.DBTX) versions.Repository
	Tags(db dbx.DBTX) tags.Repository
	Tasks(db dbx.DBTX) tasks.Repository
	TaskTags(db dbx.DBTX) tasktags.Repository
	Attachments(db dbx.DBTX) attachments.Repository
	History(db dbx.DBTX) history.Repository
	Comments(db dbx.DBTX) comments.Repository
	Notifications(db dbx.DBTX) notifications.Repository
}
