package services

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/taskforge/internal/common"
	"github.com/dmitrijs2005/taskforge/internal/cryptox"
	"github.com/dmitrijs2005/taskforge/internal/dbx"
	"github.com/dmitrijs2005/taskforge/internal/logging"
	"github.com/dmitrijs2005/taskforge/internal/server/config"
	"github.com/dmitrijs2005/taskforge/internal/server/models"
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
	"github.com/dmitrijs2005/taskforge/internal/server/roles"
	"github.com/stretchr/testify/require"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

type memTables struct {
	users       map[int64]*models.UserRow
	tokens      map[string]*models.RefreshToken
	projects    map[int64]*models.Project
	parts       map[int64]*models.Participation
	versions    map[int64]*models.Version
	tags        map[int64]*models.Tag
	tasks       map[int64]*models.Task
	taskTags    map[int64]*models.TaskTag
	attachments map[int64]*models.Attachment
	history     []models.TaskHistory
	comments    map[int64]*models.Comment
	notes       map[int64]*models.Notification
}

func cloneTable[K comparable, T any](in map[K]*T) map[K]*T {
	out := make(map[K]*T, len(in))
	for k, v := range in {
		row := *v
		out[k] = &row
	}
	return out
}

func (t memTables) clone() memTables {
	return memTables{
		users:       cloneTable(t.users),
		tokens:      cloneTable(t.tokens),
		projects:    cloneTable(t.projects),
		parts:       cloneTable(t.parts),
		versions:    cloneTable(t.versions),
		tags:        cloneTable(t.tags),
		tasks:       cloneTable(t.tasks),
		taskTags:    cloneTable(t.taskTags),
		attachments: cloneTable(t.attachments),
		history:     append([]models.TaskHistory(nil), t.history...),
		comments:    cloneTable(t.comments),
		notes:       cloneTable(t.notes),
	}
}

// memDB backs every fake repository. Calls records mutating calls in order.
// Transactions begun through sqlDB snapshot the tables; rollback restores them.
type memDB struct {
	mu     sync.Mutex
	nextID int64

	memTables
	snapshot *memTables

	fail  map[string]error
	calls []string
}

func newMemDB() *memDB {
	return &memDB{
		memTables: memTables{
			users:       map[int64]*models.UserRow{},
			tokens:      map[string]*models.RefreshToken{},
			projects:    map[int64]*models.Project{},
			parts:       map[int64]*models.Participation{},
			versions:    map[int64]*models.Version{},
			tags:        map[int64]*models.Tag{},
			tasks:       map[int64]*models.Task{},
			taskTags:    map[int64]*models.TaskTag{},
			attachments: map[int64]*models.Attachment{},
			comments:    map[int64]*models.Comment{},
			notes:       map[int64]*models.Notification{},
		},
		fail: map[string]error{},
	}
}

// sqlDB returns a *sql.DB whose transactions are memDB transactions.
// It cannot run SQL.
func (m *memDB) sqlDB(t *testing.T) *sql.DB {
	t.Helper()
	db := sql.OpenDB(memConnector{m})
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func (m *memDB) begin() (driver.Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot != nil {
		return nil, errors.New("memdb: nested transaction")
	}
	snap := m.memTables.clone()
	m.snapshot = &snap
	return memTx{m}, nil
}

func (m *memDB) end(commit bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return errors.New("memdb: no transaction")
	}
	if !commit {
		m.memTables = *m.snapshot
	}
	m.snapshot = nil
	return nil
}

type memConnector struct{ m *memDB }

func (c memConnector) Connect(context.Context) (driver.Conn, error) { return memConn(c), nil }
func (c memConnector) Driver() driver.Driver                        { return memDriver{} }

type memDriver struct{}

func (memDriver) Open(string) (driver.Conn, error) { return nil, errors.New("memdb: use memConnector") }

type memConn struct{ m *memDB }

func (c memConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("memdb: no SQL") }
func (c memConn) Close() error                        { return nil }
func (c memConn) Begin() (driver.Tx, error)           { return c.m.begin() }

type memTx struct{ m *memDB }

func (tx memTx) Commit() error   { return tx.m.end(true) }
func (tx memTx) Rollback() error { return tx.m.end(false) }

func (m *memDB) id() int64 {
	m.nextID++
	return m.nextID
}

// enter locks the store, records the call and returns an injected error.
func (m *memDB) enter(call string, args ...any) error {
	m.mu.Lock()
	if len(args) > 0 {
		m.calls = append(m.calls, fmt.Sprint(append([]any{call}, args...)...))
	} else {
		m.calls = append(m.calls, call)
	}
	return m.fail[call]
}

func (m *memDB) callsWith(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func sortedKeys[T any](in map[int64]T) []int64 {
	keys := make([]int64, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// --- users ---

type memUsers struct{ m *memDB }

func (r memUsers) Create(_ context.Context, u *models.UserRow) (*models.UserRow, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("users.Create"); err != nil {
		return nil, err
	}
	for _, other := range r.m.users {
		if other.EmailHash == u.EmailHash || other.UserName == u.UserName {
			return nil, common.ErrorConflict
		}
	}
	u.ID = r.m.id()
	u.CreatedAt = time.Now()
	cp := *u
	r.m.users[u.ID] = &cp
	return u, nil
}

func (r memUsers) GetByID(_ context.Context, id int64) (*models.UserRow, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("users.GetByID"); err != nil {
		return nil, err
	}
	u, ok := r.m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) find(match func(*models.UserRow) bool) (*models.UserRow, error) {
	for _, u := range r.m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetByEmailHash(_ context.Context, hash string) (*models.UserRow, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("users.GetByEmailHash"); err != nil {
		return nil, err
	}
	return r.find(func(u *models.UserRow) bool { return u.EmailHash == hash })
}

func (r memUsers) GetByUserName(_ context.Context, name string) (*models.UserRow, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("users.GetByUserName"); err != nil {
		return nil, err
	}
	return r.find(func(u *models.UserRow) bool { return u.UserName == name })
}

func (r memUsers) Update(_ context.Context, u *models.UserRow) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("users.Update"); err != nil {
		return err
	}
	cur, ok := r.m.users[u.ID]
	if !ok {
		return common.ErrorNotFound
	}
	cur.FullNameEnc, cur.EmailEnc, cur.EmailHash, cur.UserName = u.FullNameEnc, u.EmailEnc, u.EmailHash, u.UserName
	return nil
}

func (r memUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("users.UpdatePassword"); err != nil {
		return err
	}
	u, ok := r.m.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r memUsers) UpdateImage(_ context.Context, id int64, image string) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("users.UpdateImage"); err != nil {
		return err
	}
	u, ok := r.m.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Image = image
	return nil
}

func (r memUsers) TouchLastAccess(_ context.Context, id int64, at time.Time) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("users.TouchLastAccess"); err != nil {
		return err
	}
	if u, ok := r.m.users[id]; ok {
		u.LastAccess = &at
	}
	return nil
}

func (r memUsers) Delete(_ context.Context, id int64) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("users.Delete"); err != nil {
		return err
	}
	delete(r.m.users, id)
	return nil
}

func (r memUsers) SearchByUserName(_ context.Context, prefix string, limit int) ([]models.UserBasic, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("users.SearchByUserName"); err != nil {
		return nil, err
	}
	out := []models.UserBasic{}
	for _, id := range sortedKeys(r.m.users) {
		u := r.m.users[id]
		if strings.HasPrefix(strings.ToLower(u.UserName), strings.ToLower(prefix)) && len(out) < limit {
			out = append(out, models.UserBasic{ID: u.ID, UserName: u.UserName, Image: u.Image})
		}
	}
	return out, nil
}

// --- refresh tokens ---

type memTokens struct{ m *memDB }

func (r memTokens) Create(_ context.Context, userID int64, token string, validity time.Duration) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tokens.Create"); err != nil {
		return err
	}
	r.m.tokens[token] = &models.RefreshToken{ID: r.m.id(), UserID: userID, Token: token, Expires: time.Now().Add(validity)}
	return nil
}

func (r memTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tokens.Find"); err != nil {
		return nil, err
	}
	t, ok := r.m.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (r memTokens) Delete(_ context.Context, token string) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tokens.Delete"); err != nil {
		return err
	}
	delete(r.m.tokens, token)
	return nil
}

func (r memTokens) DeleteByUser(_ context.Context, userID int64) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tokens.DeleteByUser"); err != nil {
		return err
	}
	for k, t := range r.m.tokens {
		if t.UserID == userID {
			delete(r.m.tokens, k)
		}
	}
	return nil
}

// --- projects ---

type memProjects struct{ m *memDB }

func (r memProjects) Create(_ context.Context, p *models.Project) (*models.Project, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("projects.Create"); err != nil {
		return nil, err
	}
	for _, other := range r.m.projects {
		if other.Name == p.Name {
			return nil, common.ErrorConflict
		}
	}
	p.ID = r.m.id()
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	cp := *p
	r.m.projects[p.ID] = &cp
	return p, nil
}

func (r memProjects) GetByID(_ context.Context, id int64) (*models.Project, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("projects.GetByID"); err != nil {
		return nil, err
	}
	p, ok := r.m.projects[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *p
	return &cp, nil
}

func (r memProjects) ListForUser(_ context.Context, userID int64) ([]models.Project, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("projects.ListForUser"); err != nil {
		return nil, err
	}
	out := []models.Project{}
	for _, id := range sortedKeys(r.m.projects) {
		p := r.m.projects[id]
		visible := p.CreatorID == userID
		for _, part := range r.m.parts {
			if part.ProjectID == id && part.UserID == userID && part.Active() {
				visible = true
			}
		}
		if visible {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r memProjects) Update(_ context.Context, p *models.Project) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("projects.Update"); err != nil {
		return err
	}
	cur, ok := r.m.projects[p.ID]
	if !ok {
		return common.ErrorNotFound
	}
	cur.Name, cur.Description, cur.Status, cur.Deadline = p.Name, p.Description, p.Status, p.Deadline
	return nil
}

func (r memProjects) UpdateBanner(_ context.Context, id int64, banner string) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("projects.UpdateBanner"); err != nil {
		return err
	}
	cur, ok := r.m.projects[id]
	if !ok {
		return common.ErrorNotFound
	}
	cur.Banner = banner
	return nil
}

func (r memProjects) Delete(_ context.Context, id int64) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("projects.Delete"); err != nil {
		return err
	}
	if _, ok := r.m.projects[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.m.projects, id)
	for pid, part := range r.m.parts {
		if part.ProjectID == id {
			delete(r.m.parts, pid)
		}
	}
	return nil
}

func (r memProjects) Progress(_ context.Context, id int64) (float64, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("projects.Progress"); err != nil {
		return 0, err
	}
	var done, total int
	for _, t := range r.m.tasks {
		if v, ok := r.m.versions[t.VersionID]; ok && v.ProjectID == id {
			total++
			if t.Status == models.TaskDone {
				done++
			}
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(done) / float64(total), nil
}

// --- participations ---

type memParts struct{ m *memDB }

func (r memParts) Create(_ context.Context, p *models.Participation) (*models.Participation, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("participations.Create", p.UserID); err != nil {
		return nil, err
	}
	for _, other := range r.m.parts {
		if other.UserID == p.UserID && other.ProjectID == p.ProjectID {
			return nil, common.ErrorConflict
		}
	}
	p.ID = r.m.id()
	p.InvitedAt = time.Now()
	cp := *p
	r.m.parts[p.ID] = &cp
	return p, nil
}

func (r memParts) get(match func(*models.Participation) bool) (*models.Participation, error) {
	for _, id := range sortedKeys(r.m.parts) {
		if p := r.m.parts[id]; match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memParts) GetByID(_ context.Context, id int64) (*models.Participation, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("participations.GetByID"); err != nil {
		return nil, err
	}
	return r.get(func(p *models.Participation) bool { return p.ID == id })
}

func (r memParts) Find(_ context.Context, userID, projectID int64) (*models.Participation, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("participations.Find"); err != nil {
		return nil, err
	}
	return r.get(func(p *models.Participation) bool { return p.UserID == userID && p.ProjectID == projectID })
}

func (r memParts) FindByToken(_ context.Context, token string) (*models.Participation, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("participations.FindByToken"); err != nil {
		return nil, err
	}
	return r.get(func(p *models.Participation) bool { return p.InvitationToken != nil && *p.InvitationToken == token })
}

func (r memParts) Accept(_ context.Context, id int64, at time.Time) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("participations.Accept"); err != nil {
		return err
	}
	p, ok := r.m.parts[id]
	if !ok {
		return common.ErrorNotFound
	}
	p.AcceptedAt, p.InvitationToken = &at, nil
	return nil
}

func (r memParts) UpdateRole(_ context.Context, id int64, role roles.Role) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("participations.UpdateRole"); err != nil {
		return err
	}
	p, ok := r.m.parts[id]
	if !ok {
		return common.ErrorNotFound
	}
	p.Role = role
	return nil
}

func (r memParts) Delete(_ context.Context, id int64) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("participations.Delete"); err != nil {
		return err
	}
	if _, ok := r.m.parts[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.m.parts, id)
	return nil
}

func (r memParts) ListByProject(_ context.Context, projectID int64) ([]models.Participation, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("participations.ListByProject"); err != nil {
		return nil, err
	}
	out := []models.Participation{}
	for _, id := range sortedKeys(r.m.parts) {
		if p := r.m.parts[id]; p.ProjectID == projectID {
			out = append(out, *p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out, nil
}

// --- versions ---

type memVersions struct{ m *memDB }

func (r memVersions) Create(_ context.Context, v *models.Version) (*models.Version, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("versions.Create"); err != nil {
		return nil, err
	}
	v.ID = r.m.id()
	cp := *v
	r.m.versions[v.ID] = &cp
	return v, nil
}

func (r memVersions) GetByID(_ context.Context, id int64) (*models.Version, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("versions.GetByID"); err != nil {
		return nil, err
	}
	v, ok := r.m.versions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *v
	return &cp, nil
}

func (r memVersions) ListByProject(_ context.Context, projectID int64) ([]models.Version, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("versions.ListByProject"); err != nil {
		return nil, err
	}
	out := []models.Version{}
	for _, id := range sortedKeys(r.m.versions) {
		if v := r.m.versions[id]; v.ProjectID == projectID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (r memVersions) Update(_ context.Context, v *models.Version) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("versions.Update"); err != nil {
		return err
	}
	if _, ok := r.m.versions[v.ID]; !ok {
		return common.ErrorNotFound
	}
	cp := *v
	r.m.versions[v.ID] = &cp
	return nil
}

func (r memVersions) Delete(_ context.Context, id int64) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("versions.Delete"); err != nil {
		return err
	}
	if _, ok := r.m.versions[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.m.versions, id)
	return nil
}

// --- tags ---

type memTags struct{ m *memDB }

func (r memTags) Create(_ context.Context, t *models.Tag) (*models.Tag, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tags.Create"); err != nil {
		return nil, err
	}
	for _, other := range r.m.tags {
		if other.ProjectID == t.ProjectID && other.Name == t.Name {
			return nil, common.ErrorConflict
		}
	}
	t.ID = r.m.id()
	cp := *t
	r.m.tags[t.ID] = &cp
	return t, nil
}

func (r memTags) GetByID(_ context.Context, id int64) (*models.Tag, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tags.GetByID"); err != nil {
		return nil, err
	}
	t, ok := r.m.tags[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (r memTags) ListByProject(_ context.Context, projectID int64) ([]models.Tag, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tags.ListByProject"); err != nil {
		return nil, err
	}
	out := []models.Tag{}
	for _, id := range sortedKeys(r.m.tags) {
		if t := r.m.tags[id]; t.ProjectID == projectID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r memTags) Update(_ context.Context, t *models.Tag) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tags.Update"); err != nil {
		return err
	}
	if _, ok := r.m.tags[t.ID]; !ok {
		return common.ErrorNotFound
	}
	cp := *t
	r.m.tags[t.ID] = &cp
	return nil
}

func (r memTags) Delete(_ context.Context, id int64) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tags.Delete"); err != nil {
		return err
	}
	if _, ok := r.m.tags[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.m.tags, id)
	return nil
}

// --- tasks ---

type memTasks struct{ m *memDB }

func (r memTasks) withProject(t *models.Task) models.Task {
	cp := *t
	if v, ok := r.m.versions[t.VersionID]; ok {
		cp.ProjectID = v.ProjectID
	}
	return cp
}

func (r memTasks) Create(_ context.Context, t *models.Task) (*models.Task, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tasks.Create"); err != nil {
		return nil, err
	}
	t.ID = r.m.id()
	t.CreatedAt, t.UpdatedAt = time.Now(), time.Now()
	cp := *t
	r.m.tasks[t.ID] = &cp
	return t, nil
}

func (r memTasks) GetByID(_ context.Context, id int64) (*models.Task, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tasks.GetByID"); err != nil {
		return nil, err
	}
	t, ok := r.m.tasks[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := r.withProject(t)
	return &cp, nil
}

func (r memTasks) list(match func(*models.Task) bool) []models.Task {
	out := []models.Task{}
	for _, id := range sortedKeys(r.m.tasks) {
		if t := r.m.tasks[id]; match(t) {
			out = append(out, r.withProject(t))
		}
	}
	return out
}

func (r memTasks) ListByVersion(_ context.Context, versionID int64) ([]models.Task, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tasks.ListByVersion"); err != nil {
		return nil, err
	}
	return r.list(func(t *models.Task) bool { return t.VersionID == versionID }), nil
}

func (r memTasks) ListByAssignee(_ context.Context, userID int64) ([]models.Task, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tasks.ListByAssignee"); err != nil {
		return nil, err
	}
	return r.list(func(t *models.Task) bool { return t.AssigneeID != nil && *t.AssigneeID == userID }), nil
}

func (r memTasks) Update(_ context.Context, t *models.Task) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tasks.Update"); err != nil {
		return err
	}
	cur, ok := r.m.tasks[t.ID]
	if !ok {
		return common.ErrorNotFound
	}
	cp := *t
	cp.ParentTaskID, cp.CreatedAt, cp.UpdatedAt = cur.ParentTaskID, cur.CreatedAt, time.Now()
	cp.Tags, cp.Attachments, cp.Comments = nil, nil, nil
	r.m.tasks[t.ID] = &cp
	return nil
}

func (r memTasks) UpdateStatus(_ context.Context, id int64, status models.TaskStatus) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tasks.UpdateStatus"); err != nil {
		return err
	}
	cur, ok := r.m.tasks[id]
	if !ok {
		return common.ErrorNotFound
	}
	cur.Status = status
	return nil
}

func (r memTasks) Delete(_ context.Context, id int64) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tasks.Delete"); err != nil {
		return err
	}
	if _, ok := r.m.tasks[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.m.tasks, id)
	for aid, a := range r.m.attachments {
		if a.TaskID == id {
			delete(r.m.attachments, aid)
		}
	}
	return nil
}

// --- task tags ---

type memTaskTags struct{ m *memDB }

func (r memTaskTags) ListByTask(_ context.Context, taskID int64) ([]models.TaskTag, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tasktags.ListByTask"); err != nil {
		return nil, err
	}
	out := []models.TaskTag{}
	for _, id := range sortedKeys(r.m.taskTags) {
		if tt := r.m.taskTags[id]; tt.TaskID == taskID {
			out = append(out, *tt)
		}
	}
	return out, nil
}

func (r memTaskTags) ListTags(_ context.Context, taskID int64) ([]models.Tag, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tasktags.ListTags"); err != nil {
		return nil, err
	}
	out := []models.Tag{}
	for _, id := range sortedKeys(r.m.taskTags) {
		tt := r.m.taskTags[id]
		if tag, ok := r.m.tags[tt.TagID]; ok && tt.TaskID == taskID {
			out = append(out, *tag)
		}
	}
	return out, nil
}

func (r memTaskTags) Add(_ context.Context, taskID, tagID int64) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tasktags.Add ", tagID); err != nil {
		return err
	}
	for _, tt := range r.m.taskTags {
		if tt.TaskID == taskID && tt.TagID == tagID {
			return common.ErrorConflict
		}
	}
	id := r.m.id()
	r.m.taskTags[id] = &models.TaskTag{ID: id, TaskID: taskID, TagID: tagID}
	return nil
}

func (r memTaskTags) Remove(_ context.Context, taskID, tagID int64) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("tasktags.Remove ", tagID); err != nil {
		return err
	}
	for id, tt := range r.m.taskTags {
		if tt.TaskID == taskID && tt.TagID == tagID {
			delete(r.m.taskTags, id)
			return nil
		}
	}
	return common.ErrorNotFound
}

// --- attachments ---

type memAttachments struct{ m *memDB }

func (r memAttachments) Create(_ context.Context, a *models.Attachment) (*models.Attachment, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("attachments.Create"); err != nil {
		return nil, err
	}
	a.ID = r.m.id()
	cp := *a
	r.m.attachments[a.ID] = &cp
	return a, nil
}

func (r memAttachments) GetByID(_ context.Context, id int64) (*models.Attachment, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("attachments.GetByID"); err != nil {
		return nil, err
	}
	a, ok := r.m.attachments[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memAttachments) ListByTask(_ context.Context, taskID int64) ([]models.Attachment, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("attachments.ListByTask"); err != nil {
		return nil, err
	}
	out := []models.Attachment{}
	for _, id := range sortedKeys(r.m.attachments) {
		if a := r.m.attachments[id]; a.TaskID == taskID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r memAttachments) Delete(_ context.Context, id int64) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("attachments.Delete"); err != nil {
		return err
	}
	if _, ok := r.m.attachments[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.m.attachments, id)
	return nil
}

// --- history ---

type memHistory struct{ m *memDB }

func (r memHistory) Create(_ context.Context, h *models.TaskHistory) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("history.Create"); err != nil {
		return err
	}
	h.ID = r.m.id()
	h.ChangedAt = time.Now()
	r.m.history = append(r.m.history, *h)
	return nil
}

func (r memHistory) ListByTask(_ context.Context, taskID int64) ([]models.TaskHistory, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("history.ListByTask"); err != nil {
		return nil, err
	}
	out := []models.TaskHistory{}
	for i := len(r.m.history) - 1; i >= 0; i-- {
		if h := r.m.history[i]; h.TaskID == taskID {
			out = append(out, h)
		}
	}
	return out, nil
}

// --- comments ---

type memComments struct{ m *memDB }

func (r memComments) Create(_ context.Context, c *models.Comment) (*models.Comment, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("comments.Create"); err != nil {
		return nil, err
	}
	c.ID = r.m.id()
	c.CreatedAt, c.UpdatedAt = time.Now(), time.Now()
	cp := *c
	r.m.comments[c.ID] = &cp
	return c, nil
}

func (r memComments) GetByID(_ context.Context, id int64) (*models.Comment, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("comments.GetByID"); err != nil {
		return nil, err
	}
	c, ok := r.m.comments[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *c
	return &cp, nil
}

func (r memComments) ListByTask(_ context.Context, taskID int64) ([]models.Comment, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("comments.ListByTask"); err != nil {
		return nil, err
	}
	out := []models.Comment{}
	for _, id := range sortedKeys(r.m.comments) {
		if c := r.m.comments[id]; c.TaskID == taskID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r memComments) UpdateContent(_ context.Context, id int64, content string) (*models.Comment, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("comments.UpdateContent"); err != nil {
		return nil, err
	}
	c, ok := r.m.comments[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c.Content, c.Edited, c.UpdatedAt = content, true, time.Now()
	cp := *c
	return &cp, nil
}

func (r memComments) Delete(_ context.Context, id int64) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("comments.Delete"); err != nil {
		return err
	}
	if _, ok := r.m.comments[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.m.comments, id)
	return nil
}

// --- notifications ---

type memNotes struct{ m *memDB }

func (r memNotes) Create(_ context.Context, n *models.Notification) (*models.Notification, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("notifications.Create"); err != nil {
		return nil, err
	}
	n.ID = r.m.id()
	n.CreatedAt = time.Now()
	cp := *n
	r.m.notes[n.ID] = &cp
	return n, nil
}

func (r memNotes) ListByUser(_ context.Context, userID int64) ([]models.Notification, error) {
	defer r.m.mu.Unlock()
	if err := r.m.enter("notifications.ListByUser"); err != nil {
		return nil, err
	}
	out := []models.Notification{}
	keys := sortedKeys(r.m.notes)
	for i := len(keys) - 1; i >= 0; i-- {
		if n := r.m.notes[keys[i]]; n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (r memNotes) MarkRead(_ context.Context, id, userID int64) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("notifications.MarkRead"); err != nil {
		return err
	}
	n, ok := r.m.notes[id]
	if !ok || n.UserID != userID {
		return common.ErrorNotFound
	}
	n.IsRead = true
	return nil
}

func (r memNotes) MarkAllRead(_ context.Context, userID int64) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("notifications.MarkAllRead"); err != nil {
		return err
	}
	for _, n := range r.m.notes {
		if n.UserID == userID {
			n.IsRead = true
		}
	}
	return nil
}

func (r memNotes) MarkReadByToken(_ context.Context, userID int64, token string) error {
	defer r.m.mu.Unlock()
	if err := r.m.enter("notifications.MarkReadByToken"); err != nil {
		return err
	}
	for _, n := range r.m.notes {
		if n.UserID == userID && n.Token != nil && *n.Token == token {
			n.IsRead = true
		}
	}
	return nil
}

// --- manager ---

type memRepoManager struct{ m *memDB }

func (rm memRepoManager) RunMigrations(context.Context, *sql.DB) error        { return nil }
func (rm memRepoManager) Users(dbx.DBTX) users.Repository                     { return memUsers(rm) }
func (rm memRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository     { return memTokens(rm) }
func (rm memRepoManager) Projects(dbx.DBTX) projects.Repository               { return memProjects(rm) }
func (rm memRepoManager) Participations(dbx.DBTX) participations.Repository   { return memParts(rm) }
func (rm memRepoManager) Versions(dbx.DBTX) versions.Repository               { return memVersions(rm) }
func (rm memRepoManager) Tags(dbx.DBTX) tags.Repository                       { return memTags(rm) }
func (rm memRepoManager) Tasks(dbx.DBTX) tasks.Repository                     { return memTasks(rm) }
func (rm memRepoManager) TaskTags(dbx.DBTX) tasktags.Repository               { return memTaskTags(rm) }
func (rm memRepoManager) Attachments(dbx.DBTX) attachments.Repository         { return memAttachments(rm) }
func (rm memRepoManager) History(dbx.DBTX) history.Repository                 { return memHistory(rm) }
func (rm memRepoManager) Comments(dbx.DBTX) comments.Repository               { return memComments(rm) }
func (rm memRepoManager) Notifications(dbx.DBTX) notifications.Repository     { return memNotes(rm) }

// --- collaborators ---

// memStore is an in-memory FileStore.
type memStore struct {
	mu         sync.Mutex
	n          int
	files      map[string][]byte
	saveErr    error
	removeErr  error
	removeOnly string // limits removeErr to one URL when set
	removed    []string
}

func newMemStore() *memStore { return &memStore{files: map[string][]byte{}} }

func (s *memStore) Save(_ context.Context, name, _ string, r io.Reader, _ int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.n++
	url := fmt.Sprintf("/uploads/%d-%s", s.n, name)
	s.files[url] = b
	return url, nil
}

func (s *memStore) Remove(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil && (s.removeOnly == "" || s.removeOnly == url) {
		return s.removeErr
	}
	delete(s.files, url)
	s.removed = append(s.removed, url)
	return nil
}

func (s *memStore) DownloadURL(_ context.Context, url string) (string, error) {
	return "https://files.example" + url, nil
}

func (s *memStore) has(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[url]
	return ok
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

type published struct {
	Room string
	Name string
	Data any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, room, name string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Room: room, Name: name, Data: data})
}

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type sentMail struct {
	To, Subject, Template string
	Data                  any
}

type recordingMailer struct {
	mu   sync.Mutex
	err  error
	sent []sentMail
}

func (m *recordingMailer) Send(_ context.Context, to, subject, templateName string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Template: templateName, Data: data})
	return m.err
}

// --- fixture ---

type fixture struct {
	db     *memDB
	store  *memStore
	events *recordingPublisher
	mailer *recordingMailer
	deps   Deps

	access        *AccessService
	users         *UserService
	projects      *ProjectService
	versions      *VersionService
	tags          *TagService
	tasks         *TaskService
	comments      *CommentService
	notifications *NotificationService
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		PublicBaseURL:                "http://taskforge.test/",
	}
}

func testCipher(t *testing.T) *cryptox.FieldCipher {
	t.Helper()
	c, err := cryptox.NewFieldCipher("test-secret", "test-salt")
	require.NoError(t, err)
	return c
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := newMemDB()
	return newFixtureWithDB(t, m, m.sqlDB(t))
}

func newFixtureWithDB(t *testing.T, m *memDB, sqlDB *sql.DB) *fixture {
	t.Helper()
	f := &fixture{
		db:     m,
		store:  newMemStore(),
		events: &recordingPublisher{},
		mailer: &recordingMailer{},
	}
	f.deps = Deps{
		DB:          sqlDB,
		RepoManager: memRepoManager{m: f.db},
		Config:      testConfig(),
		Store:       f.store,
		Events:      f.events,
		Mailer:      f.mailer,
		Cipher:      testCipher(t),
		Logger:      logging.Nop{},
	}
	f.access = NewAccessService(f.deps)
	f.users = NewUserService(f.deps)
	f.users.passwordCost = 4
	f.projects = NewProjectService(f.deps, f.access, f.users)
	f.versions = NewVersionService(f.deps, f.access)
	f.tags = NewTagService(f.deps, f.access)
	f.tasks = NewTaskService(f.deps, f.access)
	f.comments = NewCommentService(f.deps, f.access)
	f.notifications = NewNotificationService(f.deps)
	return f
}

func (f *fixture) user(t *testing.T, name string) int64 {
	t.Helper()
	u, err := f.users.Register(context.Background(), RegisterInput{
		FullName: strings.ToUpper(name[:1]) + name[1:],
		Email:    name + "@example.com",
		UserName: name,
		Password: "secret-password",
	})
	require.NoError(t, err)
	return u.ID
}

func (f *fixture) project(t *testing.T, ownerID int64, name string) int64 {
	t.Helper()
	p, err := f.projects.Create(context.Background(), ownerID, ProjectInput{Name: name}, nil)
	require.NoError(t, err)
	return p.ID
}

// member puts userID straight into the project with an accepted role.
func (f *fixture) member(t *testing.T, projectID, userID int64, role roles.Role) {
	t.Helper()
	now := time.Now()
	_, err := memParts{f.db}.Create(context.Background(), &models.Participation{
		UserID: userID, ProjectID: projectID, Role: role, AcceptedAt: &now,
	})
	require.NoError(t, err)
}

func (f *fixture) version(t *testing.T, projectID int64) int64 {
	t.Helper()
	v, err := memVersions{f.db}.Create(context.Background(), &models.Version{ProjectID: projectID, Name: "v1", Status: models.VersionDraft})
	require.NoError(t, err)
	return v.ID
}

func (f *fixture) tag(t *testing.T, projectID int64, name string) int64 {
	t.Helper()
	tag, err := memTags{f.db}.Create(context.Background(), &models.Tag{ProjectID: projectID, Name: name})
	require.NoError(t, err)
	return tag.ID
}

func upload(name, body string) *Upload {
	return &Upload{Name: name, ContentType: "text/plain", Size: int64(len(body)), Body: bytes.NewBufferString(body)}
}

func ptr[T any](v T) *T { return &v }
