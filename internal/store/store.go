// 本文件用于平台存储实现 基于 sqlite 保存项目 字段 工单与文章
// 模板列表与已用模板台账都以扩展属性的形式挂在项目和实体上

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ticket-template/internal/condition"
)

const defaultDataDir = "data"

type Store struct {
	db     *sql.DB
	dbPath string
}

type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
}

// Open 统一负责存储初始化
// 目录创建 打开数据库 设置 WAL 和迁移收敛在一个入口
func Open(dataDir string) (*Store, error) {
	root := strings.TrimSpace(dataDir)
	if root == "" {
		root = defaultDataDir
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir failed: %w", err)
	}
	dbPath := filepath.Join(root, "tickets.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite failed: %w", err)
	}
	// 单连接 避免 sqlite 写锁竞争
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set sqlite wal failed: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DBPath() string {
	if s == nil {
		return ""
	}
	return s.dbPath
}

// UpsertProject creates the project or renames an existing one.
func (s *Store) UpsertProject(id, name string) (*Project, error) {
	projectID := strings.TrimSpace(id)
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrInvalidInput)
	}
	name = firstNonEmpty(strings.TrimSpace(name), projectID)
	now := nowRFC3339()
	_, err := s.db.Exec(`
		INSERT INTO projects(id, name, created_at, updated_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at
	`, projectID, name, now, now)
	if err != nil {
		return nil, fmt.Errorf("upsert project failed: %w", err)
	}
	return s.GetProject(projectID)
}

func (s *Store) GetProject(id string) (*Project, error) {
	var p Project
	err := s.db.QueryRow(`
		SELECT id, name, created_at, updated_at FROM projects WHERE id = ? LIMIT 1
	`, strings.TrimSpace(id)).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: project %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProjects() ([]Project, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at, updated_at FROM projects ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Project, 0, 4)
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ProjectProperty returns a project extension property, "" when unset.
func (s *Store) ProjectProperty(projectID, key string) (string, error) {
	if _, err := s.GetProject(projectID); err != nil {
		return "", err
	}
	var value string
	err := s.db.QueryRow(`
		SELECT value FROM project_properties WHERE project_id = ? AND key = ? LIMIT 1
	`, projectID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *Store) SetProjectProperty(projectID, key, value string) error {
	if _, err := s.GetProject(projectID); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO project_properties(project_id, key, value)
		VALUES(?, ?, ?)
		ON CONFLICT(project_id, key) DO UPDATE SET value = excluded.value
	`, projectID, key, value)
	if err != nil {
		return fmt.Errorf("set project property %s failed: %w", key, err)
	}
	return nil
}

// ProjectBag adapts a project's extension properties to templates.PropertyBag.
func (s *Store) ProjectBag(projectID string) *ProjectBag {
	return &ProjectBag{store: s, projectID: projectID}
}

type ProjectBag struct {
	store     *Store
	projectID string
}

func (b *ProjectBag) Property(key string) (string, error) {
	return b.store.ProjectProperty(b.projectID, key)
}

func (b *ProjectBag) SetProperty(key, value string) error {
	return b.store.SetProjectProperty(b.projectID, key, value)
}

// SetProjectFields replaces the custom field definitions of a project.
func (s *Store) SetProjectFields(projectID string, fields []Field) error {
	if _, err := s.GetProject(projectID); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer rollbackTx(tx)

	if _, err := tx.Exec(`DELETE FROM project_fields WHERE project_id = ?`, projectID); err != nil {
		return err
	}
	for i, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return fmt.Errorf("%w: field name is required", ErrInvalidInput)
		}
		values, err := json.Marshal(nonNil(f.Values))
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`
			INSERT INTO project_fields(project_id, name, type_name, field_values, position)
			VALUES(?, ?, ?, ?, ?)
		`, projectID, name, strings.TrimSpace(f.TypeName), string(values), i); err != nil {
			return fmt.Errorf("save project field %s failed: %w", name, err)
		}
	}
	return tx.Commit()
}

func (s *Store) ProjectFields(projectID string) ([]Field, error) {
	if _, err := s.GetProject(projectID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`
		SELECT name, type_name, field_values FROM project_fields
		WHERE project_id = ?
		ORDER BY position ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Field, 0, 8)
	for rows.Next() {
		var f Field
		var raw string
		if err := rows.Scan(&f.Name, &f.TypeName, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &f.Values); err != nil {
			return nil, fmt.Errorf("decode field %s values failed: %w", f.Name, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CreateEntity stores a new issue or article. An empty ID is replaced by the
// next "<PROJECT>-<n>" id for issues and "<PROJECT>-A-<n>" for articles.
func (s *Store) CreateEntity(input Entity) (*Entity, error) {
	if !input.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown entity kind %q", ErrInvalidInput, input.Kind)
	}
	if _, err := s.GetProject(input.ProjectID); err != nil {
		return nil, err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer rollbackTx(tx)

	id := strings.TrimSpace(input.ID)
	if id == "" {
		if id, err = nextEntityIDTx(tx, input.ProjectID, input.Kind); err != nil {
			return nil, err
		}
	}
	now := nowRFC3339()
	fields, props, err := encodeMaps(input.Fields, input.Properties)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(`
		INSERT INTO entities(id, project_id, kind, summary, content, fields, properties, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, input.ProjectID, string(input.Kind), input.Summary, input.Content, fields, props, now, now)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, fmt.Errorf("%w: %s %s already exists", ErrInvalidInput, input.Kind, id)
		}
		return nil, fmt.Errorf("create %s failed: %w", input.Kind, err)
	}
	if err := replaceTagsTx(tx, id, input.Tags); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetEntity(id)
}

// SaveEntity writes back summary, content, fields, tags and properties.
func (s *Store) SaveEntity(e *Entity) error {
	if e == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalidInput)
	}
	fields, props, err := encodeMaps(e.Fields, e.Properties)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer rollbackTx(tx)

	now := nowRFC3339()
	res, err := tx.Exec(`
		UPDATE entities
		SET summary = ?, content = ?, fields = ?, properties = ?, updated_at = ?
		WHERE id = ?
	`, e.Summary, e.Content, fields, props, now, e.ID)
	if err != nil {
		return fmt.Errorf("save %s %s failed: %w", e.Kind, e.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: entity %s", ErrNotFound, e.ID)
	}
	if err := replaceTagsTx(tx, e.ID, e.Tags); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.UpdatedAt = now
	return nil
}

func (s *Store) GetEntity(id string) (*Entity, error) {
	return queryEntity(s.db, strings.TrimSpace(id))
}

// GetEntityOfKind is GetEntity that also rejects the other entity kind.
func (s *Store) GetEntityOfKind(id string, kind condition.EntityKind) (*Entity, error) {
	e, err := s.GetEntity(id)
	if err != nil {
		return nil, err
	}
	if e.Kind != kind {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return e, nil
}

// ListEntities returns the entities of one kind in a project, oldest first.
func (s *Store) ListEntities(projectID string, kind condition.EntityKind) ([]Entity, error) {
	rows, err := s.db.Query(`
		SELECT id FROM entities WHERE project_id = ? AND kind = ? ORDER BY created_at ASC, id ASC
	`, projectID, string(kind))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, 16)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return loadEntities(s.db, ids)
}

// ListArticlesWithProperty returns every article, in any project, whose
// extension property key equals value.
func (s *Store) ListArticlesWithProperty(key, value string) ([]Entity, error) {
	rows, err := s.db.Query(`
		SELECT id FROM entities
		WHERE kind = ? AND json_extract(properties, ?) = ?
		ORDER BY project_id ASC, created_at ASC, id ASC
	`, string(condition.KindArticle), `$."`+key+`"`, value)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return loadEntities(s.db, ids)
}

// ArticleContent returns the body of an article; found is false when no
// article has that id.
func (s *Store) ArticleContent(articleID string) (string, bool, error) {
	var content string
	err := s.db.QueryRow(`
		SELECT content FROM entities WHERE id = ? AND kind = ? LIMIT 1
	`, strings.TrimSpace(articleID), string(condition.KindArticle)).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return content, true, nil
}

func (s *Store) Stats() (Stats, error) {
	var st Stats
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM projects`).Scan(&st.Projects); err != nil {
		return st, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM entities WHERE kind = ?`, string(condition.KindIssue)).Scan(&st.Issues); err != nil {
		return st, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM entities WHERE kind = ?`, string(condition.KindArticle)).Scan(&st.Articles); err != nil {
		return st, err
	}
	return st, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS project_properties (
			project_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			UNIQUE(project_id, key)
		);`,
		`CREATE TABLE IF NOT EXISTS project_fields (
			project_id TEXT NOT NULL,
			name TEXT NOT NULL,
			type_name TEXT NOT NULL DEFAULT '',
			field_values TEXT NOT NULL DEFAULT '[]',
			position INTEGER NOT NULL DEFAULT 0,
			UNIQUE(project_id, name)
		);`,
		`CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			fields TEXT NOT NULL DEFAULT '{}',
			properties TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS entity_tags (
			entity_id TEXT NOT NULL,
			name TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			UNIQUE(entity_id, name)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_entities_project_kind ON entities(project_id, kind);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store migrate failed: %w", err)
		}
	}
	return nil
}

func queryEntity(q queryer, id string) (*Entity, error) {
	var e Entity
	var kind, fields, props string
	err := q.QueryRow(`
		SELECT id, project_id, kind, summary, content, fields, properties, created_at, updated_at
		FROM entities
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&e.ID, &e.ProjectID, &kind, &e.Summary, &e.Content, &fields, &props, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: entity %s", ErrNotFound, id)
		}
		return nil, err
	}
	e.Kind = condition.EntityKind(kind)
	if err := json.Unmarshal([]byte(fields), &e.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of %s failed: %w", id, err)
	}
	if err := json.Unmarshal([]byte(props), &e.Properties); err != nil {
		return nil, fmt.Errorf("decode properties of %s failed: %w", id, err)
	}
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if e.Properties == nil {
		e.Properties = map[string]string{}
	}
	if e.Tags, err = queryEntityTags(q, id); err != nil {
		return nil, err
	}
	return &e, nil
}

func loadEntities(q queryer, ids []string) ([]Entity, error) {
	out := make([]Entity, 0, len(ids))
	for _, id := range ids {
		e, err := queryEntity(q, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

func queryEntityTags(q queryer, entityID string) ([]string, error) {
	rows, err := q.Query(`
		SELECT name FROM entity_tags WHERE entity_id = ? ORDER BY position ASC
	`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0, 4)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}

func replaceTagsTx(tx *sql.Tx, entityID string, tags []string) error {
	if _, err := tx.Exec(`DELETE FROM entity_tags WHERE entity_id = ?`, entityID); err != nil {
		return err
	}
	for i, tag := range normalizeTags(tags) {
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO entity_tags(entity_id, name, position)
			VALUES(?, ?, ?)
		`, entityID, tag, i); err != nil {
			return err
		}
	}
	return nil
}

func nextEntityIDTx(tx *sql.Tx, projectID string, kind condition.EntityKind) (string, error) {
	prefix := projectID + "-"
	if kind == condition.KindArticle {
		prefix += "A-"
	}
	var count int
	if err := tx.QueryRow(`
		SELECT COUNT(1) FROM entities WHERE project_id = ? AND kind = ?
	`, projectID, string(kind)).Scan(&count); err != nil {
		return "", err
	}
	for n := count + 1; ; n++ {
		id := fmt.Sprintf("%s%d", prefix, n)
		var exists int
		err := tx.QueryRow(`SELECT 1 FROM entities WHERE id = ? LIMIT 1`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
}

func encodeMaps(fields, props map[string]string) (string, string, error) {
	f, err := json.Marshal(nonNilMap(fields))
	if err != nil {
		return "", "", err
	}
	p, err := json.Marshal(nonNilMap(props))
	if err != nil {
		return "", "", err
	}
	return string(f), string(p), nil
}

func rollbackTx(tx *sql.Tx) {
	if tx != nil {
		_ = tx.Rollback()
	}
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		name := strings.TrimSpace(tag)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
