package engine

import (
	"context"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/remap/config"
	"github.com/Konsultn-Engineering/remap/database"
	"github.com/Konsultn-Engineering/remap/graph"
	"github.com/Konsultn-Engineering/remap/mapping"
	"github.com/Konsultn-Engineering/remap/sqlnode"
	"github.com/Konsultn-Engineering/remap/statement"
	"github.com/Konsultn-Engineering/remap/typeconv"
)

// ============================================================================
// Fixtures
// ============================================================================

type testUser struct {
	ID   int
	Name string
}

type testPost struct {
	ID    int
	Title string
	Tags  []string
}

type testAuthor struct {
	ID      int
	Name    string
	GroupID int
	Posts   []*testPost
}

type newUser struct {
	ID   uuid.UUID
	Name string
}

func newTestEngine(t *testing.T, build func(reg *mapping.Registry, b *statement.Builder)) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg := mapping.NewRegistry(config.Default(), typeconv.NewRegistry(), nil)
	builder := statement.NewBuilder(reg.Converters(), statement.QuestionPlaceholder)
	build(reg, builder)

	e, err := New(database.NewSqlDatabase(db), reg)
	require.NoError(t, err)
	return e, mock
}

func userMap() *mapping.RowMap {
	return &mapping.RowMap{
		ID:   "userMap",
		Type: reflect.TypeOf(testUser{}),
		IDProps: []*mapping.PropertyMap{
			{Property: "ID", Column: "id"},
		},
		Props: []*mapping.PropertyMap{
			{Property: "Name", Column: "name"},
		},
	}
}

// ============================================================================
// Select
// ============================================================================

func TestSelectList(t *testing.T) {
	e, mock := newTestEngine(t, func(reg *mapping.Registry, b *statement.Builder) {
		require.NoError(t, reg.AddRowMap(userMap()))
		require.NoError(t, reg.AddStatement(&mapping.Statement{
			ID:        "findUsers",
			Source:    sqlnode.NewStaticSource("SELECT id, name FROM users WHERE id > #{min}", b),
			RowMapIDs: []string{"userMap"},
		}))
	})

	mock.ExpectQuery("SELECT id, name FROM users WHERE id > ?").
		WithArgs(int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "ada").
			AddRow(2, "bob"))

	list, err := e.SelectList(context.Background(), "findUsers", map[string]any{"min": int64(0)})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, &testUser{ID: 1, Name: "ada"}, list[0])
	assert.Equal(t, &testUser{ID: 2, Name: "bob"}, list[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectOne(t *testing.T) {
	e, mock := newTestEngine(t, func(reg *mapping.Registry, b *statement.Builder) {
		require.NoError(t, reg.AddRowMap(userMap()))
		require.NoError(t, reg.AddStatement(&mapping.Statement{
			ID:        "findUser",
			Source:    sqlnode.NewStaticSource("SELECT id, name FROM users WHERE id = #{id}", b),
			RowMapIDs: []string{"userMap"},
		}))
	})

	mock.ExpectQuery("SELECT id, name FROM users WHERE id = ?").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "ada"))

	obj, err := e.SelectOne(context.Background(), "findUser", map[string]any{"id": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, &testUser{ID: 1, Name: "ada"}, obj)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectOneNoRows(t *testing.T) {
	e, mock := newTestEngine(t, func(reg *mapping.Registry, b *statement.Builder) {
		require.NoError(t, reg.AddRowMap(userMap()))
		require.NoError(t, reg.AddStatement(&mapping.Statement{
			ID:        "findUser",
			Source:    sqlnode.NewStaticSource("SELECT id, name FROM users WHERE id = #{id}", b),
			RowMapIDs: []string{"userMap"},
		}))
	})

	mock.ExpectQuery("SELECT id, name FROM users WHERE id = ?").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	obj, err := e.SelectOne(context.Background(), "findUser", map[string]any{"id": int64(9)})
	require.NoError(t, err)
	assert.Nil(t, obj)
}

func TestSelectOneTooManyRows(t *testing.T) {
	e, mock := newTestEngine(t, func(reg *mapping.Registry, b *statement.Builder) {
		require.NoError(t, reg.AddRowMap(userMap()))
		require.NoError(t, reg.AddStatement(&mapping.Statement{
			ID:        "findUsers",
			Source:    sqlnode.NewStaticSource("SELECT id, name FROM users", b),
			RowMapIDs: []string{"userMap"},
		}))
	})

	mock.ExpectQuery("SELECT id, name FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "ada").
			AddRow(2, "bob"))

	_, err := e.SelectOne(context.Background(), "findUsers", nil)
	require.ErrorIs(t, err, ErrTooManyRows)
}

func TestUnknownStatement(t *testing.T) {
	e, _ := newTestEngine(t, func(reg *mapping.Registry, b *statement.Builder) {})
	_, err := e.SelectList(context.Background(), "nope", nil)
	require.Error(t, err)
}

// ============================================================================
// Dynamic statements
// ============================================================================

func TestDynamicWhere(t *testing.T) {
	e, mock := newTestEngine(t, func(reg *mapping.Registry, b *statement.Builder) {
		require.NoError(t, reg.AddRowMap(userMap()))
		root := sqlnode.NewMixed(
			sqlnode.NewStaticText("SELECT id, name FROM users"),
			sqlnode.NewWhere(sqlnode.NewMixed(
				sqlnode.NewIf("name != nil", sqlnode.NewStaticText("AND name = #{name}")),
			)),
		)
		require.NoError(t, reg.AddStatement(&mapping.Statement{
			ID:        "findUsers",
			Source:    sqlnode.NewDynamicSource(root, b),
			RowMapIDs: []string{"userMap"},
		}))
	})

	mock.ExpectQuery("SELECT id, name FROM users WHERE name = ?").
		WithArgs("ada").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "ada"))
	mock.ExpectQuery("SELECT id, name FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "ada").
			AddRow(2, "bob"))

	list, err := e.SelectList(context.Background(), "findUsers", map[string]any{"name": "ada"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = e.SelectList(context.Background(), "findUsers", map[string]any{"name": nil})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================================================
// Plan cache
// ============================================================================

func TestStaticPlanReuse(t *testing.T) {
	e, mock := newTestEngine(t, func(reg *mapping.Registry, b *statement.Builder) {
		require.NoError(t, reg.AddRowMap(userMap()))
		require.NoError(t, reg.AddStatement(&mapping.Statement{
			ID:        "findUser",
			Source:    sqlnode.NewStaticSource("SELECT id, name FROM users WHERE id = #{id}", b),
			RowMapIDs: []string{"userMap"},
		}))
	})

	for _, id := range []int64{1, 2} {
		mock.ExpectQuery("SELECT id, name FROM users WHERE id = ?").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(id, "x"))
	}

	// Same plan, fresh values per call.
	for _, id := range []int64{1, 2} {
		obj, err := e.SelectOne(context.Background(), "findUser", map[string]any{"id": id})
		require.NoError(t, err)
		assert.Equal(t, int(id), obj.(*testUser).ID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================================================
// Exec and key generation
// ============================================================================

func TestExecAppliesGeneratedKey(t *testing.T) {
	e, mock := newTestEngine(t, func(reg *mapping.Registry, b *statement.Builder) {
		require.NoError(t, reg.AddStatement(&mapping.Statement{
			ID:           "insertUser",
			Source:       sqlnode.NewStaticSource("INSERT INTO users (id, name) VALUES (#{ID}, #{Name})", b),
			KeyGenerator: "uuid",
			KeyProperty:  "ID",
		}))
	})

	mock.ExpectExec("INSERT INTO users (id, name) VALUES (?, ?)").
		WithArgs(sqlmock.AnyArg(), "ada").
		WillReturnResult(sqlmock.NewResult(0, 1))

	arg := &newUser{Name: "ada"}
	result, err := e.Exec(context.Background(), "insertUser", arg)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, arg.ID, "generated key must be assigned before binding")

	affected, err := result.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type seqGenerator struct{ n int }

func (g *seqGenerator) Generate() (any, error) {
	g.n++
	return g.n, nil
}

func TestExecCustomGenerator(t *testing.T) {
	type row struct {
		ID   int
		Name string
	}
	e, mock := newTestEngine(t, func(reg *mapping.Registry, b *statement.Builder) {
		reg.RegisterGenerator("seq", &seqGenerator{})
		require.NoError(t, reg.AddStatement(&mapping.Statement{
			ID:           "insertRow",
			Source:       sqlnode.NewStaticSource("INSERT INTO rows (id, name) VALUES (#{ID}, #{Name})", b),
			KeyGenerator: "seq",
			KeyProperty:  "ID",
		}))
	})

	for want := 1; want <= 2; want++ {
		mock.ExpectExec("INSERT INTO rows (id, name) VALUES (?, ?)").
			WithArgs(int64(want), "x").
			WillReturnResult(sqlmock.NewResult(int64(want), 1))
		arg := &row{Name: "x"}
		_, err := e.Exec(context.Background(), "insertRow", arg)
		require.NoError(t, err)
		assert.Equal(t, want, arg.ID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================================================
// Nested queries and the result cache
// ============================================================================

func TestNestedQueryResultCache(t *testing.T) {
	e, mock := newTestEngine(t, func(reg *mapping.Registry, b *statement.Builder) {
		require.NoError(t, reg.AddRowMap(&mapping.RowMap{
			ID:   "authorMap",
			Type: reflect.TypeOf(testAuthor{}),
			IDProps: []*mapping.PropertyMap{
				{Property: "ID", Column: "id"},
			},
			Props: []*mapping.PropertyMap{
				{Property: "Name", Column: "name"},
				{Property: "GroupID", Column: "group_id"},
				{
					Property:      "Posts",
					NestedQueryID: "findPosts",
					Composites: []*mapping.PropertyMap{
						{Property: "gid", Column: "group_id"},
					},
				},
			},
		}))
		require.NoError(t, reg.AddRowMap(&mapping.RowMap{
			ID:   "postMap",
			Type: reflect.TypeOf(testPost{}),
			IDProps: []*mapping.PropertyMap{
				{Property: "ID", Column: "id"},
			},
			Props: []*mapping.PropertyMap{
				{Property: "Title", Column: "title"},
			},
		}))
		require.NoError(t, reg.AddStatement(&mapping.Statement{
			ID:        "findAuthors",
			Source:    sqlnode.NewStaticSource("SELECT id, name, group_id FROM authors", b),
			RowMapIDs: []string{"authorMap"},
		}))
		require.NoError(t, reg.AddStatement(&mapping.Statement{
			ID:        "findPosts",
			Source:    sqlnode.NewStaticSource("SELECT id, title FROM posts WHERE group_id = #{gid}", b),
			RowMapIDs: []string{"postMap"},
		}))
	})

	mock.ExpectQuery("SELECT id, name, group_id FROM authors").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "group_id"}).
			AddRow(1, "ada", 7).
			AddRow(2, "bob", 7))
	// Both authors share group 7: the second row must hit the result cache.
	mock.ExpectQuery("SELECT id, title FROM posts WHERE group_id = ?").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).
			AddRow(10, "first").
			AddRow(11, "second"))

	list, err := e.SelectList(context.Background(), "findAuthors", nil)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, obj := range list {
		author := obj.(*testAuthor)
		require.Len(t, author.Posts, 2)
		assert.Equal(t, "first", author.Posts[0].Title)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLazyNestedQuery(t *testing.T) {
	e, mock := newTestEngine(t, func(reg *mapping.Registry, b *statement.Builder) {
		require.NoError(t, reg.AddRowMap(&mapping.RowMap{
			ID:   "authorMap",
			Type: reflect.TypeOf(testAuthor{}),
			IDProps: []*mapping.PropertyMap{
				{Property: "ID", Column: "id"},
			},
			Props: []*mapping.PropertyMap{
				{Property: "Name", Column: "name"},
				{
					Property:      "Posts",
					NestedQueryID: "findPosts",
					Lazy:          true,
					Composites: []*mapping.PropertyMap{
						{Property: "gid", Column: "group_id"},
					},
				},
			},
		}))
		require.NoError(t, reg.AddRowMap(&mapping.RowMap{
			ID:   "postMap",
			Type: reflect.TypeOf(testPost{}),
			IDProps: []*mapping.PropertyMap{
				{Property: "ID", Column: "id"},
			},
			Props: []*mapping.PropertyMap{
				{Property: "Title", Column: "title"},
			},
		}))
		require.NoError(t, reg.AddStatement(&mapping.Statement{
			ID:        "findAuthors",
			Source:    sqlnode.NewStaticSource("SELECT id, name, group_id FROM authors", b),
			RowMapIDs: []string{"authorMap"},
		}))
		require.NoError(t, reg.AddStatement(&mapping.Statement{
			ID:        "findPosts",
			Source:    sqlnode.NewStaticSource("SELECT id, title FROM posts WHERE group_id = #{gid}", b),
			RowMapIDs: []string{"postMap"},
		}))
	})

	mock.ExpectQuery("SELECT id, name, group_id FROM authors").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "group_id"}).
			AddRow(1, "ada", 7))

	result, err := e.Query(context.Background(), "findAuthors", nil, graph.Options{})
	require.NoError(t, err)
	require.Len(t, result.Objects(), 1)
	author := result.Objects()[0].(*testAuthor)
	assert.Empty(t, author.Posts, "lazy association stays unresolved until triggered")

	// First access triggers the deferred statement.
	mock.ExpectQuery("SELECT id, title FROM posts WHERE group_id = ?").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(10, "first"))
	require.NoError(t, result.Loaders.Load(context.Background(), author, "Posts"))
	require.Len(t, author.Posts, 1)
	assert.Equal(t, "first", author.Posts[0].Title)

	// Second trigger is a no-op.
	require.NoError(t, result.Loaders.Load(context.Background(), author, "Posts"))
	require.Len(t, author.Posts, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNestedQueryResolvesInnerDeferred(t *testing.T) {
	e, mock := newTestEngine(t, func(reg *mapping.Registry, b *statement.Builder) {
		require.NoError(t, reg.AddRowMap(&mapping.RowMap{
			ID:   "authorMap",
			Type: reflect.TypeOf(testAuthor{}),
			IDProps: []*mapping.PropertyMap{
				{Property: "ID", Column: "id"},
			},
			Props: []*mapping.PropertyMap{
				{Property: "Name", Column: "name"},
				{
					Property:      "Posts",
					NestedQueryID: "findPosts",
					Composites: []*mapping.PropertyMap{
						{Property: "gid", Column: "group_id"},
					},
				},
			},
		}))
		require.NoError(t, reg.AddRowMap(&mapping.RowMap{
			ID:   "postMap",
			Type: reflect.TypeOf(testPost{}),
			IDProps: []*mapping.PropertyMap{
				{Property: "ID", Column: "id"},
			},
			Props: []*mapping.PropertyMap{
				{Property: "Title", Column: "title"},
				{
					Property:      "Tags",
					NestedQueryID: "findTags",
					Lazy:          true,
					Composites: []*mapping.PropertyMap{
						{Property: "pid", Column: "id"},
					},
				},
			},
		}))
		require.NoError(t, reg.AddRowMap(&mapping.RowMap{
			ID:   "tagMap",
			Type: reflect.TypeOf(""),
		}))
		require.NoError(t, reg.AddStatement(&mapping.Statement{
			ID:        "findAuthors",
			Source:    sqlnode.NewStaticSource("SELECT id, name, group_id FROM authors", b),
			RowMapIDs: []string{"authorMap"},
		}))
		require.NoError(t, reg.AddStatement(&mapping.Statement{
			ID:        "findPosts",
			Source:    sqlnode.NewStaticSource("SELECT id, title FROM posts WHERE group_id = #{gid}", b),
			RowMapIDs: []string{"postMap"},
		}))
		require.NoError(t, reg.AddStatement(&mapping.Statement{
			ID:        "findTags",
			Source:    sqlnode.NewStaticSource("SELECT label FROM tags WHERE post_id = #{pid}", b),
			RowMapIDs: []string{"tagMap"},
		}))
	})

	mock.ExpectQuery("SELECT id, name, group_id FROM authors").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "group_id"}).
			AddRow(1, "ada", 7))
	mock.ExpectQuery("SELECT id, title FROM posts WHERE group_id = ?").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(10, "first"))
	// A deferred association inside a nested statement has no access path
	// from the outer result, so it must resolve during the nested run.
	mock.ExpectQuery("SELECT label FROM tags WHERE post_id = ?").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"label"}).AddRow("go").AddRow("sql"))

	list, err := e.SelectList(context.Background(), "findAuthors", nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	author := list[0].(*testAuthor)
	require.Len(t, author.Posts, 1)
	assert.Equal(t, []string{"go", "sql"}, author.Posts[0].Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestClose(t *testing.T) {
	e, mock := newTestEngine(t, func(reg *mapping.Registry, b *statement.Builder) {})
	mock.ExpectClose()
	require.NoError(t, e.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
