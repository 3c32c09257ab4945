package record_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samsheth/graphcache/record"
)

func TestEntityID(t *testing.T) {
	id, err := record.EntityID("Post", "1")
	require.NoError(t, err)
	require.Equal(t, record.ID("Post:1"), id)
	require.True(t, id.IsEntity())
	require.Equal(t, "Post", id.Typename())
}

func TestEntityID_Rejects(t *testing.T) {
	_, err := record.EntityID("", "1")
	require.Error(t, err)
	_, err = record.EntityID("Post", "")
	require.Error(t, err)
	_, err = record.EntityID("Po:st", "1")
	require.Error(t, err)
}

func TestScopedID(t *testing.T) {
	parent, err := record.EntityID("Post", "1")
	require.NoError(t, err)
	scoped, err := record.ScopedID(parent, "pageInfo")
	require.NoError(t, err)
	require.Equal(t, record.ID("Post:1.pageInfo"), scoped)
}

func TestFieldKeyID_RootVsEntity(t *testing.T) {
	rootKey, err := record.FieldKeyID(record.RootID, `hero({"id":"1"})`)
	require.NoError(t, err)
	require.Equal(t, record.ID(`hero({"id":"1"})`), rootKey)

	parent, err := record.EntityID("Post", "1")
	require.NoError(t, err)
	nested, err := record.FieldKeyID(parent, "author")
	require.NoError(t, err)
	require.Equal(t, record.ID("Post:1.author"), nested)
}

func TestPageKeyID(t *testing.T) {
	parent, err := record.EntityID("Post", "1")
	require.NoError(t, err)
	pageKey, err := record.PageKeyID(parent, `comments({"first":3})`)
	require.NoError(t, err)
	require.Equal(t, record.ID(`@.Post:1.comments({"first":3})`), pageKey)
}

func TestCanonicalID(t *testing.T) {
	id := record.CanonicalID("", "posts", `{"role":"admin"}`)
	require.Equal(t, record.ID(`@connection.posts({"role":"admin"})`), id)
	require.True(t, id.IsCanonicalConnection())

	scoped := record.CanonicalID("Post:1", "comments", "{}")
	require.Equal(t, record.ID(`@connection.Post:1.comments({})`), scoped)
}

func TestWithTypename(t *testing.T) {
	iface, err := record.EntityID("Node", "1")
	require.NoError(t, err)
	concrete, err := iface.WithTypename("Post")
	require.NoError(t, err)
	require.Equal(t, record.ID("Post:1"), concrete)
}

func TestTypename_NonEntityIDs(t *testing.T) {
	require.Equal(t, "", record.RootID.Typename())
	require.Equal(t, "", record.ID(`@connection.posts({})`).Typename())
	require.Equal(t, "", record.ID("@.Post:1.comments").Typename())
}
