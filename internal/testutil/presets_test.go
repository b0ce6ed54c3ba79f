package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreset_Contacts(t *testing.T) {
	db := NewTestDB(t)
	repo := db.ModelRepository()

	NewBuilder(t, repo).WithContacts().Build()

	docs, err := repo.List(context.Background(), "contact")
	require.NoError(t, err)

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	require.Equal(t, []string{"contact-ada", "contact-alan", "contact-grace"}, ids)
}

func TestPreset_ContactsLoadThroughStore(t *testing.T) {
	db := NewTestDB(t)
	NewBuilder(t, db.ModelRepository()).WithContacts().Build()

	s := NewTestStore(t, db.ModelRepository(), Initials)
	ctrl, err := ContactType.Load(context.Background(), s, "contact-grace")
	require.NoError(t, err)

	initials, ok := ctrl.Model().Get("initials")
	require.True(t, ok)
	require.Equal(t, "GBH", initials)

	score, ok := ctrl.Model().Get("score")
	require.True(t, ok)
	require.Equal(t, 9, score)
}
