package search

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/core/internal/domain"
)

func seedEntries(t *testing.T, m *Memory, entries ...Entry) {
	t.Helper()
	for _, entry := range entries {
		require.NoError(t, m.Index(entry))
	}
}

func entryAt(id string, offsetSec int) Entry {
	return Entry{
		ID:        id,
		Kind:      domain.KindDocument,
		CreatedAt: time.Date(2024, 6, 1, 0, 0, offsetSec, 0, time.UTC),
	}
}

func TestFreeTextMatchesAcrossTitleContentAndTags(t *testing.T) {
	m := NewMemory()

	a := entryAt("doc_a", 0)
	a.Title = "Blockchain basics"
	b := entryAt("doc_b", 1)
	b.Content = "validators attest blocks on the blockchain"
	c := entryAt("doc_c", 2)
	c.Tags = []string{"Blockchain", "consensus"}
	d := entryAt("doc_d", 3)
	d.Title = "Wallet setup"
	seedEntries(t, m, a, b, c, d)

	resp, err := m.Query(Filter{Query: "BLOCKCHAIN"})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Total)
	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"doc_a", "doc_b", "doc_c"}, ids)
}

func TestTagFilterMatchesAnyListedTag(t *testing.T) {
	m := NewMemory()

	a := entryAt("doc_a", 0)
	a.Tags = []string{"staking"}
	b := entryAt("doc_b", 1)
	b.Tags = []string{"governance"}
	c := entryAt("doc_c", 2)
	seedEntries(t, m, a, b, c)

	resp, err := m.Query(Filter{Tags: []string{"staking", "governance"}})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
}

func TestCategoryAndAuthorFilters(t *testing.T) {
	m := NewMemory()

	a := entryAt("doc_a", 0)
	a.Category = domain.CategoryFAQ
	a.AuthorAddress = "0xaaa"
	b := entryAt("doc_b", 1)
	b.Category = domain.CategoryFAQ
	b.AuthorAddress = "0xbbb"
	c := entryAt("doc_c", 2)
	c.Category = domain.CategoryTechnical
	c.AuthorAddress = "0xaaa"
	seedEntries(t, m, a, b, c)

	resp, err := m.Query(Filter{Category: domain.CategoryFAQ})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)

	resp, err = m.Query(Filter{AuthorAddresses: []string{"0xaaa"}})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)

	resp, err = m.Query(Filter{Category: domain.CategoryFAQ, AuthorAddresses: []string{"0xaaa"}})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "doc_a", resp.Items[0].ID)
}

func TestTotalCountsAllMatchesWhenPageTruncates(t *testing.T) {
	m := NewMemory()
	for i := 0; i < 7; i++ {
		e := entryAt(fmt.Sprintf("doc_%02d", i), i)
		e.Title = "pagination"
		seedEntries(t, m, e)
	}

	resp, err := m.Query(Filter{Query: "pagination", PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 7, resp.Total)
	assert.Len(t, resp.Items, 3)
	require.NotEmpty(t, resp.NextCursor)

	resp, err = m.Query(Filter{Query: "pagination", PageSize: 3, Cursor: resp.NextCursor})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 3)
	assert.Equal(t, "doc_03", resp.Items[0].ID)

	resp, err = m.Query(Filter{Query: "pagination", PageSize: 3, Cursor: resp.NextCursor})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 1)
	assert.Empty(t, resp.NextCursor)
}

func TestIndexUpsertsAndRemoveEvicts(t *testing.T) {
	m := NewMemory()

	e := entryAt("doc_a", 0)
	e.Title = "draft"
	seedEntries(t, m, e)

	e.Title = "published"
	require.NoError(t, m.Index(e))

	resp, err := m.Query(Filter{Query: "published"})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "published", resp.Items[0].Title)

	require.NoError(t, m.Remove("doc_a"))
	resp, err = m.Query(Filter{})
	require.NoError(t, err)
	assert.Zero(t, resp.Total)
}
