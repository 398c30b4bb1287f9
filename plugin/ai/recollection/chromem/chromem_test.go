package chromem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/personaflow/plugin/ai"
	"github.com/hrygo/personaflow/plugin/ai/recollection"
)

func fixtures() []*recollection.Recollection {
	return []*recollection.Recollection{
		{Kind: recollection.KindFamily, Title: "家庭聚餐", Content: "小时候家里很热闹，家人常常一起吃饭"},
		{Kind: recollection.KindWork, Title: "第一份工作", Content: "刚工作时每天加班到很晚"},
		{Kind: recollection.KindHobby, Title: "周末爱好", Content: "最大的爱好是爬山"},
	}
}

func newStore() *Store {
	return New(ai.NewMockEmbeddingService("家", "工作", "爱好"))
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	_, err := s.InsertBatch(ctx, "teacher", fixtures())
	require.NoError(t, err)

	got, err := s.Query(ctx, "teacher", "你小时候家里什么样", recollection.QueryOptions{K: 3, MinRelevance: 0.3})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "家庭聚餐", got[0].Title)
	assert.Greater(t, got[0].Relevance, 0.9)

	// K larger than the collection is clamped.
	all, err := s.Query(ctx, "teacher", "家", recollection.QueryOptions{K: 10})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, recollection.KindFamily, all[0].Kind)
}

func TestQueryUnknownPersona(t *testing.T) {
	got, err := newStore().Query(context.Background(), "nobody", "家", recollection.QueryOptions{K: 3})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCRUD(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	ids, err := s.InsertBatch(ctx, "teacher", fixtures())
	require.NoError(t, err)

	got, err := s.Get(ctx, "teacher", ids[0])
	require.NoError(t, err)
	assert.Equal(t, "家庭聚餐", got.Title)
	created := got.CreatedTs

	_, err = s.Get(ctx, "teacher", "missing")
	assert.ErrorIs(t, err, recollection.ErrNotFound)
	_, err = s.Get(ctx, "nobody", ids[0])
	assert.ErrorIs(t, err, recollection.ErrNotFound)

	got.Title = "年夜饭"
	require.NoError(t, s.Update(ctx, "teacher", got))
	updated, err := s.Get(ctx, "teacher", ids[0])
	require.NoError(t, err)
	assert.Equal(t, "年夜饭", updated.Title)
	assert.Equal(t, created, updated.CreatedTs)

	list, err := s.List(ctx, "teacher")
	require.NoError(t, err)
	assert.Len(t, list, 3)

	require.NoError(t, s.Delete(ctx, "teacher", ids[1]))
	assert.ErrorIs(t, s.Delete(ctx, "teacher", ids[1]), recollection.ErrNotFound)

	existed, err := s.DeleteAll(ctx, "teacher")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = s.DeleteAll(ctx, "teacher")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestInsertRejectsTakenID(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	ids, err := s.InsertBatch(ctx, "teacher", fixtures())
	require.NoError(t, err)

	_, err = s.Insert(ctx, "teacher", &recollection.Recollection{ID: ids[0], Kind: recollection.KindGrowth, Title: "新的", Content: "换掉原来的"})
	assert.ErrorIs(t, err, recollection.ErrDuplicateID)

	got, err := s.Get(ctx, "teacher", ids[0])
	require.NoError(t, err)
	assert.Equal(t, "家庭聚餐", got.Title)

	_, err = s.InsertBatch(ctx, "teacher", []*recollection.Recollection{
		{ID: "same", Title: "一", Content: "一"},
		{ID: "same", Title: "二", Content: "二"},
	})
	assert.ErrorIs(t, err, recollection.ErrDuplicateID)

	list, err := s.List(ctx, "teacher")
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestUpdateKeepsRecordVisible(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	ids, err := s.InsertBatch(ctx, "teacher", fixtures())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 200; i++ {
			r, err := s.Get(ctx, "teacher", ids[0])
			if err != nil {
				done <- err
				return
			}
			if err := s.Update(ctx, "teacher", r); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			return
		default:
		}
		_, err := s.Get(ctx, "teacher", ids[0])
		require.NoError(t, err)
		list, err := s.List(ctx, "teacher")
		require.NoError(t, err)
		require.Len(t, list, 3)
	}
}

func TestPersistentReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	embedder := ai.NewMockEmbeddingService("家", "工作", "爱好")

	s, err := NewPersistent(dir, embedder)
	require.NoError(t, err)
	ids, err := s.InsertBatch(ctx, "teacher", fixtures()[:1])
	require.NoError(t, err)

	reopened, err := NewPersistent(dir, embedder)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "teacher", ids[0])
	require.NoError(t, err)
	assert.Equal(t, "家庭聚餐", got.Title)
}
