package documents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	text  string
	err   error
	panic bool
	calls int
}

func (e *fakeExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	e.calls++
	if e.panic {
		panic("corrupt xref")
	}
	return e.text, e.err
}

type failingRepo struct {
	*MemoryRepo
	err error
}

func (r failingRepo) CompleteProcessing(ctx context.Context, id, text string, chunks []string) error {
	return r.err
}

func newProcessor(f *serviceFixture, ex *fakeExtractor) *Processor {
	return &Processor{Repo: f.repo, Store: f.store, Extractor: ex}
}

func TestProcessMarksDocumentReadyWithChunks(t *testing.T) {
	f := newServiceFixture(t)
	doc := f.upload(t, "alice", "Notes")
	text := strings.Repeat("a", 1000)
	p := newProcessor(f, &fakeExtractor{text: text})

	require.NoError(t, p.Process(context.Background(), doc.ID, doc.StorageKey))

	stored, err := f.repo.GetByID(context.Background(), "alice", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, stored.Status)
	require.NotNil(t, stored.ExtractedText)
	assert.Equal(t, text, *stored.ExtractedText)
	require.Len(t, stored.Chunks, 3)
	assert.Len(t, []rune(stored.Chunks[0]), 500)
	assert.Len(t, []rune(stored.Chunks[2]), 100)
}

func TestProcessExtractionFailureMarksFailed(t *testing.T) {
	f := newServiceFixture(t)
	doc := f.upload(t, "alice", "Notes")
	p := newProcessor(f, &fakeExtractor{err: errors.New("no text")})

	require.NoError(t, p.Process(context.Background(), doc.ID, doc.StorageKey))

	stored, err := f.repo.GetByID(context.Background(), "alice", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Nil(t, stored.ExtractedText)
	assert.Empty(t, stored.Chunks)
}

func TestProcessMissingFileMarksFailed(t *testing.T) {
	f := newServiceFixture(t)
	doc := f.upload(t, "alice", "Notes")
	require.NoError(t, f.store.Delete(context.Background(), doc.StorageKey))
	ex := &fakeExtractor{text: "unused"}

	require.NoError(t, newProcessor(f, ex).Process(context.Background(), doc.ID, doc.StorageKey))

	stored, err := f.repo.GetByID(context.Background(), "alice", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Zero(t, ex.calls)
}

func TestProcessOversizedFileMarksFailed(t *testing.T) {
	f := newServiceFixture(t)
	doc := f.upload(t, "alice", "Notes")
	ex := &fakeExtractor{text: "unused"}
	p := newProcessor(f, ex)
	p.MaxBytes = 8

	require.NoError(t, p.Process(context.Background(), doc.ID, doc.StorageKey))

	stored, err := f.repo.GetByID(context.Background(), "alice", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Zero(t, ex.calls)
}

func TestProcessRecoversFromExtractorPanic(t *testing.T) {
	f := newServiceFixture(t)
	doc := f.upload(t, "alice", "Notes")

	require.NotPanics(t, func() {
		err := newProcessor(f, &fakeExtractor{panic: true}).Process(context.Background(), doc.ID, doc.StorageKey)
		require.NoError(t, err)
	})

	stored, err := f.repo.GetByID(context.Background(), "alice", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
}

func TestProcessSkipsDeletedDocument(t *testing.T) {
	f := newServiceFixture(t)
	doc := f.upload(t, "alice", "Notes")
	require.NoError(t, f.repo.Delete(context.Background(), "alice", doc.ID))

	err := newProcessor(f, &fakeExtractor{text: "hello"}).Process(context.Background(), doc.ID, doc.StorageKey)
	assert.NoError(t, err)
}

func TestProcessNeverRevertsSettledDocument(t *testing.T) {
	f := newServiceFixture(t)
	doc := f.upload(t, "alice", "Notes")
	p := newProcessor(f, &fakeExtractor{text: "first"})
	require.NoError(t, p.Process(context.Background(), doc.ID, doc.StorageKey))

	failing := newProcessor(f, &fakeExtractor{err: errors.New("boom")})
	require.NoError(t, failing.Process(context.Background(), doc.ID, doc.StorageKey))

	stored, err := f.repo.GetByID(context.Background(), "alice", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, stored.Status)
	require.NotNil(t, stored.ExtractedText)
	assert.Equal(t, "first", *stored.ExtractedText)
}

func TestProcessReturnsPersistenceErrors(t *testing.T) {
	f := newServiceFixture(t)
	doc := f.upload(t, "alice", "Notes")
	boom := errors.New("connection reset")
	p := &Processor{
		Repo:      failingRepo{MemoryRepo: f.repo, err: boom},
		Store:     f.store,
		Extractor: &fakeExtractor{text: "hello"},
	}

	err := p.Process(context.Background(), doc.ID, doc.StorageKey)
	assert.True(t, errors.Is(err, boom))
}
