package docs

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"agora/core/internal/domain"
	"agora/core/internal/ident"
	"agora/core/internal/revision"
	"agora/core/internal/score"
	"agora/core/internal/search"
	"agora/core/internal/store"
)

type fakeRecorder struct {
	mu      sync.Mutex
	commits map[string][]revision.Commit
}

func (f *fakeRecorder) Record(documentID string, snap revision.Snapshot, author, message string) (revision.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commits == nil {
		f.commits = make(map[string][]revision.Commit)
	}
	commit := revision.Commit{Hash: "abc1234", Message: message, Author: author}
	f.commits[documentID] = append([]revision.Commit{commit}, f.commits[documentID]...)
	return commit, nil
}

func (f *fakeRecorder) History(documentID string, limit int) ([]revision.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	history := f.commits[documentID]
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

type capturingArchiver struct {
	mu       sync.Mutex
	archived []domain.Record
	done     chan struct{}
}

func (a *capturingArchiver) Store(_ context.Context, rec domain.Record) error {
	a.mu.Lock()
	a.archived = append(a.archived, rec)
	a.mu.Unlock()
	if a.done != nil {
		close(a.done)
	}
	return nil
}

func newTestService(t *testing.T) (*Service, *score.Aggregator) {
	t.Helper()
	ids := ident.New()
	scores := score.NewAggregator()
	index := search.NewService(search.NewMemory(), nil, zerolog.Nop())
	svc := New(ids, store.NewMemory(ids), index, scores, &fakeRecorder{}, nil, zerolog.Nop())
	return svc, scores
}

func validInput(author string) CreateDocumentInput {
	return CreateDocumentInput{
		Title:         "Blockchain attestation guide",
		Content:       "How validators attest content hashes.",
		Category:      domain.CategoryTechnical,
		Tags:          []string{"blockchain", "validator"},
		AuthorAddress: author,
	}
}

func TestCreateThenGetRoundTrips(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput("0xabc"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Meta_.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Meta_.Version)
	}

	got, err := svc.Get(ctx, created.Meta_.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != created.Title || got.Content != created.Content || got.Category != created.Category {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, created)
	}
}

func TestCreateRejectsEmptyTitleAndUnknownCategory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	in := validInput("0xabc")
	in.Title = ""
	if _, err := svc.Create(ctx, in); !domain.IsCode(err, domain.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for empty title, got %v", err)
	}

	in = validInput("0xabc")
	in.Category = domain.Category("MEMES")
	if _, err := svc.Create(ctx, in); !domain.IsCode(err, domain.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for unknown category, got %v", err)
	}

	// A rejected create must leave the service fully operational.
	if _, err := svc.Create(ctx, validInput("0xabc")); err != nil {
		t.Fatalf("valid create after rejection failed: %v", err)
	}
}

func TestGetCountsViews(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput("0xabc"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for want := int64(1); want <= 3; want++ {
		got, err := svc.Get(ctx, created.Meta_.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.ViewCount != want {
			t.Fatalf("expected view count %d, got %d", want, got.ViewCount)
		}
		if got.Meta_.Version != 1 {
			t.Fatalf("view bump changed version to %d", got.Meta_.Version)
		}
	}
}

func TestGetUnknownIDReturnsNil(t *testing.T) {
	svc, _ := newTestService(t)
	got, err := svc.Get(context.Background(), "doc_missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown id, got %+v", got)
	}
}

func TestUpdateAppliesPatchAndBumpsVersion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput("0xabc"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	title := "Revised guide"
	updated, err := svc.Update(ctx, created.Meta_.ID, UpdateDocumentInput{Title: &title}, "0xabc")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != title || updated.Content != created.Content {
		t.Fatalf("patch applied incorrectly: %+v", updated)
	}
	if updated.Meta_.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Meta_.Version)
	}

	// Updated title must be visible to search immediately.
	resp, err := svc.Search(ctx, search.Filter{Query: "revised"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Total != 1 {
		t.Fatalf("expected updated document in index, got %d hits", resp.Total)
	}
}

func TestUpdateErrorsFollowStoreSemantics(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	title := "x"
	if _, err := svc.Update(ctx, "doc_missing", UpdateDocumentInput{Title: &title}, "0xabc"); !domain.IsCode(err, domain.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}

	created, err := svc.Create(ctx, validInput("0xabc"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Update(ctx, created.Meta_.ID, UpdateDocumentInput{Title: &title}, "0xintruder"); !domain.IsCode(err, domain.CodeNotAuthorized) {
		t.Fatalf("expected NOT_AUTHORIZED, got %v", err)
	}

	stale := UpdateDocumentInput{Title: &title, ExpectedVersion: 99}
	if _, err := svc.Update(ctx, created.Meta_.ID, stale, "0xabc"); !domain.IsCode(err, domain.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestDeleteRemovesFromStoreAndIndex(t *testing.T) {
	ids := ident.New()
	scores := score.NewAggregator()
	index := search.NewService(search.NewMemory(), nil, zerolog.Nop())
	archiver := &capturingArchiver{done: make(chan struct{})}
	svc := New(ids, store.NewMemory(ids), index, scores, nil, archiver, zerolog.Nop())
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput("0xabc"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.Delete(ctx, created.Meta_.ID, "0xabc"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	got, err := svc.Get(ctx, created.Meta_.ID)
	if err != nil || got != nil {
		t.Fatalf("expected nil after delete, got %+v err %v", got, err)
	}
	resp, _ := svc.Search(ctx, search.Filter{})
	if resp.Total != 0 {
		t.Fatalf("expected empty index after delete, got %d", resp.Total)
	}

	<-archiver.done
	archiver.mu.Lock()
	defer archiver.mu.Unlock()
	if len(archiver.archived) != 1 {
		t.Fatalf("expected one archived snapshot, got %d", len(archiver.archived))
	}

	if err := svc.Delete(ctx, "doc_missing", "0xabc"); !domain.IsCode(err, domain.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for unknown delete, got %v", err)
	}
}

func TestConcurrentCreatesYieldDistinctIDs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const n = 20
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := svc.Create(ctx, validInput("0xabc"))
			if err != nil {
				t.Errorf("Create() error = %v", err)
				return
			}
			ids <- doc.Meta_.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{})
	for id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct ids, got %d", n, len(seen))
	}
}

func TestSearchScopesToDocumentsAndRespectsTotal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		in := validInput("0xabc")
		if i%2 == 0 {
			in.Title = "Blockchain deep dive"
		} else {
			// Title does not match, but the default tags still carry
			// "blockchain".
			in.Title = "Wallet onboarding"
		}
		if _, err := svc.Create(ctx, in); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	resp, err := svc.Search(ctx, search.Filter{Query: "blockchain", PageSize: 2})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	// Total counts every match even though the page is truncated.
	if resp.Total != 5 {
		t.Fatalf("expected total 5, got %d", resp.Total)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected page of 2, got %d", len(resp.Items))
	}
}

func TestCreateEmitsParticipation(t *testing.T) {
	svc, scores := newTestService(t)
	ctx := context.Background()

	before := scores.UserScore("0xabc").Total
	if _, err := svc.Create(ctx, validInput("0xabc")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	after := scores.UserScore("0xabc").Total
	if after <= before {
		t.Fatalf("expected participation to increase, got %d -> %d", before, after)
	}
}

func TestHistoryTracksRevisions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput("0xabc"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	title := "second revision"
	if _, err := svc.Update(ctx, created.Meta_.ID, UpdateDocumentInput{Title: &title}, "0xabc"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	history, err := svc.History(ctx, created.Meta_.ID, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(history))
	}
	if history[0].Message != "Update document" {
		t.Fatalf("expected newest revision first, got %q", history[0].Message)
	}
}
