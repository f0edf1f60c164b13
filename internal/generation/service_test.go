package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buntercodes/vid-gen/internal/quota"
	"github.com/buntercodes/vid-gen/pkg/models"
)

// fakeQuota implements QuotaService with scripted behavior.
type fakeQuota struct {
	allowed  bool
	checkErr error

	recorded int
	reserved int
	released int
}

func (f *fakeQuota) CheckQuota(ctx context.Context, userID string) (bool, error) {
	return f.allowed, f.checkErr
}

func (f *fakeQuota) ReserveUsage(ctx context.Context, userID string) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	if f.allowed {
		f.reserved++
	}
	return f.allowed, nil
}

func (f *fakeQuota) ReleaseUsage(ctx context.Context, userID string) error {
	f.released++
	return nil
}

func (f *fakeQuota) RecordUsage(ctx context.Context, userID string) error {
	f.recorded++
	return nil
}

// recordingQuota fails RecordUsage while allowing everything else.
type recordFailQuota struct {
	fakeQuota
}

func (f *recordFailQuota) RecordUsage(ctx context.Context, userID string) error {
	return quota.ErrStoreUnavailable
}

type fakeGenerator struct {
	video []byte
	err   error
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, req *models.GenerationRequest) ([]byte, error) {
	f.calls++
	return f.video, f.err
}

type fakeObjects struct {
	saved   map[string][]byte
	saveErr error
}

func (f *fakeObjects) SaveVideo(ctx context.Context, key string, data []byte) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	f.saved[key] = data
	return nil
}

func (f *fakeObjects) VideoURL(ctx context.Context, key string) (string, error) {
	return "https://storage.local/" + key, nil
}

type fakeLedger struct {
	created []*models.Generation
	updated []*models.Generation
}

func (f *fakeLedger) CreateGeneration(ctx context.Context, gen *models.Generation) error {
	f.created = append(f.created, gen)
	return nil
}

func (f *fakeLedger) UpdateGeneration(ctx context.Context, gen *models.Generation) error {
	f.updated = append(f.updated, gen)
	return nil
}

type fakePublisher struct {
	jobs []*models.GenerationJob
	err  error
}

func (f *fakePublisher) PublishGeneration(ctx context.Context, job *models.GenerationJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func validReq() *models.GenerationRequest {
	return &models.GenerationRequest{
		Prompt:      "a calm ocean at dusk",
		Model:       "wan2.2-t2v-14b",
		AspectRatio: "16:9",
		Duration:    "5s",
	}
}

func TestSubmit_Accepted(t *testing.T) {
	q := &fakeQuota{allowed: true}
	ledger := &fakeLedger{}
	pub := &fakePublisher{}
	svc := NewService(q, &fakeGenerator{}, &fakeObjects{}, ledger, pub, false, nil)

	gen, err := svc.Submit(context.Background(), "user-1", validReq())
	require.NoError(t, err)
	assert.NotEmpty(t, gen.ID)
	assert.Equal(t, models.GenerationStatusQueued, gen.Status)
	assert.Equal(t, "1280x720", gen.Size)
	assert.Len(t, ledger.created, 1)
	require.Len(t, pub.jobs, 1)
	assert.Equal(t, gen.ID, pub.jobs[0].Generation.ID)
}

func TestSubmit_QuotaExceeded(t *testing.T) {
	q := &fakeQuota{allowed: false}
	ledger := &fakeLedger{}
	pub := &fakePublisher{}
	svc := NewService(q, &fakeGenerator{}, &fakeObjects{}, ledger, pub, false, nil)

	_, err := svc.Submit(context.Background(), "user-1", validReq())
	assert.ErrorIs(t, err, quota.ErrQuotaExceeded)
	assert.Empty(t, ledger.created, "a rejected request must not reach the ledger")
	assert.Empty(t, pub.jobs)
}

func TestSubmit_StoreUnavailable(t *testing.T) {
	q := &fakeQuota{checkErr: quota.ErrStoreUnavailable}
	svc := NewService(q, &fakeGenerator{}, &fakeObjects{}, &fakeLedger{}, &fakePublisher{}, false, nil)

	_, err := svc.Submit(context.Background(), "user-1", validReq())
	assert.ErrorIs(t, err, quota.ErrStoreUnavailable)
}

func TestSubmit_Validation(t *testing.T) {
	q := &fakeQuota{allowed: true}
	svc := NewService(q, &fakeGenerator{}, &fakeObjects{}, &fakeLedger{}, &fakePublisher{}, false, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "", validReq())
	assert.ErrorIs(t, err, quota.ErrInvalidUser)

	_, err = svc.Submit(ctx, "user-1", &models.GenerationRequest{Model: "ltx2-t2v"})
	assert.ErrorIs(t, err, ErrInvalidRequest, "missing prompt")

	_, err = svc.Submit(ctx, "user-1", &models.GenerationRequest{Prompt: "x", Model: "no-such-model"})
	assert.ErrorIs(t, err, ErrInvalidRequest, "unknown model")

	_, err = svc.Submit(ctx, "user-1", &models.GenerationRequest{Prompt: "x", Model: "wan2.2-i2v-14b"})
	assert.ErrorIs(t, err, ErrInvalidRequest, "image-to-video without a seed image")

	_, err = svc.Submit(ctx, "user-1", &models.GenerationRequest{Prompt: "x", Model: "ltx2-t2v", AspectRatio: "4:3"})
	assert.ErrorIs(t, err, ErrInvalidRequest, "unsupported aspect ratio")
}

func TestProcess_Success(t *testing.T) {
	q := &fakeQuota{allowed: true}
	gen := &fakeGenerator{video: []byte("mp4")}
	objects := &fakeObjects{}
	ledger := &fakeLedger{}
	svc := NewService(q, gen, objects, ledger, &fakePublisher{}, false, nil)

	record := &models.Generation{ID: "gen-1", UserID: "user-1", Model: "wan2.2-t2v-14b", Status: models.GenerationStatusQueued}
	err := svc.Process(context.Background(), record, validReq())
	require.NoError(t, err)

	assert.Equal(t, models.GenerationStatusCompleted, record.Status)
	assert.Equal(t, "generations/user-1/gen-1.mp4", record.OutputKey)
	assert.NotEmpty(t, record.OutputURL)
	assert.NotNil(t, record.CompletedAt)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, q.recorded, "success charges exactly one credit")
	assert.Contains(t, objects.saved, "generations/user-1/gen-1.mp4")
}

func TestProcess_ExternalFailureDoesNotCharge(t *testing.T) {
	q := &fakeQuota{allowed: true}
	gen := &fakeGenerator{err: &APIError{StatusCode: 500, Message: "model overloaded"}}
	svc := NewService(q, gen, &fakeObjects{}, &fakeLedger{}, &fakePublisher{}, false, nil)

	record := &models.Generation{ID: "gen-1", UserID: "user-1", Model: "wan2.2-t2v-14b"}
	err := svc.Process(context.Background(), record, validReq())
	require.NoError(t, err, "a failed generation is terminal, not retryable")

	assert.Equal(t, models.GenerationStatusFailed, record.Status)
	require.NotNil(t, record.ErrorMsg)
	assert.Contains(t, *record.ErrorMsg, "model overloaded")
	assert.Equal(t, 0, q.recorded, "a failed generation must not consume quota")
}

func TestProcess_QuotaExhaustedSkipsExternalCall(t *testing.T) {
	q := &fakeQuota{allowed: false}
	gen := &fakeGenerator{video: []byte("mp4")}
	svc := NewService(q, gen, &fakeObjects{}, &fakeLedger{}, &fakePublisher{}, false, nil)

	record := &models.Generation{ID: "gen-1", UserID: "user-1", Model: "wan2.2-t2v-14b"}
	err := svc.Process(context.Background(), record, validReq())
	require.NoError(t, err)

	assert.Equal(t, models.GenerationStatusFailed, record.Status)
	assert.Equal(t, 0, gen.calls, "no external spend after a quota refusal")
}

func TestProcess_StoreUnavailableBlocksExternalCall(t *testing.T) {
	q := &fakeQuota{checkErr: quota.ErrStoreUnavailable}
	gen := &fakeGenerator{video: []byte("mp4")}
	svc := NewService(q, gen, &fakeObjects{}, &fakeLedger{}, &fakePublisher{}, false, nil)

	record := &models.Generation{ID: "gen-1", UserID: "user-1", Model: "wan2.2-t2v-14b"}
	err := svc.Process(context.Background(), record, validReq())
	assert.ErrorIs(t, err, quota.ErrStoreUnavailable)
	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, 0, q.recorded)
}

func TestProcess_RecordFailureDoesNotFailGeneration(t *testing.T) {
	q := &recordFailQuota{fakeQuota{allowed: true}}
	svc := NewService(q, &fakeGenerator{video: []byte("mp4")}, &fakeObjects{}, &fakeLedger{}, &fakePublisher{}, false, nil)

	record := &models.Generation{ID: "gen-1", UserID: "user-1", Model: "wan2.2-t2v-14b"}
	err := svc.Process(context.Background(), record, validReq())
	require.NoError(t, err, "the delivered result is never undone by a tracking failure")
	assert.Equal(t, models.GenerationStatusCompleted, record.Status)
}

func TestProcess_StrictReserve(t *testing.T) {
	t.Run("success keeps the reservation", func(t *testing.T) {
		q := &fakeQuota{allowed: true}
		svc := NewService(q, &fakeGenerator{video: []byte("mp4")}, &fakeObjects{}, &fakeLedger{}, &fakePublisher{}, true, nil)

		record := &models.Generation{ID: "gen-1", UserID: "user-1", Model: "wan2.2-t2v-14b"}
		require.NoError(t, svc.Process(context.Background(), record, validReq()))

		assert.Equal(t, 1, q.reserved)
		assert.Equal(t, 0, q.released)
		assert.Equal(t, 0, q.recorded, "strict mode charges via the reservation, not RecordUsage")
	})

	t.Run("external failure releases the reservation", func(t *testing.T) {
		q := &fakeQuota{allowed: true}
		gen := &fakeGenerator{err: errors.New("timeout")}
		svc := NewService(q, gen, &fakeObjects{}, &fakeLedger{}, &fakePublisher{}, true, nil)

		record := &models.Generation{ID: "gen-1", UserID: "user-1", Model: "wan2.2-t2v-14b"}
		require.NoError(t, svc.Process(context.Background(), record, validReq()))

		assert.Equal(t, 1, q.reserved)
		assert.Equal(t, 1, q.released)
		assert.Equal(t, models.GenerationStatusFailed, record.Status)
	})

	t.Run("storage failure releases the reservation", func(t *testing.T) {
		q := &fakeQuota{allowed: true}
		objects := &fakeObjects{saveErr: errors.New("bucket unavailable")}
		svc := NewService(q, &fakeGenerator{video: []byte("mp4")}, objects, &fakeLedger{}, &fakePublisher{}, true, nil)

		record := &models.Generation{ID: "gen-1", UserID: "user-1", Model: "wan2.2-t2v-14b"}
		err := svc.Process(context.Background(), record, validReq())
		assert.Error(t, err)
		assert.Equal(t, 1, q.released)
	})
}
