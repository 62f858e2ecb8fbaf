package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdantlab/leaflens-backend/internal/models"
	"gorm.io/gorm"
)

type stubAnalyzer struct {
	result *Assessment
	err    error
	calls  atomic.Int32

	// optional synchronization for re-entrancy tests
	started chan struct{}
	release chan struct{}
}

func (s *stubAnalyzer) Analyze(ctx context.Context, imageBytes []byte, mimeType string) (*Assessment, []byte, error) {
	s.calls.Add(1)
	if s.started != nil {
		close(s.started)
	}
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.result, []byte(`{}`), nil
}

func blightAssessment() *Assessment {
	return &Assessment{
		PlantName:          "Tomato",
		IsHealthy:          false,
		DiseaseName:        "Blight",
		ConfidenceScore:    0.92,
		Description:        "Dark lesions on leaf margins.",
		PossibleCauses:     []string{"Phytophthora infestans", "prolonged leaf wetness"},
		RecommendedActions: []string{"Remove affected leaves", "Apply copper fungicide"},
	}
}

func testPrincipal(email string) *models.User {
	return &models.User{ID: uuid.New(), Email: email, Role: models.RoleUser}
}

func historyCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.Analysis{}).Count(&count).Error)
	return count
}

func TestStartAnalysis_WithoutImageFails(t *testing.T) {
	db := newTestDB(t)
	svc := NewAnalysisService(db, &stubAnalyzer{result: blightAssessment()})
	alice := testPrincipal("alice@x.com")

	snap, err := svc.StartAnalysis(context.Background(), alice)
	require.ErrorIs(t, err, ErrNoImage)
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, int64(0), historyCount(t, db))
}

func TestSelectImage_ResetsWorkspace(t *testing.T) {
	db := newTestDB(t)
	stub := &stubAnalyzer{result: blightAssessment()}
	svc := NewAnalysisService(db, stub)
	alice := testPrincipal("alice@x.com")

	svc.SelectImage(alice.ID, []byte("leaf-1"), "image/png")
	snap, err := svc.StartAnalysis(context.Background(), alice)
	require.NoError(t, err)
	require.Equal(t, StateSucceeded, snap.State)

	// Selecting a new image discards the prior result.
	snap = svc.SelectImage(alice.ID, []byte("leaf-2"), "image/png")
	assert.Equal(t, StateImageSelected, snap.State)
	assert.True(t, snap.HasImage)
	assert.Nil(t, snap.Result)
	assert.Empty(t, snap.Error)
}

func TestStartAnalysis_SuccessAppendsOneRecord(t *testing.T) {
	db := newTestDB(t)
	svc := NewAnalysisService(db, &stubAnalyzer{result: blightAssessment()})
	alice := testPrincipal("alice@x.com")

	svc.SelectImage(alice.ID, []byte("leaf-bytes"), "image/jpeg")

	before := time.Now()
	snap, err := svc.StartAnalysis(context.Background(), alice)
	require.NoError(t, err)

	assert.Equal(t, StateSucceeded, snap.State)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "Blight", snap.Result.DiseaseName)
	assert.InDelta(t, 0.92, snap.Result.ConfidenceScore, 1e-9)

	require.Equal(t, int64(1), historyCount(t, db))

	var record models.Analysis
	require.NoError(t, db.First(&record, snap.RecordID).Error)
	assert.Equal(t, "alice@x.com", record.UserEmail)
	assert.Equal(t, alice.ID, record.UserID)
	assert.False(t, record.IsHealthy)
	assert.Contains(t, record.ImageDataURI, "data:image/jpeg;base64,")
	assert.False(t, record.AnalyzedAt.Before(before.Truncate(time.Second)))
}

func TestStartAnalysis_RecordIDsIncreaseNewestFirst(t *testing.T) {
	db := newTestDB(t)
	svc := NewAnalysisService(db, &stubAnalyzer{result: blightAssessment()})
	alice := testPrincipal("alice@x.com")

	var ids []uint64
	for i := 0; i < 3; i++ {
		svc.SelectImage(alice.ID, []byte{byte(i)}, "image/png")
		snap, err := svc.StartAnalysis(context.Background(), alice)
		require.NoError(t, err)
		ids = append(ids, snap.RecordID)
	}

	assert.Less(t, ids[0], ids[1])
	assert.Less(t, ids[1], ids[2])
}

func TestStartAnalysis_InferenceFailure(t *testing.T) {
	db := newTestDB(t)
	stub := &stubAnalyzer{err: ErrInference}
	svc := NewAnalysisService(db, stub)
	alice := testPrincipal("alice@x.com")

	svc.SelectImage(alice.ID, []byte("leaf"), "image/png")
	snap, err := svc.StartAnalysis(context.Background(), alice)
	require.NoError(t, err)

	assert.Equal(t, StateFailed, snap.State)
	assert.NotEmpty(t, snap.Error)
	assert.Nil(t, snap.Result)
	assert.Equal(t, int64(0), historyCount(t, db))

	// The analyzing flag is cleared: a retry is allowed and can succeed.
	stub.err = nil
	stub.result = blightAssessment()
	snap, err = svc.StartAnalysis(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, snap.State)
}

func TestStartAnalysis_RejectsConcurrentAttempt(t *testing.T) {
	db := newTestDB(t)
	stub := &stubAnalyzer{
		result:  blightAssessment(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewAnalysisService(db, stub)
	alice := testPrincipal("alice@x.com")

	svc.SelectImage(alice.ID, []byte("leaf"), "image/png")

	firstDone := make(chan PipelineSnapshot, 1)
	go func() {
		snap, _ := svc.StartAnalysis(context.Background(), alice)
		firstDone <- snap
	}()

	<-stub.started
	assert.Equal(t, StateAnalyzing, svc.State(alice.ID).State)

	_, err := svc.StartAnalysis(context.Background(), alice)
	assert.ErrorIs(t, err, ErrAnalysisInProgress)

	close(stub.release)
	snap := <-firstDone
	assert.Equal(t, StateSucceeded, snap.State)
	assert.Equal(t, int32(1), stub.calls.Load())
	assert.Equal(t, int64(1), historyCount(t, db))
}

func TestState_IsPerPrincipal(t *testing.T) {
	db := newTestDB(t)
	svc := NewAnalysisService(db, &stubAnalyzer{result: blightAssessment()})
	alice := testPrincipal("alice@x.com")
	bob := testPrincipal("bob@x.com")

	svc.SelectImage(alice.ID, []byte("leaf"), "image/png")

	assert.Equal(t, StateImageSelected, svc.State(alice.ID).State)
	assert.Equal(t, StateIdle, svc.State(bob.ID).State)
}
