package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/verdantlab/leaflens-backend/internal/imaging"
	"github.com/verdantlab/leaflens-backend/internal/models"
)

// PipelineState is the per-principal analysis state.
type PipelineState string

const (
	StateIdle          PipelineState = "idle"
	StateImageSelected PipelineState = "image_selected"
	StateAnalyzing     PipelineState = "analyzing"
	StateSucceeded     PipelineState = "succeeded"
	StateFailed        PipelineState = "failed"
)

var (
	ErrNoImage            = errors.New("no image selected")
	ErrAnalysisInProgress = errors.New("analysis already in progress")
)

// PipelineSnapshot is what the client sees of a workspace.
type PipelineSnapshot struct {
	State    PipelineState `json:"state"`
	HasImage bool          `json:"has_image"`
	Result   *Assessment   `json:"result,omitempty"`
	RecordID uint64        `json:"record_id,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// workspace holds one principal's in-flight pipeline state. Access is
// serialized by AnalysisService.mu; the lock is released while the remote
// call runs, with state held at StateAnalyzing to block re-entry.
type workspace struct {
	state        PipelineState
	imageDataURI string
	result       *Assessment
	recordID     uint64
	errMsg       string
}

type AnalysisService struct {
	db       *gorm.DB
	analyzer Analyzer

	mu         sync.Mutex
	workspaces map[uuid.UUID]*workspace
}

func NewAnalysisService(db *gorm.DB, analyzer Analyzer) *AnalysisService {
	return &AnalysisService{
		db:         db,
		analyzer:   analyzer,
		workspaces: make(map[uuid.UUID]*workspace),
	}
}

// ws returns the workspace for a principal, creating it in StateIdle.
// Caller must hold s.mu.
func (s *AnalysisService) ws(userID uuid.UUID) *workspace {
	w, ok := s.workspaces[userID]
	if !ok {
		w = &workspace{state: StateIdle}
		s.workspaces[userID] = w
	}
	return w
}

// SelectImage stores the uploaded image as a data URI and resets the
// workspace, discarding any prior result or error. Valid from any state.
func (s *AnalysisService) SelectImage(userID uuid.UUID, data []byte, mimeType string) PipelineSnapshot {
	uri := imaging.EncodeDataURI(data, mimeType)

	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.ws(userID)
	w.imageDataURI = uri
	w.state = StateImageSelected
	w.result = nil
	w.recordID = 0
	w.errMsg = ""

	return snapshotOf(w)
}

// StartAnalysis drives one attempt through the pipeline: guard, invoke the
// inference capability, then either persist a history record (success) or
// capture the error (failure). The analyzing state is always cleared on exit.
func (s *AnalysisService) StartAnalysis(ctx context.Context, principal *models.User) (PipelineSnapshot, error) {
	s.mu.Lock()
	w := s.ws(principal.ID)
	if w.state == StateAnalyzing {
		snap := snapshotOf(w)
		s.mu.Unlock()
		return snap, ErrAnalysisInProgress
	}
	if w.imageDataURI == "" {
		snap := snapshotOf(w)
		s.mu.Unlock()
		return snap, ErrNoImage
	}
	uri := w.imageDataURI
	w.state = StateAnalyzing
	w.result = nil
	w.recordID = 0
	w.errMsg = ""
	s.mu.Unlock()

	imageBytes, mimeType, err := imaging.DecodeDataURI(uri)
	if err != nil {
		return s.fail(principal.ID, "Selected image could not be decoded."), nil
	}

	assessment, raw, err := s.analyzer.Analyze(ctx, imageBytes, mimeType)
	if err != nil {
		slog.Error("leaf analysis failed", "action", "analyze", "user_id", principal.ID.String(), "error", err)
		return s.fail(principal.ID, "Analysis failed: "+err.Error()), nil
	}

	record := models.Analysis{
		UserID:             principal.ID,
		UserEmail:          principal.Email,
		PlantName:          assessment.PlantName,
		IsHealthy:          assessment.IsHealthy,
		DiseaseName:        assessment.DiseaseName,
		ConfidenceScore:    assessment.ConfidenceScore,
		Description:        assessment.Description,
		PossibleCauses:     assessment.PossibleCauses,
		RecommendedActions: assessment.RecommendedActions,
		ImageDataURI:       uri,
		RawResponse:        datatypes.JSON(raw),
		AnalyzedAt:         time.Now(),
	}
	if err := s.db.Create(&record).Error; err != nil {
		slog.Error("failed to persist analysis record", "action", "analyze", "user_id", principal.ID.String(), "error", err)
		return s.fail(principal.ID, "Analysis succeeded but could not be saved."), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	w = s.ws(principal.ID)
	w.state = StateSucceeded
	w.result = assessment
	w.recordID = record.ID
	w.errMsg = ""
	return snapshotOf(w), nil
}

// State returns the current pipeline snapshot for a principal.
func (s *AnalysisService) State(userID uuid.UUID) PipelineSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotOf(s.ws(userID))
}

func (s *AnalysisService) fail(userID uuid.UUID, msg string) PipelineSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.ws(userID)
	w.state = StateFailed
	w.result = nil
	w.errMsg = msg
	return snapshotOf(w)
}

func snapshotOf(w *workspace) PipelineSnapshot {
	return PipelineSnapshot{
		State:    w.state,
		HasImage: w.imageDataURI != "",
		Result:   w.result,
		RecordID: w.recordID,
		Error:    w.errMsg,
	}
}
