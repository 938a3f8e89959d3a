package pipeline

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"brandlift-pipeline-server/modules/common/database"
	"brandlift-pipeline-server/modules/common/model"
)

type Handler struct {
	db  *database.Client
	rdb *redis.Client
}

func NewHandler(db *database.Client, rdb *redis.Client) *Handler {
	return &Handler{
		db:  db,
		rdb: rdb,
	}
}

// StartJobRequest - POST /api/pipeline/process 요청 바디
type StartJobRequest struct {
	BrandID    string   `json:"brand_id"`
	ProductIDs []string `json:"product_ids"`
	Modes      []string `json:"modes"`
}

// StartJob - Job을 pending으로 기록하고 큐에 넣는다
// 파이프라인 실행은 워커가 담당하므로 요청은 job_id만 받고 바로 끝난다.
func (h *Handler) StartJob(w http.ResponseWriter, r *http.Request) {
	var req StartJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.BrandID == "" || len(req.ProductIDs) == 0 {
		writeError(w, http.StatusBadRequest, "brand_id and product_ids are required")
		return
	}

	// 모드 생략 시 두 트랙 모두 실행
	if len(req.Modes) == 0 {
		req.Modes = []string{ModeEcommerce, ModeLookbook}
	}
	for _, mode := range req.Modes {
		if mode != ModeEcommerce && mode != ModeLookbook {
			writeError(w, http.StatusBadRequest, "invalid mode: "+mode)
			return
		}
	}

	job := &model.PipelineJob{
		BrandID:       req.BrandID,
		Status:        model.StatusPending,
		TotalProducts: len(req.ProductIDs),
		ProductIDs:    req.ProductIDs,
		Modes:         req.Modes,
	}

	jobID, err := h.db.InsertJob(r.Context(), job)
	if err != nil {
		log.Printf("❌ Failed to create job: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	if err := h.rdb.LPush(r.Context(), JobQueueKey, jobID).Err(); err != nil {
		log.Printf("❌ Failed to enqueue job %s: %v", jobID, err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	log.Printf("📤 Job %s queued: %d products", jobID, len(req.ProductIDs))

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": jobID,
		"status": model.StatusPending,
	})
}

// GetJob - GET /api/pipeline/jobs/{jobId}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	job, err := h.db.FetchJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// ListJobs - GET /api/pipeline/jobs?brand_id=...
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	brandID := r.URL.Query().Get("brand_id")
	if brandID == "" {
		writeError(w, http.StatusBadRequest, "brand_id is required")
		return
	}

	jobs, err := h.db.FetchJobs(r.Context(), brandID, 20)
	if err != nil {
		log.Printf("❌ Failed to list jobs for %s: %v", brandID, err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": jobs,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"error": message})
}
