package review

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// FlagRequest - POST /api/products/{productId}/flag 요청 바디
type FlagRequest struct {
	BrandID    string `json:"brand_id"`
	ImageType  string `json:"image_type"`
	ImageIndex *int   `json:"image_index"`
	Flagged    bool   `json:"flagged"`
}

// FlagImage - 이미지 flag 토글
func (h *Handler) FlagImage(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productId"]

	var req FlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.BrandID == "" || req.ImageIndex == nil {
		writeError(w, http.StatusBadRequest, "brand_id and image_index are required")
		return
	}

	productFlag, err := h.service.FlagImage(r.Context(), req.BrandID, productID, req.ImageType, *req.ImageIndex, req.Flagged)
	if err != nil {
		log.Printf("❌ Flag update failed: %v", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"product_id": productID,
		"flagged":    productFlag,
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
