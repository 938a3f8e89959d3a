package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"brandlift-pipeline-server/modules/common/config"
	"brandlift-pipeline-server/modules/common/database"
	"brandlift-pipeline-server/modules/common/gemini"
	redisconn "brandlift-pipeline-server/modules/common/redis"
	"brandlift-pipeline-server/modules/common/storage"
	"brandlift-pipeline-server/modules/pipeline"
	"brandlift-pipeline-server/modules/review"
)

// CORS 헤더 추가
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "brandlift-pipeline",
	})
}

func main() {
	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	ctx := context.Background()

	// 공용 클라이언트 초기화
	rdb, err := redisconn.Connect(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}

	db := database.NewClient()
	if db == nil {
		log.Fatal("❌ Failed to initialize database client")
	}

	store := storage.NewClient()

	generator, err := gemini.NewClient(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini client: %v", err)
	}

	// 파이프라인 구성
	progressHub := pipeline.NewProgressHub()
	pipelineService := pipeline.NewService(db, store, generator)
	runner := pipeline.NewRunner(pipelineService, db, progressHub)

	// Redis Queue Worker 시작 (백그라운드)
	go pipeline.StartWorker(rdb, db, runner)

	// 핸들러 구성
	pipelineHandler := pipeline.NewHandler(db, rdb)
	reviewHandler := review.NewHandler(review.NewService(db))

	// 라우터 설정
	r := mux.NewRouter()
	r.Use(enableCORS)

	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/ws/jobs", progressHub.HandleWebSocket)
	r.HandleFunc("/api/pipeline/process", pipelineHandler.StartJob).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/pipeline/jobs", pipelineHandler.ListJobs).Methods("GET")
	r.HandleFunc("/api/pipeline/jobs/{jobId}", pipelineHandler.GetJob).Methods("GET")
	r.HandleFunc("/api/products/{productId}/flag", reviewHandler.FlagImage).Methods("POST", "OPTIONS")

	log.Printf("🚀 Brandlift Pipeline Server starting on port %s", cfg.Port)
	log.Printf("📡 Progress WebSocket: ws://localhost:%s/ws/jobs", cfg.Port)
	log.Printf("❤️  Health check: http://localhost:%s/health", cfg.Port)

	// 서버 시작
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
