package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
)

func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  WARNING: This is a STUB PLATFORM for local testing ONLY. ║")
	log.Println("║  All metadata is HARDCODED and nothing is persisted.      ║")
	log.Println("║                                                           ║")
	log.Println("║  Point the import server at it with:                      ║")
	log.Println("║    PLATFORM_BASE_URL=http://localhost:8081                ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")
	log.Println("")
	log.Println("Starting CRM STUB PLATFORM (hardcoded responses)...")

	stub := newStub()
	handler := corsMiddleware(stub.routes())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	server := &http.Server{
		Addr:         "0.0.0.0:" + port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Server listening on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// =============================================================================
// Hardcoded metadata
// =============================================================================

type object struct {
	Label   string `json:"label"`
	APIName string `json:"apiName"`
}

type field struct {
	Label    string `json:"label"`
	APIName  string `json:"apiName"`
	IsLookup bool   `json:"isLookup"`
}

type lookup struct {
	FieldList        []field `json:"fieldList"`
	LookupObjectName string  `json:"lookupObjectName"`
}

var objects = []object{
	{Label: "Account", APIName: "Account"},
	{Label: "Contact", APIName: "Contact"},
	{Label: "User", APIName: "User"},
}

var fields = map[string][]field{
	"Account": {
		{Label: "Account ID", APIName: "Id"},
		{Label: "Account Name", APIName: "Name"},
		{Label: "Account Number", APIName: "AccountNumber"},
		{Label: "Industry", APIName: "Industry"},
		{Label: "Owner ID", APIName: "OwnerId", IsLookup: true},
		{Label: "Parent Account ID", APIName: "ParentId", IsLookup: true},
	},
	"Contact": {
		{Label: "Contact ID", APIName: "Id"},
		{Label: "First Name", APIName: "FirstName"},
		{Label: "Last Name", APIName: "LastName"},
		{Label: "Email", APIName: "Email"},
		{Label: "Account ID", APIName: "AccountId", IsLookup: true},
		{Label: "Reports To ID", APIName: "ReportsToId", IsLookup: true},
	},
	"User": {
		{Label: "User ID", APIName: "Id"},
		{Label: "Username", APIName: "Username"},
		{Label: "Email", APIName: "Email"},
		{Label: "Federation ID", APIName: "FederationIdentifier"},
	},
}

// lookupTargets maps "<object>.<field>" to the object the lookup points at.
var lookupTargets = map[string]string{
	"Account.OwnerId":     "User",
	"Account.ParentId":    "Account",
	"Contact.AccountId":   "Account",
	"Contact.ReportsToId": "Contact",
}

// =============================================================================
// Handlers
// =============================================================================

type stub struct {
	mu      sync.Mutex
	configs int
	batches int
	records int
	jobs    []json.RawMessage
}

func newStub() *stub { return &stub{} }

func (s *stub) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"crm-stub-platform","warning":"THIS IS A STUB - responses are hardcoded"}`))
	})

	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /objects", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, objects)
	})
	mux.HandleFunc("GET /objects/{object}/fields", handleFields)
	mux.HandleFunc("GET /objects/{object}/lookups/{field}", handleLookup)
	mux.HandleFunc("POST /configurations", s.handleConfiguration)
	mux.HandleFunc("POST /ingest/batches", s.handleBatch)
	mux.HandleFunc("POST /jobs/status", s.handleJobStatus)
	mux.HandleFunc("POST /exports", handleExport)
	return mux
}

func handleFields(w http.ResponseWriter, r *http.Request) {
	list, ok := fields[r.PathValue("object")]
	if !ok {
		http.Error(w, "unknown object", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func handleLookup(w http.ResponseWriter, r *http.Request) {
	target, ok := lookupTargets[r.PathValue("object")+"."+r.PathValue("field")]
	if !ok {
		http.Error(w, "not a lookup field", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, lookup{FieldList: fields[target], LookupObjectName: target})
}

func (s *stub) handleConfiguration(w http.ResponseWriter, r *http.Request) {
	var cfg struct {
		ObjectName string            `json:"objectName"`
		Mapping    []json.RawMessage `json:"mapping"`
	}
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil || cfg.ObjectName == "" {
		http.Error(w, "invalid configuration", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.configs++
	s.mu.Unlock()
	log.Printf("Saved configuration for %s (%d columns)", cfg.ObjectName, len(cfg.Mapping))
	writeJSON(w, http.StatusCreated, map[string]string{"status": "saved"})
}

func (s *stub) handleBatch(w http.ResponseWriter, r *http.Request) {
	var batch struct {
		JSONDataList []string `json:"jsonDataList"`
		FileName     string   `json:"fileName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, "invalid batch", http.StatusBadRequest)
		return
	}
	for _, rec := range batch.JSONDataList {
		if !json.Valid([]byte(rec)) {
			http.Error(w, "record is not a JSON object", http.StatusBadRequest)
			return
		}
	}
	s.mu.Lock()
	s.batches++
	s.records += len(batch.JSONDataList)
	s.mu.Unlock()
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(batch.JSONDataList)})
}

func (s *stub) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	var report json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		http.Error(w, "invalid report", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.jobs = append(s.jobs, report)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func handleExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ObjectName string   `json:"objectName"`
		FieldNames []string `json:"fieldNames"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.FieldNames) == 0 {
		http.Error(w, "invalid export request", http.StatusBadRequest)
		return
	}
	if _, ok := fields[req.ObjectName]; !ok {
		http.Error(w, "unknown object", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	fmt.Fprintln(w, strings.Join(req.FieldNames, ","))
}

func (s *stub) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "stub_configurations_total %d\n", s.configs)
	fmt.Fprintf(w, "stub_batches_total %d\n", s.batches)
	fmt.Fprintf(w, "stub_records_total %d\n", s.records)
	fmt.Fprintf(w, "stub_job_reports_total %d\n", len(s.jobs))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("X-Server-Identity", "crm-stub-platform")
		w.Header().Set("X-Server-Warning", "STUB - hardcoded responses only")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
