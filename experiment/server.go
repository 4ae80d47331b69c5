package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/husobee/vestigo"

	logger "smartsim.io/smartsim-hpc/logger"
)

// StepStatus is one row of the status endpoint.
type StepStatus struct {
	Name       string `json:"name"`
	Entity     string `json:"entity"`
	Type       string `json:"type"`
	RunID      int    `json:"run_id"`
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	ReturnCode int    `json:"returncode"`
}

// Statuses returns the last known status of every launched step, without
// polling the launcher.
func (e *Experiment) Statuses() []StepStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	var rows []StepStatus
	for name, jobs := range e.jobs {
		for _, j := range jobs {
			rows = append(rows, StepStatus{
				Name:       j.step.Name,
				Entity:     name,
				Type:       j.entity.Type(),
				RunID:      j.runID,
				JobID:      j.handle.ID,
				Status:     j.result.Status.String(),
				ReturnCode: j.result.ReturnCode,
			})
		}
	}
	sort.Slice(rows, func(i, k int) bool {
		if rows[i].RunID != rows[k].RunID {
			return rows[i].RunID < rows[k].RunID
		}
		return rows[i].Name < rows[k].Name
	})
	return rows
}

func jsonResponse(w http.ResponseWriter, src interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(src); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (e *Experiment) statusHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, e.Statuses())
}

// statusNameHandler matches an entity name or the name of one of its steps.
func (e *Experiment) statusNameHandler(w http.ResponseWriter, r *http.Request) {
	name := vestigo.Param(r, "name")
	var rows []StepStatus
	for _, row := range e.Statuses() {
		if row.Entity == name || row.Name == name {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		http.Error(w, "entity not started: "+name, http.StatusNotFound)
		return
	}
	jsonResponse(w, rows)
}

// Handler serves GET /status and GET /status/:name.
func (e *Experiment) Handler() http.Handler {
	router := vestigo.NewRouter()
	router.Get("/status", e.statusHandler)
	router.Get("/status/:name", e.statusNameHandler)
	return router
}

// Serve runs the status endpoint on addr until ctx ends.
func (e *Experiment) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: e.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	logger.InfoPrintf("experiment %s: status at http://%s/status", e.name, ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
