package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c *Collector, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestCollector_RecordMethods(t *testing.T) {
	c := NewCollector()

	c.PatientCreated()
	c.PatientCreated()
	c.PatientDeleted()
	c.DiagnosisCreated("oral")
	c.Uploaded("base64", 2048)
	c.StorageOp("remove", errors.New("boom"))
	c.StorageOp("upload", nil)

	if v := counterValue(t, c, "lesionscan_records_patients_created_total", nil); v != 2 {
		t.Errorf("expected 2 patients created, got %v", v)
	}
	if v := counterValue(t, c, "lesionscan_records_patients_deleted_total", nil); v != 1 {
		t.Errorf("expected 1 patient deleted, got %v", v)
	}
	if v := counterValue(t, c, "lesionscan_records_diagnoses_created_total", map[string]string{"type": "oral"}); v != 1 {
		t.Errorf("expected 1 oral diagnosis, got %v", v)
	}
	if v := counterValue(t, c, "lesionscan_uploads_total", map[string]string{"source": "base64"}); v != 1 {
		t.Errorf("expected 1 base64 upload, got %v", v)
	}
	if v := counterValue(t, c, "lesionscan_storage_operations_total", map[string]string{"op": "remove", "result": "error"}); v != 1 {
		t.Errorf("expected 1 failed remove, got %v", v)
	}
	if v := counterValue(t, c, "lesionscan_storage_operations_total", map[string]string{"op": "upload", "result": "ok"}); v != 1 {
		t.Errorf("expected 1 successful upload, got %v", v)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.PatientCreated()
	c.PatientDeleted()
	c.DiagnosisCreated("gastric")
	c.Uploaded("multipart", 10)
	c.StorageOp("upload", nil)
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.PatientCreated()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lesionscan_records_patients_created_total 1") {
		t.Error("expected patients counter in exposition output")
	}
}
