package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordJobRun(t *testing.T) {
	before := testutil.ToFloat64(jobRuns.WithLabelValues("session", "true"))
	RecordJobRun("session", 0, true)
	RecordJobRun("session", time.Second, true)

	if got := testutil.ToFloat64(jobRuns.WithLabelValues("session", "true")); got != before+2 {
		t.Errorf("expected %v runs, got %v", before+2, got)
	}

	RecordJobRun("", time.Second, false)
	if got := testutil.ToFloat64(jobRuns.WithLabelValues("unknown", "false")); got < 1 {
		t.Errorf("expected empty job name to be recorded as unknown, got %v", got)
	}
}

func TestRecordCounters(t *testing.T) {
	t.Run("user results", func(t *testing.T) {
		before := testutil.ToFloat64(userResults.WithLabelValues("failed"))
		RecordUserResult("failed")
		if got := testutil.ToFloat64(userResults.WithLabelValues("failed")); got != before+1 {
			t.Errorf("expected %v, got %v", before+1, got)
		}
	})

	t.Run("refreshes", func(t *testing.T) {
		before := testutil.ToFloat64(credentialRefreshes.WithLabelValues("spotify", "false"))
		RecordRefresh("spotify", false)
		if got := testutil.ToFloat64(credentialRefreshes.WithLabelValues("spotify", "false")); got != before+1 {
			t.Errorf("expected %v, got %v", before+1, got)
		}
	})

	t.Run("tokens issued", func(t *testing.T) {
		before := testutil.ToFloat64(tokensIssued)
		RecordTokensIssued(3)
		if got := testutil.ToFloat64(tokensIssued); got != before+3 {
			t.Errorf("expected %v, got %v", before+3, got)
		}
	})
}

func TestHandler(t *testing.T) {
	RecordTokensIssued(1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "echo_sessions_tokens_issued_total") {
		t.Error("expected tokens issued counter in exposition")
	}
}

func TestInstrumentHandler(t *testing.T) {
	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/healthz", "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz/deep", nil))

	if got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/healthz", "418")); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}
}

func TestCanonicalPath(t *testing.T) {
	tc := []struct{ in, want string }{
		{"", "/"},
		{"/", "/"},
		{"/healthz", "/healthz"},
		{"/auth/callback/", "/auth"},
	}
	for _, tt := range tc {
		if got := canonicalPath(tt.in); got != tt.want {
			t.Errorf("canonicalPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
