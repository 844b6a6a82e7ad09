package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAreExposed(t *testing.T) {
	m := New()
	m.ObserveSubmission("bible_school")
	m.ObserveSubmission("bible_school")
	m.ObservePaymentConfirmed("donation")
	m.ObserveOutbox("send_email", "retried")
	m.ObserveUploadRejected("too_large")
	m.ObserveBroadcast(3)

	if got := testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues("bible_school")); got != 2 {
		t.Fatalf("expected two submissions, got %v", got)
	}
	if got := testutil.ToFloat64(m.BroadcastRecipients); got != 3 {
		t.Fatalf("expected three broadcast recipients, got %v", got)
	}

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	body, _ := io.ReadAll(recorder.Body)
	for _, want := range []string{
		`clm_portal_payments_confirmed_total{payment_type="donation"} 1`,
		`clm_portal_outbox_messages_total{kind="send_email",result="retried"} 1`,
		`clm_portal_uploads_rejected_total{reason="too_large"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
