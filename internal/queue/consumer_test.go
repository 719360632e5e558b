package queue

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestFormatPaymentLine(t *testing.T) {
	line := FormatPaymentLine(PaymentRecordedEvent{
		PaymentID:     "p1",
		TuitionID:     "t1",
		TuitionTitle:  "Class 9 Physics",
		StudentEmail:  "s@x.io",
		TutorEmail:    "x@x.io",
		Amount:        1500,
		Currency:      "usd",
		TransactionID: "pi_1",
		Rejected:      2,
		PaidAt:        "2025-05-01T10:00:00Z",
	})
	for _, want := range []string{"payment_id=p1", `tuition="Class 9 Physics"`, "amount=1500.00 usd", "rejected=2"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("line must end with a newline")
	}
}

func TestHandleAppendsLines(t *testing.T) {
	dir := t.TempDir()
	c := &PaymentConsumer{LogPath: filepath.Join(dir, "logs", "payments.log"), Logger: zap.NewNop()}

	body := []byte(`{"payment_id":"p1","tuition_id":"t1","amount":10,"currency":"usd"}`)
	for i := 0; i < 2; i++ {
		if err := c.handle(body); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	data, err := os.ReadFile(c.LogPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n := strings.Count(string(data), "\n"); n != 2 {
		t.Fatalf("lines = %d, want 2", n)
	}

	if err := c.handle([]byte("not json")); err == nil {
		t.Fatal("malformed body should fail")
	}
}
