package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Daler-web-dev/hisbbot/internal/core"
	ports "github.com/Daler-web-dev/hisbbot/internal/sheets"

	goption "google.golang.org/api/option"
)

var rowRange = regexp.MustCompile(`!A(\d+):G\d+`)

// fakeSheet emulates the subset of the Sheets values API the client uses.
type fakeSheet struct {
	mu   sync.Mutex
	rows [][]any
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "!A:A"):
		values := make([][]any, 0, len(f.rows))
		for _, row := range f.rows {
			if len(row) == 0 {
				values = append(values, []any{})
				continue
			}
			values = append(values, []any{row[0]})
		}
		for len(values) > 0 && len(values[len(values)-1]) == 0 {
			values = values[:len(values)-1]
		}
		json.NewEncoder(w).Encode(map[string]any{"values": values})
	case r.Method == http.MethodPut:
		n := f.rowNumber(path)
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || n == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		for len(f.rows) < n {
			f.rows = append(f.rows, nil)
		}
		f.rows[n-1] = body.Values[0]
		w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		if n := f.rowNumber(path); n > 0 && n <= len(f.rows) {
			f.rows[n-1] = nil
		}
		w.Write([]byte(`{}`))
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func (f *fakeSheet) rowNumber(path string) int {
	m := rowRange.FindStringSubmatch(path)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func (f *fakeSheet) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.rows))
	for i, row := range f.rows {
		if len(row) > 0 {
			out[i], _ = row[0].(string)
		}
	}
	return out
}

func newTestClient(t *testing.T) (*Client, *fakeSheet) {
	t.Helper()
	sheet := &fakeSheet{}
	srv := httptest.NewServer(sheet)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), "sheet-id", "",
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, sheet
}

func row(id string) ports.MirrorRow {
	return ports.MirrorRow{
		ID:         id,
		CreatedAt:  time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC),
		TelegramID: 42,
		Polarity:   core.Expense,
		Amount:     decimal.NewFromInt(30000),
		Category:   "Еда вне дома",
	}
}

func TestAppendAndRemoveTransaction(t *testing.T) {
	c, sheet := newTestClient(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "a"} {
		if err := c.AppendTransaction(ctx, row(id)); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	if got := sheet.ids(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("re-appending must overwrite, got %v", got)
	}

	if err := c.RemoveTransaction(ctx, "a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := c.RemoveTransaction(ctx, "missing"); err != nil {
		t.Fatalf("removing a missing row must succeed: %v", err)
	}
	if got := sheet.ids(); got[0] != "" || got[1] != "b" {
		t.Fatalf("expected first row cleared, got %v", got)
	}

	if err := c.AppendTransaction(ctx, row("c")); err != nil {
		t.Fatalf("append c: %v", err)
	}
	if got := sheet.ids(); len(got) != 3 || got[2] != "c" {
		t.Fatalf("expected c after the last used row, got %v", got)
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ", "", goption.WithoutAuthentication())
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewWithServiceAccountMissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewWithServiceAccount(context.Background(), "sheet-id", "")
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestMirrorRowValues(t *testing.T) {
	r := row("tx-1")
	r.Description = "кофе"
	got := r.Values()
	want := []any{"tx-1", "2025-02-01T10:00:00Z", int64(42), "EXPENSE", "30000", "Еда вне дома", "кофе"}
	if len(got) != len(want) {
		t.Fatalf("expected %d cells, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cell %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}
