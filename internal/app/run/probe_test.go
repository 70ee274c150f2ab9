package run

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/John-Robertt/m3u8gen/internal/domain"
)

func TestProbe_MarksUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok/240p.m3u8" {
			_, _ = w.Write([]byte("#EXTM3U\n"))
			return
		}
		http.Error(w, "expired", http.StatusForbidden)
	}))
	defer srv.Close()

	rr := domain.RunReport{Items: []domain.ItemResult{
		domain.ItemFromEntry(domain.Captured(1, "A", srv.URL+"/ok/240p.m3u8")),
		domain.ItemFromEntry(domain.Captured(2, "B", srv.URL+"/expired/240p.m3u8")),
		domain.ItemFromEntry(domain.Missing(3, "C", domain.ReasonTimeout)),
	}}
	obs := &recordObserver{}

	Probe(context.Background(), srv.Client(), &rr, 4, obs)

	if rr.Items[0].Status != domain.StatusCaptured {
		t.Fatalf("可访问的清单应保持 captured：%+v", rr.Items[0])
	}
	if it := rr.Items[1]; it.Status != domain.StatusUnreachable || it.ErrorCode != domain.ErrCodeProbeFailed {
		t.Fatalf("403 应标记为 unreachable：%+v", it)
	}
	if rr.Items[2].Status != domain.StatusMissing {
		t.Fatalf("缺失条目不应被探测：%+v", rr.Items[2])
	}
	want := domain.ReportSummary{Rows: 3, Captured: 1, Missing: 1, Unreachable: 1}
	if rr.Summary != want {
		t.Fatalf("summary 不正确：got=%+v want=%+v", rr.Summary, want)
	}
	if len(obs.rows) != 2 || obs.phases[len(obs.phases)-1] != PhaseProbe {
		t.Fatalf("observer 事件不正确：rows=%v phases=%v", obs.rows, obs.phases)
	}
}

func TestProbe_NothingToCheck(t *testing.T) {
	rr := domain.RunReport{}
	Probe(context.Background(), http.DefaultClient, &rr, 0, nil)
	if rr.Summary.Rows != 0 {
		t.Fatalf("空 report 不应产生条目：%+v", rr.Summary)
	}
}
