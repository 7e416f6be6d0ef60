package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestHookReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := HookReport{
		Hook:       HookPreBuild,
		Project:    "/abs/path",
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Summary:    HookSummary{Remaining: 2},
		Resources: []ResourceResult{
			{ResourceID: "sprite-b", Status: ResourceStatusSkipped},
			{ResourceID: "", Status: ResourceStatusFailed}, // 合成项（例如阶段级失败）
			{ResourceID: "atlas-a", Status: ResourceStatusEvicted},
			{ResourceID: "sprite-c", Status: ResourceStatusRestored},
		},
	}

	r.Finalize()

	// resource_id=="" 必须排在最后；其余按字典序。
	got := []string{r.Resources[0].ResourceID, r.Resources[1].ResourceID, r.Resources[2].ResourceID, r.Resources[3].ResourceID}
	want := []string{"atlas-a", "sprite-b", "sprite-c", ""}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("resources 排序不符合契约：%v", got)
		}
	}
	if r.Summary.Evicted != 1 || r.Summary.Restored != 1 || r.Summary.Skipped != 1 || r.Summary.Failed != 1 {
		t.Fatalf("summary 统计不正确：%+v", r.Summary)
	}
	// Remaining 由调用方填写，Finalize 不得覆盖。
	if r.Summary.Remaining != 2 {
		t.Fatalf("remaining 被意外改写：%+v", r.Summary)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	// time.Time 在 UTC 下应输出 'Z' 后缀。
	if len(b) == 0 || !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}
