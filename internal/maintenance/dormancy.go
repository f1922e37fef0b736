package maintenance

import (
	"time"

	"github.com/corescaffold/cogkernel/internal/memory"
	"github.com/corescaffold/cogkernel/internal/store"
)

// flagDormant flags memories with access_count == 0 older than
// DormancyThresholdDays as dormancy candidates; flagging is
// observation-only and never reclassifies the record (spec §4.7
// "Dormancy").
func (p *Pass) flagDormant(records []store.Record, now time.Time) []DormancyFlag {
	var out []DormancyFlag
	thresholdDays := float64(p.cfg.DormancyThresholdDays)

	for _, rec := range records {
		lineage := memory.LineageFromMetadata(rec.Metadata, rec.CreatedAt)
		if lineage.AccessCount != 0 {
			continue
		}
		ageDays := now.Sub(rec.CreatedAt).Hours() / 24
		if ageDays <= thresholdDays {
			continue
		}
		out = append(out, DormancyFlag{MemoryID: rec.ID, LastAccess: lineage.LastAccessed, AgeDays: ageDays})
	}
	return out
}
