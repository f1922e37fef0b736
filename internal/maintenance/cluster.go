package maintenance

import (
	"encoding/json"
	"sort"

	"github.com/corescaffold/cogkernel/internal/store"
)

func decodeCoRetrieval(line []byte) (coRetrievalEntry, error) {
	var entry coRetrievalEntry
	err := json.Unmarshal(line, &entry)
	return entry, err
}

// coRetrievalEntry mirrors internal/memory's CoRetrievalEntry shape
// for reading the log; duplicated rather than imported because the
// maintenance pass only needs the emitted-id list, and importing the
// whole memory package's JSON shape for one field would be a heavier
// coupling than the two-line struct below.
type coRetrievalEntry struct {
	EmittedMemoryIDs []string `json:"emitted_memory_ids"`
}

// detectClusters scans the co-retrieval log for memory-id pairs that
// co-occur more than ClusterThreshold times and reports them as
// observation-only cluster candidates (spec §4.7 "Cluster detection":
// "no automatic consolidation").
func (p *Pass) detectClusters(path string) []ClusterCandidate {
	counts := make(map[[2]string]int)

	_ = store.ReadJSONL(path, func(line []byte) error {
		entry, err := decodeCoRetrieval(line)
		if err != nil {
			return nil
		}
		ids := append([]string{}, entry.EmittedMemoryIDs...)
		sort.Strings(ids)
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				counts[[2]string{ids[i], ids[j]}]++
			}
		}
		return nil
	})

	var out []ClusterCandidate
	for pair, count := range counts {
		if count > p.cfg.ClusterThreshold {
			out = append(out, ClusterCandidate{MemoryIDs: []string{pair[0], pair[1]}, Count: count})
		}
	}
	return out
}
