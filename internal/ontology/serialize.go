package ontology

import (
	"encoding/json"

	"github.com/corescaffold/cogkernel/internal/store"
)

// entityToMetadata packs an Entity into the metadata map a Record
// carries, tagged area=ontology so the shared store can tell entities
// apart from ordinary memories on IterateAll.
func entityToMetadata(e Entity) map[string]interface{} {
	raw, _ := json.Marshal(e)
	var m map[string]interface{}
	_ = json.Unmarshal(raw, &m)
	if m == nil {
		m = make(map[string]interface{})
	}
	m["area"] = areaOntology
	return m
}

// entityFromRecord is the inverse of entityToMetadata; returns ok=false
// if the record's metadata isn't a well-formed entity.
func entityFromRecord(rec store.Record) (Entity, bool) {
	raw, err := json.Marshal(rec.Metadata)
	if err != nil {
		return Entity{}, false
	}
	var e Entity
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entity{}, false
	}
	if e.ID == "" {
		e.ID = rec.ID
	}
	return e, true
}
