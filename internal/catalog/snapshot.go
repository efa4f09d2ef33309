package catalog

import (
	"gopkg.in/yaml.v3"
)

// Snapshot is the YAML-serializable export of a Catalog's live
// definitions at a single version, supplementing the original's catalog
// persistence with a human-readable export/import format.
type Snapshot struct {
	Version      uint64          `yaml:"version"`
	Namespaces   []NamespaceDef  `yaml:"namespaces,omitempty"`
	Tables       []TableDef      `yaml:"tables,omitempty"`
	Views        []ViewDef       `yaml:"views,omitempty"`
	RingBuffers  []RingBufferDef `yaml:"ring_buffers,omitempty"`
	Dictionaries []DictionaryDef `yaml:"dictionaries,omitempty"`
	Flows        []FlowDef       `yaml:"flows,omitempty"`
}

// Export walks every named entity store's known ids and collects the
// definitions live at version into a Snapshot.
func (c *Catalog) Export(version uint64) Snapshot {
	snap := Snapshot{Version: version}

	for _, id := range c.Namespaces.knownIDs() {
		if def, ok := c.Namespaces.At(id, version); ok {
			snap.Namespaces = append(snap.Namespaces, *def)
		}
	}
	for _, id := range c.Tables.knownIDs() {
		if def, ok := c.Tables.At(id, version); ok {
			snap.Tables = append(snap.Tables, *def)
		}
	}
	for _, id := range c.Views.knownIDs() {
		if def, ok := c.Views.At(id, version); ok {
			snap.Views = append(snap.Views, *def)
		}
	}
	for _, id := range c.RingBuffers.knownIDs() {
		if def, ok := c.RingBuffers.At(id, version); ok {
			snap.RingBuffers = append(snap.RingBuffers, *def)
		}
	}
	for _, id := range c.Dictionaries.knownIDs() {
		if def, ok := c.Dictionaries.At(id, version); ok {
			snap.Dictionaries = append(snap.Dictionaries, *def)
		}
	}
	for _, id := range c.Flows.knownIDs() {
		if def, ok := c.Flows.At(id, version); ok {
			snap.Flows = append(snap.Flows, *def)
		}
	}
	return snap
}

// EncodeSnapshot renders a Snapshot to YAML bytes.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	return yaml.Marshal(s)
}

// DecodeSnapshot parses YAML bytes produced by EncodeSnapshot.
func DecodeSnapshot(raw []byte) (Snapshot, error) {
	var s Snapshot
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Import installs every definition in a Snapshot into c at snap.Version,
// skipping name collisions with entries already live (used to seed a
// fresh Catalog from a fixture or restore a dumped one).
func (c *Catalog) Import(snap Snapshot) error {
	for _, ns := range snap.Namespaces {
		if _, ok, _ := c.Namespaces.ByName(0, ns.Name, snap.Version); ok {
			continue
		}
		if _, err := c.Namespaces.Create(snap.Version, ns.ID, 0, ns.Name, ns); err != nil {
			return err
		}
	}
	for _, t := range snap.Tables {
		if _, ok, _ := c.Tables.ByName(t.NamespaceID, t.Name, snap.Version); ok {
			continue
		}
		if _, err := c.Tables.Create(snap.Version, t.ID, t.NamespaceID, t.Name, t); err != nil {
			return err
		}
	}
	for _, v := range snap.Views {
		if _, ok, _ := c.Views.ByName(v.NamespaceID, v.Name, snap.Version); ok {
			continue
		}
		if _, err := c.Views.Create(snap.Version, v.ID, v.NamespaceID, v.Name, v); err != nil {
			return err
		}
	}
	for _, rb := range snap.RingBuffers {
		if _, ok, _ := c.RingBuffers.ByName(rb.NamespaceID, rb.Name, snap.Version); ok {
			continue
		}
		if _, err := c.RingBuffers.Create(snap.Version, rb.ID, rb.NamespaceID, rb.Name, rb); err != nil {
			return err
		}
	}
	for _, d := range snap.Dictionaries {
		if _, ok, _ := c.Dictionaries.ByName(0, d.Name, snap.Version); ok {
			continue
		}
		if _, err := c.Dictionaries.Create(snap.Version, d.ID, 0, d.Name, d); err != nil {
			return err
		}
	}
	for _, f := range snap.Flows {
		if _, ok, _ := c.Flows.ByName(0, f.Name, snap.Version); ok {
			continue
		}
		if _, err := c.Flows.Create(snap.Version, f.ID, 0, f.Name, f); err != nil {
			return err
		}
	}
	return nil
}

// knownIDs returns every id ever installed in s, regardless of whether
// it is currently live, for Export to walk.
func (s *namedStore[T]) knownIDs() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint64, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sortUint64s(ids)
	return ids
}
