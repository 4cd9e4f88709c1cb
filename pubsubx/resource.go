package pubsubx

import (
	"slices"

	"github.com/samber/lo"

	"github.com/clinia/emulator-console/emulatorx"
	"github.com/clinia/emulator-console/pubsubx/messagex"
)

// TopicResource is a topic as known by the emulator.
type TopicResource struct {
	// FullName is the canonical `projects/{project}/topics/{topic}` identifier.
	FullName  string `json:"name"`
	ShortName string `json:"short_name"`
}

func NewTopicResource(fullName string) TopicResource {
	return TopicResource{
		FullName:  fullName,
		ShortName: messagex.ShortName(fullName),
	}
}

// TopicCollection keeps the order in which the emulator returned the topics.
type TopicCollection []TopicResource

// NewTopicCollection builds a collection from fully qualified names, dropping
// empty and repeated names while keeping the first occurrence order.
func NewTopicCollection(names ...string) TopicCollection {
	names = lo.Uniq(lo.Compact(names))
	return lo.Map(names, func(name string, _ int) TopicResource {
		return NewTopicResource(name)
	})
}

func (c TopicCollection) Names() []string {
	return lo.Map(c, func(t TopicResource, _ int) string { return t.FullName })
}

func (c TopicCollection) ShortNames() []string {
	return lo.Map(c, func(t TopicResource, _ int) string { return t.ShortName })
}

func (c TopicCollection) Find(fullName string) (TopicResource, bool) {
	return lo.Find(c, func(t TopicResource) bool { return t.FullName == fullName })
}

func (c TopicCollection) unique() TopicCollection {
	return lo.UniqBy(c, func(t TopicResource) string { return t.FullName })
}

func (c TopicCollection) Clone() TopicCollection {
	return slices.Clone(c)
}

// Snapshot is a point in time view of the store. Loaded is false while nothing
// was fetched yet for the current config, or when no config is set; a loaded
// snapshot with no topics means the emulator has none.
type Snapshot struct {
	Config  *emulatorx.ConnectionConfig
	Topics  TopicCollection
	Loaded  bool
	Version uint64
}

// IsUnset reports whether no emulator is configured.
func (s Snapshot) IsUnset() bool {
	return s.Config == nil
}
