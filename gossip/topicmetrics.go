package gossip

import (
	"regexp"
	"sync"

	"github.com/aitbc-network/chain-node/metrics"
)

var topicMetricSanitize = regexp.MustCompile(`[^0-9a-zA-Z]+`)

func sanitizeTopicSuffix(topic string) string {
	s := topicMetricSanitize.ReplaceAllString(topic, "_")
	start, end := 0, len(s)
	for start < end && s[start] == '_' {
		start++
	}
	for end > start && s[end-1] == '_' {
		end--
	}
	s = s[start:end]
	if s == "" {
		return "unknown"
	}
	return s
}

// topicMetrics lazily registers the per-topic publications/subscribers/queue
// size metrics spec.md §4.5 requires alongside the backend-wide aggregates:
// gossip_publications_topic_{topic}, gossip_subscribers_topic_{topic}, and
// gossip_queue_size_topic_{topic}, named after the sanitized topic the same
// way miner.perProposerCounter suffixes by proposer id.
type topicMetrics struct {
	namePrefix string

	mu           sync.Mutex
	publications map[string]*metrics.Counter
	subscribers  map[string]*metrics.Gauge
	queueSize    map[string]*metrics.Gauge
}

// newTopicMetrics builds a per-backend set of topic metric caches. namePrefix
// distinguishes the in-process backend's metric family from the broadcast
// backend's, e.g. "gossip" vs "gossip_broadcast".
func newTopicMetrics(namePrefix string) *topicMetrics {
	return &topicMetrics{
		namePrefix:   namePrefix,
		publications: make(map[string]*metrics.Counter),
		subscribers:  make(map[string]*metrics.Gauge),
		queueSize:    make(map[string]*metrics.Gauge),
	}
}

func (t *topicMetrics) publicationsCounter(topic string) *metrics.Counter {
	suffix := sanitizeTopicSuffix(topic)
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.publications[suffix]; ok {
		return c
	}
	c := metrics.NewRegisteredCounter(t.namePrefix+"_publications_topic_"+suffix, "messages published on this topic")
	t.publications[suffix] = c
	return c
}

func (t *topicMetrics) subscribersGauge(topic string) *metrics.Gauge {
	suffix := sanitizeTopicSuffix(topic)
	t.mu.Lock()
	defer t.mu.Unlock()
	if g, ok := t.subscribers[suffix]; ok {
		return g
	}
	g := metrics.NewRegisteredGauge(t.namePrefix+"_subscribers_topic_"+suffix, "current subscriber count on this topic")
	t.subscribers[suffix] = g
	return g
}

func (t *topicMetrics) queueSizeGauge(topic string) *metrics.Gauge {
	suffix := sanitizeTopicSuffix(topic)
	t.mu.Lock()
	defer t.mu.Unlock()
	if g, ok := t.queueSize[suffix]; ok {
		return g
	}
	g := metrics.NewRegisteredGauge(t.namePrefix+"_queue_size_topic_"+suffix, "most recently observed subscriber queue depth on this topic")
	t.queueSize[suffix] = g
	return g
}
