package cluster

import (
	"github.com/stayguard/stayguard/internal/models"
	"github.com/stayguard/stayguard/internal/similarity"
)

// DefaultThreshold is the title-similarity floor for grouping two reports
// into the same cluster.
const DefaultThreshold = 0.6

// Cluster is an ordered group of reports believed to describe one real-world
// event. All members share the representative's City and MainType; each
// member's title scored above the threshold against the representative.
// Clusters are transient and exist only during a single processing pass.
type Cluster struct {
	Reports []models.DisruptionReport
}

// Representative returns the cluster's first-inserted report, which anchors
// all similarity comparisons.
func (c Cluster) Representative() models.DisruptionReport {
	return c.Reports[0]
}

// Clusterer groups raw disruption reports by city, type, and title similarity.
type Clusterer struct {
	threshold float64
}

// New creates a Clusterer with the given similarity threshold.
// A non-positive threshold falls back to DefaultThreshold.
func New(threshold float64) *Clusterer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Clusterer{threshold: threshold}
}

// Cluster runs a single left-to-right greedy pass over reports. Each report
// joins the first existing cluster whose representative shares its City and
// MainType and whose title similarity exceeds the threshold; otherwise it
// starts a new singleton cluster. First match wins even when a later cluster
// would score higher. That tie-break is a deliberate policy: it keeps the
// pass O(n*k), deterministic, and reproducible across runs.
func (c *Clusterer) Cluster(reports []models.DisruptionReport) []Cluster {
	var clusters []Cluster

	for _, report := range reports {
		placed := false
		for i := range clusters {
			rep := clusters[i].Representative()
			if rep.City != report.City || rep.MainType != report.MainType {
				continue
			}
			if similarity.Jaccard(rep.Title, report.Title) > c.threshold {
				clusters[i].Reports = append(clusters[i].Reports, report)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, Cluster{Reports: []models.DisruptionReport{report}})
		}
	}

	return clusters
}
