package services

import (
	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/pkg/vecmath"
)

// OntologyAffinity scores every ontology pair by centroid cosine
// similarity (spec.md §4.8 step 2), skipping ontologies without a
// centroid. Nothing in the annealing cycle calls it: the demotion path
// chooses its absorbing neighbor inside OntologyStore.DemoteOntology.
func OntologyAffinity(metrics map[string]ports.OntologyMetrics) map[[2]string]float64 {
	ids := make([]string, 0, len(metrics))
	for id := range metrics {
		ids = append(ids, id)
	}
	affinity := make(map[[2]string]float64, len(ids)*(len(ids)-1)/2)
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := metrics[ids[i]], metrics[ids[j]]
			if a.Centroid.IsZero() || b.Centroid.IsZero() {
				continue
			}
			sim := vecmath.CosineSimilarity(a.Centroid.Vector, b.Centroid.Vector)
			affinity[[2]string{ids[i], ids[j]}] = sim
		}
	}
	return affinity
}

// StrongestNeighbor returns the ontology ID with highest affinity to
// target, excluding target itself.
func StrongestNeighbor(target string, affinity map[[2]string]float64) (string, bool) {
	best := ""
	bestScore := -1.0
	for pair, score := range affinity {
		var other string
		switch target {
		case pair[0]:
			other = pair[1]
		case pair[1]:
			other = pair[0]
		default:
			continue
		}
		if score > bestScore {
			bestScore = score
			best = other
		}
	}
	return best, best != ""
}
