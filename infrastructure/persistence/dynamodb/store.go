// Package dynamodb implements application/ports.GraphStore against a
// single DynamoDB table (concepts, relationships, sources, instances) —
// the only layer in the engine with DynamoDB-specific knowledge. Grounded
// on backend's internal/repository/ddb/ddb.go: PK/SK single-table design,
// a GSI for secondary lookups, attributevalue marshal/unmarshal, and
// TransactWriteItems for multi-item atomicity.
package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/apperr"
)

// Item key prefixes for the single-table design.
const (
	pkConcept  = "CONCEPT#"
	skMeta     = "METADATA"
	skEdgeOut  = "EDGE#"
	pkSource   = "SOURCE#"
	skInstance = "INSTANCE#"

	gsi1PKIncoming  = "INCOMING#"
	gsi1PKHash      = "HASH#"
)

// conceptItem is the DynamoDB shape of a Concept's METADATA row.
type conceptItem struct {
	PK            string    `dynamodbav:"PK"`
	SK            string    `dynamodbav:"SK"`
	ConceptID     string    `dynamodbav:"ConceptID"`
	Label         string    `dynamodbav:"Label"`
	SearchTerms   []string  `dynamodbav:"SearchTerms"`
	Vector        []float64 `dynamodbav:"Vector"`
	Model         string    `dynamodbav:"Model"`
	Dimension     int       `dynamodbav:"Dimension"`
	EvidenceCount int       `dynamodbav:"EvidenceCount"`
	Version       int       `dynamodbav:"Version"`
	CreatedAt     string    `dynamodbav:"CreatedAt"`
	UpdatedAt     string    `dynamodbav:"UpdatedAt"`
	OntologyID    string    `dynamodbav:"OntologyID"`
}

// edgeItem is one directed relationship, stored once under the source
// concept's partition and mirrored under a GSI keyed by the target so
// IncomingEdges doesn't require a table scan.
type edgeItem struct {
	PK         string  `dynamodbav:"PK"`
	SK         string  `dynamodbav:"SK"`
	GSI1PK     string  `dynamodbav:"GSI1PK"`
	GSI1SK     string  `dynamodbav:"GSI1SK"`
	SourceID   string  `dynamodbav:"SourceConceptID"`
	TargetID   string  `dynamodbav:"TargetConceptID"`
	VocabType  string  `dynamodbav:"VocabType"`
	Confidence float64 `dynamodbav:"Confidence"`
	IngestedAt string  `dynamodbav:"IngestedAt"`
}

type sourceItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	GSI1PK      string `dynamodbav:"GSI1PK"`
	GSI1SK      string `dynamodbav:"GSI1SK"`
	SourceID    string `dynamodbav:"SourceID"`
	Ontology    string `dynamodbav:"Ontology"`
	Document    string `dynamodbav:"Document"`
	Paragraph   string `dynamodbav:"Paragraph"`
	FullText    string `dynamodbav:"FullText"`
	ContentHash string `dynamodbav:"ContentHash"`
	CreatedAt   string `dynamodbav:"CreatedAt"`
}

type instanceItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	InstanceID string `dynamodbav:"InstanceID"`
	ConceptID string `dynamodbav:"ConceptID"`
	SourceID  string `dynamodbav:"SourceID"`
	Quote     string `dynamodbav:"Quote"`
	Paragraph string `dynamodbav:"Paragraph"`
	CreatedAt string `dynamodbav:"CreatedAt"`
}

// Store is a GraphStore backed by a single DynamoDB table.
type Store struct {
	client    *dynamodb.Client
	table     string
	gsi1Index string
	hotViews  ports.Cache
}

func NewStore(client *dynamodb.Client, table, gsi1Index string) *Store {
	return &Store{client: client, table: table, gsi1Index: gsi1Index}
}

// WithHotViewCache attaches the denormalized-cache backend RefreshHotViews
// writes to (spec.md §4.1 "recompute denormalized caches of most-accessed
// concepts and most-traversed edges"). Without one, RefreshHotViews is a
// no-op — there is nowhere to put the result.
func (s *Store) WithHotViewCache(cache ports.Cache) *Store {
	s.hotViews = cache
	return s
}

var _ ports.GraphStore = (*Store)(nil)

func conceptPK(id valueobjects.ConceptID) string { return pkConcept + id.String() }

func toFloat64Vector(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func toFloat32Vector(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func toConceptEntity(it conceptItem) *entities.Concept {
	emb := valueobjects.Embedding{Vector: toFloat32Vector(it.Vector), Model: it.Model, Dimension: it.Dimension}
	createdAt, _ := time.Parse(time.RFC3339, it.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, it.UpdatedAt)
	return entities.RehydrateConcept(valueobjects.ConceptID(it.ConceptID), it.Label, it.SearchTerms, emb, it.EvidenceCount, it.Version, createdAt, updatedAt)
}

// UpsertConcept scans all concepts (no native ANN index in DynamoDB) to
// find the nearest by cosine similarity. Acceptable at the scale this
// engine targets; a production deployment would shard the scan behind a
// dedicated vector index. This full scan is a known scaling limit.
func (s *Store) UpsertConcept(ctx context.Context, label string, searchTerms []string, embedding valueobjects.Embedding, mergeThreshold float64) (valueobjects.ConceptID, bool, error) {
	all, err := s.scanConcepts(ctx)
	if err != nil {
		return "", false, err
	}

	var bestID valueobjects.ConceptID
	bestSim := -1.0
	for _, c := range all {
		sim := c.Embedding().CosineSimilarity(embedding)
		if sim > bestSim {
			bestSim, bestID = sim, c.ID()
		}
	}

	if bestSim >= mergeThreshold && bestID != "" {
		existing, err := s.GetConcept(ctx, bestID)
		if err != nil {
			return "", false, err
		}
		existing.MergeAlias(label)
		existing.RecordEvidence()
		if err := s.saveConcept(ctx, existing); err != nil {
			return "", false, err
		}
		return bestID, true, nil
	}

	id := valueobjects.ConceptID(fmt.Sprintf("cpt_%s", entities.HashText(label)[:16]))
	c, err := entities.NewConcept(id, label, embedding)
	if err != nil {
		return "", false, err
	}
	for _, term := range searchTerms {
		c.MergeAlias(term)
	}
	c.RecordEvidence()
	if err := s.saveConcept(ctx, c); err != nil {
		return "", false, err
	}
	return id, false, nil
}

func (s *Store) saveConcept(ctx context.Context, c *entities.Concept) error {
	// Preserve ontology membership, which the Concept aggregate itself
	// does not model (it is a storage-layer concern read/written directly
	// by ontology_store.go).
	var ontologyID string
	if existing, err := s.getConceptItem(ctx, c.ID()); err == nil && existing != nil {
		ontologyID = existing.OntologyID
	}
	item := conceptItem{
		PK: conceptPK(c.ID()), SK: skMeta, ConceptID: c.ID().String(), Label: c.Label(),
		SearchTerms: c.SearchTerms(), Vector: toFloat64Vector(c.Embedding().Vector),
		Model: c.Embedding().Model, Dimension: c.Embedding().Dimension,
		EvidenceCount: c.EvidenceCount(), Version: c.Version(),
		CreatedAt: c.CreatedAt().Format(time.RFC3339), UpdatedAt: c.UpdatedAt().Format(time.RFC3339),
		OntologyID: ontologyID,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "marshal concept item", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av})
	if err != nil {
		return apperr.Wrap(apperr.Internal, "put concept item", err)
	}
	return nil
}

func (s *Store) getConceptItem(ctx context.Context, id valueobjects.ConceptID) (*conceptItem, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: conceptPK(id)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "get concept item", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var it conceptItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "unmarshal concept item", err)
	}
	return &it, nil
}

func (s *Store) GetConcept(ctx context.Context, id valueobjects.ConceptID) (*entities.Concept, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: conceptPK(id)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "get concept item", err)
	}
	if out.Item == nil {
		return nil, apperr.New(apperr.NotFound, "concept not found")
	}
	var it conceptItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "unmarshal concept item", err)
	}
	return toConceptEntity(it), nil
}

func (s *Store) scanConcepts(ctx context.Context) ([]*entities.Concept, error) {
	var out []*entities.Concept
	var lastKey map[string]types.AttributeValue
	for {
		res, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.table),
			FilterExpression:  aws.String("SK = :sk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":sk": &types.AttributeValueMemberS{Value: skMeta}},
			ExclusiveStartKey: lastKey,
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan concepts", err)
		}
		for _, rawItem := range res.Items {
			var it conceptItem
			if err := attributevalue.UnmarshalMap(rawItem, &it); err != nil {
				continue
			}
			if !strings.HasPrefix(it.PK, pkConcept) {
				continue
			}
			out = append(out, toConceptEntity(it))
		}
		lastKey = res.LastEvaluatedKey
		if len(lastKey) == 0 {
			break
		}
	}
	return out, nil
}

// ListConcepts returns every concept vertex — the enumeration pass behind
// regenerate(concept|all) (spec.md §4.2).
func (s *Store) ListConcepts(ctx context.Context) ([]*entities.Concept, error) {
	return s.scanConcepts(ctx)
}

// ListSources returns every source in ontology, or in all ontologies when
// ontology is empty — the enumeration pass behind regenerate(source|all).
func (s *Store) ListSources(ctx context.Context, ontology string) ([]*entities.Source, error) {
	var lastKey map[string]types.AttributeValue
	var out []*entities.Source
	for {
		input := &dynamodb.ScanInput{
			TableName:                 aws.String(s.table),
			FilterExpression:          aws.String("SK = :sk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":sk": &types.AttributeValueMemberS{Value: skMeta}},
			ExclusiveStartKey:         lastKey,
		}
		if ontology != "" {
			input.FilterExpression = aws.String("SK = :sk AND Ontology = :ont")
			input.ExpressionAttributeValues[":ont"] = &types.AttributeValueMemberS{Value: ontology}
		}
		res, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan sources", err)
		}
		for _, rawItem := range res.Items {
			var it sourceItem
			if err := attributevalue.UnmarshalMap(rawItem, &it); err != nil {
				continue
			}
			if !strings.HasPrefix(it.PK, pkSource) {
				continue
			}
			out = append(out, toSourceEntity(it))
		}
		lastKey = res.LastEvaluatedKey
		if len(lastKey) == 0 {
			break
		}
	}
	return out, nil
}

func (s *Store) AddEdge(ctx context.Context, src valueobjects.ConceptID, vocabType valueobjects.VocabTypeName, dst valueobjects.ConceptID, confidence float64) error {
	rel, err := entities.NewRelationship(src, dst, vocabType, confidence)
	if err != nil {
		return err
	}
	item := edgeItem{
		PK: conceptPK(src), SK: skEdgeOut + string(vocabType) + "#" + dst.String(),
		GSI1PK: gsi1PKIncoming + dst.String(), GSI1SK: skEdgeOut + string(vocabType) + "#" + src.String(),
		SourceID: src.String(), TargetID: dst.String(), VocabType: string(vocabType),
		Confidence: rel.Confidence, IngestedAt: rel.IngestedAt.Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "marshal edge item", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av})
	if err != nil {
		return apperr.Wrap(apperr.Internal, "put edge item", err)
	}
	return nil
}

func edgeItemToRelationship(it edgeItem) entities.Relationship {
	ingestedAt, _ := time.Parse(time.RFC3339, it.IngestedAt)
	return entities.Relationship{
		SourceConceptID: valueobjects.ConceptID(it.SourceID), TargetConceptID: valueobjects.ConceptID(it.TargetID),
		Type: valueobjects.VocabTypeName(it.VocabType), Confidence: it.Confidence, IngestedAt: ingestedAt,
	}
}

func (s *Store) outgoingEdges(ctx context.Context, id valueobjects.ConceptID) ([]entities.Relationship, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName: aws.String(s.table), KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :skPrefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: conceptPK(id)}, ":skPrefix": &types.AttributeValueMemberS{Value: skEdgeOut},
		},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "query outgoing edges", err)
	}
	rels := make([]entities.Relationship, 0, len(out.Items))
	for _, rawItem := range out.Items {
		var it edgeItem
		if err := attributevalue.UnmarshalMap(rawItem, &it); err == nil {
			rels = append(rels, edgeItemToRelationship(it))
		}
	}
	return rels, nil
}

func (s *Store) IncomingEdges(ctx context.Context, id valueobjects.ConceptID) ([]entities.Relationship, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName: aws.String(s.table), IndexName: aws.String(s.gsi1Index),
		KeyConditionExpression: aws.String("GSI1PK = :gsiPK"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":gsiPK": &types.AttributeValueMemberS{Value: gsi1PKIncoming + id.String()},
		},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "query incoming edges", err)
	}
	rels := make([]entities.Relationship, 0, len(out.Items))
	for _, rawItem := range out.Items {
		var it edgeItem
		if err := attributevalue.UnmarshalMap(rawItem, &it); err == nil {
			rels = append(rels, edgeItemToRelationship(it))
		}
	}
	return rels, nil
}

func (s *Store) MatchConceptRelationships(ctx context.Context, filter ports.RelTypeFilter) ([]entities.Relationship, error) {
	// No single-partition key to query by type alone; scan and filter by
	// the requested type set, bounded by filter.Limit the way
	// ddb.FindEdges falls back to in-memory filtering when the query
	// doesn't map to a direct key condition.
	wanted := make(map[valueobjects.VocabTypeName]bool, len(filter.RelTypes))
	for _, t := range filter.RelTypes {
		wanted[t] = true
	}
	var lastKey map[string]types.AttributeValue
	var out []entities.Relationship
	for {
		res, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.table),
			FilterExpression:  aws.String("begins_with(SK, :skp)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":skp": &types.AttributeValueMemberS{Value: skEdgeOut}},
			ExclusiveStartKey: lastKey,
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan relationships", err)
		}
		for _, rawItem := range res.Items {
			var it edgeItem
			if err := attributevalue.UnmarshalMap(rawItem, &it); err != nil {
				continue
			}
			if len(wanted) > 0 && !wanted[valueobjects.VocabTypeName(it.VocabType)] {
				continue
			}
			out = append(out, edgeItemToRelationship(it))
			if filter.Limit > 0 && len(out) >= filter.Limit {
				return out, nil
			}
		}
		lastKey = res.LastEvaluatedKey
		if len(lastKey) == 0 {
			break
		}
	}
	return out, nil
}

func (s *Store) KNNConcepts(ctx context.Context, vec valueobjects.Embedding, k int, minSim float64) ([]ports.KNNResult, error) {
	all, err := s.scanConcepts(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]ports.KNNResult, 0, len(all))
	for _, c := range all {
		sim := c.Embedding().CosineSimilarity(vec)
		if sim >= minSim {
			results = append(results, ports.KNNResult{ConceptID: c.ID(), Similarity: sim})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *Store) SearchConcepts(ctx context.Context, queryEmbedding valueobjects.Embedding, limit int, minSimilarity float64, ontology string, offset int) ([]ports.KNNResult, error) {
	res, err := s.KNNConcepts(ctx, queryEmbedding, 0, minSimilarity)
	if err != nil {
		return nil, err
	}
	if offset >= len(res) {
		return nil, nil
	}
	end := len(res)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return res[offset:end], nil
}

// ShortestPath does an unweighted BFS bounded by pathSearchCeiling, expanding via
// outgoingEdges; DynamoDB has no graph-traversal primitive so this walks
// hop by hop the way the teacher's in-memory graph traversal does.
const (
	// maxSegmentHops is the reported-segment size: paths longer than this
	// are auto-segmented, not refused (spec.md §4.1, §6.2).
	maxSegmentHops = 5
	// pathSearchCeiling bounds the BFS itself so a disconnected pair
	// terminates; well past the segment size on purpose.
	pathSearchCeiling = 25
)

// ShortestPath runs BFS from a to b up to pathSearchCeiling hops and
// chunks the discovered path into segments of at most maxHops (itself
// capped at maxSegmentHops) hops each.
func (s *Store) ShortestPath(ctx context.Context, a, b valueobjects.ConceptID, maxHops int, allowedTypes []valueobjects.VocabTypeName) ([]ports.PathSegment, error) {
	segmentHops := maxHops
	if segmentHops <= 0 || segmentHops > maxSegmentHops {
		segmentHops = maxSegmentHops
	}
	allowed := make(map[valueobjects.VocabTypeName]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[t] = true
	}
	type frame struct {
		id    valueobjects.ConceptID
		nodes []valueobjects.ConceptID
		edges []entities.Relationship
	}
	visited := map[valueobjects.ConceptID]bool{a: true}
	queue := []frame{{id: a, nodes: []valueobjects.ConceptID{a}}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.id == b {
			return segmentPath(cur.nodes, cur.edges, segmentHops), nil
		}
		if len(cur.nodes)-1 >= pathSearchCeiling {
			continue
		}
		rels, err := s.outgoingEdges(ctx, cur.id)
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			if len(allowed) > 0 && !allowed[rel.Type] {
				continue
			}
			if visited[rel.TargetConceptID] {
				continue
			}
			visited[rel.TargetConceptID] = true
			nextNodes := append(append([]valueobjects.ConceptID{}, cur.nodes...), rel.TargetConceptID)
			nextEdges := append(append([]entities.Relationship{}, cur.edges...), rel)
			queue = append(queue, frame{id: rel.TargetConceptID, nodes: nextNodes, edges: nextEdges})
		}
	}
	return nil, apperr.New(apperr.NotFound, "no path within search ceiling")
}

// segmentPath splits one discovered path into hop-bounded segments; each
// segment's node list starts where the previous one ended.
func segmentPath(nodes []valueobjects.ConceptID, edges []entities.Relationship, segmentHops int) []ports.PathSegment {
	if len(edges) == 0 {
		return []ports.PathSegment{{Nodes: nodes}}
	}
	var segments []ports.PathSegment
	for start := 0; start < len(edges); start += segmentHops {
		end := start + segmentHops
		if end > len(edges) {
			end = len(edges)
		}
		segments = append(segments, ports.PathSegment{
			Nodes: nodes[start : end+1],
			Edges: edges[start:end],
		})
	}
	return segments
}

func (s *Store) Neighborhood(ctx context.Context, id valueobjects.ConceptID, depth int, types []valueobjects.VocabTypeName) ([]ports.NeighborhoodGroup, error) {
	if depth <= 0 {
		depth = 1
	}
	allowed := make(map[valueobjects.VocabTypeName]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	visited := map[valueobjects.ConceptID]bool{id: true}
	frontier := []valueobjects.ConceptID{id}
	var groups []ports.NeighborhoodGroup
	for distance := 1; distance <= depth; distance++ {
		paths := map[valueobjects.ConceptID][]valueobjects.VocabTypeName{}
		var next []valueobjects.ConceptID
		for _, cur := range frontier {
			rels, err := s.outgoingEdges(ctx, cur)
			if err != nil {
				return nil, err
			}
			for _, rel := range rels {
				if len(allowed) > 0 && !allowed[rel.Type] {
					continue
				}
				if visited[rel.TargetConceptID] {
					continue
				}
				visited[rel.TargetConceptID] = true
				next = append(next, rel.TargetConceptID)
				paths[rel.TargetConceptID] = append(paths[rel.TargetConceptID], rel.Type)
			}
		}
		if len(next) == 0 {
			break
		}
		groups = append(groups, ports.NeighborhoodGroup{Distance: distance, Concepts: next, Paths: paths})
		frontier = next
	}
	return groups, nil
}

func (s *Store) BulkUpdateConceptEmbeddings(ctx context.Context, batch map[valueobjects.ConceptID]valueobjects.Embedding) error {
	for id, emb := range batch {
		c, err := s.GetConcept(ctx, id)
		if err != nil {
			return err
		}
		c.ReplaceEmbedding(emb)
		if err := s.saveConcept(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// hotViewTTL bounds how long a stale hot-view snapshot can linger before
// the next scheduled refresh (spec.md §4.1's maintenance job).
const hotViewTTL = 10 * time.Minute

// hotConceptsCacheKey is the denormalized-cache entry RefreshHotViews
// writes and search/admin surfaces may read for a cheap "most accessed"
// view without re-scanning the table.
const hotConceptsCacheKey = "hotview:concepts:top"

type hotConceptEntry struct {
	ConceptID     string `json:"concept_id"`
	Label         string `json:"label"`
	EvidenceCount int    `json:"evidence_count"`
}

const hotViewTopN = 50

// RefreshHotViews recomputes the most-accessed-concepts denormalized view
// (ranked by evidence count, the closest proxy this store has to access
// frequency) and writes it to the injected Cache (spec.md §4.1). Without a
// cache attached it is a no-op — there is nowhere to put the result.
func (s *Store) RefreshHotViews(ctx context.Context) error {
	if s.hotViews == nil {
		return nil
	}
	all, err := s.scanConcepts(ctx)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "scan concepts for hot view refresh", err)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].EvidenceCount() > all[j].EvidenceCount() })
	if len(all) > hotViewTopN {
		all = all[:hotViewTopN]
	}

	entries := make([]hotConceptEntry, len(all))
	for i, c := range all {
		entries[i] = hotConceptEntry{ConceptID: c.ID().String(), Label: c.Label(), EvidenceCount: c.EvidenceCount()}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "marshal hot view payload", err)
	}
	if err := s.hotViews.Set(ctx, hotConceptsCacheKey, payload, hotViewTTL); err != nil {
		return apperr.Wrap(apperr.Internal, "write hot view cache", err)
	}
	return nil
}

func (s *Store) SaveSource(ctx context.Context, source *entities.Source) error {
	item := sourceItem{
		PK: pkSource + source.ID.String(), SK: skMeta,
		GSI1PK: gsi1PKHash + source.Ontology + "#" + source.ContentHash, GSI1SK: pkSource + source.ID.String(),
		SourceID: source.ID.String(), Ontology: source.Ontology, Document: source.Document,
		Paragraph: source.Paragraph, FullText: source.FullText, ContentHash: source.ContentHash,
		CreatedAt: source.CreatedAt.Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "marshal source item", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av})
	if err != nil {
		return apperr.Wrap(apperr.Internal, "put source item", err)
	}
	return nil
}

func toSourceEntity(it sourceItem) *entities.Source {
	createdAt, _ := time.Parse(time.RFC3339, it.CreatedAt)
	return &entities.Source{
		ID: valueobjects.SourceID(it.SourceID), Ontology: it.Ontology, Document: it.Document,
		Paragraph: it.Paragraph, FullText: it.FullText, ContentHash: it.ContentHash, CreatedAt: createdAt,
	}
}

func (s *Store) GetSource(ctx context.Context, id valueobjects.SourceID) (*entities.Source, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pkSource + id.String()},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "get source item", err)
	}
	if out.Item == nil {
		return nil, apperr.New(apperr.NotFound, "source not found")
	}
	var it sourceItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "unmarshal source item", err)
	}
	return toSourceEntity(it), nil
}

func (s *Store) FindSourceByHash(ctx context.Context, ontology, contentHash string) (*entities.Source, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName: aws.String(s.table), IndexName: aws.String(s.gsi1Index),
		KeyConditionExpression: aws.String("GSI1PK = :gsiPK"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":gsiPK": &types.AttributeValueMemberS{Value: gsi1PKHash + ontology + "#" + contentHash},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "query source by hash", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var it sourceItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &it); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "unmarshal source item", err)
	}
	return toSourceEntity(it), nil
}

func (s *Store) SearchSources(ctx context.Context, query, ontology string, limit int) ([]*entities.Source, error) {
	var lastKey map[string]types.AttributeValue
	var out []*entities.Source
	needle := strings.ToLower(query)
	for {
		res, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.table),
			FilterExpression:  aws.String("SK = :sk AND Ontology = :ont"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":sk": &types.AttributeValueMemberS{Value: skMeta}, ":ont": &types.AttributeValueMemberS{Value: ontology},
			},
			ExclusiveStartKey: lastKey,
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan sources", err)
		}
		for _, rawItem := range res.Items {
			var it sourceItem
			if err := attributevalue.UnmarshalMap(rawItem, &it); err != nil {
				continue
			}
			if !strings.Contains(it.PK, pkSource) {
				continue
			}
			if needle != "" && !strings.Contains(strings.ToLower(it.FullText), needle) {
				continue
			}
			out = append(out, toSourceEntity(it))
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
		lastKey = res.LastEvaluatedKey
		if len(lastKey) == 0 {
			break
		}
	}
	return out, nil
}

func (s *Store) SaveInstance(ctx context.Context, instance entities.Instance) error {
	item := instanceItem{
		PK: pkSource + instance.SourceID.String(), SK: skInstance + instance.ID.String(),
		InstanceID: string(instance.ID), ConceptID: instance.ConceptID.String(), SourceID: instance.SourceID.String(),
		Quote: instance.Quote, Paragraph: instance.Paragraph, CreatedAt: instance.CreatedAt.Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "marshal instance item", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: av})
	if err != nil {
		return apperr.Wrap(apperr.Internal, "put instance item", err)
	}
	return nil
}

func (s *Store) CountInstancesForSources(ctx context.Context, sourceIDs []valueobjects.SourceID) (int, error) {
	total := 0
	for _, id := range sourceIDs {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName: aws.String(s.table), KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :skp)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: pkSource + id.String()}, ":skp": &types.AttributeValueMemberS{Value: skInstance},
			},
			Select: types.SelectCount,
		})
		if err != nil {
			return 0, apperr.Wrap(apperr.Internal, "count instances", err)
		}
		total += int(out.Count)
	}
	return total, nil
}

// ReassignEdgeType scans for edges of the deprecated type and rewrites
// each to the kept type, deleting and re-putting since VocabType is part
// of both the item's own SK and its GSI1SK (spec.md §4.3c synonym merge).
func (s *Store) ReassignEdgeType(ctx context.Context, from, to valueobjects.VocabTypeName) (int, error) {
	rels, err := s.MatchConceptRelationships(ctx, ports.RelTypeFilter{RelTypes: []valueobjects.VocabTypeName{from}})
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, rel := range rels {
		if err := s.deleteEdge(ctx, rel.SourceConceptID, from, rel.TargetConceptID); err != nil {
			return moved, err
		}
		if err := s.AddEdge(ctx, rel.SourceConceptID, to, rel.TargetConceptID, rel.Confidence); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

func (s *Store) deleteEdge(ctx context.Context, src valueobjects.ConceptID, vocabType valueobjects.VocabTypeName, dst valueobjects.ConceptID) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: conceptPK(src)},
			"SK": &types.AttributeValueMemberS{Value: skEdgeOut + string(vocabType) + "#" + dst.String()},
		},
	})
	if err != nil {
		return apperr.Wrap(apperr.Internal, "delete edge item", err)
	}
	return nil
}

func (s *Store) CountEdgesOfType(ctx context.Context, vocabType valueobjects.VocabTypeName) (int, error) {
	rels, err := s.MatchConceptRelationships(ctx, ports.RelTypeFilter{RelTypes: []valueobjects.VocabTypeName{vocabType}})
	if err != nil {
		return 0, err
	}
	return len(rels), nil
}

func (s *Store) EmbeddingCoverage(ctx context.Context, activeDimension int) (total, atActiveDimension, stale, missing int, err error) {
	all, err := s.scanConcepts(ctx)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	total = len(all)
	for _, c := range all {
		switch {
		case c.Embedding().IsZero():
			missing++
		case c.Embedding().Dimension == activeDimension:
			atActiveDimension++
		default:
			stale++
		}
	}
	return total, atActiveDimension, stale, missing, nil
}
