package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/apperr"
	"github.com/groundgraph/engine/pkg/vecmath"
)

const pkOntology = "ONTOLOGY#"

type ontologyItem struct {
	PK        string   `dynamodbav:"PK"`
	SK        string   `dynamodbav:"SK"`
	OntologyID string  `dynamodbav:"OntologyID"`
	Name      string   `dynamodbav:"Name"`
	AnchorIDs []string `dynamodbav:"AnchorIDs"`
	CreatedAt string   `dynamodbav:"CreatedAt"`
}

// OntologyStore is a narrower facade over the same single table Store
// uses for concepts — ontology membership lives on the concept item
// itself (spec.md §4.8 annealing operates over the property graph, not a
// separate store).
type OntologyStore struct {
	graph *Store
}

func NewOntologyStore(graph *Store) *OntologyStore {
	return &OntologyStore{graph: graph}
}

var _ ports.OntologyStore = (*OntologyStore)(nil)

func (s *OntologyStore) ListOntologies(ctx context.Context) ([]*entities.Ontology, error) {
	out, err := s.graph.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.graph.table),
		FilterExpression: aws.String("SK = :sk AND begins_with(PK, :pkp)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sk": &types.AttributeValueMemberS{Value: skMeta}, ":pkp": &types.AttributeValueMemberS{Value: pkOntology},
		},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "scan ontologies", err)
	}
	var result []*entities.Ontology
	for _, rawItem := range out.Items {
		var it ontologyItem
		if err := attributevalue.UnmarshalMap(rawItem, &it); err != nil {
			continue
		}
		createdAt, _ := time.Parse(time.RFC3339, it.CreatedAt)
		result = append(result, &entities.Ontology{ID: it.OntologyID, Name: it.Name, AnchorIDs: it.AnchorIDs, CreatedAt: createdAt})
	}
	return result, nil
}

func (s *OntologyStore) SaveOntology(ctx context.Context, o *entities.Ontology) error {
	item := ontologyItem{
		PK: pkOntology + o.ID, SK: skMeta, OntologyID: o.ID, Name: o.Name,
		AnchorIDs: o.AnchorIDs, CreatedAt: o.CreatedAt.Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "marshal ontology item", err)
	}
	_, err = s.graph.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.graph.table), Item: av})
	if err != nil {
		return apperr.Wrap(apperr.Internal, "put ontology item", err)
	}
	return nil
}

func (s *OntologyStore) membersOf(ctx context.Context, ontologyID string) ([]conceptItem, error) {
	all, err := s.scanAllConceptItems(ctx)
	if err != nil {
		return nil, err
	}
	var members []conceptItem
	for _, it := range all {
		if it.OntologyID == ontologyID {
			members = append(members, it)
		}
	}
	return members, nil
}

func (s *OntologyStore) scanAllConceptItems(ctx context.Context) ([]conceptItem, error) {
	var out []conceptItem
	var lastKey map[string]types.AttributeValue
	for {
		res, err := s.graph.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.graph.table),
			FilterExpression:  aws.String("SK = :sk AND begins_with(PK, :pkp)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":sk": &types.AttributeValueMemberS{Value: skMeta}, ":pkp": &types.AttributeValueMemberS{Value: pkConcept},
			},
			ExclusiveStartKey: lastKey,
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan concept items", err)
		}
		for _, rawItem := range res.Items {
			var it conceptItem
			if err := attributevalue.UnmarshalMap(rawItem, &it); err == nil {
				out = append(out, it)
			}
		}
		lastKey = res.LastEvaluatedKey
		if len(lastKey) == 0 {
			break
		}
	}
	return out, nil
}

// ComputeMetrics aggregates mass, centroid, coherence (mean member-to-
// centroid cosine similarity), and a protection score that favors large,
// coherent ontologies — a concrete choice for an otherwise unspecified
// formula, recorded as an Open Question decision.
func (s *OntologyStore) ComputeMetrics(ctx context.Context, ontologyID string) (ports.OntologyMetrics, error) {
	members, err := s.membersOf(ctx, ontologyID)
	if err != nil {
		return ports.OntologyMetrics{}, err
	}
	if len(members) == 0 {
		return ports.OntologyMetrics{OntologyID: ontologyID}, nil
	}

	dim := members[0].Dimension
	centroid := make([]float64, dim)
	for _, m := range members {
		for i, v := range m.Vector {
			if i < dim {
				centroid[i] += v
			}
		}
	}
	for i := range centroid {
		centroid[i] /= float64(len(members))
	}
	centroidVec := toFloat32Vector(centroid)
	centroidEmb := valueobjects.NewEmbedding(centroidVec, "centroid")

	var coherenceSum float64
	for _, m := range members {
		coherenceSum += vecmath.CosineSimilarity(toFloat32Vector(m.Vector), centroidEmb.Vector)
	}
	coherence := coherenceSum / float64(len(members))

	mass := len(members)
	protection := coherence * minFloat(1.0, float64(mass)/20.0)

	return ports.OntologyMetrics{
		OntologyID: ontologyID, Mass: mass, Coherence: coherence, Centroid: centroidEmb, Protection: protection,
	}, nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// PromotionCandidates returns concepts whose total degree (in + out edges)
// is at least minDegree and who are not already an ontology anchor.
func (s *OntologyStore) PromotionCandidates(ctx context.Context, minDegree int) ([]valueobjects.ConceptID, error) {
	ontologies, err := s.ListOntologies(ctx)
	if err != nil {
		return nil, err
	}
	anchors := map[string]bool{}
	for _, o := range ontologies {
		for _, a := range o.AnchorIDs {
			anchors[a] = true
		}
	}

	all, err := s.scanAllConceptItems(ctx)
	if err != nil {
		return nil, err
	}
	var candidates []valueobjects.ConceptID
	for _, it := range all {
		id := valueobjects.ConceptID(it.ConceptID)
		if anchors[id.String()] {
			continue
		}
		out, err := s.graph.outgoingEdges(ctx, id)
		if err != nil {
			return nil, err
		}
		in, err := s.graph.IncomingEdges(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(out)+len(in) >= minDegree {
			candidates = append(candidates, id)
		}
	}
	return candidates, nil
}

func (s *OntologyStore) DemotionCandidates(ctx context.Context, protectionThreshold float64) ([]string, error) {
	ontologies, err := s.ListOntologies(ctx)
	if err != nil {
		return nil, err
	}
	var weak []string
	for _, o := range ontologies {
		metrics, err := s.ComputeMetrics(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		if metrics.Protection < protectionThreshold {
			weak = append(weak, o.ID)
		}
	}
	return weak, nil
}

func (s *OntologyStore) MoveConcept(ctx context.Context, conceptID valueobjects.ConceptID, toOntologyID string) error {
	it, err := s.graph.getConceptItem(ctx, conceptID)
	if err != nil {
		return err
	}
	if it == nil {
		return apperr.New(apperr.NotFound, "concept not found")
	}
	it.OntologyID = toOntologyID
	av, err := attributevalue.MarshalMap(*it)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "marshal concept item", err)
	}
	_, err = s.graph.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.graph.table), Item: av})
	if err != nil {
		return apperr.Wrap(apperr.Internal, "move concept ontology", err)
	}
	return nil
}

// DemoteOntology folds ontologyID's members into the neighbor ontology
// with the highest centroid affinity, then removes ontologyID's row.
func (s *OntologyStore) DemoteOntology(ctx context.Context, ontologyID string) error {
	ontologies, err := s.ListOntologies(ctx)
	if err != nil {
		return err
	}
	target, metrics, err := s.strongestNeighborOf(ctx, ontologyID, ontologies)
	if err != nil {
		return err
	}
	if target == "" {
		return nil // no neighbor to fold into — leave members orphaned rather than fail the cycle
	}
	_ = metrics

	members, err := s.membersOf(ctx, ontologyID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if err := s.MoveConcept(ctx, valueobjects.ConceptID(m.ConceptID), target); err != nil {
			return err
		}
	}
	_, err = s.graph.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.graph.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pkOntology + ontologyID},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
	})
	if err != nil {
		return apperr.Wrap(apperr.Internal, "delete ontology item", err)
	}
	return nil
}

func (s *OntologyStore) strongestNeighborOf(ctx context.Context, ontologyID string, ontologies []*entities.Ontology) (string, float64, error) {
	own, err := s.ComputeMetrics(ctx, ontologyID)
	if err != nil {
		return "", 0, err
	}
	best, bestSim := "", -1.0
	for _, o := range ontologies {
		if o.ID == ontologyID {
			continue
		}
		other, err := s.ComputeMetrics(ctx, o.ID)
		if err != nil {
			return "", 0, err
		}
		if other.Mass == 0 {
			continue
		}
		sim := own.Centroid.CosineSimilarity(other.Centroid)
		if sim > bestSim {
			bestSim, best = sim, o.ID
		}
	}
	return best, bestSim, nil
}
