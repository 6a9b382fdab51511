package qdrant

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	qdrantgo "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/memerr"
)

// mapError classifies a gRPC failure into the shared error taxonomy.
// Unknown codes default to transient so callers retry with backoff.
func mapError(op string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return memerr.NotFound(op, "%v", err)
	case codes.InvalidArgument:
		return memerr.Validation(op, "%v", err)
	default:
		return memerr.Transient(op, err)
	}
}

// pointID converts a record id to a Qdrant point id. Qdrant only accepts
// unsigned integers or UUIDs, which covers both id schemes in use:
// numeric ids map to integer points, UUID ids to UUID points.
func pointID(id string) (*qdrantgo.PointId, error) {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return qdrantgo.NewIDNum(n), nil
	}
	if _, err := uuid.Parse(id); err == nil {
		return qdrantgo.NewID(id), nil
	}
	return nil, fmt.Errorf("id %q is neither numeric nor a UUID", id)
}

// idToString converts a Qdrant point id back to the record id.
func idToString(id *qdrantgo.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// buildFilter translates the filter fields a collection owns into a
// Qdrant filter with nested payload paths.
func buildFilter(f *archive.Filter, kind archive.Kind) *qdrantgo.Filter {
	if f.IsZero() {
		return nil
	}

	var must []*qdrantgo.Condition
	var should []*qdrantgo.Condition

	switch kind {
	case archive.KindEpisodic:
		if f.CustomerID != "" {
			must = append(must, qdrantgo.NewMatch("customer_id", f.CustomerID))
		}
		if f.CampaignID != "" {
			must = append(must, qdrantgo.NewMatch("campaign_id", f.CampaignID))
		}
		if f.AgentType != "" {
			must = append(must, qdrantgo.NewMatch("agent_type", f.AgentType))
		}
		if f.SuccessOnly {
			must = append(must, qdrantgo.NewMatchBool("outcome.success", true))
		}
		if len(f.RiskTiers) > 0 {
			must = append(must, qdrantgo.NewMatchKeywords("context.risk_tier", f.RiskTiers...))
		}
		// One condition per tag: every tag must be present.
		for _, tag := range f.Tags {
			must = append(must, qdrantgo.NewMatch("tags", tag))
		}
		if f.OlderThan != nil {
			must = append(must, qdrantgo.NewDatetimeRange("timestamp", &qdrantgo.DatetimeRange{
				Lt: timestamppb.New(f.OlderThan.UTC()),
			}))
		}

	case archive.KindSemantic:
		if f.Category != "" {
			must = append(must, qdrantgo.NewMatch("category", f.Category))
		}
		if f.MinSuccessRate > 0 {
			must = append(must, qdrantgo.NewRange("success_rate", &qdrantgo.Range{
				Gte: qdrantgo.PtrOf(f.MinSuccessRate),
			}))
		}
		if f.MinConfidence > 0 {
			must = append(must, qdrantgo.NewRange("confidence", &qdrantgo.Range{
				Gte: qdrantgo.PtrOf(f.MinConfidence),
			}))
		}
		// An empty tier list means the strategy applies to every tier.
		if len(f.RiskTiers) > 0 {
			should = append(should,
				qdrantgo.NewIsEmpty("applicability.risk_tiers"),
				qdrantgo.NewMatchKeywords("applicability.risk_tiers", f.RiskTiers...),
			)
		}
		if f.OlderThan != nil {
			must = append(must, qdrantgo.NewDatetimeRange("created_at", &qdrantgo.DatetimeRange{
				Lt: timestamppb.New(f.OlderThan.UTC()),
			}))
		}
	}

	if len(must) == 0 && len(should) == 0 {
		return nil
	}
	return &qdrantgo.Filter{Must: must, Should: should}
}

func toFloat32(vector []float64) []float32 {
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(v)
	}
	return out
}

// vectorsOutputToFloat64 unwraps a point's stored vector.
func vectorsOutputToFloat64(vectors *qdrantgo.VectorsOutput) []float64 {
	if vectors == nil {
		return nil
	}
	data := vectors.GetVector().GetData()
	if len(data) == 0 {
		return nil
	}
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v)
	}
	return out
}

// payloadToMap converts a Qdrant payload back to plain Go values.
func payloadToMap(payload map[string]*qdrantgo.Value) map[string]interface{} {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(payload))
	for key, value := range payload {
		out[key] = valueToInterface(value)
	}
	return out
}

func valueToInterface(value *qdrantgo.Value) interface{} {
	if value == nil {
		return nil
	}
	switch kind := value.GetKind().(type) {
	case *qdrantgo.Value_NullValue:
		return nil
	case *qdrantgo.Value_BoolValue:
		return kind.BoolValue
	case *qdrantgo.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrantgo.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrantgo.Value_StringValue:
		return kind.StringValue
	case *qdrantgo.Value_ListValue:
		values := kind.ListValue.GetValues()
		items := make([]interface{}, 0, len(values))
		for _, item := range values {
			items = append(items, valueToInterface(item))
		}
		return items
	case *qdrantgo.Value_StructValue:
		fields := kind.StructValue.GetFields()
		nested := make(map[string]interface{}, len(fields))
		for key, item := range fields {
			nested[key] = valueToInterface(item)
		}
		return nested
	default:
		return nil
	}
}
