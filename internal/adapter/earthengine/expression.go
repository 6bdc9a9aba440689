package earthengine

import (
	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
)

// Earth Engine expression graph types. A graph is a flat map of named nodes;
// nodes refer to each other through valueReference.

type computeRequest struct {
	Expression expression `json:"expression"`
}

type expression struct {
	Result string           `json:"result"`
	Values map[string]value `json:"values"`
}

type value struct {
	ConstantValue           any         `json:"constantValue,omitempty"`
	ValueReference          string      `json:"valueReference,omitempty"`
	FunctionInvocationValue *invocation `json:"functionInvocationValue,omitempty"`
}

type invocation struct {
	FunctionName string           `json:"functionName"`
	Arguments    map[string]value `json:"arguments"`
}

func constant(v any) value { return value{ConstantValue: v} }
func ref(name string) value { return value{ValueReference: name} }
func call(fn string, args map[string]value) value {
	return value{FunctionInvocationValue: &invocation{FunctionName: fn, Arguments: args}}
}

// regionExpression builds the graph for
//
//	ImageCollection.load(dataset)
//	    .filter(Filter.date(start, end+1d))
//	    .getRegion(Point(lon, lat), scale)
//
// filterDate excludes its end bound, so the day after r.End is sent to keep r closed.
// getRegion samples the single pixel under the point for each image.
func regionExpression(opts Options, g domain.Geo, r domain.DateRange) expression {
	return expression{
		Result: "0",
		Values: map[string]value{
			"0": call("ImageCollection.getRegion", map[string]value{
				"collection": ref("1"),
				"geometry":   ref("2"),
				"scale":      constant(opts.Scale),
			}),
			"1": call("Collection.filter", map[string]value{
				"collection": ref("3"),
				"filter":     ref("4"),
			}),
			"2": call("GeometryConstructors.Point", map[string]value{
				"coordinates": constant([]float64{g.Lon, g.Lat}),
			}),
			"3": call("ImageCollection.load", map[string]value{
				"id": constant(opts.Dataset),
			}),
			"4": call("Filter.dateRangeContains", map[string]value{
				"leftValue":  ref("5"),
				"rightField": constant("system:time_start"),
			}),
			"5": call("DateRange", map[string]value{
				"start": constant(r.Start.Format(domain.DateFormat)),
				"end":   constant(r.End.AddDate(0, 0, 1).Format(domain.DateFormat)),
			}),
		},
	}
}
