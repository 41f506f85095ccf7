package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Request is a GraphQL request body.
type Request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

// Response is a GraphQL response body.
type Response struct {
	Data   map[string]interface{} `json:"data"`
	Errors gqlerror.List          `json:"errors,omitempty"`
}

// Executor validates documents against Schema and dispatches root fields to
// the resolver. Results are projected onto the requested selection set.
type Executor struct {
	schema   *ast.Schema
	resolver *Resolver
}

// NewExecutor parses the schema and binds it to resolver.
func NewExecutor(resolver *Resolver) (*Executor, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: Schema})
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}
	return &Executor{schema: schema, resolver: resolver}, nil
}

// Execute runs a single operation. Query fields resolve concurrently,
// mutation fields in document order.
func (e *Executor) Execute(ctx context.Context, req Request) *Response {
	doc, errs := gqlparser.LoadQuery(e.schema, req.Query)
	if len(errs) > 0 {
		return &Response{Errors: errs}
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		return &Response{Errors: gqlerror.List{gqlerror.Errorf("operation %q not found", req.OperationName)}}
	}

	vars, err := validator.VariableValues(e.schema, op, req.Variables)
	if err != nil {
		var gqlErr *gqlerror.Error
		if !errors.As(err, &gqlErr) {
			gqlErr = gqlerror.Errorf("%s", err)
		}
		return &Response{Errors: gqlerror.List{gqlErr}}
	}

	fields := collectFields(op.SelectionSet)
	resp := &Response{Data: make(map[string]interface{}, len(fields))}

	var mu sync.Mutex
	resolve := func(ctx context.Context, f *ast.Field) {
		value, err := e.resolveField(ctx, op.Operation, f, vars)
		mu.Lock()
		defer mu.Unlock()
		key := responseKey(f)
		if err != nil {
			resp.Data[key] = nil
			resp.Errors = append(resp.Errors, e.fieldError(ctx, f, key, err))
			return
		}
		resp.Data[key] = value
	}

	if op.Operation == ast.Mutation {
		for _, f := range fields {
			resolve(ctx, f)
		}
		return resp
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range fields {
		g.Go(func() error {
			resolve(gctx, f)
			return nil
		})
	}
	_ = g.Wait()
	return resp
}

func (e *Executor) resolveField(ctx context.Context, op ast.Operation, f *ast.Field, vars map[string]interface{}) (interface{}, error) {
	if f.Name == "__typename" {
		if op == ast.Mutation {
			return "Mutation", nil
		}
		return "Query", nil
	}

	args := f.ArgumentMap(vars)
	var (
		result interface{}
		err    error
	)

	switch op {
	case ast.Query:
		q := e.resolver.Query()
		switch f.Name {
		case "health":
			result, err = q.Health(ctx)
		case "carriers":
			result, err = q.Carriers(ctx)
		case "serviceability":
			result, err = q.Serviceability(ctx,
				stringValue(args["pincode"]),
				stringValue(args["serviceTier"]),
				stringList(args["carriers"]),
			)
		case "quotes":
			input, _ := args["input"].(map[string]interface{})
			result, err = q.Quotes(ctx, input)
		case "track":
			result, err = q.Track(ctx, stringValue(args["carrier"]), stringValue(args["externalId"]))
		default:
			return nil, fmt.Errorf("unsupported query field %q", f.Name)
		}
	case ast.Mutation:
		m := e.resolver.Mutation()
		switch f.Name {
		case "bookShipment":
			input, _ := args["input"].(map[string]interface{})
			result, err = m.BookShipment(ctx, stringValue(args["carrier"]), input)
		case "cancelShipment":
			result, err = m.CancelShipment(ctx, stringValue(args["carrier"]), stringValue(args["externalId"]))
		default:
			return nil, fmt.Errorf("unsupported mutation field %q", f.Name)
		}
	default:
		return nil, fmt.Errorf("unsupported operation %q", op)
	}
	if err != nil {
		return nil, err
	}

	return project(result, f.SelectionSet)
}

func (e *Executor) fieldError(ctx context.Context, f *ast.Field, key string, err error) *gqlerror.Error {
	msg, ext := errorExtensions(err)
	e.resolver.Logger.Ctx(ctx).Warn("GraphQL field failed",
		zap.String("field", f.Name),
		zap.Error(err),
	)
	gqlErr := &gqlerror.Error{
		Message:    msg,
		Path:       ast.Path{ast.PathName(key)},
		Extensions: ext,
	}
	if f.Position != nil {
		gqlErr.Locations = []gqlerror.Location{{Line: f.Position.Line, Column: f.Position.Column}}
	}
	return gqlErr
}

// project converts value to its JSON form and keeps only the selected fields.
func project(value interface{}, sel ast.SelectionSet) (interface{}, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	return selectFields(generic, sel), nil
}

func selectFields(value interface{}, sel ast.SelectionSet) interface{} {
	if len(sel) == 0 {
		return value
	}
	switch v := value.(type) {
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = selectFields(item, sel)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{})
		for _, f := range collectFields(sel) {
			key := responseKey(f)
			if f.Name == "__typename" {
				if f.ObjectDefinition != nil {
					out[key] = f.ObjectDefinition.Name
				}
				continue
			}
			out[key] = selectFields(v[f.Name], f.SelectionSet)
		}
		return out
	default:
		return value
	}
}

// collectFields flattens fragments into the list of fields they select.
func collectFields(sel ast.SelectionSet) []*ast.Field {
	var fields []*ast.Field
	for _, s := range sel {
		switch s := s.(type) {
		case *ast.Field:
			fields = append(fields, s)
		case *ast.InlineFragment:
			fields = append(fields, collectFields(s.SelectionSet)...)
		case *ast.FragmentSpread:
			if s.Definition != nil {
				fields = append(fields, collectFields(s.Definition.SelectionSet)...)
			}
		}
	}
	return fields
}

func responseKey(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}
